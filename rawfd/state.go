package rawfd

// State is the lifecycle position of a Handle.
type State uint8

const (
	Created State = iota
	Watching
	Stopped
	Closed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Watching:
		return "watching"
	case Stopped:
		return "stopped"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}
