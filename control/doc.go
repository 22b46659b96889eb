// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, runtime metrics and debug introspection for hioload-rawfd.
//
// Provides:
//   - Config with defaults and validation, shared by reactor, handles and CLI
//   - Prometheus collectors for reads, writes, wakeups and open handles
//   - Named debug probes dumped on demand
package control
