// Package cmd implements the theaterctl command-line interface. It provides a
// hierarchical command structure for talking to a Theater server and for
// running a local stub server.
//
// The package is organized into several subpackages:
//
//   - actor: Commands for actor management (list, start, stop, state, ...)
//   - channel: Commands for channel operations (open, send, close)
//   - raw: Sending arbitrary JSON commands
//   - monitor: The foreground heartbeat (watch) and the benchmark (perf)
//   - serve: Commands for starting the in-memory stub server
//   - config: Creating and validating config files
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See theaterctl --help for a list of all commands.
package cmd
