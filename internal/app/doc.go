// Package app contains the core application logic. It wires a project
// loader, the compiler and the file watcher together and owns the build
// and watch lifecycle, decoupled from the CLI entrypoint.
package app
