// Package inmemorystore provides a thread-safe, in-memory implementation
// of the unitstore.Store interface. It is suitable for a single compiler
// process, where cached units do not need to outlive the process.
package inmemorystore
