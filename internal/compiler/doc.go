// Package compiler is the host-facing entry point of the fragment pipeline.
//
// A Compiler owns the virtual file table, the dependency tracker and the
// unit cache. Hosts call Compile for every fragment they need, and forward
// file-system and editor events to NotifyFileChanged and
// NotifyFragmentEdited. Compile is safe to call from many goroutines.
package compiler
