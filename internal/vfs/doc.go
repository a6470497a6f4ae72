// Package vfs maps logical include paths onto physical files.
//
// A Table searches an ordered list of root directories; the first root that
// contains a file wins. Resolved files are cached together with their
// content hash, modification time and size until Refresh reports a change.
package vfs
