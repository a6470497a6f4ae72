// Package cli turns command-line arguments into an app.Config. It owns
// flag parsing, input validation and the exit codes reported to the
// shell through ExitError.
package cli
