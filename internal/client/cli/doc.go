// Package cli provides the interactive DULO command-line client.
//
// It wires configuration, the local store, the API client and services into
// a REPL that plays the role of the web client's pages. Commands are routed
// through the session guard: protected commands need a session (one silent
// refresh is attempted first), sign-in commands are only offered to
// anonymous users.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits
// or ctx is cancelled. A background refresher keeps the access token fresh
// while the REPL waits for input.
package cli
