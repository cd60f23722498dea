// Package client is the HTTP SDK core of DULO.
//
// # Overview
//
// The package provides:
//  1. The Client contract and its REST implementation, APIClient, which
//     attaches the bearer token, replays the refresh cookie on credentialed
//     calls and tags every request with an X-Request-ID.
//  2. Token refresh: proactive (token older than the refresh threshold or
//     close to its exp claim) and reactive (one refresh and one retry on
//     HTTP 401). Concurrent refreshes collapse into a single network call.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations) wiring an
//     SQLite database and applying embedded goose migrations.
//
// # Error Handling
//
// Non-2xx answers are *APIError values carrying the status, a best-effort
// message and the raw body. Sentinel errors match with errors.Is:
// ErrUnavailable for transport failures, ErrRefreshFailed when the refresh
// call is rejected, and ErrUnauthorized for any 401 answer.
//
// Concurrency & Contexts
//
// APIClient is safe for concurrent use. Every operation honours ctx; a
// shared refresh keeps running for the other waiters when one caller's
// context ends.
package client
