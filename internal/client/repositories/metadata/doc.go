// Package metadata persists client session state as key/value pairs in the
// local SQLite database.
package metadata
