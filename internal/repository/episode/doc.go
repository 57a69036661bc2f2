// Package episode implements persistence for detection episodes.
//
// The SQLiteRepository keeps an append-only log of every episode in a local
// SQLite database whose schema is managed by embedded migrations. The monitor
// records into it and the history command reads from it.
package episode
