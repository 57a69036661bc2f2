// Package integration exercises the smart-lock services together: the presence
// monitor writing to the SQLite episode log, the history printer reading it,
// and the operator status command against a live health endpoint.
package integration
