// Package ledger records batch runs and per-chunk outcomes in SQLite.
//
// The ledger is history, not state: coverage is always derived from the
// output tables, so deleting the database loses nothing a rerun needs. The
// history command reads it back.
package ledger
