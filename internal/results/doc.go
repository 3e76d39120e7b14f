// Package results owns the per-file output tables.
//
// A table is a CSV file mirrored from the input tree with one row per analyzed
// span. The Writer is the only component that touches these files during a
// run: it merges each worker's rows into the existing table, re-sorts by start
// time and replaces the file atomically. Tables written by earlier runs are
// read back by ReadCoverage to decide what is left to analyze.
package results
