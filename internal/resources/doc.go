// Package resources sizes a batch run to the machine it runs on.
//
// Solve turns a memory budget and CPU count into the longest chunk length and
// worker count that fit: every worker holds one decoded chunk plus its model,
// so longer chunks cost memory per worker. The solver keeps every CPU busy
// when it can and only sheds workers when even the minimum chunk length does
// not fit.
package resources
