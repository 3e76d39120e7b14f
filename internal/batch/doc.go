// Package batch wires the planner, resource solver, assignment manager,
// analyzer pool, result writer and log sink into one run.
//
// Prepare does everything that does not analyse audio: dependency checks,
// model loading, resource solving, discovery, duration probing and coverage
// planning. Run takes the output-root lock, calls Prepare, and then drives the
// concurrent phase to completion, recording the run in the ledger and the
// metrics textfile when those are enabled.
package batch
