// Package analyzer runs the pool of analysis workers.
//
// Each worker owns one Backend for its whole lifetime. It repeatedly asks the
// scheduler for an assignment, decodes the chunk, classifies it and hands the
// rows, shifted to absolute file time, to the results writer. A chunk that
// fails is reported as abandoned to both the writer and the scheduler and the
// worker carries on with the next assignment.
package analyzer
