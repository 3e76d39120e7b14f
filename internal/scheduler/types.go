package scheduler

import (
	"fmt"

	"buzzbatch/internal/coverage"
)

// Chunk is one unit of work: a span of a source file.
type Chunk struct {
	Source string
	coverage.Interval
}

func (c Chunk) String() string {
	return fmt.Sprintf("%s [%s]", c.Source, c.Interval)
}

// AudioFile is an input file with its coverage and the chunks still to analyze.
type AudioFile struct {
	Path     string
	Duration float64
	Covered  []coverage.Interval
	Gaps     []coverage.Interval
	Chunks   []coverage.Interval
}

// PlanFile derives gaps and chunks for a file from its existing coverage.
func PlanFile(path string, duration float64, covered []coverage.Interval, frameLength, maxChunk float64, pad bool) AudioFile {
	return AudioFile{
		Path:     path,
		Duration: duration,
		Covered:  coverage.Sorted(covered),
		Gaps:     coverage.Gaps(coverage.Interval{Start: 0, End: duration}, covered),
		Chunks:   coverage.Plan(duration, covered, frameLength, maxChunk, pad),
	}
}

// Complete reports whether the file has nothing left to analyze.
func (f AudioFile) Complete() bool {
	return len(f.Chunks) == 0
}

// AssignmentKind tags the payload of an Assignment.
type AssignmentKind int

const (
	// AssignChunk carries a chunk to analyze.
	AssignChunk AssignmentKind = iota
	// AssignTerminate tells the worker no work remains.
	AssignTerminate
)

func (k AssignmentKind) String() string {
	switch k {
	case AssignChunk:
		return "chunk"
	case AssignTerminate:
		return "terminate"
	default:
		return fmt.Sprintf("AssignmentKind(%d)", int(k))
	}
}

// Assignment is the manager's answer to a worker request.
type Assignment struct {
	Kind  AssignmentKind
	Chunk Chunk
}

// Terminate returns the terminate assignment.
func Terminate() Assignment {
	return Assignment{Kind: AssignTerminate}
}

// Request asks the manager for the next assignment. Abandoned, when set,
// reports the worker's previous chunk as failed; it is not re-queued.
type Request struct {
	Worker    int
	Abandoned *Chunk
}
