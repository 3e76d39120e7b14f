package resources

import (
	"errors"
	"fmt"
	"math"
)

const (
	// MinChunkLength is the shortest chunk, in seconds, worth scheduling.
	MinChunkLength = 10.0
	// MaxChunkLength caps chunk length; beyond an hour the per-chunk overhead
	// is already negligible.
	MaxChunkLength = 3600.0

	mib = 1 << 20
	gib = 1 << 30

	defaultModelBytes     = 300 * mib
	defaultBytesPerSecond = 256 * 1024
)

// ErrInsufficientMemory indicates the budget cannot hold even one worker at
// MinChunkLength.
var ErrInsufficientMemory = errors.New("insufficient memory")

// Footprint models the memory one worker needs: a fixed model cost plus a
// cost proportional to the audio it holds.
type Footprint struct {
	ModelBytes     uint64
	BytesPerSecond uint64
}

// DefaultFootprint is used when the model does not declare its own.
func DefaultFootprint() Footprint {
	return Footprint{ModelBytes: defaultModelBytes, BytesPerSecond: defaultBytesPerSecond}
}

// Bytes returns the per-worker memory needed for the given chunk length.
func (f Footprint) Bytes(chunkLength float64) uint64 {
	if chunkLength <= 0 {
		return f.ModelBytes
	}
	return f.ModelBytes + uint64(math.Ceil(chunkLength*float64(f.BytesPerSecond)))
}

// Budget is the input to Solve.
type Budget struct {
	MemoryBytes uint64
	CPUs        int
	Footprint   Footprint
}

// GiB converts a budget in gibibytes to bytes.
func GiB(value float64) uint64 {
	if value <= 0 {
		return 0
	}
	return uint64(value * gib)
}

// Solution is the chosen chunk length (seconds) and worker count.
type Solution struct {
	ChunkLength float64
	Workers     int
}

// Solve picks the largest whole-second chunk length that lets all CPUs run a
// worker. When memory cannot support that many workers at MinChunkLength it
// reduces the worker count until it can. The result is deterministic for a
// given budget.
func Solve(b Budget) (Solution, error) {
	if b.CPUs <= 0 {
		return Solution{}, fmt.Errorf("solve resources: cpu count must be positive, got %d", b.CPUs)
	}
	fp := b.Footprint
	if fp.BytesPerSecond == 0 {
		fp = DefaultFootprint()
	}
	for workers := b.CPUs; workers > 0; workers-- {
		perWorker := b.MemoryBytes / uint64(workers)
		if perWorker < fp.Bytes(MinChunkLength) {
			continue
		}
		length := math.Floor(float64(perWorker-fp.ModelBytes) / float64(fp.BytesPerSecond))
		if length > MaxChunkLength {
			length = MaxChunkLength
		}
		return Solution{ChunkLength: length, Workers: workers}, nil
	}
	return Solution{}, fmt.Errorf("%w: %.2f GiB cannot hold one worker (needs %.2f GiB at %.0fs chunks)",
		ErrInsufficientMemory,
		float64(b.MemoryBytes)/gib,
		float64(fp.Bytes(MinChunkLength))/gib,
		MinChunkLength,
	)
}
