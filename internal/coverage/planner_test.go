package coverage

import (
	"math"
	"reflect"
	"testing"
)

func TestGaps(t *testing.T) {
	total := Interval{Start: 0, End: 10}
	tests := []struct {
		name    string
		covered []Interval
		want    []Interval
	}{
		{"empty coverage", nil, []Interval{{0, 10}}},
		{"full coverage", []Interval{{0, 10}}, nil},
		{"leading coverage", []Interval{{0, 6}}, []Interval{{6, 10}}},
		{"middle hole", []Interval{{0, 3}, {5, 10}}, []Interval{{3, 5}}},
		{"unsorted overlapping", []Interval{{4, 7}, {0, 2}, {1, 3}}, []Interval{{3, 4}, {7, 10}}},
		{"coverage past end", []Interval{{8, 12}}, []Interval{{0, 8}}},
		{"adjacent rows", []Interval{{0, 1}, {1, 2}, {2, 3}}, []Interval{{3, 10}}},
		{"degenerate rows ignored", []Interval{{0, 0}, {5, 5}}, []Interval{{0, 10}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Gaps(total, tt.covered)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Gaps() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlanFullyCoveredIsEmpty(t *testing.T) {
	chunks := Plan(10, []Interval{{0, 4}, {4, 10}}, 1, 5, true)
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %v", chunks)
	}
}

func TestPlanEmptyCoverageSpansDuration(t *testing.T) {
	chunks := Plan(10, nil, 1, 5, false)
	want := []Interval{{0, 5}, {5, 10}}
	if !reflect.DeepEqual(chunks, want) {
		t.Fatalf("Plan() = %v, want %v", chunks, want)
	}
	if got := Total(chunks); got != 10 {
		t.Fatalf("total chunk length = %v, want 10", got)
	}
}

func TestPlanResumeAfterPartialCoverage(t *testing.T) {
	chunks := Plan(10, []Interval{{0, 6}}, 1, 60, false)
	want := []Interval{{6, 10}}
	if !reflect.DeepEqual(chunks, want) {
		t.Fatalf("Plan() = %v, want %v", chunks, want)
	}
}

func TestPlanDropsTrailingSubFrameGapWithoutPad(t *testing.T) {
	covered := []Interval{{0, 9.5}}
	if chunks := Plan(10, covered, 1, 60, false); len(chunks) != 0 {
		t.Fatalf("expected trailing gap dropped, got %v", chunks)
	}
	chunks := Plan(10, covered, 1, 60, true)
	want := []Interval{{9.5, 10.5}}
	if !reflect.DeepEqual(chunks, want) {
		t.Fatalf("padded Plan() = %v, want %v", chunks, want)
	}
}

func TestPlanExpandsShortGapsToOneFrame(t *testing.T) {
	covered := []Interval{{0, 3}, {3.25, 10}}
	chunks := Plan(20, covered, 1, 60, false)
	want := []Interval{{3, 4}, {10, 20}}
	if !reflect.DeepEqual(chunks, want) {
		t.Fatalf("Plan() = %v, want %v", chunks, want)
	}
	for _, c := range chunks {
		if c.Length() < 1 {
			t.Fatalf("chunk %v shorter than one frame", c)
		}
	}
}

func TestPlanSubFrameRemainderOfLongGap(t *testing.T) {
	tests := []struct {
		name    string
		covered []Interval
		pad     bool
		want    []Interval
	}{
		{"trailing remainder dropped", nil, false, []Interval{{0, 5}, {5, 10}}},
		{"trailing remainder padded", nil, true, []Interval{{0, 5}, {5, 10}, {10, 11}}},
		{"inner remainder widened", []Interval{{10.2, 20}}, false, []Interval{{0, 5}, {5, 10}, {10, 11}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			duration := 10.2
			if tt.covered != nil {
				duration = 20
			}
			got := Plan(duration, tt.covered, 1, 5, tt.pad)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Plan() = %v, want %v", got, tt.want)
			}
			for _, c := range got {
				if c.Length() < 1 {
					t.Fatalf("chunk %v shorter than one frame", c)
				}
			}
		})
	}
}

func TestPackChunksTilesGapsExactly(t *testing.T) {
	gaps := []Interval{{12.5, 40}, {0.3, 7.1}}
	const maxChunk = 2.2
	chunks := PackChunks(gaps, maxChunk)

	for _, c := range chunks {
		if c.Length() > maxChunk+1e-9 {
			t.Fatalf("chunk %v exceeds max length", c)
		}
	}
	for _, gap := range Sorted(gaps) {
		cursor := gap.Start
		for _, c := range chunks {
			if c.Start < gap.Start || c.End > gap.End {
				continue
			}
			if c.Start != cursor {
				t.Fatalf("chunk %v does not continue from %v", c, cursor)
			}
			cursor = c.End
		}
		if cursor != gap.End {
			t.Fatalf("gap %v reconstructed up to %v", gap, cursor)
		}
	}
	if math.Abs(Total(chunks)-Total(gaps)) > 1e-9 {
		t.Fatalf("total mismatch: chunks %v gaps %v", Total(chunks), Total(gaps))
	}
	if chunks[0].Start != 0.3 {
		t.Fatalf("expected chunks in ascending gap order, got %v", chunks)
	}
}

func TestPackChunksWithoutLimit(t *testing.T) {
	gaps := []Interval{{0, 100}}
	if got := PackChunks(gaps, 0); !reflect.DeepEqual(got, gaps) {
		t.Fatalf("PackChunks() = %v, want %v", got, gaps)
	}
}
