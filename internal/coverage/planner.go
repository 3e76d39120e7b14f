package coverage

// Gaps returns the parts of total that no interval in covered overlaps, in
// ascending order. Covered intervals may overlap each other, extend past total,
// or arrive unsorted. An empty covered set yields total itself.
func Gaps(total Interval, covered []Interval) []Interval {
	if !total.Valid() {
		return nil
	}
	cursor := total.Start
	var gaps []Interval
	for _, iv := range Sorted(covered) {
		if !iv.Valid() || iv.End <= cursor {
			continue
		}
		if iv.Start >= total.End {
			break
		}
		if iv.Start > cursor {
			gaps = append(gaps, Interval{Start: cursor, End: iv.Start})
		}
		cursor = iv.End
		if cursor >= total.End {
			return gaps
		}
	}
	if cursor < total.End {
		gaps = append(gaps, Interval{Start: cursor, End: total.End})
	}
	return gaps
}

// Plan computes the chunks still required for a recording of the given
// duration. frameLength is the shortest span the analyzer accepts and
// maxChunk bounds every emitted chunk. When pad is false, gaps and trailing
// remainder chunks starting within one frame of the end of the recording are
// dropped; otherwise anything shorter than a frame is widened to one frame.
// An empty result means the recording is fully analyzed.
func Plan(duration float64, covered []Interval, frameLength, maxChunk float64, pad bool) []Interval {
	var chunks []Interval
	for _, gap := range Gaps(Interval{Start: 0, End: duration}, covered) {
		if !pad && gap.Start >= duration-frameLength {
			continue
		}
		if gap.Length() < frameLength {
			gap.End = gap.Start + frameLength
		}
		pieces := PackChunks([]Interval{gap}, maxChunk)
		if n := len(pieces); n > 1 && pieces[n-1].Length() < frameLength {
			if !pad && pieces[n-1].Start >= duration-frameLength {
				pieces = pieces[:n-1]
			} else {
				pieces[n-1].End = pieces[n-1].Start + frameLength
			}
		}
		chunks = append(chunks, pieces...)
	}
	return chunks
}

// PackChunks splits gaps into chunks no longer than maxChunk, processing gaps
// in ascending start order. A long gap becomes consecutive chunks of exactly
// maxChunk followed by one remainder chunk, so the chunks of a gap tile it with
// no overlap or omission. A non-positive maxChunk leaves gaps unsplit.
func PackChunks(gaps []Interval, maxChunk float64) []Interval {
	var chunks []Interval
	for _, gap := range Sorted(gaps) {
		if !gap.Valid() {
			continue
		}
		if maxChunk <= 0 {
			chunks = append(chunks, gap)
			continue
		}
		for k := 0; ; k++ {
			start := gap.Start + float64(k)*maxChunk
			if start >= gap.End {
				break
			}
			end := gap.Start + float64(k+1)*maxChunk
			if end >= gap.End {
				end = gap.End
			}
			chunks = append(chunks, Interval{Start: start, End: end})
			if end == gap.End {
				break
			}
		}
	}
	return chunks
}
