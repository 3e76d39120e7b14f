// Package coverage works out which parts of a recording still need analysis.
//
// A recording's coverage is the set of intervals already present in its
// output table. Gaps returns the complement of that set over the recording,
// and Plan turns the gaps into bounded-length chunks: trailing sub-frame gaps
// are dropped unless padding is requested, gaps shorter than one analysis
// frame are widened to a full frame, and anything longer than the chunk limit
// is split into consecutive pieces.
//
// Everything here is pure arithmetic over seconds so the planner can be
// exercised without audio or output files.
package coverage
