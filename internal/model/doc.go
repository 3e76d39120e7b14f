// Package model loads analysis model directories and provides the built-in
// spectral classifier.
//
// A model directory holds a model.yaml describing the analysis frame, the
// sample rate audio must be decoded at, the memory footprint used by the
// resource solver and the classes the classifier scores. Each raw class maps
// to a semantic label that is written when full scores are not requested.
package model
