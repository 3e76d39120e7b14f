package analyzer

import (
	"context"

	"buzzbatch/internal/model"
	"buzzbatch/internal/results"
)

// Decoder extracts mono samples for a span of a file.
type Decoder interface {
	Decode(ctx context.Context, path string, start, end float64) ([]float32, error)
}

// Backend classifies decoded audio. Row times are relative to the first sample.
type Backend interface {
	// Classes names the per-class score columns, or nil when rows carry only
	// the predicted class.
	Classes() []string
	Analyze(ctx context.Context, samples []float32) ([]results.Row, error)
	Close() error
}

// BackendFactory builds the backend owned by one worker.
type BackendFactory func(worker int) (Backend, error)

// ModelBackend adapts the built-in spectral classifier.
type ModelBackend struct {
	model      *model.Model
	classifier *model.SpectralClassifier
	fullScores bool
}

// NewModelBackend constructs a backend for m. With fullScores every raw class
// gets a score column; otherwise rows carry the semantic label of the best
// class.
func NewModelBackend(m *model.Model, fullScores bool) *ModelBackend {
	return &ModelBackend{model: m, classifier: model.NewSpectralClassifier(m), fullScores: fullScores}
}

// ModelBackendFactory returns a factory building one ModelBackend per worker.
func ModelBackendFactory(m *model.Model, fullScores bool) BackendFactory {
	return func(int) (Backend, error) {
		return NewModelBackend(m, fullScores), nil
	}
}

func (b *ModelBackend) Classes() []string {
	if !b.fullScores {
		return nil
	}
	return b.model.ClassNames()
}

func (b *ModelBackend) Analyze(ctx context.Context, samples []float32) ([]results.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frames := b.classifier.Classify(samples)
	rows := make([]results.Row, 0, len(frames))
	for _, frame := range frames {
		idx, score := frame.Best()
		row := results.Row{Start: frame.Start, End: frame.End, Score: score}
		if b.fullScores {
			row.Class = b.model.Classes[idx].Name
			row.Scores = frame.Scores
		} else {
			row.Class = b.model.SemanticLabel(idx)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (b *ModelBackend) Close() error {
	return nil
}
