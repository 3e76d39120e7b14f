package model

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Frame holds the class scores of one analysis frame. Start and End are
// seconds relative to the first sample passed to Classify.
type Frame struct {
	Start  float64
	End    float64
	Scores []float64
}

// Best returns the index and score of the highest scoring class.
func (f Frame) Best() (int, float64) {
	if len(f.Scores) == 0 {
		return 0, 0
	}
	best := 0
	for i, score := range f.Scores {
		if score > f.Scores[best] {
			best = i
		}
	}
	return best, f.Scores[best]
}

// SpectralClassifier scores each frame by the share of its spectral energy
// that falls in each class band. It owns an FFT plan and scratch buffers, so
// one instance must not be used concurrently.
type SpectralClassifier struct {
	model  *Model
	size   int
	window []float64
	fft    *fourier.FFT
	buf    []float64
	coeff  []complex128
	bands  [][2]int
}

// NewSpectralClassifier prepares a classifier for m.
func NewSpectralClassifier(m *Model) *SpectralClassifier {
	size := m.FrameSamples()
	c := &SpectralClassifier{
		model:  m,
		size:   size,
		window: hann(size),
		fft:    fourier.NewFFT(size),
		buf:    make([]float64, size),
		bands:  make([][2]int, len(m.Classes)),
	}
	binHz := float64(m.SampleRate) / float64(size)
	last := size / 2
	for i, class := range m.Classes {
		lo := int(math.Ceil(class.LowHz / binHz))
		hi := int(math.Floor(class.HighHz / binHz))
		if hi > last {
			hi = last
		}
		c.bands[i] = [2]int{lo, hi}
	}
	return c
}

// Classify splits samples into consecutive frames and scores each. A trailing
// partial frame is zero padded; its End is clipped to the audio length.
func (c *SpectralClassifier) Classify(samples []float32) []Frame {
	if len(samples) == 0 {
		return nil
	}
	rate := float64(c.model.SampleRate)
	frameLen := c.model.FrameLength()
	audioLen := float64(len(samples)) / rate

	frames := make([]Frame, 0, (len(samples)+c.size-1)/c.size)
	for offset, i := 0, 0; offset < len(samples); offset, i = offset+c.size, i+1 {
		for k := range c.buf {
			if offset+k < len(samples) {
				c.buf[k] = float64(samples[offset+k]) * c.window[k]
			} else {
				c.buf[k] = 0
			}
		}
		c.coeff = c.fft.Coefficients(c.coeff, c.buf)

		start := float64(i) * frameLen
		end := math.Min(start+frameLen, audioLen)
		frames = append(frames, Frame{Start: start, End: end, Scores: c.score()})
	}
	return frames
}

func (c *SpectralClassifier) score() []float64 {
	scores := make([]float64, len(c.bands))
	var total float64
	for i, band := range c.bands {
		for k := band[0]; k <= band[1] && k < len(c.coeff); k++ {
			re, im := real(c.coeff[k]), imag(c.coeff[k])
			scores[i] += re*re + im*im
		}
		total += scores[i]
	}
	if total == 0 {
		return scores
	}
	for i := range scores {
		scores[i] /= total
	}
	return scores
}

func hann(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}
