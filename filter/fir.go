// Package filter implements linear-phase FIR filters for sensor channels.
package filter

import (
	"errors"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// Type selects the pass band
type Type uint8

const (
	LowPass Type = iota
	HighPass
)

var (
	ErrTaps   = errors.New("filter: tap count must be odd and at least 3")
	ErrCutoff = errors.New("filter: cutoff must be in (0, sample rate / 2)")
)

// FIR is a type-1 (odd length, symmetric) windowed-sinc filter
type FIR struct {
	coeffs []float64
	buf    []float64
	pos    int
}

// NewFIR designs a Hamming-windowed filter with the given number of taps.
// A high-pass is the low-pass at (fs/2 − cutoff) shifted by fs/2.
func NewFIR(typ Type, cutoffHz, sampleRateHz float64, taps int) (*FIR, error) {
	if taps < 3 || taps%2 == 0 {
		return nil, ErrTaps
	}
	if !(cutoffHz > 0) || !(cutoffHz < sampleRateHz/2) {
		return nil, ErrCutoff
	}

	wc := 2 * math.Pi * cutoffHz / sampleRateHz
	if typ == HighPass {
		wc = math.Pi - wc
	}

	half := (taps - 1) / 2
	h := make([]float64, taps)
	for i := range h {
		n := float64(i - half)
		if i == half {
			h[i] = wc / math.Pi
			continue
		}
		h[i] = math.Sin(wc*n) / (math.Pi * n)
	}
	window.Hamming(h)

	// unity gain in the pass band
	sum := 0.0
	for _, c := range h {
		sum += c
	}
	for i := range h {
		h[i] /= sum
	}

	if typ == HighPass {
		for i := range h {
			if (i-half)%2 != 0 {
				h[i] = -h[i]
			}
		}
	}

	return &FIR{coeffs: h, buf: make([]float64, taps)}, nil
}

// Run pushes one sample and returns the filtered output
func (f *FIR) Run(sample float64) float64 {
	f.buf[f.pos] = sample
	out := 0.0
	j := f.pos
	for _, c := range f.coeffs {
		out += c * f.buf[j]
		if j == 0 {
			j = len(f.buf)
		}
		j--
	}
	f.pos++
	if f.pos == len(f.buf) {
		f.pos = 0
	}
	return out
}

// Reset clears the delay line
func (f *FIR) Reset() {
	for i := range f.buf {
		f.buf[i] = 0
	}
	f.pos = 0
}

// Coefficients returns a copy of the taps
func (f *FIR) Coefficients() []float64 {
	return append([]float64(nil), f.coeffs...)
}

// Response returns the magnitude response at points+1 frequencies evenly
// spaced from 0 to half the sample rate
func (f *FIR) Response(points int) []float64 {
	n := 2 * points
	if n < len(f.coeffs) {
		n = len(f.coeffs)
		if n%2 != 0 {
			n++
		}
	}
	seq := make([]float64, n)
	copy(seq, f.coeffs)

	coeff := fourier.NewFFT(n).Coefficients(nil, seq)
	step := len(coeff) - 1
	mag := make([]float64, points+1)
	for i := range mag {
		mag[i] = cmplx.Abs(coeff[i*step/points])
	}
	return mag
}
