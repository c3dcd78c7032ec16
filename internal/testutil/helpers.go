// Package testutil provides reusable test helper functions for audio
// bridge tests.
package testutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// SineInt16 generates an interleaved int16 sine at freq Hz sampled at
// rate Hz with the given amplitude, identical on every channel.
func SineInt16(frames, channels int, freq, rate, amplitude float64) []int16 {
	out := make([]int16, frames*channels)
	for i := 0; i < frames; i++ {
		v := int16(amplitude * math.Sin(2*math.Pi*freq*float64(i)/rate))
		for ch := 0; ch < channels; ch++ {
			out[i*channels+ch] = v
		}
	}
	return out
}

// AssertNoNaNOrInf verifies that no elements in the slice are NaN or Inf.
func AssertNoNaNOrInf(t *testing.T, s []float32) bool {
	t.Helper()
	for i, v := range s {
		f := float64(v)
		if math.IsNaN(f) {
			return assert.Fail(t, "found NaN", "s[%d] is NaN", i)
		}
		if math.IsInf(f, 0) {
			return assert.Fail(t, "found Inf", "s[%d] is Inf", i)
		}
	}
	return true
}

// AssertAllInRange verifies that all elements are within [lo, hi].
func AssertAllInRange(t *testing.T, s []float32, lo, hi float32) bool {
	t.Helper()
	for i, v := range s {
		if !assert.True(t, v >= lo && v <= hi,
			"s[%d]=%f outside [%f, %f]", i, v, lo, hi) {
			return false
		}
	}
	return true
}

// MSE returns the mean squared error between two equal-length slices.
func MSE(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum / float64(len(a))
}

// RMS returns the root-mean-square level of the slice.
func RMS(s []float32) float64 {
	if len(s) == 0 {
		return 0
	}
	var sum float64
	for _, v := range s {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(s)))
}
