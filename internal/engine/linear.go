// Package engine implements the resampling kernel of the audio bridge.
package engine

import (
	"errors"
	"fmt"
)

// ErrInvalidRate indicates invalid resampler construction parameters.
var ErrInvalidRate = errors.New("invalid resampler rate")

// Linear is a streaming linear-interpolation resampler converting
// interleaved int16 frames at a drifting input rate into interleaved
// float32 frames at a fixed output rate.
//
// After each Process call the read position is rebased by the chunk
// length and clamped at zero, so the next chunk starts at or after its
// first frame. The span between the last frame of one chunk and the
// first frame of the next is not interpolated. The input rate may be
// updated between calls via SetInputRate; output rate and channel count
// are fixed at construction.
type Linear struct {
	inputRate  float64
	outputRate int
	channels   int

	// position is the fractional read head into the current input chunk.
	position float64

	// lastFrame holds the final frame of the previous chunk. It is
	// retained as the anchor for cross-chunk interpolation.
	// TODO: interpolate across the chunk boundary using lastFrame
	// instead of restarting at the first frame of the next chunk.
	lastFrame []int16
}

// NewLinear creates a resampler. All rates must be positive and
// channels at least 1.
func NewLinear(inputRate float64, outputRate, channels int) (*Linear, error) {
	if inputRate <= 0 {
		return nil, fmt.Errorf("%w: input rate %v", ErrInvalidRate, inputRate)
	}
	if outputRate <= 0 {
		return nil, fmt.Errorf("%w: output rate %d", ErrInvalidRate, outputRate)
	}
	if channels < 1 {
		return nil, fmt.Errorf("%w: channels %d", ErrInvalidRate, channels)
	}

	return &Linear{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		lastFrame:  make([]int16, channels),
	}, nil
}

// SetInputRate updates the input rate for subsequent Process calls.
// The caller must not invoke it concurrently with Process.
func (l *Linear) SetInputRate(rate float64) {
	if rate > 0 {
		l.inputRate = rate
	}
}

// InputRate returns the current input rate in Hz.
func (l *Linear) InputRate() float64 {
	return l.inputRate
}

// OutputRate returns the fixed output rate in Hz.
func (l *Linear) OutputRate() int {
	return l.outputRate
}

// Channels returns the number of samples per frame.
func (l *Linear) Channels() int {
	return l.channels
}

// Ratio returns inputRate / outputRate, the per-output-frame advance of
// the input read head.
func (l *Linear) Ratio() float64 {
	return l.inputRate / float64(l.outputRate)
}

// Process resamples inputFrames interleaved frames from input into
// output, producing at most outputCapacity frames, and returns the
// number of frames produced.
//
// Samples are converted from int16 to float32 with a 32768 divisor so
// that -32768 maps exactly to -1.0. Interpolation between two in-range
// int16 values cannot leave [-1, 1] by more than one quantisation step,
// so no saturation is applied here.
func (l *Linear) Process(input []int16, inputFrames int, output []float32, outputCapacity int) int {
	if inputFrames <= 0 || outputCapacity <= 0 {
		return 0
	}
	if len(input) < inputFrames*l.channels || len(output) < outputCapacity*l.channels {
		return 0
	}

	ratio := l.Ratio()
	outputFrames := 0

	for outputFrames < outputCapacity {
		inputIndex := int(l.position)
		if inputIndex >= inputFrames-1 {
			break
		}

		frac := l.position - float64(inputIndex)

		for ch := 0; ch < l.channels; ch++ {
			s0 := input[inputIndex*l.channels+ch]
			s1 := input[(inputIndex+1)*l.channels+ch]
			interpolated := float64(s0) + (float64(s1)-float64(s0))*frac
			output[outputFrames*l.channels+ch] = float32(interpolated / int16Scale)
		}

		outputFrames++
		l.position += ratio
	}

	copy(l.lastFrame, input[(inputFrames-1)*l.channels:inputFrames*l.channels])

	// Rebase position onto the next chunk.
	l.position -= float64(inputFrames)
	if l.position < 0 {
		l.position = 0
	}

	return outputFrames
}

// Reset clears the fractional position and the retained frame.
func (l *Linear) Reset() {
	l.position = 0
	for ch := range l.lastFrame {
		l.lastFrame[ch] = 0
	}
}
