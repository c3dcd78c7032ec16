package audiobridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSyncBase = 3546895.0 // PAL colour-clock scale

// cyclesFor returns the cyclesPerSample that makes the instantaneous
// rate come out at rate Hz.
func cyclesFor(rate float64) float32 {
	return float32(testSyncBase / rate)
}

// TestRateEstimator_Seeding verifies the first accepted observation
// seeds both the EMA and the published rate.
func TestRateEstimator_Seeding(t *testing.T) {
	var e rateEstimator
	assert.Zero(t, e.current())

	require.True(t, e.observe(cyclesFor(44100), testSyncBase, 48000))
	assert.InDelta(t, 44100, e.current(), 1)
}

// TestRateEstimator_Convergence verifies the EMA converges to a
// constant rate within 0.1% after 1e5 observations.
func TestRateEstimator_Convergence(t *testing.T) {
	var e rateEstimator

	// Seed away from the target so convergence is actually exercised.
	require.True(t, e.observe(cyclesFor(46000), testSyncBase, 48000))

	const rate = 44100.0
	cycles := cyclesFor(rate)
	for i := 0; i < 100000; i++ {
		e.observe(cycles, testSyncBase, 48000)
	}

	relErr := (e.current() - rate) / rate
	if relErr < 0 {
		relErr = -relErr
	}
	assert.Less(t, relErr, 1e-3, "EMA did not converge: got %.2f Hz", e.current())
}

// TestRateEstimator_OutlierRejection verifies observations outside the
// [0.5, 1.5] x target window never move the estimate.
func TestRateEstimator_OutlierRejection(t *testing.T) {
	var e rateEstimator
	require.True(t, e.observe(cyclesFor(48000), testSyncBase, 48000))
	before := e.current()

	outliers := []float64{100, 10000, 23999, 72001, 500000}
	for _, rate := range outliers {
		assert.False(t, e.observe(cyclesFor(rate), testSyncBase, 48000), "rate %v must be rejected", rate)
	}
	assert.False(t, e.observe(0, testSyncBase, 48000), "non-positive cycles must be rejected")
	assert.False(t, e.observe(-5, testSyncBase, 48000))

	assert.Equal(t, before, e.current(), "rejected observations moved the estimate")
	assert.Equal(t, uint64(7), e.rejected)
}

// TestRateEstimator_WindowEdges verifies rates just inside the window
// are accepted.
func TestRateEstimator_WindowEdges(t *testing.T) {
	var e rateEstimator
	assert.True(t, e.observe(cyclesFor(24001), testSyncBase, 48000))
	assert.True(t, e.observe(cyclesFor(71999), testSyncBase, 48000))
}

// TestRateEstimator_Reset verifies reset clears all state.
func TestRateEstimator_Reset(t *testing.T) {
	var e rateEstimator
	e.observe(cyclesFor(44100), testSyncBase, 48000)
	e.reset()

	assert.Zero(t, e.current())
	assert.Zero(t, e.sampleCount)

	// Seeding works again after reset.
	require.True(t, e.observe(cyclesFor(50000), testSyncBase, 48000))
	assert.InDelta(t, 50000, e.current(), 1)
}
