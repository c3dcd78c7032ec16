package audiobridge

// rateEstimator tracks the producer's effective sample rate from
// per-frame cycle timing. Observations are smoothed with an EMA so the
// resampler follows warm-up and thermal drift while ignoring per-frame
// emulator jitter.
type rateEstimator struct {
	currentRate float64
	emaRate     float64
	sampleCount uint64
	rejected    uint64
}

// observe folds one (cyclesPerSample, syncBase) measurement into the
// estimate. The instantaneous rate is syncBase / cyclesPerSample.
// Observations with non-positive cycle counts or rates outside
// [rateRejectBelow, rateRejectAbove] x targetRate are rejected and do
// not move the estimate. Returns whether the observation was accepted.
func (r *rateEstimator) observe(cyclesPerSample float32, syncBase float64, targetRate int) bool {
	if cyclesPerSample <= 0 {
		r.rejected++
		return false
	}

	instant := syncBase / float64(cyclesPerSample)

	minRate := float64(targetRate) * rateRejectBelow
	maxRate := float64(targetRate) * rateRejectAbove
	if instant < minRate || instant > maxRate {
		r.rejected++
		return false
	}

	if r.currentRate == 0 {
		r.currentRate = instant
		r.emaRate = instant
	} else {
		r.emaRate = rateEMAAlpha*instant + (1-rateEMAAlpha)*r.emaRate
		r.currentRate = r.emaRate
	}

	r.sampleCount++
	return true
}

// current returns the smoothed rate estimate, or 0 before the first
// accepted observation.
func (r *rateEstimator) current() float64 {
	return r.currentRate
}

// reset clears all estimator state.
func (r *rateEstimator) reset() {
	*r = rateEstimator{}
}
