// Package processor extracts the timing structure of a mono sample buffer:
// an amplitude envelope, the dip→peak→dip events found in it, and the
// records those events are reported as.
package processor

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// smoothingPasses is the number of exponential smoothing passes applied to the
// rectified signal. Two passes give a double exponential smoother.
const smoothingPasses = 2

// SmoothEnvelope turns raw samples into a smoothed, peak-normalised amplitude
// envelope. The slice is overwritten in place and returns the peak value that
// was normalised to 1.0 (0 when the input never rose above zero).
//
// Each pass runs average = |s[i]|*factor + (1-factor)*average for i >= 1,
// seeded with |s[0]|. Index 0 is never written by the smoothing passes, only
// scaled by the final normalisation, so it keeps its original sign and may sit
// outside [0,1].
//
// The peak is tracked over the values written by the last pass only.
// Callers that need the original samples must copy them first.
func SmoothEnvelope(samples []float64, factor float64) float64 {
	maxSample := 0.0
	normalizeFactor := 1.0

	if len(samples) > 1 {
		for pass := 0; pass < smoothingPasses; pass++ {
			last := pass == smoothingPasses-1
			average := math.Abs(samples[0])
			for i := 1; i < len(samples); i++ {
				average = math.Abs(samples[i])*factor + (1-factor)*average
				samples[i] = average

				if last && maxSample < average {
					maxSample = average
					normalizeFactor = 1 / maxSample
				}
			}
		}
	}

	floats.Scale(normalizeFactor, samples)
	return maxSample
}
