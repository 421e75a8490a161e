package processor

import "math"

// sineWave returns n samples of a sine at freq Hz with the given peak amplitude.
func sineWave(n int, freq, amp float64, sampleRate int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

// lcgNoise returns deterministic white noise in [-amp, amp].
func lcgNoise(n int, amp float64) []float64 {
	// LCG parameters from Numerical Recipes
	state := uint32(12345)
	out := make([]float64, n)
	for i := range out {
		state = state*1664525 + 1013904223
		out[i] = amp * ((float64(state)/float64(0xFFFFFFFF))*2.0 - 1.0)
	}
	return out
}

// spike returns silence with a single sample of height amp at pos.
func spike(n, pos int, amp float64) []float64 {
	out := make([]float64, n)
	out[pos] = amp
	return out
}

// cosineEnvelope returns a raised cosine that starts at its maximum and
// repeats every period samples.
func cosineEnvelope(n, period int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.5 + 0.5*math.Cos(2*math.Pi*float64(i)/float64(period))
	}
	return out
}

// rampEnvelope joins linear ramps of 1000 samples each. Every ramp runs from
// one level to the next, so levels 1,0,1 give a falling then rising ramp.
func rampEnvelope(levels ...float64) []float64 {
	const rampLen = 1000
	var out []float64
	for r := 0; r+1 < len(levels); r++ {
		from, to := levels[r], levels[r+1]
		for i := 0; i < rampLen; i++ {
			out = append(out, from+(to-from)*float64(i)/rampLen)
		}
	}
	return out
}

// emitted is a triple with the index it was emitted with.
type emitted struct {
	Triple Triple
	Index  int
}

// collect scans envelope and returns everything emitted.
func collect(envelope []float64) ([]emitted, int, error) {
	var got []emitted
	var seg Segmenter
	n, err := seg.Scan(envelope, func(tr Triple, index int) error {
		got = append(got, emitted{Triple: tr, Index: index})
		return nil
	})
	return got, n, err
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
