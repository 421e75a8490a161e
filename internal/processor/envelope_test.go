package processor

import (
	"math"
	"testing"
)

func TestSmoothEnvelopeRecurrence(t *testing.T) {
	tests := []struct {
		name    string
		samples []float64
		factor  float64
		want    []float64
		wantMax float64
	}{
		{
			name:    "half factor",
			samples: []float64{0.5, 1.0, 0.0},
			factor:  0.5,
			// pass 1: 0.75, 0.375; pass 2: 0.625, 0.5; normalise by 1/0.625
			want:    []float64{0.8, 1.0, 0.8},
			wantMax: 0.625,
		},
		{
			name:    "unit factor keeps index zero sign",
			samples: []float64{-1.0, -0.5, 0.25},
			factor:  1.0,
			// smoothing with factor 1 only rectifies; index 0 is scaled but never rectified
			want:    []float64{-2.0, 1.0, 0.5},
			wantMax: 0.5,
		},
		{
			name:    "single sample is left alone",
			samples: []float64{-0.3},
			factor:  0.1,
			want:    []float64{-0.3},
			wantMax: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := append([]float64(nil), tt.samples...)
			gotMax := SmoothEnvelope(got, tt.factor)

			if math.Abs(gotMax-tt.wantMax) > 1e-12 {
				t.Errorf("max = %v, want %v", gotMax, tt.wantMax)
			}
			for i := range tt.want {
				if math.Abs(got[i]-tt.want[i]) > 1e-12 {
					t.Errorf("sample[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSmoothEnvelopeNormalisesToOne(t *testing.T) {
	tests := []struct {
		name    string
		samples []float64
		factor  float64
	}{
		{"sine", sineWave(44100, 440, 0.3, 44100), 0.001},
		{"noise", lcgNoise(20000, 0.05), 0.01},
		{"single spike", spike(5000, 2500, 0.8), 0.002},
		{"quiet sine", sineWave(8000, 100, 1e-4, 8000), 0.05},
		{"unit factor", sineWave(4410, 441, 0.5, 44100), 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := tt.samples
			SmoothEnvelope(samples, tt.factor)

			peak := 0.0
			for i := 1; i < len(samples); i++ {
				if samples[i] < 0 {
					t.Fatalf("sample[%d] = %v, want non-negative", i, samples[i])
				}
				peak = math.Max(peak, math.Abs(samples[i]))
			}
			if math.Abs(peak-1.0) > 1e-9 {
				t.Errorf("peak after normalisation = %v, want 1.0", peak)
			}
		})
	}
}

func TestSmoothEnvelopeAllZero(t *testing.T) {
	samples := make([]float64, 3000)
	peak := SmoothEnvelope(samples, 0.001)

	if peak != 0 {
		t.Errorf("peak = %v, want 0", peak)
	}
	for i, s := range samples {
		if s != 0 {
			t.Fatalf("sample[%d] = %v, want 0", i, s)
		}
	}
}

func TestSmoothEnvelopeEmpty(t *testing.T) {
	// Must not panic
	SmoothEnvelope(nil, 0.5)
	SmoothEnvelope([]float64{}, 0.5)
}
