package processor

import (
	"errors"
	"testing"
)

func TestScanShortBufferEmitsNothing(t *testing.T) {
	for _, n := range []int{0, 1, 2, 500, LookAhead - 1, LookAhead} {
		envelope := cosineEnvelope(n, 400)
		got, count, err := collect(envelope)
		if err != nil {
			t.Fatalf("n=%d: unexpected error: %v", n, err)
		}
		if count != 0 || len(got) != 0 {
			t.Errorf("n=%d: emitted %d events, want 0", n, count)
		}
	}
}

func TestScanRampEvent(t *testing.T) {
	// Falling, rising, falling, rising: the look-ahead comparison finds the
	// dip halfway down the first ramp and closes the event halfway down the
	// third.
	envelope := rampEnvelope(1, 0, 1, 0, 1)

	got, count, err := collect(envelope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 || len(got) != 1 {
		t.Fatalf("emitted %d events, want 1", count)
	}

	tr := got[0].Triple
	checks := []struct {
		name    string
		gotPos  int
		wantPos int
		gotAmp  float64
		wantAmp float64
	}{
		{"open dip", tr.OpenDip.Pos, 501, tr.OpenDip.Amp, 0.499},
		{"peak", tr.Peak.Pos, 501, tr.Peak.Amp, 0.501},
		{"close dip", tr.CloseDip.Pos, 2501, tr.CloseDip.Amp, 0.499},
	}
	for _, c := range checks {
		if absInt(c.gotPos-c.wantPos) > 2 {
			t.Errorf("%s position = %d, want %d (±2)", c.name, c.gotPos, c.wantPos)
		}
		if diff := c.gotAmp - c.wantAmp; diff > 0.003 || diff < -0.003 {
			t.Errorf("%s amplitude = %.4f, want %.4f", c.name, c.gotAmp, c.wantAmp)
		}
	}
}

func TestScanDiscardsOpenTriple(t *testing.T) {
	// Falling, rising, falling over 3000 samples opens a dip and finds a
	// peak, but the scan stops before any closing dip.
	envelope := rampEnvelope(1, 0, 1, 0)

	got, count, err := collect(envelope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 || len(got) != 0 {
		t.Errorf("emitted %d events, want 0", count)
	}
}

func TestScanPeriodicEnvelope(t *testing.T) {
	const period = 4000
	envelope := cosineEnvelope(20000, period)

	got, count, err := collect(envelope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 4 || len(got) != 4 {
		t.Fatalf("emitted %d events, want 4", count)
	}

	for k, ev := range got {
		if ev.Index != k {
			t.Errorf("event %d has index %d", k, ev.Index)
		}

		base := k * period
		want := [3]int{base + 1500, base + 2500, base + 5500}
		pos := [3]int{ev.Triple.OpenDip.Pos, ev.Triple.Peak.Pos, ev.Triple.CloseDip.Pos}
		for j := range want {
			if absInt(pos[j]-want[j]) > 2 {
				t.Errorf("event %d point %d at %d, want %d (±2)", k, j, pos[j], want[j])
			}
		}
	}

	// Consecutive events share their boundary dip.
	for k := 1; k < len(got); k++ {
		prev, next := got[k-1].Triple.CloseDip, got[k].Triple.OpenDip
		if prev != next {
			t.Errorf("event %d closes at %+v but event %d opens at %+v", k-1, prev, k, next)
		}
	}
}

func TestScanStopsOnEmitError(t *testing.T) {
	envelope := cosineEnvelope(20000, 4000)
	errStop := errors.New("stop")

	calls := 0
	var seg Segmenter
	count, err := seg.Scan(envelope, func(Triple, int) error {
		calls++
		if calls == 2 {
			return errStop
		}
		return nil
	})

	if !errors.Is(err, errStop) {
		t.Fatalf("err = %v, want %v", err, errStop)
	}
	if calls != 2 {
		t.Errorf("emit called %d times, want 2", calls)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestSegmenterStep(t *testing.T) {
	type step struct {
		kind      transition
		pos       int
		amp       float64
		wantState tripleState
		wantEmit  bool
	}

	tests := []struct {
		name  string
		steps []step
		check func(t *testing.T, s *Segmenter, emitted []Triple)
	}{
		{
			name: "peak before any dip is ignored",
			steps: []step{
				{transitionPeak, 1200, 0.9, stateEmpty, false},
				{transitionDip, 1300, 0.1, stateOpenDip, false},
			},
			check: func(t *testing.T, s *Segmenter, _ []Triple) {
				if s.current.OpenDip != (Point{Pos: 1300, Amp: 0.1}) {
					t.Errorf("open dip = %+v", s.current.OpenDip)
				}
			},
		},
		{
			name: "second dip keeps the first",
			steps: []step{
				{transitionDip, 10, 0.2, stateOpenDip, false},
				{transitionDip, 20, 0.05, stateOpenDip, false},
			},
			check: func(t *testing.T, s *Segmenter, _ []Triple) {
				if s.current.OpenDip.Pos != 10 {
					t.Errorf("open dip moved to %d, want 10", s.current.OpenDip.Pos)
				}
			},
		},
		{
			name: "peak is recorded look-ahead samples late",
			steps: []step{
				{transitionDip, 10, 0.2, stateOpenDip, false},
				{transitionPeak, 2500, 0.9, stateOpenDipAndPeak, false},
				{transitionPeak, 2600, 0.95, stateOpenDipAndPeak, false},
			},
			check: func(t *testing.T, s *Segmenter, _ []Triple) {
				want := Point{Pos: 2500 - LookAhead, Amp: 0.9}
				if s.current.Peak != want {
					t.Errorf("peak = %+v, want %+v", s.current.Peak, want)
				}
			},
		},
		{
			name: "closing dip emits and reopens",
			steps: []step{
				{transitionDip, 10, 0.2, stateOpenDip, false},
				{transitionPeak, 2500, 0.9, stateOpenDipAndPeak, false},
				{transitionDip, 3000, 0.3, stateOpenDip, true},
			},
			check: func(t *testing.T, s *Segmenter, emitted []Triple) {
				want := Triple{
					OpenDip:  Point{Pos: 10, Amp: 0.2},
					Peak:     Point{Pos: 1500, Amp: 0.9},
					CloseDip: Point{Pos: 3000, Amp: 0.3},
				}
				if len(emitted) != 1 || emitted[0] != want {
					t.Errorf("emitted %+v, want %+v", emitted, want)
				}
				if s.current.OpenDip != want.CloseDip {
					t.Errorf("next open dip = %+v, want %+v", s.current.OpenDip, want.CloseDip)
				}
				if s.index != 1 {
					t.Errorf("index = %d, want 1", s.index)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Segmenter
			var emitted []Triple
			emit := func(tr Triple, _ int) error {
				emitted = append(emitted, tr)
				return nil
			}

			for i, st := range tt.steps {
				before := len(emitted)
				if err := s.step(st.kind, st.pos, st.amp, emit); err != nil {
					t.Fatalf("step %d: %v", i, err)
				}
				if s.state != st.wantState {
					t.Errorf("step %d: state = %v, want %v", i, s.state, st.wantState)
				}
				if (len(emitted) > before) != st.wantEmit {
					t.Errorf("step %d: emitted = %v, want %v", i, len(emitted) > before, st.wantEmit)
				}
			}
			tt.check(t, &s, emitted)
		})
	}
}
