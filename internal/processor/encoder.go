package processor

import "math"

// DefaultPitch is the pitch, in midicents, given to every score record.
// The timeline consumer needs a pitch per note; the events carry none.
const DefaultPitch = 6000

// velocityScale maps a normalised peak amplitude to a note velocity.
const velocityScale = 128

// TimedAmp is an amplitude at an offset in milliseconds.
type TimedAmp struct {
	Ms  float64
	Amp float64
}

// FlatRecord is the compact numeric form of one event.
type FlatRecord struct {
	Index    int
	OpenDip  TimedAmp
	Peak     TimedAmp
	CloseDip TimedAmp
}

// Values returns the record as its 7-value list:
// index, onset ms, onset amp, peak ms, peak amp, close ms, close amp.
func (r FlatRecord) Values() []float64 {
	return []float64{
		float64(r.Index),
		r.OpenDip.Ms, r.OpenDip.Amp,
		r.Peak.Ms, r.Peak.Amp,
		r.CloseDip.Ms, r.CloseDip.Amp,
	}
}

// EnvelopePoint is one breakpoint of a note's amplitude curve. X is the
// position within the note, normalised to [0,1].
type EnvelopePoint struct {
	X     float64
	Y     float64
	Slope float64
}

// ScoreRecord describes one event as a note for a timeline consumer.
type ScoreRecord struct {
	Index      int
	OnsetMs    float64
	DurationMs float64
	Pitch      int
	Velocity   int
	Envelope   [3]EnvelopePoint
}

// Encoder converts sample positions to milliseconds at a fixed sample rate and
// builds the two records reported for every event.
type Encoder struct {
	SampleRate float64
}

// Ms converts a sample position to milliseconds.
func (e Encoder) Ms(pos int) float64 {
	return float64(pos) / e.SampleRate * 1000
}

// Encode builds the flat and score records for a completed triple.
func (e Encoder) Encode(t Triple, index int) (FlatRecord, ScoreRecord) {
	flat := FlatRecord{
		Index:    index,
		OpenDip:  TimedAmp{Ms: e.Ms(t.OpenDip.Pos), Amp: t.OpenDip.Amp},
		Peak:     TimedAmp{Ms: e.Ms(t.Peak.Pos), Amp: t.Peak.Amp},
		CloseDip: TimedAmp{Ms: e.Ms(t.CloseDip.Pos), Amp: t.CloseDip.Amp},
	}

	score := ScoreRecord{
		Index:      index,
		OnsetMs:    flat.OpenDip.Ms,
		DurationMs: e.Ms(t.CloseDip.Pos - t.OpenDip.Pos),
		Pitch:      DefaultPitch,
		Velocity:   int(t.Peak.Amp * velocityScale),
		Envelope: [3]EnvelopePoint{
			{X: 0, Y: t.OpenDip.Amp},
			{X: RelativePeak(t), Y: t.Peak.Amp},
			{X: 1, Y: t.CloseDip.Amp},
		},
	}

	return flat, score
}

// RelativePeak returns where the peak sits between the two dips, as a
// fraction of the event length in [0,1]. The length is clamped to at least
// one sample so a zero-length event yields a finite value. Peaks are recorded
// LookAhead samples late, so a peak can land before its opening dip; it is
// pinned to the note start.
func RelativePeak(t Triple) float64 {
	length := t.CloseDip.Pos - t.OpenDip.Pos
	if length < 1 {
		length = 1
	}
	rel := float64(t.Peak.Pos-t.OpenDip.Pos) / float64(length)
	return math.Max(0, math.Min(1, rel))
}
