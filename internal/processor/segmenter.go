package processor

// LookAhead is the distance in samples between the two envelope values that
// are compared to decide whether the envelope is rising or falling.
const LookAhead = 1000

// Point is a position in samples and the envelope amplitude found there.
type Point struct {
	Pos int
	Amp float64
}

// Triple is one complete dip→peak→dip event.
type Triple struct {
	OpenDip  Point
	Peak     Point
	CloseDip Point
}

// tripleState says how much of the in-progress triple has been filled.
type tripleState int

const (
	stateEmpty tripleState = iota
	stateOpenDip
	stateOpenDipAndPeak
)

func (s tripleState) String() string {
	switch s {
	case stateEmpty:
		return "empty"
	case stateOpenDip:
		return "open dip"
	case stateOpenDipAndPeak:
		return "open dip and peak"
	default:
		return "unknown"
	}
}

// transition is a change of direction detected at one scan position.
type transition int

const (
	transitionNone transition = iota
	transitionDip
	transitionPeak
)

// Segmenter groups the rising and falling runs of an envelope into
// dip→peak→dip triples. A Segmenter holds the state of a single scan and is
// reset at the start of every Scan call.
type Segmenter struct {
	state   tripleState
	current Triple
	index   int
	up      bool
}

// EmitFunc receives every completed triple together with its event index.
// Returning an error stops the scan.
type EmitFunc func(t Triple, index int) error

// Scan walks the envelope once and hands every closed triple to emit, in
// order, with indices counting up from 0. It returns the number of triples
// emitted.
//
// Position i is a dip when envelope[i] < envelope[i+LookAhead] while the scan
// was heading up, and a peak when envelope[i] > envelope[i+LookAhead] while it
// was heading down. Peaks are recorded at i-LookAhead. The closing dip of
// one event is also the opening dip of the next. A triple that is still open
// when the scan ends is dropped.
//
// Envelopes of LookAhead samples or fewer produce no triples.
func (s *Segmenter) Scan(envelope []float64, emit EmitFunc) (int, error) {
	*s = Segmenter{}

	n := len(envelope)
	if n <= LookAhead {
		return 0, nil
	}

	s.up = envelope[0] < envelope[LookAhead]

	for i := 0; i < n-LookAhead; i++ {
		first := envelope[i]
		last := envelope[i+LookAhead]

		kind := transitionNone
		switch {
		case first < last && s.up:
			kind = transitionDip
		case first > last && !s.up:
			kind = transitionPeak
		default:
			continue
		}

		if err := s.step(kind, i, first, emit); err != nil {
			return s.index, err
		}
		s.up = !s.up
	}

	return s.index, nil
}

// step applies one transition to the in-progress triple.
func (s *Segmenter) step(kind transition, i int, amp float64, emit EmitFunc) error {
	switch kind {
	case transitionDip:
		switch s.state {
		case stateEmpty:
			s.current.OpenDip = Point{Pos: i, Amp: amp}
			s.state = stateOpenDip
		case stateOpenDip:
			// Second dip without a peak in between: the open dip stands.
		case stateOpenDipAndPeak:
			s.current.CloseDip = Point{Pos: i, Amp: amp}
			if err := emit(s.current, s.index); err != nil {
				return err
			}
			s.index++

			s.current = Triple{OpenDip: s.current.CloseDip}
			s.state = stateOpenDip
		}

	case transitionPeak:
		switch s.state {
		case stateOpenDip:
			s.current.Peak = Point{Pos: i - LookAhead, Amp: amp}
			s.state = stateOpenDipAndPeak
		case stateEmpty, stateOpenDipAndPeak:
			// Peak before any dip, or a second peak before the closing dip.
		}
	}
	return nil
}
