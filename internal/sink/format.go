package sink

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/linuxmatters/timestruct/internal/processor"
)

// CollWriter writes flat records as lines of a Max coll file:
//
//	0, 11 0.146447 56 0.853553 124 0.146447;
//
// The index is the coll key. Offsets are whole milliseconds, truncated.
type CollWriter struct {
	w *bufio.Writer
}

// NewCollWriter returns a CollWriter on w. Call Flush when done.
func NewCollWriter(w io.Writer) *CollWriter {
	return &CollWriter{w: bufio.NewWriter(w)}
}

// WriteFlat writes one coll line.
func (c *CollWriter) WriteFlat(r processor.FlatRecord) error {
	_, err := fmt.Fprintf(c.w, "%d, %d %s %d %s %d %s;\n",
		r.Index,
		int64(r.OpenDip.Ms), formatAmp(r.OpenDip.Amp),
		int64(r.Peak.Ms), formatAmp(r.Peak.Amp),
		int64(r.CloseDip.Ms), formatAmp(r.CloseDip.Amp))
	return err
}

// Flush writes any buffered data to the underlying writer.
func (c *CollWriter) Flush() error {
	return c.w.Flush()
}

// ScoreWriter writes score records as bach.roll messages, one per line:
//
//	clear
//	addchord (11 (6000 113 109 (slots (1 (0 0.146447 0) (0.25 0.853553 0) (1 0.146447 0)))))
type ScoreWriter struct {
	w *bufio.Writer
}

// NewScoreWriter returns a ScoreWriter on w. Call Flush when done.
func NewScoreWriter(w io.Writer) *ScoreWriter {
	return &ScoreWriter{w: bufio.NewWriter(w)}
}

// Clear writes a clear message.
func (s *ScoreWriter) Clear() error {
	_, err := s.w.WriteString("clear\n")
	return err
}

// AddChord writes one addchord message.
func (s *ScoreWriter) AddChord(r processor.ScoreRecord) error {
	_, err := fmt.Fprintf(s.w, "addchord %s\n", FormatChord(r))
	return err
}

// Flush writes any buffered data to the underlying writer.
func (s *ScoreWriter) Flush() error {
	return s.w.Flush()
}

// FormatChord renders the nested chord list of an addchord message:
// (onset (pitch duration velocity (slots (1 (x y slope) (x y slope) (x y slope))))).
func FormatChord(r processor.ScoreRecord) string {
	p := r.Envelope
	return fmt.Sprintf("(%d (%d %d %d (slots (1 (%s %s %s) (%s %s %s) (%s %s %s)))))",
		int64(r.OnsetMs), r.Pitch, int64(r.DurationMs), r.Velocity,
		formatAmp(p[0].X), formatAmp(p[0].Y), formatAmp(p[0].Slope),
		formatAmp(p[1].X), formatAmp(p[1].Y), formatAmp(p[1].Slope),
		formatAmp(p[2].X), formatAmp(p[2].Y), formatAmp(p[2].Slope))
}

// formatAmp prints a value with at most six decimals and no trailing zeros.
func formatAmp(v float64) string {
	s := strconv.FormatFloat(v, 'f', 6, 64)
	// Trim trailing zeros, and the point itself for whole numbers.
	end := len(s)
	for end > 0 && s[end-1] == '0' {
		end--
	}
	if end > 0 && s[end-1] == '.' {
		end--
	}
	s = s[:end]
	if s == "-0" || s == "" {
		return "0"
	}
	return s
}
