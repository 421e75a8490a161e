package sink

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/linuxmatters/timestruct/internal/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecords() (processor.FlatRecord, processor.ScoreRecord) {
	tr := processor.Triple{
		OpenDip:  processor.Point{Pos: 0, Amp: 0.1},
		Peak:     processor.Point{Pos: 11025, Amp: 1.0},
		CloseDip: processor.Point{Pos: 44100, Amp: 0.25},
	}
	return processor.Encoder{SampleRate: 44100}.Encode(tr, 2)
}

func TestCollWriter(t *testing.T) {
	flat, _ := testRecords()

	var buf bytes.Buffer
	w := NewCollWriter(&buf)
	require.NoError(t, w.WriteFlat(flat))
	require.NoError(t, w.Flush())

	assert.Equal(t, "2, 0 0.1 250 1 1000 0.25;\n", buf.String())
}

func TestScoreWriter(t *testing.T) {
	_, score := testRecords()

	var buf bytes.Buffer
	w := NewScoreWriter(&buf)
	require.NoError(t, w.Clear())
	require.NoError(t, w.AddChord(score))
	require.NoError(t, w.Flush())

	want := "clear\n" +
		"addchord (0 (6000 1000 128 (slots (1 (0 0.1 0) (0.25 1 0) (1 0.25 0)))))\n"
	assert.Equal(t, want, buf.String())
}

func TestFormatAmp(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{1, "1"},
		{10, "10"},
		{0.5, "0.5"},
		{0.1234567, "0.123457"},
		{-0.0000001, "0"},
		{-0.25, "-0.25"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatAmp(tt.in), "formatAmp(%v)", tt.in)
	}
}

func TestCollectorReplay(t *testing.T) {
	flat, score := testRecords()

	c := NewCollector()
	require.NoError(t, c.Clear())
	require.NoError(t, c.WriteFlat(flat))
	require.NoError(t, c.AddChord(score))
	c.Done()
	assert.Equal(t, 1, c.Passes())

	into := NewCollector()
	require.NoError(t, into.WriteFlat(flat)) // stale, dropped by the replayed Clear
	require.NoError(t, c.Replay(into, into))

	if diff := cmp.Diff(c.Flat(), into.Flat()); diff != "" {
		t.Errorf("flat mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(c.Score(), into.Score()); diff != "" {
		t.Errorf("score mismatch (-want +got):\n%s", diff)
	}
}

type failingSink struct{}

func (failingSink) WriteFlat(processor.FlatRecord) error { return errors.New("nope") }

func TestCollectorReplayStopsOnError(t *testing.T) {
	flat, score := testRecords()
	c := NewCollector()
	require.NoError(t, c.WriteFlat(flat))
	require.NoError(t, c.AddChord(score))

	into := NewCollector()
	err := c.Replay(failingSink{}, into)
	assert.Error(t, err)
	assert.Empty(t, into.Score())
}

func TestCollectorReplayNilSinks(t *testing.T) {
	flat, _ := testRecords()
	c := NewCollector()
	require.NoError(t, c.WriteFlat(flat))
	assert.NoError(t, c.Replay(nil, nil))
}
