package processor

import (
	"errors"
	"math"
	"testing"

	"github.com/linuxmatters/timestruct/internal/buffer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures everything an Analyzer sends to its sinks.
type recorder struct {
	calls   []string
	flat    []FlatRecord
	score   []ScoreRecord
	done    int
	flatErr error
	onClear func()
}

func (r *recorder) WriteFlat(rec FlatRecord) error {
	if r.flatErr != nil {
		return r.flatErr
	}
	r.calls = append(r.calls, "flat")
	r.flat = append(r.flat, rec)
	return nil
}

func (r *recorder) Clear() error {
	r.calls = append(r.calls, "clear")
	r.score = nil
	if r.onClear != nil {
		r.onClear()
	}
	return nil
}

func (r *recorder) AddChord(rec ScoreRecord) error {
	r.calls = append(r.calls, "addchord")
	r.score = append(r.score, rec)
	return nil
}

func (r *recorder) Done() {
	r.calls = append(r.calls, "done")
	r.done++
}

func (r *recorder) sinks() Sinks {
	return Sinks{Flat: r, Score: r, Completion: r}
}

func newTestAnalyzer(t *testing.T, reg *buffer.Registry, name string, rec *recorder) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(reg, name, &Config{SampleRate: 44100}, rec.sinks(), nil)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestRunAnalysis(t *testing.T) {
	reg := buffer.NewRegistry()
	// A non-negative signal smoothed with factor 1 is its own envelope.
	require.NoError(t, reg.Create("periodic", cosineEnvelope(20000, 4000), 44100))

	rec := &recorder{}
	a := newTestAnalyzer(t, reg, "periodic", rec)

	var stages []string
	a.OnProgress(func(pass int, passName string, progress float64) {
		if progress == 1.0 {
			stages = append(stages, passName)
		}
	})

	result, err := a.RunAnalysis(1.0)
	require.NoError(t, err)

	assert.Equal(t, "periodic", result.Buffer)
	assert.Equal(t, 20000, result.Frames)
	assert.Equal(t, 4, result.Events)
	assert.InDelta(t, 1.0, result.MaxSample, 1e-9)
	assert.Equal(t, []string{"Smoothing", "Segmenting"}, stages)

	require.Len(t, rec.flat, 4)
	require.Len(t, rec.score, 4)
	for i := range rec.flat {
		assert.Equal(t, i, rec.flat[i].Index)
		assert.Equal(t, i, rec.score[i].Index)
	}

	// clear first, flat then score per event, done last
	assert.Equal(t, "clear", rec.calls[0])
	assert.Equal(t, "flat", rec.calls[1])
	assert.Equal(t, "addchord", rec.calls[2])
	assert.Equal(t, "done", rec.calls[len(rec.calls)-1])
	assert.Equal(t, 1, rec.done)

	assert.True(t, reg.Dirty("periodic"))
	assert.True(t, a.Modified())

	envelope, err := reg.Snapshot("periodic")
	require.NoError(t, err)
	peak := 0.0
	for _, v := range envelope[1:] {
		peak = math.Max(peak, v)
	}
	assert.InDelta(t, 1.0, peak, 1e-9)
}

func TestRunAnalysisResetsIndexEachPass(t *testing.T) {
	reg := buffer.NewRegistry()
	require.NoError(t, reg.Create("periodic", cosineEnvelope(20000, 4000), 44100))

	rec := &recorder{}
	a := newTestAnalyzer(t, reg, "periodic", rec)

	_, err := a.RunAnalysis(1.0)
	require.NoError(t, err)
	rec.flat = nil

	// Second pass runs on the already normalised envelope and finds the same events.
	result, err := a.RunAnalysis(1.0)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Events)
	require.NotEmpty(t, rec.flat)
	assert.Equal(t, 0, rec.flat[0].Index)
	assert.Len(t, rec.score, 4, "score sink is cleared at the start of every pass")
	assert.Equal(t, 2, rec.done)
}

func TestRunAnalysisInvalidSmoothing(t *testing.T) {
	for _, factor := range []float64{0, -0.5, 1.0001, math.NaN(), math.Inf(1)} {
		reg := buffer.NewRegistry()
		require.NoError(t, reg.Create("buf", sineWave(5000, 100, 0.5, 44100), 44100))
		rec := &recorder{}
		a := newTestAnalyzer(t, reg, "buf", rec)

		_, err := a.RunAnalysis(factor)
		assert.ErrorIs(t, err, ErrInvalidSmoothing, "factor %v", factor)
		assert.Equal(t, []string{"done"}, rec.calls, "factor %v", factor)
		assert.False(t, reg.Dirty("buf"), "factor %v", factor)
	}
}

func TestRunAnalysisMissingBuffer(t *testing.T) {
	reg := buffer.NewRegistry()
	rec := &recorder{}
	a := newTestAnalyzer(t, reg, "nowhere", rec)

	result, err := a.RunAnalysis(0.01)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBufferNotFound)
	assert.ErrorIs(t, err, buffer.ErrNotFound)
	assert.Equal(t, 0, result.Events)
	assert.Equal(t, []string{"done"}, rec.calls)
}

func TestRunAnalysisShortBuffer(t *testing.T) {
	reg := buffer.NewRegistry()
	require.NoError(t, reg.Create("short", sineWave(LookAhead, 440, 0.5, 44100), 44100))
	rec := &recorder{}
	a := newTestAnalyzer(t, reg, "short", rec)

	result, err := a.RunAnalysis(0.01)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Events)
	assert.Equal(t, []string{"clear", "done"}, rec.calls)
	assert.True(t, reg.Dirty("short"))
}

func TestRunAnalysisSinkError(t *testing.T) {
	reg := buffer.NewRegistry()
	require.NoError(t, reg.Create("periodic", cosineEnvelope(20000, 4000), 44100))
	rec := &recorder{flatErr: errors.New("disk full")}
	a := newTestAnalyzer(t, reg, "periodic", rec)

	_, err := a.RunAnalysis(1.0)
	require.Error(t, err)
	assert.ErrorIs(t, err, rec.flatErr)
	assert.Empty(t, rec.score, "no score record without its flat record")
	assert.Equal(t, 1, rec.done)
	assert.True(t, reg.Dirty("periodic"))

	// The lease was released.
	_, err = reg.Snapshot("periodic")
	assert.NoError(t, err)
}

func TestRunAnalysisRejectsReentry(t *testing.T) {
	reg := buffer.NewRegistry()
	require.NoError(t, reg.Create("buf", cosineEnvelope(5000, 2000), 44100))

	rec := &recorder{}
	a := newTestAnalyzer(t, reg, "buf", rec)

	var nestedErr error
	rec.onClear = func() {
		_, nestedErr = a.RunAnalysis(0.5)
	}

	_, err := a.RunAnalysis(0.5)
	require.NoError(t, err)
	assert.ErrorIs(t, nestedErr, ErrBusy)
	assert.Equal(t, 1, rec.done)
}

func TestRequestRebindIsDeferred(t *testing.T) {
	reg := buffer.NewRegistry()
	require.NoError(t, reg.Create("first", cosineEnvelope(3000, 1500), 44100))
	require.NoError(t, reg.Create("second", cosineEnvelope(8000, 4000), 44100))

	rec := &recorder{}
	a := newTestAnalyzer(t, reg, "first", rec)
	assert.Equal(t, 3000, a.FrameCount())

	a.RequestRebind("second")
	assert.Equal(t, "first", a.Buffer(), "rebind waits for the next pass")

	result, err := a.RunAnalysis(1.0)
	require.NoError(t, err)
	assert.Equal(t, "second", result.Buffer)
	assert.Equal(t, "second", a.Buffer())
	assert.Equal(t, 8000, a.FrameCount())
	assert.True(t, reg.Dirty("second"))
	assert.False(t, reg.Dirty("first"))
}

func TestBufferNotificationsRefreshFrameCount(t *testing.T) {
	reg := buffer.NewRegistry()
	rec := &recorder{}
	a := newTestAnalyzer(t, reg, "later", rec)
	assert.Equal(t, 0, a.FrameCount())

	require.NoError(t, reg.Create("later", make([]float64, 1234), 44100))
	assert.Equal(t, 1234, a.FrameCount())
	assert.False(t, a.Modified())

	require.NoError(t, reg.Replace("later", make([]float64, 4321)))
	assert.Equal(t, 4321, a.FrameCount())
	assert.True(t, a.Modified())

	require.NoError(t, reg.Remove("later"))
	assert.Equal(t, 0, a.FrameCount())
}

func TestNewAnalyzerValidation(t *testing.T) {
	_, err := NewAnalyzer(nil, "x", nil, Sinks{}, nil)
	assert.Error(t, err)

	_, err = NewAnalyzer(buffer.NewRegistry(), "x", &Config{SampleRate: 0}, Sinks{}, nil)
	assert.Error(t, err)

	a, err := NewAnalyzer(buffer.NewRegistry(), "x", nil, Sinks{}, nil)
	require.NoError(t, err)
	defer a.Close()

	// No sinks at all is allowed.
	_, err = a.RunAnalysis(0.5)
	assert.ErrorIs(t, err, ErrBufferNotFound)
}
