package processor

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/linuxmatters/timestruct/internal/buffer"
	"github.com/sirupsen/logrus"
)

var (
	// ErrBusy is returned when RunAnalysis is called while a pass is running.
	ErrBusy = errors.New("analysis pass already in progress")

	// ErrInvalidSmoothing is returned for smoothing factors outside (0,1].
	ErrInvalidSmoothing = errors.New("smoothing factor must be in (0,1]")

	// ErrBufferNotFound is returned when the bound buffer cannot be acquired.
	ErrBufferNotFound = errors.New("buffer unavailable")
)

// BufferOwner hands out exclusive access to named sample buffers.
// buffer.Registry implements it.
type BufferOwner interface {
	Acquire(name string) ([]float64, error)
	Release(name string)
	FrameCount(name string) (int, error)
	MarkDirty(name string)
	Subscribe(name string, fn func(buffer.Event)) (cancel func())
}

// FlatSink receives the 7-value record of every event.
type FlatSink interface {
	WriteFlat(r FlatRecord) error
}

// ScoreSink receives a Clear at the start of every pass, then one score
// record per event in event order.
type ScoreSink interface {
	Clear() error
	AddChord(r ScoreRecord) error
}

// CompletionSink is told once at the end of every pass.
type CompletionSink interface {
	Done()
}

// Sinks groups the outputs of an Analyzer. Nil members are skipped.
type Sinks struct {
	Flat       FlatSink
	Score      ScoreSink
	Completion CompletionSink
}

// ProgressFunc reports progress through the two stages of a pass:
// pass 1 "Smoothing" and pass 2 "Segmenting", each from 0.0 to 1.0.
type ProgressFunc func(pass int, passName string, progress float64)

// PassResult summarises one analysis pass.
type PassResult struct {
	Buffer    string
	Frames    int
	Events    int
	Smoothing float64
	MaxSample float64 // peak of the smoothed envelope before normalisation
	Elapsed   time.Duration
}

// Analyzer runs analysis passes over one named buffer at a time.
// Passes never overlap: a call made while one is running fails with ErrBusy.
type Analyzer struct {
	owner    BufferOwner
	sinks    Sinks
	encoder  Encoder
	logger   *logrus.Logger
	progress ProgressFunc

	// pass is held for the whole of RunAnalysis.
	pass sync.Mutex

	mu         sync.Mutex
	name       string
	pending    string
	hasPending bool
	frames     int
	modified   bool
	cancel     func()
}

// NewAnalyzer binds an analyzer to the buffer called name. The sample rate is
// used to convert sample positions to milliseconds. A nil logger discards
// log output.
func NewAnalyzer(owner BufferOwner, name string, config *Config, sinks Sinks, logger *logrus.Logger) (*Analyzer, error) {
	if owner == nil {
		return nil, errors.New("buffer owner is required")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %v", config.SampleRate)
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	a := &Analyzer{
		owner:   owner,
		sinks:   sinks,
		encoder: Encoder{SampleRate: config.SampleRate},
		logger:  logger,
	}
	a.bind(name)
	return a, nil
}

// OnProgress installs a progress callback. It must be called between passes.
func (a *Analyzer) OnProgress(fn ProgressFunc) {
	a.progress = fn
}

// Buffer returns the name of the buffer the next pass will analyse, ignoring
// any rebind that is still pending.
func (a *Analyzer) Buffer() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.name
}

// FrameCount returns the last known length of the bound buffer.
func (a *Analyzer) FrameCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frames
}

// Modified reports whether the bound buffer has changed since it was bound.
func (a *Analyzer) Modified() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.modified
}

// RequestRebind points the analyzer at another buffer. The switch happens at
// the start of the next pass, never during one. A later request replaces an
// earlier one that has not been applied yet.
func (a *Analyzer) RequestRebind(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = name
	a.hasPending = true
}

// Close cancels the buffer subscription.
func (a *Analyzer) Close() {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// RunAnalysis smooths the bound buffer in place and reports every
// dip→peak→dip event found in it.
//
// The completion sink is told exactly once for every call that is not
// rejected with ErrBusy, including calls that fail on an invalid smoothing
// factor or a missing buffer; those report zero events.
func (a *Analyzer) RunAnalysis(factor float64) (*PassResult, error) {
	if !a.pass.TryLock() {
		return nil, ErrBusy
	}
	defer a.pass.Unlock()

	a.applyPendingRebind()

	start := time.Now()
	name := a.Buffer()
	result := &PassResult{Buffer: name, Smoothing: factor}
	log := a.logger.WithFields(logrus.Fields{"buffer": name, "smoothing": factor})

	if math.IsNaN(factor) || factor <= 0 || factor > 1 {
		log.Warn("rejecting analysis pass")
		a.complete()
		return result, fmt.Errorf("%w: got %v", ErrInvalidSmoothing, factor)
	}

	samples, err := a.owner.Acquire(name)
	if err != nil {
		log.WithError(err).Warn("cannot acquire buffer")
		a.complete()
		return result, fmt.Errorf("%w: %w", ErrBufferNotFound, err)
	}
	result.Frames = len(samples)

	mutated, err := a.analyze(samples, factor, result)
	a.owner.Release(name)
	if mutated {
		a.owner.MarkDirty(name)
	}
	a.complete()

	result.Elapsed = time.Since(start)
	log = log.WithFields(logrus.Fields{
		"frames":  result.Frames,
		"events":  result.Events,
		"elapsed": result.Elapsed,
	})
	if err != nil {
		log.WithError(err).Error("analysis pass aborted")
		return result, err
	}
	log.Info("analysis pass complete")
	return result, nil
}

// analyze runs the filter and segmenter over a leased buffer. It reports
// whether the buffer was modified.
func (a *Analyzer) analyze(samples []float64, factor float64, result *PassResult) (bool, error) {
	if a.sinks.Score != nil {
		if err := a.sinks.Score.Clear(); err != nil {
			return false, fmt.Errorf("failed to clear score: %w", err)
		}
	}

	a.report(1, "Smoothing", 0.0)
	result.MaxSample = SmoothEnvelope(samples, factor)
	a.report(1, "Smoothing", 1.0)

	a.report(2, "Segmenting", 0.0)
	var seg Segmenter
	events, err := seg.Scan(samples, a.emit)
	result.Events = events
	if err != nil {
		return true, fmt.Errorf("event %d: %w", events, err)
	}
	a.report(2, "Segmenting", 1.0)

	return true, nil
}

// emit encodes a triple and hands both records to the sinks.
func (a *Analyzer) emit(t Triple, index int) error {
	flat, score := a.encoder.Encode(t, index)

	if a.sinks.Flat != nil {
		if err := a.sinks.Flat.WriteFlat(flat); err != nil {
			return fmt.Errorf("flat sink: %w", err)
		}
	}
	if a.sinks.Score != nil {
		if err := a.sinks.Score.AddChord(score); err != nil {
			return fmt.Errorf("score sink: %w", err)
		}
	}
	return nil
}

func (a *Analyzer) complete() {
	if a.sinks.Completion != nil {
		a.sinks.Completion.Done()
	}
}

func (a *Analyzer) report(pass int, name string, progress float64) {
	if a.progress != nil {
		a.progress(pass, name, progress)
	}
}

// applyPendingRebind switches buffers if a rebind was requested. It is only
// called with the pass lock held.
func (a *Analyzer) applyPendingRebind() {
	a.mu.Lock()
	if !a.hasPending {
		a.mu.Unlock()
		return
	}
	name := a.pending
	a.pending = ""
	a.hasPending = false
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	a.logger.WithField("buffer", name).Debug("rebinding analyzer")
	a.bind(name)
}

// bind subscribes to name and caches its frame count.
func (a *Analyzer) bind(name string) {
	frames, _ := a.owner.FrameCount(name)

	a.mu.Lock()
	a.name = name
	a.frames = frames
	a.modified = false
	a.mu.Unlock()

	cancel := a.owner.Subscribe(name, a.handleBufferEvent)

	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()
}

// handleBufferEvent refreshes the cached frame count on every notification.
func (a *Analyzer) handleBufferEvent(ev buffer.Event) {
	frames, err := a.owner.FrameCount(ev.Name)
	if err != nil {
		frames = 0
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if ev.Name != a.name {
		return
	}
	a.frames = frames
	if ev.Kind == buffer.EventModified {
		a.modified = true
	}
	a.logger.WithFields(logrus.Fields{
		"buffer": ev.Name,
		"event":  ev.Kind.String(),
		"frames": frames,
	}).Debug("buffer notification")
}
