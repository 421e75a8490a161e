// Package runner drives analysis of audio files: it loads each file into the
// buffer registry, runs an analysis pass over it and writes the outputs.
package runner

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/linuxmatters/timestruct/internal/audio"
	"github.com/linuxmatters/timestruct/internal/buffer"
	"github.com/linuxmatters/timestruct/internal/envplot"
	"github.com/linuxmatters/timestruct/internal/eventdb"
	"github.com/linuxmatters/timestruct/internal/locale"
	"github.com/linuxmatters/timestruct/internal/logging"
	"github.com/linuxmatters/timestruct/internal/metrics"
	"github.com/linuxmatters/timestruct/internal/processor"
	"github.com/linuxmatters/timestruct/internal/sink"
	"github.com/sirupsen/logrus"
)

// Output file suffixes, appended to the output base name.
const (
	CollSuffix     = ".coll"
	ScoreSuffix    = "-score.txt"
	EnvelopeSuffix = "-envelope.wav"
	PlotSuffix     = "-envelope.png"
)

// Options control what a Runner produces.
type Options struct {
	Smoothing    float64
	OutputDir    string // empty writes next to each input file
	AnalysisOnly bool   // analyse without writing any output files
	Envelope     bool   // write the smoothed envelope as WAV
	Plot         bool   // render the envelope and events to PNG
	Logs         bool   // write the analysis report

	Store   *eventdb.Store    // nil skips persistence
	Metrics *metrics.Recorder // nil skips metrics
	Host    locale.Host
}

// Result describes one processed file.
type Result struct {
	InputPath  string
	OutputBase string
	Metadata   *audio.Metadata
	Pass       *processor.PassResult
	Flat       []processor.FlatRecord
	Score      []processor.ScoreRecord
	Envelope   []float64
	RunID      string

	// Paths of the files written, empty when not written.
	CollPath     string
	ScorePath    string
	EnvelopePath string
	PlotPath     string
	ReportPath   string

	ReadTime       time.Duration
	SmoothingTime  time.Duration
	SegmentingTime time.Duration
}

// lane is one analyzer and the collector it reports to. Files that share a
// sample rate share a lane; the analyzer is rebound to each new buffer.
type lane struct {
	analyzer  *processor.Analyzer
	collector *sink.Collector
}

// Runner processes files one at a time.
type Runner struct {
	opts     Options
	logger   *logrus.Logger
	registry *buffer.Registry

	mu    sync.Mutex
	lanes map[int]*lane
}

// New creates a Runner. A nil logger discards log output.
func New(opts Options, logger *logrus.Logger) *Runner {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	if opts.Smoothing == 0 {
		opts.Smoothing = processor.DefaultConfig().Smoothing
	}
	return &Runner{
		opts:     opts,
		logger:   logger,
		registry: buffer.NewRegistry(),
		lanes:    make(map[int]*lane),
	}
}

// Close releases the analyzers' buffer subscriptions.
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.lanes {
		l.analyzer.Close()
	}
	r.lanes = make(map[int]*lane)
}

// ProcessFile analyses one audio file. If progress is not nil it is called
// at the start and end of each stage. A Result is returned alongside most
// errors so callers can report what was read.
func (r *Runner) ProcessFile(inputPath string, progress processor.ProgressFunc) (*Result, error) {
	log := r.logger.WithField("file", inputPath)
	res := &Result{
		InputPath:  inputPath,
		OutputBase: r.outputBase(inputPath),
	}

	readStart := time.Now()
	samples, meta, err := audio.ReadMono(inputPath)
	if err != nil {
		return res, err
	}
	res.Metadata = meta
	res.ReadTime = time.Since(readStart)
	log.WithFields(logrus.Fields{
		"frames":      meta.Frames,
		"sample_rate": meta.SampleRate,
		"channels":    meta.Channels,
	}).Debug("audio loaded")

	name, err := r.register(inputPath, samples, meta.SampleRate)
	if err != nil {
		return res, err
	}
	defer r.registry.Remove(name)

	l, err := r.laneFor(name, meta.SampleRate)
	if err != nil {
		return res, err
	}

	timer := &stageTimer{forward: progress}
	l.analyzer.OnProgress(timer.callback)

	pass, err := l.analyzer.RunAnalysis(r.opts.Smoothing)
	res.Pass = pass
	res.SmoothingTime = timer.elapsed[1]
	res.SegmentingTime = timer.elapsed[2]
	if r.opts.Metrics != nil {
		r.opts.Metrics.ObservePass(pass, err)
	}
	if err != nil {
		return res, fmt.Errorf("analysis failed: %w", err)
	}

	res.Flat = l.collector.Flat()
	res.Score = l.collector.Score()
	if res.Envelope, err = r.registry.Snapshot(name); err != nil {
		return res, err
	}

	if r.opts.Store != nil {
		run, err := r.opts.Store.SaveRun(eventdb.Run{
			Source:     inputPath,
			SampleRate: meta.SampleRate,
			Frames:     pass.Frames,
			Smoothing:  pass.Smoothing,
			MaxSample:  pass.MaxSample,
			Elapsed:    pass.Elapsed,
		}, res.Flat)
		if err != nil {
			return res, err
		}
		res.RunID = run.RunID
	}

	if r.opts.AnalysisOnly {
		return res, nil
	}

	if err := r.writeOutputs(res, l.collector); err != nil {
		return res, err
	}

	if r.opts.Logs {
		report := logging.ReportData{
			InputPath:      inputPath,
			OutputBase:     res.OutputBase,
			StartTime:      readStart,
			EndTime:        time.Now(),
			ReadTime:       res.ReadTime,
			SmoothingTime:  res.SmoothingTime,
			SegmentingTime: res.SegmentingTime,
			Result:         pass,
			Envelope:       res.Envelope,
			Flat:           res.Flat,
			Score:          res.Score,
			SampleRate:     meta.SampleRate,
			Channels:       meta.Channels,
			DurationSecs:   meta.Duration,
			Host:           r.opts.Host,
		}
		if err := logging.GenerateReport(report); err != nil {
			return res, err
		}
		res.ReportPath = logging.ReportPath(res.OutputBase)
	}

	return res, nil
}

// writeOutputs writes the coll and score files, and the envelope and plot
// when requested.
func (r *Runner) writeOutputs(res *Result, c *sink.Collector) error {
	if dir := filepath.Dir(res.OutputBase); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	res.CollPath = res.OutputBase + CollSuffix
	res.ScorePath = res.OutputBase + ScoreSuffix
	if err := writeEvents(c, res.CollPath, res.ScorePath); err != nil {
		return err
	}

	if r.opts.Envelope {
		path := res.OutputBase + EnvelopeSuffix
		if err := audio.WriteMono(path, res.Envelope, res.Metadata.SampleRate); err != nil {
			return err
		}
		res.EnvelopePath = path
	}

	if r.opts.Plot {
		path := res.OutputBase + PlotSuffix
		title := filepath.Base(res.InputPath)
		if err := envplot.Envelope(path, title, res.Envelope, float64(res.Metadata.SampleRate), res.Flat); err != nil {
			return err
		}
		res.PlotPath = path
	}
	return nil
}

// writeEvents replays the collected pass into the coll and score files.
func writeEvents(c *sink.Collector, collPath, scorePath string) (err error) {
	collFile, err := os.Create(collPath)
	if err != nil {
		return fmt.Errorf("failed to create coll file: %w", err)
	}
	defer func() {
		if cerr := collFile.Close(); err == nil {
			err = cerr
		}
	}()

	scoreFile, err := os.Create(scorePath)
	if err != nil {
		return fmt.Errorf("failed to create score file: %w", err)
	}
	defer func() {
		if cerr := scoreFile.Close(); err == nil {
			err = cerr
		}
	}()

	coll := sink.NewCollWriter(collFile)
	score := sink.NewScoreWriter(scoreFile)
	if err := c.Replay(coll, score); err != nil {
		return fmt.Errorf("failed to write events: %w", err)
	}
	return errors.Join(coll.Flush(), score.Flush())
}

// register stores samples under a name derived from the file name, adding a
// numeric suffix if that name is taken.
func (r *Runner) register(inputPath string, samples []float64, sampleRate int) (string, error) {
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	name := base
	for i := 2; ; i++ {
		err := r.registry.Create(name, samples, sampleRate)
		if err == nil {
			return name, nil
		}
		if !errors.Is(err, buffer.ErrExists) {
			return "", err
		}
		name = fmt.Sprintf("%s#%d", base, i)
	}
}

// laneFor returns the lane for sampleRate, rebinding its analyzer to name,
// or creates one bound to name.
func (r *Runner) laneFor(name string, sampleRate int) (*lane, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.lanes[sampleRate]; ok {
		l.analyzer.RequestRebind(name)
		return l, nil
	}

	collector := sink.NewCollector()
	config := &processor.Config{SampleRate: float64(sampleRate), Smoothing: r.opts.Smoothing}
	analyzer, err := processor.NewAnalyzer(r.registry, name, config, processor.Sinks{
		Flat:       collector,
		Score:      collector,
		Completion: collector,
	}, r.logger)
	if err != nil {
		return nil, err
	}

	l := &lane{analyzer: analyzer, collector: collector}
	r.lanes[sampleRate] = l
	return l, nil
}

// outputBase returns the output path for inputPath without an extension.
func (r *Runner) outputBase(inputPath string) string {
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	dir := r.opts.OutputDir
	if dir == "" {
		dir = filepath.Dir(inputPath)
	}
	return filepath.Join(dir, base)
}

// stageTimer measures each analysis stage from its 0.0 to its 1.0 report.
type stageTimer struct {
	forward processor.ProgressFunc
	started [3]time.Time
	elapsed [3]time.Duration
}

func (s *stageTimer) callback(pass int, passName string, progress float64) {
	if pass >= 1 && pass <= 2 {
		switch progress {
		case 0.0:
			s.started[pass] = time.Now()
		case 1.0:
			s.elapsed[pass] = time.Since(s.started[pass])
		}
	}
	if s.forward != nil {
		s.forward(pass, passName, progress)
	}
}
