package main

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/linuxmatters/timestruct/internal/cli"
	"github.com/linuxmatters/timestruct/internal/eventdb"
	"github.com/linuxmatters/timestruct/internal/locale"
	"github.com/linuxmatters/timestruct/internal/logging"
	"github.com/linuxmatters/timestruct/internal/metrics"
	"github.com/linuxmatters/timestruct/internal/runner"
	"github.com/linuxmatters/timestruct/internal/ui"
	"github.com/sirupsen/logrus"
)

var (
	version = "0.0.1"
)

// CLI defines the command-line interface
type CLI struct {
	Version      bool     `short:"v" help:"Show version information"`
	Smoothing    float64  `short:"s" default:"0.001" env:"TIMESTRUCT_SMOOTHING" help:"Envelope smoothing factor in [0,1]"`
	Output       string   `short:"o" type:"path" help:"Directory for output files (default: next to each input)"`
	Envelope     bool     `help:"Write the smoothed envelope as a WAV file"`
	Plot         bool     `help:"Render the envelope and events to PNG"`
	DB           string   `name:"db" type:"path" env:"TIMESTRUCT_DB" help:"SQLite database to record runs in"`
	Metrics      string   `type:"path" env:"TIMESTRUCT_METRICS" help:"Write Prometheus metrics to this textfile"`
	Logs         bool     `help:"Save detailed analysis reports"`
	AnalysisOnly bool     `help:"Print the analysis without writing output files"`
	Files        []string `arg:"" name:"files" help:"WAV files to analyse" type:"existingfile" optional:""`
}

func main() {
	// A missing .env is fine; the environment and flags still apply.
	_ = godotenv.Load()

	cliArgs := &CLI{}
	ctx := kong.Parse(cliArgs,
		kong.Name("timestruct"),
		kong.Description("Amplitude event extractor"),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
		},
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
	)

	// Handle version flag
	if cliArgs.Version {
		cli.PrintVersion(os.Stdout, version)
		os.Exit(0)
	}

	// Validate input
	if len(cliArgs.Files) == 0 {
		cli.PrintError("No input files specified")
		ctx.PrintUsage(false)
		os.Exit(1)
	}

	log := newDebugLogger("timestruct-debug.log")
	ui.SetLogger(log)

	opts := runner.Options{
		Smoothing:    cliArgs.Smoothing,
		OutputDir:    cliArgs.Output,
		AnalysisOnly: cliArgs.AnalysisOnly,
		Envelope:     cliArgs.Envelope,
		Plot:         cliArgs.Plot,
		Logs:         cliArgs.Logs,
		Host:         locale.Detect(),
	}

	if cliArgs.DB != "" {
		store, err := eventdb.Open(cliArgs.DB)
		if err != nil {
			cli.PrintError(fmt.Sprintf("Failed to open database: %v", err))
			os.Exit(1)
		}
		defer store.Close()
		opts.Store = store
	}

	if cliArgs.Metrics != "" {
		opts.Metrics = metrics.New()
	}

	r := runner.New(opts, log)
	defer r.Close()

	var failed bool
	if cliArgs.AnalysisOnly {
		failed = runAnalysisOnly(r, cliArgs.Files, log)
	} else {
		failed = runInteractive(r, cliArgs.Files, log)
	}

	if opts.Metrics != nil {
		if err := opts.Metrics.WriteTextfile(cliArgs.Metrics); err != nil {
			cli.PrintError(fmt.Sprintf("Failed to write metrics: %v", err))
			failed = true
		}
	}

	if failed {
		// Deferred closes do not run after os.Exit.
		r.Close()
		if opts.Store != nil {
			opts.Store.Close()
		}
		os.Exit(1)
	}
}

// newDebugLogger opens the debug log file. If it cannot be created the
// logger discards its output.
func newDebugLogger(path string) *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.DebugLevel)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})

	f, err := os.Create(path)
	if err != nil {
		log.SetOutput(io.Discard)
		return log
	}
	log.SetOutput(f)
	return log
}

// runAnalysisOnly prints the analysis of each file to stdout.
func runAnalysisOnly(r *runner.Runner, files []string, log *logrus.Logger) bool {
	var failed bool
	for _, inputPath := range files {
		log.Debugf("[MAIN] Analysing %s", inputPath)
		res, err := r.ProcessFile(inputPath, nil)
		if err != nil {
			log.WithError(err).Errorf("[MAIN] Analysis failed for %s", inputPath)
			cli.PrintError(fmt.Sprintf("%s: %v", inputPath, err))
			failed = true
			continue
		}
		logging.DisplayEvents(os.Stdout, inputPath, res.Metadata, res.Pass, res.Score)
		if res.RunID != "" {
			cli.PrintKeyValue(os.Stdout, "Run", res.RunID)
		}
	}
	return failed
}

// runInteractive processes files in the background behind the Bubbletea UI.
func runInteractive(r *runner.Runner, files []string, log *logrus.Logger) bool {
	model := ui.NewModel(files)

	// Start the TUI
	p := tea.NewProgram(model, tea.WithAltScreen())

	var failed atomic.Bool

	// Start processing in background
	go func() {
		for i, inputPath := range files {
			// Signal file start
			log.Debugf("[MAIN] Sending FileStartMsg for file %d: %s", i, inputPath)
			p.Send(ui.FileStartMsg{
				FileIndex: i,
				FileName:  inputPath,
			})

			ph := &progressHandler{p: p, log: log}

			start := time.Now()
			res, err := r.ProcessFile(inputPath, ph.callback)
			if err != nil {
				log.WithError(err).Errorf("[MAIN] ProcessFile failed for %s", inputPath)
				failed.Store(true)
				p.Send(ui.FileCompleteMsg{
					FileIndex: i,
					Error:     err,
				})
				continue
			}
			log.Debugf("[MAIN] %s: %d events in %s", inputPath, res.Pass.Events, time.Since(start))

			// Signal file complete with actual data
			p.Send(ui.FileCompleteMsg{
				FileIndex:  i,
				Events:     res.Pass.Events,
				Frames:     res.Pass.Frames,
				MaxSample:  res.Pass.MaxSample,
				OutputPath: res.CollPath,
				RunID:      res.RunID,
			})
		}

		// Signal all complete
		log.Debug("[MAIN] Sending AllCompleteMsg")
		p.Send(ui.AllCompleteMsg{})
	}()

	// Run the program
	if _, err := p.Run(); err != nil {
		cli.PrintError(fmt.Sprintf("UI error: %v", err))
		return true
	}
	return failed.Load()
}

// progressHandler forwards analysis progress to the UI
type progressHandler struct {
	p   *tea.Program
	log *logrus.Logger
}

func (ph *progressHandler) callback(pass int, passName string, progress float64) {
	ph.log.Debugf("[MAIN] Sending ProgressMsg: Pass %d (%s), Progress %.1f%%", pass, passName, progress*100)
	ph.p.Send(ui.ProgressMsg{
		Pass:     pass,
		PassName: passName,
		Progress: progress,
	})
}
