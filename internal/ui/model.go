// Package ui provides the Bubbletea terminal user interface for timestruct
package ui

import (
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
)

// log receives UI debug output. It discards until SetLogger is called.
var log = discardLogger()

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// SetLogger routes UI debug output to l.
func SetLogger(l *logrus.Logger) {
	if l == nil {
		l = discardLogger()
	}
	log = l
}

// Spinner frames for the active file
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// FileStatus represents the processing state of a single file
type FileStatus int

const (
	StatusQueued FileStatus = iota
	StatusSmoothing
	StatusSegmenting
	StatusComplete
	StatusError
)

func (s FileStatus) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusSmoothing:
		return "smoothing"
	case StatusSegmenting:
		return "segmenting"
	case StatusComplete:
		return "complete"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// FileProgress tracks progress for a single audio file
type FileProgress struct {
	InputPath  string
	OutputPath string
	Status     FileStatus

	// Phase tracking
	CurrentPass int // 1 or 2
	PassName    string

	// Progress tracking
	Progress    float64 // 0.0 to 1.0
	StartTime   time.Time
	ElapsedTime time.Duration

	// Completion results
	Events    int
	Frames    int
	MaxSample float64
	RunID     string

	// Error tracking
	Error error
}

// Model is the Bubbletea model for the processing UI
type Model struct {
	// File queue
	Files          []FileProgress
	CurrentIndex   int
	TotalFiles     int
	CompletedFiles int
	FailedFiles    int
	TotalEvents    int

	// Global state
	StartTime time.Time
	Done      bool

	spinnerIndex int

	// Terminal dimensions
	Width  int
	Height int
}

// NewModel creates a new UI model with the given input files
func NewModel(inputFiles []string) Model {
	files := make([]FileProgress, len(inputFiles))
	for i, path := range inputFiles {
		files[i] = FileProgress{
			InputPath: path,
			Status:    StatusQueued,
		}
	}

	return Model{
		Files:        files,
		CurrentIndex: -1, // No file processing yet
		TotalFiles:   len(inputFiles),
		StartTime:    time.Now(),
	}
}

// Init starts the spinner. Progress arrives through tea.Program.Send.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		log.Debugf("[UI] Window size: %dx%d", m.Width, m.Height)

	case tickMsg:
		if m.Done {
			return m, nil
		}
		m.spinnerIndex = (m.spinnerIndex + 1) % len(spinnerFrames)
		if m.CurrentIndex >= 0 && m.CurrentIndex < len(m.Files) {
			f := &m.Files[m.CurrentIndex]
			if f.Status == StatusSmoothing || f.Status == StatusSegmenting {
				f.ElapsedTime = time.Since(f.StartTime)
			}
		}
		return m, tickCmd()

	case ProgressMsg:
		log.Debugf("[UI] ProgressMsg received: Pass %d, %.1f%%", msg.Pass, msg.Progress*100)
		if m.CurrentIndex >= 0 && m.CurrentIndex < len(m.Files) {
			m.Files[m.CurrentIndex] = updateFileProgress(m.Files[m.CurrentIndex], msg)
		}
		return m, nil

	case FileStartMsg:
		log.Debugf("[UI] FileStartMsg received: index=%d, file=%s", msg.FileIndex, msg.FileName)
		if msg.FileIndex < 0 || msg.FileIndex >= len(m.Files) {
			return m, nil
		}
		m.CurrentIndex = msg.FileIndex
		m.Files[m.CurrentIndex].Status = StatusSmoothing
		m.Files[m.CurrentIndex].StartTime = time.Now()
		return m, nil

	case FileCompleteMsg:
		log.Debugf("[UI] FileCompleteMsg received: index=%d", msg.FileIndex)
		if msg.FileIndex >= 0 && msg.FileIndex < len(m.Files) {
			f := &m.Files[msg.FileIndex]
			f.Events = msg.Events
			f.Frames = msg.Frames
			f.MaxSample = msg.MaxSample
			f.OutputPath = msg.OutputPath
			f.RunID = msg.RunID
			f.Error = msg.Error
			f.ElapsedTime = time.Since(f.StartTime)

			if msg.Error != nil {
				f.Status = StatusError
				m.FailedFiles++
			} else {
				f.Status = StatusComplete
				m.CompletedFiles++
				m.TotalEvents += msg.Events
			}
		}
		return m, nil

	case AllCompleteMsg:
		log.Debug("[UI] AllCompleteMsg received")
		m.Done = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the UI
func (m Model) View() string {
	if m.Width == 0 {
		return fmt.Sprintf("Initializing...\nFiles: %d\n", len(m.Files))
	}

	if m.Done {
		return renderCompletionSummary(m)
	}

	return renderProcessingView(m)
}

// updateFileProgress updates a FileProgress based on a ProgressMsg
func updateFileProgress(fp FileProgress, msg ProgressMsg) FileProgress {
	if msg.Pass != fp.CurrentPass {
		log.Debugf("[UI] Pass transition: %d -> %d", fp.CurrentPass, msg.Pass)
	}

	fp.Progress = msg.Progress
	fp.CurrentPass = msg.Pass
	fp.PassName = msg.PassName
	fp.ElapsedTime = time.Since(fp.StartTime)

	switch msg.Pass {
	case 1:
		fp.Status = StatusSmoothing
	case 2:
		fp.Status = StatusSegmenting
	}

	return fp
}

// tickCmd returns a command that sends a tick message every 100ms
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}
