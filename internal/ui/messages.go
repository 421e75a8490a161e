package ui

// ProgressMsg represents a progress update from the analyzer
type ProgressMsg struct {
	Pass     int     // 1 or 2
	PassName string  // "Smoothing" or "Segmenting"
	Progress float64 // 0.0 to 1.0
}

// FileStartMsg indicates a new file has started processing
type FileStartMsg struct {
	FileIndex int
	FileName  string
}

// FileCompleteMsg indicates a file has finished processing
type FileCompleteMsg struct {
	FileIndex  int
	Events     int
	Frames     int
	MaxSample  float64
	OutputPath string // coll file, empty when nothing was written
	RunID      string
	Error      error
}

// AllCompleteMsg indicates all files have been processed
type AllCompleteMsg struct{}

// tickMsg is sent for spinner animation
type tickMsg struct{}
