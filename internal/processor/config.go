package processor

// Config holds the settings an Analyzer is built with.
type Config struct {
	// SampleRate of the analysed buffers, in frames per second. Positions are
	// converted to milliseconds with it.
	SampleRate float64

	// Smoothing is the factor callers pass to RunAnalysis when the user has
	// not chosen one. The analyzer itself never falls back to it.
	Smoothing float64
}

// DefaultConfig returns the settings used when nothing else is specified.
func DefaultConfig() *Config {
	return &Config{
		SampleRate: 44100,
		Smoothing:  0.001,
	}
}
