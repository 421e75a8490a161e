// Package envplot renders a smoothed envelope and its events to an image.
package envplot

import (
	"fmt"
	"image/color"

	"github.com/linuxmatters/timestruct/internal/processor"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// maxLinePoints caps the number of points drawn for the envelope line.
const maxLinePoints = 4000

var (
	envelopeColor = color.RGBA{R: 40, G: 90, B: 200, A: 255}
	dipColor      = color.RGBA{R: 200, G: 60, B: 60, A: 255}
	peakColor     = color.RGBA{R: 40, G: 160, B: 70, A: 255}
)

// Envelope saves a plot of the envelope against time in milliseconds, with
// event dips and peaks marked. The image format follows the file extension
// (.png, .svg, .pdf).
func Envelope(path, title string, envelope []float64, sampleRate float64, records []processor.FlatRecord) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %v", sampleRate)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time (ms)"
	p.Y.Label.Text = "Envelope"

	if len(envelope) > 0 {
		line, err := plotter.NewLine(Downsample(envelope, sampleRate, maxLinePoints))
		if err != nil {
			return fmt.Errorf("envelope line: %w", err)
		}
		line.Color = envelopeColor
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add("envelope", line)
	}

	if len(records) > 0 {
		dips := make(plotter.XYs, 0, len(records)+1)
		peaks := make(plotter.XYs, 0, len(records))
		for i, r := range records {
			// Neighbouring events share a dip; draw it once.
			if i == 0 {
				dips = append(dips, plotter.XY{X: r.OpenDip.Ms, Y: r.OpenDip.Amp})
			}
			dips = append(dips, plotter.XY{X: r.CloseDip.Ms, Y: r.CloseDip.Amp})
			peaks = append(peaks, plotter.XY{X: r.Peak.Ms, Y: r.Peak.Amp})
		}

		dipScatter, err := plotter.NewScatter(dips)
		if err != nil {
			return fmt.Errorf("dip markers: %w", err)
		}
		dipScatter.GlyphStyle.Color = dipColor
		dipScatter.GlyphStyle.Shape = draw.TriangleGlyph{}
		dipScatter.GlyphStyle.Radius = vg.Points(3)

		peakScatter, err := plotter.NewScatter(peaks)
		if err != nil {
			return fmt.Errorf("peak markers: %w", err)
		}
		peakScatter.GlyphStyle.Color = peakColor
		peakScatter.GlyphStyle.Shape = draw.CircleGlyph{}
		peakScatter.GlyphStyle.Radius = vg.Points(3)

		p.Add(dipScatter, peakScatter)
		p.Legend.Add("dip", dipScatter)
		p.Legend.Add("peak", peakScatter)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(14*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}

// Downsample reduces samples to at most limit points by keeping the largest
// value of each bucket. X is in milliseconds.
func Downsample(samples []float64, sampleRate float64, limit int) plotter.XYs {
	n := len(samples)
	if limit <= 0 || n <= limit {
		pts := make(plotter.XYs, n)
		for i, v := range samples {
			pts[i] = plotter.XY{X: float64(i) / sampleRate * 1000, Y: v}
		}
		return pts
	}

	pts := make(plotter.XYs, 0, limit)
	for b := 0; b < limit; b++ {
		start := b * n / limit
		end := (b + 1) * n / limit
		best := start
		for i := start + 1; i < end; i++ {
			if samples[i] > samples[best] {
				best = i
			}
		}
		pts = append(pts, plotter.XY{X: float64(best) / sampleRate * 1000, Y: samples[best]})
	}
	return pts
}
