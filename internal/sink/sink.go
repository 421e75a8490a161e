// Package sink provides the outputs an analysis pass writes its events to:
// an in-memory collector and text writers for Max coll and bach.roll
// addchord formats.
package sink

import (
	"sync"

	"github.com/linuxmatters/timestruct/internal/processor"
)

// Collector keeps the records of the most recent pass in memory.
// It implements processor.FlatSink, processor.ScoreSink and
// processor.CompletionSink.
type Collector struct {
	mu     sync.Mutex
	flat   []processor.FlatRecord
	score  []processor.ScoreRecord
	passes int
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// WriteFlat appends a flat record.
func (c *Collector) WriteFlat(r processor.FlatRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flat = append(c.flat, r)
	return nil
}

// Clear drops everything collected so far. Flat records are dropped too so
// the collector always reflects a single pass.
func (c *Collector) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flat = nil
	c.score = nil
	return nil
}

// AddChord appends a score record.
func (c *Collector) AddChord(r processor.ScoreRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.score = append(c.score, r)
	return nil
}

// Done counts completed passes.
func (c *Collector) Done() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.passes++
}

// Passes returns how many passes have completed.
func (c *Collector) Passes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.passes
}

// Flat returns a copy of the flat records.
func (c *Collector) Flat() []processor.FlatRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]processor.FlatRecord(nil), c.flat...)
}

// Score returns a copy of the score records.
func (c *Collector) Score() []processor.ScoreRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]processor.ScoreRecord(nil), c.score...)
}

// Replay sends the collected records to other sinks as a pass would:
// one Clear on score, then each event's flat and score record in order.
// Either sink may be nil.
func (c *Collector) Replay(flat processor.FlatSink, score processor.ScoreSink) error {
	flats, scores := c.Flat(), c.Score()

	if score != nil {
		if err := score.Clear(); err != nil {
			return err
		}
	}
	for i := range flats {
		if flat != nil {
			if err := flat.WriteFlat(flats[i]); err != nil {
				return err
			}
		}
		if score != nil && i < len(scores) {
			if err := score.AddChord(scores[i]); err != nil {
				return err
			}
		}
	}
	return nil
}
