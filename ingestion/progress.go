package ingestion

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// progressInterval is the minimum time between two progress lines.
const progressInterval = 500 * time.Millisecond

// embedSummary describes a finished embedding run.
type embedSummary struct {
	Batches  int
	Passages int
	Elapsed  time.Duration
}

// embedProgress counts finished embedding batches. Batches complete out of
// order on the worker pool, so it keeps totals rather than positions.
type embedProgress struct {
	w             io.Writer
	totalBatches  int
	totalPassages int
	now           func() time.Time

	mu       sync.Mutex
	batches  int
	passages int
	start    time.Time
	printed  time.Time
	wrote    bool
}

func newEmbedProgress(w io.Writer, totalBatches, totalPassages int) *embedProgress {
	p := &embedProgress{
		w:             w,
		totalBatches:  totalBatches,
		totalPassages: totalPassages,
		now:           time.Now,
	}
	p.start = p.now()
	return p
}

// batchDone records a batch of n embedded passages. A line is written at
// most once per progressInterval, and always for the last batch.
func (p *embedProgress) batchDone(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.batches++
	p.passages += n
	if p.w == nil {
		return
	}

	now := p.now()
	if p.batches < p.totalBatches && p.wrote && now.Sub(p.printed) < progressInterval {
		return
	}
	p.printed = now
	p.wrote = true
	fmt.Fprintf(p.w, "\rembedding batch %d/%d, %d/%d passages (%.0f%%), %.1f passages/s",
		p.batches, p.totalBatches, p.passages, p.totalPassages,
		percent(p.passages, p.totalPassages), rate(p.passages, now.Sub(p.start)))
}

// done ends the progress line and returns what was embedded.
func (p *embedProgress) done() embedSummary {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.wrote {
		fmt.Fprintln(p.w)
		p.wrote = false
	}
	return embedSummary{
		Batches:  p.batches,
		Passages: p.passages,
		Elapsed:  p.now().Sub(p.start),
	}
}

func percent(n, total int) float64 {
	if total <= 0 {
		return 100
	}
	return float64(n) / float64(total) * 100
}

func rate(n int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(n) / elapsed.Seconds()
}
