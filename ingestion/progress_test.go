package ingestion

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestProgress(w io.Writer, batches, passages int) (*embedProgress, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	p := &embedProgress{
		w:             w,
		totalBatches:  batches,
		totalPassages: passages,
		now:           clock.now,
		start:         clock.t,
	}
	return p, clock
}

func TestEmbedProgress(t *testing.T) {
	t.Run("reports batches and passages", func(t *testing.T) {
		var buf bytes.Buffer
		p, clock := newTestProgress(&buf, 2, 150)

		clock.advance(time.Second)
		p.batchDone(100)
		assert.Contains(t, buf.String(), "batch 1/2, 100/150 passages (67%), 100.0 passages/s")

		clock.advance(time.Second)
		p.batchDone(50)
		assert.Contains(t, buf.String(), "batch 2/2, 150/150 passages (100%), 75.0 passages/s")

		summary := p.done()
		assert.Equal(t, embedSummary{Batches: 2, Passages: 150, Elapsed: 2 * time.Second}, summary)
		assert.True(t, strings.HasSuffix(buf.String(), "\n"))
	})

	t.Run("throttles lines between batches", func(t *testing.T) {
		var buf bytes.Buffer
		p, clock := newTestProgress(&buf, 4, 4)

		p.batchDone(1)
		p.batchDone(1)
		assert.Equal(t, 1, strings.Count(buf.String(), "\r"), "second batch falls inside the interval")

		clock.advance(progressInterval)
		p.batchDone(1)
		assert.Equal(t, 2, strings.Count(buf.String(), "\r"))

		p.batchDone(1)
		assert.Equal(t, 3, strings.Count(buf.String(), "\r"), "last batch is always reported")
		assert.Contains(t, buf.String(), "batch 4/4")
	})

	t.Run("no output before any batch", func(t *testing.T) {
		var buf bytes.Buffer
		p, _ := newTestProgress(&buf, 3, 30)

		summary := p.done()
		assert.Empty(t, buf.String())
		assert.Zero(t, summary.Batches)
	})

	t.Run("nil writer still counts", func(t *testing.T) {
		p, clock := newTestProgress(nil, 2, 10)
		clock.advance(time.Second)
		p.batchDone(6)
		p.batchDone(4)

		summary := p.done()
		assert.Equal(t, 2, summary.Batches)
		assert.Equal(t, 10, summary.Passages)
		assert.Equal(t, time.Second, summary.Elapsed)
	})
}

func TestPercentAndRate(t *testing.T) {
	assert.InDelta(t, 50.0, percent(1, 2), 1e-9)
	assert.InDelta(t, 100.0, percent(0, 0), 1e-9)
	assert.Zero(t, rate(10, 0))
	assert.InDelta(t, 4.0, rate(8, 2*time.Second), 1e-9)
}
