package spancore

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector is an in-process store of ended sampled spans: it buffers frozen
// snapshots for batch retrieval by whatever drains them (a backend writer, a
// debug page, a test). It implements Exporter, so registering one wires it
// into the End pipeline.
// Safe for concurrent use by multiple goroutines.
type Collector struct {
	spans        []*SpanData
	spansCh      chan *SpanData
	stopCh       chan struct{}
	done         chan struct{}
	droppedCount atomic.Int64
	name         string
	mu           sync.Mutex
	closed       atomic.Bool
	syncMode     bool // Bypass the channel for deterministic tests.
}

// NewCollector creates a collector with the given name and channel buffer
// size.
func NewCollector(name string, bufferSize int) *Collector {
	c := &Collector{
		name:    name,
		spans:   make([]*SpanData, 0, 8), // Start with small capacity.
		spansCh: make(chan *SpanData, bufferSize),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.start()
	return c
}

// start runs the collector's main loop, receiving spans from the channel.
func (c *Collector) start() {
	defer close(c.done)

	for {
		select {
		case <-c.stopCh:
			// Drain remaining spans before shutdown.
			for {
				select {
				case data := <-c.spansCh:
					c.buffer(data)
				default:
					return
				}
			}
		case data := <-c.spansCh:
			c.buffer(data)
		}
	}
}

// Close shuts down the collector goroutine. Spans arriving afterwards are
// dropped and counted.
func (c *Collector) Close() {
	if c.closed.Swap(true) {
		return
	}
	close(c.stopCh)
	select {
	case <-c.done:
	case <-time.After(100 * time.Millisecond):
		// Timed out waiting for the drain; give up rather than block.
	}
}

// ExportSpan buffers an ended span with backpressure protection: if the
// channel is full the span is dropped and counted instead of blocking the
// ending goroutine. SpanData is frozen by End, so no copy is taken.
func (c *Collector) ExportSpan(data *SpanData) {
	if data == nil {
		c.droppedCount.Add(1)
		return
	}

	if c.syncMode {
		if c.closed.Load() {
			c.droppedCount.Add(1)
			return
		}
		c.buffer(data)
		return
	}

	select {
	case c.spansCh <- data:
	default:
		// Channel full - drop rather than block.
		c.droppedCount.Add(1)
	}
}

// buffer appends a span, growing the backing array geometrically.
func (c *Collector) buffer(data *SpanData) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.spans) >= cap(c.spans) {
		currentCap := cap(c.spans)
		var newCap int
		if currentCap < 1024 {
			newCap = currentCap * 2
		} else {
			// Grow by 50% for large buffers to limit memory overshoot.
			newCap = currentCap + currentCap/2
		}
		if newCap < 32 {
			newCap = 32
		}
		grown := make([]*SpanData, len(c.spans), newCap)
		copy(grown, c.spans)
		c.spans = grown
	}
	c.spans = append(c.spans, data)
}

// Drain returns all buffered spans and clears the buffer. The snapshots are
// immutable, so the result is safe to hold indefinitely.
func (c *Collector) Drain() []*SpanData {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.spans) == 0 {
		return nil
	}

	result := make([]*SpanData, len(c.spans))
	copy(result, c.spans)

	// Shrink only when the buffer is very oversized to avoid allocation
	// churn.
	if cap(c.spans) > 256 && len(c.spans) < cap(c.spans)/8 {
		newCap := cap(c.spans) / 4
		if newCap < 32 {
			newCap = 32
		}
		c.spans = make([]*SpanData, 0, newCap)
	} else {
		c.spans = c.spans[:0]
	}

	return result
}

// Name returns the name the collector was created with.
func (c *Collector) Name() string {
	return c.name
}

// Count returns the number of spans currently buffered.
func (c *Collector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.spans)
}

// DroppedCount returns the number of spans dropped due to backpressure.
func (c *Collector) DroppedCount() int64 {
	return c.droppedCount.Load()
}

// SetSyncMode makes span collection synchronous, bypassing the channel. Used
// by tests that need deterministic buffering.
func (c *Collector) SetSyncMode(sync bool) {
	c.syncMode = sync
}

// Reset clears the buffered spans and the drop counter.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.spans = c.spans[:0]
	c.droppedCount.Store(0)
}
