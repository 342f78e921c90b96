package spancore

import (
	"crypto/rand"
	"encoding/binary"
	"runtime"
	"sync"
	"sync/atomic"
)

// idPool keeps a buffer of pre-generated IDs to amortize crypto/rand
// overhead. A background goroutine refills it; get falls back to the factory
// when the pool is drained under burst load.
type idPool[T any] struct {
	ids     chan T
	factory func() T
	stopCh  chan struct{}
	mu      sync.Mutex
	closed  bool
}

func newIDPool[T any](capacity int, factory func() T) *idPool[T] {
	p := &idPool[T]{
		ids:     make(chan T, capacity),
		factory: factory,
		stopCh:  make(chan struct{}),
	}
	go p.refill()
	return p
}

func (p *idPool[T]) get() T {
	select {
	case id := <-p.ids:
		return id
	default:
		// Pool empty, generate directly.
		return p.factory()
	}
}

func (p *idPool[T]) refill() {
	for {
		select {
		case <-p.stopCh:
			return
		case p.ids <- p.factory():
		}
	}
}

func (p *idPool[T]) close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		close(p.stopCh)
		p.closed = true
	}
}

// idGenerator hands out probabilistically unique trace and span IDs. Pools
// are created on first use; the process-wide instance lives for the life of
// the process.
type idGenerator struct {
	poolOnce sync.Once
	traceIDs *idPool[TraceID]
	spanIDs  *idPool[SpanID]
}

var idGen = &idGenerator{}

// fallbackSeq disambiguates IDs minted on the time-based fallback path.
var fallbackSeq atomic.Uint64

func (g *idGenerator) ensurePools() {
	g.poolOnce.Do(func() {
		// Pool size scales with CPUs to balance contention against memory.
		poolSize := runtime.NumCPU() * 100
		g.traceIDs = newIDPool(poolSize, randomTraceID)
		g.spanIDs = newIDPool(poolSize, randomSpanID)
	})
}

func (g *idGenerator) newTraceID() TraceID {
	g.ensurePools()
	return g.traceIDs.get()
}

func (g *idGenerator) newSpanID() SpanID {
	g.ensurePools()
	return g.spanIDs.get()
}

// randomTraceID returns a non-zero 128-bit ID. If crypto/rand fails it falls
// back to a time-seeded ID rather than failing the caller.
func randomTraceID() TraceID {
	var tid TraceID
	for {
		if _, err := rand.Read(tid[:]); err != nil {
			binary.BigEndian.PutUint64(tid[:8], uint64(clock.Now().UnixNano()))
			binary.BigEndian.PutUint64(tid[8:], fallbackSeq.Add(1))
		}
		if tid.IsValid() {
			return tid
		}
	}
}

// randomSpanID returns a non-zero 64-bit ID with the same fallback policy as
// randomTraceID.
func randomSpanID() SpanID {
	var sid SpanID
	for {
		if _, err := rand.Read(sid[:]); err != nil {
			binary.BigEndian.PutUint64(sid[:], uint64(clock.Now().UnixNano())^fallbackSeq.Add(1))
		}
		if sid.IsValid() {
			return sid
		}
	}
}
