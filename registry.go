package spancore

import (
	"errors"
	"sync"
	"sync/atomic"
)

// RunningSpanStore is notified when a recording span becomes active or
// inactive. Implementations must tolerate calls from any goroutine and must
// not block the caller.
type RunningSpanStore interface {
	OnStart(s *Span)
	OnEnd(s *Span)
}

// spanRegistry is the default RunningSpanStore: an in-process set of live
// recording spans that can be snapshotted for introspection.
// Safe for concurrent use by multiple goroutines.
type spanRegistry struct {
	mu    sync.RWMutex
	spans map[*spanImpl]*Span
}

func newSpanRegistry() *spanRegistry {
	return &spanRegistry{spans: make(map[*spanImpl]*Span)}
}

func (r *spanRegistry) OnStart(s *Span) {
	if s == nil || s.impl == nil {
		return
	}
	r.mu.Lock()
	r.spans[s.impl] = s
	r.mu.Unlock()
}

func (r *spanRegistry) OnEnd(s *Span) {
	if s == nil || s.impl == nil {
		return
	}
	r.mu.Lock()
	delete(r.spans, s.impl)
	r.mu.Unlock()
}

// activeSpans snapshots every live span. Each snapshot takes only that span's
// own lock, so a long-lived span never blocks the whole registry.
func (r *spanRegistry) activeSpans() []*SpanData {
	r.mu.RLock()
	impls := make([]*spanImpl, 0, len(r.spans))
	for impl := range r.spans {
		impls = append(impls, impl)
	}
	r.mu.RUnlock()

	if len(impls) == 0 {
		return nil
	}
	out := make([]*SpanData, 0, len(impls))
	for _, impl := range impls {
		out = append(out, impl.snapshot())
	}
	return out
}

func (r *spanRegistry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.spans)
}

var defaultRegistry = newSpanRegistry()

var (
	runningMu   sync.RWMutex
	runningHook RunningSpanStore = defaultRegistry
)

func runningStore() RunningSpanStore {
	runningMu.RLock()
	defer runningMu.RUnlock()
	return runningHook
}

// SetRunningSpanStore replaces the process-wide running-span hook. Passing
// nil restores the built-in registry.
func SetRunningSpanStore(s RunningSpanStore) {
	runningMu.Lock()
	defer runningMu.Unlock()
	if s == nil {
		runningHook = defaultRegistry
		return
	}
	runningHook = s
}

// ActiveSpans returns snapshots of the recording spans currently running, as
// seen by the built-in registry.
func ActiveSpans() []*SpanData {
	return defaultRegistry.activeSpans()
}

// ActiveSpanCount returns the number of recording spans currently running in
// the built-in registry.
func ActiveSpanCount() int {
	return defaultRegistry.count()
}

// Exporter receives the frozen snapshot of every sampled span when it ends.
// The SpanData is immutable; exporters may read it from any goroutine without
// locking.
type Exporter interface {
	ExportSpan(data *SpanData)
}

type exporterEntry struct {
	exporter Exporter
	id       uint64
	async    bool
}

// pipeline fans ended sampled spans out to the registered exporters. Exporter
// panics are contained so that tracing never crashes the application.
// Safe for concurrent use by multiple goroutines.
type pipeline struct {
	exporters      []exporterEntry
	panicHook      func(exporterID uint64, r interface{})
	workers        *workerPool
	exportersLock  sync.RWMutex
	nextID         atomic.Uint64
	droppedExports atomic.Uint64
}

var exportPipeline = &pipeline{}

// RegisterExporter adds an exporter invoked synchronously at End. The
// returned ID unregisters it.
func RegisterExporter(e Exporter) uint64 {
	return exportPipeline.register(e, false)
}

// RegisterExporterAsync adds an exporter invoked off the ending goroutine,
// on the export worker pool when one is enabled.
func RegisterExporterAsync(e Exporter) uint64 {
	return exportPipeline.register(e, true)
}

// UnregisterExporter removes an exporter by the ID RegisterExporter returned.
func UnregisterExporter(id uint64) {
	exportPipeline.unregister(id)
}

// SetExporterPanicHook sets a function called when an exporter panics. The
// panic is swallowed either way.
func SetExporterPanicHook(hook func(exporterID uint64, r interface{})) {
	exportPipeline.exportersLock.Lock()
	defer exportPipeline.exportersLock.Unlock()
	exportPipeline.panicHook = hook
}

// EnableExportWorkers creates a bounded worker pool for async exporters.
// Without a pool each async export runs on its own goroutine.
func EnableExportWorkers(workers, queueSize int) error {
	return exportPipeline.enableWorkers(workers, queueSize)
}

// ShutdownExportWorkers stops the worker pool after draining in-flight work.
// Async exporters fall back to per-export goroutines.
func ShutdownExportWorkers() {
	exportPipeline.shutdownWorkers()
}

// DroppedExports returns the number of span exports dropped because the
// worker queue was full.
func DroppedExports() uint64 {
	return exportPipeline.droppedExports.Load()
}

func exportSpan(data *SpanData) {
	exportPipeline.export(data)
}

func (p *pipeline) register(e Exporter, async bool) uint64 {
	if e == nil {
		return 0
	}

	id := p.nextID.Add(1)

	p.exportersLock.Lock()
	defer p.exportersLock.Unlock()

	p.exporters = append(p.exporters, exporterEntry{
		id:       id,
		exporter: e,
		async:    async,
	})

	return id
}

func (p *pipeline) unregister(id uint64) {
	p.exportersLock.Lock()
	defer p.exportersLock.Unlock()

	// Preserve order.
	for i, entry := range p.exporters {
		if entry.id == id {
			copy(p.exporters[i:], p.exporters[i+1:])
			p.exporters = p.exporters[:len(p.exporters)-1]
			return
		}
	}
}

func (p *pipeline) export(data *SpanData) {
	p.exportersLock.RLock()
	if len(p.exporters) == 0 {
		p.exportersLock.RUnlock()
		return
	}

	exporters := make([]exporterEntry, len(p.exporters))
	copy(exporters, p.exporters)
	workers := p.workers
	p.exportersLock.RUnlock()

	for _, entry := range exporters {
		if entry.async {
			entry := entry
			if workers != nil {
				workers.submit(func() {
					p.safeExport(entry, data)
				})
			} else {
				go p.safeExport(entry, data)
			}
		} else {
			p.safeExport(entry, data)
		}
	}
}

func (p *pipeline) safeExport(entry exporterEntry, data *SpanData) {
	defer func() {
		if r := recover(); r != nil {
			p.exportersLock.RLock()
			hook := p.panicHook
			p.exportersLock.RUnlock()
			if hook != nil {
				hook(entry.id, r)
			}
		}
	}()
	entry.exporter.ExportSpan(data)
}

func (p *pipeline) enableWorkers(workers, queueSize int) error {
	if workers <= 0 {
		return errors.New("workers must be > 0")
	}
	if queueSize <= 0 {
		return errors.New("queueSize must be > 0")
	}

	p.exportersLock.Lock()
	defer p.exportersLock.Unlock()

	if p.workers != nil {
		return errors.New("export workers already enabled")
	}

	wp := &workerPool{
		tasks:   make(chan func(), queueSize),
		stop:    make(chan struct{}),
		dropped: &p.droppedExports,
	}
	wp.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go wp.run()
	}
	p.workers = wp

	return nil
}

func (p *pipeline) shutdownWorkers() {
	p.exportersLock.Lock()
	wp := p.workers
	p.workers = nil
	p.exportersLock.Unlock()

	if wp != nil {
		wp.shutdown()
	}
}

// workerPool runs a fixed number of workers draining a bounded task queue.
// Submissions that find the queue full are dropped and counted rather than
// blocking the span's ending goroutine.
type workerPool struct {
	tasks   chan func()
	stop    chan struct{}
	dropped *atomic.Uint64
	wg      sync.WaitGroup
}

func (w *workerPool) run() {
	defer w.wg.Done()
	for {
		select {
		case task := <-w.tasks:
			task()
		case <-w.stop:
			// Drain remaining tasks before exiting.
			for {
				select {
				case task := <-w.tasks:
					task()
				default:
					return
				}
			}
		}
	}
}

func (w *workerPool) submit(task func()) {
	select {
	case w.tasks <- task:
	default:
		w.dropped.Add(1)
	}
}

func (w *workerPool) shutdown() {
	close(w.stop)
	w.wg.Wait()
}
