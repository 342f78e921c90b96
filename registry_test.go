package spancore

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// recordingExporter captures exported spans in memory.
type recordingExporter struct {
	mu    sync.Mutex
	spans []*SpanData
}

func (e *recordingExporter) ExportSpan(data *SpanData) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.spans = append(e.spans, data)
}

func (e *recordingExporter) exported() []*SpanData {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*SpanData, len(e.spans))
	copy(out, e.spans)
	return out
}

func TestRegisterAndUnregisterExporter(t *testing.T) {
	withTraceParams(t, TraceParams{DefaultSampler: AlwaysSample()})

	exp := &recordingExporter{}
	id := RegisterExporter(exp)

	StartSpan("first", nil).End()

	UnregisterExporter(id)
	StartSpan("second", nil).End()

	spans := exp.exported()
	if len(spans) != 1 {
		t.Fatalf("Expected 1 exported span, got %d", len(spans))
	}
	if spans[0].Name != "first" {
		t.Errorf("Expected 'first', got %s", spans[0].Name)
	}
}

func TestRegisterNilExporter(t *testing.T) {
	if id := RegisterExporter(nil); id != 0 {
		t.Errorf("Expected id 0 for nil exporter, got %d", id)
	}
	if id := RegisterExporterAsync(nil); id != 0 {
		t.Errorf("Expected id 0 for nil async exporter, got %d", id)
	}
}

func TestMultipleExportersAllNotified(t *testing.T) {
	withTraceParams(t, TraceParams{DefaultSampler: AlwaysSample()})

	a := &recordingExporter{}
	b := &recordingExporter{}
	idA := RegisterExporter(a)
	idB := RegisterExporter(b)
	t.Cleanup(func() {
		UnregisterExporter(idA)
		UnregisterExporter(idB)
	})

	StartSpan("op", nil).End()

	if len(a.exported()) != 1 || len(b.exported()) != 1 {
		t.Errorf("Every registered exporter must see the span: a=%d b=%d",
			len(a.exported()), len(b.exported()))
	}
}

type panickyExporter struct{}

func (panickyExporter) ExportSpan(*SpanData) {
	panic("exporter blew up")
}

func TestExporterPanicIsContained(t *testing.T) {
	withTraceParams(t, TraceParams{DefaultSampler: AlwaysSample()})

	var hookID atomic.Uint64
	var hookValue atomic.Value
	SetExporterPanicHook(func(exporterID uint64, r interface{}) {
		hookID.Store(exporterID)
		hookValue.Store(r)
	})
	t.Cleanup(func() { SetExporterPanicHook(nil) })

	after := &recordingExporter{}
	idPanic := RegisterExporter(panickyExporter{})
	idAfter := RegisterExporter(after)
	t.Cleanup(func() {
		UnregisterExporter(idPanic)
		UnregisterExporter(idAfter)
	})

	// Must not panic into the caller.
	StartSpan("op", nil).End()

	if hookID.Load() != idPanic {
		t.Errorf("Panic hook got exporter ID %d, want %d", hookID.Load(), idPanic)
	}
	if hookValue.Load() != "exporter blew up" {
		t.Errorf("Panic hook got %v", hookValue.Load())
	}
	if len(after.exported()) != 1 {
		t.Error("A panicking exporter must not starve later exporters")
	}
}

func TestAsyncExporterWithoutWorkers(t *testing.T) {
	withTraceParams(t, TraceParams{DefaultSampler: AlwaysSample()})

	done := make(chan *SpanData, 1)
	id := RegisterExporterAsync(exporterFunc(func(data *SpanData) {
		done <- data
	}))
	t.Cleanup(func() { UnregisterExporter(id) })

	StartSpan("async-op", nil).End()

	select {
	case data := <-done:
		if data.Name != "async-op" {
			t.Errorf("Expected 'async-op', got %s", data.Name)
		}
	case <-time.After(time.Second):
		t.Fatal("Async exporter was never called")
	}
}

// exporterFunc adapts a function to the Exporter interface.
type exporterFunc func(*SpanData)

func (f exporterFunc) ExportSpan(data *SpanData) { f(data) }

func TestExportWorkerPool(t *testing.T) {
	withTraceParams(t, TraceParams{DefaultSampler: AlwaysSample()})

	if err := EnableExportWorkers(2, 64); err != nil {
		t.Fatalf("EnableExportWorkers: %v", err)
	}
	t.Cleanup(ShutdownExportWorkers)

	if err := EnableExportWorkers(2, 64); err == nil {
		t.Error("Expected error enabling workers twice")
	}

	var count atomic.Int64
	var wg sync.WaitGroup
	wg.Add(10)
	id := RegisterExporterAsync(exporterFunc(func(*SpanData) {
		defer wg.Done()
		count.Add(1)
	}))
	t.Cleanup(func() { UnregisterExporter(id) })

	for i := 0; i < 10; i++ {
		StartSpan("op", nil).End()
	}
	wg.Wait()

	if count.Load() != 10 {
		t.Errorf("Expected 10 exports through the pool, got %d", count.Load())
	}
}

func TestEnableExportWorkersValidation(t *testing.T) {
	if err := EnableExportWorkers(0, 10); err == nil {
		t.Error("Expected error for workers <= 0")
	}
	if err := EnableExportWorkers(1, 0); err == nil {
		t.Error("Expected error for queueSize <= 0")
	}
}

func TestRunningRegistryTracksRecordingSpans(t *testing.T) {
	withTraceParams(t, TraceParams{DefaultSampler: AlwaysSample()})

	before := ActiveSpanCount()

	first := StartSpan("first", nil)
	second := StartSpan("second", nil, WithRecordEvents())

	if got := ActiveSpanCount(); got != before+2 {
		t.Errorf("Expected %d active spans, got %d", before+2, got)
	}

	first.AddAttributes(StringAttribute("phase", "running"))

	found := false
	for _, data := range ActiveSpans() {
		if data.SpanContext == first.SpanContext() {
			found = true
			if !data.EndTime.IsZero() {
				t.Error("Running span snapshot must have zero EndTime")
			}
			if len(data.Attributes) != 1 || data.Attributes[0].Key() != "phase" {
				t.Errorf("Running snapshot missing live attributes: %+v", data.Attributes)
			}
		}
	}
	if !found {
		t.Error("Started span not visible in ActiveSpans")
	}

	first.End()
	second.End()

	if got := ActiveSpanCount(); got != before {
		t.Errorf("Expected %d active spans after End, got %d", before, got)
	}
}

// countingStore counts lifecycle notifications.
type countingStore struct {
	starts atomic.Int64
	ends   atomic.Int64
}

func (s *countingStore) OnStart(*Span) { s.starts.Add(1) }
func (s *countingStore) OnEnd(*Span)   { s.ends.Add(1) }

func TestSetRunningSpanStore(t *testing.T) {
	withTraceParams(t, TraceParams{DefaultSampler: AlwaysSample()})

	store := &countingStore{}
	SetRunningSpanStore(store)
	t.Cleanup(func() { SetRunningSpanStore(nil) })

	span := StartSpan("op", nil)
	if store.starts.Load() != 1 {
		t.Errorf("Expected 1 OnStart, got %d", store.starts.Load())
	}

	span.End()
	span.End()
	if store.ends.Load() != 1 {
		t.Errorf("Expected exactly 1 OnEnd despite double End, got %d", store.ends.Load())
	}

	// Restoring nil brings back the built-in registry.
	SetRunningSpanStore(nil)
	before := ActiveSpanCount()
	s2 := StartSpan("op2", nil)
	if ActiveSpanCount() != before+1 {
		t.Error("Built-in registry not restored")
	}
	s2.End()
}

func TestRegistryIgnoresNonRecordingSpans(t *testing.T) {
	reg := newSpanRegistry()

	reg.OnStart(nil)
	reg.OnStart(BlankSpan())
	reg.OnEnd(BlankSpan())

	if reg.count() != 0 {
		t.Errorf("Expected empty registry, got %d", reg.count())
	}
	if reg.activeSpans() != nil {
		t.Error("Expected nil snapshot for empty registry")
	}
}

func TestConcurrentStartEndWithRegistry(t *testing.T) {
	withTraceParams(t, TraceParams{DefaultSampler: AlwaysSample()})

	before := ActiveSpanCount()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			span := StartSpan("op", nil)
			span.AddAnnotation("work")
			span.End()
		}()
	}
	wg.Wait()

	if got := ActiveSpanCount(); got != before {
		t.Errorf("Expected registry to drain back to %d, got %d", before, got)
	}
}
