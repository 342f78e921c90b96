package spancore

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func makeSpanData(name string) *SpanData {
	return &SpanData{
		SpanContext: SpanContext{TraceID: randomTraceID(), SpanID: randomSpanID()},
		Name:        name,
		StartTime:   time.Now(),
		EndTime:     time.Now(),
	}
}

func TestNewCollector(t *testing.T) {
	collector := NewCollector("test-collector", 100)
	defer collector.Close()

	if collector.Name() != "test-collector" {
		t.Errorf("Expected name 'test-collector', got %s", collector.Name())
	}
	if collector.Count() != 0 {
		t.Errorf("Expected 0 spans initially, got %d", collector.Count())
	}
	if collector.DroppedCount() != 0 {
		t.Errorf("Expected 0 dropped spans initially, got %d", collector.DroppedCount())
	}
}

func TestCollectorBasicCollection(t *testing.T) {
	collector := NewCollector("test", 10)
	collector.SetSyncMode(true) // Deterministic buffering.
	defer collector.Close()

	collector.ExportSpan(makeSpanData("op"))

	if collector.Count() != 1 {
		t.Errorf("Expected 1 span, got %d", collector.Count())
	}

	spans := collector.Drain()
	if len(spans) != 1 {
		t.Fatalf("Expected 1 drained span, got %d", len(spans))
	}
	if spans[0].Name != "op" {
		t.Errorf("Expected span name 'op', got %s", spans[0].Name)
	}

	if collector.Count() != 0 {
		t.Errorf("Expected 0 spans after drain, got %d", collector.Count())
	}
	if collector.Drain() != nil {
		t.Error("Expected nil from draining an empty collector")
	}
}

func TestCollectorBackpressure(t *testing.T) {
	// Small channel to trigger drops quickly; spans pile up faster than the
	// goroutine drains because we flood without yielding.
	collector := NewCollector("test", 1)
	defer collector.Close()

	for i := 0; i < 1000; i++ {
		collector.ExportSpan(makeSpanData("op"))
	}

	time.Sleep(50 * time.Millisecond)

	if collector.DroppedCount() == 0 {
		t.Error("Expected some spans dropped under backpressure")
	}
	if got := collector.Count() + int(collector.DroppedCount()); got != 1000 {
		t.Errorf("Buffered plus dropped must equal submitted, got %d", got)
	}
}

func TestCollectorNilSpan(t *testing.T) {
	collector := NewCollector("test", 10)
	collector.SetSyncMode(true)
	defer collector.Close()

	collector.ExportSpan(nil)

	if collector.Count() != 0 {
		t.Errorf("Expected nil span not buffered, got %d", collector.Count())
	}
	if collector.DroppedCount() != 1 {
		t.Errorf("Expected nil span counted as dropped, got %d", collector.DroppedCount())
	}
}

func TestCollectorReset(t *testing.T) {
	collector := NewCollector("test", 10)
	collector.SetSyncMode(true)
	defer collector.Close()

	collector.ExportSpan(makeSpanData("a"))
	collector.ExportSpan(nil)
	collector.Reset()

	if collector.Count() != 0 {
		t.Errorf("Expected 0 spans after reset, got %d", collector.Count())
	}
	if collector.DroppedCount() != 0 {
		t.Errorf("Expected 0 dropped after reset, got %d", collector.DroppedCount())
	}
}

func TestCollectorCloseDropsLateSpans(t *testing.T) {
	collector := NewCollector("test", 10)
	collector.SetSyncMode(true)

	collector.Close()
	collector.Close() // Idempotent.

	collector.ExportSpan(makeSpanData("late"))

	if collector.Count() != 0 {
		t.Errorf("Expected late span not buffered, got %d", collector.Count())
	}
	if collector.DroppedCount() != 1 {
		t.Errorf("Expected late span counted as dropped, got %d", collector.DroppedCount())
	}
}

func TestCollectorConcurrentExport(t *testing.T) {
	collector := NewCollector("test", 10)
	collector.SetSyncMode(true)
	defer collector.Close()

	var wg sync.WaitGroup
	numGoroutines := 50
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			collector.ExportSpan(makeSpanData(fmt.Sprintf("op-%d", n)))
		}(i)
	}
	wg.Wait()

	if collector.Count() != numGoroutines {
		t.Errorf("Expected %d spans, got %d", numGoroutines, collector.Count())
	}
}

func TestCollectorAsEndExporter(t *testing.T) {
	withTraceParams(t, TraceParams{DefaultSampler: AlwaysSample()})

	collector := NewCollector("pipeline", 16)
	collector.SetSyncMode(true)
	id := RegisterExporter(collector)
	t.Cleanup(func() {
		UnregisterExporter(id)
		collector.Close()
	})

	span := StartSpan("traced-op", nil)
	span.SetStatus(Status{Code: StatusCodeOK})
	span.End()

	spans := collector.Drain()
	if len(spans) != 1 {
		t.Fatalf("Expected 1 span through the End pipeline, got %d", len(spans))
	}
	if spans[0].Name != "traced-op" {
		t.Errorf("Expected 'traced-op', got %s", spans[0].Name)
	}
}
