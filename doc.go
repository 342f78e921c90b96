// Package spancore is the in-process recording engine of a distributed
// tracing SDK: the concurrency-safe representation of a single span of work,
// the sampling rules that decide whether a span is recorded, and the bounded
// buffers that hold its attributes, annotations, message events and links.
//
// Core Components:
//   - SpanContext: immutable identity of a span within a trace.
//   - Span: cheap copyable handle; mutators are no-ops when not recording.
//   - TraceParams: atomically swappable per-span limits and default sampler.
//   - Sampler: pluggable sampling decision.
//   - Collector: buffers ended sampled spans for batch retrieval.
//
// Basic Usage:
//
//	root := spancore.StartSpan("handle-request", nil,
//		spancore.WithSampler(spancore.AlwaysSample()))
//	defer root.End()
//
//	root.AddAttributes(spancore.StringAttribute("user.id", "123"))
//	root.AddAnnotation("cache miss")
//
//	child := spancore.StartSpan("query-db", root)
//	defer child.End()
//
// Thread Safety:
//
// Any number of goroutines may hold copies of the same Span and call
// mutators concurrently; mutation serializes through one per-span lock held
// only for bounded in-memory work. End freezes the record: the snapshot
// handed to exporters never changes afterwards, and late mutators are silent
// no-ops.
//
// Sampling:
//
// A sampled parent, local or remote, forces the child sampled. Otherwise the
// explicit sampler, or the default from the trace parameters, decides. A
// span started with WithRecordEvents records locally and appears among the
// running spans even when unsampled, but only sampled spans are exported.
//
// Error Handling:
//
// Nothing here returns an error to instrumented code. Buffer overflow
// evicts, mutation after End does nothing, a blank span swallows every call,
// and a missing sampler means "never sample". Exporter panics are recovered
// and reported to an optional hook.
package spancore
