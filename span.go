package spancore

import (
	"context"

	"github.com/zoobzio/clockz"
)

// clock supplies every timestamp taken by the package. Swapped for a fake in
// tests.
var clock clockz.Clock = clockz.RealClock

// spanKeyType is a private type for context keys to avoid collisions.
type spanKeyType string

const spanKey spanKeyType = "spancore"

// Span is the public handle for a span of work: an immutable SpanContext plus
// shared ownership of the mutable record behind it. Handles are cheap to copy
// and all copies observe the same record.
//
// Safe for concurrent use by multiple goroutines. Every mutator on a span
// that is not recording is a silent no-op, so instrumented code never needs
// to branch on whether the span was sampled.
type Span struct {
	spanContext SpanContext

	// impl is nil for blank spans and for spans that propagate identity
	// without recording anything locally.
	impl *spanImpl
}

// StartOption configures StartSpan and StartSpanWithRemoteParent.
type StartOption func(*startOptions)

type startOptions struct {
	sampler      Sampler
	recordEvents bool
	parentLinks  []*Span
}

// WithSampler overrides the default sampler from the trace parameters for
// this span only. It is consulted only when no parent forces the decision.
func WithSampler(s Sampler) StartOption {
	return func(o *startOptions) {
		o.sampler = s
	}
}

// WithRecordEvents requests event recording even if the span ends up
// unsampled. Recording spans appear in the running-span registry but only
// sampled spans reach the export pipeline.
func WithRecordEvents() StartOption {
	return func(o *startOptions) {
		o.recordEvents = true
	}
}

// WithParentLinks records the given spans, which live in other traces, as
// parent links and feeds their contexts to the sampler.
func WithParentLinks(parents ...*Span) StartOption {
	return func(o *startOptions) {
		o.parentLinks = append(o.parentLinks, parents...)
	}
}

// BlankSpan returns a no-op span with an invalid context. Every operation on
// it does nothing.
func BlankSpan() *Span {
	return &Span{}
}

// StartSpan starts a root span (parent == nil) or a child of a local parent.
// The parent must stay valid for the duration of the call.
func StartSpan(name string, parent *Span, o ...StartOption) *Span {
	var parentCtx SpanContext
	if parent != nil {
		parentCtx = parent.spanContext
	}
	return startSpanInternal(name, parentCtx, false, o)
}

// StartSpanWithRemoteParent starts a span whose parent context arrived from
// another process.
func StartSpanWithRemoteParent(name string, parent SpanContext, o ...StartOption) *Span {
	return startSpanInternal(name, parent, true, o)
}

func startSpanInternal(name string, parent SpanContext, remoteParent bool, o []StartOption) *Span {
	var opts startOptions
	for _, op := range o {
		op(&opts)
	}

	hasParent := parent.IsValid()

	var tid TraceID
	if hasParent {
		tid = parent.TraceID
	} else {
		tid = idGen.newTraceID()
	}
	// Always a fresh span ID, even for non-recording spans, so downstream
	// components can rely on uniqueness.
	sid := idGen.newSpanID()

	linkContexts := make([]SpanContext, 0, len(opts.parentLinks))
	for _, p := range opts.parentLinks {
		if p != nil && p.spanContext.IsValid() {
			linkContexts = append(linkContexts, p.spanContext)
		}
	}

	params := CurrentTraceParams()

	// Sampling decisions propagate down a trace: a sampled parent, local or
	// remote, forces the child sampled without consulting any sampler.
	sampled := hasParent && parent.IsSampled()
	if !sampled {
		sampler := opts.sampler
		if sampler == nil {
			sampler = params.DefaultSampler
		}
		if sampler != nil {
			sampled = sampler(SamplingParameters{
				TraceID:         tid,
				SpanID:          sid,
				Name:            name,
				HasRemoteParent: remoteParent && hasParent,
				ParentSampled:   false,
				Links:           linkContexts,
			})
		}
	}

	sc := SpanContext{
		TraceID:    tid,
		SpanID:     sid,
		Tracestate: parent.Tracestate,
	}
	if sampled {
		sc.TraceOptions = parent.TraceOptions | TraceOptionSampled
	} else {
		sc.TraceOptions = parent.TraceOptions &^ TraceOptionSampled
	}

	if !sampled && !opts.recordEvents {
		// Propagation-only span: identity without storage.
		return &Span{spanContext: sc}
	}

	var parentSpanID SpanID
	if hasParent {
		parentSpanID = parent.SpanID
	}

	impl := newSpanImpl(name, sc, parentSpanID, remoteParent && hasParent, sampled, clock.Now(), params)
	span := &Span{spanContext: sc, impl: impl}

	for _, lc := range linkContexts {
		impl.addLink(LinkTypeParent, lc, nil)
	}

	runningStore().OnStart(span)
	return span
}

// SpanContext returns the span's immutable identity. Valid even for spans
// that are not recording.
func (s *Span) SpanContext() SpanContext {
	if s == nil {
		return SpanContext{}
	}
	return s.spanContext
}

// IsSampled reports whether the span will be exported. Fixed at start;
// lock-free.
func (s *Span) IsSampled() bool {
	return s != nil && s.spanContext.IsSampled()
}

// IsRecording reports whether the span is recording events. Sampled spans
// always record, but recording spans are not always sampled. Fixed at start;
// lock-free.
func (s *Span) IsRecording() bool {
	return s != nil && s.impl != nil
}

// AddAttributes inserts or updates attributes on the span. The batch applies
// atomically. Inserting beyond the attribute limit evicts the oldest
// not-recently-set key; re-setting an existing key renews it in place.
func (s *Span) AddAttributes(attrs ...Attribute) {
	if s == nil || s.impl == nil {
		return
	}
	s.impl.addAttributes(attrs)
}

// AddAnnotation attaches a timestamped text event with an optional small
// attribute set. Overflow evicts the oldest annotation.
func (s *Span) AddAnnotation(message string, attrs ...Attribute) {
	if s == nil || s.impl == nil {
		return
	}
	s.impl.addAnnotation(clock.Now(), message, attrs)
}

// AddSentMessageEvent records a message sent on the span's operation.
// Overflow evicts the oldest event.
func (s *Span) AddSentMessageEvent(messageID, compressedByteSize, uncompressedByteSize int64) {
	if s == nil || s.impl == nil {
		return
	}
	s.impl.addMessageEvent(clock.Now(), MessageEventTypeSent, messageID, compressedByteSize, uncompressedByteSize)
}

// AddReceivedMessageEvent records a message received on the span's operation.
// Overflow evicts the oldest event.
func (s *Span) AddReceivedMessageEvent(messageID, compressedByteSize, uncompressedByteSize int64) {
	if s == nil || s.impl == nil {
		return
	}
	s.impl.addMessageEvent(clock.Now(), MessageEventTypeRecv, messageID, compressedByteSize, uncompressedByteSize)
}

// AddParentLink links a span in another trace as a parent of this span.
func (s *Span) AddParentLink(parent SpanContext, attrs ...Attribute) {
	if s == nil || s.impl == nil {
		return
	}
	s.impl.addLink(LinkTypeParent, parent, attrs)
}

// AddChildLink links a span in another trace as a child of this span.
func (s *Span) AddChildLink(child SpanContext, attrs ...Attribute) {
	if s == nil || s.impl == nil {
		return
	}
	s.impl.addLink(LinkTypeChild, child, attrs)
}

// SetStatus sets the span's status. Unconditional; the last write before End
// wins.
func (s *Span) SetStatus(status Status) {
	if s == nil || s.impl == nil {
		return
	}
	s.impl.setStatus(status)
}

// End marks the span finished. The record is frozen before anything else
// happens: mutators racing with End either apply before the end timestamp is
// stamped or not at all. Safe to call multiple times and from multiple
// goroutines; only the first call has any effect.
//
// Ended sampled spans are handed to the export pipeline; recording-but-
// unsampled spans just leave the running registry.
func (s *Span) End() {
	if s == nil || s.impl == nil {
		return
	}
	data, won := s.impl.end(clock.Now())
	if !won {
		return
	}
	runningStore().OnEnd(s)
	if s.IsSampled() {
		exportSpan(data)
	}
}

// NewContext returns a context carrying the span.
func NewContext(parent context.Context, s *Span) context.Context {
	return context.WithValue(parent, spanKey, s)
}

// FromContext returns the span stored in the context, or nil if there is
// none.
func FromContext(ctx context.Context) *Span {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(spanKey).(*Span)
	return s
}

// StartSpanFromContext starts a child of the span in ctx (a root span if ctx
// carries none) and returns a context holding the new span.
func StartSpanFromContext(ctx context.Context, name string, o ...StartOption) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	span := StartSpan(name, FromContext(ctx), o...)
	return NewContext(ctx, span), span
}
