package spancore

import "encoding/hex"

// TraceID is the 128-bit identifier shared by every span in a trace.
// The zero value is invalid.
type TraceID [16]byte

// SpanID is the 64-bit identifier of a single span within a trace.
// The zero value is invalid.
type SpanID [8]byte

// TraceOptions is a bitfield of options propagated alongside the trace
// identity. Only the sampled bit is currently defined.
type TraceOptions uint32

// TraceOptionSampled marks the trace as sampled for export.
const TraceOptionSampled TraceOptions = 1

// IsValid reports whether the trace ID is non-zero.
func (t TraceID) IsValid() bool {
	return t != TraceID{}
}

// String returns the hex encoding of the trace ID.
func (t TraceID) String() string {
	return hex.EncodeToString(t[:])
}

// IsValid reports whether the span ID is non-zero.
func (s SpanID) IsValid() bool {
	return s != SpanID{}
}

// String returns the hex encoding of the span ID.
func (s SpanID) String() string {
	return hex.EncodeToString(s[:])
}

// IsSampled reports whether the sampled bit is set.
func (o TraceOptions) IsSampled() bool {
	return o&TraceOptionSampled != 0
}

// SpanContext is the immutable identity of a span within a trace. It is a
// plain value: copy it freely across goroutines, never mutate it after
// construction. Contexts compare structurally with ==.
type SpanContext struct {
	TraceID      TraceID
	SpanID       SpanID
	TraceOptions TraceOptions

	// Tracestate is an opaque vendor blob carried through propagation
	// verbatim. It never influences sampling or identity comparisons here.
	Tracestate string
}

// IsValid reports whether the context carries a real identity, as opposed to
// the blank context of a no-op span.
func (sc SpanContext) IsValid() bool {
	return sc.TraceID.IsValid() && sc.SpanID.IsValid()
}

// IsSampled reports whether the context's sampled bit is set.
func (sc SpanContext) IsSampled() bool {
	return sc.TraceOptions.IsSampled()
}

// SameTrace reports whether both contexts belong to the same trace.
func (sc SpanContext) SameTrace(other SpanContext) bool {
	return sc.TraceID == other.TraceID
}

// String renders the context as "traceid/spanid;o=opts" for debugging.
func (sc SpanContext) String() string {
	opts := "0"
	if sc.IsSampled() {
		opts = "1"
	}
	return sc.TraceID.String() + "/" + sc.SpanID.String() + ";o=" + opts
}
