package spancore

import "encoding/binary"

// SamplingParameters is the input to a Sampler.
type SamplingParameters struct {
	TraceID         TraceID
	SpanID          SpanID
	Name            string
	HasRemoteParent bool
	ParentSampled   bool

	// Links are the contexts of spans in other traces that are parents of
	// the span being started.
	Links []SpanContext
}

// Sampler decides whether a new span is sampled for export. Samplers must be
// safe to call concurrently and must not block.
type Sampler func(SamplingParameters) bool

// AlwaysSample returns a Sampler that samples every span.
func AlwaysSample() Sampler {
	return func(SamplingParameters) bool { return true }
}

// NeverSample returns a Sampler that samples no span.
func NeverSample() Sampler {
	return func(SamplingParameters) bool { return false }
}

// ProbabilitySampler returns a Sampler that samples the given fraction of
// traces. The decision is a deterministic function of the trace ID, so every
// span in a trace gets the same answer regardless of where it starts.
// Fractions outside [0, 1] are clamped.
func ProbabilitySampler(fraction float64) Sampler {
	if fraction <= 0 {
		return NeverSample()
	}
	if fraction >= 1 {
		return AlwaysSample()
	}
	bound := uint64(fraction * (1 << 63))
	return func(p SamplingParameters) bool {
		x := binary.BigEndian.Uint64(p.TraceID[8:]) >> 1
		return x < bound
	}
}
