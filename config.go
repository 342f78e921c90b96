package spancore

import "sync/atomic"

// Default per-span limits.
const (
	DefaultMaxAttributesPerSpan    = 32
	DefaultMaxAnnotationsPerSpan   = 32
	DefaultMaxMessageEventsPerSpan = 128
	DefaultMaxLinksPerSpan         = 32
)

// DefaultSamplingProbability is the sampling fraction used when no sampler
// has been configured.
const DefaultSamplingProbability = 1e-4

// TraceParams holds the process-wide per-span limits and the default sampler.
// The whole table is swapped atomically by ApplyTraceParams; spans capture it
// once when they start, so in-flight spans are unaffected by later swaps.
type TraceParams struct {
	// DefaultSampler decides sampling for spans started without an explicit
	// sampler and without a sampled parent. A nil sampler never samples.
	DefaultSampler Sampler

	// Per-span limits. Values <= 0 in ApplyTraceParams keep the current
	// limit.
	MaxAttributesPerSpan    int
	MaxAnnotationsPerSpan   int
	MaxMessageEventsPerSpan int
	MaxLinksPerSpan         int
}

var currentParams atomic.Pointer[TraceParams]

func init() {
	currentParams.Store(&TraceParams{
		DefaultSampler:          ProbabilitySampler(DefaultSamplingProbability),
		MaxAttributesPerSpan:    DefaultMaxAttributesPerSpan,
		MaxAnnotationsPerSpan:   DefaultMaxAnnotationsPerSpan,
		MaxMessageEventsPerSpan: DefaultMaxMessageEventsPerSpan,
		MaxLinksPerSpan:         DefaultMaxLinksPerSpan,
	})
}

// ApplyTraceParams replaces the process-wide trace parameters. A nil sampler
// or a limit <= 0 keeps the corresponding current value, so partial updates
// are safe. Readers never observe a partially-applied table.
func ApplyTraceParams(p TraceParams) {
	old := currentParams.Load()
	next := *old
	if p.DefaultSampler != nil {
		next.DefaultSampler = p.DefaultSampler
	}
	if p.MaxAttributesPerSpan > 0 {
		next.MaxAttributesPerSpan = p.MaxAttributesPerSpan
	}
	if p.MaxAnnotationsPerSpan > 0 {
		next.MaxAnnotationsPerSpan = p.MaxAnnotationsPerSpan
	}
	if p.MaxMessageEventsPerSpan > 0 {
		next.MaxMessageEventsPerSpan = p.MaxMessageEventsPerSpan
	}
	if p.MaxLinksPerSpan > 0 {
		next.MaxLinksPerSpan = p.MaxLinksPerSpan
	}
	currentParams.Store(&next)
}

// CurrentTraceParams returns the trace parameters in effect right now.
func CurrentTraceParams() TraceParams {
	return *currentParams.Load()
}
