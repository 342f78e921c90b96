package spancore

import "time"

// Attribute is a single key-value pair attached to a span, an annotation or a
// link. Values are restricted to string, bool, int64 and float64; use the
// typed constructors below.
type Attribute struct {
	key   string
	value interface{}
}

// Key returns the attribute key.
func (a Attribute) Key() string { return a.key }

// Value returns the attribute value as one of string, bool, int64 or float64.
func (a Attribute) Value() interface{} { return a.value }

// StringAttribute returns a string-valued attribute.
func StringAttribute(key, value string) Attribute {
	return Attribute{key: key, value: value}
}

// BoolAttribute returns a bool-valued attribute.
func BoolAttribute(key string, value bool) Attribute {
	return Attribute{key: key, value: value}
}

// Int64Attribute returns an int64-valued attribute.
func Int64Attribute(key string, value int64) Attribute {
	return Attribute{key: key, value: value}
}

// Float64Attribute returns a float64-valued attribute.
func Float64Attribute(key string, value float64) Attribute {
	return Attribute{key: key, value: value}
}

// Annotation is a timestamped text event on a span, with an optional small
// attribute set.
type Annotation struct {
	Time       time.Time
	Message    string
	Attributes []Attribute
}

// MessageEventType distinguishes sent from received message events.
type MessageEventType int

// MessageEventType values.
const (
	MessageEventTypeUnspecified MessageEventType = iota
	MessageEventTypeSent
	MessageEventTypeRecv
)

// MessageEvent records one message sent or received over the span's
// operation, with optional wire sizes.
type MessageEvent struct {
	Time                 time.Time
	EventType            MessageEventType
	MessageID            int64
	CompressedByteSize   int64
	UncompressedByteSize int64
}

// LinkType states the relationship of the linked span to the linking span.
type LinkType int

// LinkType values.
const (
	LinkTypeUnspecified LinkType = iota
	LinkTypeParent               // The linked span is a parent of this span.
	LinkTypeChild                // The linked span is a child of this span.
)

// Link is a reference to a span in a different trace.
type Link struct {
	Type       LinkType
	Context    SpanContext
	Attributes []Attribute
}

// StatusCode is a canonical status code, numerically compatible with gRPC
// codes.
type StatusCode int32

// Canonical status codes.
const (
	StatusCodeOK                 StatusCode = 0
	StatusCodeCancelled          StatusCode = 1
	StatusCodeUnknown            StatusCode = 2
	StatusCodeInvalidArgument    StatusCode = 3
	StatusCodeDeadlineExceeded   StatusCode = 4
	StatusCodeNotFound           StatusCode = 5
	StatusCodeAlreadyExists      StatusCode = 6
	StatusCodePermissionDenied   StatusCode = 7
	StatusCodeResourceExhausted  StatusCode = 8
	StatusCodeFailedPrecondition StatusCode = 9
	StatusCodeAborted            StatusCode = 10
	StatusCodeOutOfRange         StatusCode = 11
	StatusCodeUnimplemented      StatusCode = 12
	StatusCodeInternal           StatusCode = 13
	StatusCodeUnavailable        StatusCode = 14
	StatusCodeDataLoss           StatusCode = 15
	StatusCodeUnauthenticated    StatusCode = 16
)

// Status is the terminal outcome of a span. Last write wins.
type Status struct {
	Code    StatusCode
	Message string
}

// SpanData is the frozen snapshot of a span handed to the running-span
// registry and, at End, to the export pipeline. It shares no memory with the
// live record: exporters may read it without locking.
//
// The field set is the stable export contract; removing or retyping a field
// requires a version bump.
type SpanData struct {
	SpanContext SpanContext

	// ParentSpanID is the zero SpanID for root spans.
	ParentSpanID    SpanID
	HasRemoteParent bool

	Name      string
	StartTime time.Time
	// EndTime is the zero time while the span is still running.
	EndTime time.Time
	Status  Status

	// Attributes preserve insertion order; updating an existing key in the
	// live span renews its position.
	Attributes    []Attribute
	Annotations   []Annotation
	MessageEvents []MessageEvent
	Links         []Link

	DroppedAttributeCount    int
	DroppedAnnotationCount   int
	DroppedMessageEventCount int
	DroppedLinkCount         int
}
