package spancore

import (
	"sync"
	"time"
)

// spanImpl is the mutable record behind a recording span. Every copy of the
// owning Span value shares one spanImpl; all mutation serializes through mu.
// The lock is held only for bounded in-memory work, never for I/O.
//
// Once ended is true the record is frozen: mutators become silent no-ops and
// snapshots taken after End never change again.
type spanImpl struct {
	mu sync.Mutex

	name      string
	startTime time.Time
	endTime   time.Time
	status    Status
	ended     bool

	attributes    *attributeMap
	annotations   *evictedQueue[Annotation]
	messageEvents *evictedQueue[MessageEvent]
	parentLinks   *evictedQueue[Link]
	childLinks    *evictedQueue[Link]

	// Fixed at construction, read without the lock.
	spanContext     SpanContext
	parentSpanID    SpanID
	hasRemoteParent bool
	sampled         bool
}

func newSpanImpl(name string, sc SpanContext, parentSpanID SpanID, remoteParent, sampled bool, start time.Time, limits TraceParams) *spanImpl {
	return &spanImpl{
		name:            name,
		startTime:       start,
		attributes:      newAttributeMap(limits.MaxAttributesPerSpan),
		annotations:     newEvictedQueue[Annotation](limits.MaxAnnotationsPerSpan),
		messageEvents:   newEvictedQueue[MessageEvent](limits.MaxMessageEventsPerSpan),
		parentLinks:     newEvictedQueue[Link](limits.MaxLinksPerSpan),
		childLinks:      newEvictedQueue[Link](limits.MaxLinksPerSpan),
		spanContext:     sc,
		parentSpanID:    parentSpanID,
		hasRemoteParent: remoteParent,
		sampled:         sampled,
	}
}

// addAttributes applies the whole batch under one lock acquisition so readers
// never observe a partially-applied batch.
func (s *spanImpl) addAttributes(attrs []Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return
	}
	for _, a := range attrs {
		s.attributes.set(a)
	}
}

func (s *spanImpl) addAnnotation(now time.Time, message string, attrs []Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return
	}
	s.annotations.add(Annotation{
		Time:       now,
		Message:    message,
		Attributes: copyAttributes(attrs),
	})
}

func (s *spanImpl) addMessageEvent(now time.Time, eventType MessageEventType, messageID, compressed, uncompressed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return
	}
	s.messageEvents.add(MessageEvent{
		Time:                 now,
		EventType:            eventType,
		MessageID:            messageID,
		CompressedByteSize:   compressed,
		UncompressedByteSize: uncompressed,
	})
}

func (s *spanImpl) addLink(linkType LinkType, target SpanContext, attrs []Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return
	}
	link := Link{
		Type:       linkType,
		Context:    target,
		Attributes: copyAttributes(attrs),
	}
	if linkType == LinkTypeParent {
		s.parentLinks.add(link)
	} else {
		s.childLinks.add(link)
	}
}

// setStatus overwrites the status unconditionally; the last write before End
// wins.
func (s *spanImpl) setStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return
	}
	s.status = status
}

// end freezes the record. The first caller stamps the end time and gets the
// frozen snapshot with won=true; every later caller is a no-op. Mutators that
// lose the race to the lock observe ended and do nothing, so the snapshot
// handed to the exporter is final.
func (s *spanImpl) end(now time.Time) (data *SpanData, won bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return nil, false
	}
	s.ended = true
	s.endTime = now
	return s.snapshotLocked(), true
}

// snapshot deep-copies the current record. Used by the running-span registry
// to inspect live spans; for ended spans it returns the frozen state.
func (s *spanImpl) snapshot() *SpanData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *spanImpl) snapshotLocked() *SpanData {
	links := make([]Link, 0, s.parentLinks.len()+s.childLinks.len())
	links = append(links, s.parentLinks.copyEntries()...)
	links = append(links, s.childLinks.copyEntries()...)
	if len(links) == 0 {
		links = nil
	}
	return &SpanData{
		SpanContext:              s.spanContext,
		ParentSpanID:             s.parentSpanID,
		HasRemoteParent:          s.hasRemoteParent,
		Name:                     s.name,
		StartTime:                s.startTime,
		EndTime:                  s.endTime,
		Status:                   s.status,
		Attributes:               s.attributes.copyEntries(),
		Annotations:              s.annotations.copyEntries(),
		MessageEvents:            s.messageEvents.copyEntries(),
		Links:                    links,
		DroppedAttributeCount:    s.attributes.dropped,
		DroppedAnnotationCount:   s.annotations.dropped,
		DroppedMessageEventCount: s.messageEvents.dropped,
		DroppedLinkCount:         s.parentLinks.dropped + s.childLinks.dropped,
	}
}

func copyAttributes(attrs []Attribute) []Attribute {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]Attribute, len(attrs))
	copy(out, attrs)
	return out
}
