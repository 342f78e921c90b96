package spancore

// evictedQueue is a FIFO buffer with a fixed capacity. Adding to a full queue
// evicts the oldest entry and bumps the dropped count. A capacity of zero or
// less retains nothing.
//
// Not safe for concurrent use; callers hold the owning span's lock.
type evictedQueue[T any] struct {
	entries  []T
	capacity int
	dropped  int
}

func newEvictedQueue[T any](capacity int) *evictedQueue[T] {
	return &evictedQueue[T]{capacity: capacity}
}

func (q *evictedQueue[T]) add(entry T) {
	if q.capacity <= 0 {
		q.dropped++
		return
	}
	if len(q.entries) >= q.capacity {
		copy(q.entries, q.entries[1:])
		q.entries[len(q.entries)-1] = entry
		q.dropped++
		return
	}
	q.entries = append(q.entries, entry)
}

func (q *evictedQueue[T]) len() int {
	return len(q.entries)
}

// copyEntries returns a fresh slice of the retained entries, oldest first.
func (q *evictedQueue[T]) copyEntries() []T {
	if len(q.entries) == 0 {
		return nil
	}
	out := make([]T, len(q.entries))
	copy(out, q.entries)
	return out
}

// attributeMap is a bounded mapping from attribute key to value that keeps
// insertion order for export. Setting an existing key updates it in place
// without consuming a slot and renews its eviction age, so the entry evicted
// on overflow is always the oldest not-recently-set key.
//
// Not safe for concurrent use; callers hold the owning span's lock.
type attributeMap struct {
	entries  []Attribute
	index    map[string]int
	capacity int
	dropped  int
}

func newAttributeMap(capacity int) *attributeMap {
	return &attributeMap{
		index:    make(map[string]int),
		capacity: capacity,
	}
}

func (m *attributeMap) set(attr Attribute) {
	if m.capacity <= 0 {
		m.dropped++
		return
	}
	if i, ok := m.index[attr.key]; ok {
		// Renew: move to the back, shifting the rest down.
		copy(m.entries[i:], m.entries[i+1:])
		m.entries[len(m.entries)-1] = attr
		for j := i; j < len(m.entries); j++ {
			m.index[m.entries[j].key] = j
		}
		return
	}
	if len(m.entries) >= m.capacity {
		delete(m.index, m.entries[0].key)
		copy(m.entries, m.entries[1:])
		m.entries = m.entries[:len(m.entries)-1]
		for j := range m.entries {
			m.index[m.entries[j].key] = j
		}
		m.dropped++
	}
	m.index[attr.key] = len(m.entries)
	m.entries = append(m.entries, attr)
}

func (m *attributeMap) get(key string) (Attribute, bool) {
	i, ok := m.index[key]
	if !ok {
		return Attribute{}, false
	}
	return m.entries[i], true
}

func (m *attributeMap) len() int {
	return len(m.entries)
}

// copyEntries returns the retained attributes in insertion order.
func (m *attributeMap) copyEntries() []Attribute {
	if len(m.entries) == 0 {
		return nil
	}
	out := make([]Attribute, len(m.entries))
	copy(out, m.entries)
	return out
}
