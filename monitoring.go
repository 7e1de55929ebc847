package dyncol

// MapStats describes the occupancy of a Map's bucket array.
type MapStats struct {
	Len        int
	Cap        int
	Tombstones int
	FreeSlots  int // arena entries waiting for reuse

	// Probe lengths count buckets visited to find each live key, including the
	// one holding it.
	MaxProbe   int
	TotalProbe int
}

// Load returns Len/Cap.
func (s *MapStats) Load() float64 {
	if s.Cap == 0 {
		return 0
	}
	return float64(s.Len) / float64(s.Cap)
}

// DirtyLoad counts tombstones as occupied, which is what triggers an
// in-place rehash.
func (s *MapStats) DirtyLoad() float64 {
	if s.Cap == 0 {
		return 0
	}
	return float64(s.Len+s.Tombstones) / float64(s.Cap)
}

func (s *MapStats) AvgProbe() float64 {
	if s.Len == 0 {
		return 0
	}
	return float64(s.TotalProbe) / float64(s.Len)
}

func (m *Map) Stats() MapStats {
	if m == nil || m.released {
		return MapStats{}
	}
	result := MapStats{
		Len:        m.length,
		Cap:        len(m.slots),
		Tombstones: m.tombstones,
		FreeSlots:  len(m.freeEntries),
	}
	mask := uint64(len(m.slots) - 1)
	for i := m.first; i != noEntry; i = m.entries[i].next {
		idx := probeNext(uint64(m.entries[i].hash), mask)
		n := 1
		for m.slots[idx] != i+1 && n < len(m.slots) {
			idx = probeNext(idx, mask)
			n++
		}
		result.TotalProbe += n
		result.MaxProbe = max(result.MaxProbe, n)
	}
	return result
}

type ListStats struct {
	Len int
	Cap int
}

func (s *ListStats) Load() float64 {
	if s.Cap == 0 {
		return 0
	}
	return float64(s.Len) / float64(s.Cap)
}

func (l *List) Stats() ListStats {
	if l == nil || l.released {
		return ListStats{}
	}
	return ListStats{Len: l.length, Cap: len(l.items)}
}
