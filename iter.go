package dyncol

// Iterator is a cursor over a Map in insertion order. It survives growth and
// rehashing; if its current entry is removed, the cursor goes stale and Next,
// Prev report ErrStaleIterator through Err.
//
//	it, _ := m.Iter()
//	for ok := it.Valid(); ok; ok = it.Next() {
//		use(it.Key(), it.Value())
//	}
//	if err := it.Err(); err != nil { ... }
type Iterator struct {
	m     *Map
	idx   int
	gen   uint32
	epoch uint32
	err   error
}

// Iter returns an iterator positioned at the first entry. For an empty map the
// iterator is immediately invalid.
func (m *Map) Iter() (*Iterator, error) {
	if err := m.usable("Map.Iter"); err != nil {
		return nil, err
	}
	it := &Iterator{m: m, idx: noEntry, epoch: m.epoch}
	it.moveTo(m.first)
	return it, nil
}

func (it *Iterator) moveTo(i int) {
	it.idx = i
	if i != noEntry {
		it.gen = it.m.entries[i].gen
	}
}

func (it *Iterator) current() (*entry, error) {
	if it == nil || it.m == nil {
		return nil, ErrNoValue
	}
	m := it.m
	if m.released {
		return nil, ErrReleased
	}
	if it.idx == noEntry {
		return nil, ErrNotFound
	}
	if it.epoch != m.epoch || it.idx >= len(m.entries) {
		return nil, ErrStaleIterator
	}
	e := &m.entries[it.idx]
	if !e.live || e.gen != it.gen {
		return nil, ErrStaleIterator
	}
	return e, nil
}

// Valid reports whether the iterator points at a live entry.
func (it *Iterator) Valid() bool {
	_, err := it.current()
	return err == nil
}

func (it *Iterator) step(op string, forward bool) bool {
	e, err := it.current()
	if err != nil {
		if err != ErrNotFound {
			it.fail(op, err)
		}
		return false
	}
	next := e.prev
	if forward {
		next = e.next
	}
	it.moveTo(next)
	return next != noEntry
}

func (it *Iterator) fail(op string, err error) {
	if it == nil {
		return
	}
	it.err = opErr(op, err)
	if it.m != nil {
		it.m.ctx.report(it.err)
	}
}

// Next advances to the following entry. It returns false past the last entry
// or when the cursor is stale.
func (it *Iterator) Next() bool {
	return it.step("Iterator.Next", true)
}

// Prev moves to the preceding entry. It returns false before the first entry
// or when the cursor is stale.
func (it *Iterator) Prev() bool {
	return it.step("Iterator.Prev", false)
}

// IsLast reports whether the current entry is the last one in order.
func (it *Iterator) IsLast() bool {
	e, err := it.current()
	return err == nil && e.next == noEntry
}

// Key returns the current key, or "" if the iterator is not valid.
func (it *Iterator) Key() string {
	e, err := it.current()
	if err != nil {
		return ""
	}
	return e.key
}

// Value returns the current value as a borrowed view. An invalid iterator
// yields the zero Value.
func (it *Iterator) Value() Value {
	e, err := it.current()
	if err != nil {
		return Value{}
	}
	return e.value.borrowed()
}

// Err returns the error that stopped the last Next or Prev, if any.
func (it *Iterator) Err() error {
	if it == nil {
		return nil
	}
	return it.err
}

// Free detaches the iterator from its map. Further calls see an invalid
// iterator.
func (it *Iterator) Free() {
	if it == nil || it.m == nil {
		return
	}
	it.m.ctx.debug("Iterator.Free", "iterator released")
	it.m = nil
	it.idx = noEntry
}
