package dyncol

import (
	"iter"
	"log/slog"
	"math"
)

const (
	MinMapCapacity      = 8
	MapGrowthLoadFactor = 0.8

	maxMapCapacity = 1 << 30

	// Bucket slots hold 1 + the arena index of their entry, or one of these.
	slotEmpty     = 0
	slotTombstone = -1

	noEntry = -1
)

// Map is an open-addressed hash table from byte-string keys to Values.
//
// Entries live in an arena; the bucket array and the insertion-order list
// both refer to them by index. Probing follows an LCG sequence from the key's
// hash. Removal leaves a tombstone, so keys placed past a removed entry stay
// reachable.
type Map struct {
	ctx  *Context
	seed uint32

	slots       []int
	entries     []entry
	freeEntries []int
	tombstones  int

	length      int
	first, last int
	epoch       uint32 // bumped whenever the entry arena is discarded

	parent   container
	released bool
}

type entry struct {
	hash       uint32
	gen        uint32
	live       bool
	key        string
	value      Value
	prev, next int
}

var _ container = (*Map)(nil)

// NewMap returns an empty map using the default Context.
func NewMap() *Map {
	return defaultContext.NewMap()
}

func newMapCap(ctx *Context, capacity int) *Map {
	ctx = contextOf(ctx)
	if capacity < MinMapCapacity {
		capacity = MinMapCapacity
	}
	return &Map{
		ctx:   ctx,
		seed:  ctx.seed(),
		slots: make([]int, capacity),
		first: noEntry,
		last:  noEntry,
	}
}

func (m *Map) parentContainer() container { return m.parent }
func (m *Map) setParent(p container)      { m.parent = p }
func (m *Map) isReleased() bool           { return m.released }

func (m *Map) context() *Context {
	if m == nil {
		return defaultContext
	}
	return m.ctx
}

func (m *Map) usable(op string) error {
	if m == nil {
		return m.context().report(opErr(op, ErrNoValue))
	}
	if m.released {
		return m.ctx.report(opErr(op, ErrReleased))
	}
	return nil
}

func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return m.length
}

// Cap returns the bucket count, always a power of two.
func (m *Map) Cap() int {
	if m == nil {
		return 0
	}
	return len(m.slots)
}

// Seed returns the hash seed of this table.
func (m *Map) Seed() uint32 {
	return m.seed
}

// Context returns the Context the map was created with.
func (m *Map) Context() *Context {
	return m.context()
}

func (m *Map) hash(key string) uint32 {
	return m.ctx.hasher.Hash32(m.seed, key)
}

// lookup walks the probe sequence of key. It returns the slot holding key
// (or -1) and the first slot a new entry could take (or -1).
func (m *Map) lookup(key string, hash uint32) (found, free int) {
	found, free = -1, -1
	mask := uint64(len(m.slots) - 1)
	idx := probeNext(uint64(hash), mask)
	for range len(m.slots) {
		switch s := m.slots[idx]; s {
		case slotEmpty:
			if free < 0 {
				free = int(idx)
			}
			return
		case slotTombstone:
			if free < 0 {
				free = int(idx)
			}
		default:
			e := &m.entries[s-1]
			if e.hash == hash && e.key == key {
				found = int(idx)
				return
			}
		}
		idx = probeNext(idx, mask)
	}
	return
}

func (m *Map) find(key string) (*entry, int) {
	if m.length == 0 {
		return nil, -1
	}
	slot, _ := m.lookup(key, m.hash(key))
	if slot < 0 {
		return nil, -1
	}
	return &m.entries[m.slots[slot]-1], slot
}

// reserve makes room for one more key: it doubles the table when the load
// would reach MapGrowthLoadFactor, or rehashes in place when tombstones
// alone would push it there.
func (m *Map) reserve() error {
	c := len(m.slots)
	if float64(m.length+1)/float64(c) >= MapGrowthLoadFactor {
		n := c << 1
		if n <= c || n > maxMapCapacity {
			return ErrCapacityOverflow
		}
		m.rehash(n)
	} else if float64(m.length+1+m.tombstones)/float64(c) >= MapGrowthLoadFactor {
		m.rehash(c)
	}
	return nil
}

// rehash rebuilds the bucket array with n slots. Insertion order and entry
// indices are unchanged.
func (m *Map) rehash(n int) {
	slots := make([]int, n)
	mask := uint64(n - 1)
	for i := m.first; i != noEntry; i = m.entries[i].next {
		idx := probeNext(uint64(m.entries[i].hash), mask)
		for slots[idx] != slotEmpty {
			idx = probeNext(idx, mask)
		}
		slots[idx] = i + 1
	}
	m.slots = slots
	m.tombstones = 0
}

// Resize rebuilds the table with n buckets. n must be a power of two large
// enough to keep the load below MapGrowthLoadFactor; n below MinMapCapacity is
// raised to it with a warning.
func (m *Map) Resize(n int) error {
	if err := m.usable("Map.Resize"); err != nil {
		return err
	}
	if n < MinMapCapacity {
		m.ctx.log(slog.LevelWarn, "dyncol: Map.Resize: capacity below minimum, using minimum",
			slog.Int("requested", n), slog.Int("min", MinMapCapacity))
		n = MinMapCapacity
	}
	if !isPowerOfTwo(n) || n > maxMapCapacity {
		return m.ctx.report(opErr("Map.Resize", ErrInvalidCapacity))
	}
	if m.length > 0 && float64(m.length)/float64(n) >= MapGrowthLoadFactor {
		return m.ctx.report(opErr("Map.Resize", ErrCapacityTooSmall))
	}
	m.rehash(n)
	return nil
}

// Copy returns a deep copy of m with its own seed. Iteration order is kept.
func (m *Map) Copy() (*Map, error) {
	if err := m.usable("Map.Copy"); err != nil {
		return nil, err
	}
	return deepCopy(m.ctx, m).(*Map), nil
}

// Contains reports whether key is present.
func (m *Map) Contains(key string) bool {
	if m == nil || m.released {
		return false
	}
	e, _ := m.find(key)
	return e != nil
}

// Get returns the value stored under key as a borrowed view.
func (m *Map) Get(key string) (Value, error) {
	if m == nil || m.released {
		return Value{}, keyErr("Map.Get", key, ErrReleased)
	}
	e, _ := m.find(key)
	if e == nil {
		return Value{}, keyErr("Map.Get", key, ErrNotFound)
	}
	return e.value.borrowed(), nil
}

// Type returns the kind stored under key, or KindInvalid if key is absent.
func (m *Map) Type(key string) Kind {
	v, err := m.Get(key)
	if err != nil {
		m.context().report(err)
		return KindInvalid
	}
	return v.kind
}

func (m *Map) weak(op string, key string, want Kind) (Value, bool) {
	v, err := m.Get(key)
	if err == nil && v.kind != want {
		err = typeErr(op, want, v.kind)
	}
	if err != nil {
		m.context().report(withLocation(err, op, -1, []byte(key)))
		return Value{}, false
	}
	return v, true
}

// The typed getters below are weakly typed: a missing key or a kind mismatch
// logs a warning and yields the zero value. Use Get and the Value.AsXxx
// accessors for strict access.

func (m *Map) Bool(key string) bool {
	v, ok := m.weak("Map.Bool", key, KindBool)
	return ok && v.bits != 0
}

func (m *Map) Char(key string) byte {
	v, _ := m.weak("Map.Char", key, KindChar)
	return byte(v.bits)
}

func (m *Map) Double(key string) float64 {
	v, ok := m.weak("Map.Double", key, KindDouble)
	if !ok {
		return 0
	}
	return math.Float64frombits(v.bits)
}

func (m *Map) Int(key string) int64 {
	v, _ := m.weak("Map.Int", key, KindInt)
	return int64(v.bits)
}

func (m *Map) Uint(key string) uint64 {
	v, _ := m.weak("Map.Uint", key, KindUint)
	return v.bits
}

func (m *Map) Size(key string) uint64 {
	v, _ := m.weak("Map.Size", key, KindSize)
	return v.bits
}

func (m *Map) Str(key string) string {
	v, _ := m.weak("Map.Str", key, KindString)
	return string(v.bytes)
}

func (m *Map) Bytes(key string) []byte {
	v, _ := m.weak("Map.Bytes", key, KindString)
	return v.bytes
}

// List returns the nested list under key. It remains owned by m.
func (m *Map) List(key string) *List {
	v, _ := m.weak("Map.List", key, KindList)
	return v.list
}

// Map returns the nested map under key. It remains owned by m.
func (m *Map) Map(key string) *Map {
	v, _ := m.weak("Map.Map", key, KindMap)
	return v.m
}

func (m *Map) Opaque(key string) any {
	v, ok := m.weak("Map.Opaque", key, KindOpaque)
	if !ok || v.op == nil {
		return nil
	}
	return v.op.payload
}

// Set stores v under key, inserting or replacing. The key is always copied.
// Replacing keeps the entry's position in iteration order.
func (m *Map) Set(key string, v Value) error {
	return m.set("Map.Set", key, v)
}

// SetBytes is Set with a byte-slice key.
func (m *Map) SetBytes(key []byte, v Value) error {
	return m.set("Map.SetBytes", string(key), v)
}

func (m *Map) set(op string, key string, v Value) error {
	if err := m.usable(op); err != nil {
		return err
	}
	owned, err := materialize(m.ctx, m, v)
	if err != nil {
		return m.ctx.report(keyErr(op, key, err))
	}
	if err := m.put(key, owned); err != nil {
		discard(v, owned)
		return m.ctx.report(keyErr(op, key, err))
	}
	return nil
}

// put stores an already materialized value.
func (m *Map) put(key string, owned Value) error {
	hash := m.hash(key)
	slot, free := m.lookup(key, hash)
	if slot >= 0 {
		e := &m.entries[m.slots[slot]-1]
		old := e.value
		e.value = attach(m, owned)
		releaseStored(old)
		return nil
	}
	if float64(m.length+1+m.tombstones)/float64(len(m.slots)) >= MapGrowthLoadFactor {
		if err := m.reserve(); err != nil {
			return err
		}
		_, free = m.lookup(key, hash)
	}
	if free < 0 {
		return ErrCapacityOverflow // unreachable while the load stays below 1
	}
	if m.slots[free] == slotTombstone {
		m.tombstones--
	}
	i := m.allocEntry()
	e := &m.entries[i]
	e.hash = hash
	e.key = key
	e.value = attach(m, owned)
	e.live = true
	e.next = noEntry
	e.prev = m.last
	if m.last != noEntry {
		m.entries[m.last].next = i
	} else {
		m.first = i
	}
	m.last = i
	m.slots[free] = i + 1
	m.length++
	return nil
}

func (m *Map) allocEntry() int {
	if n := len(m.freeEntries); n > 0 {
		i := m.freeEntries[n-1]
		m.freeEntries = m.freeEntries[:n-1]
		return i
	}
	m.entries = append(m.entries, entry{})
	return len(m.entries) - 1
}

// unlink removes the entry in slot from the table and returns its value.
func (m *Map) unlink(slot int) Value {
	i := m.slots[slot] - 1
	e := &m.entries[i]
	if e.prev != noEntry {
		m.entries[e.prev].next = e.next
	} else {
		m.first = e.next
	}
	if e.next != noEntry {
		m.entries[e.next].prev = e.prev
	} else {
		m.last = e.prev
	}
	v := e.value
	*e = entry{gen: e.gen + 1, prev: noEntry, next: noEntry}
	m.freeEntries = append(m.freeEntries, i)
	m.slots[slot] = slotTombstone
	m.tombstones++
	m.length--
	return v
}

// Remove deletes key and releases its value.
func (m *Map) Remove(key string) error {
	if err := m.usable("Map.Remove"); err != nil {
		return err
	}
	e, slot := m.find(key)
	if e == nil {
		return m.ctx.report(keyErr("Map.Remove", key, ErrNotFound))
	}
	releaseStored(m.unlink(slot))
	return nil
}

// Pop deletes key and hands its value to the caller, who must eventually
// call Release on it.
func (m *Map) Pop(key string) (Value, error) {
	if err := m.usable("Map.Pop"); err != nil {
		return Value{}, err
	}
	e, slot := m.find(key)
	if e == nil {
		return Value{}, m.ctx.report(keyErr("Map.Pop", key, ErrNotFound))
	}
	return detach(m.unlink(slot)), nil
}

// Clear releases every entry and returns the map to minimum capacity.
func (m *Map) Clear() error {
	if err := m.usable("Map.Clear"); err != nil {
		return err
	}
	var stack []container
	for i := m.first; i != noEntry; i = m.entries[i].next {
		stack = releaseValue(m.entries[i].value, stack)
	}
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		stack = c.releaseShallow(stack)
	}
	m.reset(MinMapCapacity)
	return nil
}

func (m *Map) reset(capacity int) {
	m.epoch++
	m.slots = make([]int, capacity)
	m.entries = nil
	m.freeEntries = nil
	m.tombstones = 0
	m.length = 0
	m.first, m.last = noEntry, noEntry
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil || m.released {
		return nil
	}
	keys := make([]string, 0, m.length)
	for i := m.first; i != noEntry; i = m.entries[i].next {
		keys = append(keys, m.entries[i].key)
	}
	return keys
}

// All yields keys and borrowed values in insertion order. The map must not
// be modified during iteration.
func (m *Map) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		if m == nil || m.released {
			return
		}
		for i := m.first; i != noEntry; i = m.entries[i].next {
			e := &m.entries[i]
			if !yield(e.key, e.value.borrowed()) {
				return
			}
		}
	}
}

// Free releases every entry (running opaque destructors, freeing nested
// containers) and marks m unusable. Maps nested in another container cannot
// be freed directly. Freeing twice is a no-op.
func (m *Map) Free() error {
	if m == nil || m.released {
		m.context().debug("Map.Free", "map is nil or already freed")
		return nil
	}
	if m.parent != nil {
		return m.ctx.report(opErr("Map.Free", ErrAlreadyOwned))
	}
	releaseTree(m)
	return nil
}

func (m *Map) releaseShallow(stack []container) []container {
	for i := m.first; i != noEntry; i = m.entries[i].next {
		stack = releaseValue(m.entries[i].value, stack)
	}
	m.reset(0)
	m.slots = nil
	m.parent = nil
	m.released = true
	return stack
}

func (m *Map) fillFrom(src container, stack []copyTask) []copyTask {
	s := src.(*Map)
	for i := s.first; i != noEntry; i = s.entries[i].next {
		e := &s.entries[i]
		cv, task := copyStored(m.ctx, m, e.value)
		// cannot fail: m starts with the capacity of s
		m.put(e.key, cv)
		if task != nil {
			stack = append(stack, *task)
		}
	}
	return stack
}
