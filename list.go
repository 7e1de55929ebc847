package dyncol

import (
	"iter"
	"log/slog"
	"math"
)

const (
	MinListCapacity = 8

	listGrowthFactor     = 1.5
	listShrinkLoadFactor = 0.25
	listShrinkFactor     = 0.5
)

// List is a growable array of Values. Capacity is tracked explicitly and
// never drops below MinListCapacity.
type List struct {
	ctx      *Context
	items    []Value // len(items) is the capacity
	length   int
	parent   container
	released bool
}

var _ container = (*List)(nil)

// NewList returns an empty list using the default Context.
func NewList() *List {
	return defaultContext.NewList()
}

func newListCap(ctx *Context, capacity int) *List {
	if capacity < MinListCapacity {
		capacity = MinListCapacity
	}
	return &List{ctx: contextOf(ctx), items: make([]Value, capacity)}
}

func (l *List) parentContainer() container { return l.parent }
func (l *List) setParent(p container)      { l.parent = p }
func (l *List) isReleased() bool           { return l.released }

func (l *List) context() *Context {
	if l == nil {
		return defaultContext
	}
	return l.ctx
}

func (l *List) Context() *Context {
	return l.context()
}

func (l *List) usable(op string) error {
	if l == nil {
		return l.context().report(opErr(op, ErrNoValue))
	}
	if l.released {
		return l.ctx.report(opErr(op, ErrReleased))
	}
	return nil
}

// Len returns the number of values; 0 for a nil or freed list.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return l.length
}

// Cap returns the number of allocated slots.
func (l *List) Cap() int {
	if l == nil {
		return 0
	}
	return len(l.items)
}

// Copy returns a deep copy of l. Nested lists and maps are copied too.
func (l *List) Copy() (*List, error) {
	if err := l.usable("List.Copy"); err != nil {
		return nil, err
	}
	return deepCopy(l.ctx, l).(*List), nil
}

// Resize sets the capacity to n. Values past n are released. n below
// MinListCapacity is raised to it with a warning.
func (l *List) Resize(n int) error {
	if err := l.usable("List.Resize"); err != nil {
		return err
	}
	if n < MinListCapacity {
		l.ctx.log(slog.LevelWarn, "dyncol: List.Resize: capacity below minimum, using minimum",
			slog.Int("requested", n), slog.Int("min", MinListCapacity))
		n = MinListCapacity
	}
	if n < l.length {
		for i := n; i < l.length; i++ {
			releaseStored(l.items[i])
			l.items[i] = Value{}
		}
		l.length = n
	}
	l.setCapacity(n)
	return nil
}

func (l *List) setCapacity(n int) {
	if n == len(l.items) {
		return
	}
	items := make([]Value, n)
	copy(items, l.items[:l.length])
	l.items = items
}

// grownCapacity is the capacity after one growth step.
func grownCapacity(c int) (int, error) {
	if c <= 1 {
		c++
	}
	n := math.Ceil(float64(c) * listGrowthFactor)
	if n >= math.MaxInt32 {
		return 0, ErrCapacityOverflow
	}
	return int(n), nil
}

// roomFor returns the capacity needed to add one more value.
func (l *List) roomFor() (int, error) {
	if l.length+1 >= len(l.items) {
		return grownCapacity(len(l.items))
	}
	return len(l.items), nil
}

func (l *List) maybeShrink(op string) {
	c := len(l.items)
	if c <= MinListCapacity {
		return
	}
	if float64(l.length)/float64(c) > listShrinkLoadFactor {
		return
	}
	target := int(float64(c) - float64(c-l.length)*listShrinkFactor)
	if target < MinListCapacity {
		target = MinListCapacity
	}
	if target >= c {
		l.ctx.log(slog.LevelWarn, "dyncol: "+op+": unable to shrink list", slog.Int("target", target), slog.Int("cap", c))
		return
	}
	l.setCapacity(target)
}

func (l *List) checkIndex(op string, i int) error {
	if i < 0 || i >= l.length {
		return l.ctx.report(indexErr(op, i, ErrOutOfRange))
	}
	return nil
}

// Get returns the value at i. The result is a borrowed view: nested
// containers stay owned by l, and Release on it does nothing.
func (l *List) Get(i int) (Value, error) {
	if l == nil || l.released {
		return Value{}, indexErr("List.Get", i, ErrReleased)
	}
	if i < 0 || i >= l.length {
		return Value{}, indexErr("List.Get", i, ErrOutOfRange)
	}
	return l.items[i].borrowed(), nil
}

// Type returns the kind at i, or KindInvalid if i is out of range.
func (l *List) Type(i int) Kind {
	v, err := l.Get(i)
	if err != nil {
		l.context().report(err)
		return KindInvalid
	}
	return v.kind
}

// ItemSize returns the byte length of the value at i, or 0 if out of range.
func (l *List) ItemSize(i int) int {
	v, err := l.Get(i)
	if err != nil {
		l.context().report(err)
		return 0
	}
	return v.ByteLen()
}

func (l *List) weak(op string, i int, want Kind) (Value, bool) {
	v, err := l.Get(i)
	if err == nil && v.kind != want {
		err = &AccessError{Op: op, Index: i, Want: want, Got: v.kind, Err: ErrTypeMismatch}
	}
	if err != nil {
		l.context().report(withLocation(err, op, i, nil))
		return Value{}, false
	}
	return v, true
}

// The typed getters below are weakly typed: on a kind mismatch or bad index
// they log a warning and return the zero value, leaving the list untouched.

func (l *List) Bool(i int) bool {
	v, ok := l.weak("List.Bool", i, KindBool)
	return ok && v.bits != 0
}

func (l *List) Char(i int) byte {
	v, _ := l.weak("List.Char", i, KindChar)
	return byte(v.bits)
}

func (l *List) Double(i int) float64 {
	v, ok := l.weak("List.Double", i, KindDouble)
	if !ok {
		return 0
	}
	return math.Float64frombits(v.bits)
}

func (l *List) Int(i int) int64 {
	v, _ := l.weak("List.Int", i, KindInt)
	return int64(v.bits)
}

func (l *List) Uint(i int) uint64 {
	v, _ := l.weak("List.Uint", i, KindUint)
	return v.bits
}

func (l *List) Size(i int) uint64 {
	v, _ := l.weak("List.Size", i, KindSize)
	return v.bits
}

func (l *List) Str(i int) string {
	v, _ := l.weak("List.Str", i, KindString)
	return string(v.bytes)
}

// Bytes returns the stored string buffer itself; see Value.AsBytes.
func (l *List) Bytes(i int) []byte {
	v, _ := l.weak("List.Bytes", i, KindString)
	return v.bytes
}

// List returns the nested list at i. It remains owned by l.
func (l *List) List(i int) *List {
	v, _ := l.weak("List.List", i, KindList)
	return v.list
}

// Map returns the nested map at i. It remains owned by l.
func (l *List) Map(i int) *Map {
	v, _ := l.weak("List.Map", i, KindMap)
	return v.m
}

func (l *List) Opaque(i int) any {
	v, ok := l.weak("List.Opaque", i, KindOpaque)
	if !ok || v.op == nil {
		return nil
	}
	return v.op.payload
}

// Append adds v at the end.
func (l *List) Append(v Value) error {
	if err := l.usable("List.Append"); err != nil {
		return err
	}
	return l.insertAt("List.Append", l.length, v)
}

// Insert adds v at position i, shifting later values right. An i at or past
// the end appends.
func (l *List) Insert(i int, v Value) error {
	if err := l.usable("List.Insert"); err != nil {
		return err
	}
	if i < 0 {
		return l.ctx.report(indexErr("List.Insert", i, ErrOutOfRange))
	}
	if i > l.length {
		i = l.length
	}
	return l.insertAt("List.Insert", i, v)
}

func (l *List) insertAt(op string, i int, v Value) error {
	newCap, err := l.roomFor()
	if err != nil {
		return l.ctx.report(indexErr(op, i, err))
	}
	owned, err := materialize(l.ctx, l, v)
	if err != nil {
		return l.ctx.report(indexErr(op, i, err))
	}
	l.setCapacity(newCap)
	copy(l.items[i+1:l.length+1], l.items[i:l.length])
	l.items[i] = attach(l, owned)
	l.length++
	return nil
}

// Replace releases the value at i and stores v in its place.
func (l *List) Replace(i int, v Value) error {
	if err := l.usable("List.Replace"); err != nil {
		return err
	}
	if err := l.checkIndex("List.Replace", i); err != nil {
		return err
	}
	owned, err := materialize(l.ctx, l, v)
	if err != nil {
		return l.ctx.report(indexErr("List.Replace", i, err))
	}
	old := l.items[i]
	l.items[i] = attach(l, owned)
	releaseStored(old)
	return nil
}

// Remove releases the value at i and shifts later values left.
func (l *List) Remove(i int) error {
	if err := l.usable("List.Remove"); err != nil {
		return err
	}
	if err := l.checkIndex("List.Remove", i); err != nil {
		return err
	}
	old := l.take(i)
	releaseStored(old)
	l.maybeShrink("List.Remove")
	return nil
}

// Pop removes the value at i and hands its ownership to the caller, who must
// eventually call Release on it.
func (l *List) Pop(i int) (Value, error) {
	if err := l.usable("List.Pop"); err != nil {
		return Value{}, err
	}
	if err := l.checkIndex("List.Pop", i); err != nil {
		return Value{}, err
	}
	v := detach(l.take(i))
	l.maybeShrink("List.Pop")
	return v, nil
}

func (l *List) take(i int) Value {
	v := l.items[i]
	copy(l.items[i:l.length-1], l.items[i+1:l.length])
	l.length--
	l.items[l.length] = Value{}
	return v
}

// Clear releases every value and returns the list to minimum capacity.
func (l *List) Clear() error {
	if err := l.usable("List.Clear"); err != nil {
		return err
	}
	for i := 0; i < l.length; i++ {
		releaseStored(l.items[i])
	}
	l.length = 0
	l.items = make([]Value, MinListCapacity)
	return nil
}

// Contains reports whether some value in l is structurally equal to v.
func (l *List) Contains(v Value) bool {
	if l == nil || l.released {
		return false
	}
	for _, item := range l.items[:l.length] {
		if Equal(item, v) {
			return true
		}
	}
	return false
}

// All yields borrowed values in order.
func (l *List) All() iter.Seq2[int, Value] {
	return func(yield func(int, Value) bool) {
		if l == nil || l.released {
			return
		}
		for i := 0; i < l.length; i++ {
			if !yield(i, l.items[i].borrowed()) {
				return
			}
		}
	}
}

// Free releases every value (running opaque destructors, freeing nested
// containers) and marks l unusable. Lists nested in another container cannot
// be freed directly. Freeing twice is a no-op.
func (l *List) Free() error {
	if l == nil || l.released {
		l.context().debug("List.Free", "list is nil or already freed")
		return nil
	}
	if l.parent != nil {
		return l.ctx.report(opErr("List.Free", ErrAlreadyOwned))
	}
	releaseTree(l)
	return nil
}

func (l *List) releaseShallow(stack []container) []container {
	for i := 0; i < l.length; i++ {
		stack = releaseValue(l.items[i], stack)
	}
	l.items = nil
	l.length = 0
	l.parent = nil
	l.released = true
	return stack
}

func (l *List) fillFrom(src container, stack []copyTask) []copyTask {
	s := src.(*List)
	for _, v := range s.items[:s.length] {
		cv, task := copyStored(l.ctx, l, v)
		l.items[l.length] = cv
		l.length++
		if task != nil {
			stack = append(stack, *task)
		}
	}
	return stack
}
