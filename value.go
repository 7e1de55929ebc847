package dyncol

import (
	"math"
)

// Destructor is invoked exactly once when the last owner of an adopted opaque
// payload releases it.
type Destructor func(payload any)

// Cloner is implemented by opaque payloads that know how to deep-copy
// themselves. Deep copies of opaque values without Cloner share the payload.
type Cloner interface {
	Clone() any
}

type mode uint8

const (
	// modeCopy values describe caller-owned source data the container copies.
	modeCopy mode = iota
	// modeAdopt values carry data the container takes exclusive ownership of.
	modeAdopt
	// modeOwned values are owned by whoever holds them: stored in a container,
	// or returned to the caller by Pop.
	modeOwned
	// modeBorrowed values are read-only views into a container, returned by Get.
	modeBorrowed
)

// Value is a tagged value: a Kind plus the matching payload. Values are built
// with the copy-mode constructors (Bool, Int, String, CopyBytes, CopyList, ...)
// or the adopt-mode ones (AdoptBytes, AdoptList, AdoptMap, AdoptOpaque).
//
// The zero Value has KindInvalid and is rejected by every insertion.
type Value struct {
	kind  Kind
	mode  mode
	bits  uint64
	bytes []byte
	list  *List
	m     *Map
	op    *opaque
}

type opaque struct {
	payload any
	size    int
	destroy Destructor
	refs    int
	loose   int // references popped out to callers and not yet stored or released
}

func (o *opaque) retain() {
	o.refs++
}

func (o *opaque) release() {
	if o.refs > 1 {
		o.refs--
		return
	}
	o.refs = 0
	if o.destroy != nil {
		destroy := o.destroy
		o.destroy = nil
		destroy(o.payload)
	}
	o.payload = nil
}

func Null() Value            { return Value{kind: KindNull} }
func Bool(v bool) Value      { return Value{kind: KindBool, bits: boolBits(v)} }
func Char(v byte) Value      { return Value{kind: KindChar, bits: uint64(v)} }
func Double(v float64) Value { return Value{kind: KindDouble, bits: math.Float64bits(v)} }
func Int(v int64) Value      { return Value{kind: KindInt, bits: uint64(v)} }
func Uint(v uint64) Value    { return Value{kind: KindUint, bits: v} }

// Size returns a size-typed integer value.
func Size(v uint64) Value { return Value{kind: KindSize, bits: v} }

// String returns a string value holding a copy of s.
func String(s string) Value {
	return Value{kind: KindString, bytes: []byte(s)}
}

// CopyBytes returns a string value that copies b when inserted. The caller
// keeps ownership of b.
func CopyBytes(b []byte) Value {
	return Value{kind: KindString, bytes: b, mode: modeCopy}
}

// AdoptBytes returns a string value that takes ownership of b without copying.
// The caller must not read or modify b afterwards.
func AdoptBytes(b []byte) Value {
	return Value{kind: KindString, bytes: b, mode: modeAdopt}
}

// CopyList returns a value that deep-copies l when inserted.
func CopyList(l *List) Value {
	return Value{kind: KindList, list: l, mode: modeCopy}
}

// AdoptList returns a value that moves l into the container it is inserted
// into. l must be a root list (not nested in another container).
func AdoptList(l *List) Value {
	return Value{kind: KindList, list: l, mode: modeAdopt}
}

// CopyMap returns a value that deep-copies m when inserted.
func CopyMap(m *Map) Value {
	return Value{kind: KindMap, m: m, mode: modeCopy}
}

// AdoptMap returns a value that moves m into the container it is inserted
// into. m must be a root map (not nested in another container).
func AdoptMap(m *Map) Value {
	return Value{kind: KindMap, m: m, mode: modeAdopt}
}

// CopyOpaque returns an opaque value whose payload is a private copy of data.
func CopyOpaque(data []byte) Value {
	return Value{kind: KindOpaque, op: &opaque{payload: data, size: len(data)}, mode: modeCopy}
}

// AdoptOpaque returns an opaque value owning payload. destroy, if not nil, is
// called exactly once when the payload is released. size is the payload's
// byte length as reported by ByteLen.
func AdoptOpaque(payload any, size int, destroy Destructor) Value {
	return Value{kind: KindOpaque, op: &opaque{payload: payload, size: size, destroy: destroy}, mode: modeAdopt}
}

func boolBits(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

// Kind returns the value's type tag.
func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// ByteLen returns the byte length of the payload: the fixed width for scalars,
// the buffer length for strings and opaque payloads, 0 for null and containers.
func (v Value) ByteLen() int {
	if n := v.kind.fixedByteLen(); n >= 0 {
		return n
	}
	switch v.kind {
	case KindString:
		return len(v.bytes)
	case KindOpaque:
		if v.op == nil {
			return 0
		}
		return v.op.size
	default:
		return 0
	}
}

func (v Value) AsBool() (bool, error) {
	if v.kind != KindBool {
		return false, typeErr("Value.AsBool", KindBool, v.kind)
	}
	return v.bits != 0, nil
}

func (v Value) AsChar() (byte, error) {
	if v.kind != KindChar {
		return 0, typeErr("Value.AsChar", KindChar, v.kind)
	}
	return byte(v.bits), nil
}

func (v Value) AsDouble() (float64, error) {
	if v.kind != KindDouble {
		return 0, typeErr("Value.AsDouble", KindDouble, v.kind)
	}
	return math.Float64frombits(v.bits), nil
}

func (v Value) AsInt() (int64, error) {
	if v.kind != KindInt {
		return 0, typeErr("Value.AsInt", KindInt, v.kind)
	}
	return int64(v.bits), nil
}

func (v Value) AsUint() (uint64, error) {
	if v.kind != KindUint {
		return 0, typeErr("Value.AsUint", KindUint, v.kind)
	}
	return v.bits, nil
}

func (v Value) AsSize() (uint64, error) {
	if v.kind != KindSize {
		return 0, typeErr("Value.AsSize", KindSize, v.kind)
	}
	return v.bits, nil
}

// AsString returns a copy of the string payload.
func (v Value) AsString() (string, error) {
	if v.kind != KindString {
		return "", typeErr("Value.AsString", KindString, v.kind)
	}
	return string(v.bytes), nil
}

// AsBytes returns the string payload itself. Bytes may be modified in place
// when v came from a container, but the slice must not be retained past the
// value's removal.
func (v Value) AsBytes() ([]byte, error) {
	if v.kind != KindString {
		return nil, typeErr("Value.AsBytes", KindString, v.kind)
	}
	return v.bytes, nil
}

// AsList returns the nested list. A list obtained from a container stays owned
// by it: it may be mutated but must not be freed.
func (v Value) AsList() (*List, error) {
	if v.kind != KindList {
		return nil, typeErr("Value.AsList", KindList, v.kind)
	}
	return v.list, nil
}

// AsMap returns the nested map, with the same ownership rules as AsList.
func (v Value) AsMap() (*Map, error) {
	if v.kind != KindMap {
		return nil, typeErr("Value.AsMap", KindMap, v.kind)
	}
	return v.m, nil
}

func (v Value) AsOpaque() (any, error) {
	if v.kind != KindOpaque {
		return nil, typeErr("Value.AsOpaque", KindOpaque, v.kind)
	}
	if v.op == nil {
		return nil, nil
	}
	return v.op.payload, nil
}

// Release frees what v owns: it runs the opaque destructor or frees the
// nested container. Values returned by Pop must be released by the caller.
// Release is a no-op for copy-mode and borrowed values.
func (v Value) Release() {
	if v.mode != modeOwned && v.mode != modeAdopt {
		return
	}
	switch v.kind {
	case KindOpaque:
		if v.op == nil {
			return
		}
		if v.mode == modeOwned {
			if v.op.loose == 0 {
				return
			}
			v.op.loose--
		}
		v.op.release()
	case KindList:
		if v.list != nil && v.list.parent == nil {
			releaseTree(v.list)
		}
	case KindMap:
		if v.m != nil && v.m.parent == nil {
			releaseTree(v.m)
		}
	}
}

func (v Value) borrowed() Value {
	v.mode = modeBorrowed
	return v
}
