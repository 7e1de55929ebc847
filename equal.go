package dyncol

import (
	"bytes"
	"math"
)

// Equal reports whether a and b hold structurally equal data. Lists compare
// element-wise in order; maps compare as key sets regardless of insertion
// order. Nil and freed containers equal empty ones. Doubles compare with ==, so NaN never equals itself. Opaque values
// are equal when they share a handle or both carry equal byte payloads.
func Equal(a, b Value) bool {
	type pair struct{ a, b Value }
	stack := []pair{{a, b}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		a, b := p.a, p.b
		if a.kind != b.kind {
			return false
		}
		switch a.kind {
		case KindDouble:
			if math.Float64frombits(a.bits) != math.Float64frombits(b.bits) {
				return false
			}
		case KindBool, KindChar, KindInt, KindUint, KindSize:
			if a.bits != b.bits {
				return false
			}
		case KindString:
			if !bytes.Equal(a.bytes, b.bytes) {
				return false
			}
		case KindOpaque:
			if !opaqueEqual(a.op, b.op) {
				return false
			}
		case KindList:
			la, lb := a.list, b.list
			if la == lb {
				continue
			}
			// nil and freed lists compare as empty
			if la.Len() != lb.Len() {
				return false
			}
			if la.Len() == 0 {
				continue
			}
			for i := 0; i < la.Len(); i++ {
				stack = append(stack, pair{la.items[i], lb.items[i]})
			}
		case KindMap:
			ma, mb := a.m, b.m
			if ma == mb {
				continue
			}
			if ma.Len() != mb.Len() {
				return false
			}
			if ma.Len() == 0 {
				continue
			}
			for i := ma.first; i != noEntry; i = ma.entries[i].next {
				e := &ma.entries[i]
				o, _ := mb.find(e.key)
				if o == nil {
					return false
				}
				stack = append(stack, pair{e.value, o.value})
			}
		}
	}
	return true
}

func opaqueEqual(a, b *opaque) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	ab, ok1 := a.payload.([]byte)
	bb, ok2 := b.payload.([]byte)
	return ok1 && ok2 && bytes.Equal(ab, bb)
}
