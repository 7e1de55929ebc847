package dyncol

import (
	"strings"
	"testing"
)

func TestDump(t *testing.T) {
	ctx, _ := newTestContext(t, nil)
	m := ctx.NewMap()
	ensure(m.Set("b", Bool(true)))
	ensure(m.Set("c", Char('q')))
	ensure(m.Set("d", Double(0.5)))
	ensure(m.Set("u", Uint(3)))
	ensure(m.Set("s", String("x\"y")))
	ensure(m.Set("o", CopyOpaque([]byte{1, 2})))
	ensure(m.Set("l", AdoptList(intList(ctx, 1))))

	eq(t, m.String(), `{"b": true, "c": 'q', "d": 0.5, "u": 3, "s": "x\"y", "o": <opaque 2 bytes>, "l": [1]}`)
	eq(t, Dump(Int(5), DumpKinds), "int(5)")

	l := intList(ctx, 1, 2)
	eq(t, Dump(CopyList(l), DumpStats), "[1, 2] (len 2 cap 8)")
	eq(t, Dump(CopyList(l), DumpIndent), "[\n  1,\n  2\n]")
	eq(t, Dump(CopyList(ctx.NewList()), DumpIndent), "[]")

	ensure(l.Free())
	eq(t, l.String(), "<freed list>")
	eq(t, Value{}.String(), "<invalid>")

	if !DumpKinds.Contains(DumpKinds) || DumpKinds.Contains(DumpStats) {
		t.Fatalf("DumpFlags.Contains returned unexpected results")
	}
}

func TestDumpDepthLimit(t *testing.T) {
	ctx, _ := newTestContext(t, nil)
	cur := ctx.NewList()
	for range 100 {
		outer := ctx.NewList()
		ensure(outer.Append(AdoptList(cur)))
		cur = outer
	}
	s := cur.String()
	if !strings.Contains(s, "[...]") {
		t.Fatalf("String() = %q, wanted elision", s)
	}
}

func TestStats(t *testing.T) {
	ctx, _ := newTestContext(t, constHasher{})
	m := ctx.NewMap()
	ensure(m.Set("a", Int(1)))
	ensure(m.Set("b", Int(2)))
	ensure(m.Set("c", Int(3)))
	ensure(m.Remove("b"))

	st := m.Stats()
	eq(t, st.Len, 2)
	eq(t, st.Cap, 8)
	eq(t, st.Tombstones, 1)
	eq(t, st.FreeSlots, 1)
	eq(t, st.MaxProbe, 3)
	eq(t, st.TotalProbe, 4)
	eq(t, st.AvgProbe(), 2.0)
	eq(t, st.Load(), 0.25)
	eq(t, st.DirtyLoad(), 0.375)

	ls := intList(ctx, 1, 2).Stats()
	eq(t, ls, ListStats{Len: 2, Cap: 8})
	eq(t, ls.Load(), 0.25)

	var nilMap *Map
	eq(t, nilMap.Stats(), MapStats{})
}

func TestEqual(t *testing.T) {
	ctx, _ := newTestContext(t, nil)
	a := ctx.NewMap()
	ensure(a.Set("x", Int(1)))
	ensure(a.Set("y", String("s")))
	b := ctx.NewMap()
	ensure(b.Set("y", String("s")))
	ensure(b.Set("x", Int(1)))

	eq(t, Equal(CopyMap(a), CopyMap(b)), true)
	ensure(b.Set("x", Uint(1)))
	eq(t, Equal(CopyMap(a), CopyMap(b)), false)

	eq(t, Equal(Null(), Null()), true)
	eq(t, Equal(Int(1), Uint(1)), false)
	eq(t, Equal(Double(0), Double(-0.0)), true)
	eq(t, Equal(CopyOpaque([]byte("a")), CopyOpaque([]byte("a"))), true)
	eq(t, Equal(AdoptOpaque(1, 0, nil), AdoptOpaque(1, 0, nil)), false)

	empty := ctx.NewMap()
	eq(t, Equal(CopyMap(nil), CopyMap(empty)), true)
	eq(t, Equal(CopyMap(empty), CopyMap(nil)), true)
	eq(t, Equal(CopyMap(nil), CopyMap(a)), false)
	eq(t, Equal(CopyList(nil), CopyList(ctx.NewList())), true)

	freed := ctx.NewMap()
	ensure(freed.Set("x", Int(1)))
	ensure(freed.Free())
	eq(t, Equal(CopyMap(freed), CopyMap(empty)), true)

	l := ctx.NewList()
	ensure(l.Append(CopyMap(empty)))
	eq(t, l.Contains(CopyMap(nil)), true)
}
