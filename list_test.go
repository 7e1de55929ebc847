package dyncol

import (
	"errors"
	"log/slog"
	"math/rand/v2"
	"slices"
	"testing"
)

func TestListGrowth(t *testing.T) {
	ctx, _ := newTestContext(t, nil)
	l := ctx.NewList()
	eq(t, l.Len(), 0)
	eq(t, l.Cap(), 8)

	for i := range 7 {
		success(t, l.Append(Int(int64(i))))
		eq(t, l.Cap(), 8)
	}
	success(t, l.Append(Int(7)))
	eq(t, l.Len(), 8)
	eq(t, l.Cap(), 12)

	for i := 8; i < 11; i++ {
		success(t, l.Append(Int(int64(i))))
	}
	eq(t, l.Cap(), 12)
	success(t, l.Append(Int(11)))
	eq(t, l.Cap(), 18)
	deepEqual(t, listInts(t, l), []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11})
}

func TestGrownCapacity(t *testing.T) {
	tests := []struct {
		cap, wanted int
	}{
		{0, 2},
		{1, 3},
		{2, 3},
		{8, 12},
		{12, 18},
		{13, 20},
	}
	for _, tt := range tests {
		got, err := grownCapacity(tt.cap)
		success(t, err)
		if got != tt.wanted {
			t.Errorf("grownCapacity(%d) = %d, wanted %d", tt.cap, got, tt.wanted)
		}
	}
	if _, err := grownCapacity(1 << 31); !errors.Is(err, ErrCapacityOverflow) {
		t.Fatalf("grownCapacity(2^31) err = %v, wanted ErrCapacityOverflow", err)
	}
}

func TestListInsert(t *testing.T) {
	ctx, rec := newTestContext(t, nil)
	l := intList(ctx, 1, 2, 3)

	success(t, l.Insert(0, Int(0)))
	success(t, l.Insert(2, Int(15)))
	success(t, l.Insert(100, Int(4)))
	deepEqual(t, listInts(t, l), []int64{0, 1, 15, 2, 3, 4})

	err := l.Insert(-1, Int(9))
	if !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("Insert(-1) err = %v, wanted ErrOutOfRange", err)
	}
	eq(t, rec.count(slog.LevelWarn, "List.Insert[-1]"), 1)

	if err := l.Insert(0, Value{}); !errors.Is(err, ErrNoValue) {
		t.Fatalf("Insert(zero Value) err = %v, wanted ErrNoValue", err)
	}
	eq(t, l.Len(), 6)
}

func TestListReplaceRemove(t *testing.T) {
	ctx, _ := newTestContext(t, nil)
	l := intList(ctx, 1, 2, 3)

	success(t, l.Replace(1, String("two")))
	eq(t, l.Type(1), KindString)
	eq(t, l.Str(1), "two")
	eq(t, l.ItemSize(1), 3)
	eq(t, l.ItemSize(0), 8)

	success(t, l.Remove(0))
	eq(t, l.Len(), 2)
	eq(t, l.Str(0), "two")
	eq(t, l.Int(1), int64(3))

	if err := l.Remove(2); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("Remove(2) err = %v, wanted ErrOutOfRange", err)
	}
	if err := l.Replace(5, Null()); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("Replace(5) err = %v, wanted ErrOutOfRange", err)
	}
	eq(t, l.Type(7), KindInvalid)
}

func TestListShrink(t *testing.T) {
	ctx, _ := newTestContext(t, nil)
	l := ctx.NewList()
	for i := range 40 {
		success(t, l.Append(Int(int64(i))))
	}
	c := l.Cap()
	if c < 41 {
		t.Fatalf("Cap = %d, wanted > 40", c)
	}

	for l.Len() > 0 {
		before := l.Cap()
		success(t, l.Remove(l.Len()-1))
		after := l.Cap()
		if after < before {
			if float64(l.Len())/float64(before) > 0.25 {
				t.Fatalf("shrunk from %d to %d at len %d, load above 0.25", before, after, l.Len())
			}
			if wanted := max(8, int(float64(before)-float64(before-l.Len())*0.5)); after != wanted {
				t.Fatalf("shrunk from %d to %d at len %d, wanted %d", before, after, l.Len(), wanted)
			}
		}
		if after < 8 || l.Len() >= after {
			t.Fatalf("Cap = %d with Len = %d", after, l.Len())
		}
	}
	eq(t, l.Cap(), 8)
}

func TestListShrinkTruncatesTarget(t *testing.T) {
	ctx, _ := newTestContext(t, nil)
	l := ctx.NewList()
	success(t, l.Resize(41))
	for i := range 11 {
		success(t, l.Append(Int(int64(i))))
	}
	eq(t, l.Cap(), 41)
	success(t, l.Remove(10))
	// 41 - (41-10)*0.5 = 25.5
	eq(t, l.Cap(), 25)
	deepEqual(t, listInts(t, l), []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})
}

func TestListResize(t *testing.T) {
	ctx, rec := newTestContext(t, nil)
	l := intList(ctx, 1, 2, 3, 4, 5)

	success(t, l.Resize(32))
	eq(t, l.Cap(), 32)
	deepEqual(t, listInts(t, l), []int64{1, 2, 3, 4, 5})

	success(t, l.Resize(3))
	eq(t, rec.count(slog.LevelWarn, "below minimum"), 1)
	eq(t, l.Cap(), 8)
	eq(t, l.Len(), 5)

	big := ctx.NewList()
	for i := range 20 {
		success(t, big.Append(Int(int64(i))))
	}
	success(t, big.Resize(10))
	eq(t, big.Len(), 10)
	eq(t, big.Cap(), 10)
	eq(t, big.Int(9), int64(9))
}

func TestListWeakGetters(t *testing.T) {
	ctx, rec := newTestContext(t, nil)
	l := ctx.NewList()
	success(t, l.Append(Bool(true)))
	success(t, l.Append(Char('x')))
	success(t, l.Append(Double(2.5)))
	success(t, l.Append(Int(-3)))
	success(t, l.Append(Uint(7)))
	success(t, l.Append(Size(9)))
	success(t, l.Append(String("hi")))
	success(t, l.Append(Null()))

	eq(t, l.Bool(0), true)
	eq(t, l.Char(1), byte('x'))
	eq(t, l.Double(2), 2.5)
	eq(t, l.Int(3), int64(-3))
	eq(t, l.Uint(4), uint64(7))
	eq(t, l.Size(5), uint64(9))
	eq(t, l.Str(6), "hi")
	eq(t, string(l.Bytes(6)), "hi")
	eq(t, l.Type(7), KindNull)
	eq(t, rec.count(slog.LevelWarn, ""), 0)

	eq(t, l.Double(3), 0.0)
	eq(t, l.Int(2), int64(0))
	eq(t, l.Str(0), "")
	isnil(t, l.List(0))
	isnil(t, l.Map(0))
	eq(t, l.Opaque(0), nil)
	eq(t, l.Int(99), int64(0))
	eq(t, rec.count(slog.LevelWarn, "type mismatch"), 6)
	eq(t, rec.count(slog.LevelWarn, "List.Int[99]"), 1)

	// stored values are untouched by failed weak reads
	eq(t, l.Type(3), KindInt)
	eq(t, l.Int(3), int64(-3))
}

func TestListPopTransfersOwnership(t *testing.T) {
	ctx, _ := newTestContext(t, nil)
	l := ctx.NewList()

	var destroyed int
	success(t, l.Append(AdoptOpaque("payload", 7, func(any) { destroyed++ })))
	success(t, l.Append(AdoptList(intList(ctx, 1, 2))))

	inner, err := l.Pop(1)
	success(t, err)
	il := must(inner.AsList())
	if il.parent != nil {
		t.Fatalf("popped list still has a parent")
	}
	deepEqual(t, listInts(t, il), []int64{1, 2})

	op, err := l.Pop(0)
	success(t, err)
	eq(t, op.ByteLen(), 7)
	eq(t, l.Len(), 0)

	success(t, l.Free())
	eq(t, destroyed, 0)

	op.Release()
	eq(t, destroyed, 1)
	op.Release()
	eq(t, destroyed, 1)

	inner.Release()
	if !il.released {
		t.Fatalf("popped list not freed by Release")
	}
}

func TestListClear(t *testing.T) {
	ctx, _ := newTestContext(t, nil)
	l := ctx.NewList()
	var destroyed int
	for i := range 20 {
		success(t, l.Append(AdoptOpaque(i, 0, func(any) { destroyed++ })))
	}
	success(t, l.Clear())
	eq(t, destroyed, 20)
	eq(t, l.Len(), 0)
	eq(t, l.Cap(), 8)
	success(t, l.Append(Int(1)))
	eq(t, l.Len(), 1)
}

func TestListContains(t *testing.T) {
	ctx, _ := newTestContext(t, nil)
	l := ctx.NewList()
	success(t, l.Append(String("abc")))
	success(t, l.Append(Double(1.5)))
	success(t, l.Append(CopyList(intList(ctx, 1, 2))))

	eq(t, l.Contains(String("abc")), true)
	eq(t, l.Contains(String("abd")), false)
	eq(t, l.Contains(String("ab")), false)
	eq(t, l.Contains(Double(1.5)), true)
	eq(t, l.Contains(Int(1)), false)
	eq(t, l.Contains(CopyList(intList(ctx, 1, 2))), true)
	eq(t, l.Contains(CopyList(intList(ctx, 2, 1))), false)
}

func TestListFree(t *testing.T) {
	ctx, rec := newTestContext(t, nil)
	outer := ctx.NewList()
	success(t, outer.Append(AdoptList(intList(ctx, 1))))
	inner := outer.List(0)

	if err := inner.Free(); !errors.Is(err, ErrAlreadyOwned) {
		t.Fatalf("Free(nested) err = %v, wanted ErrAlreadyOwned", err)
	}
	success(t, outer.Free())
	if !inner.released {
		t.Fatalf("nested list not released with its parent")
	}

	success(t, outer.Free())
	eq(t, rec.count(slog.LevelDebug, "already freed"), 1)

	if err := outer.Append(Int(1)); !errors.Is(err, ErrReleased) {
		t.Fatalf("Append after Free err = %v, wanted ErrReleased", err)
	}
	eq(t, outer.Len(), 0)

	var nilList *List
	if err := nilList.Append(Int(1)); !errors.Is(err, ErrNoValue) {
		t.Fatalf("nil Append err = %v, wanted ErrNoValue", err)
	}
}

func TestListAllStopsEarly(t *testing.T) {
	ctx, _ := newTestContext(t, nil)
	l := intList(ctx, 1, 2, 3, 4)
	var seen []int
	for i := range l.All() {
		seen = append(seen, i)
		if i == 1 {
			break
		}
	}
	deepEqual(t, seen, []int{0, 1})
}

func TestListRandomOps(t *testing.T) {
	ctx, _ := newTestContext(t, nil)
	rnd := rand.New(rand.NewPCG(1, 2))
	l := ctx.NewList()
	var model []int64

	for step := range 20000 {
		n := int64(step)
		switch op := rnd.IntN(10); {
		case op < 4:
			success(t, l.Append(Int(n)))
			model = append(model, n)
		case op < 6:
			i := rnd.IntN(len(model) + 3)
			success(t, l.Insert(i, Int(n)))
			i = min(i, len(model))
			model = slices.Insert(model, i, n)
		case op == 6 && len(model) > 0:
			i := rnd.IntN(len(model))
			success(t, l.Replace(i, Int(n)))
			model[i] = n
		case op == 7 && len(model) > 0:
			i := rnd.IntN(len(model))
			success(t, l.Remove(i))
			model = slices.Delete(model, i, i+1)
		case op == 8 && len(model) > 0:
			i := rnd.IntN(len(model))
			v := must(l.Pop(i))
			eq(t, must(v.AsInt()), model[i])
			model = slices.Delete(model, i, i+1)
		case op == 9 && rnd.IntN(200) == 0:
			success(t, l.Clear())
			model = model[:0]
		}

		if l.Len() != len(model) {
			t.Fatalf("step %d: Len = %d, wanted %d", step, l.Len(), len(model))
		}
		if c := l.Cap(); c < MinListCapacity || l.Len() >= c {
			t.Fatalf("step %d: Cap = %d with Len = %d", step, c, l.Len())
		}
		if step%97 == 0 && !slices.Equal(listInts(t, l), model) {
			t.Fatalf("step %d: items = %v, wanted %v", step, listInts(t, l), model)
		}
	}
	if got := listInts(t, l); !slices.Equal(got, model) {
		t.Fatalf("items = %v, wanted %v", got, model)
	}
}
