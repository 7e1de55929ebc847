package dyncol

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"testing"
)

func TestMapGrowth(t *testing.T) {
	ctx, _ := newTestContext(t, nil)
	m := ctx.NewMap()
	eq(t, m.Cap(), 8)

	for i := range 6 {
		success(t, m.Set(fmt.Sprintf("k%d", i), Int(int64(i))))
	}
	eq(t, m.Len(), 6)
	eq(t, m.Cap(), 8)

	success(t, m.Set("k6", Int(6)))
	eq(t, m.Len(), 7)
	eq(t, m.Cap(), 16)

	for i := range 7 {
		eq(t, m.Int(fmt.Sprintf("k%d", i)), int64(i))
	}
	deepEqual(t, m.Keys(), []string{"k0", "k1", "k2", "k3", "k4", "k5", "k6"})
}

func TestMapReplaceKeepsLength(t *testing.T) {
	ctx, _ := newTestContext(t, nil)
	m := ctx.NewMap()
	success(t, m.Set("a", Int(1)))
	success(t, m.Set("b", Int(2)))
	success(t, m.Set("a", String("one")))

	eq(t, m.Len(), 2)
	eq(t, m.Str("a"), "one")
	deepEqual(t, m.Keys(), []string{"a", "b"})
}

func TestMapIdentity(t *testing.T) {
	for _, hasher := range []Hasher{nil, FNV1a{}, constHasher{}} {
		t.Run(fmt.Sprintf("%T", hasher), func(t *testing.T) {
			ctx, _ := newTestContext(t, hasher)
			m := ctx.NewMap()
			for i := range 200 {
				success(t, m.SetBytes([]byte(fmt.Sprintf("key-%d", i)), Int(int64(i))))
			}
			eq(t, m.Len(), 200)
			for i := range 200 {
				v, err := m.Get(fmt.Sprintf("key-%d", i))
				success(t, err)
				eq(t, must(v.AsInt()), int64(i))
			}
			if float64(m.Len())/float64(m.Cap()) >= MapGrowthLoadFactor {
				t.Fatalf("load %d/%d at or above growth factor", m.Len(), m.Cap())
			}
		})
	}
}

func TestMapRemoveInProbeChain(t *testing.T) {
	ctx, _ := newTestContext(t, constHasher{})
	m := ctx.NewMap()
	success(t, m.Set("a", Int(1)))
	success(t, m.Set("b", Int(2)))
	success(t, m.Set("c", Int(3)))

	success(t, m.Remove("a"))
	eq(t, m.Contains("a"), false)
	eq(t, m.Int("b"), int64(2))
	eq(t, m.Int("c"), int64(3))

	st := m.Stats()
	eq(t, st.Tombstones, 1)
	eq(t, st.Len, 2)

	// the tombstone is reused by the next insert
	success(t, m.Set("d", Int(4)))
	eq(t, m.Stats().Tombstones, 0)
	deepEqual(t, m.Keys(), []string{"b", "c", "d"})
}

func TestMapTombstonesTriggerRehash(t *testing.T) {
	ctx, _ := newTestContext(t, nil)
	m := ctx.NewMap()
	for i := range 100 {
		key := fmt.Sprintf("k%d", i)
		success(t, m.Set(key, Int(int64(i))))
		success(t, m.Remove(key))
	}
	eq(t, m.Len(), 0)
	eq(t, m.Cap(), 8)
	if st := m.Stats(); st.DirtyLoad() >= MapGrowthLoadFactor {
		t.Fatalf("dirty load = %v, wanted < %v", st.DirtyLoad(), MapGrowthLoadFactor)
	}
}

func TestMapRemoval(t *testing.T) {
	ctx, rec := newTestContext(t, nil)
	m := ctx.NewMap()
	for i := range 10 {
		success(t, m.Set(fmt.Sprintf("k%d", i), Int(int64(i))))
	}
	success(t, m.Remove("k3"))
	eq(t, m.Len(), 9)
	eq(t, m.Contains("k3"), false)

	err := m.Remove("k3")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Remove(missing) err = %v, wanted ErrNotFound", err)
	}
	eq(t, rec.count(slog.LevelWarn, `Map.Remove["k3"]`), 1)
	eq(t, m.Len(), 9)

	_, err = m.Get("k3")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(removed) err = %v, wanted ErrNotFound", err)
	}
}

func TestMapPop(t *testing.T) {
	ctx, _ := newTestContext(t, nil)
	m := ctx.NewMap()
	var destroyed int
	success(t, m.Set("op", AdoptOpaque([]int{1}, 8, func(any) { destroyed++ })))
	success(t, m.Set("x", Int(1)))

	v, err := m.Pop("op")
	success(t, err)
	eq(t, v.Kind(), KindOpaque)
	eq(t, m.Len(), 1)
	success(t, m.Free())
	eq(t, destroyed, 0)
	v.Release()
	eq(t, destroyed, 1)

	if _, err := m.Pop("op"); !errors.Is(err, ErrReleased) {
		t.Fatalf("Pop after Free err = %v, wanted ErrReleased", err)
	}
}

func TestMapResize(t *testing.T) {
	ctx, rec := newTestContext(t, nil)
	m := ctx.NewMap()
	for i := range 12 {
		success(t, m.Set(fmt.Sprintf("k%d", i), Int(int64(i))))
	}
	eq(t, m.Cap(), 16)

	if err := m.Resize(24); !errors.Is(err, ErrInvalidCapacity) {
		t.Fatalf("Resize(24) err = %v, wanted ErrInvalidCapacity", err)
	}
	if err := m.Resize(8); !errors.Is(err, ErrCapacityTooSmall) {
		t.Fatalf("Resize(8) err = %v, wanted ErrCapacityTooSmall", err)
	}
	eq(t, m.Len(), 12)

	success(t, m.Resize(64))
	eq(t, m.Cap(), 64)
	for i := range 12 {
		eq(t, m.Int(fmt.Sprintf("k%d", i)), int64(i))
	}
	eq(t, m.Keys()[0], "k0")
	eq(t, m.Keys()[11], "k11")

	small := ctx.NewMap()
	success(t, small.Resize(2))
	eq(t, small.Cap(), 8)
	eq(t, rec.count(slog.LevelWarn, "below minimum"), 1)
}

func TestMapNestedCopy(t *testing.T) {
	ctx, _ := newTestContext(t, nil)
	m := ctx.NewMap()
	success(t, m.Set("a", AdoptList(intList(ctx, 1, 2, 3))))

	cp, err := m.Copy()
	success(t, err)

	orig := m.List("a")
	copied := cp.List("a")
	if orig == copied {
		t.Fatalf("copy shares the nested list")
	}
	eq(t, Equal(CopyList(orig), CopyList(copied)), true)

	success(t, orig.Append(Int(4)))
	success(t, orig.Replace(0, Int(100)))
	deepEqual(t, listInts(t, copied), []int64{1, 2, 3})
	deepEqual(t, listInts(t, orig), []int64{100, 2, 3, 4})
	if copied.parent != cp {
		t.Fatalf("copied list is not owned by the copy")
	}
}

func TestMapWeakDouble(t *testing.T) {
	ctx, rec := newTestContext(t, nil)
	m := ctx.NewMap()
	success(t, m.Set("n", Int(42)))

	eq(t, m.Double("n"), 0.0)
	eq(t, rec.count(slog.LevelWarn, `Map.Double["n"]: type mismatch: wanted double, got int`), 1)

	eq(t, m.Type("n"), KindInt)
	eq(t, m.Int("n"), int64(42))
}

func TestMapWeakGetters(t *testing.T) {
	ctx, rec := newTestContext(t, nil)
	m := ctx.NewMap()
	success(t, m.Set("b", Bool(true)))
	success(t, m.Set("c", Char('z')))
	success(t, m.Set("u", Uint(3)))
	success(t, m.Set("s", Size(4)))
	success(t, m.Set("str", String("hey")))
	success(t, m.Set("m", AdoptMap(ctx.NewMap())))
	success(t, m.Set("o", CopyOpaque([]byte("blob"))))

	eq(t, m.Bool("b"), true)
	eq(t, m.Char("c"), byte('z'))
	eq(t, m.Uint("u"), uint64(3))
	eq(t, m.Size("s"), uint64(4))
	eq(t, string(m.Bytes("str")), "hey")
	eq(t, m.Map("m").Len(), 0)
	deepEqual(t, m.Opaque("o"), any([]byte("blob")))
	eq(t, rec.count(slog.LevelWarn, ""), 0)

	eq(t, m.Bool("missing"), false)
	eq(t, m.Type("missing"), KindInvalid)
	eq(t, rec.count(slog.LevelWarn, "key not found"), 2)
}

func TestMapClear(t *testing.T) {
	ctx, _ := newTestContext(t, nil)
	m := ctx.NewMap()
	var destroyed int
	for i := range 20 {
		success(t, m.Set(fmt.Sprint(i), AdoptOpaque(i, 0, func(any) { destroyed++ })))
	}
	success(t, m.Clear())
	eq(t, destroyed, 20)
	eq(t, m.Len(), 0)
	eq(t, m.Cap(), 8)
	success(t, m.Set("x", Int(1)))
	deepEqual(t, m.Keys(), []string{"x"})
}

func TestMapSeed(t *testing.T) {
	var next uint32
	ctx := NewContext(Options{Seed: func() uint32 { next++; return next }})
	a := ctx.NewMap()
	b := ctx.NewMap()
	eq(t, a.Seed(), uint32(1))
	eq(t, b.Seed(), uint32(2))

	success(t, a.Set("k", Int(1)))
	c, err := a.Copy()
	success(t, err)
	eq(t, c.Seed(), uint32(3))
	eq(t, c.Int("k"), int64(1))
}

func TestMapString(t *testing.T) {
	ctx, _ := newTestContext(t, nil)
	m := ctx.NewMap()
	success(t, m.Set("a", Int(1)))
	success(t, m.Set("b", AdoptList(intList(ctx, 2, 3))))
	success(t, m.Set("c", Null()))
	eq(t, m.String(), `{"a": 1, "b": [2, 3], "c": null}`)
}

func TestMapAdoptRules(t *testing.T) {
	ctx, _ := newTestContext(t, nil)
	root := ctx.NewMap()
	child := ctx.NewMap()
	success(t, root.Set("child", AdoptMap(child)))

	if err := root.Set("again", AdoptMap(child)); !errors.Is(err, ErrAlreadyOwned) {
		t.Fatalf("second adopt err = %v, wanted ErrAlreadyOwned", err)
	}
	if err := child.Set("root", AdoptMap(root)); !errors.Is(err, ErrCycle) {
		t.Fatalf("cyclic adopt err = %v, wanted ErrCycle", err)
	}
	if err := root.Set("self", AdoptMap(root)); !errors.Is(err, ErrCycle) {
		t.Fatalf("self adopt err = %v, wanted ErrCycle", err)
	}

	// copying into yourself is fine
	success(t, root.Set("snapshot", CopyMap(root)))
	snap := root.Map("snapshot")
	eq(t, snap.Len(), 1)
	eq(t, snap.Contains("child"), true)
	eq(t, root.Len(), 2)
}

func TestMapRandomOps(t *testing.T) {
	for _, hasher := range []Hasher{nil, FNV1a{}, constHasher{}} {
		t.Run(fmt.Sprintf("%T", hasher), func(t *testing.T) {
			ctx, _ := newTestContext(t, hasher)
			rnd := rand.New(rand.NewPCG(3, 4))
			m := ctx.NewMap()
			model := make(map[string]int64)
			var order []string

			for step := range 10000 {
				key := fmt.Sprintf("k%d", rnd.IntN(96))
				n := int64(step)
				switch op := rnd.IntN(10); {
				case op < 5:
					success(t, m.Set(key, Int(n)))
					if _, ok := model[key]; !ok {
						order = append(order, key)
					}
					model[key] = n
				case op < 7:
					err := m.Remove(key)
					if _, ok := model[key]; ok {
						success(t, err)
						delete(model, key)
						order = slices.DeleteFunc(order, func(k string) bool { return k == key })
					} else if !errors.Is(err, ErrNotFound) {
						t.Fatalf("step %d: Remove(%s) err = %v, wanted ErrNotFound", step, key, err)
					}
				case op == 7:
					if want, ok := model[key]; ok {
						v := must(m.Pop(key))
						eq(t, must(v.AsInt()), want)
						delete(model, key)
						order = slices.DeleteFunc(order, func(k string) bool { return k == key })
					}
				case op == 8:
					want, ok := model[key]
					eq(t, m.Contains(key), ok)
					if ok {
						eq(t, m.Int(key), want)
					}
				case op == 9 && rnd.IntN(300) == 0:
					success(t, m.Clear())
					clear(model)
					order = order[:0]
				}

				c := m.Cap()
				if m.Len() != len(model) {
					t.Fatalf("step %d: Len = %d, wanted %d", step, m.Len(), len(model))
				}
				if !isPowerOfTwo(c) || c < MinMapCapacity {
					t.Fatalf("step %d: Cap = %d", step, c)
				}
				if float64(m.Len())/float64(c) >= MapGrowthLoadFactor {
					t.Fatalf("step %d: load %d/%d reached %v", step, m.Len(), c, MapGrowthLoadFactor)
				}
				if step%53 == 0 && !slices.Equal(m.Keys(), order) {
					t.Fatalf("step %d: Keys = %v, wanted %v", step, m.Keys(), order)
				}
			}
			if got := m.Keys(); !slices.Equal(got, order) {
				t.Fatalf("Keys = %v, wanted %v", got, order)
			}
		})
	}
}
