package dyncol

import (
	"context"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"testing"
)

func init() {
	slog.SetLogLoggerLevel(slog.LevelDebug)
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func eq[T comparable](t testing.TB, a, e T) {
	if a != e {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func isnil[T any, P ~*T](t testing.TB, a P) {
	if a != nil {
		t.Helper()
		t.Errorf("** got &%v, wanted nil", *a)
	}
}

func success(t testing.TB, err error) {
	if err != nil {
		t.Helper()
		t.Fatalf("** unexpected error: %v", err)
	}
}

// logRecorder is a slog.Handler capturing records for inspection.
type logRecorder struct {
	mu      sync.Mutex
	records []slog.Record
}

func (r *logRecorder) Enabled(context.Context, slog.Level) bool { return true }
func (r *logRecorder) WithAttrs([]slog.Attr) slog.Handler        { return r }
func (r *logRecorder) WithGroup(string) slog.Handler             { return r }

func (r *logRecorder) Handle(_ context.Context, rec slog.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec.Clone())
	return nil
}

// count returns the number of records at level whose message contains substr.
func (r *logRecorder) count(level slog.Level, substr string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	for _, rec := range r.records {
		if rec.Level == level && strings.Contains(rec.Message, substr) {
			n++
		}
	}
	return n
}

func (r *logRecorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
}

// constHasher sends every key down the same probe chain.
type constHasher struct{}

func (constHasher) Hash32(seed uint32, key string) uint32 { return 42 }

func newTestContext(t testing.TB, hasher Hasher) (*Context, *logRecorder) {
	rec := &logRecorder{}
	ctx := NewContext(Options{
		Logger: slog.New(rec),
		Hasher: hasher,
		Seed:   func() uint32 { return 12345 },
	})
	return ctx, rec
}

func intList(ctx *Context, vals ...int64) *List {
	l := ctx.NewList()
	for _, v := range vals {
		ensure(l.Append(Int(v)))
	}
	return l
}

func listInts(t testing.TB, l *List) []int64 {
	t.Helper()
	var out []int64
	for _, v := range l.All() {
		out = append(out, must(v.AsInt()))
	}
	return out
}
