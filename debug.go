package dyncol

import (
	"fmt"
	"strconv"
	"strings"
)

type DumpFlags uint64

const (
	// DumpKinds wraps every scalar in its kind name, e.g. int(5).
	DumpKinds = DumpFlags(1 << iota)
	// DumpStats appends length and capacity to every container.
	DumpStats
	// DumpIndent puts each container element on its own line.
	DumpIndent

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)

	indentStep = "  "

	maxDumpDepth = 64
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump renders v as text for debugging. Containers nested deeper than 64
// levels are elided.
func Dump(v Value, f DumpFlags) string {
	var buf strings.Builder
	dumpValue(&buf, v, f, 0)
	return buf.String()
}

func (v Value) String() string {
	return Dump(v, 0)
}

func (l *List) String() string {
	return Dump(Value{kind: KindList, list: l}, 0)
}

func (m *Map) String() string {
	return Dump(Value{kind: KindMap, m: m}, 0)
}

func dumpValue(w *strings.Builder, v Value, f DumpFlags, depth int) {
	switch v.kind {
	case KindInvalid:
		w.WriteString("<invalid>")
	case KindNull:
		w.WriteString("null")
	case KindList:
		dumpList(w, v.list, f, depth)
	case KindMap:
		dumpMap(w, v.m, f, depth)
	default:
		s := scalarString(v)
		if f.Contains(DumpKinds) {
			fmt.Fprintf(w, "%s(%s)", v.kind, s)
		} else {
			w.WriteString(s)
		}
	}
}

func scalarString(v Value) string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.bits != 0)
	case KindChar:
		return strconv.QuoteRuneToASCII(rune(v.bits))
	case KindDouble:
		f, _ := v.AsDouble()
		return strconv.FormatFloat(f, 'g', -1, 64)
	case KindInt:
		return strconv.FormatInt(int64(v.bits), 10)
	case KindUint, KindSize:
		return strconv.FormatUint(v.bits, 10)
	case KindString:
		return strconv.Quote(string(v.bytes))
	case KindOpaque:
		return fmt.Sprintf("<opaque %d bytes>", v.ByteLen())
	default:
		return "?"
	}
}

func dumpList(w *strings.Builder, l *List, f DumpFlags, depth int) {
	switch {
	case l == nil:
		w.WriteString("<nil list>")
		return
	case l.released:
		w.WriteString("<freed list>")
		return
	case depth >= maxDumpDepth:
		w.WriteString("[...]")
		return
	}
	w.WriteByte('[')
	for i := 0; i < l.length; i++ {
		dumpSep(w, f, i, depth+1)
		dumpValue(w, l.items[i], f, depth+1)
	}
	dumpClose(w, f, l.length, depth, ']')
	if f.Contains(DumpStats) {
		fmt.Fprintf(w, " (len %d cap %d)", l.length, len(l.items))
	}
}

func dumpMap(w *strings.Builder, m *Map, f DumpFlags, depth int) {
	switch {
	case m == nil:
		w.WriteString("<nil map>")
		return
	case m.released:
		w.WriteString("<freed map>")
		return
	case depth >= maxDumpDepth:
		w.WriteString("{...}")
		return
	}
	w.WriteByte('{')
	var n int
	for i := m.first; i != noEntry; i = m.entries[i].next {
		e := &m.entries[i]
		dumpSep(w, f, n, depth+1)
		w.WriteString(strconv.Quote(e.key))
		w.WriteString(": ")
		dumpValue(w, e.value, f, depth+1)
		n++
	}
	dumpClose(w, f, n, depth, '}')
	if f.Contains(DumpStats) {
		fmt.Fprintf(w, " (len %d cap %d tombstones %d)", m.length, len(m.slots), m.tombstones)
	}
}

func dumpSep(w *strings.Builder, f DumpFlags, i, depth int) {
	if f.Contains(DumpIndent) {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteByte('\n')
		w.WriteString(strings.Repeat(indentStep, depth))
	} else if i > 0 {
		w.WriteString(", ")
	}
}

func dumpClose(w *strings.Builder, f DumpFlags, n, depth int, c byte) {
	if f.Contains(DumpIndent) && n > 0 {
		w.WriteByte('\n')
		w.WriteString(strings.Repeat(indentStep, depth))
	}
	w.WriteByte(c)
}
