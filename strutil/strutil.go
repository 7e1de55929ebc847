// Package strutil holds string helpers that produce or consume Lists of
// strings.
package strutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/andreyvit/dyncol"
)

// Split splits s around each occurrence of sep into a List of strings.
// count is the maximum number of splits: a negative count means no limit,
// and a zero count or an empty sep yields a single element holding s.
func Split(s, sep string, count int) *dyncol.List {
	l := dyncol.NewList()
	if count == 0 || sep == "" {
		l.Append(dyncol.String(s))
		return l
	}
	n := -1
	if count > 0 {
		n = count + 1
	}
	for _, part := range strings.SplitN(s, sep, n) {
		l.Append(dyncol.String(part))
	}
	return l
}

// SplitBytes is Split for a byte slice. The parts are copies.
func SplitBytes(b []byte, sep string, count int) *dyncol.List {
	return Split(string(b), sep, count)
}

// Join concatenates the string and char items of l, separated by sep.
func Join(l *dyncol.List, sep string) (string, error) {
	var buf strings.Builder
	for i, v := range l.All() {
		if i > 0 {
			buf.WriteString(sep)
		}
		switch v.Kind() {
		case dyncol.KindString:
			b, _ := v.AsBytes()
			buf.Write(b)
		case dyncol.KindChar:
			c, _ := v.AsChar()
			buf.WriteByte(c)
		default:
			return "", fmt.Errorf("strutil: item %d: %w: %v is not a string", i, dyncol.ErrTypeMismatch, v.Kind())
		}
	}
	return buf.String(), nil
}

// Lower maps ASCII letters to lower case and leaves other bytes alone.
func Lower(s string) string {
	return mapASCII(s, 'A', 'Z', 'a'-'A')
}

// Upper maps ASCII letters to upper case and leaves other bytes alone.
func Upper(s string) string {
	return mapASCII(s, 'a', 'z', -('a' - 'A'))
}

func mapASCII(s string, lo, hi byte, delta int) string {
	i := strings.IndexFunc(s, func(r rune) bool { return r >= rune(lo) && r <= rune(hi) })
	if i < 0 {
		return s
	}
	b := []byte(s)
	for ; i < len(b); i++ {
		if c := b[i]; c >= lo && c <= hi {
			b[i] = byte(int(c) + delta)
		}
	}
	return string(b)
}

// IsNumeric reports whether s is a non-empty run of ASCII digits with an
// optional leading sign.
func IsNumeric(s string) bool {
	if s != "" && (s[0] == '+' || s[0] == '-') {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ParseInt parses all of s as an int in the given base (0 infers the base
// from a 0x, 0o or 0b prefix). Leading white space is skipped.
func ParseInt(s string, base int) (int, error) {
	s = strings.TrimLeft(s, " \t\n\v\f\r")
	n, err := strconv.ParseInt(s, base, strconv.IntSize)
	if err != nil {
		return 0, fmt.Errorf("strutil: %w", err)
	}
	return int(n), nil
}

// FormatTime formats t with a time.Format layout, in local time or in UTC.
// The zero time means now.
func FormatTime(t time.Time, layout string, local bool) string {
	if t.IsZero() {
		t = time.Now()
	}
	if local {
		t = t.Local()
	} else {
		t = t.UTC()
	}
	return t.Format(layout)
}
