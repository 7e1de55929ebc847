package dyncol

import (
	"errors"
	"strconv"
	"strings"
)

var (
	ErrNoValue          = errors.New("no value supplied")
	ErrOutOfRange       = errors.New("index out of range")
	ErrNotFound         = errors.New("key not found")
	ErrTypeMismatch     = errors.New("type mismatch")
	ErrReleased         = errors.New("container has been freed")
	ErrAlreadyOwned     = errors.New("already owned by a container")
	ErrCycle            = errors.New("container would contain itself")
	ErrInvalidCapacity  = errors.New("capacity must be a power of two")
	ErrCapacityTooSmall = errors.New("capacity too small for current length")
	ErrCapacityOverflow = errors.New("capacity overflow")
	ErrStaleIterator    = errors.New("iterator entry was removed")
)

// Severity classifies errors the way the diagnostic sink does.
type Severity int

const (
	// SeverityWarning marks caller misuse. State is unchanged.
	SeverityWarning Severity = iota
	// SeverityError marks internal failures. State is unchanged as well.
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

var warnings = []error{
	ErrNoValue, ErrOutOfRange, ErrNotFound, ErrTypeMismatch, ErrReleased,
	ErrAlreadyOwned, ErrCycle, ErrInvalidCapacity, ErrCapacityTooSmall,
	ErrStaleIterator,
}

// SeverityOf returns SeverityWarning for caller misuse errors and
// SeverityError for everything else.
func SeverityOf(err error) Severity {
	for _, w := range warnings {
		if errors.Is(err, w) {
			return SeverityWarning
		}
	}
	return SeverityError
}

// AccessError describes a failed container operation.
type AccessError struct {
	Op    string
	Key   []byte // nil for index-addressed operations
	Index int    // -1 for key-addressed operations
	Want  Kind   // KindInvalid unless Err is ErrTypeMismatch
	Got   Kind
	Err   error
}

func indexErr(op string, index int, err error) error {
	return &AccessError{Op: op, Index: index, Err: err}
}

func keyErr(op string, key string, err error) error {
	return &AccessError{Op: op, Key: []byte(key), Index: -1, Err: err}
}

func opErr(op string, err error) error {
	return &AccessError{Op: op, Index: -1, Err: err}
}

func typeErr(op string, want, got Kind) error {
	return &AccessError{Op: op, Index: -1, Want: want, Got: got, Err: ErrTypeMismatch}
}

// withLocation fills in the index or key of a positionless AccessError (such
// as the one produced by Value accessors) and renames its operation.
func withLocation(err error, op string, index int, key []byte) error {
	var ae *AccessError
	if !errors.As(err, &ae) {
		return err
	}
	cp := *ae
	cp.Op, cp.Index, cp.Key = op, index, key
	return &cp
}

func (e *AccessError) Unwrap() error {
	return e.Err
}

func (e *AccessError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Op)
	if e.Key != nil {
		buf.WriteByte('[')
		buf.WriteString(strconv.Quote(string(e.Key)))
		buf.WriteByte(']')
	} else if e.Index >= 0 {
		buf.WriteByte('[')
		buf.WriteString(strconv.Itoa(e.Index))
		buf.WriteByte(']')
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	if errors.Is(e.Err, ErrTypeMismatch) {
		buf.WriteString(": wanted ")
		buf.WriteString(e.Want.String())
		buf.WriteString(", got ")
		buf.WriteString(e.Got.String())
	}
	return buf.String()
}
