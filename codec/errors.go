package codec

import (
	"errors"
	"fmt"
)

var (
	ErrTooDeep     = errors.New("nesting exceeds MaxDepth")
	ErrUnsupported = errors.New("value cannot be represented in this encoding")
	ErrTrailing    = errors.New("trailing data after value")
)

// DataError reports malformed input along with the offending bytes.
type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	var data string
	if n <= prefixLen+suffixLen {
		data = fmt.Sprintf("(%d) %x", n, e.Data)
	} else {
		data = fmt.Sprintf("(%d) %x...%x", n, e.Data[:prefixLen], e.Data[n-suffixLen:])
	}
	if e.Err != nil {
		return fmt.Sprintf("%s at %d: %v: %s", e.Msg, e.Off, e.Err, data)
	}
	return fmt.Sprintf("%s at %d: %s", e.Msg, e.Off, data)
}

// EncodeError reports a Value that could not be encoded.
type EncodeError struct {
	Method Method
	Path   string
	Err    error
}

func encodeErrf(m Method, path string, err error) error {
	return &EncodeError{m, path, err}
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

func (e *EncodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%v: %v", e.Method, e.Err)
	}
	return fmt.Sprintf("%v at %s: %v", e.Method, e.Path, e.Err)
}
