package rowstore

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrClosed           = errors.New("store closed")
	ErrReadOnly         = errors.New("transaction is read-only")
	ErrNoTable          = errors.New("table does not exist")
	ErrTableExists      = errors.New("table exists with different columns")
	ErrColumnCount      = errors.New("value count does not match column count")
	ErrUnknownColumn    = errors.New("unknown column")
	ErrInvalidColumns   = errors.New("columns must be distinct non-empty strings")
	ErrUnsupportedParam = errors.New("value kind cannot be bound to a column")
	ErrCorruptRow       = errors.New("stored row is corrupt")
)

// TableError attaches the table name and, when known, the row key.
type TableError struct {
	Table string
	Key   []byte
	Msg   string
	Err   error
}

func tableErrf(tbl string, key []byte, err error, format string, args ...any) error {
	return &TableError{tbl, key, fmt.Sprintf(format, args...), err}
}

func (e *TableError) Unwrap() error {
	return e.Err
}

func (e *TableError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Table)
	if e.Key != nil {
		buf.WriteByte('/')
		buf.Write(e.Key)
	}
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

type panicked struct {
	reason any
	stack  string
}

func (p panicked) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.reason, p.stack)
}
