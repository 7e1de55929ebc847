package rowstore

import (
	"errors"
	"log/slog"
	"slices"

	"github.com/andreyvit/dyncol"
	"github.com/andreyvit/dyncol/codec"
)

const (
	metaSub    = "meta"
	rowsSub    = "rows"
	columnsKey = "columns"
)

type Table struct {
	tx      *Tx
	name    string
	columns []string
	index   map[string]int
	rows    storageBucket
}

type TableStats struct {
	Rows  int
	Bytes int64
	Alloc int64
}

// CreateTable creates a table with the given column names, a List of
// strings. Creating an existing table with the same columns returns it.
func (tx *Tx) CreateTable(name string, columns *dyncol.List) (*Table, error) {
	cols, err := columnNames(columns)
	if err != nil {
		return nil, tableErrf(name, nil, err, "create")
	}
	if t, err := tx.Table(name); err == nil {
		if !slices.Equal(t.columns, cols) {
			return nil, tableErrf(name, nil, ErrTableExists, "have %v, wanted %v", t.columns, cols)
		}
		return t, nil
	} else if !errors.Is(err, ErrNoTable) {
		return nil, err
	}
	if !tx.IsWritable() {
		return nil, tableErrf(name, nil, ErrReadOnly, "create")
	}

	meta, err := tx.stx.CreateBucket(name, metaSub)
	if err != nil {
		return nil, tableErrf(name, nil, err, "create meta")
	}
	data, err := codec.MsgPack.Encode(nil, dyncol.CopyList(columns), tx.codecOptions())
	if err != nil {
		return nil, tableErrf(name, nil, err, "encode columns")
	}
	if err := meta.Put([]byte(columnsKey), data); err != nil {
		return nil, tableErrf(name, nil, err, "save columns")
	}
	rows, err := tx.stx.CreateBucket(name, rowsSub)
	if err != nil {
		return nil, tableErrf(name, nil, err, "create rows")
	}
	tx.store.logger.Debug("rowstore: created table", slog.String("table", name), slog.Any("columns", cols))
	return newTable(tx, name, cols, rows), nil
}

// Table opens an existing table.
func (tx *Tx) Table(name string) (*Table, error) {
	meta := tx.stx.Bucket(name, metaSub)
	rows := tx.stx.Bucket(name, rowsSub)
	if meta == nil || rows == nil {
		return nil, tableErrf(name, nil, ErrNoTable, "")
	}
	data := meta.Get([]byte(columnsKey))
	v, err := codec.MsgPack.Decode(data, tx.codecOptions())
	if err != nil {
		return nil, tableErrf(name, nil, err, "load columns")
	}
	defer v.Release()
	l, err := v.AsList()
	if err != nil {
		return nil, tableErrf(name, nil, err, "load columns")
	}
	cols, err := columnNames(l)
	if err != nil {
		return nil, tableErrf(name, nil, err, "load columns")
	}
	return newTable(tx, name, cols, rows), nil
}

// DropTable removes a table and all of its rows.
func (tx *Tx) DropTable(name string) error {
	if !tx.IsWritable() {
		return tableErrf(name, nil, ErrReadOnly, "drop")
	}
	for _, sub := range []string{rowsSub, metaSub} {
		if err := tx.stx.DeleteBucket(name, sub); err != nil {
			if errors.Is(err, ErrBucketNotFound) {
				return tableErrf(name, nil, ErrNoTable, "drop")
			}
			return tableErrf(name, nil, err, "drop")
		}
	}
	tx.store.logger.Debug("rowstore: dropped table", slog.String("table", name))
	return nil
}

func newTable(tx *Tx, name string, cols []string, rows storageBucket) *Table {
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		index[c] = i
	}
	return &Table{tx: tx, name: name, columns: cols, index: index, rows: rows}
}

func columnNames(columns *dyncol.List) ([]string, error) {
	if columns.Len() == 0 {
		return nil, ErrInvalidColumns
	}
	cols := make([]string, 0, columns.Len())
	for _, v := range columns.All() {
		s, err := v.AsString()
		if err != nil || s == "" || slices.Contains(cols, s) {
			return nil, ErrInvalidColumns
		}
		cols = append(cols, s)
	}
	return cols, nil
}

func (t *Table) Name() string {
	return t.name
}

// Columns returns a new List of the column names.
func (t *Table) Columns() *dyncol.List {
	l := t.tx.store.ctx.NewList()
	for _, c := range t.columns {
		l.Append(dyncol.String(c))
	}
	return l
}

// bind converts a parameter the way an SQL driver would: bools become 0/1,
// chars become one-byte strings. Unsigned, size, container and opaque values
// have no column representation.
func bind(v dyncol.Value) (dyncol.Value, error) {
	switch v.Kind() {
	case dyncol.KindBool:
		b, _ := v.AsBool()
		if b {
			return dyncol.Int(1), nil
		}
		return dyncol.Int(0), nil
	case dyncol.KindChar:
		c, _ := v.AsChar()
		return dyncol.String(string([]byte{c})), nil
	case dyncol.KindDouble, dyncol.KindInt, dyncol.KindNull, dyncol.KindString:
		return v, nil
	default:
		return dyncol.Value{}, ErrUnsupportedParam
	}
}

// Insert stores params, one value per column in column order, under key,
// replacing any existing row.
func (t *Table) Insert(key string, params *dyncol.List) error {
	if params.Len() != len(t.columns) {
		return tableErrf(t.name, []byte(key), ErrColumnCount, "got %d, wanted %d", params.Len(), len(t.columns))
	}
	row := t.tx.store.ctx.NewList()
	defer row.Free()
	for i, v := range params.All() {
		b, err := bind(v)
		if err != nil {
			t.tx.store.logger.Warn("rowstore: unbindable parameter", slog.String("table", t.name), slog.Int("index", i), slog.String("kind", v.Kind().String()))
			return tableErrf(t.name, []byte(key), err, "column %s: %v", t.columns[i], v.Kind())
		}
		if err := row.Append(b); err != nil {
			return tableErrf(t.name, []byte(key), err, "column %s", t.columns[i])
		}
	}
	return t.putRow(key, row)
}

// Put stores a named row. Columns missing from row are stored as null.
func (t *Table) Put(key string, row *dyncol.Map) error {
	for k := range row.All() {
		if _, ok := t.index[k]; !ok {
			return tableErrf(t.name, []byte(key), ErrUnknownColumn, "%q", k)
		}
	}
	params := t.tx.store.ctx.NewList()
	defer params.Free()
	for _, c := range t.columns {
		v, err := row.Get(c)
		if errors.Is(err, dyncol.ErrNotFound) {
			v, err = dyncol.Null(), nil
		}
		if err != nil {
			return tableErrf(t.name, []byte(key), err, "column %s", c)
		}
		if err := params.Append(v); err != nil {
			return tableErrf(t.name, []byte(key), err, "column %s", c)
		}
	}
	return t.Insert(key, params)
}

func (t *Table) putRow(key string, row *dyncol.List) error {
	if !t.tx.IsWritable() {
		return tableErrf(t.name, []byte(key), ErrReadOnly, "put")
	}
	data, err := codec.MsgPack.Encode(nil, dyncol.CopyList(row), t.tx.codecOptions())
	if err != nil {
		return tableErrf(t.name, []byte(key), err, "encode")
	}
	if err := t.rows.Put([]byte(key), data); err != nil {
		return tableErrf(t.name, []byte(key), err, "put")
	}
	return nil
}

// Get returns the row stored under key as an adopt-mode Map (named) or List.
func (t *Table) Get(key string, named bool) (dyncol.Value, error) {
	data := t.rows.Get([]byte(key))
	if data == nil {
		return dyncol.Value{}, tableErrf(t.name, []byte(key), dyncol.ErrNotFound, "")
	}
	return t.decodeRow([]byte(key), data, named)
}

func (t *Table) Contains(key string) bool {
	return t.rows.Get([]byte(key)) != nil
}

func (t *Table) Delete(key string) error {
	if !t.tx.IsWritable() {
		return tableErrf(t.name, []byte(key), ErrReadOnly, "delete")
	}
	if err := t.rows.Delete([]byte(key)); err != nil {
		return tableErrf(t.name, []byte(key), err, "delete")
	}
	return nil
}

// Rows returns every row in key order.
func (t *Table) Rows(named bool) (*dyncol.List, error) {
	return t.Range("", "", named)
}

// Range returns the rows with lower <= key < upper in key order. An empty
// upper means no upper bound.
func (t *Table) Range(lower, upper string, named bool) (*dyncol.List, error) {
	res := t.tx.store.ctx.NewList()
	c := t.rows.Cursor()
	var k, v []byte
	if lower == "" {
		k, v = c.First()
	} else {
		k, v = c.Seek([]byte(lower))
	}
	for ; k != nil; k, v = c.Next() {
		if upper != "" && string(k) >= upper {
			break
		}
		if err := t.appendRow(res, k, v, named); err != nil {
			res.Free()
			return nil, err
		}
	}
	return res, nil
}

// RangeReverse returns the same rows as Range in descending key order.
func (t *Table) RangeReverse(lower, upper string, named bool) (*dyncol.List, error) {
	res := t.tx.store.ctx.NewList()
	c := t.rows.Cursor()
	var k, v []byte
	if upper == "" {
		k, v = c.Last()
	} else if k, v = c.Seek([]byte(upper)); k == nil {
		k, v = c.Last()
	} else {
		k, v = c.Prev()
	}
	for ; k != nil; k, v = c.Prev() {
		if lower != "" && string(k) < lower {
			break
		}
		if err := t.appendRow(res, k, v, named); err != nil {
			res.Free()
			return nil, err
		}
	}
	return res, nil
}

func (t *Table) appendRow(res *dyncol.List, k, v []byte, named bool) error {
	row, err := t.decodeRow(k, v, named)
	if err != nil {
		return err
	}
	if err := res.Append(row); err != nil {
		row.Release()
		return err
	}
	return nil
}

// Truncate deletes every row and returns how many there were.
func (t *Table) Truncate() (int, error) {
	if !t.tx.IsWritable() {
		return 0, tableErrf(t.name, nil, ErrReadOnly, "truncate")
	}
	var n int
	c := t.rows.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.First() {
		if err := c.Delete(); err != nil {
			return n, tableErrf(t.name, slices.Clone(k), err, "truncate")
		}
		n++
	}
	return n, nil
}

func (t *Table) Stats() TableStats {
	s := t.rows.Stats()
	return TableStats{
		Rows:  s.KeyN,
		Bytes: s.LeafInuse,
		Alloc: s.TotalAlloc(),
	}
}

func (t *Table) decodeRow(key, data []byte, named bool) (dyncol.Value, error) {
	fail := func(err error) (dyncol.Value, error) {
		t.tx.store.logger.Error("rowstore: corrupt row", slog.String("table", t.name), slog.String("key", string(key)), slog.Any("err", err))
		return dyncol.Value{}, tableErrf(t.name, slices.Clone(key), ErrCorruptRow, "%v", err)
	}

	v, err := codec.MsgPack.Decode(data, t.tx.codecOptions())
	if err != nil {
		return fail(err)
	}
	l, err := v.AsList()
	if err != nil {
		v.Release()
		return fail(err)
	}
	if l.Len() != len(t.columns) {
		v.Release()
		return fail(ErrColumnCount)
	}
	if !named {
		return v, nil
	}
	defer v.Release()
	m := t.tx.store.ctx.NewMap()
	for i, item := range l.All() {
		if err := m.Set(t.columns[i], item); err != nil {
			m.Free()
			return dyncol.Value{}, tableErrf(t.name, slices.Clone(key), err, "column %s", t.columns[i])
		}
	}
	return dyncol.AdoptMap(m), nil
}
