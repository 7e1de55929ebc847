package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/andreyvit/dyncol"
)

type jsonEncoder struct {
	buf []byte
	opt Options
}

func encodeJSON(buf []byte, v dyncol.Value, opt Options) ([]byte, error) {
	e := &jsonEncoder{buf: buf, opt: opt}
	if err := e.value(v, 0); err != nil {
		return buf, err
	}
	return e.buf, nil
}

func (e *jsonEncoder) raw(s string) {
	e.buf = append(ensureCapacity(e.buf, len(e.buf)+len(s)), s...)
}

func (e *jsonEncoder) marshal(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	e.buf = appendRaw(e.buf, raw)
	return nil
}

func (e *jsonEncoder) value(v dyncol.Value, depth int) error {
	switch v.Kind() {
	case dyncol.KindNull:
		e.raw("null")
	case dyncol.KindBool:
		b, _ := v.AsBool()
		e.buf = strconv.AppendBool(e.buf, b)
	case dyncol.KindChar:
		c, _ := v.AsChar()
		return e.marshal(string([]byte{c}))
	case dyncol.KindDouble:
		f, _ := v.AsDouble()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return ErrUnsupported
		}
		s := strconv.FormatFloat(f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0" // keep the double kind when decoding
		}
		e.raw(s)
	case dyncol.KindInt:
		n, _ := v.AsInt()
		e.buf = strconv.AppendInt(e.buf, n, 10)
	case dyncol.KindUint:
		n, _ := v.AsUint()
		e.buf = strconv.AppendUint(e.buf, n, 10)
	case dyncol.KindSize:
		n, _ := v.AsSize()
		e.buf = strconv.AppendUint(e.buf, n, 10)
	case dyncol.KindString:
		s, _ := v.AsString()
		return e.marshal(s)
	case dyncol.KindOpaque:
		raw, err := opaqueBytes(v)
		if err != nil {
			return err
		}
		return e.marshal(raw)
	case dyncol.KindList:
		if depth >= e.opt.MaxDepth {
			return ErrTooDeep
		}
		l, _ := v.AsList()
		e.raw("[")
		for i, item := range l.All() {
			if i > 0 {
				e.raw(",")
			}
			if err := e.value(item, depth+1); err != nil {
				return wrapAt(JSON, indexSeg(i), err)
			}
		}
		e.raw("]")
	case dyncol.KindMap:
		if depth >= e.opt.MaxDepth {
			return ErrTooDeep
		}
		m, _ := v.AsMap()
		e.raw("{")
		first := true
		for k, item := range m.All() {
			if !first {
				e.raw(",")
			}
			first = false
			if err := e.marshal(k); err != nil {
				return err
			}
			e.raw(":")
			if err := e.value(item, depth+1); err != nil {
				return wrapAt(JSON, keySeg(k), err)
			}
		}
		e.raw("}")
	default:
		return dyncol.ErrNoValue
	}
	return nil
}

// jsonDecoder walks the token stream rather than decoding into map[string]any,
// which would lose the key order.
type jsonDecoder struct {
	dec  *json.Decoder
	data []byte
	opt  Options
}

func decodeJSON(data []byte, opt Options) (dyncol.Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	d := &jsonDecoder{dec: dec, data: data, opt: opt}

	tok, err := d.token()
	if err != nil {
		return dyncol.Value{}, err
	}
	v, err := d.value(tok, 0)
	if err != nil {
		return dyncol.Value{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		v.Release()
		return dyncol.Value{}, d.fail(ErrTrailing, "json")
	}
	return v, nil
}

func (d *jsonDecoder) fail(err error, format string, args ...any) error {
	return dataErrf(d.data, int(d.dec.InputOffset()), err, format, args...)
}

func (d *jsonDecoder) token() (json.Token, error) {
	tok, err := d.dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, d.fail(err, "json: invalid input")
	}
	return tok, nil
}

func (d *jsonDecoder) value(tok json.Token, depth int) (dyncol.Value, error) {
	switch t := tok.(type) {
	case nil:
		return dyncol.Null(), nil
	case bool:
		return dyncol.Bool(t), nil
	case string:
		return dyncol.AdoptBytes([]byte(t)), nil
	case json.Number:
		return d.number(t)
	case json.Delim:
		switch t {
		case '[':
			return d.list(depth)
		case '{':
			return d.object(depth)
		}
	}
	return dyncol.Value{}, d.fail(nil, "json: unexpected token %v", tok)
}

// number picks the narrowest kind: int, then uint for integers past
// math.MaxInt64, then double.
func (d *jsonDecoder) number(num json.Number) (dyncol.Value, error) {
	s := string(num)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return dyncol.Int(n), nil
	}
	if !strings.ContainsAny(s, ".eE-") {
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			return dyncol.Uint(n), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return dyncol.Value{}, d.fail(err, "json: number %s", s)
	}
	return dyncol.Double(f), nil
}

func (d *jsonDecoder) list(depth int) (dyncol.Value, error) {
	if depth >= d.opt.MaxDepth {
		return dyncol.Value{}, d.fail(ErrTooDeep, "json")
	}
	l := d.opt.Context.NewList()
	for d.dec.More() {
		tok, err := d.token()
		var item dyncol.Value
		if err == nil {
			item, err = d.value(tok, depth+1)
		}
		if err == nil {
			if err = l.Append(item); err != nil {
				item.Release()
			}
		}
		if err != nil {
			l.Free()
			return dyncol.Value{}, err
		}
	}
	if _, err := d.token(); err != nil { // ']'
		l.Free()
		return dyncol.Value{}, err
	}
	return dyncol.AdoptList(l), nil
}

func (d *jsonDecoder) object(depth int) (dyncol.Value, error) {
	if depth >= d.opt.MaxDepth {
		return dyncol.Value{}, d.fail(ErrTooDeep, "json")
	}
	m := d.opt.Context.NewMap()
	for d.dec.More() {
		tok, err := d.token()
		var item dyncol.Value
		var key string
		if err == nil {
			key, _ = tok.(string)
			tok, err = d.token()
		}
		if err == nil {
			item, err = d.value(tok, depth+1)
		}
		if err == nil {
			if err = m.Set(key, item); err != nil {
				item.Release()
			}
		}
		if err != nil {
			m.Free()
			return dyncol.Value{}, err
		}
	}
	if _, err := d.token(); err != nil { // '}'
		m.Free()
		return dyncol.Value{}, err
	}
	return dyncol.AdoptMap(m), nil
}
