package codec

import (
	"bytes"
	"encoding/binary"

	"github.com/andreyvit/dyncol"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// MessagePack extension types carrying kinds msgpack has no code for.
const (
	extChar   int8 = 1
	extSize   int8 = 2
	extOpaque int8 = 3
)

type msgpackEncoder struct {
	enc *msgpack.Encoder
	opt Options
}

func encodeMsgPack(buf []byte, v dyncol.Value, opt Options) ([]byte, error) {
	bb := bytesBuilder{buf}
	enc := msgpack.GetEncoder()
	enc.Reset(&bb)
	err := (&msgpackEncoder{enc, opt}).value(v, 0)
	msgpack.PutEncoder(enc)
	if err != nil {
		return buf, err
	}
	return bb.Buf, nil
}

func (e *msgpackEncoder) value(v dyncol.Value, depth int) error {
	enc := e.enc
	switch v.Kind() {
	case dyncol.KindNull:
		return enc.EncodeNil()
	case dyncol.KindBool:
		b, _ := v.AsBool()
		return enc.EncodeBool(b)
	case dyncol.KindChar:
		c, _ := v.AsChar()
		if err := enc.EncodeExtHeader(extChar, 1); err != nil {
			return err
		}
		_, err := enc.Writer().Write([]byte{c})
		return err
	case dyncol.KindDouble:
		f, _ := v.AsDouble()
		return enc.EncodeFloat64(f)
	case dyncol.KindInt:
		n, _ := v.AsInt()
		return enc.EncodeInt64(n)
	case dyncol.KindUint:
		n, _ := v.AsUint()
		return enc.EncodeUint64(n)
	case dyncol.KindSize:
		n, _ := v.AsSize()
		var raw [8]byte
		binary.BigEndian.PutUint64(raw[:], n)
		if err := enc.EncodeExtHeader(extSize, 8); err != nil {
			return err
		}
		_, err := enc.Writer().Write(raw[:])
		return err
	case dyncol.KindString:
		b, _ := v.AsBytes()
		return enc.EncodeString(string(b))
	case dyncol.KindOpaque:
		raw, err := opaqueBytes(v)
		if err != nil {
			return err
		}
		if err := enc.EncodeExtHeader(extOpaque, len(raw)); err != nil {
			return err
		}
		_, err = enc.Writer().Write(raw)
		return err
	case dyncol.KindList:
		if depth >= e.opt.MaxDepth {
			return ErrTooDeep
		}
		l, _ := v.AsList()
		if err := enc.EncodeArrayLen(l.Len()); err != nil {
			return err
		}
		for i, item := range l.All() {
			if err := e.value(item, depth+1); err != nil {
				return wrapAt(MsgPack, indexSeg(i), err)
			}
		}
		return nil
	case dyncol.KindMap:
		if depth >= e.opt.MaxDepth {
			return ErrTooDeep
		}
		m, _ := v.AsMap()
		if err := enc.EncodeMapLen(m.Len()); err != nil {
			return err
		}
		for k, item := range m.All() {
			if err := enc.EncodeString(k); err != nil {
				return err
			}
			if err := e.value(item, depth+1); err != nil {
				return wrapAt(MsgPack, keySeg(k), err)
			}
		}
		return nil
	default:
		return dyncol.ErrNoValue
	}
}

type msgpackDecoder struct {
	dec  *msgpack.Decoder
	r    *bytes.Reader
	data []byte
	opt  Options
}

func decodeMsgPack(data []byte, opt Options) (dyncol.Value, error) {
	r := bytes.NewReader(data)
	dec := msgpack.GetDecoder()
	dec.Reset(r)
	defer msgpack.PutDecoder(dec)

	d := &msgpackDecoder{dec: dec, r: r, data: data, opt: opt}
	v, err := d.value(0)
	if err != nil {
		return dyncol.Value{}, err
	}
	if r.Len() > 0 {
		v.Release()
		return dyncol.Value{}, d.fail(ErrTrailing, "msgpack")
	}
	return v, nil
}

func (d *msgpackDecoder) off() int {
	return int(d.r.Size()) - d.r.Len()
}

func (d *msgpackDecoder) fail(err error, format string, args ...any) error {
	return dataErrf(d.data, d.off(), err, format, args...)
}

func (d *msgpackDecoder) value(depth int) (dyncol.Value, error) {
	c, err := d.dec.PeekCode()
	if err != nil {
		return dyncol.Value{}, d.fail(err, "msgpack: unexpected end of data")
	}
	switch {
	case c == msgpcode.Nil:
		if err := d.dec.DecodeNil(); err != nil {
			return dyncol.Value{}, d.fail(err, "msgpack: nil")
		}
		return dyncol.Null(), nil
	case c == msgpcode.False || c == msgpcode.True:
		b, err := d.dec.DecodeBool()
		if err != nil {
			return dyncol.Value{}, d.fail(err, "msgpack: bool")
		}
		return dyncol.Bool(b), nil
	case c == msgpcode.Float || c == msgpcode.Double:
		f, err := d.dec.DecodeFloat64()
		if err != nil {
			return dyncol.Value{}, d.fail(err, "msgpack: float")
		}
		return dyncol.Double(f), nil
	case c == msgpcode.Uint64:
		n, err := d.dec.DecodeUint64()
		if err != nil {
			return dyncol.Value{}, d.fail(err, "msgpack: uint64")
		}
		return dyncol.Uint(n), nil
	case msgpcode.IsFixedNum(c), c == msgpcode.Uint8, c == msgpcode.Uint16, c == msgpcode.Uint32,
		c == msgpcode.Int8, c == msgpcode.Int16, c == msgpcode.Int32, c == msgpcode.Int64:
		n, err := d.dec.DecodeInt64()
		if err != nil {
			return dyncol.Value{}, d.fail(err, "msgpack: int")
		}
		return dyncol.Int(n), nil
	case msgpcode.IsString(c), msgpcode.IsBin(c):
		b, err := d.dec.DecodeBytes()
		if err != nil {
			return dyncol.Value{}, d.fail(err, "msgpack: string")
		}
		return dyncol.AdoptBytes(b), nil
	case msgpcode.IsFixedArray(c), c == msgpcode.Array16, c == msgpcode.Array32:
		return d.list(depth)
	case msgpcode.IsFixedMap(c), c == msgpcode.Map16, c == msgpcode.Map32:
		return d.object(depth)
	case msgpcode.IsExt(c):
		return d.ext()
	default:
		return dyncol.Value{}, d.fail(nil, "msgpack: unsupported code 0x%02x", c)
	}
}

func (d *msgpackDecoder) list(depth int) (dyncol.Value, error) {
	if depth >= d.opt.MaxDepth {
		return dyncol.Value{}, d.fail(ErrTooDeep, "msgpack")
	}
	n, err := d.dec.DecodeArrayLen()
	if err != nil {
		return dyncol.Value{}, d.fail(err, "msgpack: array length")
	}
	l := d.opt.Context.NewList()
	if n >= dyncol.MinListCapacity && n < d.r.Len() {
		l.Resize(n + 1)
	}
	for i := 0; i < n; i++ {
		item, err := d.value(depth + 1)
		if err == nil {
			err = l.Append(item)
			if err != nil {
				item.Release()
			}
		}
		if err != nil {
			l.Free()
			return dyncol.Value{}, err
		}
	}
	return dyncol.AdoptList(l), nil
}

func (d *msgpackDecoder) object(depth int) (dyncol.Value, error) {
	if depth >= d.opt.MaxDepth {
		return dyncol.Value{}, d.fail(ErrTooDeep, "msgpack")
	}
	n, err := d.dec.DecodeMapLen()
	if err != nil {
		return dyncol.Value{}, d.fail(err, "msgpack: map length")
	}
	m := d.opt.Context.NewMap()
	for i := 0; i < n; i++ {
		key, err := d.dec.DecodeString()
		if err != nil {
			m.Free()
			return dyncol.Value{}, d.fail(err, "msgpack: map key")
		}
		item, err := d.value(depth + 1)
		if err == nil {
			err = m.Set(key, item)
			if err != nil {
				item.Release()
			}
		}
		if err != nil {
			m.Free()
			return dyncol.Value{}, err
		}
	}
	return dyncol.AdoptMap(m), nil
}

func (d *msgpackDecoder) ext() (dyncol.Value, error) {
	id, n, err := d.dec.DecodeExtHeader()
	if err != nil {
		return dyncol.Value{}, d.fail(err, "msgpack: ext header")
	}
	if n > d.r.Len() {
		return dyncol.Value{}, d.fail(nil, "msgpack: ext length %d exceeds remaining data", n)
	}
	raw := make([]byte, n)
	if err := d.dec.ReadFull(raw); err != nil {
		return dyncol.Value{}, d.fail(err, "msgpack: ext data")
	}
	switch id {
	case extChar:
		if n != 1 {
			return dyncol.Value{}, d.fail(nil, "msgpack: char ext of length %d", n)
		}
		return dyncol.Char(raw[0]), nil
	case extSize:
		if n != 8 {
			return dyncol.Value{}, d.fail(nil, "msgpack: size ext of length %d", n)
		}
		return dyncol.Size(binary.BigEndian.Uint64(raw)), nil
	case extOpaque:
		return dyncol.AdoptOpaque(raw, n, nil), nil
	default:
		return dyncol.Value{}, d.fail(nil, "msgpack: unknown ext type %d", id)
	}
}
