// Package codec converts between serialized bytes and dyncol Value trees.
//
// Three encodings are supported. MsgPack preserves every kind: chars, sizes and
// byte opaques travel as extension types, and ints and uints keep distinct
// wire codes. JSON and YAML preserve object key order; JSON folds char, size
// and opaque into strings and numbers, while YAML tags them (!char, !uint,
// !size, !opaque).
//
// Decoding produces containers owned by the caller. A decoded List or Map is
// returned in adopt mode: insert it into another container, or call Release.
package codec

import (
	"encoding"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/andreyvit/dyncol"
)

type Method int

const (
	MsgPack Method = iota
	JSON
	YAML
)

const DefaultMaxDepth = 10000

func (m Method) String() string {
	switch m {
	case MsgPack:
		return "msgpack"
	case JSON:
		return "json"
	case YAML:
		return "yaml"
	default:
		return "Method(" + strconv.Itoa(int(m)) + ")"
	}
}

// ParseMethod accepts a method name or a MIME type such as
// "application/json; charset=utf-8".
func ParseMethod(s string) (Method, bool) {
	s, _, _ = strings.Cut(s, ";")
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "msgpack", "application/msgpack", "application/x-msgpack", "application/vnd.msgpack":
		return MsgPack, true
	case "json", "application/json", "text/json":
		return JSON, true
	case "yaml", "yml", "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
		return YAML, true
	}
	if strings.HasSuffix(s, "+json") {
		return JSON, true
	}
	return 0, false
}

type Options struct {
	// Context builds decoded containers. Defaults to dyncol.DefaultContext().
	Context *dyncol.Context

	// MaxDepth bounds container nesting in both directions. Defaults to
	// DefaultMaxDepth.
	MaxDepth int

	// Logger receives debug output. Defaults to the Context's logger.
	Logger *slog.Logger
}

func (opt Options) withDefaults() Options {
	if opt.Context == nil {
		opt.Context = dyncol.DefaultContext()
	}
	if opt.MaxDepth <= 0 {
		opt.MaxDepth = DefaultMaxDepth
	}
	if opt.Logger == nil {
		opt.Logger = opt.Context.Logger()
	}
	return opt
}

// Encode appends the encoding of v to buf. On failure buf is returned
// unchanged along with an *EncodeError.
func (m Method) Encode(buf []byte, v dyncol.Value, opt Options) ([]byte, error) {
	opt = opt.withDefaults()
	var out []byte
	var err error
	switch m {
	case MsgPack:
		out, err = encodeMsgPack(buf, v, opt)
	case JSON:
		out, err = encodeJSON(buf, v, opt)
	case YAML:
		out, err = encodeYAML(buf, v, opt)
	default:
		err = fmt.Errorf("unsupported method")
	}
	if err != nil {
		var ee *EncodeError
		if !errors.As(err, &ee) {
			err = encodeErrf(m, "", err)
		}
		return buf, err
	}
	return out, nil
}

// Decode parses exactly one value from data.
func (m Method) Decode(data []byte, opt Options) (dyncol.Value, error) {
	opt = opt.withDefaults()
	var v dyncol.Value
	var err error
	switch m {
	case MsgPack:
		v, err = decodeMsgPack(data, opt)
	case JSON:
		v, err = decodeJSON(data, opt)
	case YAML:
		v, err = decodeYAML(data, opt)
	default:
		return dyncol.Value{}, fmt.Errorf("codec: unsupported method %v", m)
	}
	if err != nil {
		return dyncol.Value{}, err
	}
	opt.Logger.Debug("codec: decoded", slog.String("method", m.String()), slog.Int("bytes", len(data)), slog.String("kind", v.Kind().String()))
	return v, nil
}

// DecodeMap decodes data that must hold an object.
func (m Method) DecodeMap(data []byte, opt Options) (*dyncol.Map, error) {
	v, err := m.Decode(data, opt)
	if err != nil {
		return nil, err
	}
	mp, err := v.AsMap()
	if err != nil {
		v.Release()
		return nil, dataErrf(data, 0, err, "%v: top-level value is not an object", m)
	}
	return mp, nil
}

// opaqueBytes returns the serializable form of an opaque payload: []byte
// payloads as is, or the output of MarshalBinary.
func opaqueBytes(v dyncol.Value) ([]byte, error) {
	p, err := v.AsOpaque()
	if err != nil {
		return nil, err
	}
	switch p := p.(type) {
	case []byte:
		return p, nil
	case encoding.BinaryMarshaler:
		return p.MarshalBinary()
	default:
		return nil, fmt.Errorf("%w: opaque payload of type %T", ErrUnsupported, p)
	}
}

// wrapAt attaches a path segment to an encoding failure from a nested value.
func wrapAt(m Method, seg string, err error) error {
	var ee *EncodeError
	if errors.As(err, &ee) {
		ee.Path = seg + ee.Path
		return ee
	}
	return encodeErrf(m, seg, err)
}

func indexSeg(i int) string {
	return "[" + strconv.Itoa(i) + "]"
}

func keySeg(key string) string {
	return "[" + strconv.Quote(key) + "]"
}
