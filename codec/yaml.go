package codec

import (
	"encoding/base64"
	"math"
	"strconv"
	"strings"

	"github.com/andreyvit/dyncol"
	"gopkg.in/yaml.v3"
)

// Local tags for kinds YAML has no core type for.
const (
	tagChar   = "!char"
	tagUint   = "!uint"
	tagSize   = "!size"
	tagOpaque = "!opaque"

	// maxYAMLNodes bounds alias expansion.
	maxYAMLNodes = 1 << 22
)

type yamlEncoder struct {
	opt Options
}

func encodeYAML(buf []byte, v dyncol.Value, opt Options) ([]byte, error) {
	node, err := (&yamlEncoder{opt}).node(v, 0)
	if err != nil {
		return buf, err
	}
	bb := bytesBuilder{buf}
	enc := yaml.NewEncoder(&bb)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return buf, err
	}
	if err := enc.Close(); err != nil {
		return buf, err
	}
	return bb.Buf, nil
}

func scalarNode(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

func (e *yamlEncoder) node(v dyncol.Value, depth int) (*yaml.Node, error) {
	switch v.Kind() {
	case dyncol.KindNull:
		return scalarNode("!!null", "null"), nil
	case dyncol.KindBool:
		b, _ := v.AsBool()
		return scalarNode("!!bool", strconv.FormatBool(b)), nil
	case dyncol.KindChar:
		c, _ := v.AsChar()
		return scalarNode(tagChar, string([]byte{c})), nil
	case dyncol.KindDouble:
		f, _ := v.AsDouble()
		var s string
		switch {
		case math.IsNaN(f):
			s = ".nan"
		case math.IsInf(f, 1):
			s = ".inf"
		case math.IsInf(f, -1):
			s = "-.inf"
		default:
			s = strconv.FormatFloat(f, 'g', -1, 64)
			if !strings.ContainsAny(s, ".eE") {
				s += ".0"
			}
		}
		return scalarNode("!!float", s), nil
	case dyncol.KindInt:
		n, _ := v.AsInt()
		return scalarNode("!!int", strconv.FormatInt(n, 10)), nil
	case dyncol.KindUint:
		n, _ := v.AsUint()
		return scalarNode(tagUint, strconv.FormatUint(n, 10)), nil
	case dyncol.KindSize:
		n, _ := v.AsSize()
		return scalarNode(tagSize, strconv.FormatUint(n, 10)), nil
	case dyncol.KindString:
		s, _ := v.AsString()
		return scalarNode("!!str", s), nil
	case dyncol.KindOpaque:
		raw, err := opaqueBytes(v)
		if err != nil {
			return nil, err
		}
		return scalarNode(tagOpaque, base64.StdEncoding.EncodeToString(raw)), nil
	case dyncol.KindList:
		if depth >= e.opt.MaxDepth {
			return nil, ErrTooDeep
		}
		l, _ := v.AsList()
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Content: make([]*yaml.Node, 0, l.Len())}
		for i, item := range l.All() {
			child, err := e.node(item, depth+1)
			if err != nil {
				return nil, wrapAt(YAML, indexSeg(i), err)
			}
			n.Content = append(n.Content, child)
		}
		return n, nil
	case dyncol.KindMap:
		if depth >= e.opt.MaxDepth {
			return nil, ErrTooDeep
		}
		m, _ := v.AsMap()
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: make([]*yaml.Node, 0, 2*m.Len())}
		for k, item := range m.All() {
			child, err := e.node(item, depth+1)
			if err != nil {
				return nil, wrapAt(YAML, keySeg(k), err)
			}
			n.Content = append(n.Content, scalarNode("!!str", k), child)
		}
		return n, nil
	default:
		return nil, dyncol.ErrNoValue
	}
}

type yamlDecoder struct {
	data  []byte
	opt   Options
	nodes int
}

func decodeYAML(data []byte, opt Options) (dyncol.Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return dyncol.Value{}, dataErrf(data, 0, err, "yaml: invalid input")
	}
	d := &yamlDecoder{data: data, opt: opt}
	if doc.Kind == 0 {
		return dyncol.Null(), nil
	}
	root := &doc
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return dyncol.Null(), nil
		}
		root = doc.Content[0]
	}
	return d.value(root, 0)
}

func (d *yamlDecoder) fail(n *yaml.Node, err error, format string, args ...any) error {
	args = append([]any{n.Line, n.Column}, args...)
	return dataErrf(d.data, 0, err, "yaml: line %d col %d: "+format, args...)
}

func (d *yamlDecoder) value(n *yaml.Node, depth int) (dyncol.Value, error) {
	d.nodes++
	if d.nodes > maxYAMLNodes {
		return dyncol.Value{}, d.fail(n, ErrTooDeep, "too many nodes after alias expansion")
	}
	switch n.Kind {
	case yaml.AliasNode:
		if n.Alias == nil {
			return dyncol.Value{}, d.fail(n, nil, "unresolved alias %q", n.Value)
		}
		return d.value(n.Alias, depth+1)
	case yaml.ScalarNode:
		return d.scalar(n)
	case yaml.SequenceNode:
		if depth >= d.opt.MaxDepth {
			return dyncol.Value{}, d.fail(n, ErrTooDeep, "sequence")
		}
		l := d.opt.Context.NewList()
		for _, c := range n.Content {
			item, err := d.value(c, depth+1)
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
		return dyncol.AdoptList(l), nil
	case yaml.MappingNode:
		if depth >= d.opt.MaxDepth {
			return dyncol.Value{}, d.fail(n, ErrTooDeep, "mapping")
		}
		m := d.opt.Context.NewMap()
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, c := n.Content[i], n.Content[i+1]
			if k.Kind != yaml.ScalarNode {
				m.Free()
				return dyncol.Value{}, d.fail(k, nil, "mapping key must be a scalar")
			}
			item, err := d.value(c, depth+1)
			if err == nil {
				if err = m.Set(k.Value, item); err != nil {
					item.Release()
				}
			}
			if err != nil {
				m.Free()
				return dyncol.Value{}, err
			}
		}
		return dyncol.AdoptMap(m), nil
	default:
		return dyncol.Value{}, d.fail(n, nil, "unexpected node kind %v", n.Kind)
	}
}

func (d *yamlDecoder) scalar(n *yaml.Node) (dyncol.Value, error) {
	switch tag := n.ShortTag(); tag {
	case "!!null":
		return dyncol.Null(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return dyncol.Value{}, d.fail(n, err, "bool")
		}
		return dyncol.Bool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err == nil {
			return dyncol.Int(i), nil
		}
		var u uint64
		if err := n.Decode(&u); err != nil {
			return dyncol.Value{}, d.fail(n, err, "int %q", n.Value)
		}
		return dyncol.Uint(u), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return dyncol.Value{}, d.fail(n, err, "float %q", n.Value)
		}
		return dyncol.Double(f), nil
	case "!!binary":
		var s string
		if err := n.Decode(&s); err != nil {
			return dyncol.Value{}, d.fail(n, err, "binary")
		}
		return dyncol.AdoptBytes([]byte(s)), nil
	case tagChar:
		if len(n.Value) != 1 {
			return dyncol.Value{}, d.fail(n, nil, "char %q must be one byte", n.Value)
		}
		return dyncol.Char(n.Value[0]), nil
	case tagUint, tagSize:
		u, err := strconv.ParseUint(n.Value, 0, 64)
		if err != nil {
			return dyncol.Value{}, d.fail(n, err, "%s %q", tag, n.Value)
		}
		if tag == tagSize {
			return dyncol.Size(u), nil
		}
		return dyncol.Uint(u), nil
	case tagOpaque:
		raw, err := base64.StdEncoding.DecodeString(n.Value)
		if err != nil {
			return dyncol.Value{}, d.fail(n, err, "opaque")
		}
		return dyncol.AdoptOpaque(raw, len(raw), nil), nil
	default:
		// !!str, !!timestamp and unknown tags keep their text
		return dyncol.AdoptBytes([]byte(n.Value)), nil
	}
}
