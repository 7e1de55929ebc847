package dyncol

// Kind is the type tag of a Value.
type Kind uint8

const (
	// KindInvalid is the tag of the zero Value. It is also what Type returns
	// for a missing index or key.
	KindInvalid Kind = iota
	KindBool
	KindChar
	KindDouble
	KindOpaque
	KindInt
	KindUint
	KindList
	KindMap
	KindNull
	KindSize
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindBool:
		return "bool"
	case KindChar:
		return "char"
	case KindDouble:
		return "double"
	case KindOpaque:
		return "opaque"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindNull:
		return "null"
	case KindSize:
		return "size"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// IsContainer reports whether values of this kind hold a nested List or Map.
func (k Kind) IsContainer() bool {
	return k == KindList || k == KindMap
}

// fixedByteLen is the byte length of scalar kinds; -1 for variable-length ones.
func (k Kind) fixedByteLen() int {
	switch k {
	case KindBool, KindChar:
		return 1
	case KindDouble, KindInt, KindUint, KindSize:
		return 8
	case KindNull, KindList, KindMap:
		return 0
	default:
		return -1
	}
}
