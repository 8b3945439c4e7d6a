// Package sandbox implements the sandboxed Lua script executor: validation,
// sandbox construction, host<->interpreter value marshalling, the http/json
// tool surface, and the timeout/memory governor that bounds each run.
package sandbox

import "fmt"

// Kind tags the variant held by a Bag.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindSequence
	KindMapping
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// Bag is the recursive structured value exchanged with scripts: a tagged sum
// over {null, bool, int, float, string, sequence<Bag>, mapping<string, Bag>}.
// Pattern-match on Kind; this is deliberately not modelled as an interface
// hierarchy.
type Bag struct {
	Kind Kind

	Bool   bool
	Int    int64
	Float  float64
	String string

	Sequence []Bag
	Mapping  map[string]Bag
}

// Null returns the null/absent marker bag.
func Null() Bag { return Bag{Kind: KindNull} }

// BoolOf wraps a boolean.
func BoolOf(v bool) Bag { return Bag{Kind: KindBool, Bool: v} }

// IntOf wraps an integer.
func IntOf(v int64) Bag { return Bag{Kind: KindInt, Int: v} }

// FloatOf wraps a float.
func FloatOf(v float64) Bag { return Bag{Kind: KindFloat, Float: v} }

// StringOf wraps a string.
func StringOf(v string) Bag { return Bag{Kind: KindString, String: v} }

// SequenceOf wraps an ordered sequence of bags.
func SequenceOf(v []Bag) Bag { return Bag{Kind: KindSequence, Sequence: v} }

// MappingOf wraps a string-keyed mapping of bags.
func MappingOf(v map[string]Bag) Bag { return Bag{Kind: KindMapping, Mapping: v} }

// IsNull reports whether the bag is the null/absent marker.
func (b Bag) IsNull() bool { return b.Kind == KindNull }

// Clone returns a deep copy of b. The Context supplied to `run` is always a
// deep copy of the caller's input so the executor
// never mutates caller-owned data.
func (b Bag) Clone() Bag {
	switch b.Kind {
	case KindSequence:
		out := make([]Bag, len(b.Sequence))
		for i, v := range b.Sequence {
			out[i] = v.Clone()
		}
		return Bag{Kind: KindSequence, Sequence: out}
	case KindMapping:
		out := make(map[string]Bag, len(b.Mapping))
		for k, v := range b.Mapping {
			out[k] = v.Clone()
		}
		return Bag{Kind: KindMapping, Mapping: out}
	default:
		return b
	}
}

// GoString renders a compact debug representation, used only in log fields.
func (b Bag) GoString() string {
	switch b.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", b.Bool)
	case KindInt:
		return fmt.Sprintf("%d", b.Int)
	case KindFloat:
		return fmt.Sprintf("%g", b.Float)
	case KindString:
		return fmt.Sprintf("%q", b.String)
	case KindSequence:
		return fmt.Sprintf("sequence[%d]", len(b.Sequence))
	case KindMapping:
		return fmt.Sprintf("mapping[%d]", len(b.Mapping))
	default:
		return "?"
	}
}
