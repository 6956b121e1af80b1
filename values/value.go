// Package values defines the runtime value representation shared by the
// storage layer and the query executor: a small tagged union covering every
// type a Cypher expression can produce.
package values

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Kind tags the dynamic type carried by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
	KindNode
	KindRelationship
	KindPath
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindBool:
		return "Bool"
	case KindInt:
		return "Int64"
	case KindFloat:
		return "Float64"
	case KindString:
		return "String"
	case KindList:
		return "List"
	case KindMap:
		return "Map"
	case KindNode:
		return "Node"
	case KindRelationship:
		return "Relationship"
	case KindPath:
		return "Path"
	default:
		return "Unknown"
	}
}

// Value is the tagged sum described in spec §3/§4.6. Only one of the fields
// below is meaningful for a given Kind; entity fields carry ids, not owning
// data, so property access always re-reads from storage.
type Value struct {
	Kind Kind

	b     bool
	i     int64
	f     float64
	s     string
	list  []Value
	m     map[string]Value
	keys  []string // insertion order for m, so Map round-trips deterministically
	entID uint64
	path  *Path
}

// Path is an ordered alternating sequence of node and relationship ids,
// beginning and ending on a node. len(Rels) == len(Nodes)-1 for any
// non-empty path.
type Path struct {
	Nodes []uint64
	Rels  []uint64
}

// Length returns the number of relationships (hops) in the path.
func (p *Path) Length() int {
	if p == nil {
		return 0
	}
	return len(p.Rels)
}

var Null = Value{Kind: KindNull}

func Bool(b bool) Value  { return Value{Kind: KindBool, b: b} }
func Int(i int64) Value  { return Value{Kind: KindInt, i: i} }
func Float(f float64) Value { return Value{Kind: KindFloat, f: f} }
func Str(s string) Value { return Value{Kind: KindString, s: s} }

func List(items []Value) Value {
	return Value{Kind: KindList, list: items}
}

// Map builds a map value. Keys are recorded in the order given so that
// keys() and serialization are stable (spec §9: property chain ordering is
// observable via keys() — we carry the same stability into map literals).
func Map(m map[string]Value, order []string) Value {
	if order == nil {
		order = make([]string, 0, len(m))
		for k := range m {
			order = append(order, k)
		}
		sort.Strings(order)
	}
	return Value{Kind: KindMap, m: m, keys: order}
}

func Node(id uint64) Value         { return Value{Kind: KindNode, entID: id} }
func Relationship(id uint64) Value { return Value{Kind: KindRelationship, entID: id} }
func PathValue(p *Path) Value      { return Value{Kind: KindPath, path: p} }

func (v Value) IsNull() bool { return v.Kind == KindNull }

func (v Value) AsBool() (bool, bool) {
	if v.Kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) AsInt() (int64, bool) {
	if v.Kind != KindInt {
		return 0, false
	}
	return v.i, true
}

func (v Value) AsFloat() (float64, bool) {
	switch v.Kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	default:
		return 0, false
	}
}

func (v Value) AsString() (string, bool) {
	if v.Kind != KindString {
		return "", false
	}
	return v.s, true
}

func (v Value) AsList() ([]Value, bool) {
	if v.Kind != KindList {
		return nil, false
	}
	return v.list, true
}

func (v Value) AsMap() (map[string]Value, []string, bool) {
	if v.Kind != KindMap {
		return nil, nil, false
	}
	return v.m, v.keys, true
}

func (v Value) AsEntityID() (uint64, bool) {
	if v.Kind != KindNode && v.Kind != KindRelationship {
		return 0, false
	}
	return v.entID, true
}

func (v Value) AsPath() (*Path, bool) {
	if v.Kind != KindPath {
		return nil, false
	}
	return v.path, true
}

// IsNumeric reports whether the value is Int or Float.
func (v Value) IsNumeric() bool { return v.Kind == KindInt || v.Kind == KindFloat }

// IsTruthy implements Cypher's three-valued logic: returns (value, isNull).
// Non-boolean, non-null values are not truthy and evaluate to Null in
// boolean contexts upstream (the evaluator is responsible for that).
func (v Value) IsTruthy() (bool, bool) {
	if v.Kind == KindNull {
		return false, true
	}
	if v.Kind == KindBool {
		return v.b, false
	}
	return false, true
}

// Equal implements Cypher's strict typed equality: integer 1 equals float
// 1.0, but string "1" never equals int 1. Null is never equal to anything,
// including Null itself, when used through Equal — three-valued callers
// should check IsNull first.
func Equal(a, b Value) bool {
	if a.Kind == KindNull || b.Kind == KindNull {
		return false
	}
	switch {
	case a.Kind == KindInt && b.Kind == KindInt:
		return a.i == b.i
	case a.IsNumeric() && b.IsNumeric():
		af, _ := a.AsFloat()
		bf, _ := b.AsFloat()
		return af == bf
	case a.Kind != b.Kind:
		return false
	}
	switch a.Kind {
	case KindBool:
		return a.b == b.b
	case KindString:
		return a.s == b.s
	case KindNode, KindRelationship:
		return a.entID == b.entID
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.keys) != len(b.keys) {
			return false
		}
		for _, k := range a.keys {
			bv, ok := b.m[k]
			if !ok || !Equal(a.m[k], bv) {
				return false
			}
		}
		return true
	case KindPath:
		if len(a.path.Nodes) != len(b.path.Nodes) || len(a.path.Rels) != len(b.path.Rels) {
			return false
		}
		for i := range a.path.Nodes {
			if a.path.Nodes[i] != b.path.Nodes[i] {
				return false
			}
		}
		for i := range a.path.Rels {
			if a.path.Rels[i] != b.path.Rels[i] {
				return false
			}
		}
		return true
	}
	return false
}

// Compare orders values of compatible types (numeric-numeric, string-string,
// bool-bool). ok is false for incomparable types, which the evaluator must
// turn into a Null comparison result per spec §4.5.
func Compare(a, b Value) (cmp int, ok bool) {
	switch {
	case a.IsNumeric() && b.IsNumeric():
		af, _ := a.AsFloat()
		bf, _ := b.AsFloat()
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	case a.Kind == KindString && b.Kind == KindString:
		switch {
		case a.s < b.s:
			return -1, true
		case a.s > b.s:
			return 1, true
		default:
			return 0, true
		}
	case a.Kind == KindBool && b.Kind == KindBool:
		if a.b == b.b {
			return 0, true
		}
		if !a.b && b.b {
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

// HashKey renders a Value into a string usable as a map key for
// equality-based grouping and deduplication (DISTINCT, UNION, aggregate
// DISTINCT). Unlike String, every branch is prefixed with a type tag so
// values of different Kind never collide (Int(1) and Str("1") hash
// differently), matching Equal's strict typed equality. Int and Float are
// deliberately folded into the same "N:" tag so that Int(1) and Float(1.0)
// do collide, the one case Equal treats as equal across Kinds.
func HashKey(v Value) string {
	var b strings.Builder
	writeHashKey(&b, v)
	return b.String()
}

func writeHashKey(b *strings.Builder, v Value) {
	switch v.Kind {
	case KindNull:
		b.WriteString("Z:")
	case KindBool:
		fmt.Fprintf(b, "B:%t", v.b)
	case KindInt, KindFloat:
		f, _ := v.AsFloat()
		fmt.Fprintf(b, "N:%g", f)
	case KindString:
		fmt.Fprintf(b, "S:%s", v.s)
	case KindNode:
		fmt.Fprintf(b, "n:%d", v.entID)
	case KindRelationship:
		fmt.Fprintf(b, "r:%d", v.entID)
	case KindList:
		b.WriteString("L:[")
		for _, item := range v.list {
			writeHashKey(b, item)
			b.WriteByte(',')
		}
		b.WriteByte(']')
	case KindMap:
		b.WriteString("M:{")
		for _, k := range v.keys {
			b.WriteString(k)
			b.WriteByte('=')
			writeHashKey(b, v.m[k])
			b.WriteByte(',')
		}
		b.WriteByte('}')
	case KindPath:
		b.WriteString("P:")
		if v.path != nil {
			for _, n := range v.path.Nodes {
				fmt.Fprintf(b, "n%d,", n)
			}
			for _, r := range v.path.Rels {
				fmt.Fprintf(b, "r%d,", r)
			}
		}
	default:
		b.WriteString("?")
	}
}

// String renders a Value for debugging and logging. It is not the JSON wire
// form (see session.Serialize for that).
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		if math.IsInf(v.f, 1) {
			return "Infinity"
		}
		if math.IsInf(v.f, -1) {
			return "-Infinity"
		}
		if math.IsNaN(v.f) {
			return "NaN"
		}
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return v.s
	case KindList:
		return fmt.Sprintf("%v", v.list)
	case KindMap:
		return fmt.Sprintf("%v", v.m)
	case KindNode:
		return fmt.Sprintf("Node(%d)", v.entID)
	case KindRelationship:
		return fmt.Sprintf("Relationship(%d)", v.entID)
	case KindPath:
		return fmt.Sprintf("Path(len=%d)", v.path.Length())
	default:
		return "?"
	}
}
