package values

import "encoding/json"

// wireValue is the compact on-disk/wire encoding of a Value: a kind tag plus
// exactly the payload that kind carries. Entity ids (Node/Relationship/Path)
// never appear in property storage (spec §9), so they have no wire form
// here; Encode/Decode exist for persisting property chains, not runtime rows.
type wireValue struct {
	K Kind              `json:"k"`
	B bool              `json:"b,omitempty"`
	I int64             `json:"i,omitempty"`
	F float64           `json:"f,omitempty"`
	S string            `json:"s,omitempty"`
	L []wireValue       `json:"l,omitempty"`
	M map[string]wireValue `json:"m,omitempty"`
	O []string          `json:"o,omitempty"`
}

func toWire(v Value) wireValue {
	w := wireValue{K: v.Kind}
	switch v.Kind {
	case KindBool:
		w.B = v.b
	case KindInt:
		w.I = v.i
	case KindFloat:
		w.F = v.f
	case KindString:
		w.S = v.s
	case KindList:
		w.L = make([]wireValue, len(v.list))
		for i, item := range v.list {
			w.L[i] = toWire(item)
		}
	case KindMap:
		w.M = make(map[string]wireValue, len(v.m))
		for k, item := range v.m {
			w.M[k] = toWire(item)
		}
		w.O = append([]string(nil), v.keys...)
	}
	return w
}

func fromWire(w wireValue) Value {
	switch w.K {
	case KindNull:
		return Null
	case KindBool:
		return Bool(w.B)
	case KindInt:
		return Int(w.I)
	case KindFloat:
		return Float(w.F)
	case KindString:
		return Str(w.S)
	case KindList:
		items := make([]Value, len(w.L))
		for i, item := range w.L {
			items[i] = fromWire(item)
		}
		return List(items)
	case KindMap:
		m := make(map[string]Value, len(w.M))
		for k, item := range w.M {
			m[k] = fromWire(item)
		}
		return Map(m, w.O)
	default:
		return Null
	}
}

// Encode serializes a property-storable Value (Null/Bool/Int/Float/String/
// List/Map — spec §9 excludes entity ids from property storage) to its
// compact on-disk JSON form.
func Encode(v Value) ([]byte, error) {
	return json.Marshal(toWire(v))
}

// Decode restores a Value produced by Encode, exact for every kind Encode
// accepts.
func Decode(data []byte) (Value, error) {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return Null, err
	}
	return fromWire(w), nil
}
