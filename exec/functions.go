package exec

import (
	"math"
	"strconv"
	"strings"

	"github.com/hivellm/nexus/catalog"
	"github.com/hivellm/nexus/cypher/ast"
	"github.com/hivellm/nexus/nexuserr"
	"github.com/hivellm/nexus/values"
)

// evalFunction dispatches a FunctionCall to its implementation, following
// the "single-argument functions return Null on Null input" and
// "constant-producing functions never return Null" rules from spec §4.5.
func evalFunction(rt *Runtime, row Row, call *ast.FunctionCall) (values.Value, error) {
	args := make([]values.Value, len(call.Args))
	for i, a := range call.Args {
		if v, ok := a.(*ast.Variable); ok && v.Name == "*" {
			args[i] = values.Null
			continue
		}
		v, err := Eval(rt, row, a)
		if err != nil {
			return values.Null, err
		}
		args[i] = v
	}

	switch call.Name {
	case "pi":
		return values.Float(math.Pi), nil
	case "e":
		return values.Float(math.E), nil
	case "coalesce":
		for _, a := range args {
			if !a.IsNull() {
				return a, nil
			}
		}
		return values.Null, nil
	case "length", "size":
		return fnLength(args)
	case "head":
		return fnHead(args)
	case "tail":
		return fnTail(args)
	case "last":
		return fnLast(args)
	case "reverse":
		return fnReverse(args)
	case "range":
		return fnRange(args)
	case "abs":
		return fnUnaryNumeric(args, math.Abs, func(i int64) int64 { if i < 0 { return -i }; return i })
	case "ceil":
		return fnUnaryFloat(args, math.Ceil)
	case "floor":
		return fnUnaryFloat(args, math.Floor)
	case "round":
		return fnUnaryFloat(args, math.Round)
	case "sqrt":
		return fnUnaryFloat(args, math.Sqrt)
	case "sign":
		return fnSign(args)
	case "exp":
		return fnUnaryFloat(args, math.Exp)
	case "log":
		return fnUnaryFloat(args, math.Log)
	case "log10":
		return fnUnaryFloat(args, math.Log10)
	case "pow":
		return fnBinaryFloat(args, math.Pow)
	case "sin":
		return fnUnaryFloat(args, math.Sin)
	case "cos":
		return fnUnaryFloat(args, math.Cos)
	case "tan":
		return fnUnaryFloat(args, math.Tan)
	case "asin":
		return fnUnaryFloat(args, math.Asin)
	case "acos":
		return fnUnaryFloat(args, math.Acos)
	case "atan":
		return fnUnaryFloat(args, math.Atan)
	case "atan2":
		return fnBinaryFloat(args, math.Atan2)
	case "radians":
		return fnUnaryFloat(args, func(d float64) float64 { return d * math.Pi / 180 })
	case "degrees":
		return fnUnaryFloat(args, func(r float64) float64 { return r * 180 / math.Pi })
	case "toLower":
		return fnStringMap(args, strings.ToLower)
	case "toUpper":
		return fnStringMap(args, strings.ToUpper)
	case "trim":
		return fnStringMap(args, strings.TrimSpace)
	case "ltrim":
		return fnStringMap(args, func(s string) string { return strings.TrimLeft(s, " \t\n\r") })
	case "rtrim":
		return fnStringMap(args, func(s string) string { return strings.TrimRight(s, " \t\n\r") })
	case "left":
		return fnLeft(args)
	case "right":
		return fnRight(args)
	case "substring":
		return fnSubstring(args)
	case "replace":
		return fnReplace(args)
	case "split":
		return fnSplit(args)
	case "toInteger":
		return fnToInteger(args)
	case "toFloat":
		return fnToFloat(args)
	case "toString":
		return fnToString(args)
	case "toBoolean":
		return fnToBoolean(args)
	case "keys":
		return fnKeys(rt, args)
	case "labels":
		return fnLabels(rt, args)
	case "type":
		return fnType(rt, args)
	case "id":
		return fnID(args)
	case "properties":
		return fnProperties(rt, args)
	case "nodes":
		return fnPathNodes(args)
	case "relationships":
		return fnPathRels(args)
	case "startNode":
		return fnStartNode(rt, args)
	case "endNode":
		return fnEndNode(rt, args)
	case "__startsWith":
		return fnStartsWith(args)
	case "__endsWith":
		return fnEndsWith(args)
	case "__contains":
		return fnContains(args)
	case "count", "sum", "avg", "min", "max", "collect":
		return values.Null, nexuserr.New(nexuserr.CodeInternal, "aggregate function %q used outside an Aggregate operator", call.Name)
	}
	return values.Null, nexuserr.New(nexuserr.CodeSemantic, "unknown function %q", call.Name)
}

func arg0(args []values.Value) values.Value {
	if len(args) == 0 {
		return values.Null
	}
	return args[0]
}

func fnLength(args []values.Value) (values.Value, error) {
	a := arg0(args)
	if a.IsNull() {
		return values.Null, nil
	}
	if s, ok := a.AsString(); ok {
		return values.Int(int64(len(s))), nil
	}
	if l, ok := a.AsList(); ok {
		return values.Int(int64(len(l))), nil
	}
	if p, ok := a.AsPath(); ok {
		return values.Int(int64(p.Length())), nil
	}
	return values.Null, nexuserr.New(nexuserr.CodeType, "length() requires a string, list, or path")
}

func fnHead(args []values.Value) (values.Value, error) {
	a := arg0(args)
	if a.IsNull() {
		return values.Null, nil
	}
	l, ok := a.AsList()
	if !ok || len(l) == 0 {
		return values.Null, nil
	}
	return l[0], nil
}

func fnLast(args []values.Value) (values.Value, error) {
	a := arg0(args)
	if a.IsNull() {
		return values.Null, nil
	}
	l, ok := a.AsList()
	if !ok || len(l) == 0 {
		return values.Null, nil
	}
	return l[len(l)-1], nil
}

func fnTail(args []values.Value) (values.Value, error) {
	a := arg0(args)
	if a.IsNull() {
		return values.Null, nil
	}
	l, ok := a.AsList()
	if !ok {
		return values.Null, nil
	}
	if len(l) <= 1 {
		return values.List(nil), nil
	}
	out := make([]values.Value, len(l)-1)
	copy(out, l[1:])
	return values.List(out), nil
}

func fnReverse(args []values.Value) (values.Value, error) {
	a := arg0(args)
	if a.IsNull() {
		return values.Null, nil
	}
	if s, ok := a.AsString(); ok {
		runes := []rune(s)
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return values.Str(string(runes)), nil
	}
	l, ok := a.AsList()
	if !ok {
		return values.Null, nil
	}
	out := make([]values.Value, len(l))
	for i, v := range l {
		out[len(l)-1-i] = v
	}
	return values.List(out), nil
}

func fnRange(args []values.Value) (values.Value, error) {
	if len(args) < 2 {
		return values.Null, nexuserr.New(nexuserr.CodeSemantic, "range() requires at least 2 arguments")
	}
	start, ok1 := args[0].AsInt()
	end, ok2 := args[1].AsInt()
	if !ok1 || !ok2 {
		return values.Null, nil
	}
	step := int64(1)
	if len(args) >= 3 {
		s, ok := args[2].AsInt()
		if !ok || s == 0 {
			return values.Null, nexuserr.New(nexuserr.CodeType, "range() step must be a non-zero integer")
		}
		step = s
	}
	var out []values.Value
	if step > 0 {
		for i := start; i <= end; i += step {
			out = append(out, values.Int(i))
		}
	} else {
		for i := start; i >= end; i += step {
			out = append(out, values.Int(i))
		}
	}
	return values.List(out), nil
}

func fnUnaryNumeric(args []values.Value, floatOp func(float64) float64, intOp func(int64) int64) (values.Value, error) {
	a := arg0(args)
	if a.IsNull() {
		return values.Null, nil
	}
	if a.Kind == values.KindInt {
		i, _ := a.AsInt()
		return values.Int(intOp(i)), nil
	}
	f, ok := a.AsFloat()
	if !ok {
		return values.Null, nexuserr.New(nexuserr.CodeType, "expected numeric argument")
	}
	return values.Float(floatOp(f)), nil
}

func fnUnaryFloat(args []values.Value, op func(float64) float64) (values.Value, error) {
	a := arg0(args)
	if a.IsNull() {
		return values.Null, nil
	}
	f, ok := a.AsFloat()
	if !ok {
		return values.Null, nexuserr.New(nexuserr.CodeType, "expected numeric argument")
	}
	return values.Float(op(f)), nil
}

func fnBinaryFloat(args []values.Value, op func(a, b float64) float64) (values.Value, error) {
	if len(args) < 2 || args[0].IsNull() || args[1].IsNull() {
		return values.Null, nil
	}
	a, ok1 := args[0].AsFloat()
	b, ok2 := args[1].AsFloat()
	if !ok1 || !ok2 {
		return values.Null, nexuserr.New(nexuserr.CodeType, "expected numeric arguments")
	}
	return values.Float(op(a, b)), nil
}

func fnSign(args []values.Value) (values.Value, error) {
	a := arg0(args)
	if a.IsNull() {
		return values.Null, nil
	}
	f, ok := a.AsFloat()
	if !ok {
		return values.Null, nexuserr.New(nexuserr.CodeType, "expected numeric argument")
	}
	switch {
	case f > 0:
		return values.Int(1), nil
	case f < 0:
		return values.Int(-1), nil
	default:
		return values.Int(0), nil
	}
}

func fnStringMap(args []values.Value, op func(string) string) (values.Value, error) {
	a := arg0(args)
	if a.IsNull() {
		return values.Null, nil
	}
	s, ok := a.AsString()
	if !ok {
		return values.Null, nexuserr.New(nexuserr.CodeType, "expected string argument")
	}
	return values.Str(op(s)), nil
}

func fnLeft(args []values.Value) (values.Value, error) {
	if len(args) < 2 || args[0].IsNull() {
		return values.Null, nil
	}
	s, _ := args[0].AsString()
	n, ok := args[1].AsInt()
	if !ok || n < 0 {
		return values.Null, nil
	}
	if int(n) > len(s) {
		n = int64(len(s))
	}
	return values.Str(s[:n]), nil
}

func fnRight(args []values.Value) (values.Value, error) {
	if len(args) < 2 || args[0].IsNull() {
		return values.Null, nil
	}
	s, _ := args[0].AsString()
	n, ok := args[1].AsInt()
	if !ok || n < 0 {
		return values.Null, nil
	}
	if int(n) > len(s) {
		n = int64(len(s))
	}
	return values.Str(s[int64(len(s))-n:]), nil
}

func fnSubstring(args []values.Value) (values.Value, error) {
	if len(args) < 2 || args[0].IsNull() {
		return values.Null, nil
	}
	s, _ := args[0].AsString()
	start, ok := args[1].AsInt()
	if !ok || start < 0 {
		start = 0
	}
	if start > int64(len(s)) {
		start = int64(len(s))
	}
	end := int64(len(s))
	if len(args) >= 3 {
		if l, ok := args[2].AsInt(); ok {
			end = start + l
			if end > int64(len(s)) {
				end = int64(len(s))
			}
		}
	}
	return values.Str(s[start:end]), nil
}

func fnReplace(args []values.Value) (values.Value, error) {
	if len(args) < 3 || args[0].IsNull() || args[1].IsNull() || args[2].IsNull() {
		return values.Null, nil
	}
	s, _ := args[0].AsString()
	old, _ := args[1].AsString()
	repl, _ := args[2].AsString()
	return values.Str(strings.ReplaceAll(s, old, repl)), nil
}

func fnSplit(args []values.Value) (values.Value, error) {
	if len(args) < 2 || args[0].IsNull() || args[1].IsNull() {
		return values.Null, nil
	}
	s, _ := args[0].AsString()
	sep, _ := args[1].AsString()
	parts := strings.Split(s, sep)
	out := make([]values.Value, len(parts))
	for i, p := range parts {
		out[i] = values.Str(p)
	}
	return values.List(out), nil
}

func fnToInteger(args []values.Value) (values.Value, error) {
	a := arg0(args)
	if a.IsNull() {
		return values.Null, nil
	}
	switch a.Kind {
	case values.KindInt:
		return a, nil
	case values.KindFloat:
		f, _ := a.AsFloat()
		return values.Int(int64(f)), nil
	case values.KindString:
		s, _ := a.AsString()
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if ferr != nil {
				return values.Null, nil
			}
			return values.Int(int64(f)), nil
		}
		return values.Int(n), nil
	}
	return values.Null, nil
}

func fnToFloat(args []values.Value) (values.Value, error) {
	a := arg0(args)
	if a.IsNull() {
		return values.Null, nil
	}
	switch a.Kind {
	case values.KindFloat:
		return a, nil
	case values.KindInt:
		i, _ := a.AsInt()
		return values.Float(float64(i)), nil
	case values.KindString:
		s, _ := a.AsString()
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return values.Null, nil
		}
		return values.Float(f), nil
	}
	return values.Null, nil
}

func fnToString(args []values.Value) (values.Value, error) {
	a := arg0(args)
	if a.IsNull() {
		return values.Null, nil
	}
	switch a.Kind {
	case values.KindString:
		return a, nil
	case values.KindBool, values.KindInt, values.KindFloat:
		return values.Str(a.String()), nil
	}
	return values.Null, nil
}

func fnToBoolean(args []values.Value) (values.Value, error) {
	a := arg0(args)
	if a.IsNull() {
		return values.Null, nil
	}
	switch a.Kind {
	case values.KindBool:
		return a, nil
	case values.KindString:
		s, _ := a.AsString()
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true":
			return values.Bool(true), nil
		case "false":
			return values.Bool(false), nil
		default:
			return values.Null, nil
		}
	}
	return values.Null, nil
}

func fnKeys(rt *Runtime, args []values.Value) (values.Value, error) {
	a := arg0(args)
	if a.IsNull() {
		return values.Null, nil
	}
	switch a.Kind {
	case values.KindMap:
		_, order, _ := a.AsMap()
		out := make([]values.Value, len(order))
		for i, k := range order {
			out[i] = values.Str(k)
		}
		return values.List(out), nil
	case values.KindNode:
		id, _ := a.AsEntityID()
		view, err := rt.Store.GetNode(id)
		if err != nil {
			return values.Null, nil
		}
		return propOrderKeys(rt, view.PropOrder)
	case values.KindRelationship:
		id, _ := a.AsEntityID()
		view, err := rt.Store.GetRel(id)
		if err != nil {
			return values.Null, nil
		}
		return propOrderKeys(rt, view.PropOrder)
	}
	return values.Null, nexuserr.New(nexuserr.CodeType, "keys() requires a map, node, or relationship")
}

func propOrderKeys(rt *Runtime, order []catalog.ID) (values.Value, error) {
	out := make([]values.Value, len(order))
	for i, key := range order {
		name, err := rt.Catalog.PropKeyName(key)
		if err != nil {
			return values.Null, err
		}
		out[i] = values.Str(name)
	}
	return values.List(out), nil
}

func fnLabels(rt *Runtime, args []values.Value) (values.Value, error) {
	a := arg0(args)
	if a.IsNull() {
		return values.Null, nil
	}
	if a.Kind != values.KindNode {
		return values.Null, nexuserr.New(nexuserr.CodeType, "labels() requires a node")
	}
	id, _ := a.AsEntityID()
	lbls, err := nodeLabelValues(rt, id)
	if err != nil {
		return values.Null, nil
	}
	return values.List(lbls), nil
}

func fnType(rt *Runtime, args []values.Value) (values.Value, error) {
	a := arg0(args)
	if a.IsNull() {
		return values.Null, nil
	}
	if a.Kind != values.KindRelationship {
		return values.Null, nexuserr.New(nexuserr.CodeType, "type() requires a relationship")
	}
	id, _ := a.AsEntityID()
	view, err := rt.Store.GetRel(id)
	if err != nil {
		return values.Null, nil
	}
	name, err := rt.Catalog.RelTypeName(view.Type)
	if err != nil {
		return values.Null, nil
	}
	return values.Str(name), nil
}

func fnID(args []values.Value) (values.Value, error) {
	a := arg0(args)
	if a.IsNull() {
		return values.Null, nil
	}
	id, ok := a.AsEntityID()
	if !ok {
		return values.Null, nexuserr.New(nexuserr.CodeType, "id() requires a node or relationship")
	}
	return values.Int(int64(id)), nil
}

func fnProperties(rt *Runtime, args []values.Value) (values.Value, error) {
	a := arg0(args)
	if a.IsNull() {
		return values.Null, nil
	}
	switch a.Kind {
	case values.KindMap:
		return a, nil
	case values.KindNode:
		id, _ := a.AsEntityID()
		view, err := rt.Store.GetNode(id)
		if err != nil {
			return values.Null, nil
		}
		return propsToMap(rt, view.Props, view.PropOrder)
	case values.KindRelationship:
		id, _ := a.AsEntityID()
		view, err := rt.Store.GetRel(id)
		if err != nil {
			return values.Null, nil
		}
		return propsToMap(rt, view.Props, view.PropOrder)
	}
	return values.Null, nil
}

// propsToMap converts a store property snapshot into a Cypher map value,
// resolving catalog ids to their interned names and preserving insertion
// order (spec §13.3).
func propsToMap(rt *Runtime, props map[catalog.ID]values.Value, order []catalog.ID) (values.Value, error) {
	m := make(map[string]values.Value, len(props))
	names := make([]string, len(order))
	for i, key := range order {
		name, err := rt.Catalog.PropKeyName(key)
		if err != nil {
			return values.Null, err
		}
		names[i] = name
		m[name] = props[key]
	}
	return values.Map(m, names), nil
}

func fnPathNodes(args []values.Value) (values.Value, error) {
	a := arg0(args)
	if a.IsNull() {
		return values.Null, nil
	}
	p, ok := a.AsPath()
	if !ok {
		return values.Null, nexuserr.New(nexuserr.CodeType, "nodes() requires a path")
	}
	out := make([]values.Value, len(p.Nodes))
	for i, n := range p.Nodes {
		out[i] = values.Node(n)
	}
	return values.List(out), nil
}

func fnPathRels(args []values.Value) (values.Value, error) {
	a := arg0(args)
	if a.IsNull() {
		return values.Null, nil
	}
	p, ok := a.AsPath()
	if !ok {
		return values.Null, nexuserr.New(nexuserr.CodeType, "relationships() requires a path")
	}
	out := make([]values.Value, len(p.Rels))
	for i, r := range p.Rels {
		out[i] = values.Relationship(r)
	}
	return values.List(out), nil
}

func fnStartNode(rt *Runtime, args []values.Value) (values.Value, error) {
	a := arg0(args)
	if a.IsNull() {
		return values.Null, nil
	}
	if a.Kind != values.KindRelationship {
		return values.Null, nexuserr.New(nexuserr.CodeType, "startNode() requires a relationship")
	}
	id, _ := a.AsEntityID()
	view, err := rt.Store.GetRel(id)
	if err != nil {
		return values.Null, nil
	}
	return values.Node(view.Src), nil
}

func fnEndNode(rt *Runtime, args []values.Value) (values.Value, error) {
	a := arg0(args)
	if a.IsNull() {
		return values.Null, nil
	}
	if a.Kind != values.KindRelationship {
		return values.Null, nexuserr.New(nexuserr.CodeType, "endNode() requires a relationship")
	}
	id, _ := a.AsEntityID()
	view, err := rt.Store.GetRel(id)
	if err != nil {
		return values.Null, nil
	}
	return values.Node(view.Dst), nil
}

func fnStartsWith(args []values.Value) (values.Value, error) {
	if len(args) < 2 || args[0].IsNull() || args[1].IsNull() {
		return values.Null, nil
	}
	s, _ := args[0].AsString()
	prefix, _ := args[1].AsString()
	return values.Bool(strings.HasPrefix(s, prefix)), nil
}

func fnEndsWith(args []values.Value) (values.Value, error) {
	if len(args) < 2 || args[0].IsNull() || args[1].IsNull() {
		return values.Null, nil
	}
	s, _ := args[0].AsString()
	suffix, _ := args[1].AsString()
	return values.Bool(strings.HasSuffix(s, suffix)), nil
}

func fnContains(args []values.Value) (values.Value, error) {
	if len(args) < 2 || args[0].IsNull() || args[1].IsNull() {
		return values.Null, nil
	}
	s, _ := args[0].AsString()
	sub, _ := args[1].AsString()
	return values.Bool(strings.Contains(s, sub)), nil
}
