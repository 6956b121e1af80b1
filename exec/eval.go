package exec

import (
	"math"
	"strconv"

	"github.com/hivellm/nexus/cypher/ast"
	"github.com/hivellm/nexus/cypher/token"
	"github.com/hivellm/nexus/nexuserr"
	"github.com/hivellm/nexus/values"
)

// Eval evaluates expr against row within rt, implementing the contracts in
// spec §4.5: Null propagation for arithmetic, strict typed equality, and
// Null (not an error) for most "missing" conditions.
func Eval(rt *Runtime, row Row, expr ast.Expr) (values.Value, error) {
	switch e := expr.(type) {
	case *ast.Literal:
		return evalLiteral(e)
	case *ast.ParamRef:
		if v, ok := rt.Params[e.Name]; ok {
			return v, nil
		}
		return values.Null, nil
	case *ast.Variable:
		if e.Name == "*" {
			return values.Null, nil
		}
		if v, ok := row[e.Name]; ok {
			return v, nil
		}
		return values.Null, nil
	case *ast.PropertyAccess:
		return evalPropertyAccess(rt, row, e)
	case *ast.LabelTest:
		return evalLabelTest(rt, row, e)
	case *ast.ListLiteral:
		items := make([]values.Value, len(e.Items))
		for i, it := range e.Items {
			v, err := Eval(rt, row, it)
			if err != nil {
				return values.Null, err
			}
			items[i] = v
		}
		return values.List(items), nil
	case *ast.MapLiteral:
		m := map[string]values.Value{}
		for i, k := range e.Keys {
			v, err := Eval(rt, row, e.Values[i])
			if err != nil {
				return values.Null, err
			}
			m[k] = v
		}
		return values.Map(m, append([]string(nil), e.Keys...)), nil
	case *ast.IndexExpr:
		return evalIndex(rt, row, e)
	case *ast.SliceExpr:
		return evalSlice(rt, row, e)
	case *ast.BinaryOp:
		return evalBinary(rt, row, e)
	case *ast.UnaryOp:
		return evalUnary(rt, row, e)
	case *ast.IsNullTest:
		v, err := Eval(rt, row, e.Operand)
		if err != nil {
			return values.Null, err
		}
		isNull := v.IsNull()
		if e.Negated {
			return values.Bool(!isNull), nil
		}
		return values.Bool(isNull), nil
	case *ast.InExpr:
		return evalIn(rt, row, e)
	case *ast.FunctionCall:
		return evalFunction(rt, row, e)
	case *ast.CaseExpr:
		return evalCase(rt, row, e)
	}
	return values.Null, nexuserr.New(nexuserr.CodeInternal, "eval: unhandled expression %T", expr)
}

func evalLiteral(lit *ast.Literal) (values.Value, error) {
	switch lit.Kind {
	case token.INT:
		n, err := strconv.ParseInt(lit.Raw, 10, 64)
		if err != nil {
			return values.Null, nexuserr.New(nexuserr.CodeType, "invalid integer literal %q", lit.Raw)
		}
		return values.Int(n), nil
	case token.FLOAT:
		f, err := strconv.ParseFloat(lit.Raw, 64)
		if err != nil {
			return values.Null, nexuserr.New(nexuserr.CodeType, "invalid float literal %q", lit.Raw)
		}
		return values.Float(f), nil
	case token.STRING:
		return values.Str(lit.Raw), nil
	case token.TRUE:
		return values.Bool(true), nil
	case token.FALSE:
		return values.Bool(false), nil
	case token.NULL:
		return values.Null, nil
	}
	return values.Null, nexuserr.New(nexuserr.CodeInternal, "eval: unknown literal kind")
}

func evalPropertyAccess(rt *Runtime, row Row, e *ast.PropertyAccess) (values.Value, error) {
	target, err := Eval(rt, row, e.Target)
	if err != nil {
		return values.Null, err
	}
	if target.IsNull() {
		return values.Null, nil
	}
	key, ok := rt.Catalog.LookupPropKey(e.Key)
	if !ok {
		return values.Null, nil
	}
	switch target.Kind {
	case values.KindNode:
		id, _ := target.AsEntityID()
		view, err := rt.Store.GetNode(id)
		if err != nil {
			return values.Null, nil
		}
		if v, ok := view.Props[key]; ok {
			return v, nil
		}
		return values.Null, nil
	case values.KindRelationship:
		id, _ := target.AsEntityID()
		view, err := rt.Store.GetRel(id)
		if err != nil {
			return values.Null, nil
		}
		if v, ok := view.Props[key]; ok {
			return v, nil
		}
		return values.Null, nil
	case values.KindMap:
		m, _, _ := target.AsMap()
		if v, ok := m[e.Key]; ok {
			return v, nil
		}
		return values.Null, nil
	}
	return values.Null, nil
}

func evalLabelTest(rt *Runtime, row Row, e *ast.LabelTest) (values.Value, error) {
	target, err := Eval(rt, row, e.Target)
	if err != nil {
		return values.Null, err
	}
	if target.IsNull() || target.Kind != values.KindNode {
		return values.Null, nil
	}
	id, _ := target.AsEntityID()
	for _, lname := range e.Labels {
		lid, ok := rt.Catalog.LookupLabel(lname)
		if !ok || !rt.Store.HasLabel(id, lid) {
			return values.Bool(false), nil
		}
	}
	return values.Bool(true), nil
}

func evalIndex(rt *Runtime, row Row, e *ast.IndexExpr) (values.Value, error) {
	target, err := Eval(rt, row, e.Target)
	if err != nil {
		return values.Null, err
	}
	idxV, err := Eval(rt, row, e.Index)
	if err != nil {
		return values.Null, err
	}
	if target.IsNull() || idxV.IsNull() {
		return values.Null, nil
	}
	list, ok := target.AsList()
	if !ok {
		return values.Null, nil
	}
	i, ok := idxV.AsInt()
	if !ok {
		return values.Null, nil
	}
	n := int64(len(list))
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return values.Null, nil
	}
	return list[i], nil
}

func evalSlice(rt *Runtime, row Row, e *ast.SliceExpr) (values.Value, error) {
	target, err := Eval(rt, row, e.Target)
	if err != nil {
		return values.Null, err
	}
	if target.IsNull() {
		return values.Null, nil
	}
	list, ok := target.AsList()
	if !ok {
		return values.Null, nexuserr.New(nexuserr.CodeType, "slice target is not a list")
	}
	n := int64(len(list))
	from, err := resolveBound(rt, row, e.From, 0, n)
	if err != nil {
		return values.Null, err
	}
	to, err := resolveBound(rt, row, e.To, n, n)
	if err != nil {
		return values.Null, err
	}
	if from < 0 {
		from = 0
	}
	if to > n {
		to = n
	}
	if from > to {
		from = to
	}
	out := make([]values.Value, to-from)
	copy(out, list[from:to])
	return values.List(out), nil
}

func resolveBound(rt *Runtime, row Row, e ast.Expr, def, n int64) (int64, error) {
	if e == nil {
		return def, nil
	}
	v, err := Eval(rt, row, e)
	if err != nil {
		return 0, err
	}
	i, ok := v.AsInt()
	if !ok {
		return def, nil
	}
	if i < 0 {
		i += n
	}
	return i, nil
}

func evalUnary(rt *Runtime, row Row, e *ast.UnaryOp) (values.Value, error) {
	v, err := Eval(rt, row, e.Operand)
	if err != nil {
		return values.Null, err
	}
	switch e.Op {
	case token.MINUS:
		if v.IsNull() {
			return values.Null, nil
		}
		switch v.Kind {
		case values.KindInt:
			i, _ := v.AsInt()
			return values.Int(-i), nil
		case values.KindFloat:
			f, _ := v.AsFloat()
			return values.Float(-f), nil
		}
		return values.Null, nexuserr.New(nexuserr.CodeType, "unary minus on non-numeric value")
	case token.NOT:
		if v.IsNull() {
			return values.Null, nil
		}
		b, ok := v.AsBool()
		if !ok {
			return values.Null, nil
		}
		return values.Bool(!b), nil
	}
	return values.Null, nexuserr.New(nexuserr.CodeInternal, "eval: unknown unary op")
}

func evalBinary(rt *Runtime, row Row, e *ast.BinaryOp) (values.Value, error) {
	switch e.Op {
	case token.AND:
		return evalAnd(rt, row, e.Left, e.Right)
	case token.OR:
		return evalOr(rt, row, e.Left, e.Right)
	case token.XOR:
		return evalXor(rt, row, e.Left, e.Right)
	}

	l, err := Eval(rt, row, e.Left)
	if err != nil {
		return values.Null, err
	}
	r, err := Eval(rt, row, e.Right)
	if err != nil {
		return values.Null, err
	}

	switch e.Op {
	case token.PLUS:
		return evalPlus(l, r)
	case token.MINUS:
		return arith(l, r, func(a, b int64) (int64, error) { return a - b, nil }, func(a, b float64) float64 { return a - b })
	case token.STAR:
		return arith(l, r, func(a, b int64) (int64, error) { return a * b, nil }, func(a, b float64) float64 { return a * b })
	case token.SLASH:
		return arith(l, r, func(a, b int64) (int64, error) {
			if b == 0 {
				return 0, nexuserr.New(nexuserr.CodeArithmetic, "division by zero")
			}
			return a / b, nil
		}, func(a, b float64) float64 { return a / b })
	case token.PERCENT:
		return arith(l, r, func(a, b int64) (int64, error) {
			if b == 0 {
				return 0, nexuserr.New(nexuserr.CodeArithmetic, "modulo by zero")
			}
			return a % b, nil
		}, func(a, b float64) float64 { return math.Mod(a, b) })
	case token.CARET:
		return arith(l, r, func(a, b int64) (int64, error) { return int64(math.Pow(float64(a), float64(b))), nil }, func(a, b float64) float64 { return math.Pow(a, b) })
	case token.EQ:
		if l.IsNull() || r.IsNull() {
			return values.Null, nil
		}
		return values.Bool(values.Equal(l, r)), nil
	case token.NEQ:
		if l.IsNull() || r.IsNull() {
			return values.Null, nil
		}
		return values.Bool(!values.Equal(l, r)), nil
	case token.LT, token.LTE, token.GT, token.GTE:
		return evalOrderingComparison(e.Op, l, r)
	}
	return values.Null, nexuserr.New(nexuserr.CodeInternal, "eval: unknown binary op %s", e.Op)
}

func evalAnd(rt *Runtime, row Row, le, re ast.Expr) (values.Value, error) {
	l, err := Eval(rt, row, le)
	if err != nil {
		return values.Null, err
	}
	if lb, ok := l.AsBool(); ok && !lb {
		return values.Bool(false), nil
	}
	r, err := Eval(rt, row, re)
	if err != nil {
		return values.Null, err
	}
	if rb, ok := r.AsBool(); ok && !rb {
		return values.Bool(false), nil
	}
	if l.IsNull() || r.IsNull() {
		return values.Null, nil
	}
	lb, _ := l.AsBool()
	rb, _ := r.AsBool()
	return values.Bool(lb && rb), nil
}

func evalOr(rt *Runtime, row Row, le, re ast.Expr) (values.Value, error) {
	l, err := Eval(rt, row, le)
	if err != nil {
		return values.Null, err
	}
	if lb, ok := l.AsBool(); ok && lb {
		return values.Bool(true), nil
	}
	r, err := Eval(rt, row, re)
	if err != nil {
		return values.Null, err
	}
	if rb, ok := r.AsBool(); ok && rb {
		return values.Bool(true), nil
	}
	if l.IsNull() || r.IsNull() {
		return values.Null, nil
	}
	lb, _ := l.AsBool()
	rb, _ := r.AsBool()
	return values.Bool(lb || rb), nil
}

func evalXor(rt *Runtime, row Row, le, re ast.Expr) (values.Value, error) {
	l, err := Eval(rt, row, le)
	if err != nil {
		return values.Null, err
	}
	r, err := Eval(rt, row, re)
	if err != nil {
		return values.Null, err
	}
	if l.IsNull() || r.IsNull() {
		return values.Null, nil
	}
	lb, _ := l.AsBool()
	rb, _ := r.AsBool()
	return values.Bool(lb != rb), nil
}

func evalPlus(l, r values.Value) (values.Value, error) {
	if l.Kind == values.KindString || r.Kind == values.KindString {
		if l.IsNull() || r.IsNull() {
			return values.Null, nil
		}
		if l.Kind == values.KindString && r.Kind == values.KindString {
			ls, _ := l.AsString()
			rs, _ := r.AsString()
			return values.Str(ls + rs), nil
		}
		return values.Null, nexuserr.New(nexuserr.CodeType, "cannot concatenate string with non-string")
	}
	if l.Kind == values.KindList || r.Kind == values.KindList {
		ll, lok := l.AsList()
		rl, rok := r.AsList()
		switch {
		case lok && rok:
			return values.List(append(append([]values.Value(nil), ll...), rl...)), nil
		case lok:
			return values.List(append(append([]values.Value(nil), ll...), r)), nil
		case rok:
			return values.List(append([]values.Value{l}, rl...)), nil
		}
	}
	return arith(l, r, func(a, b int64) (int64, error) { return a + b, nil }, func(a, b float64) float64 { return a + b })
}

func arith(l, r values.Value, intOp func(a, b int64) (int64, error), floatOp func(a, b float64) float64) (values.Value, error) {
	if l.IsNull() || r.IsNull() {
		return values.Null, nil
	}
	if !l.IsNumeric() || !r.IsNumeric() {
		return values.Null, nexuserr.New(nexuserr.CodeType, "arithmetic on non-numeric operand")
	}
	if l.Kind == values.KindInt && r.Kind == values.KindInt {
		li, _ := l.AsInt()
		ri, _ := r.AsInt()
		v, err := intOp(li, ri)
		if err != nil {
			return values.Null, err
		}
		return values.Int(v), nil
	}
	lf, _ := l.AsFloat()
	rf, _ := r.AsFloat()
	return values.Float(floatOp(lf, rf)), nil
}

func evalOrderingComparison(op token.Type, l, r values.Value) (values.Value, error) {
	if l.IsNull() || r.IsNull() {
		return values.Null, nil
	}
	cmp, ok := values.Compare(l, r)
	if !ok {
		return values.Null, nil
	}
	switch op {
	case token.LT:
		return values.Bool(cmp < 0), nil
	case token.LTE:
		return values.Bool(cmp <= 0), nil
	case token.GT:
		return values.Bool(cmp > 0), nil
	case token.GTE:
		return values.Bool(cmp >= 0), nil
	}
	return values.Null, nil
}

func evalIn(rt *Runtime, row Row, e *ast.InExpr) (values.Value, error) {
	target, err := Eval(rt, row, e.Operand)
	if err != nil {
		return values.Null, err
	}
	listV, err := Eval(rt, row, e.List)
	if err != nil {
		return values.Null, err
	}
	if listV.IsNull() {
		return values.Null, nil
	}
	list, ok := listV.AsList()
	if !ok {
		return values.Null, nexuserr.New(nexuserr.CodeType, "IN operand is not a list")
	}
	sawNull := false
	for _, item := range list {
		if target.IsNull() || item.IsNull() {
			sawNull = true
			continue
		}
		if values.Equal(target, item) {
			return values.Bool(true), nil
		}
	}
	if sawNull {
		return values.Null, nil
	}
	return values.Bool(false), nil
}

func evalCase(rt *Runtime, row Row, e *ast.CaseExpr) (values.Value, error) {
	var operand values.Value
	hasOperand := e.Operand != nil
	if hasOperand {
		v, err := Eval(rt, row, e.Operand)
		if err != nil {
			return values.Null, err
		}
		operand = v
	}
	for _, w := range e.Whens {
		if hasOperand {
			cmp, err := Eval(rt, row, w.Condition)
			if err != nil {
				return values.Null, err
			}
			if !operand.IsNull() && !cmp.IsNull() && values.Equal(operand, cmp) {
				return Eval(rt, row, w.Result)
			}
			continue
		}
		cond, err := Eval(rt, row, w.Condition)
		if err != nil {
			return values.Null, err
		}
		if b, ok := cond.AsBool(); ok && b {
			return Eval(rt, row, w.Result)
		}
	}
	if e.ElseResult != nil {
		return Eval(rt, row, e.ElseResult)
	}
	return values.Null, nil
}

// nodeLabelValues materializes a node's labels as a list of string Values,
// backing the labels() function.
func nodeLabelValues(rt *Runtime, id uint64) ([]values.Value, error) {
	view, err := rt.Store.GetNode(id)
	if err != nil {
		return nil, err
	}
	out := make([]values.Value, len(view.Labels))
	for i, l := range view.Labels {
		name, err := rt.Catalog.LabelName(l)
		if err != nil {
			return nil, err
		}
		out[i] = values.Str(name)
	}
	return out, nil
}
