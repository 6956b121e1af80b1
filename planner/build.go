package planner

import (
	"github.com/hivellm/nexus/cypher/ast"
	"github.com/hivellm/nexus/cypher/token"
	"github.com/hivellm/nexus/nexuserr"
)

// boundSet tracks which variables are already bound while building a plan,
// so Build can decide Expand's driving side and rewrite it to ExpandInto
// when both endpoints are already known (spec §4.4).
type boundSet map[string]bool

func (b boundSet) has(name string) bool { return name != "" && b[name] }
func (b boundSet) add(name string) {
	if name != "" {
		b[name] = true
	}
}

// Build compiles a parsed, semantically-valid query into a physical plan
// rooted at a Produce operator, or a *Union if the query has UNION parts.
func Build(q *ast.Query) (Op, error) {
	first, err := buildSingle(q.First)
	if err != nil {
		return nil, err
	}
	root := first
	for _, u := range q.Unions {
		right, err := buildSingle(u.Query)
		if err != nil {
			return nil, err
		}
		root = &Union{Left: root, Right: right, PreserveDuplicates: u.All}
	}
	return Rewrite(root), nil
}

func buildSingle(sq *ast.SingleQuery) (Op, error) {
	var cur Op
	bound := boundSet{}
	for _, c := range sq.Clauses {
		next, err := buildClause(cur, bound, c)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	if sq.Return == nil {
		return cur, nil
	}
	return buildReturn(cur, sq.Return)
}

func buildClause(input Op, bound boundSet, c ast.Clause) (Op, error) {
	switch n := c.(type) {
	case *ast.MatchClause:
		return buildMatch(input, bound, n)
	case *ast.UnwindClause:
		bound.add(n.Alias)
		return &Unwind{Input: input, ListExpr: n.Expr, Alias: n.Alias}, nil
	case *ast.WithClause:
		return buildWith(input, bound, n)
	case *ast.CreateClause:
		for _, part := range n.Patterns {
			bindPatternVars(bound, part)
		}
		return &Create{Input: input, Patterns: n.Patterns}, nil
	case *ast.MergeClause:
		bindPatternVars(bound, n.Pattern)
		return &Merge{Input: input, Pattern: n.Pattern, OnCreate: n.OnCreate, OnMatch: n.OnMatch}, nil
	case *ast.SetClause:
		return &SetProperties{Input: input, Items: n.Items}, nil
	case *ast.RemoveClause:
		return &SetProperties{Input: input, Items: n.Items, Remove: true}, nil
	case *ast.DeleteClause:
		return &Delete{Input: input, Vars: n.Variables, Detach: n.Detach}, nil
	case *ast.CallClause:
		for _, y := range n.Yield {
			bound.add(y)
		}
		return input, nil // no procedure catalog ships; CALL is a structural no-op plan-wise
	}
	return nil, nexuserr.New(nexuserr.CodeInternal, "planner: unhandled clause type %T", c)
}

func bindPatternVars(bound boundSet, part ast.PatternPart) {
	bound.add(part.Variable)
	for _, n := range part.Nodes {
		bound.add(n.Variable)
	}
	for _, r := range part.Rels {
		bound.add(r.Variable)
	}
}

func buildMatch(input Op, bound boundSet, m *ast.MatchClause) (Op, error) {
	cur := input
	for _, part := range m.Patterns {
		var err error
		cur, err = buildPatternPart(cur, bound, part, m.Optional)
		if err != nil {
			return nil, err
		}
	}
	if m.Where != nil {
		cur = &Filter{Input: cur, Predicate: m.Where}
	}
	return cur, nil
}

func buildPatternPart(input Op, bound boundSet, part ast.PatternPart, optional bool) (Op, error) {
	firstNode := part.Nodes[0]

	// Driving-side optimization (spec §4.4): for (a)-[r:T]->(b) with only b
	// bound, expansion starts at b via the incoming chain rather than
	// scanning the whole graph for a. Only worth it for a plain (non
	// OPTIONAL) pattern where the first node really is unbound and some
	// later node in the same part already is.
	if !optional && !bound.has(firstNode.Variable) {
		if anchor := firstBoundNodeAfter(bound, part); anchor > 0 {
			return buildPatternPartReverse(input, bound, part, anchor)
		}
	}

	var cur Op
	if bound.has(firstNode.Variable) {
		cur = input
	} else {
		cur = scanForNode(input, firstNode)
		bound.add(firstNode.Variable)
	}

	return buildPatternPartForward(cur, bound, part, optional, firstNode.Variable, 0)
}

// firstBoundNodeAfter returns the index of the earliest node in part (at or
// past index 1) whose variable is already bound, or -1 if none is.
func firstBoundNodeAfter(bound boundSet, part ast.PatternPart) int {
	for i := 1; i < len(part.Nodes); i++ {
		if bound.has(part.Nodes[i].Variable) {
			return i
		}
	}
	return -1
}

// reverseDirection flips a relationship pattern's direction for the case
// where expansion is driven from its far endpoint rather than its near one:
// what is outgoing from the near node is incoming to the far one, and vice
// versa. Undirected patterns stay undirected.
func reverseDirection(d ast.RelDirection) ast.RelDirection {
	switch d {
	case ast.DirRight:
		return ast.DirLeft
	case ast.DirLeft:
		return ast.DirRight
	default:
		return ast.DirEither
	}
}

// buildPatternPartReverse drives expansion from the already-bound node at
// part.Nodes[anchor] back toward the front of the pattern, walking each
// hop's incoming chain, then hands off to buildPatternPartForward for any
// hops still remaining past anchor.
func buildPatternPartReverse(input Op, bound boundSet, part ast.PatternPart, anchor int) (Op, error) {
	cur := input
	fromVar := part.Nodes[anchor].Variable
	for i := anchor - 1; i >= 0; i-- {
		rel := part.Rels[i]
		toNode := part.Nodes[i]
		cur = &Expand{Input: cur, From: fromVar, RelVar: rel.Variable, ToVar: toNode.Variable, Direction: reverseDirection(rel.Direction), Types: rel.Types, VarLength: rel.VarLength}
		bound.add(rel.Variable)
		cur = applyNodeFilter(cur, toNode)
		bound.add(toNode.Variable)
		fromVar = toNode.Variable
	}
	return buildPatternPartForward(cur, bound, part, false, part.Nodes[anchor].Variable, anchor)
}

// buildPatternPartForward is the original left-to-right expansion loop,
// starting from fromVar (already bound) at relationship index startIdx.
func buildPatternPartForward(cur Op, bound boundSet, part ast.PatternPart, optional bool, fromVar string, startIdx int) (Op, error) {
	for i := startIdx; i < len(part.Rels); i++ {
		rel := part.Rels[i]
		toNode := part.Nodes[i+1]
		toBoundAlready := bound.has(toNode.Variable)
		fromBoundAlready := bound.has(fromVar)

		if fromBoundAlready && toBoundAlready {
			cur = &ExpandInto{Input: cur, From: fromVar, To: toNode.Variable, RelVar: rel.Variable, Direction: rel.Direction, Types: rel.Types}
		} else if optional {
			cur = &OptionalExpand{Input: cur, From: fromVar, RelVar: rel.Variable, ToVar: toNode.Variable, Direction: rel.Direction, Types: rel.Types}
		} else {
			cur = &Expand{Input: cur, From: fromVar, RelVar: rel.Variable, ToVar: toNode.Variable, Direction: rel.Direction, Types: rel.Types, VarLength: rel.VarLength}
		}
		bound.add(rel.Variable)
		if !toBoundAlready {
			cur = applyNodeFilter(cur, toNode)
			bound.add(toNode.Variable)
		}
		fromVar = toNode.Variable
	}
	return cur, nil
}

// scanForNode builds the Scan feeding a fresh (not-yet-bound) node pattern,
// inlining its single label and property-equality filters per spec §4.4.
func scanForNode(input Op, n *ast.NodePattern) Op {
	scan := &Scan{Variable: n.Variable, PropFilter: map[string]ast.Expr{}}
	if len(n.Labels) > 0 {
		scan.Label = n.Labels[0]
	}
	if n.Properties != nil {
		for i, k := range n.Properties.Keys {
			scan.PropFilter[k] = n.Properties.Values[i]
		}
	}
	var extraLabelFilter Op = scan
	for _, lbl := range n.Labels[1:] {
		extraLabelFilter = &Filter{Input: extraLabelFilter, Predicate: &ast.LabelTest{Target: &ast.Variable{Name: n.Variable}, Labels: []string{lbl}}}
	}
	if input == nil {
		return extraLabelFilter
	}
	return &Apply{Outer: input, Inner: extraLabelFilter}
}

// applyNodeFilter adds label/property filters for a node reached via Expand
// rather than Scan (Expand cannot inline a label filter on its target).
func applyNodeFilter(cur Op, n *ast.NodePattern) Op {
	for _, lbl := range n.Labels {
		cur = &Filter{Input: cur, Predicate: &ast.LabelTest{Target: &ast.Variable{Name: n.Variable}, Labels: []string{lbl}}}
	}
	if n.Properties != nil {
		for i, k := range n.Properties.Keys {
			pred := &ast.BinaryOp{
				Op:    token.EQ,
				Left:  &ast.PropertyAccess{Target: &ast.Variable{Name: n.Variable}, Key: k},
				Right: n.Properties.Values[i],
			}
			cur = &Filter{Input: cur, Predicate: pred}
		}
	}
	return cur
}

func buildWith(input Op, bound boundSet, w *ast.WithClause) (Op, error) {
	cols := projectionColumns(w.Items)
	cur := Op(&Project{Input: input, Columns: cols})
	if hasAggregation(w.Items) {
		cur = buildAggregate(input, w.Items)
	}
	if w.Distinct {
		cur = &Distinct{Input: cur}
	}
	if w.Where != nil {
		cur = &Filter{Input: cur, Predicate: w.Where}
	}
	if len(w.OrderBy) > 0 {
		cur = &Sort{Input: cur, Keys: sortKeys(w.OrderBy)}
	}
	if w.Skip != nil || w.Limit != nil {
		cur = &Limit{Input: cur, Skip: w.Skip, Limit: w.Limit}
	}
	newBound := boundSet{}
	for _, c := range cols {
		newBound.add(c.Name)
	}
	for k := range bound {
		delete(bound, k)
	}
	for k := range newBound {
		bound.add(k)
	}
	return cur, nil
}

func buildReturn(input Op, r *ast.ReturnClause) (Op, error) {
	if len(r.Items) == 1 {
		if v, ok := r.Items[0].Expr.(*ast.Variable); ok && v.Name == "*" {
			return &Produce{Input: input, Columns: nil}, nil
		}
	}
	cols := projectionColumns(r.Items)
	var cur Op
	if hasAggregation(r.Items) {
		cur = buildAggregate(input, r.Items)
	} else {
		cur = &Project{Input: input, Columns: cols}
	}
	if r.Distinct {
		cur = &Distinct{Input: cur}
	}
	if len(r.OrderBy) > 0 {
		cur = &Sort{Input: cur, Keys: sortKeys(r.OrderBy)}
	}
	if r.Skip != nil || r.Limit != nil {
		cur = &Limit{Input: cur, Skip: r.Skip, Limit: r.Limit}
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return &Produce{Input: cur, Columns: names}, nil
}

func projectionColumns(items []ast.ProjectionItem) []Column {
	cols := make([]Column, len(items))
	for i, item := range items {
		name := item.Alias
		if name == "" {
			name = displayName(item.Expr)
		}
		cols[i] = Column{Name: name, Expr: item.Expr}
	}
	return cols
}

func displayName(e ast.Expr) string {
	switch n := e.(type) {
	case *ast.Variable:
		return n.Name
	case *ast.PropertyAccess:
		return displayName(n.Target) + "." + n.Key
	case *ast.FunctionCall:
		return n.Name + "(...)"
	default:
		return "expr"
	}
}

func sortKeys(items []ast.OrderItem) []SortKey {
	keys := make([]SortKey, len(items))
	for i, it := range items {
		keys[i] = SortKey{Expr: it.Expr, Descending: it.Descending}
	}
	return keys
}

func hasAggregation(items []ast.ProjectionItem) bool {
	for _, item := range items {
		if containsAggCall(item.Expr) {
			return true
		}
	}
	return false
}

var aggFuncNames = map[string]bool{"count": true, "sum": true, "avg": true, "min": true, "max": true, "collect": true}

func containsAggCall(e ast.Expr) bool {
	switch n := e.(type) {
	case *ast.FunctionCall:
		if aggFuncNames[n.Name] {
			return true
		}
		for _, a := range n.Args {
			if containsAggCall(a) {
				return true
			}
		}
	case *ast.BinaryOp:
		return containsAggCall(n.Left) || containsAggCall(n.Right)
	case *ast.UnaryOp:
		return containsAggCall(n.Operand)
	}
	return false
}

func buildAggregate(input Op, items []ast.ProjectionItem) Op {
	agg := &Aggregate{Input: input}
	for _, item := range items {
		name := item.Alias
		if name == "" {
			name = displayName(item.Expr)
		}
		if call, ok := item.Expr.(*ast.FunctionCall); ok && aggFuncNames[call.Name] {
			var arg ast.Expr
			if len(call.Args) > 0 {
				if v, ok := call.Args[0].(*ast.Variable); !ok || v.Name != "*" {
					arg = call.Args[0]
				}
			}
			agg.Aggregations = append(agg.Aggregations, AggColumn{Name: name, Func: call.Name, Arg: arg, Distinct: call.Distinct})
		} else {
			agg.GroupKeys = append(agg.GroupKeys, Column{Name: name, Expr: item.Expr})
		}
	}
	return agg
}
