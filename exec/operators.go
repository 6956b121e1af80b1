package exec

import (
	"sort"

	"github.com/hivellm/nexus/catalog"
	"github.com/hivellm/nexus/cypher/ast"
	"github.com/hivellm/nexus/nexuserr"
	"github.com/hivellm/nexus/planner"
	"github.com/hivellm/nexus/store"
	"github.com/hivellm/nexus/values"
)

// Operator is the physical counterpart to planner.Op: a pull-based,
// volcano-model iterator. Next returns a nil Row (and nil error) to signal
// end-of-stream, matching Row's own doc comment on the contract.
type Operator interface {
	Open(rt *Runtime) error
	Next(rt *Runtime) (Row, error)
	Close(rt *Runtime) error
}

// seedOp yields exactly one empty row, then end-of-stream. It is the
// source operator for a clause chain with no preceding MATCH/UNWIND (e.g.
// a query that starts with CREATE or a standalone RETURN 1).
type seedOp struct{ done bool }

func (o *seedOp) Open(rt *Runtime) error { o.done = false; return nil }

func (o *seedOp) Next(rt *Runtime) (Row, error) {
	if o.done {
		return nil, nil
	}
	o.done = true
	return Row{}, nil
}

func (o *seedOp) Close(rt *Runtime) error { return nil }

// scanOp enumerates node ids in allocation order, applying the pushed-down
// label and property-equality filters inline (spec §4.5).
type scanOp struct {
	variable   string
	label      string
	propFilter map[string]ast.Expr
	ids        []uint64
	pos        int
}

func newScanOp(n *planner.Scan) *scanOp {
	return &scanOp{variable: n.Variable, label: n.Label, propFilter: n.PropFilter}
}

func (o *scanOp) Open(rt *Runtime) error {
	o.ids = rt.Store.AllNodeIDs()
	o.pos = 0
	return nil
}

func (o *scanOp) Next(rt *Runtime) (Row, error) {
	for {
		if err := rt.CheckCancel(); err != nil {
			return nil, err
		}
		if o.pos >= len(o.ids) {
			return nil, nil
		}
		id := o.ids[o.pos]
		o.pos++
		view, err := rt.Store.GetNode(id)
		if err != nil {
			continue // concurrently deleted since AllNodeIDs() snapshot
		}
		if o.label != "" {
			labelID, ok := rt.Catalog.LookupLabel(o.label)
			if !ok || !rt.Store.HasLabel(id, labelID) {
				continue
			}
		}
		row := Row{o.variable: values.Node(id)}
		if len(o.propFilter) > 0 {
			match, err := matchPropFilter(rt, row, view, o.propFilter)
			if err != nil {
				return nil, err
			}
			if !match {
				continue
			}
		}
		return row, nil
	}
}

func (o *scanOp) Close(rt *Runtime) error { return nil }

func matchPropFilter(rt *Runtime, row Row, view *store.NodeView, filter map[string]ast.Expr) (bool, error) {
	for propName, expr := range filter {
		want, err := Eval(rt, row, expr)
		if err != nil {
			return false, err
		}
		keyID, ok := rt.Catalog.LookupPropKey(propName)
		if !ok {
			return false, nil
		}
		got, ok := view.Props[keyID]
		if !ok {
			return false, nil
		}
		if !values.Equal(got, want) {
			return false, nil
		}
	}
	return true, nil
}

// nodeByIDOp looks up a single node by a literal/parameter id expression.
type nodeByIDOp struct {
	variable string
	idExpr   ast.Expr
	done     bool
}

func newNodeByIDOp(n *planner.NodeByID) *nodeByIDOp {
	return &nodeByIDOp{variable: n.Variable, idExpr: n.IDExpr}
}

func (o *nodeByIDOp) Open(rt *Runtime) error { o.done = false; return nil }

func (o *nodeByIDOp) Next(rt *Runtime) (Row, error) {
	if o.done {
		return nil, nil
	}
	o.done = true
	v, err := Eval(rt, Row{}, o.idExpr)
	if err != nil {
		return nil, err
	}
	id, ok := v.AsInt()
	if !ok || id < 0 || !rt.Store.NodeExists(uint64(id)) {
		return nil, nil
	}
	return Row{o.variable: values.Node(uint64(id))}, nil
}

func (o *nodeByIDOp) Close(rt *Runtime) error { return nil }

// expandOp walks the From binding's relationship chain, producing one row
// per matching (relationship, endpoint) pair per input row.
type expandOp struct {
	input     Operator
	from      string
	relVar    string
	toVar     string
	direction ast.RelDirection
	types     []string
	cur       Row
	pending   []uint64
	ppos      int
}

func newExpandOp(input Operator, n *planner.Expand) *expandOp {
	return &expandOp{input: input, from: n.From, relVar: n.RelVar, toVar: n.ToVar, direction: n.Direction, types: n.Types}
}

func storeDirection(d ast.RelDirection) store.Direction {
	switch d {
	case ast.DirLeft:
		return store.Incoming
	case ast.DirEither:
		return store.Both
	default:
		return store.Outgoing
	}
}

func (o *expandOp) Open(rt *Runtime) error { return o.input.Open(rt) }

// typeIDFilter builds an IterRelsOf predicate over the interned type ids
// matching o.types, or nil (no filter) when o.types is empty.
func typeIDFilter(rt *Runtime, types []string) func(catalog.ID) bool {
	if len(types) == 0 {
		return nil
	}
	allowed := map[catalog.ID]bool{}
	for _, t := range types {
		if id, ok := rt.Catalog.LookupRelType(t); ok {
			allowed[id] = true
		}
	}
	return func(id catalog.ID) bool { return allowed[id] }
}

// collectExpandIDs enumerates the relationship ids incident to fromID in
// dir, filtered by type. Under an undirected (DirEither) pattern, only
// relationships stored with fromID as their source are kept: decision
// §13.1 pins undirected matches to exactly one row per relationship
// rather than one per endpoint.
func collectExpandIDs(rt *Runtime, fromID uint64, dir ast.RelDirection, types []string) []uint64 {
	var ids []uint64
	rt.Store.IterRelsOf(fromID, storeDirection(dir), typeIDFilter(rt, types), func(relID uint64) {
		if dir == ast.DirEither {
			rel, err := rt.Store.GetRel(relID)
			if err != nil || rel.Src != fromID {
				return
			}
		}
		ids = append(ids, relID)
	})
	return ids
}

func (o *expandOp) Next(rt *Runtime) (Row, error) {
	for {
		if err := rt.CheckCancel(); err != nil {
			return nil, err
		}
		for o.ppos < len(o.pending) {
			relID := o.pending[o.ppos]
			o.ppos++
			rel, err := rt.Store.GetRel(relID)
			if err != nil {
				continue
			}
			fromID, _ := o.cur[o.from].AsEntityID()
			toID := rel.Dst
			if rel.Src != fromID {
				toID = rel.Src
			}
			out := o.cur.Clone()
			if o.relVar != "" {
				out[o.relVar] = values.Relationship(relID)
			}
			if o.toVar != "" {
				out[o.toVar] = values.Node(toID)
			}
			return out, nil
		}
		row, err := o.input.Next(rt)
		if err != nil {
			return nil, err
		}
		if row == nil {
			return nil, nil
		}
		o.cur = row
		fromID, ok := row[o.from].AsEntityID()
		if !ok {
			o.pending = nil
			o.ppos = 0
			continue
		}
		o.pending = collectExpandIDs(rt, fromID, o.direction, o.types)
		o.ppos = 0
	}
}

func (o *expandOp) Close(rt *Runtime) error { return o.input.Close(rt) }

// defaultMaxVarLengthHops bounds a variable-length pattern whose `*min..`
// form leaves the upper end open. Spec §4.5/Open Questions leaves the
// representation of unbounded var-length traversal under-specified; this
// pins it to a depth that keeps breadth-first search terminating on cyclic
// graphs without needing a separate shortestPath-style operator.
const defaultMaxVarLengthHops = 15

// varExpandOp walks a variable-length relationship pattern (`*min..max`) via
// breadth-first search, producing one row per distinct path of length in
// [min,max] hops reached from the From binding. Unlike expandOp, the
// relationship variable (when named) binds to a values.Path spanning the
// whole walk rather than a single relationship, since a var-length match
// traverses a chain, not one edge.
type varExpandOp struct {
	input     Operator
	from      string
	relVar    string
	toVar     string
	direction ast.RelDirection
	types     []string
	min, max  int
	cur       Row
	pending   []varLengthHop
	ppos      int
}

type varLengthHop struct {
	nodeID uint64
	nodes  []uint64
	rels   []uint64
}

func newVarExpandOp(input Operator, n *planner.Expand) *varExpandOp {
	min := 1
	if n.VarLength.Min != nil {
		min = *n.VarLength.Min
	}
	if min < 0 {
		min = 0
	}
	max := defaultMaxVarLengthHops
	if n.VarLength.Max != nil {
		max = *n.VarLength.Max
	}
	if max < min {
		max = min
	}
	return &varExpandOp{input: input, from: n.From, relVar: n.RelVar, toVar: n.ToVar, direction: n.Direction, types: n.Types, min: min, max: max}
}

func (o *varExpandOp) Open(rt *Runtime) error { return o.input.Open(rt) }

func (o *varExpandOp) Next(rt *Runtime) (Row, error) {
	for {
		if err := rt.CheckCancel(); err != nil {
			return nil, err
		}
		for o.ppos < len(o.pending) {
			hop := o.pending[o.ppos]
			o.ppos++
			out := o.cur.Clone()
			if o.toVar != "" {
				out[o.toVar] = values.Node(hop.nodeID)
			}
			if o.relVar != "" {
				out[o.relVar] = values.PathValue(&values.Path{Nodes: hop.nodes, Rels: hop.rels})
			}
			return out, nil
		}
		row, err := o.input.Next(rt)
		if err != nil {
			return nil, err
		}
		if row == nil {
			return nil, nil
		}
		o.cur = row
		fromID, ok := row[o.from].AsEntityID()
		if !ok {
			o.pending = nil
			o.ppos = 0
			continue
		}
		o.pending = bfsVarLength(rt, fromID, o.direction, o.types, o.min, o.max)
		o.ppos = 0
	}
}

func (o *varExpandOp) Close(rt *Runtime) error { return o.input.Close(rt) }

// neighborRelIDs enumerates every relationship incident to nodeID in dir,
// filtered by type, with no further dedup. Unlike collectExpandIDs (which
// keeps only one scan-origin's view of an undirected edge to satisfy the
// one-row-per-relationship rule for a plain single-hop match), a
// breadth-first walk must be able to continue through an edge from either
// endpoint, so no such filter applies here.
func neighborRelIDs(rt *Runtime, nodeID uint64, dir ast.RelDirection, types []string) []uint64 {
	var ids []uint64
	rt.Store.IterRelsOf(nodeID, storeDirection(dir), typeIDFilter(rt, types), func(relID uint64) {
		ids = append(ids, relID)
	})
	return ids
}

// bfsVarLength enumerates every path of length in [min,max] hops reachable
// from fromID. A node already present earlier on the path currently being
// extended is never revisited, so cycles bound the walk instead of looping
// forever; this is the representation spec's Open Questions section leaves
// for the implementation to fix.
func bfsVarLength(rt *Runtime, fromID uint64, dir ast.RelDirection, types []string, min, max int) []varLengthHop {
	type frame struct {
		nodeID uint64
		nodes  []uint64
		rels   []uint64
		onPath map[uint64]bool
	}
	var out []varLengthHop
	queue := []frame{{nodeID: fromID, nodes: []uint64{fromID}, onPath: map[uint64]bool{fromID: true}}}
	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		depth := len(f.rels)
		if depth >= min {
			out = append(out, varLengthHop{nodeID: f.nodeID, nodes: f.nodes, rels: f.rels})
		}
		if depth >= max {
			continue
		}
		for _, relID := range neighborRelIDs(rt, f.nodeID, dir, types) {
			rel, err := rt.Store.GetRel(relID)
			if err != nil {
				continue
			}
			nextID := rel.Dst
			if rel.Src != f.nodeID {
				nextID = rel.Src
			}
			if f.onPath[nextID] {
				continue
			}
			nextOnPath := make(map[uint64]bool, len(f.onPath)+1)
			for k := range f.onPath {
				nextOnPath[k] = true
			}
			nextOnPath[nextID] = true
			queue = append(queue, frame{
				nodeID: nextID,
				nodes:  append(append([]uint64{}, f.nodes...), nextID),
				rels:   append(append([]uint64{}, f.rels...), relID),
				onPath: nextOnPath,
			})
		}
	}
	return out
}

// expandIntoOp verifies a connecting relationship exists between two
// already-bound endpoints, rather than enumerating the whole chain
// (the rewritten form of Expand per spec §4.4).
type expandIntoOp struct {
	input     Operator
	from, to  string
	relVar    string
	direction ast.RelDirection
	types     []string
	cur       Row
	pending   []uint64
	ppos      int
}

func newExpandIntoOp(input Operator, n *planner.ExpandInto) *expandIntoOp {
	return &expandIntoOp{input: input, from: n.From, to: n.To, relVar: n.RelVar, direction: n.Direction, types: n.Types}
}

func (o *expandIntoOp) Open(rt *Runtime) error { return o.input.Open(rt) }

func (o *expandIntoOp) Next(rt *Runtime) (Row, error) {
	for {
		if err := rt.CheckCancel(); err != nil {
			return nil, err
		}
		for o.ppos < len(o.pending) {
			relID := o.pending[o.ppos]
			o.ppos++
			toID, _ := o.cur[o.to].AsEntityID()
			fromID, _ := o.cur[o.from].AsEntityID()
			rel, err := rt.Store.GetRel(relID)
			if err != nil {
				continue
			}
			other := rel.Dst
			if rel.Src != fromID {
				other = rel.Src
			}
			if other != toID {
				continue
			}
			out := o.cur.Clone()
			if o.relVar != "" {
				out[o.relVar] = values.Relationship(relID)
			}
			return out, nil
		}
		row, err := o.input.Next(rt)
		if err != nil {
			return nil, err
		}
		if row == nil {
			return nil, nil
		}
		o.cur = row
		fromID, ok1 := row[o.from].AsEntityID()
		if !ok1 {
			o.pending = nil
			o.ppos = 0
			continue
		}
		var ids []uint64
		rt.Store.IterRelsOf(fromID, storeDirection(o.direction), typeIDFilter(rt, o.types), func(relID uint64) { ids = append(ids, relID) })
		o.pending = ids
		o.ppos = 0
	}
}

func (o *expandIntoOp) Close(rt *Runtime) error { return o.input.Close(rt) }

// optionalExpandOp behaves like expandOp but emits one all-Null row per
// input row that would otherwise contribute zero rows (OPTIONAL MATCH).
type optionalExpandOp struct {
	input     Operator
	from      string
	relVar    string
	toVar     string
	direction ast.RelDirection
	types     []string
	cur       Row
	pending   []uint64
	ppos      int
}

func newOptionalExpandOp(input Operator, n *planner.OptionalExpand) *optionalExpandOp {
	return &optionalExpandOp{input: input, from: n.From, relVar: n.RelVar, toVar: n.ToVar, direction: n.Direction, types: n.Types}
}

func (o *optionalExpandOp) Open(rt *Runtime) error { return o.input.Open(rt) }

func (o *optionalExpandOp) Next(rt *Runtime) (Row, error) {
	for {
		if err := rt.CheckCancel(); err != nil {
			return nil, err
		}
		if o.ppos < len(o.pending) {
			relID := o.pending[o.ppos]
			o.ppos++
			rel, err := rt.Store.GetRel(relID)
			if err != nil {
				continue
			}
			fromID, _ := o.cur[o.from].AsEntityID()
			toID := rel.Dst
			if rel.Src != fromID {
				toID = rel.Src
			}
			out := o.cur.Clone()
			if o.relVar != "" {
				out[o.relVar] = values.Relationship(relID)
			}
			if o.toVar != "" {
				out[o.toVar] = values.Node(toID)
			}
			return out, nil
		}
		row, err := o.input.Next(rt)
		if err != nil {
			return nil, err
		}
		if row == nil {
			return nil, nil
		}
		o.cur = row
		fromID, ok := row[o.from].AsEntityID()
		var ids []uint64
		if ok {
			ids = collectExpandIDs(rt, fromID, o.direction, o.types)
		}
		o.pending = ids
		o.ppos = 0
		if len(ids) == 0 {
			out := row.Clone()
			if o.relVar != "" {
				out[o.relVar] = values.Null
			}
			if o.toVar != "" {
				out[o.toVar] = values.Null
			}
			return out, nil
		}
	}
}

func (o *optionalExpandOp) Close(rt *Runtime) error { return o.input.Close(rt) }

// filterOp excludes rows whose predicate is not definitively true.
type filterOp struct {
	input     Operator
	predicate ast.Expr
}

func newFilterOp(input Operator, n *planner.Filter) *filterOp {
	return &filterOp{input: input, predicate: n.Predicate}
}

func (o *filterOp) Open(rt *Runtime) error { return o.input.Open(rt) }

func (o *filterOp) Next(rt *Runtime) (Row, error) {
	for {
		if err := rt.CheckCancel(); err != nil {
			return nil, err
		}
		row, err := o.input.Next(rt)
		if err != nil || row == nil {
			return row, err
		}
		v, err := Eval(rt, row, o.predicate)
		if err != nil {
			return nil, err
		}
		ok, isNull := v.IsTruthy()
		if !isNull && ok {
			return row, nil
		}
	}
}

func (o *filterOp) Close(rt *Runtime) error { return o.input.Close(rt) }

// projectOp evaluates a fixed set of named expressions per input row,
// replacing the row's binding environment with the projected columns.
type projectOp struct {
	input   Operator
	columns []planner.Column
}

func newProjectOp(input Operator, n *planner.Project) *projectOp {
	return &projectOp{input: input, columns: n.Columns}
}

func (o *projectOp) Open(rt *Runtime) error { return o.input.Open(rt) }

func (o *projectOp) Next(rt *Runtime) (Row, error) {
	row, err := o.input.Next(rt)
	if err != nil || row == nil {
		return row, err
	}
	out := make(Row, len(o.columns))
	for _, c := range o.columns {
		v, err := Eval(rt, row, c.Expr)
		if err != nil {
			return nil, err
		}
		out[c.Name] = v
	}
	return out, nil
}

func (o *projectOp) Close(rt *Runtime) error { return o.input.Close(rt) }

// distinctOp deduplicates full row tuples, materializing a seen-set keyed
// on a deterministic serialization of each row's values.
type distinctOp struct {
	input Operator
	seen  map[string]bool
}

func newDistinctOp(input Operator) *distinctOp { return &distinctOp{input: input} }

func (o *distinctOp) Open(rt *Runtime) error {
	o.seen = map[string]bool{}
	return o.input.Open(rt)
}

func (o *distinctOp) Next(rt *Runtime) (Row, error) {
	for {
		row, err := o.input.Next(rt)
		if err != nil || row == nil {
			return row, err
		}
		key := rowKey(row)
		if o.seen[key] {
			continue
		}
		o.seen[key] = true
		return row, nil
	}
}

func (o *distinctOp) Close(rt *Runtime) error { return o.input.Close(rt) }

func rowKey(row Row) string {
	names := make([]string, 0, len(row))
	for k := range row {
		names = append(names, k)
	}
	sort.Strings(names)
	key := ""
	for _, n := range names {
		key += n + "=" + values.HashKey(row[n]) + "|"
	}
	return key
}

// sortOp fully materializes the input and orders it by Keys, stable on ties
// (spec §4.5: NULLs sort last ascending, first descending).
type sortOp struct {
	input Operator
	keys  []planner.SortKey
	rows  []Row
	pos   int
}

func newSortOp(input Operator, n *planner.Sort) *sortOp {
	return &sortOp{input: input, keys: n.Keys}
}

func (o *sortOp) Open(rt *Runtime) error {
	if err := o.input.Open(rt); err != nil {
		return err
	}
	o.rows = nil
	for {
		row, err := o.input.Next(rt)
		if err != nil {
			return err
		}
		if row == nil {
			break
		}
		o.rows = append(o.rows, row)
	}
	vals := make([][]values.Value, len(o.rows))
	for i, row := range o.rows {
		vs := make([]values.Value, len(o.keys))
		for j, k := range o.keys {
			v, err := Eval(rt, row, k.Expr)
			if err != nil {
				return err
			}
			vs[j] = v
		}
		vals[i] = vs
	}
	idx := make([]int, len(o.rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return lessRows(vals[idx[a]], vals[idx[b]], o.keys)
	})
	sorted := make([]Row, len(o.rows))
	for i, id := range idx {
		sorted[i] = o.rows[id]
	}
	o.rows = sorted
	o.pos = 0
	return nil
}

func lessRows(a, b []values.Value, keys []planner.SortKey) bool {
	for i, k := range keys {
		av, bv := a[i], b[i]
		aNull, bNull := av.IsNull(), bv.IsNull()
		if aNull && bNull {
			continue
		}
		if aNull {
			return k.Descending
		}
		if bNull {
			return !k.Descending
		}
		cmp, ok := values.Compare(av, bv)
		if !ok || cmp == 0 {
			continue
		}
		if k.Descending {
			return cmp > 0
		}
		return cmp < 0
	}
	return false
}

func (o *sortOp) Next(rt *Runtime) (Row, error) {
	if o.pos >= len(o.rows) {
		return nil, nil
	}
	row := o.rows[o.pos]
	o.pos++
	return row, nil
}

func (o *sortOp) Close(rt *Runtime) error { return o.input.Close(rt) }

// limitOp applies Skip then Limit to the input stream.
type limitOp struct {
	input      Operator
	skipExpr   ast.Expr
	limitExpr  ast.Expr
	skip       int64
	limit      int64
	hasLimit   bool
	skipped    int64
	emitted    int64
}

func newLimitOp(input Operator, n *planner.Limit) *limitOp {
	return &limitOp{input: input, skipExpr: n.Skip, limitExpr: n.Limit}
}

func (o *limitOp) Open(rt *Runtime) error {
	o.skip = 0
	o.hasLimit = false
	o.skipped = 0
	o.emitted = 0
	if o.skipExpr != nil {
		v, err := Eval(rt, Row{}, o.skipExpr)
		if err != nil {
			return err
		}
		if n, ok := v.AsInt(); ok {
			o.skip = n
		}
	}
	if o.limitExpr != nil {
		v, err := Eval(rt, Row{}, o.limitExpr)
		if err != nil {
			return err
		}
		if n, ok := v.AsInt(); ok {
			o.limit = n
			o.hasLimit = true
		}
	}
	return o.input.Open(rt)
}

func (o *limitOp) Next(rt *Runtime) (Row, error) {
	if o.hasLimit && o.emitted >= o.limit {
		return nil, nil
	}
	for o.skipped < o.skip {
		row, err := o.input.Next(rt)
		if err != nil {
			return nil, err
		}
		if row == nil {
			return nil, nil
		}
		o.skipped++
	}
	row, err := o.input.Next(rt)
	if err != nil || row == nil {
		return row, err
	}
	o.emitted++
	return row, nil
}

func (o *limitOp) Close(rt *Runtime) error { return o.input.Close(rt) }

// unwindOp expands a list expression into one row per element; a Null list
// yields zero rows, a non-list scalar is a TYPE_ERROR (spec §4.5).
type unwindOp struct {
	input    Operator
	listExpr ast.Expr
	alias    string
	cur      Row
	items    []values.Value
	pos      int
	started  bool
}

func newUnwindOp(input Operator, n *planner.Unwind) *unwindOp {
	return &unwindOp{input: input, listExpr: n.ListExpr, alias: n.Alias}
}

func (o *unwindOp) Open(rt *Runtime) error { return o.input.Open(rt) }

func (o *unwindOp) Next(rt *Runtime) (Row, error) {
	for {
		if err := rt.CheckCancel(); err != nil {
			return nil, err
		}
		if o.pos < len(o.items) {
			v := o.items[o.pos]
			o.pos++
			out := o.cur.Clone()
			out[o.alias] = v
			return out, nil
		}
		row, err := o.input.Next(rt)
		if err != nil || row == nil {
			return row, err
		}
		o.cur = row
		v, err := Eval(rt, row, o.listExpr)
		if err != nil {
			return nil, err
		}
		if v.IsNull() {
			o.items = nil
			o.pos = 0
			continue
		}
		list, ok := v.AsList()
		if !ok {
			return nil, nexuserr.New(nexuserr.CodeType, "UNWIND requires a list expression")
		}
		o.items = list
		o.pos = 0
	}
}

func (o *unwindOp) Close(rt *Runtime) error { return o.input.Close(rt) }

// unionOp combines Left and Right; PreserveDuplicates is true for UNION ALL.
type unionOp struct {
	left, right        Operator
	preserveDuplicates bool
	onLeft             bool
	seen               map[string]bool
}

func newUnionOp(left, right Operator, preserveDuplicates bool) *unionOp {
	return &unionOp{left: left, right: right, preserveDuplicates: preserveDuplicates, onLeft: true}
}

func (o *unionOp) Open(rt *Runtime) error {
	if !o.preserveDuplicates {
		o.seen = map[string]bool{}
	}
	if err := o.left.Open(rt); err != nil {
		return err
	}
	return o.right.Open(rt)
}

func (o *unionOp) Next(rt *Runtime) (Row, error) {
	for {
		var row Row
		var err error
		if o.onLeft {
			row, err = o.left.Next(rt)
			if err != nil {
				return nil, err
			}
			if row == nil {
				o.onLeft = false
				continue
			}
		} else {
			row, err = o.right.Next(rt)
			if err != nil || row == nil {
				return row, err
			}
		}
		if o.seen != nil {
			key := rowKey(row)
			if o.seen[key] {
				continue
			}
			o.seen[key] = true
		}
		return row, nil
	}
}

func (o *unionOp) Close(rt *Runtime) error {
	if err := o.left.Close(rt); err != nil {
		return err
	}
	return o.right.Close(rt)
}

// applyOp runs Inner fully once per row of Outer, cross-joining each
// inner row's bindings onto the outer row (used to realize the comma-
// separated disjoint patterns within one MATCH as a cross join).
type applyOp struct {
	outer, inner Operator
	outerRow     Row
	started      bool
}

func newApplyOp(outer, inner Operator) *applyOp { return &applyOp{outer: outer, inner: inner} }

func (o *applyOp) Open(rt *Runtime) error { return o.outer.Open(rt) }

func (o *applyOp) Next(rt *Runtime) (Row, error) {
	for {
		if o.started {
			row, err := o.inner.Next(rt)
			if err != nil {
				return nil, err
			}
			if row != nil {
				out := o.outerRow.Clone()
				for k, v := range row {
					out[k] = v
				}
				return out, nil
			}
			if err := o.inner.Close(rt); err != nil {
				return nil, err
			}
			o.started = false
		}
		outerRow, err := o.outer.Next(rt)
		if err != nil || outerRow == nil {
			return nil, err
		}
		o.outerRow = outerRow
		if err := o.inner.Open(rt); err != nil {
			return nil, err
		}
		o.started = true
	}
}

func (o *applyOp) Close(rt *Runtime) error {
	if o.started {
		if err := o.inner.Close(rt); err != nil {
			return err
		}
	}
	return o.outer.Close(rt)
}

// aggregateOp groups by GroupKeys and computes Aggregations per group,
// fully materializing the input (spec §4.5's count/sum/avg/min/max/collect).
type aggregateOp struct {
	input        Operator
	groupKeys    []planner.Column
	aggregations []planner.AggColumn
	groups       []Row
	pos          int
}

func newAggregateOp(input Operator, n *planner.Aggregate) *aggregateOp {
	return &aggregateOp{input: input, groupKeys: n.GroupKeys, aggregations: n.Aggregations}
}

type aggState struct {
	count      int64
	distinct   map[string]bool
	sum        float64
	sumIsFloat bool
	min, max   values.Value
	haveMinMax bool
	collected  []values.Value
}

func (o *aggregateOp) Open(rt *Runtime) error {
	if err := o.input.Open(rt); err != nil {
		return err
	}
	groupOrder := []string{}
	groupKeyVals := map[string][]values.Value{}
	states := map[string][]*aggState{}
	for {
		row, err := o.input.Next(rt)
		if err != nil {
			return err
		}
		if row == nil {
			break
		}
		keyVals := make([]values.Value, len(o.groupKeys))
		for i, c := range o.groupKeys {
			v, err := Eval(rt, row, c.Expr)
			if err != nil {
				return err
			}
			keyVals[i] = v
		}
		keyStr := ""
		for _, v := range keyVals {
			keyStr += values.HashKey(v) + "\x1f"
		}
		if _, ok := states[keyStr]; !ok {
			groupOrder = append(groupOrder, keyStr)
			groupKeyVals[keyStr] = keyVals
			sts := make([]*aggState, len(o.aggregations))
			for i := range sts {
				sts[i] = &aggState{distinct: map[string]bool{}}
			}
			states[keyStr] = sts
		}
		sts := states[keyStr]
		for i, a := range o.aggregations {
			var v values.Value
			if a.Arg != nil {
				v, err = Eval(rt, row, a.Arg)
				if err != nil {
					return err
				}
			}
			if err := accumulate(sts[i], a, v); err != nil {
				return err
			}
		}
	}
	o.groups = nil
	for _, keyStr := range groupOrder {
		out := Row{}
		for i, c := range o.groupKeys {
			out[c.Name] = groupKeyVals[keyStr][i]
		}
		for i, a := range o.aggregations {
			out[a.Name] = finalize(states[keyStr][i], a)
		}
		o.groups = append(o.groups, out)
	}
	if len(o.groupKeys) == 0 && len(o.groups) == 0 && len(o.aggregations) > 0 {
		out := Row{}
		for i, a := range o.aggregations {
			st := &aggState{distinct: map[string]bool{}}
			out[a.Name] = finalize(st, o.aggregations[i])
		}
		o.groups = append(o.groups, out)
	}
	o.pos = 0
	return nil
}

func accumulate(st *aggState, a planner.AggColumn, v values.Value) error {
	if a.Func != "count" && v.IsNull() {
		return nil
	}
	if a.Distinct {
		key := values.HashKey(v)
		if st.distinct[key] {
			return nil
		}
		st.distinct[key] = true
	}
	switch a.Func {
	case "count":
		if a.Arg == nil || !v.IsNull() {
			st.count++
		}
	case "sum", "avg":
		f, ok := v.AsFloat()
		if !ok {
			return nexuserr.New(nexuserr.CodeType, "%s() requires a numeric argument", a.Func)
		}
		if v.Kind != values.KindInt {
			st.sumIsFloat = true
		}
		st.sum += f
		st.count++
	case "min", "max":
		if !st.haveMinMax {
			st.min, st.max = v, v
			st.haveMinMax = true
			return nil
		}
		if cmp, ok := values.Compare(v, st.min); ok && cmp < 0 {
			st.min = v
		}
		if cmp, ok := values.Compare(v, st.max); ok && cmp > 0 {
			st.max = v
		}
	case "collect":
		st.collected = append(st.collected, v)
	default:
		return nexuserr.New(nexuserr.CodeSemantic, "unknown aggregate function %q", a.Func)
	}
	return nil
}

func finalize(st *aggState, a planner.AggColumn) values.Value {
	switch a.Func {
	case "count":
		return values.Int(st.count)
	case "sum":
		if st.count == 0 {
			return values.Int(0)
		}
		if st.sumIsFloat {
			return values.Float(st.sum)
		}
		return values.Int(int64(st.sum))
	case "avg":
		if st.count == 0 {
			return values.Null
		}
		return values.Float(st.sum / float64(st.count))
	case "min":
		if !st.haveMinMax {
			return values.Null
		}
		return st.min
	case "max":
		if !st.haveMinMax {
			return values.Null
		}
		return st.max
	case "collect":
		return values.List(st.collected)
	}
	return values.Null
}

func (o *aggregateOp) Next(rt *Runtime) (Row, error) {
	if o.pos >= len(o.groups) {
		return nil, nil
	}
	row := o.groups[o.pos]
	o.pos++
	return row, nil
}

func (o *aggregateOp) Close(rt *Runtime) error { return o.input.Close(rt) }

// evalPropertyMap evaluates a NodePattern/RelPattern's property map literal
// into the PropInit slice AllocNode/AllocRel expect.
func evalPropertyMap(rt *Runtime, row Row, m *ast.MapLiteral) ([]store.PropInit, error) {
	if m == nil {
		return nil, nil
	}
	out := make([]store.PropInit, len(m.Keys))
	for i, k := range m.Keys {
		v, err := Eval(rt, row, m.Values[i])
		if err != nil {
			return nil, err
		}
		keyID, err := rt.Catalog.InternPropKey(k)
		if err != nil {
			return nil, err
		}
		out[i] = store.PropInit{Key: keyID, Value: v}
	}
	return out, nil
}

// createOp materializes Patterns into the store for each input row,
// binding newly-created node/relationship variables (spec §4.5 CREATE).
type createOp struct {
	input    Operator
	patterns []ast.PatternPart
}

func newCreateOp(input Operator, n *planner.Create) *createOp {
	return &createOp{input: input, patterns: n.Patterns}
}

func (o *createOp) Open(rt *Runtime) error { return o.input.Open(rt) }

func (o *createOp) Next(rt *Runtime) (Row, error) {
	row, err := o.input.Next(rt)
	if err != nil || row == nil {
		return row, err
	}
	out := row.Clone()
	for _, part := range o.patterns {
		if err := createPattern(rt, out, part); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func createPattern(rt *Runtime, out Row, part ast.PatternPart) error {
	nodeIDs := make([]uint64, len(part.Nodes))
	for i, n := range part.Nodes {
		if n.Variable != "" {
			if existing, ok := out[n.Variable]; ok && existing.Kind == values.KindNode {
				id, _ := existing.AsEntityID()
				nodeIDs[i] = id
				continue
			}
		}
		labels := make([]catalog.ID, len(n.Labels))
		for j, l := range n.Labels {
			labelID, err := rt.Catalog.InternLabel(l)
			if err != nil {
				return err
			}
			labels[j] = labelID
		}
		props, err := evalPropertyMap(rt, out, n.Properties)
		if err != nil {
			return err
		}
		id := rt.Store.AllocNode(labels, props)
		rt.Stats.NodesCreated++
		rt.Stats.PropertiesSet += len(props)
		nodeIDs[i] = id
		if n.Variable != "" {
			out[n.Variable] = values.Node(id)
		}
	}
	for i, r := range part.Rels {
		src, dst := nodeIDs[i], nodeIDs[i+1]
		if r.Direction == ast.DirLeft {
			src, dst = dst, src
		}
		typeName := "RELATED_TO"
		if len(r.Types) > 0 {
			typeName = r.Types[0]
		}
		typeID, err := rt.Catalog.InternRelType(typeName)
		if err != nil {
			return err
		}
		props, err := evalPropertyMap(rt, out, r.Properties)
		if err != nil {
			return err
		}
		relID := rt.Store.AllocRel(typeID, src, dst, props)
		rt.Stats.RelationshipsCreated++
		rt.Stats.PropertiesSet += len(props)
		if r.Variable != "" {
			out[r.Variable] = values.Relationship(relID)
		}
	}
	return nil
}

func (o *createOp) Close(rt *Runtime) error { return o.input.Close(rt) }

// mergeOp probes for Pattern and runs OnCreate/OnMatch accordingly. Probing
// is exact for single-node patterns and single-hop relationship patterns
// between already-bound endpoints; any other shape is treated as
// not-found and created, matching MERGE's "exists across the whole
// pattern" semantics only for the patterns this engine can probe cheaply.
type mergeOp struct {
	input    Operator
	pattern  ast.PatternPart
	onCreate []ast.SetItem
	onMatch  []ast.SetItem
}

func newMergeOp(input Operator, n *planner.Merge) *mergeOp {
	return &mergeOp{input: input, pattern: n.Pattern, onCreate: n.OnCreate, onMatch: n.OnMatch}
}

func (o *mergeOp) Open(rt *Runtime) error { return o.input.Open(rt) }

func (o *mergeOp) Next(rt *Runtime) (Row, error) {
	row, err := o.input.Next(rt)
	if err != nil || row == nil {
		return row, err
	}
	out := row.Clone()
	matched, err := probeMerge(rt, out, o.pattern)
	if err != nil {
		return nil, err
	}
	if matched {
		if err := applySetItems(rt, out, o.onMatch); err != nil {
			return nil, err
		}
	} else {
		if err := createPattern(rt, out, o.pattern); err != nil {
			return nil, err
		}
		if err := applySetItems(rt, out, o.onCreate); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func probeMerge(rt *Runtime, out Row, part ast.PatternPart) (bool, error) {
	if len(part.Nodes) == 1 && len(part.Rels) == 0 {
		n := part.Nodes[0]
		var labelID catalog.ID
		var hasLabel bool
		if len(n.Labels) > 0 {
			labelID, hasLabel = rt.Catalog.LookupLabel(n.Labels[0])
			if !hasLabel {
				return false, nil
			}
		}
		for _, id := range rt.Store.AllNodeIDs() {
			if hasLabel && !rt.Store.HasLabel(id, labelID) {
				continue
			}
			view, err := rt.Store.GetNode(id)
			if err != nil {
				continue
			}
			if n.Properties != nil {
				filter := map[string]ast.Expr{}
				for i, k := range n.Properties.Keys {
					filter[k] = n.Properties.Values[i]
				}
				ok, err := matchPropFilter(rt, out, view, filter)
				if err != nil {
					return false, err
				}
				if !ok {
					continue
				}
			}
			if n.Variable != "" {
				out[n.Variable] = values.Node(id)
			}
			return true, nil
		}
		return false, nil
	}
	if len(part.Nodes) == 2 && len(part.Rels) == 1 {
		a, b := part.Nodes[0], part.Nodes[1]
		aID, aOK := out[a.Variable].AsEntityID()
		bID, bOK := out[b.Variable].AsEntityID()
		if aOK && bOK {
			r := part.Rels[0]
			found := false
			rt.Store.IterRelsOf(aID, storeDirection(r.Direction), typeIDFilter(rt, r.Types), func(relID uint64) {
				if found {
					return
				}
				rel, err := rt.Store.GetRel(relID)
				if err != nil {
					return
				}
				other := rel.Dst
				if rel.Src != aID {
					other = rel.Src
				}
				if other == bID {
					found = true
					if r.Variable != "" {
						out[r.Variable] = values.Relationship(relID)
					}
				}
			})
			return found, nil
		}
	}
	return false, nil
}

func applySetItems(rt *Runtime, row Row, items []ast.SetItem) error {
	for _, item := range items {
		if err := applySetItem(rt, row, item, false); err != nil {
			return err
		}
	}
	return nil
}

func (o *mergeOp) Close(rt *Runtime) error { return o.input.Close(rt) }

// setPropertiesOp mutates property chains and label add/remove per Items,
// shared between SET and REMOVE (Remove distinguishes the two).
type setPropertiesOp struct {
	input  Operator
	items  []ast.SetItem
	remove bool
}

func newSetPropertiesOp(input Operator, n *planner.SetProperties) *setPropertiesOp {
	return &setPropertiesOp{input: input, items: n.Items, remove: n.Remove}
}

func (o *setPropertiesOp) Open(rt *Runtime) error { return o.input.Open(rt) }

func (o *setPropertiesOp) Next(rt *Runtime) (Row, error) {
	row, err := o.input.Next(rt)
	if err != nil || row == nil {
		return row, err
	}
	out := row.Clone()
	for _, item := range o.items {
		if err := applySetItem(rt, out, item, o.remove); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func applySetItem(rt *Runtime, row Row, item ast.SetItem, remove bool) error {
	target, ok := row[item.Variable]
	if !ok {
		return nexuserr.New(nexuserr.CodeSemantic, "SET/REMOVE references unbound variable %q", item.Variable)
	}
	id, ok := target.AsEntityID()
	if !ok {
		return nexuserr.New(nexuserr.CodeType, "SET/REMOVE target %q is not a node or relationship", item.Variable)
	}
	isNode := target.Kind == values.KindNode
	if item.Label != "" {
		labelID, err := rt.Catalog.InternLabel(item.Label)
		if err != nil {
			return err
		}
		if remove {
			return rt.Store.RemoveLabel(id, labelID)
		}
		return rt.Store.AddLabel(id, labelID)
	}
	keyID, err := rt.Catalog.InternPropKey(item.Property)
	if err != nil {
		return err
	}
	if remove {
		if isNode {
			return rt.Store.RemovePropNode(id, keyID)
		}
		return rt.Store.RemovePropRel(id, keyID)
	}
	v, err := Eval(rt, row, item.Value)
	if err != nil {
		return err
	}
	rt.Stats.PropertiesSet++
	if isNode {
		return rt.Store.SetPropNode(id, keyID, v)
	}
	return rt.Store.SetPropRel(id, keyID, v)
}

func (o *setPropertiesOp) Close(rt *Runtime) error { return o.input.Close(rt) }

// deleteOp frees the entities named by Vars; Detach removes incident
// relationships first instead of erroring on nonzero degree.
type deleteOp struct {
	input  Operator
	vars   []ast.Expr
	detach bool
}

func newDeleteOp(input Operator, n *planner.Delete) *deleteOp {
	return &deleteOp{input: input, vars: n.Vars, detach: n.Detach}
}

func (o *deleteOp) Open(rt *Runtime) error { return o.input.Open(rt) }

func (o *deleteOp) Next(rt *Runtime) (Row, error) {
	row, err := o.input.Next(rt)
	if err != nil || row == nil {
		return row, err
	}
	for _, expr := range o.vars {
		v, err := Eval(rt, row, expr)
		if err != nil {
			return nil, err
		}
		if v.IsNull() {
			continue
		}
		id, ok := v.AsEntityID()
		if !ok {
			return nil, nexuserr.New(nexuserr.CodeType, "DELETE target is not a node or relationship")
		}
		if v.Kind == values.KindRelationship {
			if err := rt.Store.DeleteRel(id); err != nil {
				return nil, err
			}
			rt.Stats.RelationshipsDeleted++
			continue
		}
		if err := rt.Store.DeleteNode(id, o.detach); err != nil {
			return nil, err
		}
		rt.Stats.NodesDeleted++
	}
	return row, nil
}

func (o *deleteOp) Close(rt *Runtime) error { return o.input.Close(rt) }

// produceOp is the terminal operator selecting the named output columns
// (spec §6's QueryResult.columns contract).
type produceOp struct {
	input   Operator
	columns []string
}

func newProduceOp(input Operator, n *planner.Produce) *produceOp {
	return &produceOp{input: input, columns: n.Columns}
}

func (o *produceOp) Open(rt *Runtime) error { return o.input.Open(rt) }

func (o *produceOp) Next(rt *Runtime) (Row, error) {
	row, err := o.input.Next(rt)
	if err != nil || row == nil {
		return row, err
	}
	if o.columns == nil {
		return row, nil
	}
	out := make(Row, len(o.columns))
	for _, c := range o.columns {
		out[c] = row[c]
	}
	return out, nil
}

func (o *produceOp) Close(rt *Runtime) error { return o.input.Close(rt) }
