// Package planner translates a parsed, semantically-checked query into a
// tree of logical operators and applies the rewrite rules from spec §4.4.
// The operator set is a closed sum of node types, following the "tagged
// variant, not an interface hierarchy per operator" guidance the runtime
// value design already establishes for the engine (spec §9).
package planner

import "github.com/hivellm/nexus/cypher/ast"

// Op is the interface every logical/physical plan node implements. It
// exists to give the tree a common element type; dispatch is via type
// switch in the planner and executor, not virtual methods.
type Op interface{ op() }

type baseOp struct{}

func (baseOp) op() {}

// Scan enumerates node ids in ascending id order, applying an inline label and
// optional property-equality filter before yielding (spec §4.5).
type Scan struct {
	baseOp
	Variable   string
	Label      string // "" means unlabeled scan
	PropFilter map[string]ast.Expr // pushed-down property-equality filters
}

// NodeByID looks up a single node by a literal/parameter id expression.
type NodeByID struct {
	baseOp
	Variable string
	IDExpr   ast.Expr
}

// Expand walks the From binding's relationship chain in Direction, filtered
// by Types, producing (bound..., RelVar, ToVar) rows.
type Expand struct {
	baseOp
	Input     Op
	From      string
	RelVar    string
	ToVar     string
	Direction ast.RelDirection
	Types     []string
	VarLength *ast.VarLength
}

// ExpandInto is the rewritten form of Expand when both endpoints are
// already bound: it verifies a connecting relationship exists rather than
// enumerating the chain from scratch (spec §4.4's rewrite rule).
type ExpandInto struct {
	baseOp
	Input     Op
	From      string
	To        string
	RelVar    string
	Direction ast.RelDirection
	Types     []string
}

// OptionalExpand behaves like Expand but emits one all-Null row per input
// row that would otherwise produce zero rows (spec §4.5).
type OptionalExpand struct {
	baseOp
	Input     Op
	From      string
	RelVar    string
	ToVar     string
	Direction ast.RelDirection
	Types     []string
}

// Filter evaluates Predicate per input row; Null predicates exclude the row.
type Filter struct {
	baseOp
	Input     Op
	Predicate ast.Expr
}

// Project evaluates a list of named expressions per input row.
type Project struct {
	baseOp
	Input   Op
	Columns []Column
}

// Column names one projected expression.
type Column struct {
	Name string
	Expr ast.Expr
}

// Distinct deduplicates the full row tuple.
type Distinct struct {
	baseOp
	Input Op
}

// Aggregate groups by GroupKeys and computes Aggregations per group.
type Aggregate struct {
	baseOp
	Input        Op
	GroupKeys    []Column
	Aggregations []AggColumn
}

// AggColumn is one aggregation output slot.
type AggColumn struct {
	Name     string
	Func     string // count, sum, avg, min, max, collect
	Arg      ast.Expr // nil for count(*)
	Distinct bool
}

// SortKey is one ORDER BY key.
type SortKey struct {
	Expr       ast.Expr
	Descending bool
}

// Sort fully materializes input and orders it by Keys, stable on ties.
type Sort struct {
	baseOp
	Input Op
	Keys  []SortKey
}

// Limit applies Skip then Limit to the input stream.
type Limit struct {
	baseOp
	Input Op
	Skip  ast.Expr
	Limit ast.Expr
}

// Unwind expands ListExpr into one row per element, binding Alias.
type Unwind struct {
	baseOp
	Input    Op
	ListExpr ast.Expr
	Alias    string
}

// Union combines Left and Right; PreserveDuplicates is true for UNION ALL.
type Union struct {
	baseOp
	Left               Op
	Right              Op
	PreserveDuplicates bool
}

// Apply runs Inner once per row of Outer, correlating on already-bound
// variables (built when a pattern part starts a fresh Scan after earlier
// clauses or pattern parts have already produced rows).
type Apply struct {
	baseOp
	Outer Op
	Inner Op
}

// Create creates nodes/relationships per Patterns for each input row.
type Create struct {
	baseOp
	Input    Op
	Patterns []ast.PatternPart
}

// Merge probes for Pattern and runs OnCreate or OnMatch accordingly.
type Merge struct {
	baseOp
	Input    Op
	Pattern  ast.PatternPart
	OnCreate []ast.SetItem
	OnMatch  []ast.SetItem
}

// SetProperties mutates property chains (and label add/remove) per Items.
type SetProperties struct {
	baseOp
	Input Op
	Items []ast.SetItem
	// Remove distinguishes a REMOVE clause (property/label removal) from a
	// SET clause (property/label assignment) using the same Items shape.
	Remove bool
}

// Delete frees the entities named by Vars; Detach removes incident
// relationships first.
type Delete struct {
	baseOp
	Input  Op
	Vars   []ast.Expr
	Detach bool
}

// Produce is the terminal operator materializing named output columns,
// matching the session's execute() column contract (spec §6).
type Produce struct {
	baseOp
	Input   Op
	Columns []string
}
