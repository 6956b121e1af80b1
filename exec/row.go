// Package exec implements the volcano-style pull pipeline: a physical
// operator tree compiled from the planner's logical tree, an expression
// evaluator, and the aggregation/sort/distinct/union/unwind/merge operators
// spec §4.5 describes. Operators expose Open/Next/Close, with Next returning
// a nil row to signal end-of-stream, mirroring the open()/next()/close()
// capability set spec §9 calls out as a closed variant set.
package exec

import "github.com/hivellm/nexus/values"

// Row is a binding environment: the set of named values visible at a point
// in the pipeline (scan/expand-introduced variables plus projected
// aliases). Rows are passed by value-ish convention — callers that mutate a
// Row for the next stage should copy it first (see Row.Clone).
type Row map[string]values.Value

// Clone returns a shallow copy of r, safe for a downstream operator to
// extend with new bindings without mutating the row still held upstream
// (e.g. by a Sort buffer or an Apply outer loop).
func (r Row) Clone() Row {
	out := make(Row, len(r)+2)
	for k, v := range r {
		out[k] = v
	}
	return out
}
