package exec

import (
	"github.com/hivellm/nexus/nexuserr"
	"github.com/hivellm/nexus/planner"
)

// Compile translates a planner.Op tree into its physical Operator
// counterpart. The mapping is one logical node to one physical operator;
// there is no separate cost-based physical planning stage (spec §4 does
// not call for one).
func Compile(op planner.Op) (Operator, error) {
	if op == nil {
		return &seedOp{}, nil
	}
	switch n := op.(type) {
	case *planner.Scan:
		return newScanOp(n), nil
	case *planner.NodeByID:
		return newNodeByIDOp(n), nil
	case *planner.Expand:
		input, err := Compile(n.Input)
		if err != nil {
			return nil, err
		}
		if n.VarLength != nil {
			return newVarExpandOp(input, n), nil
		}
		return newExpandOp(input, n), nil
	case *planner.ExpandInto:
		input, err := Compile(n.Input)
		if err != nil {
			return nil, err
		}
		return newExpandIntoOp(input, n), nil
	case *planner.OptionalExpand:
		input, err := Compile(n.Input)
		if err != nil {
			return nil, err
		}
		return newOptionalExpandOp(input, n), nil
	case *planner.Filter:
		input, err := Compile(n.Input)
		if err != nil {
			return nil, err
		}
		return newFilterOp(input, n), nil
	case *planner.Project:
		input, err := Compile(n.Input)
		if err != nil {
			return nil, err
		}
		return newProjectOp(input, n), nil
	case *planner.Distinct:
		input, err := Compile(n.Input)
		if err != nil {
			return nil, err
		}
		return newDistinctOp(input), nil
	case *planner.Aggregate:
		input, err := Compile(n.Input)
		if err != nil {
			return nil, err
		}
		return newAggregateOp(input, n), nil
	case *planner.Sort:
		input, err := Compile(n.Input)
		if err != nil {
			return nil, err
		}
		return newSortOp(input, n), nil
	case *planner.Limit:
		input, err := Compile(n.Input)
		if err != nil {
			return nil, err
		}
		return newLimitOp(input, n), nil
	case *planner.Unwind:
		input, err := Compile(n.Input)
		if err != nil {
			return nil, err
		}
		return newUnwindOp(input, n), nil
	case *planner.Union:
		left, err := Compile(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := Compile(n.Right)
		if err != nil {
			return nil, err
		}
		return newUnionOp(left, right, n.PreserveDuplicates), nil
	case *planner.Apply:
		outer, err := Compile(n.Outer)
		if err != nil {
			return nil, err
		}
		inner, err := Compile(n.Inner)
		if err != nil {
			return nil, err
		}
		return newApplyOp(outer, inner), nil
	case *planner.Create:
		input, err := Compile(n.Input)
		if err != nil {
			return nil, err
		}
		return newCreateOp(input, n), nil
	case *planner.Merge:
		input, err := Compile(n.Input)
		if err != nil {
			return nil, err
		}
		return newMergeOp(input, n), nil
	case *planner.SetProperties:
		input, err := Compile(n.Input)
		if err != nil {
			return nil, err
		}
		return newSetPropertiesOp(input, n), nil
	case *planner.Delete:
		input, err := Compile(n.Input)
		if err != nil {
			return nil, err
		}
		return newDeleteOp(input, n), nil
	case *planner.Produce:
		input, err := Compile(n.Input)
		if err != nil {
			return nil, err
		}
		return newProduceOp(input, n), nil
	}
	return nil, nexuserr.New(nexuserr.CodeInternal, "unsupported plan node %T", op)
}

// Run drains a compiled operator tree into a flat row slice, honoring
// cooperative cancellation between rows.
func Run(rt *Runtime, root Operator) ([]Row, error) {
	if err := root.Open(rt); err != nil {
		return nil, err
	}
	defer root.Close(rt)
	var rows []Row
	for {
		if err := rt.CheckCancel(); err != nil {
			return nil, err
		}
		row, err := root.Next(rt)
		if err != nil {
			return nil, err
		}
		if row == nil {
			return rows, nil
		}
		rows = append(rows, row)
	}
}
