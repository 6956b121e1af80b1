package planner

import (
	"fmt"
	"strings"

	"github.com/hivellm/nexus/cypher/ast"
)

// Explain renders a plan tree as an indented, human-readable operator list,
// root operator first with each input listed below the operator that
// consumes it, one indent level deeper, the way the teacher's coordinator package renders
// a phase tree for its "describe workflow" debug command. It is read-only
// introspection: no operator is executed.
func Explain(op Op) string {
	var b strings.Builder
	explainNode(&b, op, 0)
	return b.String()
}

func explainNode(b *strings.Builder, op Op, depth int) {
	if op == nil {
		writeLine(b, depth, "EmptyRow")
		return
	}

	indent := depth
	switch n := op.(type) {
	case *Scan:
		label := n.Label
		if label == "" {
			label = "*"
		}
		writeLine(b, indent, fmt.Sprintf("Scan(%s:%s)", n.Variable, label))
	case *NodeByID:
		writeLine(b, indent, fmt.Sprintf("NodeByID(%s)", n.Variable))
	case *Expand:
		writeLine(b, indent, fmt.Sprintf("Expand(%s-[%s%s]->%s)", n.From, n.RelVar, varLengthSuffix(n.VarLength), n.ToVar))
		explainNode(b, n.Input, depth+1)
	case *ExpandInto:
		writeLine(b, indent, fmt.Sprintf("ExpandInto(%s-[%s]->%s)", n.From, n.RelVar, n.To))
		explainNode(b, n.Input, depth+1)
	case *OptionalExpand:
		writeLine(b, indent, fmt.Sprintf("OptionalExpand(%s-[%s]->%s)", n.From, n.RelVar, n.ToVar))
		explainNode(b, n.Input, depth+1)
	case *Filter:
		writeLine(b, indent, "Filter")
		explainNode(b, n.Input, depth+1)
	case *Project:
		names := make([]string, len(n.Columns))
		for i, c := range n.Columns {
			names[i] = c.Name
		}
		writeLine(b, indent, fmt.Sprintf("Project(%s)", strings.Join(names, ", ")))
		explainNode(b, n.Input, depth+1)
	case *Distinct:
		writeLine(b, indent, "Distinct")
		explainNode(b, n.Input, depth+1)
	case *Aggregate:
		writeLine(b, indent, "Aggregate")
		explainNode(b, n.Input, depth+1)
	case *Sort:
		writeLine(b, indent, "Sort")
		explainNode(b, n.Input, depth+1)
	case *Limit:
		writeLine(b, indent, "Limit")
		explainNode(b, n.Input, depth+1)
	case *Unwind:
		writeLine(b, indent, fmt.Sprintf("Unwind(%s)", n.Alias))
		explainNode(b, n.Input, depth+1)
	case *Union:
		op := "Union"
		if n.PreserveDuplicates {
			op = "UnionAll"
		}
		writeLine(b, indent, op)
		explainNode(b, n.Left, depth+1)
		explainNode(b, n.Right, depth+1)
	case *Apply:
		writeLine(b, indent, "Apply")
		explainNode(b, n.Outer, depth+1)
		explainNode(b, n.Inner, depth+1)
	case *Create:
		writeLine(b, indent, "Create")
		explainNode(b, n.Input, depth+1)
	case *Merge:
		writeLine(b, indent, "Merge")
		explainNode(b, n.Input, depth+1)
	case *SetProperties:
		op := "SetProperties"
		if n.Remove {
			op = "RemoveProperties"
		}
		writeLine(b, indent, op)
		explainNode(b, n.Input, depth+1)
	case *Delete:
		op := "Delete"
		if n.Detach {
			op = "DetachDelete"
		}
		writeLine(b, indent, op)
		explainNode(b, n.Input, depth+1)
	case *Produce:
		writeLine(b, indent, fmt.Sprintf("Produce(%s)", strings.Join(n.Columns, ", ")))
		explainNode(b, n.Input, depth+1)
	default:
		writeLine(b, indent, fmt.Sprintf("%T", op))
	}
}

func writeLine(b *strings.Builder, depth int, text string) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(text)
	b.WriteByte('\n')
}

// varLengthSuffix renders a `*min..max` annotation for EXPLAIN output, or
// "" for a fixed-length (single-hop) relationship.
func varLengthSuffix(vl *ast.VarLength) string {
	if vl == nil {
		return ""
	}
	min, max := "", ""
	if vl.Min != nil {
		min = fmt.Sprintf("%d", *vl.Min)
	}
	if vl.Max != nil {
		max = fmt.Sprintf("%d", *vl.Max)
	}
	return fmt.Sprintf("*%s..%s", min, max)
}
