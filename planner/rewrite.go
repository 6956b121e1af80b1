package planner

import "github.com/hivellm/nexus/cypher/ast"

// Rewrite applies the design-level rewrite rules from spec §4.4:
// fusing adjacent Project operators and eliminating a Distinct that sits
// directly over an already-grouped Aggregate. The driving-side selection and
// ExpandInto lowering happen during Build itself, where bound-variable state
// is naturally available.
func Rewrite(root Op) Op {
	return rewriteOp(root)
}

func rewriteOp(op Op) Op {
	switch n := op.(type) {
	case *Project:
		n.Input = rewriteOp(n.Input)
		if inner, ok := n.Input.(*Project); ok {
			return rewriteOp(&Project{Input: inner.Input, Columns: fuseColumns(inner.Columns, n.Columns)})
		}
		return n
	case *Distinct:
		n.Input = rewriteOp(n.Input)
		if _, ok := n.Input.(*Aggregate); ok {
			// Aggregate output rows are already one-per-group; a Distinct
			// directly above it is redundant (spec §4.4).
			return n.Input
		}
		return n
	case *Filter:
		n.Input = rewriteOp(n.Input)
		return n
	case *Expand:
		n.Input = rewriteOp(n.Input)
		return n
	case *ExpandInto:
		n.Input = rewriteOp(n.Input)
		return n
	case *OptionalExpand:
		n.Input = rewriteOp(n.Input)
		return n
	case *Aggregate:
		n.Input = rewriteOp(n.Input)
		return n
	case *Sort:
		n.Input = rewriteOp(n.Input)
		return n
	case *Limit:
		n.Input = rewriteOp(n.Input)
		return n
	case *Unwind:
		n.Input = rewriteOp(n.Input)
		return n
	case *Union:
		n.Left = rewriteOp(n.Left)
		n.Right = rewriteOp(n.Right)
		return n
	case *Apply:
		n.Outer = rewriteOp(n.Outer)
		n.Inner = rewriteOp(n.Inner)
		return n
	case *Create:
		n.Input = rewriteOp(n.Input)
		return n
	case *Merge:
		n.Input = rewriteOp(n.Input)
		return n
	case *SetProperties:
		n.Input = rewriteOp(n.Input)
		return n
	case *Delete:
		n.Input = rewriteOp(n.Input)
		return n
	case *Produce:
		n.Input = rewriteOp(n.Input)
		return n
	}
	return op
}

// fuseColumns rewrites the outer projection's expressions to reference the
// inner projection's expressions directly, eliminating the inner Project.
// Only simple variable references into the inner projection are substituted;
// anything else is left referencing the (still present) inner binding name,
// which remains valid since Columns retain their names.
func fuseColumns(inner, outer []Column) []Column {
	byName := map[string]ast.Expr{}
	for _, c := range inner {
		byName[c.Name] = c.Expr
	}
	fused := make([]Column, len(outer))
	for i, c := range outer {
		fused[i] = Column{Name: c.Name, Expr: substituteVars(c.Expr, byName)}
	}
	return fused
}

func substituteVars(e ast.Expr, byName map[string]ast.Expr) ast.Expr {
	switch n := e.(type) {
	case *ast.Variable:
		if repl, ok := byName[n.Name]; ok {
			return repl
		}
		return n
	case *ast.PropertyAccess:
		return &ast.PropertyAccess{Target: substituteVars(n.Target, byName), Key: n.Key}
	case *ast.BinaryOp:
		return &ast.BinaryOp{Op: n.Op, Left: substituteVars(n.Left, byName), Right: substituteVars(n.Right, byName)}
	case *ast.UnaryOp:
		return &ast.UnaryOp{Op: n.Op, Operand: substituteVars(n.Operand, byName)}
	case *ast.FunctionCall:
		args := make([]ast.Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = substituteVars(a, byName)
		}
		return &ast.FunctionCall{Name: n.Name, Args: args, Distinct: n.Distinct}
	default:
		return e
	}
}
