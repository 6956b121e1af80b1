// Package semantic resolves variable scope across a parsed query: every
// reference must bind to a clause that introduces it, writes may not
// reference variables only bound in a later clause, and unknown variables
// are rejected before planning begins (spec §4.3).
package semantic

import (
	"github.com/hivellm/nexus/cypher/ast"
	"github.com/hivellm/nexus/nexuserr"
)

// Scope tracks which variable names are bound as clauses are processed
// left to right within a single query.
type Scope struct {
	bound map[string]bool
}

func newScope() *Scope { return &Scope{bound: map[string]bool{}} }

func (s *Scope) bind(name string) {
	if name != "" {
		s.bound[name] = true
	}
}

func (s *Scope) has(name string) bool { return s.bound[name] }

// Analyze walks q clause by clause, binding pattern/alias variables as it
// goes and rejecting references to names not yet bound. It returns a
// SEMANTIC_ERROR-coded error on the first violation found.
func Analyze(q *ast.Query) error {
	if err := analyzeSingle(q.First); err != nil {
		return err
	}
	for _, u := range q.Unions {
		if err := analyzeSingle(u.Query); err != nil {
			return err
		}
	}
	return nil
}

func analyzeSingle(sq *ast.SingleQuery) error {
	scope := newScope()
	for _, c := range sq.Clauses {
		if err := analyzeClause(scope, c); err != nil {
			return err
		}
	}
	if sq.Return != nil {
		for _, item := range sq.Return.Items {
			if v, ok := item.Expr.(*ast.Variable); ok && v.Name == "*" {
				continue
			}
			if err := checkExpr(scope, item.Expr); err != nil {
				return err
			}
		}
		for _, item := range sq.Return.Items {
			scope.bind(item.Alias)
		}
		for _, o := range sq.Return.OrderBy {
			if err := checkExpr(scope, o.Expr); err != nil {
				return err
			}
		}
	}
	return nil
}

func analyzeClause(scope *Scope, c ast.Clause) error {
	switch n := c.(type) {
	case *ast.MatchClause:
		for _, part := range n.Patterns {
			bindPattern(scope, part)
		}
		if n.Where != nil {
			return checkExpr(scope, n.Where)
		}
		return nil
	case *ast.UnwindClause:
		if err := checkExpr(scope, n.Expr); err != nil {
			return err
		}
		scope.bind(n.Alias)
		return nil
	case *ast.WithClause:
		for _, item := range n.Items {
			if v, ok := item.Expr.(*ast.Variable); ok && v.Name == "*" {
				continue
			}
			if err := checkExpr(scope, item.Expr); err != nil {
				return err
			}
		}
		// WITH re-scopes: only the projected aliases (or passthrough
		// variable names) remain bound afterward.
		next := newScope()
		for _, item := range n.Items {
			if v, ok := item.Expr.(*ast.Variable); ok && v.Name == "*" {
				for name := range scope.bound {
					next.bind(name)
				}
				continue
			}
			name := item.Alias
			if name == "" {
				if v, ok := item.Expr.(*ast.Variable); ok {
					name = v.Name
				}
			}
			next.bind(name)
		}
		*scope = *next
		if n.Where != nil {
			return checkExpr(scope, n.Where)
		}
		return nil
	case *ast.CreateClause:
		for _, part := range n.Patterns {
			if err := checkPatternRefs(scope, part); err != nil {
				return err
			}
			bindPattern(scope, part)
		}
		return nil
	case *ast.MergeClause:
		if err := checkPatternRefs(scope, n.Pattern); err != nil {
			return err
		}
		bindPattern(scope, n.Pattern)
		for _, item := range append(append([]ast.SetItem{}, n.OnCreate...), n.OnMatch...) {
			if !scope.has(item.Variable) {
				return nexuserr.New(nexuserr.CodeSemantic, "variable %q not bound", item.Variable)
			}
			if item.Value != nil {
				if err := checkExpr(scope, item.Value); err != nil {
					return err
				}
			}
		}
		return nil
	case *ast.SetClause:
		for _, item := range n.Items {
			if !scope.has(item.Variable) {
				return nexuserr.New(nexuserr.CodeSemantic, "SET references unbound variable %q", item.Variable)
			}
			if item.Value != nil {
				if err := checkExpr(scope, item.Value); err != nil {
					return err
				}
			}
		}
		return nil
	case *ast.RemoveClause:
		for _, item := range n.Items {
			if !scope.has(item.Variable) {
				return nexuserr.New(nexuserr.CodeSemantic, "REMOVE references unbound variable %q", item.Variable)
			}
		}
		return nil
	case *ast.DeleteClause:
		for _, v := range n.Variables {
			if err := checkExpr(scope, v); err != nil {
				return err
			}
		}
		return nil
	case *ast.CallClause:
		for _, a := range n.Args {
			if err := checkExpr(scope, a); err != nil {
				return err
			}
		}
		for _, y := range n.Yield {
			scope.bind(y)
		}
		return nil
	}
	return nil
}

func bindPattern(scope *Scope, part ast.PatternPart) {
	scope.bind(part.Variable)
	for _, n := range part.Nodes {
		scope.bind(n.Variable)
	}
	for _, r := range part.Rels {
		scope.bind(r.Variable)
	}
}

// checkPatternRefs validates that any parameter/map-literal expressions
// embedded in a CREATE/MERGE pattern's property maps only reference
// already-bound variables (writes may not reference variables that the
// pattern itself is about to introduce, except the pattern's own variable
// being reused rather than recreated, which is a planner-level concern).
func checkPatternRefs(scope *Scope, part ast.PatternPart) error {
	for _, n := range part.Nodes {
		if n.Properties != nil {
			for _, v := range n.Properties.Values {
				if err := checkExpr(scope, v); err != nil {
					return err
				}
			}
		}
	}
	for _, r := range part.Rels {
		if r.Properties != nil {
			for _, v := range r.Properties.Values {
				if err := checkExpr(scope, v); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// checkExpr recursively validates that every Variable reference within expr
// is bound in scope, per spec §4.3's "flags references to unknown variables".
func checkExpr(scope *Scope, expr ast.Expr) error {
	switch e := expr.(type) {
	case nil:
		return nil
	case *ast.Variable:
		if e.Name == "*" {
			return nil
		}
		if !scope.has(e.Name) {
			return nexuserr.New(nexuserr.CodeSemantic, "unknown variable %q", e.Name)
		}
		return nil
	case *ast.Literal, *ast.ParamRef:
		return nil
	case *ast.PropertyAccess:
		return checkExpr(scope, e.Target)
	case *ast.LabelTest:
		return checkExpr(scope, e.Target)
	case *ast.ListLiteral:
		for _, it := range e.Items {
			if err := checkExpr(scope, it); err != nil {
				return err
			}
		}
		return nil
	case *ast.MapLiteral:
		for _, v := range e.Values {
			if err := checkExpr(scope, v); err != nil {
				return err
			}
		}
		return nil
	case *ast.IndexExpr:
		if err := checkExpr(scope, e.Target); err != nil {
			return err
		}
		return checkExpr(scope, e.Index)
	case *ast.SliceExpr:
		if err := checkExpr(scope, e.Target); err != nil {
			return err
		}
		if err := checkExpr(scope, e.From); err != nil {
			return err
		}
		return checkExpr(scope, e.To)
	case *ast.BinaryOp:
		if err := checkExpr(scope, e.Left); err != nil {
			return err
		}
		return checkExpr(scope, e.Right)
	case *ast.UnaryOp:
		return checkExpr(scope, e.Operand)
	case *ast.IsNullTest:
		return checkExpr(scope, e.Operand)
	case *ast.InExpr:
		if err := checkExpr(scope, e.Operand); err != nil {
			return err
		}
		return checkExpr(scope, e.List)
	case *ast.FunctionCall:
		for _, a := range e.Args {
			if err := checkExpr(scope, a); err != nil {
				return err
			}
		}
		return nil
	case *ast.CaseExpr:
		if e.Operand != nil {
			if err := checkExpr(scope, e.Operand); err != nil {
				return err
			}
		}
		for _, w := range e.Whens {
			if err := checkExpr(scope, w.Condition); err != nil {
				return err
			}
			if err := checkExpr(scope, w.Result); err != nil {
				return err
			}
		}
		if e.ElseResult != nil {
			return checkExpr(scope, e.ElseResult)
		}
		return nil
	}
	return nil
}
