// Package parser implements a hand-written recursive-descent parser that
// turns Cypher query text into the ast package's tree, per spec §4.3. The
// structure — a token buffer with a single-token lookahead plus a set of
// mutually recursive parseX methods — follows the plain recursive-descent
// style the example corpus uses for its own small languages, in preference
// to the parser-combinator approach one reference repo happens to use for
// Cypher.
package parser

import (
	"strconv"

	"github.com/hivellm/nexus/cypher/ast"
	"github.com/hivellm/nexus/cypher/token"
	"github.com/hivellm/nexus/nexuserr"
)

// Parser consumes a pre-tokenized Cypher query and builds an ast.Query.
type Parser struct {
	tokens []token.Token
	pos    int
}

// Parse tokenizes and parses src in one call.
func Parse(src string) (*ast.Query, error) {
	toks, err := token.Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &Parser{tokens: toks}
	return p.parseQuery()
}

func (p *Parser) cur() token.Token  { return p.tokens[p.pos] }
func (p *Parser) peekAt(n int) token.Token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

func (p *Parser) advance() token.Token {
	t := p.cur()
	if t.Type != token.EOF {
		p.pos++
	}
	return t
}

func (p *Parser) at(t token.Type) bool { return p.cur().Type == t }

func (p *Parser) errAt(tok token.Token, format string, args ...interface{}) error {
	return nexuserr.NewAt(nexuserr.CodeParse, nexuserr.Position{Line: tok.Pos.Line, Col: tok.Pos.Col}, format, args...)
}

func (p *Parser) expect(t token.Type) (token.Token, error) {
	if !p.at(t) {
		return token.Token{}, p.errAt(p.cur(), "expected %s, got %s %q", t, p.cur().Type, p.cur().Literal)
	}
	return p.advance(), nil
}

// ---- top level ----

func (p *Parser) parseQuery() (*ast.Query, error) {
	first, err := p.parseSingleQuery()
	if err != nil {
		return nil, err
	}
	q := &ast.Query{First: first}
	for p.at(token.UNION) {
		p.advance()
		all := false
		if p.at(token.ALL) {
			p.advance()
			all = true
		}
		sq, err := p.parseSingleQuery()
		if err != nil {
			return nil, err
		}
		q.Unions = append(q.Unions, ast.UnionPart{All: all, Query: sq})
	}
	if !p.at(token.EOF) {
		return nil, p.errAt(p.cur(), "unexpected trailing input %q", p.cur().Literal)
	}
	return q, nil
}

func (p *Parser) parseSingleQuery() (*ast.SingleQuery, error) {
	sq := &ast.SingleQuery{}
	for {
		switch p.cur().Type {
		case token.MATCH, token.OPTIONAL:
			c, err := p.parseMatchClause()
			if err != nil {
				return nil, err
			}
			sq.Clauses = append(sq.Clauses, c)
		case token.UNWIND:
			c, err := p.parseUnwindClause()
			if err != nil {
				return nil, err
			}
			sq.Clauses = append(sq.Clauses, c)
		case token.WITH:
			c, err := p.parseWithClause()
			if err != nil {
				return nil, err
			}
			sq.Clauses = append(sq.Clauses, c)
		case token.CREATE:
			c, err := p.parseCreateClause()
			if err != nil {
				return nil, err
			}
			sq.Clauses = append(sq.Clauses, c)
		case token.MERGE:
			c, err := p.parseMergeClause()
			if err != nil {
				return nil, err
			}
			sq.Clauses = append(sq.Clauses, c)
		case token.SET:
			c, err := p.parseSetClause()
			if err != nil {
				return nil, err
			}
			sq.Clauses = append(sq.Clauses, c)
		case token.REMOVE:
			c, err := p.parseRemoveClause()
			if err != nil {
				return nil, err
			}
			sq.Clauses = append(sq.Clauses, c)
		case token.DELETE, token.DETACH:
			c, err := p.parseDeleteClause()
			if err != nil {
				return nil, err
			}
			sq.Clauses = append(sq.Clauses, c)
		case token.CALL:
			c, err := p.parseCallClause()
			if err != nil {
				return nil, err
			}
			sq.Clauses = append(sq.Clauses, c)
		case token.RETURN:
			ret, err := p.parseReturnClause()
			if err != nil {
				return nil, err
			}
			sq.Return = ret
			return sq, nil
		default:
			return sq, nil
		}
	}
}

// ---- MATCH ----

func (p *Parser) parseMatchClause() (*ast.MatchClause, error) {
	mc := &ast.MatchClause{}
	if p.at(token.OPTIONAL) {
		p.advance()
		mc.Optional = true
		if _, err := p.expect(token.MATCH); err != nil {
			return nil, err
		}
	} else {
		if _, err := p.expect(token.MATCH); err != nil {
			return nil, err
		}
	}
	parts, err := p.parsePatternList()
	if err != nil {
		return nil, err
	}
	mc.Patterns = parts
	if p.at(token.WHERE) {
		p.advance()
		w, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		mc.Where = w
	}
	return mc, nil
}

func (p *Parser) parsePatternList() ([]ast.PatternPart, error) {
	var parts []ast.PatternPart
	for {
		part, err := p.parsePatternPart()
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
		if p.at(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	return parts, nil
}

func (p *Parser) parsePatternPart() (ast.PatternPart, error) {
	var part ast.PatternPart
	if p.at(token.IDENT) && p.peekAt(1).Type == token.EQ {
		part.Variable = p.advance().Literal
		p.advance() // '='
	}
	node, err := p.parseNodePattern()
	if err != nil {
		return part, err
	}
	part.Nodes = append(part.Nodes, node)
	for p.at(token.MINUS) || p.at(token.ARROW_L) {
		rel, err := p.parseRelPattern()
		if err != nil {
			return part, err
		}
		part.Rels = append(part.Rels, rel)
		n2, err := p.parseNodePattern()
		if err != nil {
			return part, err
		}
		part.Nodes = append(part.Nodes, n2)
	}
	return part, nil
}

func (p *Parser) parseNodePattern() (*ast.NodePattern, error) {
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	np := &ast.NodePattern{}
	if p.at(token.IDENT) {
		np.Variable = p.advance().Literal
	}
	for p.at(token.COLON) {
		p.advance()
		id, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		np.Labels = append(np.Labels, id.Literal)
	}
	if p.at(token.LBRACE) {
		m, err := p.parseMapLiteral()
		if err != nil {
			return nil, err
		}
		np.Properties = m
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	return np, nil
}

// parseRelPattern handles `-[...]->`, `<-[...]-`, and `-[...]-`.
func (p *Parser) parseRelPattern() (*ast.RelPattern, error) {
	rp := &ast.RelPattern{Direction: ast.DirEither}
	if p.at(token.ARROW_L) {
		p.advance()
		rp.Direction = ast.DirLeft
		if p.at(token.LBRACKET) {
			if err := p.parseRelBody(rp); err != nil {
				return nil, err
			}
			if _, err := p.expect(token.MINUS); err != nil {
				return nil, err
			}
		}
		return rp, nil
	}
	if _, err := p.expect(token.MINUS); err != nil {
		return nil, err
	}
	if p.at(token.LBRACKET) {
		if err := p.parseRelBody(rp); err != nil {
			return nil, err
		}
	}
	if p.at(token.ARROW_R) {
		p.advance()
		rp.Direction = ast.DirRight
	} else if _, err := p.expect(token.MINUS); err != nil {
		return nil, err
	}
	return rp, nil
}

func (p *Parser) parseRelBody(rp *ast.RelPattern) error {
	p.advance() // '['
	if p.at(token.IDENT) {
		rp.Variable = p.advance().Literal
	}
	if p.at(token.COLON) {
		p.advance()
		id, err := p.expect(token.IDENT)
		if err != nil {
			return err
		}
		rp.Types = append(rp.Types, id.Literal)
		for p.at(token.PIPE) {
			p.advance()
			id, err := p.expect(token.IDENT)
			if err != nil {
				return err
			}
			rp.Types = append(rp.Types, id.Literal)
		}
	}
	if p.at(token.STAR) {
		p.advance()
		vl := &ast.VarLength{}
		if p.at(token.INT) {
			n, _ := strconv.Atoi(p.advance().Literal)
			vl.Min = &n
			if p.at(token.DOTDOT) {
				p.advance()
				if p.at(token.INT) {
					m, _ := strconv.Atoi(p.advance().Literal)
					vl.Max = &m
				}
			} else {
				vl.Max = vl.Min
			}
		} else if p.at(token.DOTDOT) {
			p.advance()
			if p.at(token.INT) {
				m, _ := strconv.Atoi(p.advance().Literal)
				vl.Max = &m
			}
		}
		rp.VarLength = vl
	}
	if p.at(token.LBRACE) {
		m, err := p.parseMapLiteral()
		if err != nil {
			return err
		}
		rp.Properties = m
	}
	if _, err := p.expect(token.RBRACKET); err != nil {
		return err
	}
	return nil
}

// ---- UNWIND / WITH / CALL ----

func (p *Parser) parseUnwindClause() (*ast.UnwindClause, error) {
	p.advance() // UNWIND
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.AS); err != nil {
		return nil, err
	}
	alias, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	return &ast.UnwindClause{Expr: e, Alias: alias.Literal}, nil
}

func (p *Parser) parseWithClause() (*ast.WithClause, error) {
	p.advance() // WITH
	wc := &ast.WithClause{}
	if p.at(token.DISTINCT) {
		p.advance()
		wc.Distinct = true
	}
	items, err := p.parseProjectionItems()
	if err != nil {
		return nil, err
	}
	wc.Items = items
	if p.at(token.WHERE) {
		p.advance()
		w, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		wc.Where = w
	}
	if err := p.parseOrderSkipLimit(&wc.OrderBy, &wc.Skip, &wc.Limit); err != nil {
		return nil, err
	}
	return wc, nil
}

func (p *Parser) parseCallClause() (*ast.CallClause, error) {
	p.advance() // CALL
	cc := &ast.CallClause{}
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	cc.Procedure = name.Literal
	for p.at(token.DOT) {
		p.advance()
		part, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		cc.Procedure += "." + part.Literal
	}
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	if !p.at(token.RPAREN) {
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			cc.Args = append(cc.Args, e)
			if p.at(token.COMMA) {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	if p.at(token.YIELD) {
		p.advance()
		for {
			id, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			cc.Yield = append(cc.Yield, id.Literal)
			if p.at(token.COMMA) {
				p.advance()
				continue
			}
			break
		}
	}
	return cc, nil
}

// ---- CREATE / MERGE / SET / REMOVE / DELETE ----

func (p *Parser) parseCreateClause() (*ast.CreateClause, error) {
	p.advance() // CREATE
	parts, err := p.parsePatternList()
	if err != nil {
		return nil, err
	}
	return &ast.CreateClause{Patterns: parts}, nil
}

func (p *Parser) parseMergeClause() (*ast.MergeClause, error) {
	p.advance() // MERGE
	part, err := p.parsePatternPart()
	if err != nil {
		return nil, err
	}
	mc := &ast.MergeClause{Pattern: part}
	for p.at(token.ON) {
		p.advance()
		if p.at(token.CREATE) {
			p.advance()
			items, err := p.parseSetItems()
			if err != nil {
				return nil, err
			}
			mc.OnCreate = items
		} else if p.at(token.MATCH) {
			p.advance()
			items, err := p.parseSetItems()
			if err != nil {
				return nil, err
			}
			mc.OnMatch = items
		} else {
			return nil, p.errAt(p.cur(), "expected CREATE or MATCH after ON")
		}
	}
	return mc, nil
}

func (p *Parser) parseSetClause() (*ast.SetClause, error) {
	items, err := p.parseSetItems()
	if err != nil {
		return nil, err
	}
	return &ast.SetClause{Items: items}, nil
}

// parseSetItems consumes the leading SET keyword and then parses a
// comma-separated SET item list (used both by a standalone SET clause and by
// ON CREATE/ON MATCH SET).
func (p *Parser) parseSetItems() ([]ast.SetItem, error) {
	if _, err := p.expect(token.SET); err != nil {
		return nil, err
	}
	var items []ast.SetItem
	for {
		id, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		if p.at(token.COLON) {
			p.advance()
			lbl, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			items = append(items, ast.SetItem{Variable: id.Literal, Label: lbl.Literal})
		} else {
			if _, err := p.expect(token.DOT); err != nil {
				return nil, err
			}
			prop, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.EQ); err != nil {
				return nil, err
			}
			val, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			items = append(items, ast.SetItem{Variable: id.Literal, Property: prop.Literal, Value: val})
		}
		if p.at(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	return items, nil
}

func (p *Parser) parseRemoveClause() (*ast.RemoveClause, error) {
	p.advance() // REMOVE
	var items []ast.SetItem
	for {
		id, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		if p.at(token.COLON) {
			p.advance()
			lbl, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			items = append(items, ast.SetItem{Variable: id.Literal, Label: lbl.Literal})
		} else {
			if _, err := p.expect(token.DOT); err != nil {
				return nil, err
			}
			prop, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			items = append(items, ast.SetItem{Variable: id.Literal, Property: prop.Literal})
		}
		if p.at(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	return &ast.RemoveClause{Items: items}, nil
}

func (p *Parser) parseDeleteClause() (*ast.DeleteClause, error) {
	dc := &ast.DeleteClause{}
	if p.at(token.DETACH) {
		p.advance()
		dc.Detach = true
	}
	if _, err := p.expect(token.DELETE); err != nil {
		return nil, err
	}
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		dc.Variables = append(dc.Variables, e)
		if p.at(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	return dc, nil
}

// ---- RETURN ----

func (p *Parser) parseReturnClause() (*ast.ReturnClause, error) {
	p.advance() // RETURN
	rc := &ast.ReturnClause{}
	if p.at(token.DISTINCT) {
		p.advance()
		rc.Distinct = true
	}
	items, err := p.parseProjectionItems()
	if err != nil {
		return nil, err
	}
	rc.Items = items
	if err := p.parseOrderSkipLimit(&rc.OrderBy, &rc.Skip, &rc.Limit); err != nil {
		return nil, err
	}
	return rc, nil
}

func (p *Parser) parseProjectionItems() ([]ast.ProjectionItem, error) {
	if p.at(token.STAR) {
		p.advance()
		return []ast.ProjectionItem{{Expr: &ast.Variable{Name: "*"}}}, nil
	}
	var items []ast.ProjectionItem
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		item := ast.ProjectionItem{Expr: e}
		if p.at(token.AS) {
			p.advance()
			alias, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			item.Alias = alias.Literal
		}
		items = append(items, item)
		if p.at(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	return items, nil
}

func (p *Parser) parseOrderSkipLimit(order *[]ast.OrderItem, skip, limit *ast.Expr) error {
	if p.at(token.ORDER) {
		p.advance()
		if _, err := p.expect(token.BY); err != nil {
			return err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return err
			}
			desc := false
			if p.at(token.ASC) {
				p.advance()
			} else if p.at(token.DESC) {
				p.advance()
				desc = true
			}
			*order = append(*order, ast.OrderItem{Expr: e, Descending: desc})
			if p.at(token.COMMA) {
				p.advance()
				continue
			}
			break
		}
	}
	if p.at(token.SKIP) {
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return err
		}
		*skip = e
	}
	if p.at(token.LIMIT) {
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return err
		}
		*limit = e
	}
	return nil
}

func (p *Parser) parseMapLiteral() (*ast.MapLiteral, error) {
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}
	m := &ast.MapLiteral{}
	if !p.at(token.RBRACE) {
		for {
			key, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.COLON); err != nil {
				return nil, err
			}
			val, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			m.Keys = append(m.Keys, key.Literal)
			m.Values = append(m.Values, val)
			if p.at(token.COMMA) {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	return m, nil
}
