package parser

import (
	"github.com/hivellm/nexus/cypher/ast"
	"github.com/hivellm/nexus/cypher/token"
)

// Operator precedence, lowest to highest. Matches spec §4.3's expression
// list: OR, XOR, AND, NOT, comparisons (including IN/IS NULL/STARTS WITH/...),
// additive, multiplicative, power, unary, postfix (property/index/label).
const (
	precLowest = iota
	precOr
	precXor
	precAnd
	precNot
	precComparison
	precAdditive
	precMultiplicative
	precPower
	precUnary
)

func precedenceOf(t token.Type) int {
	switch t {
	case token.OR:
		return precOr
	case token.XOR:
		return precXor
	case token.AND:
		return precAnd
	case token.EQ, token.NEQ, token.LT, token.LTE, token.GT, token.GTE,
		token.IN, token.IS, token.STARTS, token.ENDS, token.CONTAINS:
		return precComparison
	case token.PLUS, token.MINUS:
		return precAdditive
	case token.STAR, token.SLASH, token.PERCENT:
		return precMultiplicative
	case token.CARET:
		return precPower
	default:
		return precLowest
	}
}

func (p *Parser) parseExpr() (ast.Expr, error) {
	return p.parseBinary(precLowest)
}

func (p *Parser) parseBinary(minPrec int) (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op := p.cur().Type
		prec := precedenceOf(op)
		if prec <= minPrec {
			break
		}

		switch op {
		case token.IS:
			p.advance()
			negated := false
			if p.at(token.NOT) {
				p.advance()
				negated = true
			}
			if _, err := p.expect(token.NULL); err != nil {
				return nil, err
			}
			left = &ast.IsNullTest{Operand: left, Negated: negated}
			continue
		case token.IN:
			p.advance()
			list, err := p.parseBinary(precComparison)
			if err != nil {
				return nil, err
			}
			left = &ast.InExpr{Operand: left, List: list}
			continue
		case token.STARTS:
			p.advance()
			if _, err := p.expect(token.WITH); err != nil {
				return nil, err
			}
			right, err := p.parseBinary(precComparison)
			if err != nil {
				return nil, err
			}
			left = &ast.FunctionCall{Name: "__startsWith", Args: []ast.Expr{left, right}}
			continue
		case token.ENDS:
			p.advance()
			if _, err := p.expect(token.WITH); err != nil {
				return nil, err
			}
			right, err := p.parseBinary(precComparison)
			if err != nil {
				return nil, err
			}
			left = &ast.FunctionCall{Name: "__endsWith", Args: []ast.Expr{left, right}}
			continue
		case token.CONTAINS:
			p.advance()
			right, err := p.parseBinary(precComparison)
			if err != nil {
				return nil, err
			}
			left = &ast.FunctionCall{Name: "__contains", Args: []ast.Expr{left, right}}
			continue
		}

		p.advance()
		right, err := p.parseBinary(prec)
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	if p.at(token.NOT) {
		p.advance()
		operand, err := p.parseBinary(precNot)
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{Op: token.NOT, Operand: operand}, nil
	}
	if p.at(token.MINUS) {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{Op: token.MINUS, Operand: operand}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (ast.Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.at(token.DOT):
			p.advance()
			key, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			expr = &ast.PropertyAccess{Target: expr, Key: key.Literal}
		case p.at(token.COLON):
			p.advance()
			var labels []string
			for {
				id, err := p.expect(token.IDENT)
				if err != nil {
					return nil, err
				}
				labels = append(labels, id.Literal)
				if p.at(token.COLON) {
					p.advance()
					continue
				}
				break
			}
			expr = &ast.LabelTest{Target: expr, Labels: labels}
		case p.at(token.LBRACKET):
			p.advance()
			if p.at(token.DOTDOT) {
				p.advance()
				var to ast.Expr
				if !p.at(token.RBRACKET) {
					to, err = p.parseExpr()
					if err != nil {
						return nil, err
					}
				}
				if _, err := p.expect(token.RBRACKET); err != nil {
					return nil, err
				}
				expr = &ast.SliceExpr{Target: expr, From: nil, To: to}
				continue
			}
			first, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if p.at(token.DOTDOT) {
				p.advance()
				var to ast.Expr
				if !p.at(token.RBRACKET) {
					to, err = p.parseExpr()
					if err != nil {
						return nil, err
					}
				}
				if _, err := p.expect(token.RBRACKET); err != nil {
					return nil, err
				}
				expr = &ast.SliceExpr{Target: expr, From: first, To: to}
				continue
			}
			if _, err := p.expect(token.RBRACKET); err != nil {
				return nil, err
			}
			expr = &ast.IndexExpr{Target: expr, Index: first}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	tok := p.cur()
	switch tok.Type {
	case token.INT, token.FLOAT, token.STRING, token.TRUE, token.FALSE, token.NULL:
		p.advance()
		return &ast.Literal{Kind: tok.Type, Raw: tok.Literal}, nil
	case token.PARAM:
		p.advance()
		return &ast.ParamRef{Name: tok.Literal}, nil
	case token.LPAREN:
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return e, nil
	case token.LBRACKET:
		p.advance()
		lst := &ast.ListLiteral{}
		if !p.at(token.RBRACKET) {
			for {
				e, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				lst.Items = append(lst.Items, e)
				if p.at(token.COMMA) {
					p.advance()
					continue
				}
				break
			}
		}
		if _, err := p.expect(token.RBRACKET); err != nil {
			return nil, err
		}
		return lst, nil
	case token.LBRACE:
		return p.parseMapLiteral()
	case token.CASE:
		return p.parseCaseExpr()
	case token.IDENT:
		return p.parseIdentOrCall()
	}
	return nil, p.errAt(tok, "unexpected token %s %q in expression", tok.Type, tok.Literal)
}

func (p *Parser) parseIdentOrCall() (ast.Expr, error) {
	name := p.advance().Literal
	if !p.at(token.LPAREN) {
		return &ast.Variable{Name: name}, nil
	}
	p.advance() // '('
	call := &ast.FunctionCall{Name: name}
	if p.at(token.DISTINCT) {
		p.advance()
		call.Distinct = true
	}
	if p.at(token.STAR) {
		p.advance()
		call.Args = []ast.Expr{&ast.Variable{Name: "*"}}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return call, nil
	}
	if !p.at(token.RPAREN) {
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, e)
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
	return call, nil
}

func (p *Parser) parseCaseExpr() (ast.Expr, error) {
	p.advance() // CASE
	ce := &ast.CaseExpr{}
	if !p.at(token.WHEN) {
		operand, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		ce.Operand = operand
	}
	for p.at(token.WHEN) {
		p.advance()
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.THEN); err != nil {
			return nil, err
		}
		result, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		ce.Whens = append(ce.Whens, ast.WhenClause{Condition: cond, Result: result})
	}
	if p.at(token.ELSE) {
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		ce.ElseResult = e
	}
	if _, err := p.expect(token.END); err != nil {
		return nil, err
	}
	return ce, nil
}
