package asm

import (
	"fmt"

	"bear/opcode"
)

// Parser turns token-scanned source into a Program. The concrete grammar is
// a flat, whitespace/newline-insensitive stream of items: each mark, label,
// directive, data clause, string clause, definition reference, or bare
// opcode mnemonic becomes its own Line. A run of leading `$`/`:name` tokens
// attaches to whichever item follows it — this is why four mnemonics
// written on one physical source line (`lit sext.8 lit mul`) become four
// separate Lines, each advancing the processor's position independently.
type Parser struct {
	toks []token
	pos  int
}

// Parse scans and parses a complete source string.
func Parse(src string) (Program, error) {
	lx := newLexer(src)
	var toks []token
	for {
		tok, err := lx.next()
		if err != nil {
			return Program{}, err
		}
		toks = append(toks, tok)
		if tok.kind == tEOF {
			break
		}
	}
	p := &Parser{toks: toks}
	return p.parseProgram()
}

func (p *Parser) peek() token      { return p.toks[p.pos] }
func (p *Parser) at(kind tokenKind) bool { return p.peek().kind == kind }
func (p *Parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) expect(kind tokenKind, what string) (token, error) {
	if !p.at(kind) {
		t := p.peek()
		return token{}, &ParseError{Line: t.line, Column: t.col, Message: fmt.Sprintf("expected %s", what)}
	}
	return p.advance(), nil
}

func (p *Parser) parseProgram() (Program, error) {
	var prog Program
	var pendingMark bool
	var pendingLabels []string

	flush := func(body LineBody, number int) {
		prog.Body = append(prog.Body, Line{
			Mark:   pendingMark,
			Labels: pendingLabels,
			Body:   body,
			Number: number,
		})
		pendingMark = false
		pendingLabels = nil
	}

	for !p.at(tEOF) {
		tok := p.peek()
		switch tok.kind {
		case tDollar:
			pendingMark = true
			p.advance()
		case tLabel:
			pendingLabels = append(pendingLabels, tok.text)
			p.advance()
		case tSectionSep:
			p.advance()
			flush(DirectiveLine{AlignToDirective{PrimitiveExpr{4}}}, tok.line)
		case tHash:
			dir, err := p.parseDirective()
			if err != nil {
				return Program{}, err
			}
			flush(DirectiveLine{dir}, tok.line)
		default:
			body, err := p.parseBodyItem()
			if err != nil {
				return Program{}, err
			}
			flush(body, tok.line)
		}
	}
	return prog, nil
}

// parseBodyItem parses one unlabeled item: a data/string clause, a
// definition reference, or a bare opcode mnemonic. Used both at the top
// level and inside a `#define name [ ... ];` list.
func (p *Parser) parseBodyItem() (LineBody, error) {
	tok := p.peek()
	switch tok.kind {
	case tString:
		p.advance()
		return DataLine{StringData{Tag: tok.tag, Content: tok.text}}, nil
	case tBang:
		p.advance()
		return DefinitionRefLine{Name: tok.text}, nil
	case tIdent:
		if size, ok := dataSizeFromIdent(tok.text); ok {
			p.advance()
			expr, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			return DataLine{ValueData{Size: size, Expr: expr}}, nil
		}
		op, ok := opcode.Lookup(tok.text)
		if !ok {
			return nil, &ParseError{Line: tok.line, Column: tok.col, Message: fmt.Sprintf("unknown mnemonic %q", tok.text)}
		}
		p.advance()
		return SimpleLine{Op: op}, nil
	default:
		return nil, &ParseError{Line: tok.line, Column: tok.col, Message: "expected a data clause, definition reference, or opcode"}
	}
}

func dataSizeFromIdent(name string) (Size, bool) {
	switch name {
	case "d8":
		return Size8, true
	case "d16":
		return Size16, true
	case "d32":
		return Size32, true
	}
	return 0, false
}

func (p *Parser) parseDirective() (Directive, error) {
	hash := p.advance() // consumes the #name token
	switch hash.text {
	case "#at":
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tSemicolon, "';' to terminate #at"); err != nil {
			return nil, err
		}
		return AtDirective{expr}, nil
	case "#align":
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tSemicolon, "';' to terminate #align"); err != nil {
			return nil, err
		}
		return AlignToDirective{expr}, nil
	case "#include":
		path, err := p.expect(tQuote, "a quoted path")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tSemicolon, "';' to terminate #include"); err != nil {
			return nil, err
		}
		return IncludeDirective{Path: path.text}, nil
	case "#define":
		name, err := p.expect(tIdent, "a definition name")
		if err != nil {
			return nil, err
		}
		if p.at(tLBracket) {
			p.advance()
			var body []LineBody
			for !p.at(tRBracket) && !p.at(tEOF) {
				item, err := p.parseBodyItem()
				if err != nil {
					return nil, err
				}
				body = append(body, item)
			}
			if _, err := p.expect(tRBracket, "']' to close #define list"); err != nil {
				return nil, err
			}
			if _, err := p.expect(tSemicolon, "';' to terminate #define"); err != nil {
				return nil, err
			}
			return DefineListDirective{Name: name.text, Body: body}, nil
		}
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tSemicolon, "';' to terminate #define"); err != nil {
			return nil, err
		}
		return DefineExpressionDirective{Name: name.text, Expr: expr}, nil
	default:
		return nil, &ParseError{Line: hash.line, Column: hash.col, Message: fmt.Sprintf("unknown directive %q", hash.text)}
	}
}

// parseExpression parses a chain of same-precedence binary operators,
// left-associative, with parenthesized sub-expressions as primaries.
func (p *Parser) parseExpression() (Expression, error) {
	lhs, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := binOpFromToken(p.peek().kind)
		if !ok {
			return lhs, nil
		}
		p.advance()
		rhs, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		lhs = TreeExpr{Op: op, LHS: lhs, RHS: rhs}
	}
}

func binOpFromToken(k tokenKind) (BinOp, bool) {
	switch k {
	case tPlus:
		return BinPlus, true
	case tMinus:
		return BinMinus, true
	case tStar:
		return BinTimes, true
	case tSlash:
		return BinDiv, true
	case tAmp:
		return BinAnd, true
	case tPipe:
		return BinOr, true
	case tCaret:
		return BinPow, true
	}
	return 0, false
}

func (p *Parser) parsePrimary() (Expression, error) {
	tok := p.peek()
	switch tok.kind {
	case tNumber:
		p.advance()
		return PrimitiveExpr{Value: Primitive(tok.number)}, nil
	case tChar:
		p.advance()
		return PrimitiveExpr{Value: Primitive(tok.number)}, nil
	case tHere:
		p.advance()
		return AddressExpr{HereAddress{}}, nil
	case tNext:
		p.advance()
		return AddressExpr{NextAddress{}}, nil
	case tPrev:
		p.advance()
		return AddressExpr{PrevAddress{}}, nil
	case tBang:
		p.advance()
		return DefinitionRefExpr{Name: tok.text}, nil
	case tQuotedOp:
		p.advance()
		op, ok := opcode.Lookup(tok.text)
		if !ok {
			return nil, &ParseError{Line: tok.line, Column: tok.col, Message: fmt.Sprintf("unknown mnemonic %q in quoted opcode", tok.text)}
		}
		return QuotedExpr{Op: op}, nil
	case tIdent:
		p.advance()
		return AddressExpr{LabelRefAddress{Name: tok.text}}, nil
	case tMinus:
		p.advance()
		operand, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return TreeExpr{Op: BinMinus, LHS: PrimitiveExpr{0}, RHS: operand}, nil
	case tLParen:
		p.advance()
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tRParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil
	default:
		return nil, &ParseError{Line: tok.line, Column: tok.col, Message: "expected an expression"}
	}
}
