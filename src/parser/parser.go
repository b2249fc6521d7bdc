// Package parser implements the lexer and recursive-descent parser for
// the DomainForge modeling DSL. It produces a structural tree with byte
// spans on every node; semantic interpretation is left to consumers.
package parser

import (
	"fmt"
	"strings"
)

// ParseError reports a syntax failure at a byte offset.
type ParseError struct {
	Offset  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Offset, e.Message)
}

type parseState struct {
	toks []Token
	pos  int
}

// Parse tokenizes and parses source into a program node. Any lexical or
// syntactic failure returns a nil tree and a *LexError or *ParseError.
func Parse(source string) (*Node, error) {
	toks, err := Lex(source)
	if err != nil {
		return nil, err
	}
	p := &parseState{toks: toks}
	program := &Node{Kind: NodeProgram, Span: Span{Start: 0, End: len(source)}}

	for {
		p.skipNewlines()
		if p.peek().Kind == TokenEOF {
			break
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		program.Children = append(program.Children, stmt)
		if err := p.expectStatementEnd(); err != nil {
			return nil, err
		}
	}
	return program, nil
}

func (p *parseState) peek() Token {
	return p.toks[p.pos]
}

func (p *parseState) next() Token {
	t := p.toks[p.pos]
	if t.Kind != TokenEOF {
		p.pos++
	}
	return t
}

func (p *parseState) skipNewlines() {
	for p.peek().Kind == TokenNewline {
		p.pos++
	}
}

func (p *parseState) expectStatementEnd() error {
	t := p.peek()
	if t.Kind == TokenEOF {
		return nil
	}
	if t.Kind == TokenNewline {
		p.pos++
		return nil
	}
	return &ParseError{Offset: t.Start, Message: fmt.Sprintf("expected end of statement, found %q", t.Text)}
}

func (p *parseState) atKeyword(word string) bool {
	t := p.peek()
	return t.Kind == TokenIdent && strings.EqualFold(t.Text, word)
}

func (p *parseState) takeKeyword(word string) (Token, error) {
	if !p.atKeyword(word) {
		t := p.peek()
		return Token{}, &ParseError{Offset: t.Start, Message: fmt.Sprintf("expected %q, found %q", word, t.Text)}
	}
	return p.next(), nil
}

func (p *parseState) takeString() (*Node, error) {
	t := p.peek()
	switch t.Kind {
	case TokenString:
		p.next()
		return &Node{Kind: NodeStringLit, Span: Span{Start: t.Start, End: t.End}, Text: t.Text}, nil
	case TokenMultilineString:
		p.next()
		return &Node{Kind: NodeMultilineString, Span: Span{Start: t.Start, End: t.End}, Text: t.Text}, nil
	default:
		return nil, &ParseError{Offset: t.Start, Message: fmt.Sprintf("expected string literal, found %q", t.Text)}
	}
}

func (p *parseState) takeIdent() (*Node, error) {
	t := p.peek()
	if t.Kind != TokenIdent {
		return nil, &ParseError{Offset: t.Start, Message: fmt.Sprintf("expected identifier, found %q", t.Text)}
	}
	p.next()
	return &Node{Kind: NodeIdentifier, Span: Span{Start: t.Start, End: t.End}, Text: t.Text}, nil
}

func (p *parseState) takeNumber() (*Node, error) {
	t := p.peek()
	if t.Kind != TokenNumber {
		return nil, &ParseError{Offset: t.Start, Message: fmt.Sprintf("expected number, found %q", t.Text)}
	}
	p.next()
	return &Node{Kind: NodeNumber, Span: Span{Start: t.Start, End: t.End}, Text: t.Text}, nil
}

// takeName parses a declared name: a quoted or triple-quoted literal,
// wrapped so consumers can distinguish declaration names from operand
// literals.
func (p *parseState) takeName() (*Node, error) {
	lit, err := p.takeString()
	if err != nil {
		return nil, err
	}
	return &Node{Kind: NodeName, Span: lit.Span, Children: []*Node{lit}}, nil
}

func (p *parseState) parseStatement() (*Node, error) {
	t := p.peek()
	if t.Kind == TokenAtIdent {
		switch strings.ToLower(t.Text) {
		case "@namespace":
			return p.parseDirective(NodeNamespaceDirective)
		case "@version":
			return p.parseDirective(NodeVersionDirective)
		default:
			p.next()
			return &Node{Kind: NodeInstanceRef, Span: Span{Start: t.Start, End: t.End}, Text: t.Text}, nil
		}
	}
	if t.Kind != TokenIdent {
		return nil, &ParseError{Offset: t.Start, Message: fmt.Sprintf("expected declaration, found %q", t.Text)}
	}
	switch strings.ToLower(t.Text) {
	case "import":
		return p.parseImportDecl()
	case "entity":
		return p.parseEntityDecl()
	case "resource":
		return p.parseResourceDecl()
	case "flow":
		return p.parseFlowDecl()
	case "pattern":
		return p.parsePatternDecl()
	case "role":
		return p.parseRoleDecl()
	case "relation":
		return p.parseRelationDecl()
	case "instance":
		return p.parseInstanceDecl()
	case "policy":
		return p.parsePolicyDecl()
	default:
		return nil, &ParseError{Offset: t.Start, Message: fmt.Sprintf("unknown declaration keyword %q", t.Text)}
	}
}

func (p *parseState) parseDirective(kind NodeKind) (*Node, error) {
	at := p.next()
	lit, err := p.takeString()
	if err != nil {
		return nil, err
	}
	return &Node{Kind: kind, Span: Span{Start: at.Start, End: lit.Span.End}, Children: []*Node{lit}}, nil
}

func (p *parseState) parseImportDecl() (*Node, error) {
	kw := p.next()
	decl := &Node{Kind: NodeImportDecl, Span: Span{Start: kw.Start}}

	if t := p.peek(); t.Kind == TokenOperator && t.Text == "*" {
		star := p.next()
		if _, err := p.takeKeyword("as"); err != nil {
			return nil, err
		}
		alias, err := p.takeIdent()
		if err != nil {
			return nil, err
		}
		wildcard := &Node{
			Kind:     NodeImportWildcard,
			Span:     Span{Start: star.Start, End: alias.Span.End},
			Children: []*Node{alias},
		}
		decl.Children = append(decl.Children, wildcard)
	} else {
		for {
			name, err := p.takeIdent()
			if err != nil {
				return nil, err
			}
			item := &Node{Kind: NodeImportItem, Span: name.Span, Children: []*Node{name}}
			if p.atKeyword("as") {
				p.next()
				alias, err := p.takeIdent()
				if err != nil {
					return nil, err
				}
				item.Children = append(item.Children, alias)
				item.Span.End = alias.Span.End
			}
			decl.Children = append(decl.Children, item)
			if t := p.peek(); t.Kind == TokenPunct && t.Text == "," {
				p.next()
				continue
			}
			break
		}
	}

	if _, err := p.takeKeyword("from"); err != nil {
		return nil, err
	}
	path, err := p.takeString()
	if err != nil {
		return nil, err
	}
	decl.Children = append(decl.Children, path)
	decl.Span.End = path.Span.End
	return decl, nil
}

func (p *parseState) parseEntityDecl() (*Node, error) {
	kw := p.next()
	name, err := p.takeName()
	if err != nil {
		return nil, err
	}
	decl := &Node{Kind: NodeEntityDecl, Span: Span{Start: kw.Start, End: name.Span.End}, Children: []*Node{name}}

	for {
		switch {
		case p.atKeyword("in"):
			inKw := p.next()
			ns, err := p.takeIdent()
			if err != nil {
				return nil, err
			}
			decl.Children = append(decl.Children, &Node{
				Kind:     NodeNamespaceClause,
				Span:     Span{Start: inKw.Start, End: ns.Span.End},
				Children: []*Node{ns},
			})
			decl.Span.End = ns.Span.End
		case p.atKeyword("version"):
			vKw := p.next()
			lit, err := p.takeString()
			if err != nil {
				return nil, err
			}
			decl.Children = append(decl.Children, &Node{
				Kind:     NodeVersionClause,
				Span:     Span{Start: vKw.Start, End: lit.Span.End},
				Children: []*Node{lit},
			})
			decl.Span.End = lit.Span.End
		case p.atKeyword("replaces"):
			rKw := p.next()
			lit, err := p.takeString()
			if err != nil {
				return nil, err
			}
			decl.Children = append(decl.Children, &Node{
				Kind:     NodeReplacesClause,
				Span:     Span{Start: rKw.Start, End: lit.Span.End},
				Children: []*Node{lit},
			})
			decl.Span.End = lit.Span.End
		case p.atKeyword("changes"):
			cKw := p.next()
			clause := &Node{Kind: NodeChangesClause, Span: Span{Start: cKw.Start}}
			for {
				lit, err := p.takeString()
				if err != nil {
					return nil, err
				}
				clause.Children = append(clause.Children, lit)
				clause.Span.End = lit.Span.End
				if t := p.peek(); t.Kind == TokenPunct && t.Text == "," {
					p.next()
					continue
				}
				break
			}
			decl.Children = append(decl.Children, clause)
			decl.Span.End = clause.Span.End
		default:
			return decl, nil
		}
	}
}

func (p *parseState) parseResourceDecl() (*Node, error) {
	kw := p.next()
	name, err := p.takeName()
	if err != nil {
		return nil, err
	}
	decl := &Node{Kind: NodeResourceDecl, Span: Span{Start: kw.Start, End: name.Span.End}, Children: []*Node{name}}

	if t := p.peek(); t.Kind == TokenIdent && !strings.EqualFold(t.Text, "in") {
		unit, err := p.takeIdent()
		if err != nil {
			return nil, err
		}
		decl.Children = append(decl.Children, unit)
		decl.Span.End = unit.Span.End
	}
	if p.atKeyword("in") {
		inKw := p.next()
		ns, err := p.takeIdent()
		if err != nil {
			return nil, err
		}
		decl.Children = append(decl.Children, &Node{
			Kind:     NodeNamespaceClause,
			Span:     Span{Start: inKw.Start, End: ns.Span.End},
			Children: []*Node{ns},
		})
		decl.Span.End = ns.Span.End
	}
	return decl, nil
}

func (p *parseState) parseFlowDecl() (*Node, error) {
	kw := p.next()
	resource, err := p.takeString()
	if err != nil {
		return nil, err
	}
	if _, err := p.takeKeyword("from"); err != nil {
		return nil, err
	}
	from, err := p.takeString()
	if err != nil {
		return nil, err
	}
	if _, err := p.takeKeyword("to"); err != nil {
		return nil, err
	}
	to, err := p.takeString()
	if err != nil {
		return nil, err
	}
	decl := &Node{
		Kind:     NodeFlowDecl,
		Span:     Span{Start: kw.Start, End: to.Span.End},
		Children: []*Node{resource, from, to},
	}
	if p.atKeyword("quantity") {
		p.next()
		qty, err := p.takeNumber()
		if err != nil {
			return nil, err
		}
		decl.Children = append(decl.Children, qty)
		decl.Span.End = qty.Span.End
	}
	return decl, nil
}

func (p *parseState) parsePatternDecl() (*Node, error) {
	kw := p.next()
	name, err := p.takeName()
	if err != nil {
		return nil, err
	}
	return &Node{Kind: NodePatternDecl, Span: Span{Start: kw.Start, End: name.Span.End}, Children: []*Node{name}}, nil
}

func (p *parseState) parseRoleDecl() (*Node, error) {
	kw := p.next()
	name, err := p.takeName()
	if err != nil {
		return nil, err
	}
	decl := &Node{Kind: NodeRoleDecl, Span: Span{Start: kw.Start, End: name.Span.End}, Children: []*Node{name}}
	if p.atKeyword("for") {
		forKw := p.next()
		lit, err := p.takeString()
		if err != nil {
			return nil, err
		}
		decl.Children = append(decl.Children, &Node{
			Kind:     NodeForClause,
			Span:     Span{Start: forKw.Start, End: lit.Span.End},
			Children: []*Node{lit},
		})
		decl.Span.End = lit.Span.End
	}
	return decl, nil
}

func (p *parseState) parseRelationDecl() (*Node, error) {
	kw := p.next()
	name, err := p.takeName()
	if err != nil {
		return nil, err
	}
	subject, err := p.takeString()
	if err != nil {
		return nil, err
	}
	predicate, err := p.takeString()
	if err != nil {
		return nil, err
	}
	object, err := p.takeString()
	if err != nil {
		return nil, err
	}
	decl := &Node{
		Kind:     NodeRelationDecl,
		Span:     Span{Start: kw.Start, End: object.Span.End},
		Children: []*Node{name, subject, predicate, object},
	}
	if p.atKeyword("via") {
		p.next()
		via, err := p.takeString()
		if err != nil {
			return nil, err
		}
		decl.Children = append(decl.Children, via)
		decl.Span.End = via.Span.End
	}
	return decl, nil
}

func (p *parseState) parseInstanceDecl() (*Node, error) {
	kw := p.next()
	ident, err := p.takeIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.takeKeyword("of"); err != nil {
		return nil, err
	}
	entityType, err := p.takeString()
	if err != nil {
		return nil, err
	}
	decl := &Node{
		Kind:     NodeInstanceDecl,
		Span:     Span{Start: kw.Start, End: entityType.Span.End},
		Children: []*Node{ident, entityType},
	}
	if t := p.peek(); t.Kind == TokenPunct && t.Text == "{" {
		body, err := p.parseInstanceBody()
		if err != nil {
			return nil, err
		}
		decl.Children = append(decl.Children, body)
		decl.Span.End = body.Span.End
	}
	return decl, nil
}

func (p *parseState) parseInstanceBody() (*Node, error) {
	open := p.next()
	body := &Node{Kind: NodeInstanceBody, Span: Span{Start: open.Start}}
	for {
		p.skipNewlines()
		t := p.peek()
		if t.Kind == TokenPunct && t.Text == "}" {
			p.next()
			body.Span.End = t.End
			return body, nil
		}
		if t.Kind == TokenEOF {
			return nil, &ParseError{Offset: open.Start, Message: "unterminated instance body"}
		}
		field, err := p.parseInstanceField()
		if err != nil {
			return nil, err
		}
		body.Children = append(body.Children, field)
		if t := p.peek(); t.Kind == TokenPunct && t.Text == "," {
			p.next()
		}
	}
}

func (p *parseState) parseInstanceField() (*Node, error) {
	key, err := p.takeIdent()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.Kind != TokenPunct || t.Text != ":" {
		return nil, &ParseError{Offset: t.Start, Message: fmt.Sprintf("expected ':' after field name, found %q", t.Text)}
	}
	p.next()

	var value *Node
	t := p.peek()
	switch t.Kind {
	case TokenString, TokenMultilineString:
		value, err = p.takeString()
	case TokenNumber:
		value, err = p.takeNumber()
	case TokenAtIdent:
		p.next()
		value = &Node{Kind: NodeInstanceRef, Span: Span{Start: t.Start, End: t.End}, Text: t.Text}
	case TokenIdent:
		value, err = p.takeIdent()
	default:
		err = &ParseError{Offset: t.Start, Message: fmt.Sprintf("expected field value, found %q", t.Text)}
	}
	if err != nil {
		return nil, err
	}
	return &Node{
		Kind:     NodeInstanceField,
		Span:     Span{Start: key.Span.Start, End: value.Span.End},
		Children: []*Node{key, value},
	}, nil
}

func (p *parseState) parsePolicyDecl() (*Node, error) {
	kw := p.next()
	name, err := p.takeIdent()
	if err != nil {
		return nil, err
	}
	decl := &Node{Kind: NodePolicyDecl, Span: Span{Start: kw.Start, End: name.Span.End}, Children: []*Node{name}}

	meta := &Node{Kind: NodePolicyMeta}
	if p.atKeyword("per") {
		perKw := p.next()
		kind, err := p.takeIdent()
		if err != nil {
			return nil, err
		}
		modality, err := p.takeIdent()
		if err != nil {
			return nil, err
		}
		meta.Span = Span{Start: perKw.Start, End: modality.Span.End}
		meta.Children = append(meta.Children, kind, modality)
	}
	if p.atKeyword("priority") {
		prKw := p.next()
		priority, err := p.takeNumber()
		if err != nil {
			return nil, err
		}
		if len(meta.Children) == 0 {
			meta.Span.Start = prKw.Start
		}
		meta.Span.End = priority.Span.End
		meta.Children = append(meta.Children, priority)
	}
	if len(meta.Children) > 0 {
		decl.Children = append(decl.Children, meta)
		decl.Span.End = meta.Span.End
	}

	if _, err := p.takeKeyword("as"); err != nil {
		return nil, err
	}
	if t := p.peek(); t.Kind != TokenPunct || t.Text != ":" {
		return nil, &ParseError{Offset: t.Start, Message: fmt.Sprintf("expected ':' after 'as', found %q", t.Text)}
	}
	p.next()
	p.skipNewlines()

	expr, err := p.parsePolicyExpr()
	if err != nil {
		return nil, err
	}
	decl.Children = append(decl.Children, expr)
	decl.Span.End = expr.Span.End
	return decl, nil
}

// parsePolicyExpr collects the expression tokens up to the end of the line.
// It imposes no grammar beyond tokenization: the semantic graph stores the
// raw text and the index only needs the instance references inside.
func (p *parseState) parsePolicyExpr() (*Node, error) {
	expr := &Node{Kind: NodePolicyExpr}
	for {
		t := p.peek()
		if t.Kind == TokenNewline || t.Kind == TokenEOF {
			break
		}
		p.next()
		var child *Node
		switch t.Kind {
		case TokenAtIdent:
			child = &Node{Kind: NodeInstanceRef, Span: Span{Start: t.Start, End: t.End}, Text: t.Text}
		case TokenIdent:
			child = &Node{Kind: NodeIdentifier, Span: Span{Start: t.Start, End: t.End}, Text: t.Text}
		case TokenNumber:
			child = &Node{Kind: NodeNumber, Span: Span{Start: t.Start, End: t.End}, Text: t.Text}
		case TokenString:
			child = &Node{Kind: NodeStringLit, Span: Span{Start: t.Start, End: t.End}, Text: t.Text}
		case TokenMultilineString:
			child = &Node{Kind: NodeMultilineString, Span: Span{Start: t.Start, End: t.End}, Text: t.Text}
		case TokenOperator, TokenPunct:
			child = &Node{Kind: NodeOperator, Span: Span{Start: t.Start, End: t.End}, Text: t.Text}
		default:
			return nil, &ParseError{Offset: t.Start, Message: fmt.Sprintf("unexpected token %q in policy expression", t.Text)}
		}
		if len(expr.Children) == 0 {
			expr.Span.Start = child.Span.Start
		}
		expr.Span.End = child.Span.End
		expr.Children = append(expr.Children, child)
	}
	if len(expr.Children) == 0 {
		t := p.peek()
		return nil, &ParseError{Offset: t.Start, Message: "empty policy expression"}
	}
	return expr, nil
}
