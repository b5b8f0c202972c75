package compiler

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent parser for .tags source
// ---------------------------------------------------------------------------

// Parser parses tagset source code into an AST. Initializer expressions
// and field types are not parsed into trees: the parser tracks bracket
// depth and slices the raw input, so they re-emit byte-for-byte.
type Parser struct {
	lexer      *Lexer
	curToken   Token
	peekToken  Token
	diags      []*Diagnostic
	input      string   // original source text (for verbatim capture)
	pendingDoc []string // contiguous comment block awaiting a declaration
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{
		lexer: NewLexer(input),
		input: input,
	}
	// Read two tokens to fill curToken and peekToken
	p.advance()
	p.advance()
	return p
}

// advance moves to the next token. Lexer error tokens are recorded as
// diagnostics and skipped so parse loops never see them.
func (p *Parser) advance() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
	for p.curToken.Type == TokenError {
		p.errorAt(DiagSyntax, p.curToken.Pos, "%s", p.curToken.Literal)
		p.curToken = p.peekToken
		p.peekToken = p.lexer.NextToken()
	}
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// peekTokenIs checks if the peek token is of the given type.
func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// errorf records a diagnostic at the current token.
func (p *Parser) errorf(kind DiagKind, format string, args ...interface{}) {
	p.errorAt(kind, p.curToken.Pos, format, args...)
}

// errorAt records a diagnostic at the given position.
func (p *Parser) errorAt(kind DiagKind, pos Position, format string, args ...interface{}) {
	p.diags = append(p.diags, &Diagnostic{
		Kind: kind,
		Span: MakeSpan(pos, pos),
		Msg:  fmt.Sprintf(format, args...),
	})
}

// Errors returns accumulated parse diagnostics.
func (p *Parser) Errors() []*Diagnostic {
	return p.diags
}

// ---------------------------------------------------------------------------
// Comment and line handling
// ---------------------------------------------------------------------------

// skipBlank advances over newlines and comments before a declaration,
// collecting contiguous comment lines as the pending doc block. A blank
// line detaches the pending block, matching Go's doc comment rule.
func (p *Parser) skipBlank() {
	nl := 0
	for {
		switch p.curToken.Type {
		case TokenNewline:
			nl++
			if nl >= 2 {
				p.pendingDoc = nil
			}
			p.advance()
		case TokenComment:
			p.pendingDoc = append(p.pendingDoc, p.curToken.Literal)
			nl = 0
			p.advance()
		default:
			return
		}
	}
}

// takeDoc claims the pending doc block for the declaration being parsed.
func (p *Parser) takeDoc() []string {
	doc := p.pendingDoc
	p.pendingDoc = nil
	return doc
}

// endOfLine consumes an optional trailing comment and the line's newline.
// Closing braces and EOF are left for the caller.
func (p *Parser) endOfLine() {
	if p.curTokenIs(TokenComment) {
		p.advance()
	}
	switch p.curToken.Type {
	case TokenNewline:
		p.advance()
	case TokenRBrace, TokenEOF:
		// caller's delimiter
	default:
		p.errorf(DiagSyntax, "expected end of line, got %s", p.curToken.Type)
		p.recoverToLineEnd()
	}
}

// recoverToLineEnd skips to the start of the next line so one malformed
// member does not swallow the rest of the file.
func (p *Parser) recoverToLineEnd() {
	for !p.curTokenIs(TokenNewline) && !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		p.advance()
	}
	if p.curTokenIs(TokenNewline) {
		p.advance()
	}
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// Parse parses a whole .tags source text.
func Parse(input string) (*File, []*Diagnostic) {
	p := NewParser(input)
	file := p.ParseFile()
	return file, p.Errors()
}

// ParseFile parses a .tags file: package clause, imports, tagsets.
func (p *Parser) ParseFile() *File {
	startPos := p.curToken.Pos
	file := &File{}

	p.skipBlank()
	file.Doc = p.takeDoc()

	if p.curTokenIs(TokenPackage) {
		p.advance()
		if p.curTokenIs(TokenIdent) {
			file.Package = p.curToken.Literal
			p.advance()
		} else {
			p.errorf(DiagSyntax, "expected package name, got %s", p.curToken.Type)
		}
		p.endOfLine()
	} else {
		p.errorf(DiagSyntax, "expected package clause, got %s", p.curToken.Type)
	}

	for {
		p.skipBlank()
		switch p.curToken.Type {
		case TokenEOF:
			file.SpanVal = MakeSpan(startPos, p.curToken.Pos)
			return file
		case TokenImport:
			p.parseImports(file)
		case TokenTagset:
			ts := p.parseTagSet()
			if ts != nil {
				file.TagSets = append(file.TagSets, ts)
			}
		default:
			p.errorf(DiagSyntax, "expected tagset or import, got %s", p.curToken.Type)
			p.advance() // always make progress, recovery stops at } and EOF
			p.recoverToLineEnd()
		}
	}
}

// parseImports parses a single import or a parenthesized import group.
func (p *Parser) parseImports(file *File) {
	p.advance() // consume import

	if p.curTokenIs(TokenLParen) {
		p.advance()
		for {
			p.skipBlank()
			p.pendingDoc = nil // comments inside import groups do not attach
			switch p.curToken.Type {
			case TokenRParen:
				p.advance()
				p.endOfLine()
				return
			case TokenEOF:
				p.errorf(DiagSyntax, "unterminated import group")
				return
			default:
				if imp := p.parseImportSpec(); imp != nil {
					file.Imports = append(file.Imports, imp)
				}
				p.endOfLine()
			}
		}
	}

	if imp := p.parseImportSpec(); imp != nil {
		file.Imports = append(file.Imports, imp)
	}
	p.endOfLine()
}

// parseImportSpec parses [alias] "path".
func (p *Parser) parseImportSpec() *ImportDecl {
	startPos := p.curToken.Pos
	var name string

	if p.curTokenIs(TokenIdent) {
		name = p.curToken.Literal
		p.advance()
	}
	if !p.curTokenIs(TokenString) {
		p.errorf(DiagSyntax, "expected import path string, got %s", p.curToken.Type)
		p.recoverToLineEnd()
		return nil
	}
	path := unquote(p.curToken.Literal)
	endPos := p.curToken.Pos
	p.advance()

	return &ImportDecl{
		SpanVal: MakeSpan(startPos, endPos),
		Name:    name,
		Path:    path,
	}
}

// unquote strips the surrounding quotes from a string token literal.
func unquote(s string) string {
	if len(s) >= 2 {
		return s[1 : len(s)-1]
	}
	return s
}

// ---------------------------------------------------------------------------
// Tagset parsing
// ---------------------------------------------------------------------------

// parseTagSet parses one tagset declaration.
func (p *Parser) parseTagSet() *TagSet {
	ts := &TagSet{Doc: p.takeDoc()}
	startPos := p.curToken.Pos
	p.advance() // consume tagset

	if p.curTokenIs(TokenIdent) {
		ts.Name = p.curToken.Literal
		p.advance()
	} else {
		p.errorf(DiagSyntax, "expected tagset name, got %s", p.curToken.Type)
		p.recoverToLineEnd()
		return nil
	}

	if !p.curTokenIs(TokenLBrace) {
		p.errorf(DiagSyntax, "expected { after tagset %s, got %s", ts.Name, p.curToken.Type)
		p.recoverToLineEnd()
		return nil
	}
	p.advance() // consume {

	missingRecordReported := false
	for {
		p.skipBlank()
		switch p.curToken.Type {
		case TokenRBrace:
			p.pendingDoc = nil
			endPos := p.curToken.Pos
			p.advance()
			p.endOfLine()
			ts.SpanVal = MakeSpan(startPos, endPos)
			if ts.Record == nil && !missingRecordReported {
				p.errorAt(DiagMissingRecordDef, startPos,
					"tagset %s needs a record definition to specify the table layout", ts.Name)
			}
			return ts

		case TokenEOF:
			p.errorf(DiagSyntax, "unterminated tagset %s", ts.Name)
			ts.SpanVal = MakeSpan(startPos, p.curToken.Pos)
			return ts

		case TokenWidth:
			p.parseWidthClause(ts)

		case TokenDerive:
			p.parseDeriveClause(ts)

		case TokenRecord:
			p.parseRecord(ts, &missingRecordReported)

		case TokenIdent:
			p.parseTagEntry(ts, &missingRecordReported)

		default:
			p.errorf(DiagSyntax, "unexpected %s in tagset %s", p.curToken.Type, ts.Name)
			p.recoverToLineEnd()
		}
	}
}

// parseWidthClause parses: width <name>.
func (p *Parser) parseWidthClause(ts *TagSet) {
	p.takeDoc() // width clauses do not carry docs
	p.advance() // consume width

	if !p.curTokenIs(TokenIdent) {
		p.errorf(DiagSyntax, "expected width name after width, got %s", p.curToken.Type)
		p.recoverToLineEnd()
		return
	}
	if ts.Width != "" {
		p.errorf(DiagSyntax, "duplicate width clause in tagset %s", ts.Name)
	} else {
		ts.Width = p.curToken.Literal
		ts.WidthPos = p.curToken.Pos
	}
	p.advance()
	p.endOfLine()
}

// parseDeriveClause parses: derive <name> {, <name>}.
func (p *Parser) parseDeriveClause(ts *TagSet) {
	p.takeDoc()
	p.advance() // consume derive

	for {
		if !p.curTokenIs(TokenIdent) {
			p.errorf(DiagSyntax, "expected capability name in derive, got %s", p.curToken.Type)
			p.recoverToLineEnd()
			return
		}
		ts.Derives = append(ts.Derives, &Derive{
			SpanVal: MakeSpan(p.curToken.Pos, p.curToken.Pos),
			Name:    p.curToken.Literal,
		})
		p.advance()
		if p.curTokenIs(TokenComma) {
			p.advance()
			continue
		}
		break
	}
	p.endOfLine()
}

// parseRecord parses: record <name> { fields }. The record definition
// must come before every tag entry and appear exactly once.
func (p *Parser) parseRecord(ts *TagSet, missingRecordReported *bool) {
	doc := p.takeDoc()
	recPos := p.curToken.Pos
	p.advance() // consume record

	if len(ts.Tags) > 0 {
		p.errorAt(DiagUnexpectedRecordDef, recPos,
			"record definition must be the first member of tagset %s", ts.Name)
		*missingRecordReported = true
	} else if ts.Record != nil {
		p.errorAt(DiagUnexpectedRecordDef, recPos,
			"tagset %s already has a record definition", ts.Name)
	}

	if !p.curTokenIs(TokenIdent) {
		p.errorf(DiagSyntax, "expected record name, got %s", p.curToken.Type)
		p.recoverToLineEnd()
		return
	}
	rec := &RecordDef{Doc: doc, Name: p.curToken.Literal}
	p.advance()

	if !p.curTokenIs(TokenLBrace) {
		p.errorf(DiagSyntax, "expected { after record %s, got %s", rec.Name, p.curToken.Type)
		p.recoverToLineEnd()
		return
	}
	p.advance() // consume {

	for {
		p.skipBlank()
		switch p.curToken.Type {
		case TokenRBrace:
			p.pendingDoc = nil
			endPos := p.curToken.Pos
			p.advance()
			p.endOfLine()
			rec.SpanVal = MakeSpan(recPos, endPos)
			if ts.Record == nil {
				ts.Record = rec
			}
			return
		case TokenEOF:
			p.errorf(DiagSyntax, "unterminated record %s", rec.Name)
			rec.SpanVal = MakeSpan(recPos, p.curToken.Pos)
			if ts.Record == nil {
				ts.Record = rec
			}
			return
		case TokenIdent:
			if f := p.parseField(); f != nil {
				rec.Fields = append(rec.Fields, f)
			}
		default:
			p.errorf(DiagSyntax, "expected field name in record %s, got %s", rec.Name, p.curToken.Type)
			p.recoverToLineEnd()
		}
	}
}

// parseField parses: <name> <type> [`tag`].
func (p *Parser) parseField() *Field {
	f := &Field{Doc: p.takeDoc(), Name: p.curToken.Literal}
	namePos := p.curToken.Pos
	p.advance()

	f.Type = p.captureRaw()
	if f.Type == "" {
		p.errorAt(DiagSyntax, namePos, "field %s is missing a type", f.Name)
		p.recoverToLineEnd()
		return nil
	}

	if p.curTokenIs(TokenRawString) {
		f.Tag = p.curToken.Literal
		p.advance()
	}
	f.SpanVal = MakeSpan(namePos, p.curToken.Pos)
	p.endOfLine()
	return f
}

// parseTagEntry parses: <name> = <initializer>.
func (p *Parser) parseTagEntry(ts *TagSet, missingRecordReported *bool) {
	entry := &TagEntry{Doc: p.takeDoc(), Name: p.curToken.Literal}
	namePos := p.curToken.Pos
	p.advance()

	if !p.curTokenIs(TokenAssign) {
		p.errorAt(DiagSyntax, namePos, "expected = after tag name %s, got %s", entry.Name, p.curToken.Type)
		p.recoverToLineEnd()
		return
	}
	p.advance() // consume =

	entry.Init = p.captureRaw()
	if entry.Init == "" {
		p.errorAt(DiagSyntax, namePos, "tag %s is missing an initializer expression", entry.Name)
		p.recoverToLineEnd()
		return
	}
	entry.SpanVal = MakeSpan(namePos, p.curToken.Pos)
	p.endOfLine()

	if ts.Record == nil && !*missingRecordReported {
		p.errorAt(DiagMissingRecordDef, namePos,
			"tagset %s needs a record definition before its first tag", ts.Name)
		*missingRecordReported = true
	}
	ts.Tags = append(ts.Tags, entry)
}

// captureRaw consumes tokens until the end of the construct and returns
// the raw source text, trimmed. The construct ends at a newline, comment,
// raw string, or unmatched closing delimiter at bracket depth zero, so
// bracketed expressions may span lines and contain anything the lexer
// recognizes, including strings with braces inside.
func (p *Parser) captureRaw() string {
	start := p.curToken.Pos.Offset
	depth := 0
	for {
		t := p.curToken.Type
		if t == TokenEOF {
			break
		}
		if depth == 0 && (t == TokenNewline || t == TokenComment || t == TokenRawString || t.IsCloseDelim()) {
			break
		}
		if t.IsOpenDelim() {
			depth++
		} else if t.IsCloseDelim() {
			depth--
		}
		p.advance()
	}
	return strings.TrimSpace(p.input[start:p.curToken.Pos.Offset])
}
