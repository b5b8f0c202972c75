package compiler

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: tokenizer for .tags source
// ---------------------------------------------------------------------------

// Lexer tokenizes tagset source code. Newlines are significant (the
// language is line-oriented) and comments are emitted as tokens so the
// parser can attach doc comments and pass directives through.
type Lexer struct {
	input     string
	pos       int  // current position in input
	readPos   int  // reading position (after current char)
	ch        rune // current character
	line      int  // current line (1-based)
	lineStart int  // offset of current line start
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.lineStart = l.readPos
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the position of the current character.
func (l *Lexer) position() Position {
	return Position{
		Offset: l.pos,
		Line:   l.line,
		Column: l.pos - l.lineStart + 1,
	}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	// Skip horizontal whitespace; newlines are tokens.
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' {
		l.readChar()
	}

	pos := l.position()

	switch {
	case l.ch == 0:
		return Token{Type: TokenEOF, Literal: "", Pos: pos}

	case l.ch == '\n':
		l.readChar()
		return Token{Type: TokenNewline, Literal: "\n", Pos: pos}

	case l.ch == '/' && l.peekChar() == '/':
		return l.readLineComment(pos)

	case l.ch == '/' && l.peekChar() == '*':
		return l.readBlockComment(pos)

	case l.ch == '(':
		l.readChar()
		return Token{Type: TokenLParen, Literal: "(", Pos: pos}

	case l.ch == ')':
		l.readChar()
		return Token{Type: TokenRParen, Literal: ")", Pos: pos}

	case l.ch == '[':
		l.readChar()
		return Token{Type: TokenLBracket, Literal: "[", Pos: pos}

	case l.ch == ']':
		l.readChar()
		return Token{Type: TokenRBracket, Literal: "]", Pos: pos}

	case l.ch == '{':
		l.readChar()
		return Token{Type: TokenLBrace, Literal: "{", Pos: pos}

	case l.ch == '}':
		l.readChar()
		return Token{Type: TokenRBrace, Literal: "}", Pos: pos}

	case l.ch == '=':
		l.readChar()
		return Token{Type: TokenAssign, Literal: "=", Pos: pos}

	case l.ch == ',':
		l.readChar()
		return Token{Type: TokenComma, Literal: ",", Pos: pos}

	case l.ch == '"':
		return l.readString(pos)

	case l.ch == '`':
		return l.readRawString(pos)

	case l.ch == '\'':
		return l.readCharLiteral(pos)

	case isDigit(l.ch):
		return l.readNumber(pos)

	case isLetter(l.ch) || l.ch == '_':
		return l.readIdentifierOrKeyword(pos)

	case IsOpChar(l.ch):
		ch := l.ch
		l.readChar()
		return Token{Type: TokenOp, Literal: string(ch), Pos: pos}

	default:
		ch := l.ch
		l.readChar()
		return Token{Type: TokenError, Literal: fmt.Sprintf("unexpected character: %q", ch), Pos: pos}
	}
}

// IsOpChar returns true if r may appear as operator punctuation inside an
// initializer expression or type.
func IsOpChar(r rune) bool {
	switch r {
	case '+', '-', '*', '/', '%', '&', '|', '^', '<', '>', '!', '?', ':', ';', '.', '~', '@':
		return true
	}
	return false
}

// readLineComment reads a // comment up to (not including) the newline.
func (l *Lexer) readLineComment(pos Position) Token {
	start := l.pos
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
	return Token{Type: TokenComment, Literal: l.input[start:l.pos], Pos: pos}
}

// readBlockComment reads a /* ... */ comment, which may span lines.
func (l *Lexer) readBlockComment(pos Position) Token {
	start := l.pos
	l.readChar() // consume /
	l.readChar() // consume *
	for l.ch != 0 {
		if l.ch == '*' && l.peekChar() == '/' {
			l.readChar() // consume *
			l.readChar() // consume /
			return Token{Type: TokenComment, Literal: l.input[start:l.pos], Pos: pos}
		}
		l.readChar()
	}
	return Token{Type: TokenError, Literal: "unterminated comment", Pos: pos}
}

// readString reads a double-quoted string literal with backslash escapes.
// The literal includes the quotes so captured text round-trips exactly.
func (l *Lexer) readString(pos Position) Token {
	start := l.pos
	l.readChar() // consume opening "
	for l.ch != 0 && l.ch != '\n' {
		if l.ch == '\\' {
			l.readChar()
			if l.ch == 0 {
				break
			}
			l.readChar()
			continue
		}
		if l.ch == '"' {
			l.readChar() // consume closing "
			return Token{Type: TokenString, Literal: l.input[start:l.pos], Pos: pos}
		}
		l.readChar()
	}
	return Token{Type: TokenError, Literal: "unterminated string", Pos: pos}
}

// readRawString reads a backquoted raw string, which may span lines.
func (l *Lexer) readRawString(pos Position) Token {
	start := l.pos
	l.readChar() // consume opening `
	for l.ch != 0 {
		if l.ch == '`' {
			l.readChar() // consume closing `
			return Token{Type: TokenRawString, Literal: l.input[start:l.pos], Pos: pos}
		}
		l.readChar()
	}
	return Token{Type: TokenError, Literal: "unterminated raw string", Pos: pos}
}

// readCharLiteral reads a rune literal with backslash escapes.
func (l *Lexer) readCharLiteral(pos Position) Token {
	start := l.pos
	l.readChar() // consume opening '
	for l.ch != 0 && l.ch != '\n' {
		if l.ch == '\\' {
			l.readChar()
			if l.ch == 0 {
				break
			}
			l.readChar()
			continue
		}
		if l.ch == '\'' {
			l.readChar() // consume closing '
			return Token{Type: TokenChar, Literal: l.input[start:l.pos], Pos: pos}
		}
		l.readChar()
	}
	return Token{Type: TokenError, Literal: "unterminated rune literal", Pos: pos}
}

// readNumber reads an integer or float literal.
func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos
	isFloat := false

	// Hex, octal, binary prefixes
	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X') {
		l.readChar()
		l.readChar()
		for isHexDigit(l.ch) || l.ch == '_' {
			l.readChar()
		}
		return Token{Type: TokenInt, Literal: l.input[start:l.pos], Pos: pos}
	}
	if l.ch == '0' && (l.peekChar() == 'b' || l.peekChar() == 'B' || l.peekChar() == 'o' || l.peekChar() == 'O') {
		l.readChar()
		l.readChar()
		for isHexDigit(l.ch) || l.ch == '_' {
			l.readChar()
		}
		return Token{Type: TokenInt, Literal: l.input[start:l.pos], Pos: pos}
	}

	for isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}

	if l.ch == '.' && isDigit(l.peekChar()) {
		isFloat = true
		l.readChar() // consume .
		for isDigit(l.ch) || l.ch == '_' {
			l.readChar()
		}
	}

	if l.ch == 'e' || l.ch == 'E' {
		isFloat = true
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	if isFloat {
		return Token{Type: TokenFloat, Literal: l.input[start:l.pos], Pos: pos}
	}
	return Token{Type: TokenInt, Literal: l.input[start:l.pos], Pos: pos}
}

// readIdentifierOrKeyword reads an identifier or keyword.
func (l *Lexer) readIdentifierOrKeyword(pos Position) Token {
	start := l.pos

	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}

	literal := l.input[start:l.pos]

	if tokType, ok := reservedWords[literal]; ok {
		return Token{Type: tokType, Literal: literal, Pos: pos}
	}

	return Token{Type: TokenIdent, Literal: literal, Pos: pos}
}

// Helper functions

func isLetter(r rune) bool {
	return unicode.IsLetter(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// Tokenize returns all tokens from the input.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			break
		}
	}
	return tokens
}
