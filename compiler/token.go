package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the tagset lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenInt       // 42, 0xFF
	TokenFloat     // 3.14, 3.303e23
	TokenString    // "hello"
	TokenRawString // `json:"mass"`
	TokenChar      // 'a', '\n'
	TokenIdent     // Mercury, float64
	TokenComment   // // text (doc and directive comments)

	// Keywords
	TokenPackage // package
	TokenImport  // import
	TokenTagset  // tagset
	TokenRecord  // record
	TokenWidth   // width
	TokenDerive  // derive

	// Delimiters and operators
	TokenLParen   // (
	TokenRParen   // )
	TokenLBracket // [
	TokenRBracket // ]
	TokenLBrace   // {
	TokenRBrace   // }
	TokenAssign   // =
	TokenComma    // ,
	TokenNewline  // \n (one per run of blank space containing newlines)
	TokenOp       // any other operator or punctuation inside expressions
)

var tokenNames = map[TokenType]string{
	TokenEOF:       "EOF",
	TokenError:     "ERROR",
	TokenInt:       "INT",
	TokenFloat:     "FLOAT",
	TokenString:    "STRING",
	TokenRawString: "RAWSTRING",
	TokenChar:      "CHAR",
	TokenIdent:     "IDENT",
	TokenComment:   "COMMENT",
	TokenPackage:   "package",
	TokenImport:    "import",
	TokenTagset:    "tagset",
	TokenRecord:    "record",
	TokenWidth:     "width",
	TokenDerive:    "derive",
	TokenLParen:    "(",
	TokenRParen:    ")",
	TokenLBracket:  "[",
	TokenRBracket:  "]",
	TokenLBrace:    "{",
	TokenRBrace:    "}",
	TokenAssign:    "=",
	TokenComma:     ",",
	TokenNewline:   "NEWLINE",
	TokenOp:        "OP",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // the raw text
	Pos     Position // start position
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenNewline {
		return "NEWLINE"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"package": TokenPackage,
	"import":  TokenImport,
	"tagset":  TokenTagset,
	"record":  TokenRecord,
	"width":   TokenWidth,
	"derive":  TokenDerive,
}

// IsOpenDelim returns true for tokens that open a bracketed group.
func (t TokenType) IsOpenDelim() bool {
	return t == TokenLParen || t == TokenLBracket || t == TokenLBrace
}

// IsCloseDelim returns true for tokens that close a bracketed group.
func (t TokenType) IsCloseDelim() bool {
	return t == TokenRParen || t == TokenRBracket || t == TokenRBrace
}
