// Package lexer implements the configuration compiler's tokenizer:
// a stream of tokens over a stack of open files, with #-comment
// skipping, quoted-string escapes, Include-directive stacking, and
// self-include detection by (device, inode).
package lexer

import "github.com/poundproxy/poundcfg/internal/diag"

// TokenType enumerates all token kinds.
type TokenType int

const (
	EOF TokenType = iota
	IDENT
	NUMBER
	LITERAL
	STRING
	NEWLINE
	PUNCT
	ERROR
)

func (t TokenType) String() string {
	switch t {
	case EOF:
		return "EOF"
	case IDENT:
		return "IDENT"
	case NUMBER:
		return "NUMBER"
	case LITERAL:
		return "LITERAL"
	case STRING:
		return "STRING"
	case NEWLINE:
		return "NEWLINE"
	case PUNCT:
		return "PUNCT"
	default:
		return "ERROR"
	}
}

// Token is the smallest unit the lexer produces. Lexeme is populated
// for IDENT, NUMBER, STRING, LITERAL and PUNCT; it is empty for EOF
// and NEWLINE.
type Token struct {
	Type   TokenType
	Lexeme string
	Range  diag.Range
}
