package valueparse

import (
	"github.com/poundproxy/poundcfg/internal/diag"
	"github.com/poundproxy/poundcfg/internal/lexer"
	"github.com/poundproxy/poundcfg/internal/section"
)

// TokenEntry is a raw string argument plus its source range, kept
// uncompiled until the enclosing section closes: a Service's URL
// matchers are only compiled once IgnoreCase has its final,
// section-resolved value.
type TokenEntry struct {
	Value string
	Range diag.Range
}

// AppendToken demands a STRING token and appends it to dst.
func AppendToken(dst *[]TokenEntry) section.HandlerFunc {
	return func(ctx *section.Context, target any) section.Result {
		tok, err := ctx.Lex.Next()
		if err != nil {
			return ctx.Fail(err)
		}
		if tok.Type != lexer.STRING {
			return ctx.Fail(diag.Errorf(tok.Range, "expected a quoted string, got %s", tok.Type))
		}
		*dst = append(*dst, TokenEntry{Value: tok.Lexeme, Range: tok.Range})
		return section.OK
	}
}

// AppendHeaderLine demands a STRING and appends it, CRLF-joined, to a
// growing header block (used by AddHeader).
func AppendHeaderLine(dst *string) section.HandlerFunc {
	return func(ctx *section.Context, target any) section.Result {
		tok, err := ctx.Lex.Next()
		if err != nil {
			return ctx.Fail(err)
		}
		if tok.Type != lexer.STRING {
			return ctx.Fail(diag.Errorf(tok.Range, "expected a quoted header line, got %s", tok.Type))
		}
		if *dst != "" {
			*dst += "\r\n"
		}
		*dst += tok.Lexeme
		return section.OK
	}
}
