package valueparse

import (
	"github.com/poundproxy/poundcfg/internal/diag"
	"github.com/poundproxy/poundcfg/internal/lexer"
	"github.com/poundproxy/poundcfg/internal/section"
)

// AssignString demands a STRING token and copies its lexeme into dst.
func AssignString(dst *string) section.HandlerFunc {
	return func(ctx *section.Context, target any) section.Result {
		tok, err := ctx.Lex.Next()
		if err != nil {
			return ctx.Fail(err)
		}
		if tok.Type != lexer.STRING {
			return ctx.Fail(diag.Errorf(tok.Range, "expected a quoted string, got %s", tok.Type))
		}
		*dst = tok.Lexeme
		return section.OK
	}
}
