package valueparse

import (
	"strconv"

	"github.com/poundproxy/poundcfg/internal/diag"
	"github.com/poundproxy/poundcfg/internal/lexer"
	"github.com/poundproxy/poundcfg/internal/section"
)

// AssignUint demands a NUMBER token and range-checks it against bits.
func AssignUint(dst *uint, bits int) section.HandlerFunc {
	return func(ctx *section.Context, target any) section.Result {
		tok, err := ctx.Lex.Next()
		if err != nil {
			return ctx.Fail(err)
		}
		if tok.Type != lexer.NUMBER {
			return ctx.Fail(diag.Errorf(tok.Range, "expected a number, got %s", tok.Type))
		}
		n, perr := strconv.ParseUint(tok.Lexeme, 10, bits)
		if perr != nil {
			return ctx.Fail(diag.Errorf(tok.Range, "%q is out of range for an unsigned %d-bit value", tok.Lexeme, bits))
		}
		*dst = uint(n)
		return section.OK
	}
}

// AssignInt demands a NUMBER token and range-checks it against bits.
func AssignInt(dst *int, bits int) section.HandlerFunc {
	return func(ctx *section.Context, target any) section.Result {
		tok, err := ctx.Lex.Next()
		if err != nil {
			return ctx.Fail(err)
		}
		if tok.Type != lexer.NUMBER {
			return ctx.Fail(diag.Errorf(tok.Range, "expected a number, got %s", tok.Type))
		}
		n, perr := strconv.ParseInt(tok.Lexeme, 10, bits)
		if perr != nil {
			return ctx.Fail(diag.Errorf(tok.Range, "%q is out of range for a %d-bit value", tok.Lexeme, bits))
		}
		*dst = int(n)
		return section.OK
	}
}

// AssignIntRange demands a NUMBER token within [min, max] inclusive.
func AssignIntRange(dst *int, min, max int) section.HandlerFunc {
	return func(ctx *section.Context, target any) section.Result {
		tok, err := ctx.Lex.Next()
		if err != nil {
			return ctx.Fail(err)
		}
		if tok.Type != lexer.NUMBER {
			return ctx.Fail(diag.Errorf(tok.Range, "expected a number, got %s", tok.Type))
		}
		n, perr := strconv.Atoi(tok.Lexeme)
		if perr != nil || n < min || n > max {
			return ctx.Fail(diag.Errorf(tok.Range, "%q is out of range [%d, %d]", tok.Lexeme, min, max))
		}
		*dst = n
		return section.OK
	}
}
