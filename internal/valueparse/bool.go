package valueparse

import (
	"github.com/poundproxy/poundcfg/internal/diag"
	"github.com/poundproxy/poundcfg/internal/lexer"
	"github.com/poundproxy/poundcfg/internal/section"
)

var trueLiterals = map[string]bool{"1": true, "yes": true, "true": true, "on": true}
var falseLiterals = map[string]bool{"0": true, "no": true, "false": true, "off": true}

// AssignBool demands an unquoted token matching one of the documented
// boolean literals, case-sensitive.
func AssignBool(dst *bool) section.HandlerFunc {
	return func(ctx *section.Context, target any) section.Result {
		tok, err := ctx.Lex.Next()
		if err != nil {
			return ctx.Fail(err)
		}

		lexeme := tok.Lexeme
		switch {
		case tok.Type == lexer.IDENT && trueLiterals[lexeme]:
			*dst = true
			return section.OK
		case tok.Type == lexer.IDENT && falseLiterals[lexeme]:
			*dst = false
			return section.OK
		case tok.Type == lexer.NUMBER && trueLiterals[lexeme]:
			*dst = true
			return section.OK
		case tok.Type == lexer.NUMBER && falseLiterals[lexeme]:
			*dst = false
			return section.OK
		default:
			return ctx.Fail(diag.Errorf(tok.Range,
				"%q is not a boolean value\n\tvalid values are: 1, yes, true, on, 0, no, false, off", lexeme))
		}
	}
}
