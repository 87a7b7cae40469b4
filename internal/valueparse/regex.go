package valueparse

import (
	"regexp"

	"github.com/poundproxy/poundcfg/internal/diag"
	"github.com/poundproxy/poundcfg/internal/lexer"
	"github.com/poundproxy/poundcfg/internal/section"
)

// CompileRegex compiles pattern the way every matcher in the config
// language expects: newline-aware and optionally case-insensitive.
func CompileRegex(pattern string, ignoreCase bool) (*regexp.Regexp, error) {
	flags := "(?s)" // let '.' span lines; matchers run against raw request bytes
	if ignoreCase {
		flags += "(?i)"
	}
	return regexp.Compile(flags + pattern)
}

// AssignRegex demands a STRING, compiles it with CompileRegex, and
// stores the result in dst. On failure it emits a diag.RegexError
// quoting the offending expression.
func AssignRegex(dst **regexp.Regexp, ignoreCase bool) section.HandlerFunc {
	return func(ctx *section.Context, target any) section.Result {
		tok, err := ctx.Lex.Next()
		if err != nil {
			return ctx.Fail(err)
		}
		if tok.Type != lexer.STRING {
			return ctx.Fail(diag.Errorf(tok.Range, "expected a quoted regular expression, got %s", tok.Type))
		}
		re, cerr := CompileRegex(tok.Lexeme, ignoreCase)
		if cerr != nil {
			return ctx.Fail(diag.RegexError(tok.Range, tok.Lexeme, cerr))
		}
		*dst = re
		return section.OK
	}
}
