package semantic

import (
	"regexp"

	"github.com/poundproxy/poundcfg/internal/config"
	"github.com/poundproxy/poundcfg/internal/diag"
	"github.com/poundproxy/poundcfg/internal/lexer"
	"github.com/poundproxy/poundcfg/internal/section"
)

// redirectURLPattern validates the URL argument of a Redirect
// statement: scheme://host[:port][/path]. The capture group isolates
// the path so a bare "/" can be distinguished from a real
// trailing-slash path and stripped on its own.
var redirectURLPattern = regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9+.-]*://[^/]+)(/.*)?$`)

var redirectCodes = map[int]bool{301: true, 302: true, 307: true}

// ParseRedirect handles the Redirect statement inside a Service:
// an optional status NUMBER (301/302/307, default 302) followed by a
// URL STRING. A path of exactly "/" is stripped. Produces a redirect
// backend, priority 1, alive.
func ParseRedirect(ctx *section.Context) (*config.Backend, section.Result) {
	code := 302

	tok, err := ctx.Lex.Next()
	if err != nil {
		return nil, ctx.Fail(err)
	}
	if tok.Type == lexer.NUMBER {
		n := 0
		for _, c := range tok.Lexeme {
			n = n*10 + int(c-'0')
		}
		if !redirectCodes[n] {
			return nil, ctx.Fail(diag.Errorf(tok.Range, "invalid redirect code %d (expected 301, 302, or 307)", n))
		}
		code = n
		tok, err = ctx.Lex.Next()
		if err != nil {
			return nil, ctx.Fail(err)
		}
	}

	if tok.Type != lexer.STRING {
		return nil, ctx.Fail(diag.Errorf(tok.Range, "expected a quoted redirect URL, got %s", tok.Type))
	}

	m := redirectURLPattern.FindStringSubmatch(tok.Lexeme)
	if m == nil {
		return nil, ctx.Fail(diag.Errorf(tok.Range, "invalid redirect URL %q (expected scheme://host[/path])", tok.Lexeme))
	}

	url := m[1]
	if m[2] != "/" {
		url += m[2]
	}

	return &config.Backend{
		Kind:         config.BackendRedirect,
		Alive:        true,
		Priority:     1,
		RedirectURL:  url,
		RedirectCode: code,
	}, section.OK
}
