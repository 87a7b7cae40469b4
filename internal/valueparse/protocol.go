package valueparse

import (
	"github.com/poundproxy/poundcfg/internal/diag"
	"github.com/poundproxy/poundcfg/internal/lexer"
	"github.com/poundproxy/poundcfg/internal/section"
)

// Protocol-disable bits, cumulative downward: disabling TLSv1_1 also
// disables SSLv2, SSLv3 and TLSv1. These are never single-bit
// toggles.
const (
	DisableSSLv2 uint = 1 << iota
	DisableSSLv3
	DisableTLSv1
	DisableTLSv1_1
	DisableTLSv1_2
)

var protocolOrder = []struct {
	name string
	bit  uint
}{
	{"SSLv2", DisableSSLv2},
	{"SSLv3", DisableSSLv3},
	{"TLSv1", DisableTLSv1},
	{"TLSv1_1", DisableTLSv1_1},
	{"TLSv1_2", DisableTLSv1_2},
}

// AssignProtocolDisable demands an IDENT naming a protocol and ORs
// into dst the bit for that protocol and every protocol older than it.
func AssignProtocolDisable(dst *uint) section.HandlerFunc {
	return func(ctx *section.Context, target any) section.Result {
		tok, err := ctx.Lex.Next()
		if err != nil {
			return ctx.Fail(err)
		}
		if tok.Type != lexer.IDENT {
			return ctx.Fail(diag.Errorf(tok.Range, "expected a protocol name, got %s", tok.Type))
		}

		found := false
		var mask uint
		for _, p := range protocolOrder {
			mask |= p.bit
			if p.name == tok.Lexeme {
				found = true
				break
			}
		}
		if !found {
			return ctx.Fail(diag.Errorf(tok.Range, "unknown protocol %q (expected one of SSLv2, SSLv3, TLSv1, TLSv1_1, TLSv1_2)", tok.Lexeme))
		}
		*dst |= mask
		return section.OK
	}
}
