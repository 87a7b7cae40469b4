package semantic

import (
	"time"

	"github.com/poundproxy/poundcfg/internal/config"
	"github.com/poundproxy/poundcfg/internal/diag"
	"github.com/poundproxy/poundcfg/internal/section"
	"github.com/poundproxy/poundcfg/internal/valueparse"
)

// sessionTypes maps the literal naming a Session Type statement to the
// config.SessionType it selects.
var sessionTypes = map[string]config.SessionType{
	"NONE":   config.SessionNone,
	"IP":     config.SessionIP,
	"COOKIE": config.SessionCookie,
	"URL":    config.SessionURL,
	"PARM":   config.SessionParm,
	"BASIC":  config.SessionBasic,
	"HEADER": config.SessionHeader,
}

// SessionTable builds the keyword table for a Session block.
func SessionTable(dst *config.Session) section.Table {
	return section.Table{
		{Keyword: "Type", Handler: func(ctx *section.Context, target any) section.Result {
			tok, err := ctx.Lex.Next()
			if err != nil {
				return ctx.Fail(err)
			}
			typ, ok := sessionTypes[tok.Lexeme]
			if !ok {
				return ctx.Fail(diag.Errorf(tok.Range, "unknown session type %q (expected NONE, IP, COOKIE, URL, PARM, BASIC, or HEADER)", tok.Lexeme))
			}
			dst.Type = typ
			return section.OK
		}},
		{Keyword: "ID", Handler: func(ctx *section.Context, target any) section.Result {
			return valueparse.AssignString(&dst.ID)(ctx, nil)
		}},
		{Keyword: "TTL", Handler: func(ctx *section.Context, target any) section.Result {
			var seconds int
			res := valueparse.AssignInt(&seconds, 32)(ctx, nil)
			if res == section.OK {
				dst.TTL = time.Duration(seconds) * time.Second
			}
			return res
		}},
		{Keyword: "End", Handler: section.EndHandler},
	}
}

// FinishSession validates the parsed Session block and synthesizes
// SessStart/SessPattern from Type and ID, all compiled
// case-insensitive and newline-aware. IP sessions have no key to
// extract from the request and leave both regexes nil.
//
// A session with no Type, a TTL of zero, or, for COOKIE/URL/HEADER,
// no ID fails here rather than producing a no-op session.
func FinishSession(s *config.Session) error {
	if s.Type == config.SessionNone {
		return diag.Errorf(diag.Range{}, "Session type not defined")
	}
	if s.TTL <= 0 {
		return diag.Errorf(diag.Range{}, "Session TTL not defined")
	}
	if (s.Type == config.SessionCookie || s.Type == config.SessionURL || s.Type == config.SessionHeader) && s.ID == "" {
		return diag.Errorf(diag.Range{}, "Session ID not defined")
	}

	var startPat, matchPat string

	switch s.Type {
	case config.SessionIP:
		return nil
	case config.SessionCookie:
		startPat = `Cookie[^:]*:.*[ \t]` + s.ID + `=`
		matchPat = `([^;]*)`
	case config.SessionURL:
		startPat = `[?&]` + s.ID + `=`
		matchPat = `([^&;#]*)`
	case config.SessionParm:
		startPat = `;`
		matchPat = `([^?]*)`
	case config.SessionBasic:
		startPat = `Authorization:[ \t]*Basic[ \t]*`
		matchPat = `([^ \t]*)`
	case config.SessionHeader:
		startPat = s.ID + `:[ \t]*`
		matchPat = `([^ \t]*)`
	default:
		return diag.Errorf(diag.Range{}, "unhandled session type %v", s.Type)
	}

	start, err := valueparse.CompileRegex(startPat, true)
	if err != nil {
		return diag.RegexError(diag.Range{}, startPat, err)
	}
	pattern, err := valueparse.CompileRegex(matchPat, true)
	if err != nil {
		return diag.RegexError(diag.Range{}, matchPat, err)
	}
	s.SessStart = start
	s.SessPattern = pattern
	return nil
}
