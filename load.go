// Package poundcfg compiles a Pound-style reverse-proxy configuration
// file into the listener/service/backend tree the proxy engine
// consumes. Load is the top-level driver: it wires the lexer, the
// file-name interner, and the top-level keyword table together, then
// runs final validation over the built tree.
package poundcfg

import (
	"strings"
	"time"

	"github.com/poundproxy/poundcfg/internal/config"
	"github.com/poundproxy/poundcfg/internal/diag"
	"github.com/poundproxy/poundcfg/internal/intern"
	"github.com/poundproxy/poundcfg/internal/lexer"
	"github.com/poundproxy/poundcfg/internal/section"
	"github.com/poundproxy/poundcfg/internal/semantic"
	"github.com/poundproxy/poundcfg/internal/valueparse"
)

// Options carries the command-line-controlled feature toggles that
// sit outside the config grammar itself (the DNS on/off feature is set
// via the CLI's -W flag, not a config keyword).
type Options struct {
	DNSEnabled bool
}

// Load opens path as the root input, runs the top-level keyword table
// against a fresh config.Global, and validates the result.
func Load(path string, opts Options) (*config.Global, error) {
	g := config.NewGlobal()
	g.DNSEnabled = opts.DNSEnabled

	interns := intern.New()
	defer interns.Release()

	lex := lexer.New(interns)
	if err := lex.OpenRoot(path); err != nil {
		return nil, err
	}

	ctx := &section.Context{
		Lex:        lex,
		IncludeDir: lex.ResolveInclude,
	}

	if err := runTopLevel(ctx, topLevelTable(g, lex), g); err != nil {
		return nil, err
	}

	if lex.Depth() != 0 {
		return nil, diag.Errorf(ctx.Range, "unbalanced include stack at end of parse")
	}

	if err := semantic.ValidateAll(g); err != nil {
		return nil, err
	}

	return g, nil
}

// runTopLevel drives table against g until the input is exhausted.
// Unlike section.Run (used for every nested section), the top level
// has no End keyword: reaching EOF is the normal, successful
// termination.
func runTopLevel(ctx *section.Context, table section.Table, g *config.Global) error {
	for {
		tok, err := ctx.Lex.Next()
		if err != nil {
			return err
		}
		if tok.Type == lexer.NEWLINE {
			continue
		}
		if tok.Type == lexer.EOF {
			return nil
		}
		if tok.Type != lexer.IDENT {
			return diag.Errorf(tok.Range, "expected a keyword, got %s", tok.Type)
		}

		handler, ok := lookupTopLevel(table, tok.Lexeme)
		if !ok {
			return diag.Errorf(tok.Range, "unrecognized top-level keyword %q", tok.Lexeme)
		}
		ctx.Range = ctx.Range.Extend(tok.Range.End)

		switch handler(ctx, g) {
		case section.OK:
			nextTok, err := ctx.Lex.Next()
			if err != nil {
				return err
			}
			if nextTok.Type != lexer.NEWLINE && nextTok.Type != lexer.EOF {
				return diag.Errorf(nextTok.Range, "unexpected extra token %q after statement", nextTok.Lexeme)
			}
			if nextTok.Type == lexer.EOF {
				ctx.Lex.PushBack(nextTok)
			}
		case section.OKNoNL:
			// handler already consumed its terminator
		case section.Fail:
			if ctx.Err != nil {
				err := ctx.Err
				ctx.Err = nil
				return err
			}
			return diag.Errorf(tok.Range, "statement failed: %s", tok.Lexeme)
		}
	}
}

func lookupTopLevel(table section.Table, keyword string) (section.HandlerFunc, bool) {
	for _, e := range table {
		if strings.EqualFold(e.Keyword, keyword) {
			return e.Handler, true
		}
	}
	return nil, false
}

func topLevelTable(g *config.Global, lex *lexer.Lexer) section.Table {
	return section.Table{
		{Keyword: "Include", Handler: func(ctx *section.Context, target any) section.Result {
			tok, err := ctx.Lex.Next()
			if err != nil {
				return ctx.Fail(err)
			}
			if tok.Type != lexer.STRING {
				return ctx.Fail(diag.Errorf(tok.Range, "Include: expected a quoted file path, got %s", tok.Type))
			}
			resolved := ctx.IncludeDir(tok.Lexeme)
			site := tok.Range
			if openErr := lex.Open(resolved, &site); openErr != nil {
				return ctx.Fail(openErr)
			}
			return section.OKNoNL
		}},
		{Keyword: "User", Handler: func(ctx *section.Context, target any) section.Result {
			return valueparse.AssignString(&g.User)(ctx, nil)
		}},
		{Keyword: "Group", Handler: func(ctx *section.Context, target any) section.Result {
			return valueparse.AssignString(&g.Group)(ctx, nil)
		}},
		{Keyword: "RootJail", Handler: func(ctx *section.Context, target any) section.Result {
			return valueparse.AssignString(&g.Chroot)(ctx, nil)
		}},
		{Keyword: "Daemon", Handler: func(ctx *section.Context, target any) section.Result {
			return valueparse.AssignBool(&g.Daemonize)(ctx, nil)
		}},
		{Keyword: "Supervisor", Handler: func(ctx *section.Context, target any) section.Result {
			return valueparse.AssignBool(&g.Supervisor)(ctx, nil)
		}},
		{Keyword: "Threads", Handler: func(ctx *section.Context, target any) section.Result {
			var n uint
			res := valueparse.AssignUint(&n, 32)(ctx, nil)
			if res == section.OK {
				g.Threads = int(n)
			}
			return res
		}},
		{Keyword: "Grace", Handler: func(ctx *section.Context, target any) section.Result {
			var seconds int
			res := valueparse.AssignInt(&seconds, 32)(ctx, nil)
			if res == section.OK {
				g.Grace = time.Duration(seconds) * time.Second
			}
			return res
		}},
		{Keyword: "Alive", Handler: func(ctx *section.Context, target any) section.Result {
			var seconds int
			res := valueparse.AssignInt(&seconds, 32)(ctx, nil)
			if res == section.OK {
				g.AliveInterval = time.Duration(seconds) * time.Second
			}
			return res
		}},
		{Keyword: "LogFacility", Handler: func(ctx *section.Context, target any) section.Result {
			return valueparse.AssignFacility(&g.LogFacility)(ctx, nil)
		}},
		{Keyword: "LogLevel", Handler: func(ctx *section.Context, target any) section.Result {
			return valueparse.AssignIntRange(&g.LogLevel, valueparse.LogLevelMin, valueparse.LogLevelMax)(ctx, nil)
		}},
		{Keyword: "Anonymise", Handler: func(ctx *section.Context, target any) section.Result {
			return valueparse.AssignBool(&g.Anonymise)(ctx, nil)
		}},
		{Keyword: "Control", Handler: func(ctx *section.Context, target any) section.Result {
			return valueparse.AssignString(&g.ControlSocket)(ctx, nil)
		}},
		{Keyword: "IgnoreCase", Handler: func(ctx *section.Context, target any) section.Result {
			return valueparse.AssignBool(&g.IgnoreCase)(ctx, nil)
		}},
		{Keyword: "Client", Handler: func(ctx *section.Context, target any) section.Result {
			var seconds int
			res := valueparse.AssignInt(&seconds, 32)(ctx, nil)
			if res == section.OK {
				g.ClientTimeout = time.Duration(seconds) * time.Second
			}
			return res
		}},
		{Keyword: "TimeOut", Handler: func(ctx *section.Context, target any) section.Result {
			var seconds int
			res := valueparse.AssignInt(&seconds, 32)(ctx, nil)
			if res == section.OK {
				g.BackendTimeout = time.Duration(seconds) * time.Second
			}
			return res
		}},
		{Keyword: "WSTimeOut", Handler: func(ctx *section.Context, target any) section.Result {
			var seconds int
			res := valueparse.AssignInt(&seconds, 32)(ctx, nil)
			if res == section.OK {
				g.WSTimeout = time.Duration(seconds) * time.Second
			}
			return res
		}},
		{Keyword: "ConnTO", Handler: func(ctx *section.Context, target any) section.Result {
			var seconds int
			res := valueparse.AssignInt(&seconds, 32)(ctx, nil)
			if res == section.OK {
				g.ConnectTimeout = time.Duration(seconds) * time.Second
			}
			return res
		}},
		{Keyword: "Service", Handler: func(ctx *section.Context, target any) section.Result {
			svc, err := semantic.ParseService(ctx, g)
			if err != nil {
				return ctx.Fail(err)
			}
			g.Services = append(g.Services, svc)
			return section.OK
		}},
		{Keyword: "ListenHTTP", Handler: func(ctx *section.Context, target any) section.Result {
			st := semantic.NewListenerState(g)
			sub := &section.Context{Lex: ctx.Lex, IncludeDir: ctx.IncludeDir}
			if _, err := section.Run(sub, semantic.ListenHTTPTable(st), "ListenHTTP", st); err != nil {
				return ctx.Fail(err)
			}
			g.Listeners = append(g.Listeners, st.Listener())
			return section.OK
		}},
		{Keyword: "ListenHTTPS", Handler: func(ctx *section.Context, target any) section.Result {
			st := semantic.NewHTTPSListenerState(g)
			sub := &section.Context{Lex: ctx.Lex, IncludeDir: ctx.IncludeDir}
			if _, err := section.Run(sub, semantic.ListenHTTPSTable(st), "ListenHTTPS", st); err != nil {
				return ctx.Fail(err)
			}
			if err := st.Finish(); err != nil {
				return ctx.Fail(err)
			}
			g.Listeners = append(g.Listeners, st.Listener())
			return section.OK
		}},
	}
}
