// Package section implements the table-driven section parser: a
// driver that dispatches keywords to handlers, enforces one statement
// per line, handles End, and tracks the section's location range for
// diagnostics anchored at the whole section. Each section kind
// (Backend, Service, Session, ListenHTTP, ListenHTTPS, top-level)
// supplies its own disjoint keyword table.
package section

import (
	"strings"

	"github.com/poundproxy/poundcfg/internal/diag"
	"github.com/poundproxy/poundcfg/internal/lexer"
)

// Result is a handler's outcome.
type Result int

const (
	// OK means the statement is complete; the driver requires a
	// newline or EOF next.
	OK Result = iota
	// OKNoNL means the handler already consumed its own terminator
	// (e.g. Include, which swaps the input stream mid-statement).
	OKNoNL
	// End terminates the current section.
	End
	// Fail propagates failure; the section unwinds immediately.
	Fail
)

// HandlerFunc implements one keyword's semantics. target is the
// section-specific value the table was built for (e.g. *config.Backend);
// handlers type-assert it to whatever shape they expect.
type HandlerFunc func(ctx *Context, target any) Result

// Entry binds one keyword to its handler.
type Entry struct {
	Keyword string
	Handler HandlerFunc
}

// Table is a section's full keyword set. Lookup is case-insensitive;
// only the values a keyword takes have case rules of their own.
type Table []Entry

func (t Table) lookup(keyword string) (HandlerFunc, bool) {
	for _, e := range t {
		if strings.EqualFold(e.Keyword, keyword) {
			return e.Handler, true
		}
	}
	return nil, false
}

// Context is threaded through every handler call: the lexer to pull
// more tokens from, and the section's accumulated range, which the
// driver extends after every statement so a "missing Cert statement"
// diagnostic can point at the whole section.
type Context struct {
	Lex   *lexer.Lexer
	Range diag.Range

	// IncludeDir resolves Include targets relative to the file that
	// is currently open; kept on Context so the Include handler
	// (internal/semantic, top-level table) doesn't need a second
	// parameter threaded through every other handler.
	IncludeDir func(target string) string

	// Err carries the precise diagnostic for the most recent Fail
	// result; handlers set it before returning Fail so Run can
	// propagate the real error instead of a generic one.
	Err error
}

// Fail records err on ctx and returns the Fail result, the idiom
// every handler uses to propagate a diagnostic.
func (ctx *Context) Fail(err error) Result {
	ctx.Err = err
	return Fail
}

// Run drives table against target until a handler returns End or Fail,
// or the input is exhausted before End (a "missing End" diagnostic).
func Run(ctx *Context, table Table, sectionName string, target any) (diag.Range, error) {
	startTok, err := ctx.Lex.Next()
	if err != nil {
		return ctx.Range, err
	}
	if startTok.Type == lexer.NEWLINE {
		// leading newline after the section header is normal; skip one.
	} else {
		ctx.Lex.PushBack(startTok)
	}
	ctx.Range = diag.NewRange(startTok.Range.Start)

	for {
		tok, err := ctx.Lex.Next()
		if err != nil {
			return ctx.Range, err
		}

		if tok.Type == lexer.NEWLINE {
			continue
		}
		if tok.Type == lexer.EOF {
			return ctx.Range, diag.Errorf(ctx.Range, "%s: End statement is missing", sectionName)
		}
		if tok.Type != lexer.IDENT {
			return ctx.Range, diag.Errorf(tok.Range, "expected a keyword, got %s", tok.Type)
		}

		handler, ok := table.lookup(tok.Lexeme)
		if !ok {
			return ctx.Range, diag.Errorf(tok.Range, "unrecognized keyword %q in %s section", tok.Lexeme, sectionName)
		}

		ctx.Range = ctx.Range.Extend(tok.Range.End)

		switch handler(ctx, target) {
		case OK:
			nextTok, err := ctx.Lex.Next()
			if err != nil {
				return ctx.Range, err
			}
			if nextTok.Type != lexer.NEWLINE && nextTok.Type != lexer.EOF {
				return ctx.Range, diag.Errorf(nextTok.Range, "unexpected extra token %q after statement", nextTok.Lexeme)
			}
			if nextTok.Type == lexer.EOF {
				ctx.Lex.PushBack(nextTok)
			}
			ctx.Range = ctx.Range.Extend(nextTok.Range.End)
		case OKNoNL:
			// handler already consumed its terminator
		case End:
			ctx.Range = ctx.Range.Extend(tok.Range.End)
			return ctx.Range, nil
		case Fail:
			if ctx.Err != nil {
				err := ctx.Err
				ctx.Err = nil
				return ctx.Range, err
			}
			return ctx.Range, &diag.Error{Rng: tok.Range, Message: "statement failed: " + tok.Lexeme}
		}
	}
}

// EndHandler is the universal "End" keyword handler shared by every
// section table.
func EndHandler(ctx *Context, target any) Result {
	return End
}
