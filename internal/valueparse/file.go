package valueparse

import (
	"os"

	"github.com/poundproxy/poundcfg/internal/diag"
	"github.com/poundproxy/poundcfg/internal/lexer"
	"github.com/poundproxy/poundcfg/internal/section"
	"github.com/pkg/errors"
)

// MaxFileSize bounds AssignStringFromFile reads; over-cap files are
// diagnosed rather than truncated.
const MaxFileSize = 16 << 20 // 16 MiB

// AssignStringFromFile demands a STRING (a path), stats it, and reads
// the whole file into dst.
func AssignStringFromFile(dst *string) section.HandlerFunc {
	return func(ctx *section.Context, target any) section.Result {
		tok, err := ctx.Lex.Next()
		if err != nil {
			return ctx.Fail(err)
		}
		if tok.Type != lexer.STRING {
			return ctx.Fail(diag.Errorf(tok.Range, "expected a quoted file path, got %s", tok.Type))
		}

		info, statErr := os.Stat(tok.Lexeme)
		if statErr != nil {
			return ctx.Fail(diag.Errorf(tok.Range, "cannot stat %q: %v", tok.Lexeme, statErr))
		}
		if info.Size() > MaxFileSize {
			return ctx.Fail(diag.Errorf(tok.Range, "%q is too large (%d bytes, max %d)", tok.Lexeme, info.Size(), MaxFileSize))
		}

		content, readErr := os.ReadFile(tok.Lexeme)
		if readErr != nil {
			return ctx.Fail(errors.Wrapf(readErr, "reading %q", tok.Lexeme))
		}

		*dst = string(content)
		return section.OK
	}
}
