package valueparse

import (
	"strings"

	"github.com/poundproxy/poundcfg/internal/diag"
	"github.com/poundproxy/poundcfg/internal/lexer"
	"github.com/poundproxy/poundcfg/internal/section"
	"github.com/RackSec/srslog"
)

// facilities maps the config language's facility names to syslog
// facility constants. "-" disables syslog entirely.
var facilities = map[string]srslog.Priority{
	"kern":     srslog.LOG_KERN,
	"user":     srslog.LOG_USER,
	"mail":     srslog.LOG_MAIL,
	"daemon":   srslog.LOG_DAEMON,
	"auth":     srslog.LOG_AUTH,
	"syslog":   srslog.LOG_SYSLOG,
	"lpr":      srslog.LOG_LPR,
	"news":     srslog.LOG_NEWS,
	"uucp":     srslog.LOG_UUCP,
	"cron":     srslog.LOG_CRON,
	"authpriv": srslog.LOG_AUTHPRIV,
	"ftp":      srslog.LOG_FTP,
	"local0":   srslog.LOG_LOCAL0,
	"local1":   srslog.LOG_LOCAL1,
	"local2":   srslog.LOG_LOCAL2,
	"local3":   srslog.LOG_LOCAL3,
	"local4":   srslog.LOG_LOCAL4,
	"local5":   srslog.LOG_LOCAL5,
	"local6":   srslog.LOG_LOCAL6,
	"local7":   srslog.LOG_LOCAL7,
}

// Facility is the resolved log facility; NoSyslog is set when the
// config used "-".
type Facility struct {
	Priority srslog.Priority
	NoSyslog bool
}

// AssignFacility demands an unquoted token naming a syslog facility,
// or "-" for "no syslog".
func AssignFacility(dst *Facility) section.HandlerFunc {
	return func(ctx *section.Context, target any) section.Result {
		tok, err := ctx.Lex.Next()
		if err != nil {
			return ctx.Fail(err)
		}
		if tok.Type == lexer.PUNCT && tok.Lexeme == "-" {
			*dst = Facility{NoSyslog: true}
			return section.OK
		}
		if tok.Type != lexer.IDENT {
			return ctx.Fail(diag.Errorf(tok.Range, "expected a log facility name or \"-\", got %s", tok.Type))
		}
		p, ok := facilities[strings.ToLower(tok.Lexeme)]
		if !ok {
			return ctx.Fail(diag.Errorf(tok.Range, "unknown log facility %q", tok.Lexeme))
		}
		*dst = Facility{Priority: p}
		return section.OK
	}
}
