// Diagnostic sink: formats a location-prefixed message, logs it, and
// (for errors) returns a *Error so failure propagation is just Go's
// ordinary "if err != nil { return err }". A diagnostic never aborts
// by itself; it is logged and handed back for the caller to unwind.
package diag

import (
	"errors"
	"fmt"

	"github.com/poundproxy/poundcfg/internal/strbuf"
	"github.com/sirupsen/logrus"
)

// Log is the package-level diagnostic sink. cmd/poundcfg rewires its
// output (syslog via srslog, and/or stderr) at startup; tests leave it
// at the default (stderr, info level) or redirect it explicitly.
var Log = logrus.New()

// Error is a diagnostic with an attached source range. It satisfies
// the standard error interface.
type Error struct {
	Rng     Range
	Message string
}

func (e *Error) Error() string {
	return e.Rng.String() + ": " + e.Message
}

// Errorf composes a message, logs it at Error level, and returns a
// *Error anchored at rng.
func Errorf(rng Range, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	Log.WithFields(logrus.Fields{"range": rng.String()}).Error(msg)
	return &Error{Rng: rng, Message: msg}
}

// ErrorAt is Errorf for a single point rather than a range.
func ErrorAt(pt Point, format string, args ...any) error {
	return Errorf(NewRange(pt), format, args...)
}

// Warnf logs a non-fatal diagnostic at Warn level. Warnings never
// abort parsing, so Warnf returns nothing.
func Warnf(rng Range, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	Log.WithFields(logrus.Fields{"range": rng.String()}).Warn(msg)
}

// RegexError wraps a regular-expression compilation failure, echoing
// the offending source expression on a second line.
func RegexError(rng Range, expr string, cause error) error {
	msg := fmt.Sprintf("invalid regular expression: %v\n\t%q", cause, expr)
	Log.WithFields(logrus.Fields{"range": rng.String()}).Error(msg)
	return &Error{Rng: rng, Message: msg}
}

// TLSError wraps one or more TLS-library failures, emitting one line
// per underlying cause.
func TLSError(rng Range, causes ...error) error {
	var buf strbuf.Buffer
	buf.WriteString("TLS error")
	for _, c := range causes {
		if c == nil {
			continue
		}
		buf.WriteString("\n\t")
		buf.WriteString(c.Error())
		for u := errors.Unwrap(c); u != nil; u = errors.Unwrap(u) {
			buf.WriteString("\n\t")
			buf.WriteString(u.Error())
		}
	}
	msg := buf.String()
	Log.WithFields(logrus.Fields{"range": rng.String()}).Error(msg)
	return &Error{Rng: rng, Message: msg}
}
