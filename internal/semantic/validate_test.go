package semantic

import (
	"testing"
	"time"

	"github.com/poundproxy/poundcfg/internal/config"
	"github.com/stretchr/testify/require"
)

// A COOKIE session's start regex must embed the configured ID
// verbatim. FinishSession always synthesizes this, so
// the failure path exercises a hand-built Session whose ID was changed
// after synthesis (e.g. a future mutation bug), confirming
// containsLiteral actually rejects a mismatch instead of passing
// everything through.
func TestValidateSessionPatternsRejectsIDMismatch(t *testing.T) {
	s := &config.Session{Type: config.SessionCookie, ID: "JSESSIONID", TTL: 120 * time.Second}
	require.NoError(t, FinishSession(s))
	s.ID = "OTHERID"

	svc := &config.Service{Name: "s", Session: *s}
	g := &config.Global{Services: []*config.Service{svc}}

	errs := ValidateSessionPatterns(g)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Error(), "sess_start does not embed session ID")
}

func TestValidateSessionPatternsAcceptsMatchingID(t *testing.T) {
	s := &config.Session{Type: config.SessionCookie, ID: "JSESSIONID", TTL: 120 * time.Second}
	require.NoError(t, FinishSession(s))

	svc := &config.Service{Name: "s", Session: *s}
	g := &config.Global{Services: []*config.Service{svc}}

	require.Empty(t, ValidateSessionPatterns(g))
}

// containsLiteral must not treat an empty ID as trivially present: a
// COOKIE/URL/HEADER session always has a non-empty ID (FinishSession
// rejects otherwise), so an empty ID reaching validation indicates a
// bug that should be reported, not masked.
func TestContainsLiteralRejectsEmptyID(t *testing.T) {
	require.False(t, containsLiteral("Cookie[^:]*:.*[ \\t]=", ""))
}
