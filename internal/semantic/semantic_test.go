package semantic

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/poundproxy/poundcfg/internal/config"
	"github.com/poundproxy/poundcfg/internal/intern"
	"github.com/poundproxy/poundcfg/internal/lexer"
	"github.com/poundproxy/poundcfg/internal/section"
	"github.com/stretchr/testify/require"
)

func ctxOn(t *testing.T, content string) *section.Context {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.cfg")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	l := lexer.New(intern.New())
	require.NoError(t, l.OpenRoot(path))
	return &section.Context{Lex: l}
}

// A service name longer than ServiceNameMax is truncated rather than
// rejected, and a warning is emitted.
func TestServiceNameTruncated(t *testing.T) {
	long := strings.Repeat("x", config.ServiceNameMax+20)
	ctx := ctxOn(t, `Name "`+long+`"`+"\nEnd\n")

	st := NewServiceState(true, false, 0, 0, 0)
	_, err := section.Run(ctx, ServiceTable(st), "Service", st)
	require.NoError(t, err)
	require.Len(t, st.service.Name, config.ServiceNameMax)
	require.Equal(t, long[:config.ServiceNameMax], st.service.Name)
}

// TotPri sums only enabled, alive, positive-priority backends;
// AbsPri sums all of them.
func TestServiceFinishAggregatesPriorities(t *testing.T) {
	st := NewServiceState(true, false, 0, 0, 0)
	st.service.Backends = []*config.Backend{
		{Priority: 5, Alive: true, Disabled: false},
		{Priority: 3, Alive: false, Disabled: false}, // not alive: excluded from tot_pri
		{Priority: 2, Alive: true, Disabled: true},   // disabled: excluded from tot_pri
	}
	require.NoError(t, st.Finish())
	require.Equal(t, 5, st.service.TotPri)
	require.Equal(t, 10, st.service.AbsPri)
}

// An empty Service section is accepted with a warning rather than an
// error.
func TestServiceFinishEmptyBackendsIsNotAnError(t *testing.T) {
	st := NewServiceState(true, false, 0, 0, 0)
	require.NoError(t, st.Finish())
	require.Empty(t, st.service.Backends)
}

// ACME service synthesis.
func TestNewACMEServiceURLSubstitution(t *testing.T) {
	svc, err := NewACMEService("/var/www/acme/")
	require.NoError(t, err)
	require.Len(t, svc.Backends, 1)
	require.Equal(t, config.BackendACME, svc.Backends[0].Kind)
	require.Equal(t, "/var/www/acme/$1", svc.Backends[0].URL)
	require.Len(t, svc.URLMatchers, 1)
	require.True(t, svc.URLMatchers[0].MatchString("/.well-known/acme-challenge/abc123"))
}

// Redirect defaults to status 302, and a bare "/" path is stripped.
func TestParseRedirectDefaultCodeAndRootPathStripped(t *testing.T) {
	ctx := ctxOn(t, `"http://example.com/"`+"\n")
	b, res := ParseRedirect(ctx)
	require.Equal(t, section.OK, res)
	require.Equal(t, 302, b.RedirectCode)
	require.Equal(t, "http://example.com", b.RedirectURL)
	require.True(t, b.Alive)
	require.Equal(t, 1, b.Priority)
}

func TestParseRedirectKeepsNonRootPath(t *testing.T) {
	ctx := ctxOn(t, `"http://example.com/foo/bar"`+"\n")
	b, res := ParseRedirect(ctx)
	require.Equal(t, section.OK, res)
	require.Equal(t, "http://example.com/foo/bar", b.RedirectURL)
}

func TestParseRedirectRejectsBadCode(t *testing.T) {
	ctx := ctxOn(t, `999 "http://example.com/"`+"\n")
	_, res := ParseRedirect(ctx)
	require.Equal(t, section.Fail, res)
	require.Contains(t, ctx.Err.Error(), "invalid redirect code")
}

// Session regex synthesis for every session type that has a key to
// extract.
func TestFinishSessionSynthesizesExactPatterns(t *testing.T) {
	for _, tc := range []struct {
		typ       config.SessionType
		id        string
		wantStart string
		wantMatch string
	}{
		{config.SessionCookie, "JSESSIONID", `Cookie[^:]*:.*[ \t]JSESSIONID=`, `([^;]*)`},
		{config.SessionURL, "sid", `[?&]sid=`, `([^&;#]*)`},
		{config.SessionParm, "", `;`, `([^?]*)`},
		{config.SessionBasic, "", `Authorization:[ \t]*Basic[ \t]*`, `([^ \t]*)`},
		{config.SessionHeader, "X-Sess", `X-Sess:[ \t]*`, `([^ \t]*)`},
	} {
		s := &config.Session{Type: tc.typ, ID: tc.id, TTL: 120 * time.Second}
		require.NoError(t, FinishSession(s))
		require.Equal(t, "(?s)(?i)"+tc.wantStart, s.SessStart.String())
		require.Equal(t, "(?s)(?i)"+tc.wantMatch, s.SessPattern.String())
	}
}

func TestFinishSessionIPHasNoPatterns(t *testing.T) {
	s := &config.Session{Type: config.SessionIP, TTL: 120 * time.Second}
	require.NoError(t, FinishSession(s))
	require.Nil(t, s.SessStart)
	require.Nil(t, s.SessPattern)
}

func TestFinishSessionRequiresType(t *testing.T) {
	s := &config.Session{TTL: 120 * time.Second}
	require.Error(t, FinishSession(s))
}

func TestFinishSessionRequiresTTL(t *testing.T) {
	s := &config.Session{Type: config.SessionIP}
	require.Error(t, FinishSession(s))
}

func TestFinishSessionRequiresIDForCookie(t *testing.T) {
	s := &config.Session{Type: config.SessionCookie, TTL: 120 * time.Second}
	require.Error(t, FinishSession(s))
}

// xHTTP verb sets are cumulative across indexes, each matches a whole
// request line, and matching is case-insensitive.
func TestXHTTPRegexSets(t *testing.T) {
	require.True(t, XHTTPRegex(0).MatchString("GET /foo HTTP/1.1"))
	require.False(t, XHTTPRegex(0).MatchString("PUT /foo HTTP/1.1"))
	require.True(t, XHTTPRegex(1).MatchString("PUT /foo HTTP/1.0"))
	require.True(t, XHTTPRegex(1).MatchString("get /foo HTTP/1.1"))
	require.True(t, XHTTPRegex(2).MatchString("PROPFIND /foo HTTP/1.1"))
	require.True(t, XHTTPRegex(3).MatchString("SUBSCRIBE /foo HTTP/1.1"))
	require.True(t, XHTTPRegex(4).MatchString("RPC_IN_DATA /foo HTTP/1.1"))
	require.False(t, XHTTPRegex(3).MatchString("RPC_IN_DATA /foo HTTP/1.1"))
	// out-of-range clamps to index 0, matching the default method set.
	require.Same(t, XHTTPRegex(0), XHTTPRegex(99))
}

// SNI dispatch: wildcard SAN entries must be honored, not just
// prefix/suffix matched.
func TestMatchSNIWildcardSAN(t *testing.T) {
	a := &config.TLSContext{CN: "a.example.org"}
	b := &config.TLSContext{CN: "other", SANs: []string{"*.example.org"}}
	contexts := []*config.TLSContext{a, b}

	require.Same(t, a, MatchSNI(contexts, "a.example.org"))
	require.Same(t, b, MatchSNI(contexts, "foo.example.org"))
	// no match at all falls back to the first context.
	require.Same(t, a, MatchSNI(contexts, "unrelated.net"))
}

func TestMatchSNICaseInsensitive(t *testing.T) {
	a := &config.TLSContext{CN: "Example.ORG"}
	contexts := []*config.TLSContext{a}
	require.Same(t, a, MatchSNI(contexts, "example.org"))
}

// HTTPS must be declared before the other client-TLS statements in a
// Backend block.
func TestBackendHTTPSRequiresPriorDeclaration(t *testing.T) {
	b := NewBackend(0, 0, 0)
	bst := &backendBuildState{backend: b, dnsEnabled: true}
	ctx := ctxOn(t, `"HIGH:!aNULL"`+"\n")
	res := handleBackendCiphers(bst, ctx)
	require.Equal(t, section.Fail, res)
	require.Contains(t, ctx.Err.Error(), "HTTPS must be declared")
}

// A Backend section that never declares an Address fails at End.
func TestBackendEndRequiresAddress(t *testing.T) {
	ctx := ctxOn(t, "Priority 3\nEnd\n")
	bst := &backendBuildState{backend: NewBackend(0, 0, 0), dnsEnabled: true}
	_, err := section.Run(ctx, BackendTable(true), "Backend", bst)
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing Address declaration")
}

func TestBackendEndAcceptsDeclaredAddress(t *testing.T) {
	ctx := ctxOn(t, "Address 127.0.0.1\nPort 9000\nEnd\n")
	bst := &backendBuildState{backend: NewBackend(0, 0, 0), dnsEnabled: true}
	_, err := section.Run(ctx, BackendTable(true), "Backend", bst)
	require.NoError(t, err)
}

// A second Address statement in the same Backend block is rejected
// rather than silently overwriting the first.
func TestBackendRejectsDuplicateAddress(t *testing.T) {
	ctx := ctxOn(t, "Address 127.0.0.1\nAddress 10.0.0.1\nPort 9000\nEnd\n")
	bst := &backendBuildState{backend: NewBackend(0, 0, 0), dnsEnabled: true}
	_, err := section.Run(ctx, BackendTable(true), "Backend", bst)
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate Address statement")
}

// HAport's explicit "address port" form must not trip the
// duplicate-Address check against the backend's own already-populated
// Address (invariant v: HAport's address is independent of the
// backend's).
func TestBackendHAportExplicitAddressNotTreatedAsDuplicate(t *testing.T) {
	ctx := ctxOn(t, "Address 127.0.0.1\nPort 9000\nHAport 10.0.0.2 9001\nEnd\n")
	bst := &backendBuildState{backend: NewBackend(0, 0, 0), dnsEnabled: true}
	_, err := section.Run(ctx, BackendTable(true), "Backend", bst)
	require.NoError(t, err)
	require.NotNil(t, bst.backend.HAport)
	require.Equal(t, "10.0.0.2", bst.backend.HAport.Host)
	require.EqualValues(t, 9001, bst.backend.HAport.Port)
}

// HAport's single-argument "port" form inherits the backend's address.
func TestBackendHAportBareNumberInheritsAddress(t *testing.T) {
	ctx := ctxOn(t, "Address 127.0.0.1\nPort 9000\nHAport 9001\nEnd\n")
	bst := &backendBuildState{backend: NewBackend(0, 0, 0), dnsEnabled: true}
	_, err := section.Run(ctx, BackendTable(true), "Backend", bst)
	require.NoError(t, err)
	require.NotNil(t, bst.backend.HAport)
	require.Equal(t, "127.0.0.1", bst.backend.HAport.Host)
	require.EqualValues(t, 9001, bst.backend.HAport.Port)
}

func TestNewEmergencyBackendUsesFixedTimeouts(t *testing.T) {
	b := NewEmergencyBackend()
	require.Equal(t, config.EmergencyTimeout, b.ConnectTimeout)
	require.Equal(t, config.EmergencyTimeout, b.RequestTimeout)
	require.Equal(t, config.EmergencyTimeout, b.WSTimeout)
	require.True(t, b.Alive)
}
