package poundcfg

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poundproxy/poundcfg/internal/config"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pound.cfg")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// writeSelfSignedCert writes a combined cert+key PEM file (Pound's own
// Cert convention, per internal/semantic/tls.go) for cn, returning its
// path.
func writeSelfSignedCert(t *testing.T, dir, name, cn string) string {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn},
		DNSNames:     []string{cn},
		NotBefore:    time.Unix(0, 0),
		NotAfter:     time.Unix(0, 0).Add(100 * 365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	keyBytes, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, pem.Encode(f, &pem.Block{Type: "CERTIFICATE", Bytes: der}))
	require.NoError(t, pem.Encode(f, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes}))
	return path
}

// A minimal HTTP listener with one service and one backend: priority
// defaults to 5, so TotPri == AbsPri == 5.
func TestLoadMinimalHTTPListener(t *testing.T) {
	path := writeConfig(t, `
ListenHTTP
  Address 127.0.0.1
  Port 8080
  Service
    Backend
      Address 127.0.0.1
      Port 9000
    End
  End
End
`)
	g, err := Load(path, Options{DNSEnabled: true})
	require.NoError(t, err)
	require.Len(t, g.Listeners, 1)

	l := g.Listeners[0]
	require.False(t, l.IsHTTPS)
	require.Equal(t, uint16(8080), l.Address.Port)
	require.Equal(t, config.RewriteDefault, l.Rewrite)
	require.NotNil(t, l.Verb)
	require.True(t, l.Verb.MatchString("GET /foo HTTP/1.1"))
	require.False(t, l.Verb.MatchString("PUT /foo HTTP/1.1"))

	require.Len(t, l.Services, 1)
	svc := l.Services[0]
	require.Len(t, svc.Backends, 1)
	b := svc.Backends[0]
	require.Equal(t, config.DefaultBackendPriority, b.Priority)
	require.Equal(t, uint16(9000), b.Address.Port)
	require.Equal(t, 5, svc.TotPri)
	require.Equal(t, 5, svc.AbsPri)
}

// A COOKIE session synthesizes the start/pattern extraction regexes.
func TestLoadCookieSession(t *testing.T) {
	path := writeConfig(t, `
ListenHTTP
  Address 127.0.0.1
  Port 8080
  Service "s"
    Session
      Type COOKIE
      ID "JSESSIONID"
      TTL 300
    End
    Backend
      Address 10.0.0.1
      Port 80
    End
  End
End
`)
	g, err := Load(path, Options{DNSEnabled: false})
	require.NoError(t, err)

	svc := g.Listeners[0].Services[0]
	require.Equal(t, "s", svc.Name)
	require.Equal(t, config.SessionCookie, svc.Session.Type)
	require.Equal(t, 300*time.Second, svc.Session.TTL)
	require.NotNil(t, svc.Session.SessStart)
	require.NotNil(t, svc.Session.SessPattern)
	require.True(t, svc.Session.SessStart.MatchString("Cookie: foo; JSESSIONID=abc"))
	// CompileRegex always prepends its (?s) / (?i) flags, so the
	// compiled pattern's String() carries them too.
	require.Equal(t, "(?s)(?i)([^;]*)", svc.Session.SessPattern.String())
}

// Redirect with an explicit status code; a bare "/" path is stripped
// from the stored URL.
func TestLoadRedirectExplicitCode(t *testing.T) {
	path := writeConfig(t, `
ListenHTTP
  Address 127.0.0.1
  Port 8080
  Service
    Redirect 307 "https://example.org/"
  End
End
`)
	g, err := Load(path, Options{DNSEnabled: false})
	require.NoError(t, err)

	svc := g.Listeners[0].Services[0]
	require.Len(t, svc.Backends, 1)
	b := svc.Backends[0]
	require.Equal(t, config.BackendRedirect, b.Kind)
	require.Equal(t, 307, b.RedirectCode)
	require.Equal(t, "https://example.org", b.RedirectURL)
	require.True(t, b.Alive)
	require.Equal(t, 1, b.Priority)
}

// An HTTPS listener with two certs gets SNI dispatch installed on the
// first context only.
func TestLoadHTTPSWithSNI(t *testing.T) {
	dir := t.TempDir()
	certA := writeSelfSignedCert(t, dir, "a.pem", "a.example.org")
	certB := writeSelfSignedCert(t, dir, "b.pem", "b.example.org")

	path := filepath.Join(dir, "pound.cfg")
	content := `
ListenHTTPS
  Address 0.0.0.0
  Port 443
  Cert "` + certA + `"
  Cert "` + certB + `"
  Service
    Backend
      Address 127.0.0.1
      Port 8080
    End
  End
End
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	g, err := Load(path, Options{DNSEnabled: false})
	require.NoError(t, err)

	l := g.Listeners[0]
	require.True(t, l.IsHTTPS)
	require.Len(t, l.TLSContexts, 2)
	require.Equal(t, "a.example.org", l.TLSContexts[0].CN)
	require.Equal(t, "b.example.org", l.TLSContexts[1].CN)
	require.NotNil(t, l.TLSContexts[0].Config.GetConfigForClient)
	require.Nil(t, l.TLSContexts[1].Config.GetConfigForClient)
}

// A bad boolean is a parse failure naming the accepted literals.
func TestLoadBadBoolean(t *testing.T) {
	path := writeConfig(t, `
ListenHTTP
  Address 127.0.0.1
  Port 8080
  Service
    Disabled maybe
  End
End
`)
	_, err := Load(path, Options{DNSEnabled: false})
	require.Error(t, err)
	require.Contains(t, err.Error(), "not a boolean value")
}

// Including the currently-open file is rejected.
func TestLoadIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.cfg")
	require.NoError(t, os.WriteFile(path, []byte(`Include "main.cfg"`+"\n"), 0o644))

	_, err := Load(path, Options{DNSEnabled: false})
	require.Error(t, err)
	require.Contains(t, err.Error(), "already included (at top level)")
}

// An empty Service parses and warns rather than failing.
func TestLoadEmptyServiceWarnsNotFails(t *testing.T) {
	path := writeConfig(t, `
ListenHTTP
  Address 127.0.0.1
  Port 8080
  Service
  End
End
`)
	g, err := Load(path, Options{DNSEnabled: false})
	require.NoError(t, err)
	require.Empty(t, g.Listeners[0].Services[0].Backends)
}

// A top-level Service section builds a global service, shared across
// listeners, through the same machinery as a nested one.
func TestLoadTopLevelService(t *testing.T) {
	path := writeConfig(t, `
Service "global"
  URL "^/shared/.*"
  Backend
    Address 10.0.0.5
    Port 7000
  End
End
ListenHTTP
  Address 127.0.0.1
  Port 8080
End
`)
	g, err := Load(path, Options{DNSEnabled: false})
	require.NoError(t, err)

	require.Len(t, g.Services, 1)
	svc := g.Services[0]
	require.Equal(t, "global", svc.Name)
	require.Len(t, svc.URLMatchers, 1)
	require.True(t, svc.URLMatchers[0].MatchString("/shared/x"))
	require.Len(t, svc.Backends, 1)
	require.Equal(t, uint16(7000), svc.Backends[0].Address.Port)
	require.Equal(t, 5, svc.TotPri)
	require.Empty(t, g.Listeners[0].Services)
}

// A defective top-level Service (bad session) fails the whole load.
func TestLoadTopLevelServiceSessionValidated(t *testing.T) {
	path := writeConfig(t, `
Service
  Session
    Type COOKIE
    TTL 300
  End
End
ListenHTTP
  Address 127.0.0.1
  Port 8080
End
`)
	_, err := Load(path, Options{DNSEnabled: false})
	require.Error(t, err)
	require.Contains(t, err.Error(), "Session ID not defined")
}

// Every listener needs an Address, and an INET listener a Port too.
func TestLoadRequiresListenerAddressAndPort(t *testing.T) {
	path := writeConfig(t, `
ListenHTTP
  Address 127.0.0.1
  Service
    Backend
      Address 127.0.0.1
      Port 9000
    End
  End
End
`)
	_, err := Load(path, Options{DNSEnabled: false})
	require.Error(t, err)
}

// Final validation requires at least one listener.
func TestLoadRequiresAtLeastOneListener(t *testing.T) {
	path := writeConfig(t, "User \"nobody\"\n")
	_, err := Load(path, Options{DNSEnabled: false})
	require.Error(t, err)
}

// Include splices a file at the statement position and top-level
// keywords set global fields.
func TestLoadIncludeAndGlobals(t *testing.T) {
	dir := t.TempDir()
	included := filepath.Join(dir, "listeners.cfg")
	require.NoError(t, os.WriteFile(included, []byte(`
ListenHTTP
  Address 127.0.0.1
  Port 8080
  Service
    Backend
      Address 127.0.0.1
      Port 9000
    End
  End
End
`), 0o644))

	main := filepath.Join(dir, "main.cfg")
	require.NoError(t, os.WriteFile(main, []byte(`
LogLevel 3
IgnoreCase 1
Include "listeners.cfg"
`), 0o644))

	g, err := Load(main, Options{DNSEnabled: false})
	require.NoError(t, err)
	require.Equal(t, 3, g.LogLevel)
	require.True(t, g.IgnoreCase)
	require.Len(t, g.Listeners, 1)
}

// Parsing the same file twice with two fresh parser instances yields
// structurally identical trees.
func TestLoadIsDeterministic(t *testing.T) {
	path := writeConfig(t, `
IgnoreCase 1
ListenHTTP
  Address 127.0.0.1
  Port 8080
  Service "svc"
    URL "^/api/.*"
    Backend
      Address 127.0.0.1
      Port 9000
      Priority 7
    End
  End
End
`)
	g1, err := Load(path, Options{DNSEnabled: false})
	require.NoError(t, err)
	g2, err := Load(path, Options{DNSEnabled: false})
	require.NoError(t, err)

	require.Equal(t, len(g1.Listeners), len(g2.Listeners))
	l1, l2 := g1.Listeners[0], g2.Listeners[0]
	require.Equal(t, l1.Address, l2.Address)
	require.Equal(t, len(l1.Services), len(l2.Services))
	s1, s2 := l1.Services[0], l2.Services[0]
	require.Equal(t, s1.Name, s2.Name)
	require.Equal(t, s1.TotPri, s2.TotPri)
	require.Equal(t, s1.AbsPri, s2.AbsPri)
	require.Equal(t, s1.URLMatchers[0].String(), s2.URLMatchers[0].String())
	require.Equal(t, s1.Backends[0].Priority, s2.Backends[0].Priority)
}
