// Package semantic implements the semantic builders: Backend,
// Service, Session, ACME service, Redirect, Listener (HTTP/HTTPS),
// and the TLS/SNI machinery they share. Each section's keyword table
// drives construction directly; there is no separate AST stage —
// parsing and semantic construction are one pass.
package semantic

import (
	"crypto/tls"
	"time"

	"github.com/poundproxy/poundcfg/internal/config"
	"github.com/poundproxy/poundcfg/internal/diag"
	"github.com/poundproxy/poundcfg/internal/lexer"
	"github.com/poundproxy/poundcfg/internal/section"
	"github.com/poundproxy/poundcfg/internal/valueparse"
)

// backendBuildState tracks the section's mono-shot flags:
// address-present and tls-started.
type backendBuildState struct {
	backend    *config.Backend
	dnsEnabled bool
	tlsStarted bool
}

// BackendTable builds the keyword table for a Backend or Emergency
// section, seeded with the surrounding section's defaults.
func BackendTable(dnsEnabled bool) section.Table {
	return section.Table{
		{Keyword: "Address", Handler: wrapBackend(func(st *backendBuildState, ctx *section.Context) section.Result {
			return valueparse.AssignAddress(&st.backend.Address, st.dnsEnabled)(ctx, nil)
		})},
		{Keyword: "Port", Handler: wrapBackend(func(st *backendBuildState, ctx *section.Context) section.Result {
			return valueparse.AssignPort(&st.backend.Address, st.dnsEnabled)(ctx, nil)
		})},
		{Keyword: "Priority", Handler: wrapBackend(func(st *backendBuildState, ctx *section.Context) section.Result {
			return valueparse.AssignIntRange(&st.backend.Priority, 0, config.MaxBackendPriority)(ctx, nil)
		})},
		{Keyword: "TimeOut", Handler: wrapBackend(handleBackendTimeout)},
		{Keyword: "WSTimeOut", Handler: wrapBackend(handleBackendWSTimeout)},
		{Keyword: "ConnTO", Handler: wrapBackend(handleBackendConnTO)},
		{Keyword: "HAport", Handler: wrapBackend(handleHAport)},
		{Keyword: "HTTPS", Handler: wrapBackend(handleBackendHTTPS)},
		{Keyword: "Cert", Handler: wrapBackend(handleBackendCert)},
		{Keyword: "Ciphers", Handler: wrapBackend(handleBackendCiphers)},
		{Keyword: "Disable", Handler: wrapBackend(handleBackendDisable)},
		{Keyword: "End", Handler: wrapBackend(handleBackendEnd)},
	}
}

// handleBackendEnd validates the address block before closing the
// section, the same check the listener gets in validate.go.
func handleBackendEnd(st *backendBuildState, ctx *section.Context) section.Result {
	if !st.backend.Address.HasAddress {
		return ctx.Fail(diag.Errorf(ctx.Range, "Backend: missing Address declaration"))
	}
	return section.End
}

func wrapBackend(f func(st *backendBuildState, ctx *section.Context) section.Result) section.HandlerFunc {
	return func(ctx *section.Context, target any) section.Result {
		st := target.(*backendBuildState)
		return f(st, ctx)
	}
}

func handleBackendTimeout(st *backendBuildState, ctx *section.Context) section.Result {
	var seconds int
	res := valueparse.AssignInt(&seconds, 32)(ctx, nil)
	if res == section.OK {
		st.backend.RequestTimeout = time.Duration(seconds) * time.Second
	}
	return res
}

func handleBackendWSTimeout(st *backendBuildState, ctx *section.Context) section.Result {
	var seconds int
	res := valueparse.AssignInt(&seconds, 32)(ctx, nil)
	if res == section.OK {
		st.backend.WSTimeout = time.Duration(seconds) * time.Second
	}
	return res
}

func handleBackendConnTO(st *backendBuildState, ctx *section.Context) section.Result {
	var seconds int
	res := valueparse.AssignInt(&seconds, 32)(ctx, nil)
	if res == section.OK {
		st.backend.ConnectTimeout = time.Duration(seconds) * time.Second
	}
	return res
}

// handleHAport accepts either "address port" or a bare "port"; the
// single-argument form inherits the backend's main address.
func handleHAport(st *backendBuildState, ctx *section.Context) section.Result {
	tok, err := ctx.Lex.Next()
	if err != nil {
		return ctx.Fail(err)
	}
	ctx.Lex.PushBack(tok)

	ha := st.backend.Address // copy: inherits family/host by default

	// A bare NUMBER argument is the single-argument "port" form; a
	// hostname/IP/UNIX-path argument is the two-argument "address
	// port" form. The explicit form starts from a fresh Address
	// rather than the inherited copy, since AssignAddress rejects a
	// second Address onto an already-populated destination.
	if tok.Type != lexer.NUMBER {
		ha = valueparse.Address{}
		if res := valueparse.AssignAddress(&ha, st.dnsEnabled)(ctx, nil); res != section.OK {
			return res
		}
	}
	// HAport's own port is independent of whatever port the backend's
	// main Address statement already set; clear HasPort so AssignPort's
	// duplicate check applies only to a second HAport port argument.
	ha.HasPort = false
	if res := valueparse.AssignPort(&ha, st.dnsEnabled)(ctx, nil); res != section.OK {
		return res
	}
	st.backend.HAport = &ha
	return section.OK
}

// handleBackendHTTPS starts a client-mode TLS context for upstream
// connections, with renegotiation disabled. A backend that declares
// HTTPS and never declares Cert is accepted and keeps this context
// with no client certificate.
func handleBackendHTTPS(st *backendBuildState, ctx *section.Context) section.Result {
	st.backend.TLS = &tls.Config{
		MinVersion:    tls.VersionTLS12,
		Renegotiation: tls.RenegotiateNever,
	}
	st.tlsStarted = true
	return section.OK
}

func handleBackendCert(st *backendBuildState, ctx *section.Context) section.Result {
	if !st.tlsStarted {
		tok, _ := ctx.Lex.Next()
		return ctx.Fail(diag.Errorf(tok.Range, "Cert: HTTPS must be declared before Cert in a Backend block"))
	}
	var certFile string
	res := valueparse.AssignString(&certFile)(ctx, nil)
	if res != section.OK {
		return res
	}
	cert, err := tls.LoadX509KeyPair(certFile, certFile)
	if err != nil {
		return ctx.Fail(diag.TLSError(ctx.Range, err))
	}
	st.backend.TLS.Certificates = []tls.Certificate{cert}
	return section.OK
}

func handleBackendCiphers(st *backendBuildState, ctx *section.Context) section.Result {
	if !st.tlsStarted {
		tok, _ := ctx.Lex.Next()
		return ctx.Fail(diag.Errorf(tok.Range, "Ciphers: HTTPS must be declared before Ciphers in a Backend block"))
	}
	var ciphers string
	res := valueparse.AssignString(&ciphers)(ctx, nil)
	if res != section.OK {
		return res
	}
	st.backend.TLS.CipherSuites = ResolveCipherSuites(ciphers)
	return section.OK
}

func handleBackendDisable(st *backendBuildState, ctx *section.Context) section.Result {
	if !st.tlsStarted {
		tok, _ := ctx.Lex.Next()
		return ctx.Fail(diag.Errorf(tok.Range, "Disable: HTTPS must be declared before Disable in a Backend block"))
	}
	res := valueparse.AssignProtocolDisable(&st.backend.TLSDisableBits)(ctx, nil)
	if res == section.OK {
		st.backend.TLS.MinVersion = MinVersionFromDisableBits(st.backend.TLSDisableBits)
	}
	return res
}

// NewBackend returns a Backend pre-populated with the surrounding
// section's timeout defaults.
func NewBackend(connTO, reqTO, wsTO time.Duration) *config.Backend {
	return &config.Backend{
		Kind:           config.BackendReal,
		Priority:       config.DefaultBackendPriority,
		Alive:          true,
		ConnectTimeout: connTO,
		RequestTimeout: reqTO,
		WSTimeout:      wsTO,
	}
}

// NewEmergencyBackend returns a Backend for the Emergency keyword,
// whose timeouts are fixed regardless of global configuration.
func NewEmergencyBackend() *config.Backend {
	return NewBackend(config.EmergencyTimeout, config.EmergencyTimeout, config.EmergencyTimeout)
}
