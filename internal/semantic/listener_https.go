package semantic

import (
	"crypto/tls"
	"crypto/x509"

	"github.com/poundproxy/poundcfg/internal/config"
	"github.com/poundproxy/poundcfg/internal/diag"
	"github.com/poundproxy/poundcfg/internal/section"
	"github.com/poundproxy/poundcfg/internal/valueparse"
)

// httpsBuildState extends listenerBuildState with the TLS-specific
// mono-shot flags and deferred settings that must apply uniformly to
// every TLSContext once the listener closes.
type httpsBuildState struct {
	*listenerBuildState

	certSeen    bool
	cipherSpec  string
	disableBits uint
	caFile      string
	crlFile     string
}

// NewHTTPSListenerState seeds an HTTPS listener the same way
// NewListenerState does, plus IsHTTPS.
func NewHTTPSListenerState(global *config.Global) *httpsBuildState {
	base := NewListenerState(global)
	base.listener.IsHTTPS = true
	return &httpsBuildState{listenerBuildState: base}
}

// ListenHTTPSTable embeds ListenHTTPTable's keywords plus the
// HTTPS-specific ones.
func ListenHTTPSTable(st *httpsBuildState) section.Table {
	table := ListenHTTPTable(st.listenerBuildState)

	// Replace the shared "End" entry so it's still the last one, after
	// appending the HTTPS-only keywords before it.
	table = table[:len(table)-1]

	table = append(table,
		section.Entry{Keyword: "Cert", Handler: func(ctx *section.Context, target any) section.Result {
			var certFile string
			if res := valueparse.AssignString(&certFile)(ctx, nil); res != section.OK {
				return res
			}
			tc, err := BuildServerContext(certFile)
			if err != nil {
				return ctx.Fail(diag.TLSError(ctx.Range, err))
			}
			st.listener.TLSContexts = append(st.listener.TLSContexts, tc)
			st.certSeen = true
			return section.OK
		}},
		section.Entry{Keyword: "ClientCert", Handler: func(ctx *section.Context, target any) section.Result {
			if res := requireCert(st, ctx); res != section.OK {
				return res
			}
			var mode int
			if res := valueparse.AssignIntRange(&mode, 0, 3)(ctx, nil); res != section.OK {
				return res
			}
			st.listener.ClientCert = config.ClientCertMode(mode)
			if mode > 0 {
				var depth int
				res := valueparse.AssignIntRange(&depth, 0, 63)(ctx, nil)
				if res != section.OK {
					return res
				}
				st.listener.CertDepth = depth
			}
			return section.OK
		}},
		section.Entry{Keyword: "Disable", Handler: func(ctx *section.Context, target any) section.Result {
			if res := requireCert(st, ctx); res != section.OK {
				return res
			}
			return valueparse.AssignProtocolDisable(&st.disableBits)(ctx, nil)
		}},
		section.Entry{Keyword: "Ciphers", Handler: func(ctx *section.Context, target any) section.Result {
			if res := requireCert(st, ctx); res != section.OK {
				return res
			}
			return valueparse.AssignString(&st.cipherSpec)(ctx, nil)
		}},
		section.Entry{Keyword: "SSLHonorCipherOrder", Handler: func(ctx *section.Context, target any) section.Result {
			return valueparse.AssignBool(&st.listener.HonorCipherOrder)(ctx, nil)
		}},
		section.Entry{Keyword: "SSLAllowClientRenegotiation", Handler: func(ctx *section.Context, target any) section.Result {
			return valueparse.AssignIntRange(&st.listener.AllowClientRenegotiation, 0, 2)(ctx, nil)
		}},
		section.Entry{Keyword: "CAlist", Handler: func(ctx *section.Context, target any) section.Result {
			if res := requireCert(st, ctx); res != section.OK {
				return res
			}
			return valueparse.AssignString(&st.caFile)(ctx, nil)
		}},
		section.Entry{Keyword: "VerifyList", Handler: func(ctx *section.Context, target any) section.Result {
			if res := requireCert(st, ctx); res != section.OK {
				return res
			}
			return valueparse.AssignString(&st.caFile)(ctx, nil)
		}},
		section.Entry{Keyword: "CRLlist", Handler: func(ctx *section.Context, target any) section.Result {
			if res := requireCert(st, ctx); res != section.OK {
				return res
			}
			return valueparse.AssignString(&st.crlFile)(ctx, nil)
		}},
		section.Entry{Keyword: "NoHTTPS11", Handler: func(ctx *section.Context, target any) section.Result {
			var mode int
			res := valueparse.AssignIntRange(&mode, 0, 2)(ctx, nil)
			if res == section.OK {
				st.listener.NoHTTPS11 = config.NoHTTPS11Mode(mode)
			}
			return res
		}},
		section.Entry{Keyword: "End", Handler: section.EndHandler},
	)

	return table
}

func requireCert(st *httpsBuildState, ctx *section.Context) section.Result {
	if !st.certSeen {
		tok, _ := ctx.Lex.Next()
		return ctx.Fail(diag.Errorf(tok.Range, "Cert must precede all other TLS statements in a Listener block"))
	}
	return section.OK
}

// Finish applies the deferred cipher/protocol/verify settings to every
// TLSContext the listener collected, installs the SNI dispatcher on
// the first context, and loads the CA pool once for every context that
// needs client-certificate verification.
func (st *httpsBuildState) Finish() error {
	contexts := st.listener.TLSContexts
	if len(contexts) == 0 {
		return diag.Errorf(diag.Range{}, "HTTPS listener declares no Cert")
	}

	var caPool *x509.CertPool
	if st.caFile != "" {
		var err error
		caPool, err = LoadCAPool(st.caFile)
		if err != nil {
			return diag.TLSError(diag.Range{}, err)
		}
	}

	var revoked map[string]bool
	if st.crlFile != "" {
		var err error
		revoked, err = LoadRevocationList(st.crlFile)
		if err != nil {
			return diag.TLSError(diag.Range{}, err)
		}
	}

	ciphers := ResolveCipherSuites(st.cipherSpec)
	minVersion := MinVersionFromDisableBits(st.disableBits)

	for i, tc := range contexts {
		if len(ciphers) > 0 {
			tc.Config.CipherSuites = ciphers
		}
		tc.Config.MinVersion = minVersion
		// SSLHonorCipherOrder (st.listener.HonorCipherOrder) has no
		// crypto/tls equivalent: Go's server cipher-suite selection
		// has ignored client preference unconditionally since Go 1.18.
		// The flag is still stored on the listener for fidelity.
		ApplyVerifyMode(tc.Config, st.listener.ClientCert, caPool, st.listener.CertDepth)
		if revoked != nil {
			tc.Config.VerifyPeerCertificate = VerifyNotRevoked(revoked)
		}

		if i == 0 {
			dispatch := contexts
			tc.Config.GetConfigForClient = func(hello *tls.ClientHelloInfo) (*tls.Config, error) {
				return MatchSNI(dispatch, hello.ServerName).Config, nil
			}
		}
	}

	return nil
}
