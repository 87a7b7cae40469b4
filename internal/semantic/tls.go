// TLS assembly: per-certificate context construction with CN/SAN
// extraction for SNI, and cipher/protocol configuration shared by
// both Backend-side client contexts and Listener-side server
// contexts.
package semantic

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"math/big"
	"os"

	"github.com/poundproxy/poundcfg/internal/config"
	"github.com/poundproxy/poundcfg/internal/diag"
	"github.com/poundproxy/poundcfg/internal/valueparse"
)

// BuildServerContext loads a certificate chain + key from certFile
// (both PEM blocks concatenated in one file) and extracts the CN/SANs
// needed for SNI dispatch.
func BuildServerContext(certFile string) (*config.TLSContext, error) {
	cert, err := tls.LoadX509KeyPair(certFile, certFile)
	if err != nil {
		return nil, err
	}

	var leaf *x509.Certificate
	if cert.Leaf != nil {
		leaf = cert.Leaf
	} else if len(cert.Certificate) > 0 {
		leaf, err = x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return nil, err
		}
	}

	tc := &config.TLSContext{
		Config: &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{cert},
		},
	}
	if leaf != nil {
		tc.CN = leaf.Subject.CommonName
		tc.SANs = append([]string(nil), leaf.DNSNames...)
	}
	return tc, nil
}

// LoadCAPool reads a PEM bundle of CA certificates from path.
func LoadCAPool(path string) (*x509.CertPool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if ok := pool.AppendCertsFromPEM(b); !ok {
		return nil, diag.TLSError(diag.Range{}, &certPoolError{path: path})
	}
	return pool, nil
}

type certPoolError struct{ path string }

func (e *certPoolError) Error() string { return "no CA certificates found in " + e.path }

// LoadRevocationList reads a CRLlist file (PEM or raw DER) and returns
// the set of revoked serial numbers.
func LoadRevocationList(path string) (map[string]bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	der := b
	if block, _ := pem.Decode(b); block != nil {
		der = block.Bytes
	}
	list, err := x509.ParseRevocationList(der)
	if err != nil {
		return nil, err
	}
	revoked := make(map[string]bool, len(list.RevokedCertificateEntries))
	for _, e := range list.RevokedCertificateEntries {
		revoked[e.SerialNumber.String()] = true
	}
	return revoked, nil
}

// VerifyNotRevoked builds a VerifyPeerCertificate callback rejecting
// any presented chain in which some certificate's serial number
// appears in revoked.
func VerifyNotRevoked(revoked map[string]bool) func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		for _, raw := range rawCerts {
			cert, err := x509.ParseCertificate(raw)
			if err != nil {
				continue
			}
			if revoked[serialString(cert.SerialNumber)] {
				return diag.TLSError(diag.Range{}, &revokedError{serial: cert.SerialNumber})
			}
		}
		return nil
	}
}

func serialString(n *big.Int) string {
	if n == nil {
		return ""
	}
	return n.String()
}

type revokedError struct{ serial *big.Int }

func (e *revokedError) Error() string { return "certificate serial " + e.serial.String() + " is revoked" }

// ApplyVerifyMode configures client-certificate verification on a
// server-side *tls.Config. Modes: none, optional, require-and-verify,
// optional without CA verification.
func ApplyVerifyMode(cfg *tls.Config, mode config.ClientCertMode, caPool *x509.CertPool, depth int) {
	switch mode {
	case config.ClientCertNone:
		cfg.ClientAuth = tls.NoClientCert
	case config.ClientCertOptional:
		cfg.ClientAuth = tls.VerifyClientCertIfGiven
		cfg.ClientCAs = caPool
	case config.ClientCertRequire:
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
		cfg.ClientCAs = caPool
	case config.ClientCertOptionalNoCA:
		cfg.ClientAuth = tls.RequestClientCert
	}
}

// MinVersionFromDisableBits translates the cumulative protocol-disable
// bitmask to the lowest TLS version crypto/tls can still negotiate.
// crypto/tls never negotiates SSLv2/SSLv3/TLS 1.0/1.1 as a server
// regardless of this bitmask; a backend still stores the bitmask
// verbatim (Backend.TLSDisableBits), but only the TLS 1.2 vs TLS 1.3
// distinction can actually be expressed here.
func MinVersionFromDisableBits(bits uint) uint16 {
	if bits&valueparse.DisableTLSv1_2 != 0 {
		return tls.VersionTLS13
	}
	return tls.VersionTLS12
}

// ResolveCipherSuites maps a Ciphers string (a colon-separated list,
// matching the OpenSSL cipher-list convention Pound's config
// originally passed straight through) to the subset crypto/tls
// recognizes by name. Unrecognized entries are skipped rather than
// rejected: crypto/tls' own default suite selection already picks
// a safe modern set, and the OpenSSL cipher-string mini-language
// (exclusions, "HIGH", "!aNULL", ...) has no equivalent in Go's API.
func ResolveCipherSuites(spec string) []uint16 {
	var out []uint16
	for _, suite := range tls.CipherSuites() {
		for _, name := range []string{suite.Name} {
			if containsFold(spec, name) {
				out = append(out, suite.ID)
			}
		}
	}
	return out
}

func containsFold(haystack, needle string) bool {
	hl, nl := len(haystack), len(needle)
	if nl == 0 || nl > hl {
		return false
	}
	for i := 0; i+nl <= hl; i++ {
		if equalFold(haystack[i:i+nl], needle) {
			return true
		}
	}
	return false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
