// Package config holds the in-memory configuration tree produced by
// parsing: backends, services, listeners, and global settings. The
// top-level driver that builds it is poundcfg.Load, at the module
// root. Global is the single owning tree, built once and handed off
// immutable.
package config

import (
	"crypto/tls"
	"regexp"
	"time"

	"github.com/poundproxy/poundcfg/internal/valueparse"
	"github.com/RackSec/srslog"
)

// BackendKind tags what a Backend actually is.
type BackendKind int

const (
	BackendReal BackendKind = iota
	BackendRedirect
	BackendACME
)

// SessionType enumerates the sticky-session strategies.
type SessionType int

const (
	SessionNone SessionType = iota
	SessionIP
	SessionCookie
	SessionURL
	SessionParm
	SessionBasic
	SessionHeader
)

// Backend is one upstream target: a real server, a redirect template,
// or an ACME challenge directory.
type Backend struct {
	Kind BackendKind

	Address valueparse.Address
	HAport  *valueparse.Address // optional high-availability probe address

	Priority int // 0..9, default 5
	Disabled bool
	Alive    bool

	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	WSTimeout      time.Duration

	TLS            *tls.Config // set when the backend declares HTTPS
	TLSDisableBits uint

	// Redirect-kind fields.
	RedirectURL  string
	RedirectCode int

	// ACME-kind fields.
	URL string
}

// TLSContext is one certificate's server-side TLS material plus the
// identity fields used for SNI dispatch.
type TLSContext struct {
	Config *tls.Config
	CN     string
	SANs   []string
}

// Session holds a service's sticky-routing configuration, including
// the two regexes synthesized from Type and ID.
type Session struct {
	Type        SessionType
	ID          string
	TTL         time.Duration
	SessStart   *regexp.Regexp
	SessPattern *regexp.Regexp
}

// Service is a classification rule set plus its backend pool.
const ServiceNameMax = 63

type Service struct {
	Name string // truncated to ServiceNameMax

	URLMatchers    []*regexp.Regexp
	HeadersRequire []*regexp.Regexp
	HeadersDeny    []*regexp.Regexp

	Backends  []*Backend
	Emergency *Backend

	Session Session

	Disabled bool

	TotPri int // sum over alive, enabled backends
	AbsPri int // sum over all backends
}

// RewriteMode is the listener's Location-rewrite behavior.
type RewriteMode int

const (
	RewriteNone RewriteMode = iota
	RewriteDefault
	RewriteAggressive
)

// ErrorBodies holds the custom response bodies for the listed status
// codes.
type ErrorBodies struct {
	Err404 string
	Err413 string
	Err414 string
	Err500 string
	Err501 string
	Err503 string
}

// ClientCertMode is the HTTPS listener's client-certificate verify
// mode.
type ClientCertMode int

const (
	ClientCertNone ClientCertMode = iota
	ClientCertOptional
	ClientCertRequire
	ClientCertOptionalNoCA
)

// NoHTTPS11Mode controls HTTP/1.1 downgrade behavior over TLS
// (0, 1, or 2).
type NoHTTPS11Mode int

// Listener is a bound socket plus the protocol semantics layered on
// top of it.
type Listener struct {
	Address    valueparse.Address
	ExternalFD int // >=0 when populated via SocketFrom; -1 otherwise

	ClientTimeout time.Duration
	URLFilter     *regexp.Regexp
	Errors        ErrorBodies
	MaxRequest    int64
	HeaderRemove  []*regexp.Regexp
	AddHeader     string

	LogLevel           int
	Rewrite            RewriteMode
	RewriteDestination bool

	Verb *regexp.Regexp // request-line accept regex (xHTTP set)

	Services []*Service

	IsHTTPS bool

	TLSContexts              []*TLSContext
	ClientCert               ClientCertMode
	CertDepth                int
	NoHTTPS11                NoHTTPS11Mode
	HonorCipherOrder         bool
	AllowClientRenegotiation int // 0, 1, or 2
}

// Global is the whole compiled configuration.
type Global struct {
	User, Group, Chroot string
	Daemonize           bool
	Supervisor          bool
	Threads             int
	Grace               time.Duration
	AliveInterval       time.Duration

	LogFacility valueparse.Facility
	LogLevel    int
	Anonymise   bool

	ControlSocket string
	DNSEnabled    bool

	IgnoreCase bool

	// Section-wide defaults inherited by Backend blocks that don't
	// override them.
	ClientTimeout  time.Duration
	BackendTimeout time.Duration
	WSTimeout      time.Duration
	ConnectTimeout time.Duration

	Services  []*Service
	Listeners []*Listener
}

// SyslogPriority exposes the resolved facility for cmd/poundcfg's
// logging setup without that package needing to import srslog itself
// for anything beyond the already-resolved value.
func (g *Global) SyslogPriority() (srslog.Priority, bool) {
	if g.LogFacility.NoSyslog {
		return 0, false
	}
	return g.LogFacility.Priority, true
}
