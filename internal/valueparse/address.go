// Package valueparse implements the typed leaf value parsers the
// grammar needs: string, string-from-file, bool, unsigned/int,
// address, port, log facility/level, protocol-disable bitset, regex,
// and token-list. Each is a section.HandlerFunc-shaped
// function demanding a specific token kind from the lexer and writing
// into a typed destination.
package valueparse

import (
	"net"
	"strconv"

	"github.com/poundproxy/poundcfg/internal/diag"
	"github.com/poundproxy/poundcfg/internal/lexer"
	"github.com/poundproxy/poundcfg/internal/section"
)

// Family is the resolved address family.
type Family int

const (
	AFUnspec Family = iota
	AFInet
	AFInet6
	AFUnix
)

// UnixPathMax bounds UNIX-domain socket paths.
const UnixPathMax = lexer.UnixPathMax

// Address is the resolved host+optional-port carried by backends,
// HAports, and listeners.
type Address struct {
	Family     Family
	IP         net.IP
	Host       string // original hostname/literal, preserved for diagnostics
	Port       uint16
	UnixPath   string
	HasAddress bool
	HasPort    bool
}

// resolveHost is swappable so hostname resolution can be faked; the
// dnsEnabled flag threaded in from the global feature toggle gates
// whether it runs at all.
var resolveHost = net.LookupHost

// AssignAddress demands an IDENT/LITERAL/STRING token, resolves it as
// a hostname or numeric IP, and falls back to a UNIX-domain path if
// resolution fails.
func AssignAddress(dst *Address, dnsEnabled bool) section.HandlerFunc {
	return func(ctx *section.Context, target any) section.Result {
		tok, err := nextValueToken(ctx)
		if err != nil {
			return ctx.Fail(err)
		}
		if dst.HasAddress {
			return ctx.Fail(diag.Errorf(tok.Range, "Address: duplicate Address statement"))
		}
		if !isWordLike(tok.Type) {
			return ctx.Fail(diag.Errorf(tok.Range, "Address: expected a hostname or path, got %s", tok.Type))
		}

		lexeme := tok.Lexeme

		if ip := net.ParseIP(lexeme); ip != nil {
			*dst = Address{Family: familyOf(ip), IP: ip, Host: lexeme, HasAddress: true}
			return section.OK
		}

		if dnsEnabled {
			if addrs, err := resolveHost(lexeme); err == nil && len(addrs) > 0 {
				ip := net.ParseIP(addrs[0])
				*dst = Address{Family: familyOf(ip), IP: ip, Host: lexeme, HasAddress: true}
				return section.OK
			}
		}

		if len(lexeme) > UnixPathMax {
			return ctx.Fail(diag.Errorf(tok.Range, "Address: UNIX path %q exceeds maximum length %d", lexeme, UnixPathMax))
		}
		*dst = Address{Family: AFUnix, UnixPath: lexeme, Host: lexeme, HasAddress: true}
		return section.OK
	}
}

func familyOf(ip net.IP) Family {
	if ip == nil {
		return AFUnspec
	}
	if ip.To4() != nil {
		return AFInet
	}
	return AFInet6
}

func isWordLike(t lexer.TokenType) bool {
	return t == lexer.IDENT || t == lexer.LITERAL || t == lexer.STRING
}

func nextValueToken(ctx *section.Context) (lexer.Token, error) {
	return ctx.Lex.Next()
}

// AssignPort demands an IDENT/NUMBER token, resolves it as a service
// name or numeric port, and requires a prior Address of an INET/INET6
// family.
func AssignPort(dst *Address, dnsEnabled bool) section.HandlerFunc {
	return func(ctx *section.Context, target any) section.Result {
		tok, err := nextValueToken(ctx)
		if err != nil {
			return ctx.Fail(err)
		}
		if !dst.HasAddress {
			return ctx.Fail(diag.Errorf(tok.Range, "Port: Address statement must precede Port"))
		}
		if dst.Family != AFInet && dst.Family != AFInet6 {
			return ctx.Fail(diag.Errorf(tok.Range, "Port: cannot set a port on a UNIX-domain address"))
		}
		if dst.HasPort {
			return ctx.Fail(diag.Errorf(tok.Range, "Port: duplicate Port statement"))
		}

		switch tok.Type {
		case lexer.NUMBER:
			n, err := strconv.ParseUint(tok.Lexeme, 10, 16)
			if err != nil {
				return ctx.Fail(diag.Errorf(tok.Range, "Port: invalid port number %q", tok.Lexeme))
			}
			dst.Port = uint16(n)
		case lexer.IDENT:
			if !dnsEnabled {
				return ctx.Fail(diag.Errorf(tok.Range, "Port: service names require DNS to be enabled; use a numeric port"))
			}
			p, err := net.LookupPort("tcp", tok.Lexeme)
			if err != nil {
				return ctx.Fail(diag.Errorf(tok.Range, "Port: cannot resolve service %q: %v", tok.Lexeme, err))
			}
			dst.Port = uint16(p)
		default:
			return ctx.Fail(diag.Errorf(tok.Range, "Port: expected a port number or service name, got %s", tok.Type))
		}

		dst.HasPort = true
		return section.OK
	}
}
