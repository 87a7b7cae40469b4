// Final validation, run once after the whole config tree is built.
// Each function returns every violation it finds; poundcfg.Load
// surfaces only the first, but the functions stay exhaustive so tests
// can assert on every violation.
package semantic

import (
	"github.com/poundproxy/poundcfg/internal/config"
	"github.com/poundproxy/poundcfg/internal/diag"
	"github.com/poundproxy/poundcfg/internal/valueparse"
)

// ValidateListenerAddresses checks that every listener has an
// address, and that an INET/INET6 listener also has a port.
func ValidateListenerAddresses(g *config.Global) []error {
	var errs []error
	for _, l := range g.Listeners {
		if !l.Address.HasAddress {
			errs = append(errs, diag.Errorf(diag.Range{}, "listener has no Address statement"))
			continue
		}
		if (l.Address.Family == valueparse.AFInet || l.Address.Family == valueparse.AFInet6) && !l.Address.HasPort {
			errs = append(errs, diag.Errorf(diag.Range{}, "listener %s has no Port statement", l.Address.Host))
		}
	}
	return errs
}

// ValidateHTTPSContexts checks that every HTTPS listener has at
// least one TLS context, and that every context has a non-empty CN
// and a well-formed (no empty-string) SAN list.
func ValidateHTTPSContexts(g *config.Global) []error {
	var errs []error
	for _, l := range g.Listeners {
		if !l.IsHTTPS {
			continue
		}
		if len(l.TLSContexts) == 0 {
			errs = append(errs, diag.Errorf(diag.Range{}, "HTTPS listener declares no Cert"))
			continue
		}
		for _, tc := range l.TLSContexts {
			if tc.CN == "" {
				errs = append(errs, diag.Errorf(diag.Range{}, "TLS context has an empty CN"))
			}
			for _, san := range tc.SANs {
				if san == "" {
					errs = append(errs, diag.Errorf(diag.Range{}, "TLS context has a null SAN entry"))
				}
			}
		}
	}
	return errs
}

// ValidateSessionPatterns checks that a COOKIE/URL/HEADER session's
// start regex embeds the configured ID verbatim.
func ValidateSessionPatterns(g *config.Global) []error {
	var errs []error
	for _, svc := range g.Services {
		validateServiceSession(svc, &errs)
	}
	for _, l := range g.Listeners {
		for _, svc := range l.Services {
			validateServiceSession(svc, &errs)
		}
	}
	return errs
}

func validateServiceSession(svc *config.Service, errs *[]error) {
	s := svc.Session
	switch s.Type {
	case config.SessionCookie, config.SessionURL, config.SessionHeader:
	default:
		return
	}
	if s.SessStart == nil || !containsLiteral(s.SessStart.String(), s.ID) {
		*errs = append(*errs, diag.Errorf(diag.Range{}, "service %q: sess_start does not embed session ID %q", svc.Name, s.ID))
	}
}

func containsLiteral(pattern, id string) bool {
	if id == "" {
		return false
	}
	for i := 0; i+len(id) <= len(pattern); i++ {
		if pattern[i:i+len(id)] == id {
			return true
		}
	}
	return false
}

// ValidateServicePriorities checks that TotPri <= AbsPri, and that
// TotPri > 0 implies at least one enabled, alive, positive-priority
// backend.
func ValidateServicePriorities(g *config.Global) []error {
	var errs []error
	check := func(svc *config.Service) {
		if svc.TotPri > svc.AbsPri {
			errs = append(errs, diag.Errorf(diag.Range{}, "service %q: tot_pri (%d) exceeds abs_pri (%d)", svc.Name, svc.TotPri, svc.AbsPri))
		}
		if svc.TotPri > 0 {
			ok := false
			for _, b := range svc.Backends {
				if !b.Disabled && b.Alive && b.Priority > 0 {
					ok = true
					break
				}
			}
			if !ok {
				errs = append(errs, diag.Errorf(diag.Range{}, "service %q: tot_pri > 0 but no enabled, alive, positive-priority backend", svc.Name))
			}
		}
	}
	for _, svc := range g.Services {
		check(svc)
	}
	for _, l := range g.Listeners {
		for _, svc := range l.Services {
			check(svc)
		}
	}
	return errs
}

// ValidateAll runs every invariant check and returns the first
// failure.
func ValidateAll(g *config.Global) error {
	for _, check := range []func(*config.Global) []error{
		ValidateListenerAddresses,
		ValidateHTTPSContexts,
		ValidateSessionPatterns,
		ValidateServicePriorities,
	} {
		if errs := check(g); len(errs) > 0 {
			return errs[0]
		}
	}
	if len(g.Listeners) == 0 {
		return diag.Errorf(diag.Range{}, "configuration declares no listeners")
	}
	return nil
}
