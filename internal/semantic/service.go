package semantic

import (
	"regexp"
	"time"

	"github.com/poundproxy/poundcfg/internal/config"
	"github.com/poundproxy/poundcfg/internal/diag"
	"github.com/poundproxy/poundcfg/internal/section"
	"github.com/poundproxy/poundcfg/internal/valueparse"
)

// serviceBuildState accumulates a Service's raw pieces. URL matchers
// stay uncompiled token entries until Finish, so an IgnoreCase
// statement anywhere in the section still applies to URL statements
// that precede it.
type serviceBuildState struct {
	service    *config.Service
	urlTokens  []valueparse.TokenEntry
	ignoreCase bool // inherited from the enclosing scope, overridable here
	dnsEnabled bool

	connTO, reqTO, wsTO time.Duration // seed values for nested Backend/Emergency blocks
}

// ParseService drives a full Service section — optional inline name,
// body, End, deferred matcher compilation — and returns the finished
// service. Both the top-level Service keyword and a listener's nested
// one go through it, seeded from the global scope's defaults.
func ParseService(ctx *section.Context, g *config.Global) (*config.Service, error) {
	st := NewServiceState(g.DNSEnabled, g.IgnoreCase,
		g.ConnectTimeout, g.BackendTimeout, g.WSTimeout)
	if res := readOptionalServiceName(ctx, st); res == section.Fail {
		return nil, ctx.Err
	}
	sub := &section.Context{Lex: ctx.Lex, IncludeDir: ctx.IncludeDir}
	if _, err := section.Run(sub, ServiceTable(st), "Service", st); err != nil {
		return nil, err
	}
	if err := st.Finish(); err != nil {
		return nil, err
	}
	return st.service, nil
}

// NewServiceState seeds a Service builder with the enclosing scope's
// case-folding default and backend timeout defaults.
func NewServiceState(dnsEnabled, ignoreCase bool, connTO, reqTO, wsTO time.Duration) *serviceBuildState {
	return &serviceBuildState{
		service:    &config.Service{},
		ignoreCase: ignoreCase,
		dnsEnabled: dnsEnabled,
		connTO:     connTO,
		reqTO:      reqTO,
		wsTO:       wsTO,
	}
}

// ServiceTable builds the keyword table for a Service block.
func ServiceTable(st *serviceBuildState) section.Table {
	return section.Table{
		{Keyword: "Name", Handler: func(ctx *section.Context, target any) section.Result {
			var name string
			if res := valueparse.AssignString(&name)(ctx, nil); res != section.OK {
				return res
			}
			if len(name) > config.ServiceNameMax {
				diag.Warnf(ctx.Range, "service name %q truncated to %d characters", name, config.ServiceNameMax)
				name = name[:config.ServiceNameMax]
			}
			st.service.Name = name
			return section.OK
		}},
		{Keyword: "IgnoreCase", Handler: func(ctx *section.Context, target any) section.Result {
			return valueparse.AssignBool(&st.ignoreCase)(ctx, nil)
		}},
		{Keyword: "URL", Handler: func(ctx *section.Context, target any) section.Result {
			return valueparse.AppendToken(&st.urlTokens)(ctx, nil)
		}},
		{Keyword: "HeadRequire", Handler: func(ctx *section.Context, target any) section.Result {
			return appendHeaderRegex(&st.service.HeadersRequire, st.ignoreCase)(ctx, nil)
		}},
		{Keyword: "HeadDeny", Handler: func(ctx *section.Context, target any) section.Result {
			return appendHeaderRegex(&st.service.HeadersDeny, st.ignoreCase)(ctx, nil)
		}},
		{Keyword: "Backend", Handler: func(ctx *section.Context, target any) section.Result {
			b := NewBackend(st.connTO, st.reqTO, st.wsTO)
			bst := &backendBuildState{backend: b, dnsEnabled: st.dnsEnabled}
			sub := &section.Context{Lex: ctx.Lex, IncludeDir: ctx.IncludeDir}
			if _, err := section.Run(sub, BackendTable(st.dnsEnabled), "Backend", bst); err != nil {
				return ctx.Fail(err)
			}
			st.service.Backends = append(st.service.Backends, b)
			return section.OK
		}},
		{Keyword: "Redirect", Handler: func(ctx *section.Context, target any) section.Result {
			b, res := ParseRedirect(ctx)
			if res != section.OK {
				return res
			}
			st.service.Backends = append(st.service.Backends, b)
			return section.OK
		}},
		{Keyword: "Emergency", Handler: func(ctx *section.Context, target any) section.Result {
			b := NewEmergencyBackend()
			bst := &backendBuildState{backend: b, dnsEnabled: st.dnsEnabled}
			sub := &section.Context{Lex: ctx.Lex, IncludeDir: ctx.IncludeDir}
			if _, err := section.Run(sub, BackendTable(st.dnsEnabled), "Emergency", bst); err != nil {
				return ctx.Fail(err)
			}
			st.service.Emergency = b
			return section.OK
		}},
		{Keyword: "Session", Handler: func(ctx *section.Context, target any) section.Result {
			sub := &section.Context{Lex: ctx.Lex, IncludeDir: ctx.IncludeDir}
			if _, err := section.Run(sub, SessionTable(&st.service.Session), "Session", &st.service.Session); err != nil {
				return ctx.Fail(err)
			}
			if err := FinishSession(&st.service.Session); err != nil {
				return ctx.Fail(err)
			}
			return section.OK
		}},
		{Keyword: "Disabled", Handler: func(ctx *section.Context, target any) section.Result {
			return valueparse.AssignBool(&st.service.Disabled)(ctx, nil)
		}},
		{Keyword: "End", Handler: section.EndHandler},
	}
}

// appendHeaderRegex compiles one HeadRequire/HeadDeny regex line and
// appends it to dst.
func appendHeaderRegex(dst *[]*regexp.Regexp, ignoreCase bool) section.HandlerFunc {
	return func(ctx *section.Context, target any) section.Result {
		var re *regexp.Regexp
		res := valueparse.AssignRegex(&re, ignoreCase)(ctx, nil)
		if res == section.OK {
			*dst = append(*dst, re)
		}
		return res
	}
}

// Finish compiles the deferred URL matchers with the section's final,
// possibly-overridden case-folding flag, computes TotPri/AbsPri, and
// warns (rather than failing) on an empty backend list.
func (st *serviceBuildState) Finish() error {
	for _, tok := range st.urlTokens {
		re, err := valueparse.CompileRegex(tok.Value, st.ignoreCase)
		if err != nil {
			return diag.RegexError(tok.Range, tok.Value, err)
		}
		st.service.URLMatchers = append(st.service.URLMatchers, re)
	}

	for _, b := range st.service.Backends {
		st.service.AbsPri += b.Priority
		if !b.Disabled && b.Alive && b.Priority > 0 {
			st.service.TotPri += b.Priority
		}
	}

	if len(st.service.Backends) == 0 {
		diag.Warnf(diag.Range{}, "service %q: no backends defined", st.service.Name)
	}
	return nil
}
