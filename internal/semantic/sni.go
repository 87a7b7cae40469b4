// SNI dispatch: the ClientHello server name is matched against each
// TLS context's CN, then its SANs, with shell-glob semantics.
// Implemented directly rather than via path.Match, which treats '/'
// specially.
package semantic

import (
	"strings"

	"github.com/poundproxy/poundcfg/internal/config"
)

// MatchSNI returns the context whose CN or SAN glob-matches name,
// falling back to the first context on no match.
func MatchSNI(contexts []*config.TLSContext, name string) *config.TLSContext {
	for _, tc := range contexts {
		if globMatch(tc.CN, name) {
			return tc
		}
		for _, san := range tc.SANs {
			if globMatch(san, name) {
				return tc
			}
		}
	}
	return contexts[0]
}

// globMatch reports whether name matches the shell-glob pattern
// pattern (supporting '*' and '?'), case-insensitively.
func globMatch(pattern, name string) bool {
	return globMatchFold(strings.ToLower(pattern), strings.ToLower(name))
}

func globMatchFold(pattern, name string) bool {
	if pattern == "" {
		return name == ""
	}
	switch pattern[0] {
	case '*':
		for i := 0; i <= len(name); i++ {
			if globMatchFold(pattern[1:], name[i:]) {
				return true
			}
		}
		return false
	case '?':
		if len(name) == 0 {
			return false
		}
		return globMatchFold(pattern[1:], name[1:])
	default:
		if len(name) == 0 || name[0] != pattern[0] {
			return false
		}
		return globMatchFold(pattern[1:], name[1:])
	}
}
