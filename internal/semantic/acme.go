package semantic

import (
	"regexp"
	"strings"

	"github.com/poundproxy/poundcfg/internal/config"
	"github.com/poundproxy/poundcfg/internal/valueparse"
)

// acmeURLPattern matches any ACME HTTP-01 challenge token.
const acmeURLPattern = `^/\.well-known/acme-challenge/(.+)`

// NewACMEService builds the synthetic service an ACME keyword installs
// on a listener: one URL matcher for the challenge path, one ACME-kind
// backend whose URL is dir with any trailing slash trimmed and
// "/$1" appended so the runtime can substitute the captured token.
func NewACMEService(dir string) (*config.Service, error) {
	matcher, err := valueparse.CompileRegex(acmeURLPattern, false)
	if err != nil {
		return nil, err
	}

	backend := &config.Backend{
		Kind:     config.BackendACME,
		Alive:    true,
		Priority: config.DefaultBackendPriority,
		URL:      strings.TrimSuffix(dir, "/") + "/$1",
	}

	return &config.Service{
		URLMatchers: []*regexp.Regexp{matcher},
		Backends:    []*config.Backend{backend},
		TotPri:      backend.Priority,
		AbsPri:      backend.Priority,
	}, nil
}
