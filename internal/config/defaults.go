package config

import "time"

// Compiled-in defaults, overridable from the top-level config
// keywords.
const (
	DefaultClientTimeout  = 10 * time.Second
	DefaultBackendTimeout = 15 * time.Minute
	DefaultWSTimeout      = 300 * time.Second
	DefaultConnectTimeout = 8 * time.Second

	DefaultBackendPriority = 5
	MaxBackendPriority     = 9

	DefaultGrace         = 30 * time.Second
	DefaultAliveInterval = 30 * time.Second
	DefaultThreads       = 128

	// EmergencyTimeout is the fixed timeout every Emergency backend
	// uses regardless of surrounding global configuration.
	EmergencyTimeout = 120 * time.Second

	DefaultConfigPath = "/etc/pound.cfg"
	DefaultPidPath    = "/var/run/pound.pid"
)

// NewGlobal returns a Global pre-populated with the compiled-in
// defaults, ready for the top-level section.Table to mutate.
func NewGlobal() *Global {
	return &Global{
		DNSEnabled:     true,
		ClientTimeout:  DefaultClientTimeout,
		BackendTimeout: DefaultBackendTimeout,
		WSTimeout:      DefaultWSTimeout,
		ConnectTimeout: DefaultConnectTimeout,
		Grace:          DefaultGrace,
		AliveInterval:  DefaultAliveInterval,
		Threads:        DefaultThreads,
		ControlSocket:  "",
	}
}
