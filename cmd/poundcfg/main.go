// poundcfg is the command-line driver for the configuration compiler.
// It wires cobra flags, sets up logging through logrus + srslog, and
// exits non-zero on any parse or validation failure.
package main

import (
	"fmt"
	"os"

	"github.com/poundproxy/poundcfg"
	"github.com/poundproxy/poundcfg/internal/config"
	"github.com/poundproxy/poundcfg/internal/diag"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	syslog "github.com/RackSec/srslog"
)

// buildVersion is overridden at link time (-ldflags) in real builds;
// left as a literal default here since this module has no release
// pipeline of its own.
var buildVersion = "dev"

type options struct {
	checkOnly  bool
	configPath string
	pidPath    string
	version    bool
	verbose    bool
	features   []string
}

func main() {
	var opt options

	cmd := &cobra.Command{
		Use:   "poundcfg",
		Short: "Validate and compile a Pound reverse-proxy configuration",
		Long: `poundcfg parses a Pound-style reverse-proxy configuration file into
the listener/service/backend tree consumed by the proxy engine.

It performs no proxying itself: it is the configuration front-end
only (lexer, section parser, semantic builders, TLS assembly).`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected extra arguments: %v", args)
			}
			return run(opt)
		},
		SilenceUsage: true,
	}

	flags := cmd.Flags()
	flags.BoolVarP(&opt.checkOnly, "check", "c", false, "validate the configuration and exit")
	flags.StringVarP(&opt.configPath, "config", "f", config.DefaultConfigPath, "configuration file path")
	flags.StringVarP(&opt.pidPath, "pid", "p", config.DefaultPidPath, "pid file path")
	flags.BoolVarP(&opt.version, "version", "V", false, "print version and built-in defaults, then exit")
	flags.BoolVarP(&opt.verbose, "verbose", "v", false, "verbose logging to stderr in addition to syslog")
	flags.StringArrayVarP(&opt.features, "feature", "W", nil, "toggle a feature: NAME, no-NAME, or NAME=VALUE (defined: dns)")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(opt options) error {
	if opt.version {
		printVersion()
		return nil
	}

	if opt.verbose {
		diag.Log.SetOutput(os.Stderr)
		diag.Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	dnsEnabled, err := resolveDNSFeature(opt.features)
	if err != nil {
		return err
	}

	g, err := poundcfg.Load(opt.configPath, poundcfg.Options{DNSEnabled: dnsEnabled})
	if err != nil {
		return err
	}

	wireSyslog(g, opt.verbose)

	if opt.checkOnly {
		diag.Log.Info("configuration OK")
		return nil
	}

	// The accept loop, worker pool, and daemonization belong to the
	// proxy engine; a full binary would hand g off here.
	diag.Log.WithField("listeners", len(g.Listeners)).Info("configuration loaded")
	return nil
}

// resolveDNSFeature applies -W dns / -W no-dns / -W dns=VALUE; dns is
// the only feature defined. Any other feature name is an error.
func resolveDNSFeature(features []string) (bool, error) {
	enabled := true
	for _, f := range features {
		name, value, hasValue := splitFeature(f)
		switch {
		case name == "dns" && !hasValue:
			enabled = true
		case name == "no-dns":
			enabled = false
		case name == "dns" && hasValue:
			switch value {
			case "off", "no", "0", "false":
				enabled = false
			case "on", "yes", "1", "true":
				enabled = true
			default:
				return false, fmt.Errorf("invalid value for feature dns: %q", value)
			}
		default:
			return false, fmt.Errorf("unknown feature %q", name)
		}
	}
	return enabled, nil
}

func splitFeature(f string) (name, value string, hasValue bool) {
	for i := 0; i < len(f); i++ {
		if f[i] == '=' {
			return f[:i], f[i+1:], true
		}
	}
	return f, "", false
}

// wireSyslog installs the syslog transport described by the parsed
// config's LogFacility, unless the facility is "-".
func wireSyslog(g *config.Global, verboseOnly bool) {
	priority, ok := g.SyslogPriority()
	if !ok {
		return
	}
	writer, err := syslog.Dial("", "", priority, "poundcfg")
	if err != nil {
		diag.Log.WithError(err).Warn("failed to connect to syslog; logging to stderr only")
		return
	}
	diag.Log.AddHook(&syslogHook{writer: writer})
}

// syslogHook adapts the package's logrus.Logger to also emit through
// an *srslog.Writer.
type syslogHook struct {
	writer *syslog.Writer
}

func (h *syslogHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *syslogHook) Fire(entry *logrus.Entry) error {
	line, err := entry.String()
	if err != nil {
		return err
	}
	switch entry.Level {
	case logrus.PanicLevel, logrus.FatalLevel:
		return h.writer.Emerg(line)
	case logrus.ErrorLevel:
		return h.writer.Err(line)
	case logrus.WarnLevel:
		return h.writer.Warning(line)
	case logrus.InfoLevel:
		return h.writer.Info(line)
	default:
		return h.writer.Debug(line)
	}
}

func printVersion() {
	fmt.Println("poundcfg version", buildVersion)
	fmt.Println()
	fmt.Println("built-in defaults:")
	fmt.Println("  config file:  ", config.DefaultConfigPath)
	fmt.Println("  pid file:     ", config.DefaultPidPath)
	fmt.Println("  client timeout:", config.DefaultClientTimeout)
	fmt.Println("  backend timeout:", config.DefaultBackendTimeout)
	fmt.Println("  ws timeout:    ", config.DefaultWSTimeout)
	fmt.Println("  connect timeout:", config.DefaultConnectTimeout)
	fmt.Println("  threads:       ", config.DefaultThreads)
	fmt.Println("  grace period:  ", config.DefaultGrace)
}
