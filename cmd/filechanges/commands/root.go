// Package commands implements CLI command handlers for filechanges.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/filechanges/internal/config"
	"github.com/Sumatoshi-tech/filechanges/pkg/changes"
	"github.com/Sumatoshi-tech/filechanges/pkg/observability"
	"github.com/Sumatoshi-tech/filechanges/pkg/render"
	"github.com/Sumatoshi-tech/filechanges/pkg/version"
)

type (
	configLoader    func(path string) (*config.Config, error)
	observabilityFn func(cfg observability.Config) (observability.Providers, error)
)

// deps are the process-level collaborators commands are built with.
type deps struct {
	loadConfig configLoader
	initObs    observabilityFn
	logOutput  io.Writer
}

func defaultDeps() deps {
	return deps{
		loadConfig: config.LoadConfig,
		initObs:    observability.Init,
		logOutput:  os.Stderr,
	}
}

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	format     string
	noColor    bool
	skipVendor bool
	logLevel   string
	logJSON    bool
}

// NewRootCommand creates the filechanges root command with all subcommands.
func NewRootCommand() *cobra.Command {
	return newRootCommandWithDeps(defaultDeps())
}

func newRootCommandWithDeps(d deps) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "filechanges",
		Short: "Report files added, modified or removed since a prior point",
		Long: `filechanges reports incremental file changes for a build pipeline.

Commands:
  git     Changes recorded in a git repository (tree listing or ref diff)
  files   Changes inferred from successive scans of a plain directory`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Config file (default: ./.filechanges.yaml or ~/.filechanges.yaml)")
	flags.StringVar(&opts.format, "format", config.DefaultOutputFormat, "Output format: json, yaml, text, table")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable colored text and table output")
	flags.BoolVar(&opts.skipVendor, "skip-vendor", false, "Drop vendored dependency paths from the output")
	flags.StringVar(&opts.logLevel, "log-level", config.DefaultLogLevel, "Log level: debug, info, warn, error")
	flags.BoolVar(&opts.logJSON, "log-json", false, "Emit logs as JSON")

	root.AddCommand(newGitCommand(d, opts))
	root.AddCommand(newFilesCommand(d, opts))
	root.AddCommand(newVersionCommand())

	return root
}

// resolveConfig loads the config file and applies the persistent flags the
// user set explicitly on top of it.
func (g *globalOptions) resolveConfig(cmd *cobra.Command, d deps) (*config.Config, error) {
	cfg, err := d.loadConfig(g.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()

	if flags.Changed("format") {
		cfg.Output.Format = g.format
	}

	if flags.Changed("no-color") {
		cfg.Output.Color = !g.noColor
	}

	if flags.Changed("skip-vendor") {
		cfg.Output.SkipVendor = g.skipVendor
	}

	if flags.Changed("log-level") {
		cfg.Logging.Level = g.logLevel
	}

	if flags.Changed("log-json") {
		cfg.Logging.JSON = g.logJSON
	}

	return cfg, nil
}

// startObservability initializes logging and telemetry for one command run.
func startObservability(d deps, cfg *config.Config, mode observability.AppMode) (observability.Providers, error) {
	level, err := observability.ParseLogLevel(cfg.Logging.Level)
	if err != nil {
		return observability.Providers{}, err
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	obsCfg.OTLPInsecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"
	obsCfg.Prometheus = cfg.Metrics.Addr != ""
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Logging.JSON
	obsCfg.LogOutput = d.logOutput

	providers, err := d.initObs(obsCfg)
	if err != nil {
		return observability.Providers{}, fmt.Errorf("init observability: %w", err)
	}

	return providers, nil
}

func shutdownObservability(providers observability.Providers) {
	shutdownErr := providers.Shutdown(context.Background())
	if shutdownErr != nil {
		providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
	}
}

// output filters and renders a result to w.
type output struct {
	renderer   *render.Renderer
	skipVendor bool
}

func newOutput(cfg *config.Config) (*output, error) {
	r, err := render.New(cfg.Output.Format, cfg.Output.Color)
	if err != nil {
		return nil, err
	}

	return &output{renderer: r, skipVendor: cfg.Output.SkipVendor}, nil
}

func (o *output) write(w io.Writer, m changes.Map) error {
	if o.skipVendor {
		m = m.Filter(changes.SkipVendored)
	}

	return o.renderer.Render(w, m)
}

func resolvePath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}

	return "."
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
