package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Sumatoshi-tech/filechanges/internal/config"
	"github.com/Sumatoshi-tech/filechanges/pkg/changes"
	"github.com/Sumatoshi-tech/filechanges/pkg/filesource"
	"github.com/Sumatoshi-tech/filechanges/pkg/observability"
	"github.com/Sumatoshi-tech/filechanges/pkg/persist"
	"github.com/Sumatoshi-tech/filechanges/pkg/render"
	"github.com/Sumatoshi-tech/filechanges/pkg/runner"
)

const (
	spanFilesCommand = "filechanges.files"
	stateDirPerm     = 0o750
)

// ErrFirstScanPending is reported by the readiness check until the first
// watch-mode scan has completed.
var ErrFirstScanPending = errors.New("first scan pending")

// FilesCommand holds flags for the files command.
type FilesCommand struct {
	deps   deps
	global *globalOptions

	stateDir    string
	codec       string
	lister      string
	findBinary  string
	watch       time.Duration
	metricsAddr string
}

func newFilesCommand(d deps, global *globalOptions) *cobra.Command {
	fc := &FilesCommand{deps: d, global: global}

	cmd := &cobra.Command{
		Use:   "files [path]",
		Short: "Report changes inferred from rescanning a directory",
		Long: `Scan a directory and report every regular file as active.

With --state the scan result is kept between runs: a file seen by the
previous run but missing now is reported deleted once, then forgotten.

With --watch the directory is rescanned on every interval until interrupted,
printing only what changed since the previous scan.`,
		Args: cobra.MaximumNArgs(1),
		RunE: fc.run,
	}

	cmd.Flags().StringVar(&fc.stateDir, "state", config.DefaultStateDir, "Directory persisting scan state between runs")
	cmd.Flags().StringVar(&fc.codec, "codec", config.DefaultCodec, "State codec: json, gob, lz4")
	cmd.Flags().StringVar(&fc.lister, "lister", config.DefaultFilesLister, "File enumeration: command (find), walk")
	cmd.Flags().StringVar(&fc.findBinary, "find-binary", config.DefaultFindBinary, "find executable for the command lister")
	cmd.Flags().DurationVar(&fc.watch, "watch", config.DefaultWatchInterval, "Rescan interval (0 = scan once)")
	cmd.Flags().StringVar(&fc.metricsAddr, "metrics-addr", config.DefaultMetricsAddr,
		"Serve /metrics, /healthz and /readyz on this address in watch mode")

	return cmd
}

func (fc *FilesCommand) applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("state") {
		cfg.Files.StateDir = fc.stateDir
	}

	if flags.Changed("codec") {
		cfg.Files.Codec = fc.codec
	}

	if flags.Changed("lister") {
		cfg.Files.Lister = fc.lister
	}

	if flags.Changed("find-binary") {
		cfg.Files.FindBinary = fc.findBinary
	}

	if flags.Changed("watch") {
		cfg.Files.WatchInterval = fc.watch
	}

	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = fc.metricsAddr
	}

	return cfg.Validate()
}

func (fc *FilesCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := fc.global.resolveConfig(cmd, fc.deps)
	if err != nil {
		return err
	}

	err = fc.applyFlags(cmd, cfg)
	if err != nil {
		return err
	}

	out, err := newOutput(cfg)
	if err != nil {
		return err
	}

	watching := cfg.Files.WatchInterval > 0

	mode := observability.ModeCLI
	if watching {
		mode = observability.ModeWatch
	} else {
		cfg.Metrics.Addr = ""
	}

	providers, err := startObservability(fc.deps, cfg, mode)
	if err != nil {
		return err
	}
	defer shutdownObservability(providers)

	path := resolvePath(args)

	ctx, span := providers.Tracer.Start(cmd.Context(), spanFilesCommand)
	defer span.End()

	span.SetAttributes(
		attribute.String("files.path", path),
		attribute.String("files.lister", cfg.Files.Lister),
		attribute.Bool("files.watch", watching),
	)

	session, err := openFilesSession(ctx, cfg, providers, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return err
	}

	if !watching {
		err = session.scanOnce(ctx, out, cmd.OutOrStdout())
	} else {
		err = session.watch(ctx, cfg, providers, out, cmd.OutOrStdout())
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return err
	}

	return nil
}

// filesSession is one opened file source plus its optional state store.
type filesSession struct {
	src    *filesource.Source
	store  *filesource.Store
	logger *slog.Logger
	ready  atomic.Bool
}

func openFilesSession(
	ctx context.Context, cfg *config.Config, providers observability.Providers, path string,
) (*filesSession, error) {
	var lister filesource.Lister = filesource.WalkLister{}
	if cfg.Files.Lister == config.ListerCommand {
		lister = filesource.NewCommandLister(runner.NewExec(providers.Logger), cfg.Files.FindBinary)
	}

	metrics, err := observability.NewQueryMetrics(providers.Meter)
	if err != nil {
		return nil, err
	}

	src, err := filesource.Open(path,
		filesource.WithLister(lister),
		filesource.WithLogger(providers.Logger),
		filesource.WithTracer(providers.Tracer),
		filesource.WithRecorder(metrics),
	)
	if err != nil {
		return nil, err
	}

	session := &filesSession{src: src, logger: providers.Logger}

	if cfg.Files.StateDir == "" {
		return session, nil
	}

	codec, err := persist.CodecByName(cfg.Files.Codec)
	if err != nil {
		return nil, err
	}

	err = os.MkdirAll(cfg.Files.StateDir, stateDirPerm)
	if err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	session.store = filesource.NewStore(cfg.Files.StateDir, codec)

	found, err := session.store.Load(src)
	if err != nil {
		return nil, err
	}

	providers.Logger.DebugContext(ctx, "files state", "path", session.store.Path(src), "restored", found)

	return session, nil
}

// scan queries the source and persists the new state.
func (s *filesSession) scan(ctx context.Context) (changes.Map, error) {
	result, err := s.src.Query(ctx)
	if err != nil {
		return nil, err
	}

	if s.store != nil {
		err = s.store.Save(s.src)
		if err != nil {
			return nil, err
		}
	}

	s.ready.Store(true)

	return result, nil
}

func (s *filesSession) scanOnce(ctx context.Context, out *output, w io.Writer) error {
	result, err := s.scan(ctx)
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "files changes", "root", s.src.Root(), "summary", render.SummaryLine(result.Summary()))

	return out.write(w, result)
}

func (s *filesSession) readyCheck(context.Context) error {
	if !s.ready.Load() {
		return ErrFirstScanPending
	}

	return nil
}

func (s *filesSession) watch(
	ctx context.Context, cfg *config.Config, providers observability.Providers, out *output, w io.Writer,
) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Addr != "" {
		srv, err := observability.NewDiagnosticsServer(ctx, cfg.Metrics.Addr,
			providers.MetricsHandler, providers.Logger, s.readyCheck)
		if err != nil {
			return err
		}

		defer func() {
			closeErr := srv.Close(context.Background())
			if closeErr != nil {
				providers.Logger.Warn("diagnostics server close failed", "error", closeErr)
			}
		}()
	}

	var prev changes.Map

	return watchLoop(ctx, cfg.Files.WatchInterval, func(tickCtx context.Context) error {
		result, err := s.scan(tickCtx)
		if err != nil {
			s.logger.WarnContext(tickCtx, "scan failed, keeping previous state", "error", err)

			return nil
		}

		delta := changes.Delta(prev, result)
		prev = result

		if len(delta) == 0 {
			return nil
		}

		s.logger.InfoContext(tickCtx, "files changed", "root", s.src.Root(),
			"summary", render.SummaryLine(delta.Summary()))

		return out.write(w, delta)
	})
}

// watchLoop runs tick immediately and then on every interval until ctx is
// done or tick fails.
func watchLoop(ctx context.Context, interval time.Duration, tick func(context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		err := tick(ctx)
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
