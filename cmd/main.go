package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/okian/endpointeval/internal/adapters/platform"
	"github.com/okian/endpointeval/internal/adapters/repository"
	service "github.com/okian/endpointeval/internal/app"
	"github.com/okian/endpointeval/internal/config"
	"github.com/okian/endpointeval/internal/discovery"
	"github.com/okian/endpointeval/internal/report"
	"github.com/okian/endpointeval/pkg/logger"
	"github.com/okian/endpointeval/pkg/metrics"
)

// historyRetention is the number of archived runs kept in the history DB.
const historyRetention = 500

var errNoHistoryDB = errors.New("history listing needs history_db to be set")

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		os.Stderr.WriteString("endpointeval: " + err.Error() + "\n")
		stop()
		os.Exit(1) //nolint:gocritic // stop already ran
	}
}

// run is main without the process exit, so it can be tested.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("endpointeval", flag.ContinueOnError)
	var (
		configFile = fs.String("config", "", "YAML config file (overrides "+config.EnvConfigFile+")")
		watch      = fs.Bool("watch", false, "Re-run the evaluation whenever a manifest changes")
		history    = fs.Int("history", 0, "Print the N most recent archived runs and exit")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	path := *configFile
	if path == "" {
		path = os.Getenv(config.EnvConfigFile)
	}

	// Load configuration (defaults -> optional file -> env -> legacy config.json)
	cfg, err := config.LoadUnvalidatedFrom(ctx, path)
	if err != nil {
		return err
	}
	if *history > 0 {
		return printHistory(ctx, cfg, *history, stdout)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.Configure(
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithConstLabels(cfg.MetricsLabels),
	)

	opts := []service.Option{
		service.WithLogger(log),
		service.WithPlatform(platform.NewClient(cfg.EnvironmentURL, cfg.APIToken,
			platform.WithTimeout(cfg.HTTPTimeout),
			platform.WithLogger(log),
		)),
		service.WithMonitorTag(cfg.MonitorTag),
		service.WithLocations(cfg.Locations),
		service.WithCreationSettleDelay(cfg.CreationSettleDelay),
		service.WithBatchIntervals(cfg.BatchPollInterval, cfg.SyncRetryDelay, cfg.RunningPollInterval),
		service.WithBatchLimits(cfg.MaxSyncRetries, cfg.MaxBatchPolls),
		service.WithExecutionPolling(cfg.ExecutionPollInterval, cfg.MaxExecutionPolls),
		service.WithPollConcurrency(cfg.PollConcurrency),
	}

	if cfg.HistoryDB != "" {
		store, err := repository.Open(ctx, cfg.HistoryDB, repository.WithRetention(historyRetention))
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Warn(ctx, "closing history failed", logger.Error(err))
			}
		}()
		opts = append(opts, service.WithHistory(store))
	}

	svc := service.New(opts...)
	evaluate := func(ctx context.Context) error {
		urls, err := discovery.Discover(ctx, cfg.ManifestDir, cfg.RootURL, discovery.WithLogger(log))
		if err != nil {
			return err
		}
		res, err := svc.Run(ctx, urls)
		if err != nil {
			return err
		}
		return publish(ctx, cfg, res, stdout)
	}

	if !*watch {
		return evaluate(ctx)
	}

	if err := evaluate(ctx); err != nil {
		log.Error(ctx, "evaluation failed", logger.Error(err))
	}
	err = discovery.Watch(ctx, cfg.ManifestDir, func(ctx context.Context) {
		if err := evaluate(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error(ctx, "evaluation failed", logger.Error(err))
		}
	}, discovery.WithLogger(log))
	log.Info(ctx, "watch stopped")
	return err
}

// publish writes the report table to every configured destination.
func publish(ctx context.Context, cfg *config.Config, res service.Result, stdout io.Writer) error {
	rows := report.Rows(res.Scores, res.Previous, cfg.WarningThreshold, cfg.FailThreshold)
	table, err := report.RenderHTML(rows)
	if err != nil {
		return err
	}

	if cfg.ReportFile != "" {
		if err := os.WriteFile(cfg.ReportFile, []byte(table+"\n"), 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	if cfg.GitHubOutput != "" {
		err = report.WriteGitHubOutput(cfg.GitHubOutput, cfg.OutputName, table)
	} else {
		err = report.LegacySetOutput(stdout, cfg.OutputName, table)
	}
	if err != nil {
		return err
	}

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			// Metrics are best effort; the report is already out.
			logger.Get().Warn(ctx, "metrics textfile not written", logger.Error(err))
		}
	}

	logger.Get().Info(ctx, "report published",
		logger.String("run_id", res.RunID),
		logger.Int("rows", len(rows)),
	)
	return nil
}

// printHistory lists the newest archived runs as an aligned table.
func printHistory(ctx context.Context, cfg *config.Config, limit int, stdout io.Writer) error {
	if cfg.HistoryDB == "" {
		return errNoHistoryDB
	}
	store, err := repository.Open(ctx, cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs, err := store.Runs(ctx, limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tFINISHED\tDURATION\tSTEPS\tMIN SCORE")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d%%\n",
			r.ID,
			r.FinishedAt.UTC().Format(time.RFC3339),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
			r.Steps,
			r.MinScore,
		)
	}
	return tw.Flush()
}
