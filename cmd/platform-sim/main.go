// Command platform-sim serves an in-memory synthetic monitoring platform for
// local runs of the evaluator.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/endpointeval/internal/platformsim"
	"github.com/okian/endpointeval/pkg/logger"
)

// Server timeouts.
const (
	readTimeout       = 15 * time.Second
	writeTimeout      = 15 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func main() {
	var (
		addr           = flag.String("addr", ":9090", "Listen address")
		token          = flag.String("token", "", "Required API token (empty accepts any)")
		syncRounds     = flag.Int("sync-rounds", 1, "Batches that report configuration sync before running")
		runningPolls   = flag.Int("running-polls", 2, "Polls an accepted batch stays RUNNING")
		pendingFetches = flag.Int("pending-fetches", 1, "Report fetches before an execution has data")
		finalStatus    = flag.String("final-status", "SUCCESS", "Status a running batch settles on")
		logLevel       = flag.String("log-level", "info", "Log level")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("platform-sim: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.Get()
	if err := logger.SetLevelString(*logLevel); err != nil {
		log.Warn(ctx, "invalid log level; using info", logger.String("log_level", *logLevel))
	}

	sim := platformsim.New(
		platformsim.WithToken(*token),
		platformsim.WithSyncRounds(*syncRounds),
		platformsim.WithRunningPolls(*runningPolls),
		platformsim.WithPendingFetches(*pendingFetches),
		platformsim.WithFinalStatus(*finalStatus),
		platformsim.WithLogger(log),
	)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           sim,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "platform simulator listening", logger.String("addr", *addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "server failed", logger.Error(err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	stats := sim.Stats()
	log.Info(ctx, "simulator stopped",
		logger.Int("monitors_created", stats.MonitorsCreated),
		logger.Int("triggers", stats.Triggers),
	)
}
