// Command strikes fetches lightning strikes from the strike API.
//
// Usage:
//
//	strikes query [-stdout]         fetch the configured window, one file per chunk
//	strikes fetch-latest [-save]    fetch every finalised chunk since the last run
//	strikes stream                  follow the finalised horizon until interrupted
//
// Credentials and sinks come from the environment; the query itself comes
// from the TOML file named by QUERY_FILE (or -query).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/lightning-strike-client/internal/adapter/filestore"
	"github.com/couchcryptid/lightning-strike-client/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/lightning-strike-client/internal/adapter/kafka"
	"github.com/couchcryptid/lightning-strike-client/internal/adapter/lightning"
	redisadapter "github.com/couchcryptid/lightning-strike-client/internal/adapter/redis"
	"github.com/couchcryptid/lightning-strike-client/internal/config"
	"github.com/couchcryptid/lightning-strike-client/internal/domain"
	"github.com/couchcryptid/lightning-strike-client/internal/observability"
	"github.com/couchcryptid/lightning-strike-client/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

const usage = "usage: strikes <query|fetch-latest|stream> [flags]"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cfg, logger: logger, metrics: metrics, stdout: os.Stdout}
	switch cmd := os.Args[1]; cmd {
	case "query":
		err = a.query(ctx, os.Args[2:])
	case "fetch-latest":
		err = a.fetchLatest(ctx, os.Args[2:])
	case "stream":
		err = a.stream(ctx, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n%s\n", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	stdout  io.Writer
}

// fetchers builds the API client chain: token source, page client, retry
// wrapper, and exhaustive pagination.
func (a *app) fetchers() (*pipeline.Exhaustive, error) {
	auth, err := lightning.NewTokenSource(a.cfg.TokenURL, &http.Client{Timeout: a.cfg.HTTPTimeout}, a.logger, a.metrics)
	if err != nil {
		return nil, err
	}
	client := lightning.NewClient(a.cfg, auth, a.logger, a.metrics)
	retrying := lightning.NewRetrying(client, a.cfg.RetryUnit, a.logger, a.metrics)
	return pipeline.NewExhaustive(retrying, a.cfg.MaxPages, a.logger, a.metrics), nil
}

func (a *app) settings(fs *flag.FlagSet, args []string) (config.QuerySettings, *filestore.Store, error) {
	queryFile := fs.String("query", a.cfg.QueryFile, "TOML query file")
	outDir := fs.String("out", a.cfg.OutputDir, "output directory")
	if err := fs.Parse(args); err != nil {
		return config.QuerySettings{}, nil, err
	}
	a.cfg.QueryFile = *queryFile

	qs, err := config.LoadQuerySettings(*queryFile, domain.Now())
	if err != nil {
		return config.QuerySettings{}, nil, err
	}
	store := filestore.New(*outDir, a.cfg.OutputName, qs.BBox, qs.ChunkDuration, a.logger)
	return qs, store, nil
}

func (a *app) query(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	toStdout := fs.Bool("stdout", false, "merge all chunks and write them to stdout")
	qs, store, err := a.settings(fs, args)
	if err != nil {
		return err
	}
	if qs.To.IsZero() {
		return errors.New("query requires a closed window; set to in the query file or use stream")
	}

	all, err := a.fetchers()
	if err != nil {
		return err
	}
	results, err := pipeline.NewScheduler(all, a.logger, a.metrics).
		FetchChunked(ctx, qs.Format, qs.ChunkDuration, qs.Query(a.cfg.Credentials()), qs.ParallelQueries)
	if err != nil {
		return err
	}
	if *toStdout {
		return a.writeMerged(results)
	}
	return deliverAll(ctx, store, results)
}

func (a *app) fetchLatest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fetch-latest", flag.ContinueOnError)
	save := fs.Bool("save", false, "advance from in the query file past the fetched chunks")
	qs, store, err := a.settings(fs, args)
	if err != nil {
		return err
	}
	if *save && a.cfg.QueryFile == "" {
		return errors.New("-save needs a query file")
	}

	if end, ok, err := store.LatestEnd(); err != nil {
		return err
	} else if ok && end.After(qs.From) {
		a.logger.Info("resuming after persisted output", "from", domain.FormatInstant(end))
		qs.From = end
	}

	all, err := a.fetchers()
	if err != nil {
		return err
	}
	results, err := pipeline.NewScheduler(all, a.logger, a.metrics).
		FetchLatestFinalised(ctx, qs.Format, qs.ChunkDuration, qs.Query(a.cfg.Credentials()), qs.ParallelQueries)
	if err != nil {
		return err
	}
	if err := deliverAll(ctx, store, results); err != nil {
		return err
	}

	if *save && len(results) > 0 {
		qs.From = results[len(results)-1].End
		if err := config.SaveQuerySettings(a.cfg.QueryFile, qs); err != nil {
			return err
		}
		a.logger.Info("query file updated", "path", a.cfg.QueryFile, "from", domain.FormatInstant(qs.From))
	}
	return nil
}

func (a *app) stream(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stream", flag.ContinueOnError)
	qs, store, err := a.settings(fs, args)
	if err != nil {
		return err
	}
	all, err := a.fetchers()
	if err != nil {
		return err
	}

	sinks := []pipeline.ChunkSink{store}
	var writer *kafkaadapter.Writer
	if a.cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(a.cfg, a.logger)
		sinks = append(sinks, writer)
		a.logger.Info("kafka publishing enabled", "topic", a.cfg.KafkaTopic, "brokers", a.cfg.KafkaBrokers)
	}

	checks := []sharedobs.ReadinessChecker{}
	var checkpoint pipeline.CheckpointStore
	var redisCheckpoint *redisadapter.Checkpoint
	if a.cfg.RedisAddr != "" {
		redisCheckpoint, err = redisadapter.New(ctx, a.cfg.RedisAddr, a.cfg.CheckpointKey, a.logger)
		if err != nil {
			return err
		}
		checkpoint = redisCheckpoint
		checks = append(checks, redisCheckpoint)
	}

	timer := pipeline.NewFinalisationTimer(all, qs.Format, qs.ChunkDuration, pipeline.TimerOptions{
		CallbackMode:  pipeline.CallbackMode(a.cfg.TimerCallbackMode),
		FailurePolicy: pipeline.FailurePolicy(a.cfg.TimerFailurePolicy),
		Reschedule:    pipeline.Reschedule(a.cfg.TimerReschedule),
	}, a.logger, a.metrics)
	p := pipeline.New(timer, sinks, checkpoint, store, pipeline.Options{
		MaxParallel:     qs.ParallelQueries,
		DeliveryTimeout: a.cfg.ShutdownTimeout,
	}, a.logger, a.metrics)
	checks = append(checks, timer, p)

	srv := httpadapter.NewServer(a.cfg.HTTPAddr, httpadapter.AllReady(checks...), p, a.logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", "error", err)
		}
	}()

	runErr := p.Run(ctx, qs.Query(a.cfg.Credentials()))
	if runErr != nil {
		a.logger.Error("pipeline error", "error", runErr)
	}
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			a.logger.Error("kafka writer close error", "error", err)
		}
	}
	if redisCheckpoint != nil {
		if err := redisCheckpoint.Close(); err != nil {
			a.logger.Error("redis close error", "error", err)
		}
	}

	a.logger.Info("shutdown complete")
	return runErr
}

func (a *app) writeMerged(results []pipeline.ChunkResult) error {
	if len(results) == 0 {
		return nil
	}
	merged := results[0].Collection
	for _, r := range results[1:] {
		if _, err := merged.Merge(r.Collection); err != nil {
			return fmt.Errorf("merge chunk %s: %w", r.Interval(), err)
		}
	}
	body, err := merged.Bytes()
	if err != nil {
		return err
	}
	_, err = a.stdout.Write(body)
	return err
}

func deliverAll(ctx context.Context, store *filestore.Store, results []pipeline.ChunkResult) error {
	for _, r := range results {
		if err := store.Deliver(ctx, r); err != nil {
			return err
		}
	}
	return nil
}
