package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hotgluexyz/target-sendgrid/internal/api"
	"github.com/hotgluexyz/target-sendgrid/internal/config"
	"github.com/hotgluexyz/target-sendgrid/internal/metrics"
	"github.com/hotgluexyz/target-sendgrid/internal/pkg/logger"
	"github.com/hotgluexyz/target-sendgrid/internal/sendgrid"
	"github.com/hotgluexyz/target-sendgrid/internal/sink"
	"github.com/hotgluexyz/target-sendgrid/internal/state"
	"github.com/hotgluexyz/target-sendgrid/internal/target"
)

// lockTTL bounds how long a crashed run can block the next one.
const lockTTL = 10 * time.Minute

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON or YAML config file")
	inputPath := flag.String("input", "", "read messages from this file instead of stdin")
	flag.Parse()

	// stdout carries STATE messages; everything else goes to stderr.
	log.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var in io.Reader = os.Stdin
	if *inputPath != "" {
		f, err := os.Open(*inputPath)
		if err != nil {
			log.Fatalf("Failed to open input: %v", err)
		}
		defer f.Close()
		in = f
	}

	if err := run(ctx, *configPath, in, os.Stdout); err != nil {
		log.Printf("target-sendgrid failed: %v", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, in io.Reader, out io.Writer) error {
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	logger.SetRedactPII(cfg.Log.Redact())
	log.Printf("Config loaded: streams=%v backend=%s batch_size=%d", cfg.Streams, cfg.State.Backend, cfg.BatchSize)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store, err := state.Open(ctx, cfg.State)
	if err != nil {
		return fmt.Errorf("opening state backend: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("State backend close error: %v", err)
		}
	}()
	log.Printf("State backend ready: %s", store.Name())

	if cfg.Metrics.Addr != "" {
		server := api.NewServer(cfg.Metrics.Addr, api.NewRouter(api.NewHealthChecker(store), reg))
		server.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Printf("Operational server shutdown error: %v", err)
			}
		}()
	}

	client, err := sendgrid.NewClient(cfg)
	if err != nil {
		return err
	}
	poller := sendgrid.NewPoller(client, cfg.Polling)
	if cfg.HasTargetList() {
		log.Printf("Target list: name=%q id=%q (resolved per batch)", cfg.ListName, cfg.ListID)
	}

	sinks := make([]target.BatchProcessor, 0, len(cfg.Streams))
	for _, stream := range cfg.Streams {
		s, err := sink.New(sink.Kind(stream), sink.Options{
			API:      client,
			Poller:   poller,
			Store:    store,
			Metrics:  m,
			ListName: cfg.ListName,
			ListID:   cfg.ListID,
		})
		if err != nil {
			return fmt.Errorf("creating sink for %s: %w", stream, err)
		}
		sinks = append(sinks, s)
	}

	runner, err := target.NewRunner(target.Options{
		Sinks:     sinks,
		Store:     store,
		Lock:      store.Lock(target.LockKey, lockTTL),
		Output:    out,
		BatchSize: cfg.BatchSize,
		Strict:    cfg.Strict,
	})
	if err != nil {
		return err
	}

	summary, err := runner.Run(ctx, in)
	if summary != nil {
		log.Printf("Run summary: batches=%d records=%d dropped=%d failed_batches=%d state_entries=%d",
			summary.Batches, summary.Records, summary.Dropped, summary.FailedBatches, summary.StateEntries)
	}
	if errors.Is(err, context.Canceled) {
		log.Println("Interrupted, stopping")
	}
	return err
}
