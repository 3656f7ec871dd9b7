// Command capture drives one RunOrchestrator run against a caller-supplied
// browser automation adapter. This binary wires configuration and logging
// together; it does not implement a BrowserSession itself (spec.md §6 treats
// browser automation as an external collaborator), so it exits with an
// error when BrowserSession (browser.go) returns no implementation.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	logx "github.com/rannday/golog"

	"github.com/jnd-labs/webcapture/internal/capture"
	"github.com/jnd-labs/webcapture/internal/config"
	"github.com/jnd-labs/webcapture/internal/metrics"
)

var (
	urlFlag     = flag.String("url", "", "target URL to capture (overrides config file)")
	metricsAddr = flag.String("metrics-addr", "", "if set, serve Prometheus metrics at this address for the run's duration (e.g. :9090)")
)

func main() {
	flag.Parse()

	if err := logx.Configure(logx.Config{Level: -4, Console: true}); err != nil {
		panic(err)
	}

	cfg, err := config.Load()
	if err != nil {
		logx.ErrorErr("failed to load configuration", err)
		os.Exit(1)
	}
	if *urlFlag != "" {
		cfg.URL = *urlFlag
	}

	opts, err := cfg.ToOptions()
	if err != nil {
		logx.ErrorErr("invalid configuration", err)
		os.Exit(1)
	}

	session := BrowserSession()
	if session == nil {
		logx.Error("no BrowserSession implementation is registered for this build; " +
			"link one against internal/models.BrowserSession before running capture")
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	collector := metrics.New(registry)
	orch := capture.New(opts, session, collector)

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logx.ErrorErr("metrics server failed", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logx.Warn("interrupt received, cancelling run")
		cancel()
	}()
	defer cancel()

	start := time.Now()
	result := orch.Run(ctx)
	logx.Info("run finished",
		"runId", result.RunID,
		"stage", string(result.FinalStage),
		"dir", result.Dir,
		"totalResponses", result.TotalResponses,
		"jsonCaptures", result.JSONCaptures,
		"duplicatesSkipped", result.DuplicatesSkipped,
		"elapsed", time.Since(start).String(),
	)

	if result.Err != nil {
		logx.ErrorErr("run failed", result.Err)
		os.Exit(1)
	}
}
