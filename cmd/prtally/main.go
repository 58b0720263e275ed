// Command prtally serves estimate-vs-actual effort reports built from
// pull request metadata.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/prtally/prtally/internal/config"
	"github.com/prtally/prtally/internal/report"
	"github.com/prtally/prtally/internal/server"
	"github.com/prtally/prtally/pkg/githubsearch"
)

func main() {
	var (
		addr    = flag.String("addr", "", "listen address (overrides LISTEN)")
		org     = flag.String("org", "", "GitHub organization (overrides ORG)")
		labels  = flag.String("labels", "", "comma-separated label filter (overrides LABELS)")
		since   = flag.String("since", "", "window start, YYYY-MM-DD (overrides SINCE)")
		until   = flag.String("until", "", "window end, YYYY-MM-DD (overrides UNTIL)")
		oneshot = flag.Bool("oneshot", false, "print one report to stdout and exit")
		verbose = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(logger, *addr, *org, *labels, *since, *until, *oneshot); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, addr, org, labels, since, until string, oneshot bool) error {
	cfg, err := config.Load(logger)
	if err != nil {
		return err
	}
	if org != "" {
		cfg.Org = org
	}
	if labels != "" {
		cfg.Labels = nil
		for _, label := range strings.Split(labels, ",") {
			if label = strings.TrimSpace(label); label != "" {
				cfg.Labels = append(cfg.Labels, label)
			}
		}
	}
	if since != "" {
		cfg.Since = since
	}
	if until != "" {
		cfg.Until = until
	}
	if addr != "" {
		cfg.Listen = addr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	token := cfg.Token(ctx)
	client := githubsearch.New(token, cfg.RequestsPerSec, logger)
	svc := report.New(client, cfg.ProjectPrefix, report.Options{
		TTL:      cfg.CacheTTL,
		LabelTTL: cfg.LabelCacheTTL,
		MaxItems: cfg.MaxItems,
		PageSize: cfg.PageSize,
		Logger:   logger,
	})

	if oneshot {
		return printReport(ctx, svc, cfg)
	}

	srv := server.New(server.Options{
		Reporter:     svc,
		Pinger:       client,
		Org:          cfg.Org,
		Labels:       cfg.Labels,
		Since:        cfg.Since,
		Until:        cfg.Until,
		FetchTimeout: cfg.FetchTimeout,
		Logger:       logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Listen, "org", cfg.Org)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// printReport fetches once and writes a plain-text report to stdout.
func printReport(ctx context.Context, svc *report.Service, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout)
	defer cancel()

	rep, _, err := svc.Report(ctx, report.Params{
		Org:    cfg.Org,
		Labels: cfg.Labels,
		Since:  cfg.Since,
		Until:  cfg.Until,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Effort report for %s", cfg.Org)
	if cfg.Since != "" {
		fmt.Printf(" since %s", cfg.Since)
	}
	if cfg.Until != "" {
		fmt.Printf(" until %s", cfg.Until)
	}
	fmt.Printf("\n%d of %d PRs processed\n\n", rep.TotalProcessed, rep.TotalFound)

	fmt.Println("By developer:")
	for _, name := range sortedKeys(rep.Developers) {
		r := rep.Developers[name]
		fmt.Printf("  %-24s %3d PRs  est %6.2fh  actual %6.2fh\n",
			name, r.TotalPRs, r.TotalEstimate, r.TotalActual)
	}

	fmt.Println("\nBy project:")
	for _, key := range sortedKeys(rep.Projects) {
		r := rep.Projects[key]
		fmt.Printf("  %-24s %3d PRs  est %6.2fh  actual %6.2fh  (%s)\n",
			key, r.TotalPRs, r.TotalEstimate, r.TotalActual, strings.Join(r.Developers, ", "))
	}

	fmt.Printf("\nTotals: est %.2fh, actual %.2fh\n", rep.TotalEstimate, rep.TotalActual)
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
