// Command orderbench scores the order parser against a CSV of reference
// answers and writes a per-case report.
//
// Usage:
//
//	orderbench -config config.yaml -cases orders_dataset.csv
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/MrWong99/orderbot/internal/app"
	"github.com/MrWong99/orderbot/internal/bench"
	"github.com/MrWong99/orderbot/internal/config"
	"github.com/MrWong99/orderbot/internal/gateway"
	"github.com/MrWong99/orderbot/internal/menu"
	"github.com/MrWong99/orderbot/internal/orderparse"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	casesPath := flag.String("cases", "orders_dataset.csv", "CSV with request and answer_json columns")
	outPath := flag.String("out", "", "report CSV path (default: <cases>_report.csv)")
	limit := flag.Int("limit", 0, "evaluate at most this many rows (0 = all)")
	workers := flag.Int("workers", 1, "cases evaluated concurrently")
	temperature := flag.Float64("temperature", -1, "override llm.temperature (negative keeps the config value)")
	quiet := flag.Bool("quiet", false, "suppress per-case progress lines")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "orderbench: %v\n", err)
		return 1
	}
	if *temperature >= 0 {
		cfg.LLM.Temperature = *temperature
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Server.LogLevel.Slog()}))
	slog.SetDefault(logger)

	cat, err := menu.Load(cfg.Menu.Path)
	if err != nil {
		slog.Error("failed to load menu", "err", err)
		return 1
	}

	reg := config.NewRegistry()
	app.RegisterBuiltinProviders(reg)
	gw, err := app.NewGateway(cfg.LLM, reg, gateway.WithLogger(logger))
	if err != nil {
		slog.Error("failed to build model gateway", "err", err)
		return 1
	}
	parser := orderparse.New(gw, cat, orderparse.WithLogger(logger))

	f, err := os.Open(*casesPath)
	if err != nil {
		slog.Error("failed to open cases", "err", err)
		return 1
	}
	cases, err := bench.ReadCases(f, *limit)
	f.Close()
	if err != nil {
		slog.Error("failed to read cases", "err", err)
		return 1
	}
	slog.Info("benchmark starting", "cases", len(cases), "workers", *workers, "profiles", gw.Profiles())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := &bench.Runner{
		Extractor: parser,
		Workers:   *workers,
		Logger:    logger,
	}
	if !*quiet {
		runner.Progress = printProgress
	}
	results, err := runner.Run(ctx, cases)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Warn("benchmark interrupted")
		} else {
			slog.Error("benchmark failed", "err", err)
		}
		return 1
	}

	fmt.Println()
	bench.Summarize(results).Print(os.Stdout)

	out := *outPath
	if out == "" {
		out = strings.TrimSuffix(*casesPath, filepath.Ext(*casesPath)) + "_report.csv"
	}
	if err := writeReport(out, results); err != nil {
		slog.Error("failed to write report", "err", err)
		return 1
	}
	fmt.Printf("\nReport saved to: %s\n", out)
	return 0
}

func printProgress(done, total int, r bench.Result) {
	status := "OK"
	if !r.Match {
		reason := r.ErrorKind
		if reason == "" {
			reason = r.Diff
		}
		status = "ERR(" + reason + ")"
	}
	fmt.Printf("[%d/%d] %s  %d ms  %s\n", done, total, status, r.Latency.Milliseconds(), truncate(r.Request, 60))
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func writeReport(path string, results []bench.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := bench.WriteReport(f, results); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
