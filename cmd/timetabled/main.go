// Command timetabled is the thin CLI wrapper around internal/engine
// (spec.md §6): it reads one JSON problem file, runs Optimize, and
// writes the JSON response to stdout, following the teacher's
// config/logger/metrics wiring order (cmd/api-gateway/main.go) minus the
// HTTP transport layer this module does not implement.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/campusplan/timetable-engine/internal/engine"
	"github.com/campusplan/timetable-engine/pkg/config"
	"github.com/campusplan/timetable-engine/pkg/logger"
	"github.com/campusplan/timetable-engine/pkg/metrics"
)

func main() {
	inputPath := flag.String("input", "", "path to a JSON-encoded OptimizeRequest (defaults to stdin)")
	outputPath := flag.String("output", "", "path to write the JSON OptimizeResponse (defaults to stdout)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	registry := prometheus.NewRegistry()
	rec := metrics.New(registry)

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Addr, registry, logr)
	}

	eng := engine.New(logr, rec)

	req, err := readRequest(*inputPath)
	if err != nil {
		logr.Sugar().Fatalw("failed to read request", "error", err)
	}
	applySolverDefaults(&req, cfg)

	resp, err := eng.Optimize(context.Background(), req)
	if err != nil {
		logr.Sugar().Errorw("optimize failed", "error", err)
		os.Exit(1)
	}

	if err := writeResponse(*outputPath, resp); err != nil {
		logr.Sugar().Fatalw("failed to write response", "error", err)
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, logr *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logr.Sugar().Errorw("metrics server stopped", "error", err)
	}
}

func readRequest(path string) (engine.OptimizeRequest, error) {
	var req engine.OptimizeRequest
	f := os.Stdin
	if path != "" {
		opened, err := os.Open(path)
		if err != nil {
			return req, err
		}
		defer opened.Close()
		f = opened
	}
	dec := json.NewDecoder(f)
	if err := dec.Decode(&req); err != nil {
		return req, err
	}
	return req, nil
}

func writeResponse(path string, resp *engine.OptimizeResponse) error {
	out := os.Stdout
	if path != "" {
		created, err := os.Create(path)
		if err != nil {
			return err
		}
		defer created.Close()
		out = created
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func applySolverDefaults(req *engine.OptimizeRequest, cfg *config.Config) {
	if req.MaxSolveTimeSeconds <= 0 {
		req.MaxSolveTimeSeconds = cfg.Solver.MaxSolveTime.Seconds()
	}
	if req.WeightPreference == 0 && req.WeightEfficiency == 0 && req.WeightBalance == 0 {
		req.WeightPreference = cfg.Solver.DefaultWeightPreference
		req.WeightEfficiency = cfg.Solver.DefaultWeightEfficiency
		req.WeightBalance = cfg.Solver.DefaultWeightBalance
	}
}
