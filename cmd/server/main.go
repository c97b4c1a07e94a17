package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gyaneshwarpardhi/pointlens/internal/analytics"
	"github.com/gyaneshwarpardhi/pointlens/internal/api"
	"github.com/gyaneshwarpardhi/pointlens/internal/config"
	"github.com/gyaneshwarpardhi/pointlens/internal/event"
	"github.com/gyaneshwarpardhi/pointlens/internal/ledger"
	"github.com/gyaneshwarpardhi/pointlens/internal/ledger/memory"
	"github.com/gyaneshwarpardhi/pointlens/internal/ledger/suirpc"
	"github.com/gyaneshwarpardhi/pointlens/internal/resolve"
)

// ledgerSource is what the server needs from a ledger adapter.
type ledgerSource interface {
	ledger.Source
	resolve.Fetcher
}

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	cfgPath := flag.String("config", "configs/pointlens.yaml", "Path to YAML config")
	replay := flag.String("replay", "", "Serve events from a JSON dump instead of the Sui node")
	flag.Parse()

	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	// The level is shared by every component logger so log.level reloads
	// reach them. The format applies at start-up.
	level := new(slog.LevelVar)
	level.Set(parseLevel(cfg.Log.Level))
	logger := newLogger(cfg.Log, level, os.Stdout)
	slog.SetDefault(logger)

	// ── Ledger adapter ────────────────────────────────────────────────────────
	var src ledgerSource
	if *replay != "" {
		mem, err := loadReplay(*replay)
		if err != nil {
			slog.Error("failed to load replay file", "err", err)
			os.Exit(1)
		}
		src = mem
		slog.Info("serving replayed events", "path", *replay)
	} else {
		src = suirpc.New(cfg.Ledger, suirpc.WithLogger(logger))
		slog.Info("reading events from sui", "rpc", cfg.Ledger.RPCURL, "package", cfg.Ledger.PackageID, "module", cfg.Ledger.Module)
	}

	// ── Resolver + facade ─────────────────────────────────────────────────────
	resolver := resolve.New(src, cfg.Resolver, resolve.WithLogger(logger))
	svc := analytics.New(src, resolver, cfg, analytics.WithLogger(logger))

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	loader.OnChange(func(newCfg *config.Config) {
		svc.SwapConfig(newCfg)
		level.Set(parseLevel(newCfg.Log.Level))
		if newCfg.Log.Format != cfg.Log.Format {
			slog.Warn("log.format change needs a restart", "active", cfg.Log.Format, "configured", newCfg.Log.Format)
		}
		slog.Info("config hot-reloaded", "earned_ops", newCfg.Classifier.EarnedOps, "redeemed_ops", newCfg.Classifier.RedeemedOps)
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         *addr,
		Handler:      api.New(svc, loader),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	slog.Info("goodbye", "resolved_names", resolver.Len())
}

func newLogger(conf config.LogConf, level slog.Leveler, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if conf.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// parseLevel maps log.level to a slog level; unknown names mean info.
func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// replayFile is the JSON dump format: events plus optional names.
type replayFile struct {
	Events   []event.RawEvent  `json:"events"`
	Entities []ledger.Entity   `json:"entities"`
	Names    map[string]string `json:"names"`
}

func loadReplay(path string) (*memory.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f replayFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	src := memory.New(f.Events...)
	for _, e := range f.Entities {
		src.AddEntity(e)
	}
	for id, name := range f.Names {
		src.SetName(id, name)
	}
	return src, nil
}
