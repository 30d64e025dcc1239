package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dmeshram/greenloop/internal/activity"
	"github.com/dmeshram/greenloop/internal/api"
	"github.com/dmeshram/greenloop/internal/auth"
	"github.com/dmeshram/greenloop/internal/catalog"
	"github.com/dmeshram/greenloop/internal/config"
	"github.com/dmeshram/greenloop/internal/logger"
	"github.com/dmeshram/greenloop/internal/outbox"
	"github.com/dmeshram/greenloop/internal/progress"
	"github.com/dmeshram/greenloop/internal/reconcile"
	"github.com/dmeshram/greenloop/internal/store"
	"github.com/dmeshram/greenloop/internal/streak"
	"github.com/dmeshram/greenloop/internal/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	log := logger.Init(logFile, cfg.IsDevelopment(), cfg.SentryDSN)
	log.Info("starting greenloop", "env", cfg.AppEnv, "api", cfg.APIBase, "offline", cfg.Offline())

	s, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	cat := catalog.New(s, log, cfg.StreakDays)
	prog := progress.NewStore(s, cat, log)
	tracker := streak.NewTracker(s, log)
	queue := outbox.New(s, log)
	session := auth.NewSession(s, log)

	rules := reconcile.DefaultRules()
	if cfg.RulesFile != "" {
		if rules, err = reconcile.LoadRules(cfg.RulesFile); err != nil {
			return fmt.Errorf("load rules: %w", err)
		}
	}

	bus := activity.NewBus(log)
	defer bus.Close()

	deps := tui.Deps{
		Bus:       bus,
		Catalog:   cat,
		Progress:  prog,
		Streak:    tracker,
		Session:   session,
		Outbox:    queue,
		History:   s,
		APIBase:   cfg.APIBase,
		ExportDir: exportDir(),
		Log:       log,
	}

	rd := reconcile.Deps{
		Bus:          bus,
		Progress:     prog,
		Streak:       tracker,
		StreakGoalID: catalog.StreakGoalID,
		Rules:        rules,
		Session:      session,
		Outbox:       queue,
		History:      s,
		Log:          log,
	}

	if !cfg.Offline() {
		client := api.NewClient(cfg.APIBase, &http.Client{Timeout: cfg.HTTPTimeout}, session)
		rd.Remote = client
		deps.Remote = client
		deps.Fetcher = client
		deps.Goals = client
		deps.Recent = client
		deps.Insights = client
	} else {
		deps.APIBase = ""
	}

	// Bus handlers run inside Update, where Send would block, so notify
	// the program from a fresh goroutine.
	var p *tea.Program
	rd.OnChange = func() {
		go p.Send(tui.ProgressChangedMsg{})
	}

	rec := reconcile.New(rd)
	if !cfg.Offline() {
		deps.Sync = rec
	}
	p = tea.NewProgram(tui.NewApp(deps), tea.WithAltScreen())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec.Start(ctx)
	defer rec.Close()

	if _, err := p.Run(); err != nil {
		return err
	}
	log.Info("greenloop stopped")
	return nil
}

func exportDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
