// ABOUTME: Entry point for the courtbot reminder service
// ABOUTME: Serves the SMS webhook, runs the sweeps and hosts the console harness

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/civicbots/courtbot/internal/api"
	"github.com/civicbots/courtbot/internal/bus"
	"github.com/civicbots/courtbot/internal/casedata"
	"github.com/civicbots/courtbot/internal/config"
	"github.com/civicbots/courtbot/internal/console"
	"github.com/civicbots/courtbot/internal/message"
	"github.com/civicbots/courtbot/internal/store"
	"github.com/civicbots/courtbot/internal/sweep"
	"github.com/civicbots/courtbot/internal/twilio"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                       _   _           _
   ___ ___  _   _ _ __| |_| |__   ___ | |_
  / __/ _ \| | | | '__| __| '_ \ / _ \| __|
 | (_| (_) | |_| | |  | |_| |_) | (_) | |_
  \___\___/ \__,_|_|   \__|_.__/ \___/ \__|
`

// getConfigPath returns the path to the courtbot config file.
// Priority: COURTBOT_CONFIG env var > ./courtbot.yaml
func getConfigPath() string {
	if envPath := os.Getenv("COURTBOT_CONFIG"); envPath != "" {
		return envPath
	}
	return "courtbot.yaml"
}

func main() {
	// Local development keeps secrets in .env; missing file is fine.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Println("Usage: courtbot <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve          Start the SMS webhook server and periodic sweeps")
		fmt.Println("  console        Run a registration conversation in the terminal")
		fmt.Println("  remind         Send due reminders once and exit")
		fmt.Println("  check-missing  Re-check unbound case numbers once and exit")
		fmt.Println("  init           Write an example config file")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "console":
		err = runConsole(ctx)
	case "remind":
		err = runRemind(ctx)
	case "check-missing":
		err = runCheckMissing(ctx)
	case "init":
		err = runInit()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// engine bundles the wired components every command needs.
type engine struct {
	cfg      *config.Config
	store    *store.SQLiteStore
	bus      *bus.Bus
	composer message.Composer
	sweeper  *sweep.Sweeper
}

func (e *engine) Close() {
	e.sweeper.Close()
	if err := e.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "closing store: %v\n", err)
	}
}

func buildEngine(cfg *config.Config, logger *slog.Logger) (*engine, error) {
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	b := bus.New(logger)
	for _, src := range cfg.Sources {
		b.RegisterSource(casedata.NewSource(casedata.Config{
			Name:    src.Name,
			BaseURL: src.URL,
			Format:  src.Format,
			APIKey:  src.APIKey,
		}))
	}
	if cfg.Twilio.Enabled {
		b.RegisterSender(twilio.NewClient(
			cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.Phone))
	}

	composer := message.English{PublicURL: cfg.Court.PublicURL, Title: cfg.Court.Title}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	sweeper := sweep.NewSweeper(st, b, b, composer, sweep.Options{
		ReminderDaysOut: cfg.Reminders.DaysOut,
		UnboundTTL:      cfg.UnboundTTL(),
		Location:        loc,
		Workers:         cfg.Reminders.Workers,
	}, logger)

	return &engine{cfg: cfg, store: st, bus: b, composer: composer, sweeper: sweeper}, nil
}

func loadConfig() (*config.Config, error) {
	path := getConfigPath()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	return config.Load(path)
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:  %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:    %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Store:   %s\n", cfg.Database.Path)
	if cfg.Twilio.Enabled {
		green.Print("    ▶ ")
		fmt.Print("Twilio:  ")
		cyan.Println(cfg.Twilio.Phone)
	}
	fmt.Println()

	eng, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	mux := http.NewServeMux()
	webhook := twilio.NewHandler(eng.store, eng.bus, eng.composer, logger)
	webhook.Register(mux)
	api.NewHandler(eng.store, eng.bus, eng.composer, logger).Register(mux)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go runSweepLoop(ctx, eng, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting courtbot",
			"config", configPath, "http_addr", cfg.Server.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runSweepLoop runs both sweeps at the configured interval until ctx ends.
func runSweepLoop(ctx context.Context, eng *engine, logger *slog.Logger) {
	interval := eng.cfg.Reminders.SweepInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("sweep loop starting", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := eng.sweeper.CheckMissingCases(ctx); err != nil {
				logger.Error("missing-case sweep failed", "error", err)
			}
			if err := eng.sweeper.SendDueReminders(ctx); err != nil {
				logger.Error("reminder sweep failed", "error", err)
			}
		}
	}
}

func runConsole(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(config.LoggingConfig{Level: "warn", Format: cfg.Logging.Format})

	eng, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer eng.Close()
	eng.bus.RegisterSender(console.NewSender(os.Stdout))

	color.New(color.FgCyan).Print(banner)
	c := console.New(eng.store, eng.bus, eng.composer, os.Stdin, os.Stdout, logger)
	return c.Run(ctx)
}

func runRemind(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)

	eng, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	return eng.sweeper.SendDueReminders(ctx)
}

func runCheckMissing(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)

	eng, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	return eng.sweeper.CheckMissingCases(ctx)
}

const exampleConfig = `server:
  http_addr: ":8080"

database:
  path: courtbot.db

reminders:
  days_out: 2
  unbound_ttl_days: 7
  time_zone: America/Chicago
  sweep_interval: 1h
  workers: 4

court:
  public_url: https://www.example-court.gov
  title: Courtbot

twilio:
  enabled: false
  account_sid: ${TWILIO_ACCOUNT_SID}
  auth_token: ${TWILIO_AUTH_TOKEN}
  phone: "+15550000000"

sources:
  - name: county
    url: https://api.example-court.gov
    format: json

logging:
  level: info
  format: text
`

func runInit() error {
	path := getConfigPath()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}
