/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the approval engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load YAML config
  2. Configure zerolog
  3. Open SQLite store
  4. Wire engine, resolver, renderer, notification sink
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to the YAML config file (optional; defaults apply)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with defaults (approval.db, :8080)
  ./server

  # Run with a config file
  ./server -config=/etc/approval/config.yaml

ENVIRONMENT:
  APPROVAL_LISTEN_ADDR, APPROVAL_DB_PATH, APPROVAL_LOG_LEVEL,
  APPROVAL_OVERRIDES override the config file.

SEE ALSO:
  - config/config.go: Configuration loading
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/intraflow/approval-engine/api"
	"github.com/intraflow/approval-engine/approval"
	"github.com/intraflow/approval-engine/config"
	"github.com/intraflow/approval-engine/render"
	"github.com/intraflow/approval-engine/store/sqlite"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := newLogger(cfg.Logging)

	// Store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("Failed to open database")
	}
	defer store.Close()

	// Engine wiring
	overrides := make([]approval.EmployeeID, 0, len(cfg.Approval.Overrides))
	for _, id := range cfg.Approval.Overrides {
		overrides = append(overrides, approval.EmployeeID(id))
	}
	resolver := &approval.Resolver{Assignments: store, Overrides: overrides}
	sink := &approval.LogSink{Log: log}
	renderer := render.NewPDFRenderer(cfg.Approval.Organization)
	engine := approval.NewEngine(store, resolver, sink, renderer, log)

	handler := api.NewHandler(engine, store, log)
	router := api.NewRouter(handler, cfg.Server.CORSOrigins)

	server := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.ListenAddr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stderr)
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return logger.Level(level).With().Timestamp().Logger()
}
