package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdamBeresnev/club-brackets/internal/config"
	"github.com/AdamBeresnev/club-brackets/internal/db"
	"github.com/AdamBeresnev/club-brackets/internal/metrics"
	"github.com/AdamBeresnev/club-brackets/internal/middleware"
	"github.com/AdamBeresnev/club-brackets/internal/service"
	"github.com/AdamBeresnev/club-brackets/internal/store"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"
)

// application holds everything the handlers need.
type application struct {
	cfg            *config.Config
	sessionManager *scs.SessionManager
	userStore      *store.UserStore
	tournaments    *service.TournamentService
	brackets       *service.BracketGeneration
	matches        *service.MatchService
	users          *service.UserService
	metricsHandler http.Handler
}

func newApplication(cfg *config.Config, database *sqlx.DB, m metrics.Metrics, metricsHandler http.Handler) *application {
	tournamentStore := store.NewTournamentStore(database)
	userStore := store.NewUserStore(database)
	locks := service.NewTournamentLocks()
	opts := []service.Option{
		service.WithMetrics(m),
		service.WithResetCascade(cfg.ResetCascade),
	}

	sessionManager := scs.New()
	sessionManager.Lifetime = cfg.SessionLifetime
	sessionManager.Store = sqlite3store.New(database.DB)

	return &application{
		cfg:            cfg,
		sessionManager: sessionManager,
		userStore:      userStore,
		tournaments:    service.NewTournamentService(database, tournamentStore, locks, opts...),
		brackets:       service.NewBracketService(database, tournamentStore, locks, opts...),
		matches:        service.NewMatchService(database, tournamentStore, locks, opts...),
		users:          service.NewUserService(database, userStore, cfg.AdminEmails, opts...),
		metricsHandler: metricsHandler,
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration", "error", err)
	}
	cfg.ConfigureLogger()

	database, err := db.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatal("Failed to open database", "error", err)
	}
	defer func() {
		log.Info("Closing database connection")
		database.Close()
	}()

	if err := db.RunMigrations(database); err != nil {
		log.Fatal("Failed to run migrations", "error", err)
	}

	middleware.InitAuth(cfg)

	app := newApplication(cfg, database, metrics.NewService(), metrics.NewMetricsHandler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", "addr", "http://localhost"+srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", "error", err)
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Server shutdown failed", "error", err)
		} else {
			log.Info("Server gracefully stopped")
		}
	}
}
