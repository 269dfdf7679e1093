package main

import (
	"fmt"
	"os"

	"github.com/AdamBeresnev/club-brackets/internal/config"
	"github.com/AdamBeresnev/club-brackets/internal/db"
	"github.com/AdamBeresnev/club-brackets/internal/service"
	"github.com/AdamBeresnev/club-brackets/internal/store"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

var (
	dbPath       string
	resetCascade bool
)

var rootCmd = &cobra.Command{
	Use:   "bracketctl",
	Short: "Maintenance commands for the club brackets database",
	Long: `bracketctl works directly on the club brackets SQLite database. It runs
migrations, inspects brackets and repairs matches without going through the web server.`,
	SilenceUsage: true,
}

func init() {
	cfg, err := config.Load()
	defaultPath, defaultCascade := "club_brackets.db", false
	if err == nil {
		cfg.ConfigureLogger()
		defaultPath, defaultCascade = cfg.DBPath, cfg.ResetCascade
	}
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultPath, "Path to the SQLite database")
	rootCmd.PersistentFlags().BoolVar(&resetCascade, "cascade", defaultCascade, "Clear downstream slots when resetting a match")
}

// services is the slice of the application a command needs.
type services struct {
	db          *sqlx.DB
	tournaments *service.TournamentService
	matches     *service.MatchService
}

func openServices() (*services, error) {
	database, err := db.InitDB(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.RunMigrations(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	tournamentStore := store.NewTournamentStore(database)
	locks := service.NewTournamentLocks()
	return &services{
		db:          database,
		tournaments: service.NewTournamentService(database, tournamentStore, locks),
		matches:     service.NewMatchService(database, tournamentStore, locks, service.WithResetCascade(resetCascade)),
	}, nil
}

func (s *services) Close() error {
	return s.db.Close()
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "bracketctl: %s\n", err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
