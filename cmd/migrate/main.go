package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/reviewpulse/backend/internal/database"
)

// Migration CLI over the schema files embedded in internal/database.
// Commands: up (default), down -steps N, version.
func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var (
		command     string
		steps       int
		databaseURL string
	)

	flag.StringVar(&command, "command", "up", "Migration command: up, down, version")
	flag.IntVar(&steps, "steps", 1, "Number of migrations to roll back (down only)")
	flag.StringVar(&databaseURL, "database", "", "Database URL (overrides DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		log.Fatal().Msg("DATABASE_URL environment variable or -database flag is required")
	}

	switch command {
	case "up":
		if err := database.RunMigrations(databaseURL); err != nil {
			log.Fatal().Err(err).Msg("Migration failed")
		}
	case "down":
		if steps < 1 {
			log.Fatal().Msg("Down command requires -steps of at least 1")
		}
		if err := database.RollbackMigration(databaseURL, steps); err != nil {
			log.Fatal().Err(err).Msg("Rollback failed")
		}
	case "version":
		version, dirty, err := database.MigrationVersion(databaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to get version")
		}
		if version == 0 && !dirty {
			log.Info().Msg("No migrations have been applied yet")
			return
		}
		log.Info().
			Uint("version", version).
			Bool("dirty", dirty).
			Msg("Current migration version")
	default:
		log.Fatal().Str("command", command).Msg("Unknown command")
	}
}
