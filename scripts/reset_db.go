package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/clpm/internal/config"
	"github.com/elys-network/clpm/internal/logger"
	"github.com/elys-network/clpm/internal/state"
)

// Drops and recreates the state schema. The persisted position id is lost, so only run it
// once the position has been closed or withdrawn.
func main() {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logger.Initialize(logLevel)
	log.Info().Msg("Starting database reset script...")

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found or error loading .env file. Relying on OS environment variables.")
	}

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx := context.Background()
	db := config.Database

	var (
		store *state.Store
		err   error
	)
	if db.Driver == config.DriverSQLite {
		log.Info().Str("path", db.SQLitePath).Msg("Opening SQLite database")
		store, err = state.OpenSQLite(ctx, db.SQLitePath)
	} else {
		log.Info().
			Str("host", db.Host).
			Int("port", db.Port).
			Str("user", db.User).
			Str("dbname", db.Name).
			Msg("Connecting to database")
		store, err = state.OpenPostgres(ctx, state.DBConfig{
			Host:     db.Host,
			Port:     db.Port,
			User:     db.User,
			Password: db.Password,
			DBName:   db.Name,
			SSLMode:  db.SSLMode,
		})
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database connection")
	}
	defer store.Close()

	log.Info().Str("dialect", string(store.Dialect())).Msg("Connected to database. Attempting to drop all tables...")
	if err := store.DropSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to drop tables")
	}
	log.Info().Msg("Successfully dropped all tables")

	log.Info().Msg("Recreating database schema...")
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to recreate database schema")
	}
	log.Info().Msg("Database schema successfully recreated")

	log.Info().Msg("Database reset complete!")
}
