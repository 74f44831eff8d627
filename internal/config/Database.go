package config

import (
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DBSettings holds the database selection. Live mode defaults to Postgres, paper mode to SQLite.
type DBSettings struct {
	Driver     string
	Host       string
	Port       int
	User       string
	Password   string
	Name       string
	SSLMode    string
	SQLitePath string
}

// Database is populated by LoadConfig.
var Database DBSettings

func loadDatabaseConfig() error {
	defaultDriver := DriverSQLite
	if RunMode == ModeLive {
		defaultDriver = DriverPostgres
	}

	db := DBSettings{
		Driver:     getEnvOrDefault("DB_DRIVER", defaultDriver),
		SQLitePath: getEnvOrDefault("SQLITE_PATH", "clpm.db"),
	}

	switch db.Driver {
	case DriverSQLite:
	case DriverPostgres:
		var err error
		if db.Host, err = getEnv("DB_HOST"); err != nil {
			return err
		}
		portStr := getEnvOrDefault("DB_PORT", "5432")
		if db.Port, err = strconv.Atoi(portStr); err != nil || db.Port <= 0 {
			return fmt.Errorf("%w: DB_PORT must be a positive integer, got %q", ErrInvalidConfig, portStr)
		}
		if db.User, err = getEnv("DB_USER"); err != nil {
			return err
		}
		if db.Password, err = getEnv("DB_PASSWORD"); err != nil {
			return err
		}
		if db.Name, err = getEnv("DB_NAME"); err != nil {
			return err
		}
		db.SSLMode = getEnvOrDefault("DB_SSLMODE", "disable")
	default:
		return fmt.Errorf("%w: DB_DRIVER must be %q or %q, got %q", ErrInvalidConfig, DriverPostgres, DriverSQLite, db.Driver)
	}

	Database = db

	log.Debug().
		Str("driver", db.Driver).
		Str("host", db.Host).
		Str("name", db.Name).
		Str("sqlitePath", db.SQLitePath).
		Msg("Database configuration loaded successfully.")
	return nil
}
