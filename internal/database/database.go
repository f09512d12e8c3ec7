// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// DB represents the database connection
type DB struct {
	*sql.DB
	driver string
	path   string

	squirrel sq.StatementBuilderType
}

// Config holds database configuration
type Config struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	Path     string // For SQLite
}

// NewConfig fills in defaults for the chosen driver
func NewConfig(driver, path, host string, port int, user, password, name string) *Config {
	if driver == "" {
		driver = "sqlite" // Default to SQLite
	}

	config := &Config{
		Driver: driver,
	}

	if driver == "postgres" {
		config.Host = orDefault(host, "localhost")
		config.Port = "5432"
		if port > 0 {
			config.Port = strconv.Itoa(port)
		}
		config.User = orDefault(user, "trimmarr")
		config.Password = orDefault(password, "trimmarr")
		config.DBName = orDefault(name, "trimmarr")
	} else {
		config.Path = orDefault(path, "./data/trimmarr.db")
	}

	return config
}

// InitDB opens a SQLite database at dbPath
func InitDB(dbPath string) (*DB, error) {
	return InitDBWithConfig(&Config{Driver: "sqlite", Path: dbPath})
}

// InitDBWithConfig initializes the database with the provided configuration
func InitDBWithConfig(config *Config) (*DB, error) {
	var (
		database *sql.DB
		err      error
	)

	maxRetries := 5
	baseDelay := time.Second

	if config.Driver == "postgres" {
		// PostgreSQL connection
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			config.Host, config.Port, config.User, config.Password, config.DBName)
		log.Debug().
			Str("host", config.Host).
			Str("port", config.Port).
			Str("database", config.DBName).
			Msg("Initializing PostgreSQL database")

		// Retry loop with linear backoff, the database container may still be starting
		for attempt := 1; attempt <= maxRetries; attempt++ {
			database, err = sql.Open("postgres", dsn)
			if err == nil {
				if err = database.Ping(); err == nil {
					break
				}
				database.Close()
			}

			if attempt == maxRetries {
				return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
			}

			delay := time.Duration(attempt) * baseDelay
			log.Debug().
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Retrying database connection")
			time.Sleep(delay)
		}
	} else {
		// SQLite connection
		dbDir := filepath.Dir(config.Path)
		// Create directory with restricted permissions
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, err
		}

		database, err = sql.Open("sqlite", config.Path)
		if err != nil {
			return nil, fmt.Errorf("error opening database: %w", err)
		}

		// Force SQLite to create the database file by pinging it
		if err := database.Ping(); err != nil {
			return nil, fmt.Errorf("error creating database file: %w", err)
		}

		if err := os.Chmod(config.Path, 0640); err != nil {
			return nil, fmt.Errorf("error setting database file permissions: %w", err)
		}
		log.Debug().
			Str("path", config.Path).
			Msg("Initializing SQLite database")
	}

	// Configure connection pool
	if config.Driver == "postgres" {
		database.SetMaxOpenConns(25)
		database.SetMaxIdleConns(25)
	} else {
		// A single writer avoids SQLITE_BUSY between concurrent runs and reads
		database.SetMaxOpenConns(1)
	}
	database.SetConnMaxLifetime(5 * time.Minute)

	log.Info().
		Str("driver", config.Driver).
		Msg("Successfully connected to database")

	db := &DB{
		DB:     database,
		driver: config.Driver,
		path:   config.Path,
		// set default placeholder for squirrel to support both sqlite and postgres
		squirrel: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}

	if err := db.initSchema(); err != nil {
		database.Close()
		return nil, fmt.Errorf("error initializing schema: %w", err)
	}

	return db, nil
}

// Path returns the database file path (for SQLite)
func (db *DB) Path() string {
	return db.path
}

// Driver returns the database driver name
func (db *DB) Driver() string {
	return db.driver
}

// initSchema creates the necessary database tables
func (db *DB) initSchema() error {
	var autoIncrement string
	if db.driver == "postgres" {
		autoIncrement = "SERIAL"
	} else {
		autoIncrement = "INTEGER"
	}

	_, err := db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS cleanup_runs (
			id %s PRIMARY KEY,
			run_id TEXT UNIQUE NOT NULL,
			source TEXT NOT NULL,
			dry_run BOOLEAN NOT NULL,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL,
			series_processed INTEGER NOT NULL DEFAULT 0,
			files_deleted INTEGER NOT NULL DEFAULT 0,
			episodes_unmonitored INTEGER NOT NULL DEFAULT 0,
			failure_count INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT ''
		)`, autoIncrement))
	if err != nil {
		return err
	}

	_, err = db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS cleanup_failures (
			id %s PRIMARY KEY,
			run_id TEXT NOT NULL,
			series_id INTEGER NOT NULL,
			episode_id INTEGER NOT NULL,
			episode_file_id INTEGER NOT NULL DEFAULT 0,
			op TEXT NOT NULL,
			reason TEXT NOT NULL
		)`, autoIncrement))
	if err != nil {
		return err
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_cleanup_failures_run_id ON cleanup_failures (run_id)`)
	return err
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
