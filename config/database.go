package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
)

// DatabaseType represents the type of database
type DatabaseType string

const (
	DatabaseTypeSQLite     DatabaseType = "sqlite"
	DatabaseTypePostgreSQL DatabaseType = "postgres"
)

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Type     DatabaseType   `toml:"type"`
	SQLite   SQLiteConfig   `toml:"sqlite"`
	Postgres PostgresConfig `toml:"postgres"`
}

// SQLiteConfig locates the database file and sets the pragmas the driver
// applies to every connection.
type SQLiteConfig struct {
	Path        string `toml:"path"`
	JournalMode string `toml:"journal_mode"`
	Synchronous string `toml:"synchronous"`
	BusyTimeout int    `toml:"busy_timeout"` // milliseconds
}

// DSN is the go-sqlite3 connection string for Path with the pragmas set.
func (c *SQLiteConfig) DSN() string {
	params := url.Values{}
	if c.JournalMode != "" {
		params.Set("_journal_mode", c.JournalMode)
	}
	if c.Synchronous != "" {
		params.Set("_synchronous", c.Synchronous)
	}
	if c.BusyTimeout > 0 {
		params.Set("_busy_timeout", strconv.Itoa(c.BusyTimeout))
	}
	if len(params) == 0 {
		return c.Path
	}
	return c.Path + "?" + params.Encode()
}

// UsesWAL reports whether the database runs in write-ahead log mode, the
// only mode where a checkpoint has work to do.
func (c *SQLiteConfig) UsesWAL() bool {
	return c.JournalMode == "" || c.JournalMode == "WAL" || c.JournalMode == "wal"
}

// PostgresConfig holds PostgreSQL specific configuration
type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Database string `toml:"database"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	SSLMode  string `toml:"ssl_mode"`
	TimeZone string `toml:"time_zone"`
}

// GetDSN returns the data source name for the configured driver.
func (c *DatabaseConfig) GetDSN() string {
	switch c.Type {
	case DatabaseTypePostgreSQL:
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
			c.Postgres.Host,
			c.Postgres.Username,
			c.Postgres.Password,
			c.Postgres.Database,
			c.Postgres.Port,
			c.Postgres.SSLMode,
			c.Postgres.TimeZone,
		)
	default:
		return c.SQLite.DSN()
	}
}

// GetDefaultDatabaseConfig returns default database configuration
func GetDefaultDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Type: DatabaseTypeSQLite,
		SQLite: SQLiteConfig{
			Path:        getDefaultSQLitePath(),
			JournalMode: "WAL",
			Synchronous: "NORMAL",
			BusyTimeout: 5000,
		},
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "postboard",
			Username: "postboard",
			Password: "",
			SSLMode:  "disable",
			TimeZone: "UTC",
		},
	}
}

func getDefaultSQLitePath() string {
	if IsDebug() {
		return "db/postboard.db"
	}
	return GetDBPath()
}

func (c *DatabaseConfig) applyEnv() {
	strs := map[string]*string{
		"DB_PATH":            &c.SQLite.Path,
		"SQLITE_JOURNAL":     &c.SQLite.JournalMode,
		"SQLITE_SYNCHRONOUS": &c.SQLite.Synchronous,
		"PG_HOST":            &c.Postgres.Host,
		"PG_DATABASE":        &c.Postgres.Database,
		"PG_USER":            &c.Postgres.Username,
		"PG_PASSWORD":        &c.Postgres.Password,
		"PG_SSLMODE":         &c.Postgres.SSLMode,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			*dst = v
		}
	}
	if v := os.Getenv(envPrefix + "DB_TYPE"); v != "" {
		c.Type = DatabaseType(v)
	}
}

// ValidateConfig validates the database configuration
func (c *DatabaseConfig) ValidateConfig() error {
	switch c.Type {
	case DatabaseTypeSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("SQLite path cannot be empty")
		}
		if c.SQLite.BusyTimeout < 0 {
			return fmt.Errorf("SQLite busy_timeout cannot be negative")
		}
	case DatabaseTypePostgreSQL:
		if c.Postgres.Host == "" {
			return fmt.Errorf("PostgreSQL host cannot be empty")
		}
		if c.Postgres.Database == "" {
			return fmt.Errorf("PostgreSQL database name cannot be empty")
		}
		if c.Postgres.Username == "" {
			return fmt.Errorf("PostgreSQL username cannot be empty")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			return fmt.Errorf("PostgreSQL port must be between 1 and 65535")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Type)
	}
	return nil
}

// IsPostgreSQL returns true if the database type is PostgreSQL
func (c *DatabaseConfig) IsPostgreSQL() bool {
	return c.Type == DatabaseTypePostgreSQL
}

// IsSQLite returns true if the database type is SQLite
func (c *DatabaseConfig) IsSQLite() bool {
	return c.Type == DatabaseTypeSQLite
}

// EnsureDirectoryExists ensures the directory for SQLite database exists
func (c *DatabaseConfig) EnsureDirectoryExists() error {
	if c.Type == DatabaseTypeSQLite {
		dir := filepath.Dir(c.SQLite.Path)
		return os.MkdirAll(dir, 0755)
	}
	return nil
}
