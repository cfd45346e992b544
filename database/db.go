// Package database opens the relational store and hosts its helpers.
package database

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/postboard/postboard/config"
	"github.com/postboard/postboard/database/model"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func initModels(db *gorm.DB) error {
	models := []any{
		&model.User{},
		&model.Post{},
	}
	for _, model := range models {
		if err := db.AutoMigrate(model); err != nil {
			log.Printf("Error auto migrating model: %v", err)
			return err
		}
	}
	return nil
}

func gormConfig() *gorm.Config {
	var gormLogger logger.Interface
	if config.IsDebug() {
		gormLogger = logger.Default
	} else {
		gormLogger = logger.Discard
	}
	return &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		TranslateError:         true,
	}
}

// InitDB opens the configured database and migrates the schema.
func InitDB(c *config.DatabaseConfig) (*gorm.DB, error) {
	if err := c.ValidateConfig(); err != nil {
		return nil, err
	}
	if err := c.EnsureDirectoryExists(); err != nil {
		return nil, err
	}

	var dialector gorm.Dialector
	switch c.Type {
	case config.DatabaseTypePostgreSQL:
		dialector = postgres.Open(c.GetDSN())
	default:
		dialector = sqlite.Open(c.GetDSN())
	}
	return Open(dialector, c.IsSQLite())
}

// Open wraps an already chosen dialector; tests use it with in-memory or mocked connections.
func Open(dialector gorm.Dialector, isSQLite bool) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, gormConfig())
	if err != nil {
		return nil, err
	}

	if isSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// SQLite serializes writers anyway; one connection avoids SQLITE_BUSY under WAL.
		sqlDB.SetMaxOpenConns(1)
		for _, pragma := range []string{
			"PRAGMA cache_size = -64000;",
			"PRAGMA temp_store = MEMORY;",
			"PRAGMA foreign_keys = ON;",
		} {
			if _, err := sqlDB.Exec(pragma); err != nil {
				return nil, fmt.Errorf("%s %w", pragma, err)
			}
		}
	}

	if err := initModels(db); err != nil {
		return nil, err
	}
	return db, nil
}

func CloseDB(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	if db.Dialector.Name() == "sqlite" {
		if err := Checkpoint(db); err != nil {
			log.Printf("error executing checkpoint: %v", err)
		}
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicate reports a unique constraint violation. Dialectors translate
// it to gorm.ErrDuplicatedKey; the message check covers drivers that don't.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

// Checkpoint folds the SQLite WAL back into the main database file.
func Checkpoint(db *gorm.DB) error {
	return db.Exec("PRAGMA wal_checkpoint(TRUNCATE);").Error
}
