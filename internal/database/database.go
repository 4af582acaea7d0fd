// Package database opens the local job history database.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"tubefetch/internal/domain/consts"
	"tubefetch/internal/domain/logger"

	// Package sqlite3 provides interface to SQLite3 databases.
	_ "github.com/mattn/go-sqlite3"
)

const (
	dbDriver = "sqlite3"
)

// Database holds the history database handle.
type Database struct {
	DB *sql.DB
}

// InitDB opens (creating if needed) the database at path.
func InitDB(path string) (d *Database, err error) {
	if err := os.MkdirAll(filepath.Dir(path), consts.PermsHomeProgDir); err != nil {
		return nil, fmt.Errorf("failed to create database directory for %q: %w", path, err)
	}

	db, err := sql.Open(dbDriver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at path %q: %w", path, err)
	}
	defer func() {
		if err != nil {
			if closeErr := db.Close(); closeErr != nil {
				logger.Pl.E("Failed to close database after setup error: %v", closeErr)
			}
		}
	}()

	// One writer at a time; polling goroutines share this handle.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA synchronous = NORMAL;`,
	}
	for _, p := range pragmas {
		if _, err = db.Exec(p); err != nil {
			return nil, fmt.Errorf("failed to run %q: %w", p, err)
		}
	}

	d = &Database{DB: db}
	if err = d.initTables(); err != nil {
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	if err = os.Chmod(path, consts.PermsDBFile); err != nil {
		logger.Pl.W("Could not restrict permissions on %q: %v", path, err)
		err = nil
	}
	return d, nil
}

// Close closes the database handle.
func (d *Database) Close() error {
	if d == nil || d.DB == nil {
		return nil
	}
	return d.DB.Close()
}

// initTables initializes the SQL tables.
func (d *Database) initTables() (err error) {
	tx, err := d.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Pl.E("Panic rollback failed for table creation: %v", rbErr)
			}
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Pl.E("transaction rollback failed after original error %v: %v", err, rbErr)
			}
		}
	}()

	if err = initJobsTable(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
