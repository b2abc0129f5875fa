package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// OpenSQLite открывает SQLite-базу и применяет схему. path ":memory:" - база в памяти (тесты).
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	inMemory := path == ":memory:" || strings.Contains(path, "mode=memory")

	dsn := path
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Одно соединение: у базы в памяти у каждого соединения своя копия,
	// а у файловой SQLite писатель все равно один
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if inMemory {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	for _, m := range sqliteMigrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			db.Close()
			return nil, fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return db, nil
}
