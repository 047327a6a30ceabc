package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB holds the SQLite store backing the event bus: envelopes, the
// handled ledger, leases and the sync queue.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

var (
	// ErrConcurrentModification means a row was not in the expected
	// state when an update ran, i.e. somebody else got there first.
	ErrConcurrentModification = errors.New("concurrent modification")
)

// NewDB opens (creating if needed) the database at path and ensures
// the schema exists.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL, чтобы чтение из других процессов не блокировало запись
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite пускает одного писателя за раз — одно соединение,
	// иначе под нагрузкой ловим SQLITE_BUSY
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{DB: db, logger: logger}

	if err := instance.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

func (db *DB) createTables() error {
	queries := []string{
		// Журнал событий: по конверту на каждое опубликованное событие
		`CREATE TABLE IF NOT EXISTS task_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			aggregate_id TEXT NOT NULL,
			aggregate_type TEXT NOT NULL,
			event_type TEXT NOT NULL,
			event_data BLOB NOT NULL,
			created_seq INTEGER NOT NULL UNIQUE,
			status TEXT NOT NULL DEFAULT 'pending',
			attempt_count INTEGER NOT NULL DEFAULT 0,
			next_attempt_at INTEGER,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_task_events_due ON task_events(status, next_attempt_at)`,
		`CREATE INDEX IF NOT EXISTS idx_task_events_aggregate ON task_events(aggregate_id, created_seq)`,

		// Какие пары (событие, обработчик) уже выполнены
		`CREATE TABLE IF NOT EXISTS handled_events (
			event_id INTEGER NOT NULL,
			handler_id TEXT NOT NULL,
			handled_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (event_id, handler_id)
		)`,

		// Аренды для кооперативной блокировки
		`CREATE TABLE IF NOT EXISTS locks (
			id TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			expires_at INTEGER NOT NULL
		)`,

		// Очередь «грязных» агрегатов для фоновой синхронизации
		`CREATE TABLE IF NOT EXISTS sync_queue (
			aggregate_id TEXT NOT NULL,
			aggregate_type TEXT NOT NULL,
			queued_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (aggregate_id, aggregate_type)
		)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}
