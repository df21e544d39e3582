package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amaumene/watchqueue/internal/utils"
	"github.com/cenkalti/backoff/v4"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database wraps the gorm handle shared by every component
type Database struct {
	gorm     *gorm.DB
	maxRetry time.Duration
	logger   zerolog.Logger
}

// Options holds options for opening a database
type Options struct {
	// MaxRetry bounds how long a transaction is retried while SQLite reports busy/locked
	MaxRetry time.Duration
	Logger   zerolog.Logger
}

// NewDatabase opens (or creates) the SQLite database at path and migrates the schema.
// Use ":memory:" for a private in-memory database.
func NewDatabase(path string, opts Options) (*Database, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	}

	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Discard,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get connection pool: %w", err)
	}
	// SQLite works best with a single writer; this also serializes transactions
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	db := &Database{gorm: gdb, maxRetry: opts.MaxRetry, logger: opts.Logger}
	if db.maxRetry <= 0 {
		db.maxRetry = 2 * time.Second
	}

	if err := db.Migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return db, nil
}

// Migrate creates or updates the schema
func (db *Database) Migrate() error {
	return db.gorm.AutoMigrate(&Item{}, &ItemTag{}, &Event{})
}

// Close closes the database connection
func (db *Database) Close() error {
	sqlDB, err := db.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Conn returns a gorm session bound to ctx for reads outside a transaction
func (db *Database) Conn(ctx context.Context) *gorm.DB {
	return db.gorm.WithContext(ctx)
}

// Transaction runs fn inside a single transaction. The whole function is retried
// while SQLite reports the database as busy or locked; any other error aborts
// and rolls back. Errors not already classified are reported as ErrPersistence.
func (db *Database) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 10 * time.Millisecond
	policy.MaxElapsedTime = db.maxRetry

	op := func() error {
		err := db.gorm.WithContext(ctx).Transaction(fn)
		if err != nil && !IsBusy(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		db.logger.Debug().Err(err).Dur("wait", wait).Msg("Database busy, retrying transaction")
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(policy, ctx), notify); err != nil {
		return utils.Persistence("run transaction", err)
	}
	return nil
}

// IsBusy reports whether err is a transient SQLite lock error
func IsBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}
