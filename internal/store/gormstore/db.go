// Package gormstore implements the resolution repositories on GORM
// (SQLite or PostgreSQL).
package gormstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to driver ("sqlite" or "postgres") and migrates the schema.
func Open(driver, dsn string, logger zerolog.Logger) (*gorm.DB, error) {
	var dial gorm.Dialector
	switch driver {
	case "sqlite":
		if dsn != ":memory:" {
			if dir := filepath.Dir(dsn); dir != "." {
				_ = os.MkdirAll(dir, 0o755)
			}
		}
		dial = sqlite.Open(dsn)
	case "postgres":
		dial = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}

	db, err := gorm.Open(dial, &gorm.Config{
		Logger:         NewLogger(logger, gormlogger.Warn),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "open database")
	}
	if driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, pkgerrors.Wrap(err, "sql handle")
		}
		// one writer; an in-memory database lives on a single connection
		sqlDB.SetMaxOpenConns(1)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates tables and the partial index that allows one active
// override per (customer, product).
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&productRow{}, &priceVersionRow{}, &purchaseRow{}, &aliasRow{}, &customerRow{}, &overrideRow{},
		&orderRow{}, &rawLineRow{}, &resolvedLineRow{}, &auditRow{},
	); err != nil {
		return pkgerrors.Wrap(err, "auto-migrate")
	}
	err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_customer_pricing_active
		ON customer_pricings (customer_id, product_id) WHERE active`).Error
	return pkgerrors.Wrap(err, "create active override index")
}

func txOptions(db *gorm.DB) *sql.TxOptions {
	if db.Dialector.Name() == "postgres" {
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	return nil
}

// Logger routes GORM output through zerolog.
type Logger struct {
	logger        zerolog.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

func NewLogger(l zerolog.Logger, level gormlogger.LogLevel) *Logger {
	return &Logger{
		logger:        l.With().Str("component", "gorm").Logger(),
		level:         level,
		slowThreshold: 200 * time.Millisecond,
	}
}

func (l *Logger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	n := *l
	n.level = level
	return &n
}

func (l *Logger) Info(_ context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		l.logger.Info().Msgf(msg, data...)
	}
}

func (l *Logger) Warn(_ context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		l.logger.Warn().Msgf(msg, data...)
	}
}

func (l *Logger) Error(_ context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		l.logger.Error().Msgf(msg, data...)
	}
}

func (l *Logger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && l.level >= gormlogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sqlText, rows := fc()
		l.logger.Error().Err(err).Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sqlText).Msg("sql error")
	case elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		sqlText, rows := fc()
		l.logger.Warn().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sqlText).Msg("slow sql")
	case l.level >= gormlogger.Info:
		sqlText, rows := fc()
		l.logger.Debug().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sqlText).Msg("sql")
	}
}
