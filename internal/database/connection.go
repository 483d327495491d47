// MIT License
//
// # Copyright (c) 2026 Kolin
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"keygate/internal/metrics"

	"github.com/glebarez/sqlite"
	"github.com/pterm/pterm"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const slowQueryThreshold = 100 * time.Millisecond

// MemoryPath opens a private in-memory database (tests, dry runs)
const MemoryPath = ":memory:"

type Config struct {
	Path         string
	MaxOpenConns int
	MaxIdleConns int
	ConnMaxLife  time.Duration
}

// QueryLogger routes gorm's logging through pterm. Queries slower than the
// threshold are logged at debug level and counted; the rest only at trace.
type QueryLogger struct {
	logger        *pterm.Logger
	slowThreshold time.Duration
	level         gormlogger.LogLevel
}

func NewQueryLogger(logger *pterm.Logger, slowThreshold time.Duration) *QueryLogger {
	return &QueryLogger{logger: logger, slowThreshold: slowThreshold, level: gormlogger.Warn}
}

func (l *QueryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *QueryLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Info {
		l.logger.Info(msg, l.logger.Args("data", data))
	}
}

func (l *QueryLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.logger.Warn(msg, l.logger.Args("data", data))
	}
}

func (l *QueryLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Error {
		l.logger.Error(msg, l.logger.Args("data", data))
	}
}

func (l *QueryLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, _ := fc()
		l.logger.Error("Database query error", l.logger.Args("error", err, "duration_ms", elapsed.Milliseconds(), "sql", sql))
	case elapsed >= l.slowThreshold:
		sql, rows := fc()
		metrics.SlowQueries.Inc()
		l.logger.Debug("Slow query", l.logger.Args("duration_ms", elapsed.Milliseconds(), "rows", rows, "sql", sql))
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		l.logger.Trace("Database query", l.logger.Args("duration_ms", elapsed.Milliseconds(), "rows", rows, "sql", sql))
	}
}

func NewConnection(cfg *Config, logger *pterm.Logger) (*gorm.DB, error) {
	dsn := cfg.Path
	inMemory := cfg.Path == MemoryPath
	if !inMemory {
		// glebarez/go-sqlite takes pragmas as _pragma=name(value)
		// - WAL mode for concurrent reads/writes
		// - busy_timeout=5000ms to prevent SQLITE_BUSY errors under the visit worker pool
		dsn += "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"

		if _, err := os.Stat(cfg.Path); errors.Is(err, os.ErrPermission) {
			logger.WithCaller().Error("Permission denied to access database file.", logger.Args("error", err))
			return nil, fmt.Errorf("database file %s: %w", cfg.Path, err)
		}
		logger.Debug("Permission to access database file granted.", logger.Args("path", cfg.Path))
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt: true,
		Logger:      NewQueryLogger(logger, slowQueryThreshold),
	})
	if err != nil {
		logger.WithCaller().Error("Failed to connect to the database.", logger.Args("error", err))
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.WithCaller().Error("Failed to get database instance.", logger.Args("error", err))
		return nil, fmt.Errorf("database handle: %w", err)
	}

	maxOpenConns := cfg.MaxOpenConns
	maxIdleConns := cfg.MaxIdleConns
	connMaxLife := cfg.ConnMaxLife
	if maxOpenConns <= 0 {
		maxOpenConns = 10
	}
	if maxIdleConns <= 0 {
		maxIdleConns = 5
	}
	if inMemory {
		// Every connection to :memory: is a separate database
		maxOpenConns = 1
		maxIdleConns = 1
		connMaxLife = 0
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLife)

	logger.Debug("Connection pool configured",
		logger.Args(
			"max_open_conns", maxOpenConns,
			"max_idle_conns", maxIdleConns,
			"conn_max_life", connMaxLife,
		))

	logger.Trace("Running database migrations.")
	if err := RunMigrations(db); err != nil {
		logger.WithCaller().Error("Failed to run database migrations.", logger.Args("error", err))
		return nil, fmt.Errorf("migrate: %w", err)
	}

	if err := OptimizeDatabase(db, logger); err != nil {
		logger.Warn("Database optimization had warnings", logger.Args("error", err))
	}

	logger.Info("Database connection established successfully.", logger.Args("path", cfg.Path))
	return db, nil
}
