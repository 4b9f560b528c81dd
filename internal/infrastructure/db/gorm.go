package db

import (
	"fmt"
	"time"

	"bitguardian/internal/domain/loan"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// zerologWriter routes gorm's logger output through zerolog.
type zerologWriter struct{ l zerolog.Logger }

func (w zerologWriter) Printf(format string, args ...any) {
	w.l.Info().Msgf(format, args...)
}

func newLogger(level logger.LogLevel) logger.Interface {
	return logger.New(zerologWriter{l: log.With().Str("component", "gorm").Logger()}, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}

// Dialector picks the gorm dialector for driver ("mysql" or "sqlite").
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "mysql":
		return mysql.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
}

func OpenGorm(driver, dsn string, level logger.LogLevel) (*gorm.DB, error) {
	dial, err := Dialector(driver, dsn)
	if err != nil {
		return nil, err
	}
	db, err := openGorm(dial, level)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// sqlite has a single writer; one connection also keeps :memory: databases shared
		sqlDB, _ := db.DB()
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// OpenGormWithDialector opens and pings a connection for an already-built dialector.
func OpenGormWithDialector(dial gorm.Dialector) (*gorm.DB, error) {
	return openGorm(dial, logger.Warn)
}

func openGorm(dial gorm.Dialector, level logger.LogLevel) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger: newLogger(level),
	}
	db, err := gorm.Open(dial, cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(30)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}
	log.Info().Str("dialect", dial.Name()).Msg("gorm: connected")
	return db, nil
}

const sqliteLoansDDL = `CREATE TABLE IF NOT EXISTS loans (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	lender TEXT NOT NULL,
	borrower TEXT,
	principal TEXT NOT NULL,
	collateral TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'open',
	status_updated_at DATETIME,
	created_at DATETIME,
	updated_at DATETIME
)`

// Migrate creates the loans table. MySQL uses the entity's column types;
// sqlite stores amounts as text so they round-trip exactly.
func Migrate(db *gorm.DB) error {
	if db.Dialector.Name() == "sqlite" {
		if err := db.Exec(sqliteLoansDDL).Error; err != nil {
			return err
		}
		return db.Exec(`CREATE INDEX IF NOT EXISTS idx_loans_status ON loans(status)`).Error
	}
	return db.AutoMigrate(&loan.Loan{})
}

// LogLevel maps an application log level onto gorm's.
func LogLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		return logger.Info
	case "error":
		return logger.Error
	default:
		return logger.Warn
	}
}
