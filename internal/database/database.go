package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/daybook/internal/notes"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config describes the connection target and pool limits.
type Config struct {
	Driver          string
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// Open establishes the connection pool for the configured driver and, when
// requested, brings the schema up to date.
func Open(cfg Config, logger *zap.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("database url is required")
	}

	var (
		db  *gorm.DB
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverPostgres, "":
		db, err = openPostgres(cfg.URL)
	case DriverSQLite:
		db, err = openSQLite(cfg.URL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite keeps the single connection set by openSQLite.
	if db.Dialector.Name() == DriverPostgres {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	if cfg.AutoMigrate {
		if err := Migrate(db, logger); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}

	logger.Info("database initialized",
		zap.String("driver", db.Dialector.Name()),
		zap.Bool("auto_migrate", cfg.AutoMigrate))

	return db, nil
}

// Migrate creates the guests and notes tables and applies named migrations once.
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	if err := db.AutoMigrate(&notes.Guest{}, &notes.Note{}, &migrationRecord{}); err != nil {
		return err
	}
	return applyMigrations(db, logger)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	}
}
