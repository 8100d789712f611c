package database

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	applog "sme-docengine/internal/logger"
	"sme-docengine/internal/models"
)

// Options selects and tunes the database connection.
type Options struct {
	Driver   string // mysql or sqlite
	DSN      string
	LogLevel string // silent, error, warn, info
	Retries  int
	Wait     time.Duration
}

// Open connects once without retrying.
func Open(opts Options) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(opts.Driver) {
	case "", "mysql":
		dialector = mysql.Open(opts.DSN)
	case "sqlite":
		dialector = sqlite.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("database: unsupported driver %q", opts.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(gormLogLevel(opts.LogLevel)),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(opts.Driver, "sqlite") {
		// SQLite has a single writer; one connection keeps transactions from colliding.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// Connect opens the database, waiting for it to come up.
func Connect(opts Options) (*gorm.DB, error) {
	log := applog.WithComponent("database")

	attempts := opts.Retries
	if attempts < 1 {
		attempts = 1
	}
	wait := opts.Wait
	if wait == 0 {
		wait = 2 * time.Second
	}

	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i < attempts; i++ {
		db, err = Open(opts)
		if err == nil {
			break
		}
		log.Warn().
			Err(err).
			Int("attempt", i+1).
			Int("max_attempts", attempts).
			Dur("retry_in", wait).
			Msg("Failed to connect to database")
		if i < attempts-1 {
			time.Sleep(wait)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("database: connect after %d attempts: %w", attempts, err)
	}

	log.Info().Str("driver", opts.Driver).Msg("Connected to database")
	return db, nil
}

// Migrate syncs the schema of every persisted model.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Document{},
		&models.LineItem{},
		&models.StatusHistoryLog{},
		&models.ApprovalLog{},
		&models.AuditTrailLog{},
		&models.User{},
	)
	if err != nil {
		return fmt.Errorf("database: migrate: %w", err)
	}
	log := applog.WithComponent("database")
	log.Info().Msg("Database schema synced")
	return nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
