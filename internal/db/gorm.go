package db

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"taskmanager/internal/config"
	"taskmanager/internal/model"
)

// Models lists every relational table, children last so drops run in reverse.
var Models = []interface{}{
	&model.User{},
	&model.Task{},
	&model.Notification{},
	&model.AuditEntry{},
}

// slowQueryThreshold marks queries logged as slow.
const slowQueryThreshold = 200 * time.Millisecond

// NewMySQL returns a connected GORM DB instance. A nil log discards
// query logging.
func NewMySQL(dsn string, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), gormConfig(log))
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("mysql pool: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db, nil
}

// NewSQLite returns a GORM DB backed by a sqlite file or in-memory DSN.
func NewSQLite(path string, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), gormConfig(log))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, fmt.Errorf("sqlite pragma: %w", err)
	}
	return db, nil
}

// NewGorm opens the relational store selected by cfg.DBDriver.
func NewGorm(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	switch cfg.DBDriver {
	case config.DriverMySQL:
		return NewMySQL(cfg.MySQLDSN, log)
	case config.DriverSQLite:
		return NewSQLite(cfg.SQLitePath, log)
	default:
		return nil, fmt.Errorf("unsupported relational driver %q", cfg.DBDriver)
	}
}

func gormConfig(log *zap.Logger) *gorm.Config {
	return &gorm.Config{
		// Surfaces unique violations as gorm.ErrDuplicatedKey.
		TranslateError: true,
		Logger:         NewGormLogger(log),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Migrate creates or updates the relational schema. With reset, existing
// tables are dropped first.
func Migrate(db *gorm.DB, reset bool) error {
	if reset {
		for i := len(Models) - 1; i >= 0; i-- {
			if err := db.Migrator().DropTable(Models[i]); err != nil {
				return fmt.Errorf("drop table: %w", err)
			}
		}
	}

	if err := db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	// Full-text search over title+description; other dialects fall back to LIKE.
	if db.Dialector.Name() == config.DriverMySQL && !db.Migrator().HasIndex(&model.Task{}, "idx_tasks_fulltext") {
		if err := db.Exec("CREATE FULLTEXT INDEX idx_tasks_fulltext ON tasks (title, description)").Error; err != nil {
			return fmt.Errorf("create fulltext index: %w", err)
		}
	}
	return nil
}
