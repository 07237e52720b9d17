package database

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/totegamma/concrnt-community/internal/infra/database/models"
)

const sqlitePrefix = "sqlite://"

func newLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold:             300 * time.Millisecond, // Slow SQL threshold
			LogLevel:                  logger.Warn,            // Log level
			IgnoreRecordNotFoundError: true,                   // Ignore ErrRecordNotFound error for logger
			Colorful:                  true,                   // Enable color
		},
	)
}

// Open picks the driver from dsn: "sqlite://<path>" opens a sqlite file
// (or ":memory:"), anything else is handed to postgres. In yaml a sqlite
// dsn must be quoted, since "sqlite://:memory:" is not a plain scalar.
func Open(dsn string) (*gorm.DB, error) {
	if path, ok := strings.CutPrefix(dsn, sqlitePrefix); ok {
		return NewSqlite(path)
	}
	return NewPostgres(dsn)
}

func NewPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         newLogger(),
	})
	return db, err
}

func NewSqlite(path string) (*gorm.DB, error) {
	if path == "" || path == ":memory:" {
		path = "file::memory:?cache=shared"
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         newLogger(),
	})
	if err != nil {
		return nil, err
	}

	// sqlite serializes writers; a single connection avoids SQLITE_BUSY.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Community{},
		&models.CommunityEvent{},
	)
}
