package postgres

import (
	"fmt"
	"io"
	stdlog "log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/odpf/priest/config"
)

const slowQueryThreshold = 200 * time.Millisecond

// Connect opens the pool used by the repositories. Queries slower than
// slowQueryThreshold and errors are written to writer.
func Connect(conf config.DBConfig, writer io.Writer) (*gorm.DB, error) {
	dbLogger := logger.New(
		stdlog.New(writer, "\r\n", stdlog.LstdFlags),
		logger.Config{
			SlowThreshold: slowQueryThreshold,
			LogLevel:      logger.Warn,
		},
	)

	db, err := gorm.Open(postgres.Open(conf.DSN), &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unable to get database handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(conf.MaxIdleConnection)
	sqlDB.SetMaxOpenConns(conf.MaxOpenConnection)
	return db, nil
}

// Close releases every connection of db.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
