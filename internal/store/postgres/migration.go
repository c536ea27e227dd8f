package postgres

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // required for postgres migrate driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/odpf/salt/log"
)

//go:embed migrations
var migrationFs embed.FS

const resourcePath = "migrations"

type Migration struct {
	logger log.Logger
	client *migrate.Migrate
}

// NewMigration prepares the embedded migrations against dbConnURL, the
// returned Migration must be closed.
func NewMigration(logger log.Logger, dbConnURL string) (*Migration, error) {
	if dbConnURL == "" {
		return nil, errors.New("database connection url is empty")
	}

	sourceDriver, err := iofs.New(migrationFs, resourcePath)
	if err != nil {
		return nil, fmt.Errorf("error initializing source driver: %w", err)
	}
	client, err := migrate.NewWithSourceInstance("iofs", sourceDriver, dbConnURL)
	if err != nil {
		return nil, fmt.Errorf("error initializing migration instance: %w", err)
	}
	return &Migration{
		logger: logger,
		client: client,
	}, nil
}

func (m *Migration) Up() error {
	if err := m.client.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info("migration up is skipped, schema is already at the latest version")
			return nil
		}
		return fmt.Errorf("error executing migration up: %w", err)
	}
	return nil
}

func (m *Migration) Rollback(count int) error {
	if count < 1 {
		return fmt.Errorf("invalid value[%d] for rollback", count)
	}
	if err := m.client.Steps(-count); err != nil {
		return fmt.Errorf("error rolling back %d migrations: %w", count, err)
	}
	return nil
}

func (m *Migration) To(version uint) error {
	if err := m.client.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("error migrating to version [%d]: %w", version, err)
	}
	return nil
}

// Version returns the applied schema version, zero when nothing is applied.
func (m *Migration) Version() (uint, bool, error) {
	version, dirty, err := m.client.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (m *Migration) Close() {
	sourceErr, databaseErr := m.client.Close()
	if sourceErr != nil {
		m.logger.Error("source driver error encountered when closing migration connection", "err", sourceErr.Error())
	}
	if databaseErr != nil {
		m.logger.Error("database error encountered when closing migration connection", "err", databaseErr.Error())
	}
}
