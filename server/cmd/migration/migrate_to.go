package migration

import (
	"errors"
	"fmt"

	"github.com/odpf/salt/log"
	"github.com/spf13/cobra"

	"github.com/odpf/priest/cmd/logger"
)

type migrateTo struct {
	logger         log.Logger
	configFilePath string
	version        int
}

// NewMigrateToCommand initializes command for migration to a specific version
func NewMigrateToCommand() *cobra.Command {
	to := &migrateTo{logger: logger.NewDefaultLogger()}
	cmd := &cobra.Command{
		Use:   "to",
		Short: "Command to migrate to specific migration version",
		RunE:  to.RunE,
	}
	cmd.Flags().StringVarP(&to.configFilePath, "config", "c", to.configFilePath, "File path for server configuration")
	cmd.Flags().IntVarP(&to.version, "version", "v", -1, "Migration version to move to")
	return cmd
}

func (t *migrateTo) RunE(_ *cobra.Command, _ []string) error {
	if t.version < 0 {
		return errors.New("invalid migration version")
	}

	m, err := newMigration(t.logger, t.configFilePath)
	if err != nil {
		return err
	}
	defer m.Close()

	t.logger.Info("Executing migration", "version", t.version)
	if err := m.To(uint(t.version)); err != nil {
		return fmt.Errorf("error during migration: %w", err)
	}
	t.logger.Info("Migration finished successfully")
	return nil
}
