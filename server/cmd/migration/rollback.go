package migration

import (
	"fmt"

	"github.com/odpf/salt/log"
	"github.com/spf13/cobra"

	"github.com/odpf/priest/cmd/logger"
)

type rollbackCommand struct {
	logger         log.Logger
	configFilePath string
	count          int
}

// NewRollbackCommand initializes command for migration rollback
func NewRollbackCommand() *cobra.Command {
	rollback := &rollbackCommand{logger: logger.NewDefaultLogger()}
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Command to rollback the current active migration",
		RunE:  rollback.RunE,
	}
	cmd.Flags().StringVarP(&rollback.configFilePath, "config", "c", rollback.configFilePath, "File path for server configuration")
	cmd.Flags().IntVarP(&rollback.count, "count", "n", 1, "Number of migrations to rollback")
	return cmd
}

func (r *rollbackCommand) RunE(_ *cobra.Command, _ []string) error {
	m, err := newMigration(r.logger, r.configFilePath)
	if err != nil {
		return err
	}
	defer m.Close()

	r.logger.Info("Executing rollback", "count", r.count)
	if err := m.Rollback(r.count); err != nil {
		return fmt.Errorf("error rolling back migration: %w", err)
	}
	r.logger.Info("Rollback finished successfully")
	return nil
}
