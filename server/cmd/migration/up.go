package migration

import (
	"fmt"

	"github.com/odpf/salt/log"
	"github.com/spf13/cobra"

	"github.com/odpf/priest/cmd/logger"
)

type upCommand struct {
	logger         log.Logger
	configFilePath string
}

// NewUpCommand initializes command to apply every pending migration
func NewUpCommand() *cobra.Command {
	up := &upCommand{logger: logger.NewDefaultLogger()}
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Command to apply all pending migrations",
		RunE:  up.RunE,
	}
	cmd.Flags().StringVarP(&up.configFilePath, "config", "c", up.configFilePath, "File path for server configuration")
	return cmd
}

func (u *upCommand) RunE(_ *cobra.Command, _ []string) error {
	m, err := newMigration(u.logger, u.configFilePath)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		return fmt.Errorf("error executing migration up: %w", err)
	}
	u.logger.Info("Migration finished successfully")
	return nil
}
