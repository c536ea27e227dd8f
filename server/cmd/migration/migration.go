package migration

import (
	"fmt"

	"github.com/odpf/salt/log"
	"github.com/spf13/cobra"

	"github.com/odpf/priest/config"
	"github.com/odpf/priest/internal/store/postgres"
)

// NewMigrationCommand initializes command for migration
func NewMigrationCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migration",
		Short: "Command to do migration activity",
	}
	cmd.AddCommand(NewUpCommand())
	cmd.AddCommand(NewRollbackCommand())
	cmd.AddCommand(NewMigrateToCommand())
	return cmd
}

func newMigration(logger log.Logger, configFilePath string) (*postgres.Migration, error) {
	serverConfig, err := config.LoadServerConfig(configFilePath)
	if err != nil {
		return nil, fmt.Errorf("error loading server config: %w", err)
	}
	return postgres.NewMigration(logger, serverConfig.DB.DSN)
}
