package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odpf/priest/cmd/version"
	"github.com/odpf/priest/config"
	serverCmd "github.com/odpf/priest/server/cmd"
	"github.com/odpf/priest/server/cmd/migration"
)

var prologueContents = `priest %s

priest reports container lifecycle changes of testing instances to github
and turns organization updates into update.organization tasks
`

// New constructs the 'root' command.
// It houses all other sub commands
func New() *cobra.Command {
	root := &cobra.Command{
		Use:          config.AppName + " <command> <subcommand> [flags]",
		Long:         fmt.Sprintf(prologueContents, config.BuildVersion),
		SilenceUsage: true,
	}

	root.AddCommand(
		serverCmd.NewServeCommand(),
		migration.NewMigrationCommand(),
		version.NewVersionCommand(),
	)
	return root
}
