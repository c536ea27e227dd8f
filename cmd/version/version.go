package version

import (
	"github.com/odpf/salt/log"
	"github.com/spf13/cobra"

	"github.com/odpf/priest/cmd/logger"
	"github.com/odpf/priest/config"
)

type versionCommand struct {
	logger log.Logger
}

// NewVersionCommand initializes command to get version
func NewVersionCommand() *cobra.Command {
	version := &versionCommand{
		logger: logger.NewDefaultLogger(),
	}

	return &cobra.Command{
		Use:     "version",
		Short:   "Print the build information",
		Example: "priest version",
		RunE:    version.RunE,
	}
}

func (v *versionCommand) RunE(_ *cobra.Command, _ []string) error {
	v.logger.Info(config.AppName+" "+config.BuildVersion+"-"+config.BuildCommit, "built", config.BuildDate)
	return nil
}
