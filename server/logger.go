package server

import (
	"os"

	"github.com/odpf/salt/log"
	"github.com/sirupsen/logrus"

	"github.com/odpf/priest/config"
)

// NewLogger builds the process logger, json output is meant for log shippers.
func NewLogger(conf config.LogConfig) log.Logger {
	opts := []log.Option{
		log.LogrusWithLevel(conf.Level.String()),
		log.LogrusWithWriter(os.Stderr),
	}
	if conf.Format == config.LogFormatJSON {
		opts = append(opts, log.LogrusWithFormatter(&logrus.JSONFormatter{}))
	}
	return log.NewLogrus(opts...)
}
