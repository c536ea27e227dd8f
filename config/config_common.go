package config

import (
	"strconv"
	"strings"
)

// Version implement fmt.Stringer
type Version int

func (v Version) String() string {
	return strconv.Itoa(int(v))
}

type LogLevel string

const (
	LogLevelDebug   LogLevel = "DEBUG"
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARNING"
	LogLevelError   LogLevel = "ERROR"
	LogLevelFatal   LogLevel = "FATAL"
)

func (l LogLevel) String() string {
	return strings.ToLower(string(l))
}

const (
	LogFormatPlain = "plain"
	LogFormatJSON  = "json"
)

type LogConfig struct {
	Level  LogLevel `mapstructure:"level" default:"INFO"`   // log level - debug, info, warning, error, fatal
	Format string   `mapstructure:"format" default:"plain"` // format strategy - plain, json
}
