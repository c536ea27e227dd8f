package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	AlertSchemeSlack     = "slack"
	AlertSchemePagerDuty = "pagerduty"
)

// Validate validate the config as an input. If not valid, it returns error
func Validate(conf *ServerConfig) error {
	if conf == nil {
		return errors.New("server config is nil")
	}
	return validation.ValidateStruct(conf,
		nestedFields(&conf.Log,
			validation.Field(&conf.Log.Level, validation.In(
				LogLevelDebug,
				LogLevelInfo,
				LogLevelWarning,
				LogLevelError,
				LogLevelFatal,
			)),
			validation.Field(&conf.Log.Format, validation.In(LogFormatPlain, LogFormatJSON)),
		),
		nestedFields(&conf.Worker,
			validation.Field(&conf.Worker.Name, validation.Required),
			validation.Field(&conf.Worker.Prefetch, validation.Required, validation.Min(1)),
			validation.Field(&conf.Worker.InstanceConcurrency, validation.Required, validation.Min(1)),
			validation.Field(&conf.Worker.MaxAttempts, validation.Required, validation.Min(uint(1))),
		),
		nestedFields(&conf.Broker,
			validation.Field(&conf.Broker.Hostname, validation.Required),
			validation.Field(&conf.Broker.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		),
		nestedFields(&conf.DB,
			validation.Field(&conf.DB.DSN, validation.Required),
		),
		nestedFields(&conf.Github,
			validation.Field(&conf.Github.Token, validation.Required),
			validation.Field(&conf.Github.StatusContext, validation.Required),
		),
		nestedFields(&conf.Alert,
			validation.Field(&conf.Alert.Channels, validation.By(validateAlertChannels(conf.Alert))),
		),
	)
}

func validateAlertChannels(alert AlertConfig) validation.RuleFunc {
	return func(value interface{}) error {
		channels, ok := value.([]string)
		if !ok {
			return errors.New("can't convert value to channels")
		}

		var invalid []string
		for _, channel := range channels {
			parts := strings.SplitN(channel, "://", 2)
			if len(parts) != 2 || parts[1] == "" {
				invalid = append(invalid, channel)
				continue
			}
			switch parts[0] {
			case AlertSchemeSlack:
				if alert.SlackToken == "" {
					return fmt.Errorf("slack_token is required for channel %s", channel)
				}
			case AlertSchemePagerDuty:
			default:
				invalid = append(invalid, channel)
			}
		}

		if len(invalid) > 0 {
			return fmt.Errorf("unsupported alert channels [%s]", strings.Join(invalid, ","))
		}
		return nil
	}
}

// ozzo-validation helper for nested validation struct
// https://github.com/go-ozzo/ozzo-validation/issues/136
func nestedFields(target interface{}, fieldRules ...*validation.FieldRules) *validation.FieldRules {
	return validation.Field(target, validation.By(func(value interface{}) error {
		valueV := reflect.Indirect(reflect.ValueOf(value))
		if valueV.CanAddr() {
			addr := valueV.Addr().Interface()
			return validation.ValidateStruct(addr, fieldRules...)
		}
		return validation.ValidateStruct(target, fieldRules...)
	}))
}
