package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/odpf/salt/log"

	"github.com/odpf/priest/core/alert"
	"github.com/odpf/priest/internal/errors"
	"github.com/odpf/priest/internal/telemetry"
	"github.com/odpf/priest/internal/worker"
)

type Notifier interface {
	io.Closer
	Notify(ctx context.Context, attr alert.NotifyAttrs) error
}

// NotifyService sends alerts to every configured channel.
type NotifyService struct {
	channels       []alert.Channel
	notifyChannels map[string]Notifier
	secrets        map[string]string
	l              log.Logger
}

func NewNotifyService(l log.Logger, channels []string, secrets map[string]string, notifyChan map[string]Notifier) (*NotifyService, error) {
	parsed := make([]alert.Channel, 0, len(channels))
	for _, raw := range channels {
		channel, err := alert.ChannelFrom(raw)
		if err != nil {
			return nil, errors.InvalidArgument(alert.EntityAlert, err.Error())
		}
		if _, ok := notifyChan[channel.Scheme]; !ok {
			return nil, errors.InvalidArgument(alert.EntityAlert, "no notifier for channel "+raw)
		}
		parsed = append(parsed, channel)
	}
	return &NotifyService{
		channels:       parsed,
		notifyChannels: notifyChan,
		secrets:        secrets,
		l:              l,
	}, nil
}

func (n *NotifyService) Push(ctx context.Context, a *alert.Alert) error {
	me := errors.NewMultiError("errors in notify push")
	for _, channel := range n.channels {
		secret := n.secrets[channel.Scheme]
		if channel.Scheme == alert.SchemePagerDuty {
			secret = channel.Route
		}

		n.l.Debug("sending alert", "channel", channel.String(), "task", a.Task, "tid", a.TID)
		if err := n.notifyChannels[channel.Scheme].Notify(ctx, alert.NotifyAttrs{
			Route:  channel.Route,
			Secret: secret,
			Alert:  a,
		}); err != nil {
			n.l.Error("error sending alert", "channel", channel.String(), "err", err.Error())
			me.Append(fmt.Errorf("notifyChannel.Notify: %s: %w", channel.String(), err))
			continue
		}
		telemetry.NewCounter("priest_alerts_total", map[string]string{
			"scheme": channel.Scheme,
			"task":   a.Task,
		}).Inc()
	}
	return me.ToErr()
}

// StopHook alerts on jobs dropped because reporting was rejected.
func (n *NotifyService) StopHook(ctx context.Context, job *worker.Job, err error) {
	if !errors.HasErrorType(err, errors.ErrFatalReporting) {
		return
	}
	a := &alert.Alert{
		Task:    job.Name,
		TID:     job.TID,
		Message: "status reporting rejected",
		Error:   err.Error(),
		Fields:  errors.Fields(err),
		At:      time.Now(),
	}
	if pushErr := n.Push(ctx, a); pushErr != nil {
		job.Logger.Error("unable to push alert", "err", pushErr.Error())
	}
}

func (n *NotifyService) Close() error {
	me := errors.NewMultiError("errors in notify close")
	for _, notify := range n.notifyChannels {
		if cerr := notify.Close(); cerr != nil {
			n.l.Error("error closing notification channel", "err", cerr.Error())
			me.Append(cerr)
		}
	}
	return me.ToErr()
}
