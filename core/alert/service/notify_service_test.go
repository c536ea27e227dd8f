package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/odpf/salt/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/odpf/priest/core/alert"
	"github.com/odpf/priest/core/alert/service"
	priesterrors "github.com/odpf/priest/internal/errors"
	"github.com/odpf/priest/internal/worker"
)

func TestNotifyService(t *testing.T) {
	ctx := context.Background()
	logger := log.NewNoop()
	secrets := map[string]string{alert.SchemeSlack: "slack-token"}

	t.Run("NewNotifyService", func(t *testing.T) {
		t.Run("returns error for malformed channel", func(t *testing.T) {
			_, err := service.NewNotifyService(logger, []string{"slack"}, secrets, map[string]service.Notifier{})

			assert.True(t, priesterrors.IsErrorType(err, priesterrors.ErrInvalidArgument))
		})
		t.Run("returns error when no notifier handles the scheme", func(t *testing.T) {
			_, err := service.NewNotifyService(logger, []string{"email://ops@runnable.io"}, secrets, map[string]service.Notifier{})

			assert.EqualError(t, err, "invalid argument for entity alert: no notifier for channel email://ops@runnable.io")
		})
	})
	t.Run("Push", func(t *testing.T) {
		t.Run("sends alert to every channel with its secret", func(t *testing.T) {
			a := &alert.Alert{Task: "priest.update.organization", Message: "status reporting rejected"}
			slackNotifier := new(notifier)
			slackNotifier.On("Notify", ctx, alert.NotifyAttrs{Route: "#alerts", Secret: "slack-token", Alert: a}).Return(nil).Once()
			defer slackNotifier.AssertExpectations(t)
			pdNotifier := new(notifier)
			pdNotifier.On("Notify", ctx, alert.NotifyAttrs{Route: "routing-key", Secret: "routing-key", Alert: a}).Return(nil).Once()
			defer pdNotifier.AssertExpectations(t)

			notifyService, err := service.NewNotifyService(logger, []string{"slack://#alerts", "pagerduty://routing-key"}, secrets,
				map[string]service.Notifier{alert.SchemeSlack: slackNotifier, alert.SchemePagerDuty: pdNotifier})
			assert.Nil(t, err)

			assert.Nil(t, notifyService.Push(ctx, a))
		})
		t.Run("keeps sending after a channel fails", func(t *testing.T) {
			a := &alert.Alert{Task: "priest.update.organization"}
			slackNotifier := new(notifier)
			slackNotifier.On("Notify", ctx, mock.Anything).Return(errors.New("channel_not_found")).Once()
			pdNotifier := new(notifier)
			pdNotifier.On("Notify", ctx, mock.Anything).Return(nil).Once()
			defer pdNotifier.AssertExpectations(t)

			notifyService, _ := service.NewNotifyService(logger, []string{"slack://#alerts", "pagerduty://key"}, secrets,
				map[string]service.Notifier{alert.SchemeSlack: slackNotifier, alert.SchemePagerDuty: pdNotifier})

			err := notifyService.Push(ctx, a)

			assert.ErrorContains(t, err, "channel_not_found")
		})
	})
	t.Run("StopHook", func(t *testing.T) {
		job := worker.NewJob("priest.update.organization", nil, map[string]string{worker.MetadataTID: "tid-1"}, logger)

		t.Run("alerts on fatal reporting", func(t *testing.T) {
			slackNotifier := new(notifier)
			slackNotifier.On("Notify", ctx, mock.MatchedBy(func(attr alert.NotifyAttrs) bool {
				return attr.Alert.TID == "tid-1" && attr.Alert.Fields["repo"] == "codenow/api"
			})).Return(nil).Once()
			defer slackNotifier.AssertExpectations(t)

			notifyService, _ := service.NewNotifyService(logger, []string{"slack://#alerts"}, secrets,
				map[string]service.Notifier{alert.SchemeSlack: slackNotifier})

			stopErr := priesterrors.FatalReporting("github_status", "github rejected the status with 422", nil).
				WithField("repo", "codenow/api")
			notifyService.StopHook(ctx, job, stopErr)
		})
		t.Run("alerts when fatal reporting is not the first aggregated error", func(t *testing.T) {
			slackNotifier := new(notifier)
			slackNotifier.On("Notify", ctx, mock.MatchedBy(func(attr alert.NotifyAttrs) bool {
				return attr.Alert.TID == "tid-1" && attr.Alert.Fields["repo"] == "codenow/api" &&
					attr.Alert.Fields["instanceId"] == "i1"
			})).Return(nil).Once()
			defer slackNotifier.AssertExpectations(t)

			notifyService, _ := service.NewNotifyService(logger, []string{"slack://#alerts"}, secrets,
				map[string]service.Notifier{alert.SchemeSlack: slackNotifier})

			me := priesterrors.NewMultiError("errors while reporting container status")
			me.Append(priesterrors.InvalidState("instance", "user container is not attached to instance").
				WithField("instanceId", "i1"))
			me.Append(priesterrors.Wrap("github_status", "github error when setting status",
				priesterrors.FatalReporting("github_status", "github rejected the status with 422", nil).
					WithField("repo", "codenow/api")))
			notifyService.StopHook(ctx, job, me.ToErr())
		})
		t.Run("ignores other stop errors", func(t *testing.T) {
			slackNotifier := new(notifier)
			defer slackNotifier.AssertExpectations(t)

			notifyService, _ := service.NewNotifyService(logger, []string{"slack://#alerts"}, secrets,
				map[string]service.Notifier{alert.SchemeSlack: slackNotifier})

			notifyService.StopHook(ctx, job, priesterrors.NotFound("instance", "testing instance not found"))
			slackNotifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
		})
	})
	t.Run("Close", func(t *testing.T) {
		slackNotifier := new(notifier)
		slackNotifier.On("Close").Return(errors.New("flush failed")).Once()
		defer slackNotifier.AssertExpectations(t)

		notifyService, _ := service.NewNotifyService(logger, nil, secrets,
			map[string]service.Notifier{alert.SchemeSlack: slackNotifier})

		assert.ErrorContains(t, notifyService.Close(), "flush failed")
	})
}

type notifier struct {
	mock.Mock
}

func (n *notifier) Notify(ctx context.Context, attr alert.NotifyAttrs) error {
	args := n.Called(ctx, attr)
	return args.Error(0)
}

func (n *notifier) Close() error {
	args := n.Called()
	return args.Error(0)
}
