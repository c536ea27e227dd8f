package service

import (
	"context"

	"github.com/odpf/priest/core/organization"
	"github.com/odpf/priest/internal/errors"
	"github.com/odpf/priest/internal/worker"
)

// TaskPublisher is a broker client, valid until Close is called.
type TaskPublisher interface {
	PublishTask(ctx context.Context, name string, payload interface{}) error
	Close() error
}

type ClientFactory interface {
	Client(ctx context.Context) (TaskPublisher, error)
}

// EventService turns organization.updated events into update.organization tasks.
type EventService struct {
	clients ClientFactory
}

func NewEventService(clients ClientFactory) *EventService {
	return &EventService{
		clients: clients,
	}
}

func (e EventService) Handle(ctx context.Context, job *worker.Job) error {
	event, err := organization.UpdatedEventFrom(job.Payload)
	if err != nil {
		return err
	}

	client, err := e.clients.Client(ctx)
	if err != nil {
		return errors.InternalError(organization.EntityOrganization, "unable to get broker client", err)
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			job.Logger.Warn("failed to close broker client", "err", closeErr.Error())
		}
	}()

	return client.PublishTask(ctx, organization.TaskUpdate, organization.UpdateTask{GithubID: event.GithubID})
}
