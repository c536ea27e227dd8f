package service

import (
	"context"

	"github.com/odpf/priest/core/container"
	"github.com/odpf/priest/core/instance"
	"github.com/odpf/priest/internal/errors"
)

type InstanceRepository interface {
	FindTestingByContextVersion(ctx context.Context, contextVersionID string) ([]*instance.Instance, error)
}

// Resolver finds the testing instances built from the context version of a
// container job.
type Resolver struct {
	repo InstanceRepository
}

func NewResolver(repo InstanceRepository) *Resolver {
	return &Resolver{
		repo: repo,
	}
}

func (Resolver) ContextVersionID(job *container.Job) (string, error) {
	return job.ContextVersionID()
}

func (r Resolver) Resolve(ctx context.Context, contextVersionID string) ([]*instance.Instance, error) {
	instances, err := r.repo.FindTestingByContextVersion(ctx, contextVersionID)
	if err != nil {
		return nil, errors.Wrap(instance.EntityInstance, "unable to find testing instances", err)
	}
	if len(instances) == 0 {
		return nil, errors.NotFound(instance.EntityInstance, "testing instance not found with context version id").
			WithField("contextVersionId", contextVersionID)
	}
	return instances, nil
}
