package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/odpf/salt/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/odpf/priest/core/container"
	"github.com/odpf/priest/core/instance"
	"github.com/odpf/priest/core/instance/service"
	priesterrors "github.com/odpf/priest/internal/errors"
	"github.com/odpf/priest/internal/worker"
)

const (
	userContainerDied = `{"inspectData": {
		"Id": "container-1",
		"Config": {"Labels": {"type": "user-container", "contextVersion._id": "cv-1"}},
		"State": {"ExitCode": 0}
	}}`
	builderSucceeded = `{"inspectData": {
		"Id": "builder-1",
		"Config": {"Labels": {"type": "image-builder-container", "contextVersionId": "cv-1"}},
		"State": {"ExitCode": 0}
	}}`
)

func newInstance(id, dockerContainer string) *instance.Instance {
	return &instance.Instance{
		ID:        id,
		Name:      "api-" + id,
		Owner:     instance.Owner{GithubID: 1, Username: "codenow"},
		IsTesting: true,
		ContextVersion: instance.ContextVersion{
			ID: "cv-1",
			AppCodeVersions: []instance.AppCodeVersion{
				{Repo: "codenow/extra", AdditionalRepo: true},
				{Repo: "codenow/api", Commit: "c0ffee"},
			},
		},
		Container: instance.Container{DockerContainer: dockerContainer},
	}
}

func TestStatusWorker(t *testing.T) {
	ctx := context.Background()
	mainAcv := instance.AppCodeVersion{Repo: "codenow/api", Commit: "c0ffee"}
	newJob := func(payload string) *worker.Job {
		return worker.NewJob("priest.update.organization", []byte(payload), nil, log.NewNoop())
	}

	t.Run("Handle", func(t *testing.T) {
		t.Run("returns stop error when payload has no inspectData", func(t *testing.T) {
			repo := new(instanceRepo)
			defer repo.AssertExpectations(t)

			statusWorker := service.NewStatusWorker(service.NewResolver(repo), new(statusReporter), 4)
			err := statusWorker.Handle(ctx, newJob(`{}`))

			assert.True(t, priesterrors.IsStop(err))
		})
		t.Run("returns stop error when context version label is absent", func(t *testing.T) {
			repo := new(instanceRepo)
			defer repo.AssertExpectations(t)

			statusWorker := service.NewStatusWorker(service.NewResolver(repo), new(statusReporter), 4)
			err := statusWorker.Handle(ctx, newJob(`{"inspectData": {"Config": {"Labels": {"type": "user-container"}}}}`))

			assert.True(t, priesterrors.IsErrorType(err, priesterrors.ErrInvalidArgument))
		})
		t.Run("returns stop error when no testing instance exists", func(t *testing.T) {
			repo := new(instanceRepo)
			repo.On("FindTestingByContextVersion", ctx, "cv-1").Return([]*instance.Instance{}, nil).Once()
			defer repo.AssertExpectations(t)
			reporter := new(statusReporter)
			defer reporter.AssertExpectations(t)

			statusWorker := service.NewStatusWorker(service.NewResolver(repo), reporter, 4)
			err := statusWorker.Handle(ctx, newJob(userContainerDied))

			assert.EqualError(t, err, "not found for entity instance: testing instance not found with context version id")
			assert.True(t, priesterrors.IsStop(err))
			assert.Equal(t, "cv-1", priesterrors.Fields(err)["contextVersionId"])
		})
		t.Run("returns retryable error when repository fails", func(t *testing.T) {
			repo := new(instanceRepo)
			repo.On("FindTestingByContextVersion", ctx, "cv-1").Return(nil, errors.New("connection reset")).Once()
			defer repo.AssertExpectations(t)

			statusWorker := service.NewStatusWorker(service.NewResolver(repo), new(statusReporter), 4)
			err := statusWorker.Handle(ctx, newJob(userContainerDied))

			assert.EqualError(t, err, "internal error for entity instance: unable to find testing instances: connection reset")
			assert.False(t, priesterrors.IsStop(err))
		})
		t.Run("returns stop error for stale user container and never reports", func(t *testing.T) {
			repo := new(instanceRepo)
			repo.On("FindTestingByContextVersion", ctx, "cv-1").Return([]*instance.Instance{newInstance("i1", "container-2")}, nil).Once()
			reporter := new(statusReporter)
			defer reporter.AssertExpectations(t)

			statusWorker := service.NewStatusWorker(service.NewResolver(repo), reporter, 4)
			err := statusWorker.Handle(ctx, newJob(userContainerDied))

			assert.True(t, priesterrors.IsStop(err))
			assert.Contains(t, err.Error(), "user container is not attached to instance")
			reporter.AssertNotCalled(t, "SetStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
		t.Run("returns stop error when instance is not repo based", func(t *testing.T) {
			inst := newInstance("i1", "")
			inst.ContextVersion.AppCodeVersions = nil
			repo := new(instanceRepo)
			repo.On("FindTestingByContextVersion", ctx, "cv-1").Return([]*instance.Instance{inst}, nil).Once()

			statusWorker := service.NewStatusWorker(service.NewResolver(repo), new(statusReporter), 4)
			err := statusWorker.Handle(ctx, newJob(userContainerDied))

			assert.True(t, priesterrors.IsStop(err))
			assert.Contains(t, err.Error(), "instance is not a repo based instance")
		})
		t.Run("reports success once for a clean user container", func(t *testing.T) {
			inst := newInstance("i1", "container-1")
			repo := new(instanceRepo)
			repo.On("FindTestingByContextVersion", ctx, "cv-1").Return([]*instance.Instance{inst}, nil).Once()
			reporter := new(statusReporter)
			reporter.On("SetStatus", mock.Anything, inst, mainAcv, container.StatusSuccess).Return(nil).Once()
			defer reporter.AssertExpectations(t)

			statusWorker := service.NewStatusWorker(service.NewResolver(repo), reporter, 4)
			err := statusWorker.Handle(ctx, newJob(userContainerDied))

			assert.Nil(t, err)
		})
		t.Run("skips reporting for a clean image builder", func(t *testing.T) {
			repo := new(instanceRepo)
			repo.On("FindTestingByContextVersion", ctx, "cv-1").Return([]*instance.Instance{newInstance("i1", "other")}, nil).Once()
			reporter := new(statusReporter)
			defer reporter.AssertExpectations(t)

			statusWorker := service.NewStatusWorker(service.NewResolver(repo), reporter, 4)
			err := statusWorker.Handle(ctx, newJob(builderSucceeded))

			assert.Nil(t, err)
			reporter.AssertNotCalled(t, "SetStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
		t.Run("maps precondition failure to stop error", func(t *testing.T) {
			inst := newInstance("i1", "")
			repo := new(instanceRepo)
			repo.On("FindTestingByContextVersion", ctx, "cv-1").Return([]*instance.Instance{inst}, nil).Once()
			reporter := new(statusReporter)
			reporter.On("SetStatus", mock.Anything, inst, mainAcv, container.StatusSuccess).
				Return(priesterrors.FailedPrecondition("github_status", "commit is empty")).Once()

			statusWorker := service.NewStatusWorker(service.NewResolver(repo), reporter, 4)
			err := statusWorker.Handle(ctx, newJob(userContainerDied))

			assert.True(t, priesterrors.IsStop(err))
			assert.Contains(t, err.Error(), "preconditions failed to report to github")
		})
		t.Run("maps fatal reporting failure to stop error", func(t *testing.T) {
			inst := newInstance("i1", "")
			repo := new(instanceRepo)
			repo.On("FindTestingByContextVersion", ctx, "cv-1").Return([]*instance.Instance{inst}, nil).Once()
			reporter := new(statusReporter)
			reporter.On("SetStatus", mock.Anything, inst, mainAcv, container.StatusSuccess).
				Return(priesterrors.FatalReporting("github_status", "unprocessable", errors.New("422"))).Once()

			statusWorker := service.NewStatusWorker(service.NewResolver(repo), reporter, 4)
			err := statusWorker.Handle(ctx, newJob(userContainerDied))

			assert.True(t, priesterrors.IsErrorType(err, priesterrors.ErrFatalReporting))
			assert.Contains(t, err.Error(), "github error when setting status")
		})
		t.Run("returns other reporter errors unmodified as retryable", func(t *testing.T) {
			inst := newInstance("i1", "")
			reportErr := errors.New("github returned 502")
			repo := new(instanceRepo)
			repo.On("FindTestingByContextVersion", ctx, "cv-1").Return([]*instance.Instance{inst}, nil).Once()
			reporter := new(statusReporter)
			reporter.On("SetStatus", mock.Anything, inst, mainAcv, container.StatusSuccess).Return(reportErr).Once()

			statusWorker := service.NewStatusWorker(service.NewResolver(repo), reporter, 4)
			err := statusWorker.Handle(ctx, newJob(userContainerDied))

			assert.False(t, priesterrors.IsStop(err))
			assert.True(t, priesterrors.Is(err, reportErr))
		})
		t.Run("keeps the error of every instance", func(t *testing.T) {
			first, second := newInstance("i1", ""), newInstance("i2", "")
			repo := new(instanceRepo)
			repo.On("FindTestingByContextVersion", ctx, "cv-1").Return([]*instance.Instance{first, second}, nil).Once()
			reporter := new(statusReporter)
			reporter.On("SetStatus", mock.Anything, first, mainAcv, container.StatusSuccess).
				Return(priesterrors.FailedPrecondition("github_status", "first failed")).Once()
			reporter.On("SetStatus", mock.Anything, second, mainAcv, container.StatusSuccess).
				Return(priesterrors.FatalReporting("github_status", "second failed", nil)).Once()
			defer reporter.AssertExpectations(t)

			statusWorker := service.NewStatusWorker(service.NewResolver(repo), reporter, 4)
			err := statusWorker.Handle(ctx, newJob(userContainerDied))

			assert.True(t, priesterrors.IsStop(err))
			assert.Contains(t, err.Error(), "first failed")
			assert.Contains(t, err.Error(), "second failed")
		})
		t.Run("retries the job when any instance failed transiently", func(t *testing.T) {
			first, second := newInstance("i1", ""), newInstance("i2", "")
			repo := new(instanceRepo)
			repo.On("FindTestingByContextVersion", ctx, "cv-1").Return([]*instance.Instance{first, second}, nil).Once()
			reporter := new(statusReporter)
			reporter.On("SetStatus", mock.Anything, first, mainAcv, container.StatusSuccess).
				Return(priesterrors.FailedPrecondition("github_status", "first failed")).Once()
			reporter.On("SetStatus", mock.Anything, second, mainAcv, container.StatusSuccess).
				Return(errors.New("timeout")).Once()
			defer reporter.AssertExpectations(t)

			statusWorker := service.NewStatusWorker(service.NewResolver(repo), reporter, 1)
			err := statusWorker.Handle(ctx, newJob(userContainerDied))

			assert.False(t, priesterrors.IsStop(err))
			assert.Contains(t, err.Error(), "first failed")
			assert.Contains(t, err.Error(), "timeout")
		})
	})
}

type instanceRepo struct {
	mock.Mock
}

func (i *instanceRepo) FindTestingByContextVersion(ctx context.Context, contextVersionID string) ([]*instance.Instance, error) {
	args := i.Called(ctx, contextVersionID)
	var instances []*instance.Instance
	if args.Get(0) != nil {
		instances = args.Get(0).([]*instance.Instance)
	}
	return instances, args.Error(1)
}

type statusReporter struct {
	mock.Mock
}

func (s *statusReporter) SetStatus(ctx context.Context, inst *instance.Instance, acv instance.AppCodeVersion, status container.Status) error {
	args := s.Called(ctx, inst, acv, status)
	return args.Error(0)
}
