package service

import (
	"context"

	"github.com/kushsharma/parallel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/odpf/priest/core/container"
	"github.com/odpf/priest/core/instance"
	"github.com/odpf/priest/internal/errors"
	"github.com/odpf/priest/internal/telemetry"
	"github.com/odpf/priest/internal/worker"
)

const metricStatusReported = "priest_status_reported_total"

var tracer = otel.Tracer("priest/instance")

type StatusReporter interface {
	SetStatus(ctx context.Context, inst *instance.Instance, acv instance.AppCodeVersion, status container.Status) error
}

// StatusWorker reports the status of a finished container to every testing
// instance built from it.
type StatusWorker struct {
	resolver    *Resolver
	reporter    StatusReporter
	concurrency int
}

func NewStatusWorker(resolver *Resolver, reporter StatusReporter, concurrency int) *StatusWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &StatusWorker{
		resolver:    resolver,
		reporter:    reporter,
		concurrency: concurrency,
	}
}

func (w StatusWorker) Handle(ctx context.Context, job *worker.Job) error {
	containerJob, err := container.JobFrom(job.Payload)
	if err != nil {
		return err
	}

	cvID, err := w.resolver.ContextVersionID(containerJob)
	if err != nil {
		return err
	}
	job.Logger.Debug("searching for instances by context version", "cvId", cvID)

	instances, err := w.resolver.Resolve(ctx, cvID)
	if err != nil {
		return err
	}

	status := container.CalculateStatus(containerJob)
	runner := parallel.NewRunner(parallel.WithLimit(w.concurrency))
	for _, inst := range instances {
		runner.Add(func(inst *instance.Instance) func() (interface{}, error) {
			return func() (interface{}, error) {
				return nil, w.reportInstance(ctx, job, containerJob, inst, status)
			}
		}(inst))
	}

	me := errors.NewMultiError("errors while reporting container status")
	for _, result := range runner.Run() {
		me.Append(result.Err)
	}
	return me.ToErr()
}

func (w StatusWorker) reportInstance(ctx context.Context, job *worker.Job, containerJob *container.Job, inst *instance.Instance, status container.Status) error {
	ctx, span := tracer.Start(ctx, "report-instance-status")
	defer span.End()
	span.SetAttributes(attribute.String("instance", inst.ID), attribute.String("status", status.String()))

	if err := inst.CheckContainer(containerJob.Type(), containerJob.ContainerID()); err != nil {
		return err
	}
	acv, err := inst.MainAppCodeVersion()
	if err != nil {
		return err
	}

	fields := worker.FieldArgs(inst.LogFields())
	if !status.Reportable() {
		job.Logger.Debug("calculated status is empty, not reporting", fields...)
		return nil
	}

	job.Logger.Debug("setting github status for instance", append(fields, "status", status.String())...)
	err = w.reporter.SetStatus(ctx, inst, acv, status)
	switch {
	case err == nil:
		telemetry.NewCounter(metricStatusReported, map[string]string{"status": status.String()}).Inc()
		return nil
	case errors.IsErrorType(err, errors.ErrFailedPrecond):
		return errors.Wrap(instance.EntityInstance, "preconditions failed to report to github", err)
	case errors.IsErrorType(err, errors.ErrFatalReporting):
		return errors.Wrap(instance.EntityInstance, "github error when setting status", err)
	default:
		return err
	}
}
