package worker

import (
	"context"

	"github.com/google/uuid"
	"github.com/odpf/salt/log"
)

// MetadataTID is the message metadata key carrying the correlation id.
const MetadataTID = "tid"

// Job is a single delivery of a task or event to its handler.
type Job struct {
	TID     string
	Name    string
	Payload []byte
	Attempt uint
	Logger  log.Logger
}

type Handler interface {
	Handle(ctx context.Context, job *Job) error
}

type HandlerFunc func(ctx context.Context, job *Job) error

func (f HandlerFunc) Handle(ctx context.Context, job *Job) error {
	return f(ctx, job)
}

func NewJob(name string, payload []byte, metadata map[string]string, logger log.Logger) *Job {
	tid := metadata[MetadataTID]
	if tid == "" {
		tid = uuid.NewString()
	}
	job := &Job{
		TID:     tid,
		Name:    name,
		Payload: payload,
	}
	job.Logger = newJobLogger(logger, "tid", tid, "task", name)
	return job
}

type tidKey struct{}

func WithTID(ctx context.Context, tid string) context.Context {
	return context.WithValue(ctx, tidKey{}, tid)
}

// TIDFromContext returns the correlation id of the job being processed, if any.
func TIDFromContext(ctx context.Context) string {
	tid, _ := ctx.Value(tidKey{}).(string)
	return tid
}
