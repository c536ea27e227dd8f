package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/odpf/salt/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gocloud.dev/pubsub"
	"golang.org/x/sync/semaphore"

	"github.com/odpf/priest/internal/errors"
	"github.com/odpf/priest/internal/telemetry"
)

const (
	metricJobs = "priest_worker_jobs_total"

	resultSuccess = "success"
	resultStop    = "stop"
	resultRetry   = "retry"
)

var tracer = otel.Tracer("priest/worker")

// StopHook is called after a job failed with an error that will not be retried.
type StopHook func(ctx context.Context, job *Job, err error)

type Option func(*Server)

func WithPrefetch(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.prefetch = n
		}
	}
}

func WithRetry(maxAttempts uint, delay, maxDelay time.Duration) Option {
	return func(s *Server) {
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
		s.retryDelay = delay
		s.maxRetryDelay = maxDelay
	}
}

func WithStopHook(hook StopHook) Option {
	return func(s *Server) {
		s.stopHooks = append(s.stopHooks, hook)
	}
}

type registration struct {
	name    string
	sub     *pubsub.Subscription
	handler Handler
}

// Server dispatches messages of registered subscriptions to their handlers,
// at most prefetch jobs are in flight across all subscriptions.
type Server struct {
	name   string
	logger log.Logger

	prefetch      int
	maxAttempts   uint
	retryDelay    time.Duration
	maxRetryDelay time.Duration
	stopHooks     []StopHook

	registrations []registration
	sem           *semaphore.Weighted

	cancel    context.CancelFunc
	receivers sync.WaitGroup
	jobs      sync.WaitGroup
}

func NewServer(name string, logger log.Logger, opts ...Option) *Server {
	s := &Server{
		name:          name,
		logger:        logger,
		prefetch:      25,
		maxAttempts:   5,
		retryDelay:    500 * time.Millisecond,
		maxRetryDelay: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sem = semaphore.NewWeighted(int64(s.prefetch))
	return s
}

// Register binds a handler to the messages received on sub. It must be
// called before Start.
func (s *Server) Register(name string, sub *pubsub.Subscription, handler Handler) {
	s.registrations = append(s.registrations, registration{
		name:    name,
		sub:     sub,
		handler: handler,
	})
}

// Start begins receiving on every registered subscription. Jobs run with
// ctx, receiving stops on Shutdown.
func (s *Server) Start(ctx context.Context) error {
	if len(s.registrations) == 0 {
		return fmt.Errorf("worker %s has no registered handlers", s.name)
	}

	receiveCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	for _, r := range s.registrations {
		s.receivers.Add(1)
		go s.receive(receiveCtx, ctx, r)
		s.logger.Info("worker subscribed", "worker", s.name, "task", r.name)
	}
	return nil
}

func (s *Server) receive(receiveCtx, jobCtx context.Context, r registration) {
	defer s.receivers.Done()
	for {
		if err := s.sem.Acquire(receiveCtx, 1); err != nil {
			return
		}

		msg, err := r.sub.Receive(receiveCtx)
		if err != nil {
			s.sem.Release(1)
			if receiveCtx.Err() == nil {
				s.logger.Error("failed to receive message", "task", r.name, "err", err)
			}
			return
		}

		s.jobs.Add(1)
		go func() {
			defer s.jobs.Done()
			defer s.sem.Release(1)
			s.process(jobCtx, r, msg)
		}()
	}
}

// logRetry logs failed attempts which are followed by another one, the last
// failure is logged when the job is redelivered.
func (s *Server) logRetry(job *Job) func(n uint, err error) {
	return func(n uint, err error) {
		if n+1 >= s.maxAttempts {
			return
		}
		job.Logger.Error("job failed, retrying", "attempt", n+1, "err", err.Error())
	}
}

func (s *Server) process(ctx context.Context, r registration, msg *pubsub.Message) {
	job := NewJob(r.name, msg.Body, msg.Metadata, s.logger)
	ctx = WithTID(ctx, job.TID)

	ctx, span := tracer.Start(ctx, r.name)
	defer span.End()
	span.SetAttributes(attribute.String("tid", job.TID))

	err := retry.Do(
		func() error {
			job.Attempt++
			return r.handler.Handle(ctx, job)
		},
		retry.Context(ctx),
		retry.Attempts(s.maxAttempts),
		retry.Delay(s.retryDelay),
		retry.MaxDelay(s.maxRetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.IsStop(err)
		}),
		retry.OnRetry(s.logRetry(job)),
	)
	span.SetAttributes(attribute.Int64("attempts", int64(job.Attempt)))

	switch {
	case err == nil:
		msg.Ack()
		telemetry.NewCounter(metricJobs, map[string]string{"task": r.name, "result": resultSuccess}).Inc()
		job.Logger.Debug("job done")

	case errors.IsStop(err):
		msg.Ack()
		telemetry.NewCounter(metricJobs, map[string]string{"task": r.name, "result": resultStop}).Inc()
		args := append([]interface{}{"err", err.Error()}, FieldArgs(errors.Fields(err))...)
		job.Logger.Info("job stopped", args...)
		for _, hook := range s.stopHooks {
			hook(ctx, job, err)
		}

	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		telemetry.NewCounter(metricJobs, map[string]string{"task": r.name, "result": resultRetry}).Inc()
		job.Logger.Error("job failed, redelivering", "attempts", job.Attempt, "err", err.Error())
		if msg.Nackable() {
			msg.Nack()
		}
	}
}

// Shutdown stops receiving, waits for in-flight jobs and closes the
// subscriptions.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	s.receivers.Wait()

	done := make(chan struct{})
	go func() {
		s.jobs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("worker shutdown timed out with jobs in flight", "worker", s.name)
	}

	me := errors.NewMultiError("errors while shutting down subscriptions")
	for _, r := range s.registrations {
		if err := r.sub.Shutdown(ctx); err != nil {
			me.Append(fmt.Errorf("subscription %s: %w", r.name, err))
		}
	}
	return me.ToErr()
}
