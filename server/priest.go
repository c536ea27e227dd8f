package server

import (
	"context"
	"fmt"
	"time"

	"github.com/odpf/salt/log"
	"gorm.io/gorm"

	"github.com/odpf/priest/config"
	"github.com/odpf/priest/core/alert"
	alertService "github.com/odpf/priest/core/alert/service"
	instanceService "github.com/odpf/priest/core/instance/service"
	"github.com/odpf/priest/core/organization"
	orgService "github.com/odpf/priest/core/organization/service"
	"github.com/odpf/priest/ext/github"
	"github.com/odpf/priest/ext/notify/pagerduty"
	"github.com/odpf/priest/ext/notify/slack"
	"github.com/odpf/priest/ext/transport/rabbitmq"
	"github.com/odpf/priest/internal/store/postgres"
	instanceRepo "github.com/odpf/priest/internal/store/postgres/instance"
	"github.com/odpf/priest/internal/telemetry"
	"github.com/odpf/priest/internal/worker"
)

// TaskUpdateOrganization is the container lifecycle task consumed by the worker.
const TaskUpdateOrganization = "priest.update.organization"

type setupFn func() error

type PriestServer struct {
	conf   config.ServerConfig
	logger log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	dbConn        *gorm.DB
	broker        *rabbitmq.Broker
	notifyService *alertService.NotifyService
	worker        *worker.Server

	cleanupFn []func()
}

func New(conf config.ServerConfig) (*PriestServer, error) {
	ctx, cancel := context.WithCancel(context.Background())
	server := &PriestServer{
		conf:   conf,
		logger: NewLogger(conf.Log),
		ctx:    ctx,
		cancel: cancel,
	}

	setupFns := []setupFn{
		server.setupTelemetry,
		server.setupDB,
		server.setupBroker,
		server.setupAlerts,
		server.setupWorker,
	}

	for _, fn := range setupFns {
		if err := fn(); err != nil {
			return server, err
		}
	}

	server.logger.Info("Starting priest", "version", config.BuildVersion, "worker", conf.Worker.Name)
	if err := server.worker.Start(server.ctx); err != nil {
		return server, fmt.Errorf("unable to start worker: %w", err)
	}
	return server, nil
}

func (s *PriestServer) setupTelemetry() error {
	teleShutdown, err := telemetry.Init(s.logger, s.conf.Telemetry)
	if err != nil {
		return err
	}

	s.cleanupFn = append(s.cleanupFn, teleShutdown)
	return nil
}

func (s *PriestServer) setupDB() error {
	migration, err := postgres.NewMigration(s.logger, s.conf.DB.DSN)
	if err != nil {
		return fmt.Errorf("error initializing migration: %w", err)
	}
	defer migration.Close()
	if err := migration.Up(); err != nil {
		return fmt.Errorf("error executing migration up: %w", err)
	}

	s.dbConn, err = postgres.Connect(s.conf.DB, s.logger.Writer())
	if err != nil {
		return fmt.Errorf("postgres.Connect: %w", err)
	}
	s.cleanupFn = append(s.cleanupFn, func() {
		if err := postgres.Close(s.dbConn); err != nil {
			s.logger.Error("error closing db connection", "err", err.Error())
		}
	})
	return nil
}

func (s *PriestServer) setupBroker() error {
	var err error
	s.broker, err = rabbitmq.NewBroker(s.conf.Broker, s.logger)
	if err != nil {
		return err
	}
	s.cleanupFn = append(s.cleanupFn, func() {
		if err := s.broker.Close(); err != nil {
			s.logger.Error("error closing broker connection", "err", err.Error())
		}
	})

	if err := s.broker.DeclareEvent(organization.EventUpdated, s.eventQueue(organization.EventUpdated)); err != nil {
		return err
	}
	if err := s.broker.DeclareTask(organization.TaskUpdate); err != nil {
		return err
	}
	return s.broker.DeclareTask(TaskUpdateOrganization)
}

func (s *PriestServer) setupAlerts() error {
	errHandler := func(err error) {
		s.logger.Error("notifier error", "err", err.Error())
	}
	notifiers := map[string]alertService.Notifier{
		alert.SchemeSlack: slack.NewNotifier(s.ctx, s.conf.Alert.SlackAPIURL, slack.DefaultEventBatchInterval, errHandler),
		alert.SchemePagerDuty: pagerduty.NewNotifier(s.ctx, pagerduty.DefaultEventBatchInterval, errHandler,
			new(pagerduty.PagerDutyServiceImpl)),
	}
	secrets := map[string]string{
		alert.SchemeSlack: s.conf.Alert.SlackToken,
	}

	var err error
	s.notifyService, err = alertService.NewNotifyService(s.logger, s.conf.Alert.Channels, secrets, notifiers)
	if err != nil {
		return err
	}
	// notifiers flush their queue once s.ctx is done
	s.cleanupFn = append(s.cleanupFn, func() {
		if err := s.notifyService.Close(); err != nil {
			s.logger.Error("error closing notifiers", "err", err.Error())
		}
	})
	return nil
}

func (s *PriestServer) setupWorker() error {
	githubClient, err := github.NewClient(s.ctx, s.conf.Github)
	if err != nil {
		return err
	}
	reporter := github.NewStatusReporter(githubClient.Repositories, s.conf.Github)

	resolver := instanceService.NewResolver(instanceRepo.NewRepository(s.dbConn))
	statusWorker := instanceService.NewStatusWorker(resolver, reporter, s.conf.Worker.InstanceConcurrency)
	eventService := orgService.NewEventService(s.broker)

	workerConf := s.conf.Worker
	s.worker = worker.NewServer(workerConf.Name, s.logger,
		worker.WithPrefetch(workerConf.Prefetch),
		worker.WithRetry(workerConf.MaxAttempts, workerConf.RetryDelay, workerConf.MaxRetryDelay),
		worker.WithStopHook(s.notifyService.StopHook),
	)
	s.worker.Register(organization.EventUpdated, s.broker.Subscribe(s.eventQueue(organization.EventUpdated)), eventService)
	s.worker.Register(TaskUpdateOrganization, s.broker.Subscribe(TaskUpdateOrganization), statusWorker)
	return nil
}

// eventQueue is the queue of this worker bound to the exchange of event.
func (s *PriestServer) eventQueue(event string) string {
	return s.conf.Worker.Name + "." + event
}

func (s *PriestServer) Shutdown() {
	s.logger.Warn("Shutting down priest")
	if s.worker != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
		defer cancel()
		if err := s.worker.Shutdown(ctx); err != nil {
			s.logger.Error("error in worker shutdown", "err", err.Error())
		}
	}

	s.cancel()
	for i := len(s.cleanupFn) - 1; i >= 0; i-- {
		s.cleanupFn[i]()
	}
	s.logger.Info("Server shutdown complete")
}

func (s *PriestServer) shutdownTimeout() time.Duration {
	if s.conf.Worker.ShutdownTimeout > 0 {
		return s.conf.Worker.ShutdownTimeout
	}
	return 30 * time.Second
}

