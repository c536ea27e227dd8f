package pagerduty

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/odpf/priest/core/alert"
)

const (
	DefaultEventBatchInterval = time.Second * 10
)

var (
	pagerdutyQueueCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notify_pagerduty_queue",
		Help: "Items queued in pagerduty notification channel",
	})
	pagerdutyWorkerBatchCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notify_pagerduty_worker_batch",
		Help: "Worker execution count in pagerduty notification channel",
	})
	pagerdutyWorkerSendErrCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notify_pagerduty_worker_send_err",
		Help: "Failure of messages in pagerduty notification channel worker",
	})
)

type Notifier struct {
	msgQueue           []Event
	wg                 sync.WaitGroup
	mu                 sync.Mutex
	workerErrChan      chan error
	pdService          PagerDutyService
	eventBatchInterval time.Duration
}

type Event struct {
	routingKey string
	alert      *alert.Alert
}

func NewEvent(routingKey string, a *alert.Alert) Event {
	return Event{
		routingKey: routingKey,
		alert:      a,
	}
}

func (s *Notifier) Notify(_ context.Context, attr alert.NotifyAttrs) error {
	if attr.Secret == "" {
		return fmt.Errorf("pagerduty routing key is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgQueue = append(s.msgQueue, NewEvent(attr.Secret, attr.Alert))
	pagerdutyQueueCounter.Inc()
	return nil
}

func (s *Notifier) flush(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range s.msgQueue {
		if err := s.pdService.SendAlert(ctx, evt); err != nil {
			s.workerErrChan <- fmt.Errorf("worker_sendAlert: %w", err)
		}
	}
	s.msgQueue = nil
}

func (s *Notifier) Worker(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.eventBatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.flush(context.Background())
			close(s.workerErrChan)
			return
		case <-ticker.C:
			s.flush(ctx)
			pagerdutyWorkerBatchCounter.Inc()
		}
	}
}

func (s *Notifier) Close() error { // nolint: unparam
	s.wg.Wait()
	return nil
}

func NewNotifier(ctx context.Context, eventBatchInterval time.Duration, errHandler func(error), pdService PagerDutyService) *Notifier {
	notifier := &Notifier{
		msgQueue:           make([]Event, 0),
		workerErrChan:      make(chan error),
		eventBatchInterval: eventBatchInterval,
		pdService:          pdService,
	}

	notifier.wg.Add(1)
	go func() {
		for err := range notifier.workerErrChan {
			errHandler(err)
			pagerdutyWorkerSendErrCounter.Inc()
		}
		notifier.wg.Done()
	}()
	notifier.wg.Add(1)
	go notifier.Worker(ctx)
	return notifier
}
