package slack

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	api "github.com/slack-go/slack"

	"github.com/odpf/priest/core/alert"
)

const (
	DefaultEventBatchInterval = time.Second * 10
)

var (
	slackQueueCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notify_slack_queue",
		Help: "Items queued in slack notification channel",
	})
	slackWorkerBatchCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notify_slack_worker_batch",
		Help: "Worker execution count in slack notification channel",
	})
	slackWorkerSendErrCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notify_slack_worker_send_err",
		Help: "Failure of messages in slack notification channel worker",
	})
)

// Notifier batches alerts per receiver and sends them every eventBatchInterval.
type Notifier struct {
	slackURL      string
	routeMsgBatch map[route][]*alert.Alert
	wg            sync.WaitGroup
	mu            sync.Mutex
	workerErrChan chan error

	eventBatchInterval time.Duration
}

type route struct {
	receiverID string
	authToken  string
}

// Notify accepts a #channel or a user email as route.
func (s *Notifier) Notify(ctx context.Context, attr alert.NotifyAttrs) error {
	var receiverID string
	switch {
	case strings.HasPrefix(attr.Route, "#"):
		receiverID = attr.Route
	case strings.Contains(attr.Route, "@"):
		client := api.New(attr.Secret, api.OptionAPIURL(s.slackURL))
		user, err := client.GetUserByEmailContext(ctx, attr.Route)
		if err != nil {
			return fmt.Errorf("client.GetUserByEmailContext: %w", err)
		}
		receiverID = user.ID
	default:
		return fmt.Errorf("failed to find notification route %s", attr.Route)
	}

	s.queueNotification(route{receiverID: receiverID, authToken: attr.Secret}, attr.Alert)
	return nil
}

func (s *Notifier) queueNotification(rt route, a *alert.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routeMsgBatch[rt] = append(s.routeMsgBatch[rt], a)
	slackQueueCounter.Inc()
}

func buildMessageBlocks(alerts []*alert.Alert) []api.Block {
	var blocks []api.Block
	for idx, a := range alerts {
		heading := api.NewTextBlockObject("plain_text", a.Title(), true, false)
		blocks = append(blocks, api.NewHeaderBlock(heading))

		fieldSlice := []*api.TextBlockObject{
			api.NewTextBlockObject("mrkdwn", fmt.Sprintf("*Task:*\n%s", a.Task), false, false),
			api.NewTextBlockObject("mrkdwn", fmt.Sprintf("*TID:*\n%s", a.TID), false, false),
		}
		if !a.At.IsZero() {
			fieldSlice = append(fieldSlice, api.NewTextBlockObject("mrkdwn", fmt.Sprintf("*At:*\n%s", a.At.UTC().Format(time.RFC3339)), false, false))
		}
		if lines := a.FieldLines(); len(lines) > 0 {
			fieldSlice = append(fieldSlice, api.NewTextBlockObject("mrkdwn", "*Details:*\n"+strings.Join(lines, "\n"), false, false))
		}
		blocks = append(blocks, api.NewSectionBlock(nil, fieldSlice, nil))

		if a.Error != "" {
			errText := api.NewTextBlockObject("plain_text", fmt.Sprintf("Error:\n%s", a.Error), true, false)
			blocks = append(blocks, api.NewContextBlock("", errText))
		}

		if len(alerts) != idx+1 {
			blocks = append(blocks, api.NewDividerBlock())
		}
	}
	return blocks
}

func (s *Notifier) flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for rt, alerts := range s.routeMsgBatch {
		if len(alerts) == 0 {
			continue
		}
		client := api.New(rt.authToken, api.OptionAPIURL(s.slackURL))
		if _, _, _, err := client.SendMessage(rt.receiverID,
			api.MsgOptionBlocks(buildMessageBlocks(alerts)...),
			api.MsgOptionAsUser(true),
		); err != nil {
			s.workerErrChan <- fmt.Errorf("worker_sendMessage: %s: %d alerts: %w", rt.receiverID, len(alerts), err)
		}
		delete(s.routeMsgBatch, rt)
	}
}

func (s *Notifier) Worker(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.eventBatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			// drain what was queued before shutdown
			s.flush()
			close(s.workerErrChan)
			return
		case <-ticker.C:
			s.flush()
			slackWorkerBatchCounter.Inc()
		}
	}
}

// Close waits for the worker, which exits once ctx of NewNotifier is done.
func (s *Notifier) Close() error { // nolint: unparam
	s.wg.Wait()
	return nil
}

func NewNotifier(ctx context.Context, slackURL string, eventBatchInterval time.Duration, errHandler func(error)) *Notifier {
	this := &Notifier{
		slackURL:           slackURL,
		routeMsgBatch:      map[route][]*alert.Alert{},
		workerErrChan:      make(chan error),
		eventBatchInterval: eventBatchInterval,
	}

	this.wg.Add(1)
	go func() {
		for err := range this.workerErrChan {
			errHandler(err)
			slackWorkerSendErrCounter.Inc()
		}
		this.wg.Done()
	}()

	this.wg.Add(1)
	go this.Worker(ctx)
	return this
}
