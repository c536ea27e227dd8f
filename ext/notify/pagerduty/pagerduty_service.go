package pagerduty

import (
	"context"
	"strings"

	"github.com/PagerDuty/go-pagerduty"
)

type PagerDutyService interface {
	SendAlert(context.Context, Event) error
}

type PagerDutyServiceImpl struct{}

type customDetails struct {
	Task    string `json:"task"`
	TID     string `json:"tid"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (*PagerDutyServiceImpl) SendAlert(ctx context.Context, evt Event) error {
	a := evt.alert
	payload := pagerduty.V2Payload{
		Summary:  a.Title(),
		Severity: "critical",
		Source:   "priest",
		Details: customDetails{
			Task:    a.Task,
			TID:     a.TID,
			Error:   a.Error,
			Details: strings.Join(a.FieldLines(), "\n"),
		},
	}
	if !a.At.IsZero() {
		payload.Timestamp = a.At.UTC().Format("2006-01-02T15:04:05.000Z")
	}

	e := pagerduty.V2Event{
		RoutingKey: evt.routingKey,
		Action:     "trigger",
		DedupKey:   a.TID,
		Payload:    &payload,
	}
	_, err := pagerduty.ManageEventWithContext(ctx, e)
	return err
}
