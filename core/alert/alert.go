package alert

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	EntityAlert = "alert"

	SchemeSlack     = "slack"
	SchemePagerDuty = "pagerduty"
)

// Alert describes a job which was dropped because reporting was rejected.
type Alert struct {
	Task    string
	TID     string
	Message string
	Error   string
	Fields  map[string]interface{}
	At      time.Time
}

func (a *Alert) Title() string {
	return fmt.Sprintf("[priest] %s | %s", a.Message, a.Task)
}

// FieldLines renders Fields as sorted key: value lines.
func (a *Alert) FieldLines() []string {
	keys := make([]string, 0, len(a.Fields))
	for k := range a.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %v", k, a.Fields[k]))
	}
	return lines
}

type NotifyAttrs struct {
	Route  string
	Secret string
	Alert  *Alert
}

// Channel is an alert destination in scheme://route form.
type Channel struct {
	Scheme string
	Route  string
}

func ChannelFrom(raw string) (Channel, error) {
	parts := strings.SplitN(raw, "://", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Channel{}, fmt.Errorf("invalid alert channel %q, expected scheme://route", raw)
	}
	return Channel{Scheme: parts[0], Route: parts[1]}, nil
}

func (c Channel) String() string {
	return c.Scheme + "://" + c.Route
}
