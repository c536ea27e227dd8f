package organization

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/odpf/priest/internal/errors"
)

const (
	EntityOrganization = "organization"

	EventUpdated = "organization.updated"
	TaskUpdate   = "update.organization"
)

type Organization struct {
	GithubID string `mapstructure:"githubId"`
}

// UpdatedEvent is the payload of organization.updated.
type UpdatedEvent struct {
	Organization Organization `mapstructure:"organization"`
	GithubID     string       `mapstructure:"githubId"`
}

// UpdateTask is the payload of the update.organization task.
type UpdateTask struct {
	GithubID string `json:"githubId"`
}

// UpdatedEventFrom validates the raw event. A numeric organization githubId
// is converted to string form, integral values to their decimal form.
func UpdatedEventFrom(payload []byte) (*UpdatedEvent, error) {
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()

	var raw interface{}
	if err := decoder.Decode(&raw); err != nil {
		return nil, errors.InvalidArgument(EntityOrganization, "encountered non-object job")
	}
	job, ok := raw.(map[string]interface{})
	if !ok {
		return nil, errors.InvalidArgument(EntityOrganization, "encountered non-object job")
	}

	org, _ := job["organization"].(map[string]interface{})
	githubID, err := normalizeGithubID(org["githubId"])
	if err != nil {
		return nil, err
	}
	org["githubId"] = githubID

	if _, ok := job["githubId"].(string); !ok {
		return nil, errors.InvalidArgument(EntityOrganization, "job missing `githubId` field of type {string}")
	}

	var event UpdatedEvent
	if err := mapstructure.Decode(job, &event); err != nil {
		return nil, errors.InvalidArgument(EntityOrganization, "unable to decode job: "+err.Error())
	}
	return &event, nil
}

func normalizeGithubID(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		if v != "" {
			return v, nil
		}
	case json.Number:
		return numberString(v), nil
	}
	return "", errors.InvalidArgument(EntityOrganization, "job `githubId` field cannot be empty")
}

// maxExponentDigits keeps exponent forms like 1e999999999 from being expanded.
const maxExponentDigits = 3

// numberString renders an integral number in decimal form, any other number
// is kept as it was sent.
func numberString(n json.Number) string {
	raw := n.String()
	if i := strings.IndexAny(raw, "eE"); i >= 0 {
		exp := strings.TrimLeft(raw[i+1:], "+-")
		if len(strings.TrimLeft(exp, "0")) > maxExponentDigits {
			return raw
		}
	}

	r, ok := new(big.Rat).SetString(raw)
	if !ok || !r.IsInt() {
		return raw
	}
	return r.Num().String()
}
