package instance

import (
	"strings"

	"github.com/odpf/priest/core/container"
	"github.com/odpf/priest/internal/errors"
)

const EntityInstance = "instance"

type Owner struct {
	GithubID int64  `json:"github"`
	Username string `json:"username"`
}

// AppCodeVersion is one repository bound to a context version. The main
// repository has AdditionalRepo set to false.
type AppCodeVersion struct {
	Repo           string `json:"repo"`
	LowerRepo      string `json:"lowerRepo"`
	Branch         string `json:"branch"`
	Commit         string `json:"commit"`
	AdditionalRepo bool   `json:"additionalRepo"`
}

// RepoOwnerAndName splits the "owner/name" repo into its parts.
func (a AppCodeVersion) RepoOwnerAndName() (string, string, bool) {
	parts := strings.Split(a.Repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

type ContextVersion struct {
	ID              string
	AppCodeVersions []AppCodeVersion
}

type Container struct {
	DockerContainer string
}

type Instance struct {
	ID             string
	Name           string
	Owner          Owner
	ContextVersion ContextVersion
	Container      Container
	IsTesting      bool
}

// MainAppCodeVersion returns the first app code version which is not an
// additional repository.
func (i *Instance) MainAppCodeVersion() (AppCodeVersion, error) {
	for _, acv := range i.ContextVersion.AppCodeVersions {
		if !acv.AdditionalRepo {
			return acv, nil
		}
	}
	return AppCodeVersion{}, errors.InvalidState(EntityInstance, "instance is not a repo based instance").
		WithField("instanceId", i.ID)
}

// CheckContainer rejects a user container event for an instance which is
// attached to another container, the event is stale in that case.
func (i *Instance) CheckContainer(containerType, containerID string) error {
	if containerType != container.TypeUserContainer {
		return nil
	}
	attached := i.Container.DockerContainer
	if attached != "" && attached != containerID {
		return errors.InvalidState(EntityInstance, "user container is not attached to instance").
			WithField("instanceId", i.ID).
			WithField("attachedContainer", attached).
			WithField("containerId", containerID)
	}
	return nil
}

// LogFields is the subset of the instance that is safe and useful to log.
func (i *Instance) LogFields() map[string]interface{} {
	return map[string]interface{}{
		"_id":            i.ID,
		"name":           i.Name,
		"owner":          i.Owner.Username,
		"contextVersion": i.ContextVersion.ID,
	}
}
