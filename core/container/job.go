package container

import (
	"encoding/json"

	"github.com/docker/docker/api/types"

	"github.com/odpf/priest/internal/errors"
)

const (
	EntityContainerJob = "container_job"

	LabelType                 = "type"
	LabelContextVersionID     = "contextVersion._id"
	LabelLegacyContextVersion = "contextVersionId"
	TypeImageBuilderContainer = "image-builder-container"
	TypeUserContainer         = "user-container"
)

// Job is the payload of a container lifecycle task, carrying the docker
// inspect output of the container that changed state.
type Job struct {
	InspectData *types.ContainerJSON `json:"inspectData"`
}

func JobFrom(payload []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, errors.InvalidArgument(EntityContainerJob, "unable to decode job: "+err.Error())
	}
	if job.InspectData == nil {
		return nil, errors.InvalidArgument(EntityContainerJob, "job is missing inspectData")
	}
	return &job, nil
}

func (j *Job) ContainerID() string {
	if j == nil || j.InspectData == nil || j.InspectData.ContainerJSONBase == nil {
		return ""
	}
	return j.InspectData.ID
}

func (j *Job) Labels() map[string]string {
	if j == nil || j.InspectData == nil || j.InspectData.Config == nil {
		return nil
	}
	return j.InspectData.Config.Labels
}

func (j *Job) Label(key string) string {
	return j.Labels()[key]
}

func (j *Job) Type() string {
	return j.Label(LabelType)
}

// ExitCode returns the exit code and whether the container state is present.
func (j *Job) ExitCode() (int, bool) {
	state := j.state()
	if state == nil {
		return 0, false
	}
	return state.ExitCode, true
}

func (j *Job) StateError() string {
	state := j.state()
	if state == nil {
		return ""
	}
	return state.Error
}

// ContextVersionID reads the context version from the labels, preferring
// contextVersion._id over the legacy contextVersionId key.
func (j *Job) ContextVersionID() (string, error) {
	if cvID := j.Label(LabelContextVersionID); cvID != "" {
		return cvID, nil
	}
	if cvID := j.Label(LabelLegacyContextVersion); cvID != "" {
		return cvID, nil
	}
	return "", errors.InvalidArgument(EntityContainerJob, "context version id label not found").
		WithField("containerId", j.ContainerID())
}

func (j *Job) state() *types.ContainerState {
	if j == nil || j.InspectData == nil || j.InspectData.ContainerJSONBase == nil {
		return nil
	}
	return j.InspectData.State
}
