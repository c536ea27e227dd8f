package worker_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/odpf/salt/log"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/odpf/priest/internal/worker"
)

func TestJobLogger(t *testing.T) {
	t.Run("tags every line with tid and task", func(t *testing.T) {
		buf := new(bytes.Buffer)
		logger := log.NewLogrus(
			log.LogrusWithLevel("debug"),
			log.LogrusWithWriter(buf),
			log.LogrusWithFormatter(&logrus.JSONFormatter{}),
		)

		job := worker.NewJob("update.organization", []byte(`{}`), map[string]string{worker.MetadataTID: "abc"}, logger)
		job.Logger.Info("job stopped", "containerId", "c1")

		line := map[string]interface{}{}
		assert.Nil(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "abc", line["tid"])
		assert.Equal(t, "update.organization", line["task"])
		assert.Equal(t, "c1", line["containerId"])
		assert.Equal(t, "job stopped", line["msg"])
	})
	t.Run("falls back to noop logger", func(t *testing.T) {
		job := worker.NewJob("update.organization", nil, nil, nil)

		assert.NotPanics(t, func() { job.Logger.Info("hello") })
	})
}
