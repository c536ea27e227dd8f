package telemetry

import (
	"testing"
	"time"

	"github.com/odpf/salt/log"
	"github.com/stretchr/testify/assert"

	"github.com/odpf/priest/config"
)

func TestReportUptime(t *testing.T) {
	t.Run("returns once done is closed", func(t *testing.T) {
		done := make(chan struct{})
		finished := make(chan struct{})
		go func() {
			reportUptime(done)
			close(finished)
		}()

		close(done)

		assert.Eventually(t, func() bool {
			select {
			case <-finished:
				return true
			default:
				return false
			}
		}, time.Second, 10*time.Millisecond)
	})
	t.Run("cleanup of Init is safe without metrics server", func(t *testing.T) {
		cleanup, err := Init(log.NewNoop(), config.TelemetryConfig{})

		assert.Nil(t, err)
		assert.NotPanics(t, cleanup)
	})
}
