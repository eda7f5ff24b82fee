package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/referral-service/internal/config"
)

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "nonsense"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestNewLoggerConsoleFormat(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "debug", Format: "console", Service: "referral-service"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestRequestLoggerRecordsRouteAndStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	metrics := NewMetrics()

	app := fiber.New()
	app.Use(RequestLogger(zap.New(core), metrics))
	app.Get("/items/:id", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNotFound)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/items/42?secret=x", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	snap := metrics.Snapshot()
	assert.Equal(t, int64(1), snap.Requests["/items/:id|GET|404"])

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
	assert.Equal(t, "/items/42", entries[0].ContextMap()["path"])
}

func TestRecordJob(t *testing.T) {
	metrics := NewMetrics()
	metrics.RecordJob("status_expiry", 3, false)
	metrics.RecordJob("status_expiry", 0, true)
	metrics.RecordRequest("/x", "GET", 200, time.Millisecond)

	snap := metrics.Snapshot()
	assert.Equal(t, int64(1), snap.JobRuns["status_expiry|ok"])
	assert.Equal(t, int64(1), snap.JobRuns["status_expiry|failed"])
	assert.Equal(t, int64(3), snap.JobItems["status_expiry"])
}

func TestNilMetricsIsSafe(t *testing.T) {
	var metrics *Metrics
	assert.NotPanics(t, func() {
		metrics.RecordRequest("/x", "GET", 200, time.Millisecond)
		metrics.RecordError("/x", "GET", "NotFound")
		metrics.RecordJob("job", 1, false)
	})
}
