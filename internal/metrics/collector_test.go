package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCollectorRecordsRPCAndToolMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectorWith("mcpgen", reg, zap.NewNop())

	c.RecordRPCRequest("stdio", "tools/call", "ok", 25*time.Millisecond)
	c.RecordRPCRequest("stdio", "tools/call", "ok", 30*time.Millisecond)
	c.RecordRPCRequest("sse", "tools/list", "error", 5*time.Millisecond)
	c.RecordToolCall("listPets", "success", 100*time.Millisecond)
	c.RecordToolCall("listPets", "timeout", time.Second)

	count := testutil.ToFloat64(c.rpcRequestsTotal.WithLabelValues("stdio", "tools/call", "ok"))
	assert.Equal(t, 2.0, count)

	count = testutil.ToFloat64(c.toolCallsTotal.WithLabelValues("listPets", "timeout"))
	assert.Equal(t, 1.0, count)
}

func TestCollectorSessionGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectorWith("mcpgen", reg, zap.NewNop())

	c.SessionOpened()
	c.SessionOpened()
	c.SessionClosed()

	require.Equal(t, 1.0, testutil.ToFloat64(c.sessionsActive))
}

func TestCollectorGenerationCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectorWith("mcpgen", reg, zap.NewNop())

	c.RecordGeneration("ok")
	c.RecordTestRun("failed")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.generationsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.testRunsTotal.WithLabelValues("failed")))
}
