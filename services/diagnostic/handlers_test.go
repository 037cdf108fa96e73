package diagnostic_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/influxdata/rundeckaction/keyvalue"
	"github.com/influxdata/rundeckaction/services/action"
	"github.com/influxdata/rundeckaction/services/diagnostic"
	"github.com/influxdata/rundeckaction/services/logging/loggingtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestActionHandler(t *testing.T) {
	ls := loggingtest.New()
	h := diagnostic.NewService(ls).NewActionHandler().WithContext(keyvalue.KV("action", "a1"))

	h.TriggeredJob("https://rundeck.example.com/execution/show/1")
	h.FailedToFindIncident("disk-full", nil)
	h.FailedToAnnotateIncident("P1", errors.New("403 Forbidden"))
	h.Executed(action.StatusError, action.ReasonIncidentAnnotationFailure, time.Second)

	entries := ls.Logs().AllUntimed()
	require.Len(t, entries, 4)

	for _, e := range entries {
		ctx := e.ContextMap()
		assert.Equal(t, "action", ctx["service"])
		assert.Equal(t, "a1", ctx["action"])
	}

	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "https://rundeck.example.com/execution/show/1", entries[0].ContextMap()["execution"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "no incident found", entries[1].Message)

	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, "403 Forbidden", entries[2].ContextMap()["error"])

	assert.Equal(t, zapcore.DebugLevel, entries[3].Level)
	assert.Equal(t, "incident_annotation_failure", entries[3].ContextMap()["reason"])
}

func TestActionHandler_WithContextDoesNotLeak(t *testing.T) {
	ls := loggingtest.New()
	root := diagnostic.NewService(ls).NewActionHandler()

	root.WithContext(keyvalue.KV("action", "a1")).SentSlackMessage()
	root.SentSlackMessage()

	entries := ls.Logs().AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, "a1", entries[0].ContextMap()["action"])
	_, ok := entries[1].ContextMap()["action"]
	assert.False(t, ok)
}

func TestHTTPDHandler(t *testing.T) {
	ls := loggingtest.New()
	h := diagnostic.NewService(ls).NewHTTPDHandler()

	h.HTTP("127.0.0.1:5000", "POST", "/rundeck/v1/execute", 502, "curl", 20*time.Millisecond)

	entries := ls.Logs().FilterMessage("http request").AllUntimed()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "http", ctx["service"])
	assert.Equal(t, int64(502), ctx["status"])
	assert.Equal(t, "/rundeck/v1/execute", ctx["uri"])
}

func TestBootstrapMainHandler(t *testing.T) {
	var buf bytes.Buffer
	h := diagnostic.NewBootstrapHandler(&buf)
	h.StartingRun("1.0.0", "abc")
	h.Error("bad config", errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, "starting rundeck action daemon")
	assert.Contains(t, out, "1.0.0")
	assert.Contains(t, out, "boom")
}
