package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/sampleapp/internal/domain"
	context_ "github.com/mkrupp/sampleapp/internal/infra/context"
	"github.com/mkrupp/sampleapp/internal/infra/logging"
)

//nolint:paralleltest
func TestGetLogger_JSONIncludesRequestContext(t *testing.T) {
	var buf bytes.Buffer

	logging.Configure(context.Background(), logging.LoggerConfig{
		OutputHandle: &buf,
		Level:        "debug",
		JSON:         true,
	}, "sampleapp.test")

	ctx := context_.WithTraceID(context.Background(), "trace-1")
	ctx = context_.WithIdentity(ctx, domain.Identity{UserID: 42, Username: "alice"})

	buf.Reset()
	logging.GetLogger("svc.test").InfoContext(ctx, "hello")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "hello", record["msg"])
	assert.Equal(t, "svc.test", record["logger"])
	assert.Equal(t, "sampleapp.test", record["app"])
	assert.Equal(t, map[string]any{"id": "trace-1"}, record["trace"])
	assert.Equal(t, map[string]any{"user_id": float64(42)}, record["session"])
	assert.NotContains(t, buf.String(), "alice")
}

//nolint:paralleltest
func TestGetLogger_ConsoleFilterByPackage(t *testing.T) {
	var buf bytes.Buffer

	logging.Configure(context.Background(), logging.LoggerConfig{
		OutputHandle: &buf,
		Level:        "debug",
		Filter:       "svc.noisy:error",
	}, "sampleapp.test")

	buf.Reset()
	logging.GetLogger("svc.noisy.sub").DebugContext(context.Background(), "suppressed message")
	logging.GetLogger("svc.other").DebugContext(context.Background(), "visible message")

	out := buf.String()
	assert.NotContains(t, out, "suppressed message")
	assert.True(t, strings.Contains(out, "visible message"), "output: %s", out)
}

//nolint:paralleltest
func TestGetLogger_ConsoleFilterRaisesVerbosity(t *testing.T) {
	var buf bytes.Buffer

	logging.Configure(context.Background(), logging.LoggerConfig{
		OutputHandle: &buf,
		Level:        "warn",
		Filter:       "svc.chatty:debug, repo:error",
	}, "sampleapp.test")

	buf.Reset()
	logging.GetLogger("svc.chatty.sub").DebugContext(context.Background(), "chatty debug")
	logging.GetLogger("svc.quiet").InfoContext(context.Background(), "quiet info")
	logging.GetLogger("svc.quiet").WarnContext(context.Background(), "quiet warn")
	logging.GetLogger("repo.user").WarnContext(context.Background(), "repo warn")

	out := buf.String()
	assert.Contains(t, out, "chatty debug")
	assert.NotContains(t, out, "quiet info")
	assert.Contains(t, out, "quiet warn")
	assert.NotContains(t, out, "repo warn")
}

func TestConsoleHandler_WithAttrsDoesNotShareState(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	base := slog.New(&logging.ConsoleHandler{Output: &buf, Level: slog.LevelDebug}).With("a", 1)
	first := base.With("b", 2)
	second := base.With("c", 3)

	first.Info("first")
	second.Info("second")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var firstLine, secondLine string
	for _, line := range lines {
		switch {
		case strings.Contains(line, "first"):
			firstLine = line
		case strings.Contains(line, "second"):
			secondLine = line
		}
	}

	assert.Contains(t, firstLine, "b=")
	assert.NotContains(t, firstLine, "c=")
	assert.Contains(t, secondLine, "c=")
	assert.NotContains(t, secondLine, "b=")
}
