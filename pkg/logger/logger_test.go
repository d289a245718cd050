package logger

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for raw, want := range cases {
		require.Equal(t, want, parseLevel(raw).Level(), "level %q", raw)
	}
}

func TestServiceNameFromEnv(t *testing.T) {
	t.Setenv("SERVICE_NAME", "")
	require.Equal(t, "health-insight", serviceName())

	t.Setenv("SERVICE_NAME", "insight-staging")
	require.Equal(t, "insight-staging", serviceName())
}
