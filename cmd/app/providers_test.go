package main

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/health-insight/internal/infra/archive"
	"github.com/yanqian/health-insight/internal/infra/config"
)

func TestProvideArchive(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	disabled := &config.Config{Archive: config.ArchiveConfig{Enabled: false, Endpoint: "localhost:9000", Bucket: "ingest"}}
	require.Nil(t, provideArchive(disabled, logger))

	enabled := &config.Config{Archive: config.ArchiveConfig{Enabled: true, Endpoint: "http://localhost:9000", Bucket: "ingest"}}
	got := provideArchive(enabled, logger)
	require.IsType(t, &archive.S3Archive{}, got)
}
