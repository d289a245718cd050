//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/health-insight/internal/bootstrap"
	"github.com/yanqian/health-insight/internal/domain/auth"
	"github.com/yanqian/health-insight/internal/domain/chat"
	"github.com/yanqian/health-insight/internal/domain/healthdata"
	"github.com/yanqian/health-insight/internal/infra/config"
	httpiface "github.com/yanqian/health-insight/internal/interface/http"
	"github.com/yanqian/health-insight/pkg/logger"
	"github.com/yanqian/health-insight/pkg/metrics"
)

func initializeApp() (*bootstrap.App, func(), error) {
	wire.Build(
		config.Load,
		logger.New,
		metrics.NewRecorder,
		providePostgresPool,
		provideValkeyClient,
		provideAuthConfig,
		provideAuthRepository,
		provideHealthConfig,
		provideHealthStore,
		provideSnapshotCache,
		provideArchive,
		provideHealthContext,
		provideChatConfig,
		provideChatLog,
		provideTokenCounter,
		provideChatBackend,
		auth.NewService,
		healthdata.NewService,
		chat.NewService,
		wire.Bind(new(healthdata.Observer), new(*metrics.Recorder)),
		wire.Bind(new(chat.Observer), new(*metrics.Recorder)),
		provideHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil, nil
}
