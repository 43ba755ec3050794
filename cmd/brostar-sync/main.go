package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/nens/brostar-sync/cmd/brostar-sync/cmds"
	"github.com/nens/brostar-sync/internal/config"
	"github.com/nens/brostar-sync/internal/logger"
	otelbrostarsync "github.com/nens/brostar-sync/internal/otel"
)

func runApp(ctx context.Context) int {
	conf, err := config.GetConfig()
	if err != nil {
		logger.Logger.Error("error calling GetConfig", "error", err)
		return 1
	}

	logger.LogLevel.Set(slog.Level(conf.Logging.App.Level))

	shutdown, err := otelbrostarsync.SetupOTelSDK(ctx, conf.Logging.UseOTLP)
	if err != nil {
		logger.Logger.Warn("failed to setup otel sdk")
	}
	defer func() {
		fail := shutdown(ctx)
		if fail != nil {
			logger.Logger.Warn("no clean shutdown for otel", "error", fail)
		}
	}()

	if err := cmds.Execute(ctx); err != nil {
		logger.Logger.Error("error executing subcommands", "error", err)
		return 1
	}
	return 0
}

func main() {
	logger.InitSlog()

	ctx := context.Background()

	os.Exit(runApp(ctx))
}
