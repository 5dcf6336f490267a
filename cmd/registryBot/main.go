package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"student_registry/internal/app"
	"student_registry/internal/config"
	"student_registry/internal/httpapi"
	"student_registry/internal/metrics"
	"student_registry/internal/pipeline"
	"student_registry/internal/service/sheet"
	"student_registry/internal/service/tg"
	"student_registry/internal/utils"
	pkg_config "student_registry/pkg/config"
	"student_registry/pkg/masker"
	"student_registry/pkg/tgbotapisfm"
	"student_registry/pkg/zaplogger"

	"go.uber.org/zap"
)

func main() {
	logger, err := zaplogger.New()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.Config{}
	utils.HandleFatalError(pkg_config.LoadWithOptionalEnv(".env", logger, &cfg), logger, "error loading configs")
	utils.HandleFatalError(masker.LogConfigs(logger, &cfg), logger, "error logging configs")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := app.OpenStore(ctx, cfg, logger)
	utils.HandleFatalError(err, logger, "error opening store", zap.String("backend", cfg.StoreConfig.Backend))
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("error closing store", zap.Error(err))
		}
	}()

	loc := app.LoadLocation(cfg.RegistryConfig.Timezone, logger)
	reg := app.NewRegistry(cfg, store.KV, loc, logger)
	m := metrics.New()

	// Зеркало в Google Sheets
	if cfg.GoogleSheetConfig.Enabled {
		sheetService, err := sheet.NewSheetService(
			ctx,
			cfg.GoogleSheetConfig.CredentialsBase64,
			cfg.GoogleSheetConfig.SheetID,
			cfg.GoogleSheetConfig.TabID,
			cfg.GoogleSheetConfig.PauseMs,
			sheet.CreateColumnMapFromOrder(cfg.GoogleSheetConfig.ColumnOrder),
			loc,
		)
		utils.HandleFatalError(err, logger, "error creating sheet service")

		syncer := sheet.NewSyncer(sheetService, reg, logger,
			time.Duration(cfg.GoogleSheetConfig.SyncIntervalMin)*time.Minute)
		defer syncer.Stop()
		reg.Subscribe(func(pipeline.Snapshot) { syncer.ForceUpdate() })
		syncer.ForceUpdate()
	}

	botErr := make(chan error, 1)
	if cfg.TelegramConfig.Enabled {
		admins, err := tg.ParseAdmins(cfg.TelegramConfig.Admins)
		utils.HandleFatalError(err, logger, "error parsing admins")

		tgHandler := tg.NewTGHandler(reg, logger.Named("tg"), tg.Options{
			Admins:     admins,
			ExportBase: cfg.RegistryConfig.ExportBaseName,
			Metrics:    m,
		})
		bot, err := tgbotapisfm.NewBot(tgbotapisfm.Config{
			Token:           cfg.TelegramConfig.BotToken,
			Expiration:      24 * time.Hour,
			CleanupInterval: 1 * time.Hour,
			States:          tgHandler.StatesMap(),
		}, []int64{}, logger.Named("bot"))
		utils.HandleFatalError(err, logger, "error creating bot")

		errChan := bot.Start(0, 30)
		defer bot.Stop()
		go func() {
			if err := <-errChan; err != nil {
				botErr <- err
			}
		}()
	}

	httpErr := make(chan error, 1)
	var server *httpapi.Server
	if cfg.HTTPConfig.Enabled {
		handler := httpapi.NewHandler(reg, m, logger.Named("http"), cfg.RegistryConfig.ExportBaseName)
		server = httpapi.NewServer(cfg.HTTPConfig.Addr, handler.Router(), logger.Named("http"))
		go func() {
			if err := server.Start(); err != nil {
				httpErr <- err
			}
		}()
	}

	if !cfg.TelegramConfig.Enabled && !cfg.HTTPConfig.Enabled {
		logger.Fatal("nothing to run: both TG_ENABLED and HTTP_ENABLED are false")
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-botErr:
		logger.Error("bot stopped", zap.Error(err))
	case err := <-httpErr:
		logger.Error("api server stopped", zap.Error(err))
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("error stopping api server", zap.Error(err))
		}
	}
}
