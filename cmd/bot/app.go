package main

import (
	"context"
	"fmt"

	"bot-alertas/config"
	"bot-alertas/internal/bot"
	"bot-alertas/internal/claim"
	"bot-alertas/internal/database"
	"bot-alertas/internal/logger"
	"bot-alertas/internal/monitor"
	"bot-alertas/internal/render"
	"bot-alertas/internal/scraper"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// app reúne as dependências montadas a partir da configuração
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *database.DB
	rdb      *redis.Client
	renderer *render.Renderer
	registry *scraper.Registry
	claimer  claim.Claimer
}

func newApp(ctx context.Context, debug bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("erro ao carregar configurações: %w", err)
	}

	log, err := logger.New(cfg.LogLevel, debug)
	if err != nil {
		return nil, err
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		_ = log.Sync()
		return nil, fmt.Errorf("erro ao inicializar banco de dados: %w", err)
	}
	log.Info("database ready", zap.String("driver", database.DriverFor(cfg.DatabaseURL)))

	a := &app{
		cfg:    cfg,
		logger: log,
		db:     db,
		renderer: render.New(render.Options{
			BinPath:     cfg.Browser.BinPath,
			Headless:    cfg.Browser.Headless,
			NoSandbox:   cfg.Browser.NoSandbox,
			Stealth:     cfg.Browser.Stealth,
			WaitTimeout: cfg.Browser.WaitTimeout,
		}, log.Named("render")),
		registry: scraper.NewRegistry(),
		claimer:  claim.NewMemoryClaimer(),
	}

	if cfg.Redis.Addr != "" {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("erro ao conectar ao redis %s: %w", cfg.Redis.Addr, err)
		}
		a.claimer = claim.NewRedisClaimer(a.rdb)
		log.Info("redis claims enabled", zap.String("addr", cfg.Redis.Addr))
	}

	return a, nil
}

func (a *app) newMonitor(sender bot.Sender) *monitor.Monitor {
	return monitor.New(
		a.db,
		a.renderer,
		bot.NewTelegramNotifier(sender, a.logger),
		a.registry,
		a.logger,
		monitor.WithClaimer(a.claimer),
		monitor.WithSchedule(a.cfg.TickSchedule),
		monitor.WithWatchTimeout(a.cfg.WatchTimeout),
	)
}

func (a *app) Close() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Warn("redis close failed", zap.Error(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("database close failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}
