package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"bot-alertas/internal/bot"
	"bot-alertas/internal/metrics"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	var debug bool

	root := &cobra.Command{
		Use:           "bot-alertas",
		Short:         "Bot do Telegram que monitora anúncios da Swappa",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context(), debug)
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "habilita logs de debug")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Inicia o bot e o agendador",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context(), debug)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Executa uma única rodada de verificação e sai",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), debug)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Mostra a versão",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bot-alertas %s\n", version)
		},
	})

	return root
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func runBot(parent context.Context, debug bool) error {
	ctx, stop := signalContext(parent)
	defer stop()

	a, err := newApp(ctx, debug)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              a.cfg.MetricsAddr,
			Handler:           metricsMux(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			a.logger.Info("metrics server listening", zap.String("addr", a.cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	api, err := bot.Init(a.cfg.TelegramBotToken, a.logger)
	if err != nil {
		return err
	}
	mon := a.newMonitor(api)

	monitorDone := make(chan error, 1)
	go func() { monitorDone <- mon.Start(ctx) }()

	bot.SetupCommands(ctx, api, bot.NewHandler(api, mon, a.logger))

	a.logger.Info("shutting down")
	return <-monitorDone
}

func runCheck(parent context.Context, debug bool) error {
	ctx, stop := signalContext(parent)
	defer stop()

	a, err := newApp(ctx, debug)
	if err != nil {
		return err
	}
	defer a.Close()

	api, err := bot.Init(a.cfg.TelegramBotToken, a.logger)
	if err != nil {
		return err
	}
	summary := a.newMonitor(api).Tick(ctx)
	if summary.CheckpointErrors > 0 {
		return fmt.Errorf("%d alerta(s) sem checkpoint nesta rodada", summary.CheckpointErrors)
	}
	return nil
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}
