package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"fin_chart_bot/internal/app"
	"fin_chart_bot/internal/bot"
	"fin_chart_bot/internal/chart"

	"github.com/rs/zerolog/log"
)

func main() {
	app.SetupEnvironment()
	log.Debug().Msg("Starting application")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := app.LoadConfig()
	clients := app.InitializeClients(ctx, cfg)

	renderer := chart.NewRenderer()
	controller := bot.NewController(clients.Table, renderer, clients.Store, clients.Telegram)
	refresher := bot.NewRefresher(clients.Table, renderer, clients.Store, clients.Telegram, clients.Notifier)
	loop := bot.NewLoop(controller, refresher, clients.Telegram, cfg.RefreshInterval)

	log.Info().Str("username", clients.Telegram.UserName()).Msg("Bot started")

	if err := loop.Run(ctx, clients.Telegram.Updates(ctx)); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("Event loop failed")
	}

	clients.Notifier.Wait()
	sent, failed := clients.Notifier.GetMetrics()
	log.Info().
		Int64("telegram_api_calls", clients.Telegram.GetAPICallCount()).
		Int64("alerts_sent", sent).
		Int64("alerts_failed", failed).
		Msg("Shutting down")
}
