// Command run serves the webhook and form endpoints locally and, with -poll,
// receives bot updates by long polling instead of a webhook.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fabianMendez/luxflix"
	"github.com/fabianMendez/luxflix/pkg/app"
	"github.com/fabianMendez/luxflix/pkg/config"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

func main() {
	poll := flag.Bool("poll", false, "receive updates by long polling")
	flag.Parse()

	settings, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := app.NewLogger(settings)
	if err != nil {
		log.Fatal(err)
	}

	var relay *luxflix.Relay
	onUpdate := func(ctx context.Context, _ *bot.Bot, update *models.Update) {
		err := relay.HandleUpdate(ctx, update)
		if err != nil {
			logger.Error().Err(err).Int64("update_id", update.ID).Msg("could not handle telegram update")
		}
	}

	a, err := app.New(settings, logger, bot.WithDefaultHandler(onUpdate))
	if err != nil {
		log.Fatal(err)
	}
	relay = a.Relay

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *poll {
		err = a.Telegram.DeleteWebhook(ctx, false)
		if err != nil {
			log.Fatal(err)
		}
		logger.Info().Msg("polling for updates")
		go a.Telegram.Bot().Start(ctx)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", settings.Port),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", server.Addr).Msg("listening")
	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
