// Package app builds the relay and its collaborators from Settings. Every
// entrypoint calls New once at start-up.
package app

import (
	"fmt"
	"os"

	"github.com/fabianMendez/luxflix"
	"github.com/fabianMendez/luxflix/pkg/api"
	"github.com/fabianMendez/luxflix/pkg/config"
	"github.com/fabianMendez/luxflix/pkg/email"
	"github.com/fabianMendez/luxflix/pkg/storage"
	"github.com/fabianMendez/luxflix/pkg/telegram"
	"github.com/fabianMendez/luxflix/pkg/users"
	"github.com/go-telegram/bot"
	"github.com/rs/zerolog"
)

type App struct {
	Settings config.Settings
	Log      zerolog.Logger
	Telegram *telegram.Client
	Relay    *luxflix.Relay
	Handler  *api.Handler
}

func NewLogger(settings config.Settings) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(settings.LogLevel)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("could not parse log level: %w", err)
	}

	return zerolog.New(os.Stdout).Level(level).With().
		Timestamp().
		Str("app", settings.ServiceName).
		Logger(), nil
}

func New(settings config.Settings, logger zerolog.Logger, botOpts ...bot.Option) (*App, error) {
	httpClient := luxflix.NewHTTPClient(settings.HTTPTimeout)

	tg, err := telegram.New(settings.BotToken, httpClient, botOpts...)
	if err != nil {
		return nil, err
	}

	var opts []luxflix.Option
	if settings.Github.Enabled() {
		opts = append(opts, luxflix.WithUserStore(users.NewStore(storage.GithubStorage{
			Token:      settings.Github.Token,
			Owner:      settings.Github.Owner,
			Repo:       settings.Github.Repo,
			APIURL:     settings.Github.APIURL,
			HTTPClient: httpClient,
		})))
	} else {
		logger.Warn().Msg("GITHUB_TOKEN/OWNER/REPO not set, approve and reject will fail")
	}

	if settings.Mailgun.Enabled() && settings.AdminEmail != "" {
		opts = append(opts, luxflix.WithMailer(email.New(settings.Mailgun, settings.AdminEmail)))
	}

	relay := luxflix.NewRelay(settings, tg, logger, opts...)

	return &App{
		Settings: settings,
		Log:      logger,
		Telegram: tg,
		Relay:    relay,
		Handler:  api.NewHandler(settings, relay, logger),
	}, nil
}

// Load reads the settings and builds the App, the common start of every
// command.
func Load() (*App, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := NewLogger(settings)
	if err != nil {
		return nil, err
	}

	return New(settings, logger)
}
