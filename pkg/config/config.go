// Package config loads the relay settings from the environment, reading an
// optional .env file first.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
)

// Settings contains the application config
type Settings struct {
	ServiceName       string        `env:"SERVICE_NAME" envDefault:"luxflix-relay"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
	Port              int           `env:"PORT" envDefault:"9043"`
	BotToken          string        `env:"BOT_TOKEN,required"`
	AdminChatID       int64         `env:"ADMIN_CHAT_ID,required"`
	MaxAttachmentSize string        `env:"MAX_ATTACHMENT_SIZE" envDefault:"10MB"`
	AllowedOrigin     string        `env:"ALLOWED_ORIGIN" envDefault:"*"`
	HTTPTimeout       time.Duration `env:"HTTP_TIMEOUT" envDefault:"15s"`

	Github  GithubSettings  `envPrefix:"GITHUB_"`
	Mailgun MailgunSettings `envPrefix:"MG_"`
	// AdminEmail receives a copy of every form submission when mailgun is
	// configured.
	AdminEmail string `env:"ADMIN_EMAIL"`
}

type GithubSettings struct {
	Token  string `env:"TOKEN"`
	Owner  string `env:"OWNER"`
	Repo   string `env:"REPO"`
	APIURL string `env:"API_URL" envDefault:"https://api.github.com"`
}

func (g GithubSettings) Enabled() bool {
	return g.Token != "" && g.Owner != "" && g.Repo != ""
}

type MailgunSettings struct {
	Domain  string `env:"DOMAIN"`
	APIKey  string `env:"API_KEY"`
	From    string `env:"FROM"`
	APIBase string `env:"API_BASE"`
}

func (m MailgunSettings) Enabled() bool {
	return m.Domain != "" && m.APIKey != ""
}

// MaxAttachmentBytes is MAX_ATTACHMENT_SIZE in bytes. Load and Parse reject
// an unparsable size, so 0 is only seen on hand-built Settings and means the
// form default applies.
func (s Settings) MaxAttachmentBytes() int64 {
	n, err := humanize.ParseBytes(s.MaxAttachmentSize)
	if err != nil {
		return 0
	}
	return int64(n)
}

// Load reads files (".env" when none is given) into the process environment
// without overriding variables already set, then parses Settings. Missing
// files are ignored.
func Load(files ...string) (Settings, error) {
	err := godotenv.Load(files...)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("could not load env file: %w", err)
	}

	var s Settings
	err = env.Parse(&s)
	if err != nil {
		return Settings{}, fmt.Errorf("could not parse settings: %w", err)
	}

	return s, s.validate()
}

// Parse builds Settings from the given variables only.
func Parse(environ map[string]string) (Settings, error) {
	var s Settings
	err := env.ParseWithOptions(&s, env.Options{Environment: environ})
	if err != nil {
		return Settings{}, fmt.Errorf("could not parse settings: %w", err)
	}

	return s, s.validate()
}

func (s Settings) validate() error {
	n, err := humanize.ParseBytes(s.MaxAttachmentSize)
	if err != nil {
		return fmt.Errorf("invalid MAX_ATTACHMENT_SIZE %q: %w", s.MaxAttachmentSize, err)
	}
	if n == 0 {
		return fmt.Errorf("invalid MAX_ATTACHMENT_SIZE %q: must be positive", s.MaxAttachmentSize)
	}

	return nil
}
