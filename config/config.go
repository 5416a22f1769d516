package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Config struct {
	Env            string `env:"ENVIRONMENT"`
	ServerPort     int    `env:"SERVER_PORT" envDefault:"8080"`
	BasicAuthCreds string `env:"BASIC_AUTH_CREDS"`

	DefaultBaseURL string `env:"DEFAULT_BASE_URL" envDefault:"https://ntfy.sh"`
	DatabasePath   string `env:"DATABASE_PATH" envDefault:"ntfywatch.sqlite"`

	AttachmentDir      string        `env:"ATTACHMENT_DIR" envDefault:"attachments"`
	AttachmentMaxBytes int64         `env:"ATTACHMENT_MAX_BYTES" envDefault:"15728640"` // 15 MiB
	AttachmentTimeout  time.Duration `env:"ATTACHMENT_TIMEOUT" envDefault:"20s"`

	PollInterval    time.Duration `env:"POLL_INTERVAL" envDefault:"30m"`
	PollConcurrency int           `env:"POLL_CONCURRENCY" envDefault:"5"`
	PushBudget      time.Duration `env:"PUSH_BUDGET" envDefault:"25s"`
	StrictDecode    bool          `env:"STRICT_DECODE"`

	Mailgun struct {
		Domain      string `env:"MAILGUN_DOMAIN"`
		APIKey      string `env:"MAILGUN_API_KEY"`
		SenderFrom  string `env:"MAILGUN_SENDER_FROM"`
		Recipient   string `env:"MAILGUN_RECIPIENT"`
		TimeoutSecs int    `env:"MAILGUN_TIMEOUT_SECS" envDefault:"10"`
	}

	log   *zap.Logger
	creds map[string]string
}

func NewConfig(lc fx.Lifecycle, log *zap.Logger) (*Config, error) {
	cfg := &Config{log: log}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	creds, err := cfg.parseCreds()
	if err != nil {
		return nil, err
	}
	cfg.creds = creds

	return cfg, nil
}

func (cfg *Config) GetCreds() map[string]string {
	return cfg.creds
}

func (cfg *Config) parseCreds() (map[string]string, error) {
	if cfg.BasicAuthCreds == "" {
		return nil, nil
	}

	result := make(map[string]string)
	for _, cred := range strings.Split(cfg.BasicAuthCreds, ",") {
		userPass := strings.Split(cred, ":")
		if len(userPass) != 2 {
			return nil, fmt.Errorf("failed to parse '%s', each credential should be delimited by a colon -- user1:pass1,user2:pass2", cred)
		}

		user, pass := userPass[0], userPass[1]
		result[strings.Trim(user, " ")] = strings.Trim(pass, " ")
	}

	return result, nil
}
