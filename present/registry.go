// Package present fans stored notifications out to presentation channels;
// this is the boundary the platform "present notification" sink sits behind.
package present

import (
	"context"
	"net/http"

	"github.com/karwei/ntfywatch/config"
	"github.com/karwei/ntfywatch/lib/models"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Presenter interface {
	Present(ctx context.Context, sub *models.Subscription, notif *models.Notification) error
}

type Registry map[string]Presenter

func NewPresenterRegistry(lc fx.Lifecycle, log *zap.Logger, cfg *config.Config, transport http.RoundTripper) Registry {
	base := base{log, cfg, transport}

	registry := Registry{"log": &logPresenter{base}}
	if cfg.Mailgun.Domain != "" && cfg.Mailgun.Recipient != "" {
		registry["email"] = &mailgunPresenter{base}
	}
	return registry
}

type base struct {
	log       *zap.Logger
	cfg       *config.Config
	transport http.RoundTripper
}

type logPresenter struct {
	base
}

func (p *logPresenter) Present(ctx context.Context, sub *models.Subscription, notif *models.Notification) error {
	p.log.Sugar().Infow("Notification",
		"topic", sub.TopicURL(),
		"title", notif.Title,
		"message", notif.Message,
		"priority", notif.Priority,
		"tags", notif.Tags,
	)
	return nil
}
