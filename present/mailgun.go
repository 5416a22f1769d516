package present

import (
	"context"
	"time"

	"github.com/karwei/ntfywatch/lib/models"
	"github.com/mailgun/mailgun-go/v4"
)

type mailgunPresenter struct {
	base
}

func (p *mailgunPresenter) Present(ctx context.Context, sub *models.Subscription, notif *models.Notification) error {
	mg := mailgun.NewMailgun(p.cfg.Mailgun.Domain, p.cfg.Mailgun.APIKey)
	mg.Client().Transport = p.transport

	format := notificationEmailFormat{sub, notif}

	// Create message with empty body first.
	message := mg.NewMessage(p.cfg.Mailgun.SenderFrom, format.Subject(), "", p.cfg.Mailgun.Recipient)
	// SetHtml with the payload proper. This will assign the MIME type properly.
	message.SetHtml(format.Body())

	timeout := time.Duration(p.cfg.Mailgun.TimeoutSecs) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, id, err := mg.Send(ctx, message)
	if err != nil {
		p.log.Sugar().Infow("Failed to forward notification by email", "err", err)
		return err
	}
	p.log.Sugar().Infow("Forwarded notification by email", "message_id", id)
	return nil
}
