package syncer

import (
	"context"
	"errors"

	"github.com/karwei/ntfywatch/lib/models"
	"github.com/karwei/ntfywatch/lib/wire"
	"gorm.io/gorm"
)

// HandlePushEvent routes one event delivered by the push relay. It runs under
// the caller's wall-clock budget, returns exactly once on every path, and
// never surfaces ingestion failures as panics: the relay's own redelivery is
// the retry mechanism.
func (s *Syncer) HandlePushEvent(ctx context.Context, payload map[string]string) error {
	switch payload["event"] {
	case models.EventPollRequest:
		return s.handlePollRequest(ctx, payload)
	case models.EventMessage:
		return s.handleDirectMessage(ctx, payload)
	default:
		s.log.Sugar().Debugf("Ignoring push event %q", payload["event"])
		return nil
	}
}

// handlePollRequest resolves a content-free poll signal: match the opaque
// topic discriminator against known subscriptions, then fetch the referenced
// message by id. Failures are abandoned with a warning, no retry; the server
// redelivers through its own path.
func (s *Syncer) handlePollRequest(ctx context.Context, payload map[string]string) error {
	pollID := payload["poll_id"]
	if pollID == "" {
		s.log.Sugar().Warnw("Poll request without poll_id, dropping", "topic", payload["topic"])
		return nil
	}

	sub, err := s.store.FindSubscriptionByTopic(ctx, payload["topic"])
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Sugar().Warnw("Poll request for unknown subscription, dropping", "topic", payload["topic"])
		return nil
	} else if err != nil {
		return err
	}

	creds, err := s.store.FindUser(ctx, sub.BaseURL)
	if err != nil {
		return err
	}

	msg, err := s.api.FetchByID(ctx, creds, sub.BaseURL, sub.Topic, pollID)
	if err != nil {
		s.log.Sugar().Warnw("Failed to resolve poll request, dropping", "poll_id", pollID, "err", err)
		return nil
	}

	_, err = s.ingest(ctx, sub, msg)
	return err
}

func (s *Syncer) handleDirectMessage(ctx context.Context, payload map[string]string) error {
	msg := wire.FromTransportPayload(payload)
	if msg == nil {
		s.log.Sugar().Debugw("Undecodable push payload, dropping", "id", payload["id"])
		return nil
	}

	sub, err := s.store.FindSubscriptionByTopic(ctx, msg.Topic)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Sugar().Warnw("Message for unsubscribed topic, dropping", "topic", msg.Topic, "id", msg.ID)
		return nil
	} else if err != nil {
		return err
	}

	_, err = s.ingest(ctx, sub, msg)
	return err
}

// ingest commits one message: dedupe-safe insert, then out-of-band attachment
// resolution, then presenter fan-out. Attachment failure never blocks the
// notification itself.
func (s *Syncer) ingest(ctx context.Context, sub *models.Subscription, msg *wire.Message) (bool, error) {
	if msg.Event != models.EventMessage {
		return false, nil
	}

	inserted, err := s.store.InsertNotification(ctx, msg, sub)
	if err != nil {
		return false, err
	}
	if !inserted {
		return false, nil
	}

	notif := s.resolveAttachment(ctx, sub, msg)
	s.presentNotification(ctx, sub, notif)
	return true, nil
}

func (s *Syncer) resolveAttachment(ctx context.Context, sub *models.Subscription, msg *wire.Message) *models.Notification {
	notif := msg.ToNotification(sub.ID)
	att := notif.Attachment
	if !att.Present() || att.IsExpired() {
		return notif
	}

	dlCtx, cancel := s.downloadCtx(ctx, sub.ID)
	defer cancel()

	path, err := s.fetcher.Download(dlCtx, att.URL, msg.ID, s.cfg.AttachmentMaxBytes, s.cfg.AttachmentTimeout)
	if err != nil {
		s.log.Sugar().Warnw("Attachment download failed", "id", msg.ID, "url", att.URL, "err", err)
		return notif
	}

	if err := s.store.AttachContent(ctx, msg.ID, path); err != nil {
		s.log.Sugar().Warnw("Failed to record attachment path", "id", msg.ID, "err", err)
		return notif
	}
	notif.Attachment.ContentPath = path
	return notif
}

func (s *Syncer) presentNotification(ctx context.Context, sub *models.Subscription, notif *models.Notification) {
	for platform, presenter := range s.presenters {
		if err := presenter.Present(ctx, sub, notif); err != nil {
			s.log.Sugar().Warnw("Presenter failed", "platform", platform, "id", notif.ID, "err", err)
		}
	}
}
