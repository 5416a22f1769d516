package wire

import (
	"strings"

	"github.com/karwei/ntfywatch/lib/models"
)

// ToNotification maps a decoded message onto its storage shape.
func (m *Message) ToNotification(subscriptionID uint) *models.Notification {
	notif := &models.Notification{
		ID:             m.ID,
		SubscriptionID: subscriptionID,
		Time:           m.Time,
		Event:          m.Event,
		Topic:          m.Topic,
		Title:          m.Title,
		Message:        m.Message,
		Priority:       m.Priority,
		Tags:           strings.Join(m.Tags, ","),
		ActionsJSON:    EncodeActions(m.Actions),
		ClickURL:       m.Click,
		PollID:         m.PollID,
	}
	if m.Attachment != nil {
		notif.Attachment = models.Attachment{
			Name:    m.Attachment.Name,
			Type:    m.Attachment.Type,
			Size:    m.Attachment.Size,
			Expires: m.Attachment.Expires,
			URL:     m.Attachment.URL,
		}
	}
	return notif
}
