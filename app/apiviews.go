package app

import (
	"github.com/karwei/ntfywatch/lib/models"
	"github.com/karwei/ntfywatch/lib/wire"
)

type SubscriptionView struct {
	ID        uint   `json:"id"`
	BaseURL   string `json:"base_url"`
	Topic     string `json:"topic"`
	TopicHash string `json:"topic_hash"`
	IsDefault bool   `json:"is_default"`
}

func (view SubscriptionView) From(entity *models.Subscription) SubscriptionView {
	return SubscriptionView{
		ID:        entity.ID,
		BaseURL:   entity.BaseURL,
		Topic:     entity.Topic,
		TopicHash: entity.TopicHash,
		IsDefault: entity.IsDefault,
	}
}

type NotificationView struct {
	ID         string          `json:"id"`
	Time       int64           `json:"time"`
	Topic      string          `json:"topic"`
	Title      string          `json:"title,omitempty"`
	Message    string          `json:"message,omitempty"`
	Priority   int             `json:"priority"`
	Tags       []string        `json:"tags,omitempty"`
	Actions    []wire.Action   `json:"actions,omitempty"`
	Click      string          `json:"click,omitempty"`
	Attachment *AttachmentView `json:"attachment,omitempty"`
}

type AttachmentView struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Expires     int64  `json:"expires,omitempty"`
	URL         string `json:"url"`
	ContentPath string `json:"content_path,omitempty"`
	Downloaded  bool   `json:"downloaded"`
	Expired     bool   `json:"expired"`
}

func (view NotificationView) From(entity *models.Notification) NotificationView {
	v := NotificationView{
		ID:       entity.ID,
		Time:     entity.Time,
		Topic:    entity.Topic,
		Title:    entity.Title,
		Message:  entity.Message,
		Priority: entity.Priority,
		Tags:     wire.SplitTags(entity.Tags),
		Actions:  wire.ParseActions(entity.ActionsJSON),
		Click:    entity.ClickURL,
	}
	if entity.Attachment.Present() {
		v.Attachment = &AttachmentView{
			Name:        entity.Attachment.Name,
			Type:        entity.Attachment.Type,
			Size:        entity.Attachment.Size,
			Expires:     entity.Attachment.Expires,
			URL:         entity.Attachment.URL,
			ContentPath: entity.Attachment.ContentPath,
			Downloaded:  entity.Attachment.IsDownloaded(),
			Expired:     entity.Attachment.IsExpired(),
		}
	}
	return v
}
