package models

import (
	"time"
)

// Event kinds carried on the wire. Anything else is discarded on ingestion.
const (
	EventMessage     = "message"
	EventPollRequest = "poll_request"
	EventKeepalive   = "keepalive"
	EventOpen        = "open"
)

const DefaultPriority = 3

// Notification keys on the server-issued message id, which the server
// guarantees unique; inserts dedupe on it.
type Notification struct {
	ID             string `gorm:"primaryKey"`
	SubscriptionID uint   `gorm:"index"`
	Time           int64
	Event          string
	Topic          string
	Title          string
	Message        string
	Priority       int
	Tags           string // comma-joined
	ActionsJSON    string
	ClickURL       string
	PollID         string

	Attachment Attachment `gorm:"embedded;embeddedPrefix:attachment_"`

	CreatedAt time.Time
}

type Notifications []Notification

type Attachment struct {
	Name        string
	Type        string
	Size        int64
	Expires     int64
	URL         string
	ContentPath string
}

func (a Attachment) Present() bool {
	return a.URL != ""
}

func (a Attachment) IsDownloaded() bool {
	return a.ContentPath != ""
}

func (a Attachment) IsExpired() bool {
	return a.Expires > 0 && time.Now().Unix() >= a.Expires
}
