package models

import (
	"gorm.io/gorm"
)

type Subscription struct {
	gorm.Model
	BaseURL   string `gorm:"index:idx_base_topic,unique"`
	Topic     string `gorm:"index:idx_base_topic,unique"`
	TopicHash string `gorm:"index"`
	IsDefault bool

	Notifications []Notification
}

type Subscriptions []Subscription

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	s.TopicHash = TopicHash(s.BaseURL, s.Topic)
	return nil
}

// TopicURL is the canonical {base}/{topic} address of the subscription.
func (s *Subscription) TopicURL() string {
	return s.BaseURL + "/" + s.Topic
}
