// Package store is the persistence-facing repository. Two independent
// processes (the foreground app and the push ingestion handler) write the
// same database with no shared memory, so every mutation runs in its own
// transaction and no entity cache is kept here: after a failed write, callers
// re-read the authoritative store.
package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/karwei/ntfywatch/lib/models"
	"github.com/karwei/ntfywatch/lib/wire"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInvalidTopic     = errors.New("topic must be 1-64 characters from [-_A-Za-z0-9]")
	ErrInvalidServerURL = errors.New("server address must be an absolute http(s) URL")
	ErrNotFound         = gorm.ErrRecordNotFound
)

type Store struct {
	log *zap.Logger
	db  *gorm.DB
}

func NewStore(lc fx.Lifecycle, log *zap.Logger, db *gorm.DB) *Store {
	return &Store{log: log, db: db}
}

// CreateSubscription inserts the (base, topic) pair, which carries a unique
// index; re-subscribing returns the existing row unchanged.
func (s *Store) CreateSubscription(ctx context.Context, baseURL, topic string) (*models.Subscription, error) {
	if !models.IsTopicValid(topic) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	if u, err := url.Parse(baseURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidServerURL, baseURL)
	}
	baseURL = strings.TrimRight(baseURL, "/")

	sub := &models.Subscription{BaseURL: baseURL, Topic: topic}
	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(sub)
	if err := tx.Error; err != nil {
		return nil, err
	}
	if tx.RowsAffected == 0 {
		return s.FindSubscription(ctx, baseURL, topic)
	}
	return sub, nil
}

func (s *Store) FindSubscription(ctx context.Context, baseURL, topic string) (*models.Subscription, error) {
	sub := &models.Subscription{}
	tx := s.db.WithContext(ctx).
		Where("base_url = ?", baseURL).
		Where("topic = ?", topic).
		First(sub)
	if err := tx.Error; err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Store) FindSubscriptionByHash(ctx context.Context, topicHash string) (*models.Subscription, error) {
	sub := &models.Subscription{}
	tx := s.db.WithContext(ctx).Where("topic_hash = ?", topicHash).First(sub)
	if err := tx.Error; err != nil {
		return nil, err
	}
	return sub, nil
}

// FindSubscriptionByTopic matches the topic hash first, then falls back to
// the plaintext topic; the push relay may address a subscription by either.
// The plaintext form carries no server address, so the same topic subscribed
// on two servers is ambiguous there: the oldest subscription wins.
func (s *Store) FindSubscriptionByTopic(ctx context.Context, topicOrHash string) (*models.Subscription, error) {
	sub, err := s.FindSubscriptionByHash(ctx, topicOrHash)
	if err == nil {
		return sub, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	sub = &models.Subscription{}
	tx := s.db.WithContext(ctx).
		Where("topic = ?", topicOrHash).
		Order("id").
		First(sub)
	if err := tx.Error; err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Store) GetSubscription(ctx context.Context, id uint) (*models.Subscription, error) {
	sub := &models.Subscription{}
	tx := s.db.WithContext(ctx).First(sub, id)
	if err := tx.Error; err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Store) ListSubscriptions(ctx context.Context) (models.Subscriptions, error) {
	var subs models.Subscriptions
	tx := s.db.WithContext(ctx).Find(&subs)
	return subs, tx.Error
}

// DeleteSubscription removes the subscription and every notification it owns
// in one transaction. Hard delete: a soft-deleted row would still hold the
// unique (base_url, topic) slot against a later re-subscribe.
func (s *Store) DeleteSubscription(ctx context.Context, sub *models.Subscription) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("subscription_id = ?", sub.ID).Delete(&models.Notification{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(sub).Error
	})
}

// InsertNotification is idempotent on the message id: a duplicate insert is a
// no-op, not an error. Reports whether a row was actually inserted.
func (s *Store) InsertNotification(ctx context.Context, msg *wire.Message, sub *models.Subscription) (inserted bool, err error) {
	notif := msg.ToNotification(sub.ID)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(notif)
		inserted = res.RowsAffected > 0
		return res.Error
	})
	return inserted, err
}

// AttachContent records the downloaded local path on an already stored
// notification; the attachment resolves out-of-band after persistence.
func (s *Store) AttachContent(ctx context.Context, notificationID, contentPath string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Model(&models.Notification{}).
			Where("id = ?", notificationID).
			Update("attachment_content_path", contentPath).Error
	})
}

// CursorFor is the timestamp of the most recently stored notification for the
// subscription, or 0 when none exists.
func (s *Store) CursorFor(ctx context.Context, sub *models.Subscription) (int64, error) {
	notif := models.Notification{}
	tx := s.db.WithContext(ctx).
		Where("subscription_id = ?", sub.ID).
		Order("time desc").
		First(&notif)
	if err := tx.Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return notif.Time, nil
}

// ListNotifications orders by timestamp at read time; insertion order says
// nothing about message order once push and poll delivery interleave.
func (s *Store) ListNotifications(ctx context.Context, sub *models.Subscription) (models.Notifications, error) {
	var notifs models.Notifications
	tx := s.db.WithContext(ctx).
		Where("subscription_id = ?", sub.ID).
		Order("time desc").
		Find(&notifs)
	return notifs, tx.Error
}

func (s *Store) DeleteNotifications(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Where("id IN ?", ids).Delete(&models.Notification{}).Error
	})
}

func (s *Store) DeleteAllNotifications(ctx context.Context, sub *models.Subscription) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Where("subscription_id = ?", sub.ID).Delete(&models.Notification{}).Error
	})
}

// UpsertUser stores the credential for a server. A blank password on an
// existing credential means "unchanged".
func (s *Store) UpsertUser(ctx context.Context, baseURL, username, password string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing := models.User{}
		err := tx.Where("base_url = ?", baseURL).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&models.User{BaseURL: baseURL, Username: username, Password: password}).Error
		} else if err != nil {
			return err
		}

		existing.Username = username
		if password != "" {
			existing.Password = password
		}
		return tx.Save(&existing).Error
	})
}

func (s *Store) FindUser(ctx context.Context, baseURL string) (*models.User, error) {
	user := &models.User{}
	tx := s.db.WithContext(ctx).Where("base_url = ?", baseURL).First(user)
	if err := tx.Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Store) DeleteUser(ctx context.Context, baseURL string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Unscoped().Where("base_url = ?", baseURL).Delete(&models.User{}).Error
	})
}

func (s *Store) SetPreference(ctx context.Context, key, value string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).Create(&models.Preference{Key: key, Value: value}).Error
	})
}

func (s *Store) GetPreference(ctx context.Context, key string) (string, error) {
	pref := models.Preference{}
	tx := s.db.WithContext(ctx).Where("key = ?", key).First(&pref)
	if err := tx.Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	} else if err != nil {
		return "", err
	}
	return pref.Value, nil
}
