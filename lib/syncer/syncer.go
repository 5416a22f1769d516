// Package syncer coordinates subscription lifecycle and notification
// ingestion: it classifies incoming push events, resolves poll requests,
// drives cursor-based polling and commits results through the store.
package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/karwei/ntfywatch/config"
	"github.com/karwei/ntfywatch/lib/api"
	"github.com/karwei/ntfywatch/lib/attach"
	"github.com/karwei/ntfywatch/lib/models"
	"github.com/karwei/ntfywatch/lib/store"
	"github.com/karwei/ntfywatch/present"
	"github.com/karwei/ntfywatch/relay"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const pollCycleBudget = 2 * time.Minute

var mu sync.Mutex

func NewSyncer(
	lc fx.Lifecycle,
	cfg *config.Config,
	log *zap.Logger,
	store *store.Store,
	client *api.Client,
	fetcher *attach.Fetcher,
	pushRelay relay.Relay,
	presenters present.Registry,
) *Syncer {
	s := &Syncer{
		cfg:        cfg,
		log:        log,
		store:      store,
		api:        client,
		fetcher:    fetcher,
		relay:      pushRelay,
		presenters: presenters,
		mu:         &mu,
		alarmClock: NewAlarmClock(cfg.PollInterval),
		scopes:     make(map[uint]*downloadScope),
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			s.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Sugar().Info("Trying to stop syncer")
			s.Stop()
			return nil
		},
	})

	return s
}

type Syncer struct {
	cfg        *config.Config
	log        *zap.Logger
	store      *store.Store
	api        *api.Client
	fetcher    *attach.Fetcher
	relay      relay.Relay
	presenters present.Registry

	mu         *sync.Mutex
	alarmClock *alarmClock

	scopeMu sync.Mutex
	scopes  map[uint]*downloadScope
}

// Start runs the wakeup loop on a context the syncer owns. The startup hook's
// context is cancelled as soon as startup returns and must not take the clock
// with it; Stop is the only thing that ends the loop.
func (s *Syncer) Start() {
	c := s.alarmClock.Start(context.Background())

	go func() {
		for range c {
			s.handleWakeup()
		}
	}()
}

func (s *Syncer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alarmClock.Stop()
	s.log.Sugar().Info("Syncer stopped")
}

func (s *Syncer) handleWakeup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), pollCycleBudget)
	defer cancel()

	s.PollAll(ctx)
}

// Subscribe validates the topic, creates the subscription and registers its
// topic hash with the push relay. Errors surface to the caller.
func (s *Syncer) Subscribe(ctx context.Context, baseURL, topic string) (*models.Subscription, error) {
	if baseURL == "" {
		baseURL = s.defaultBaseURL(ctx)
	}

	sub, err := s.store.CreateSubscription(ctx, baseURL, topic)
	if err != nil {
		return nil, err
	}

	if err := s.relay.Register(ctx, sub.TopicHash); err != nil {
		return nil, err
	}

	s.log.Sugar().Infof("Subscribed to %s (id:%v)", sub.TopicURL(), sub.ID)
	return sub, nil
}

// Unsubscribe deregisters from the relay, cancels in-flight downloads for the
// subscription and deletes it with all its notifications.
func (s *Syncer) Unsubscribe(ctx context.Context, sub *models.Subscription) error {
	if err := s.relay.Deregister(ctx, sub.TopicHash); err != nil {
		s.log.Sugar().Warnw("Failed to deregister from push relay", "topic_hash", sub.TopicHash, "err", err)
	}

	s.cancelScope(sub.ID)

	if err := s.store.DeleteSubscription(ctx, sub); err != nil {
		return err
	}
	s.log.Sugar().Infof("Unsubscribed from %s (id:%v)", sub.TopicURL(), sub.ID)
	return nil
}

// Publish posts a message to a topic with the stored credential for that
// server, surfacing transport failures to the caller.
func (s *Syncer) Publish(ctx context.Context, baseURL, topic, body, title string, priority int, tags []string) error {
	if baseURL == "" {
		baseURL = s.defaultBaseURL(ctx)
	}
	creds, err := s.store.FindUser(ctx, baseURL)
	if err != nil {
		return err
	}
	return s.api.Publish(ctx, creds, baseURL, topic, body, title, priority, tags)
}

func (s *Syncer) defaultBaseURL(ctx context.Context) string {
	if override, err := s.store.GetPreference(ctx, models.PrefDefaultBaseURL); err == nil && override != "" {
		return override
	}
	return s.cfg.DefaultBaseURL
}

// downloadScope ties attachment download lifetime to the subscription, so
// unsubscribing mid-download aborts the transfer.
type downloadScope struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (s *Syncer) scopeCtx(subID uint) context.Context {
	s.scopeMu.Lock()
	defer s.scopeMu.Unlock()

	scope, ok := s.scopes[subID]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		scope = &downloadScope{ctx, cancel}
		s.scopes[subID] = scope
	}
	return scope.ctx
}

func (s *Syncer) cancelScope(subID uint) {
	s.scopeMu.Lock()
	defer s.scopeMu.Unlock()

	if scope, ok := s.scopes[subID]; ok {
		scope.cancel()
		delete(s.scopes, subID)
	}
}

func (s *Syncer) downloadCtx(parent context.Context, subID uint) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(s.scopeCtx(subID), cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
