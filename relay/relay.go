// Package relay is the boundary to the external push-registration service.
// Registration is by topic hash: the relay never sees a plaintext topic.
package relay

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Relay interface {
	Register(ctx context.Context, topicHash string) error
	Deregister(ctx context.Context, topicHash string) error
}

// logRelay stands in when no real push transport is wired; delivery then
// relies on the periodic poll path alone.
type logRelay struct {
	log *zap.Logger
}

func NewLogRelay(lc fx.Lifecycle, log *zap.Logger) Relay {
	return &logRelay{log}
}

func (r *logRelay) Register(ctx context.Context, topicHash string) error {
	r.log.Sugar().Infow("Registered with push relay", "topic_hash", topicHash)
	return nil
}

func (r *logRelay) Deregister(ctx context.Context, topicHash string) error {
	r.log.Sugar().Infow("Deregistered from push relay", "topic_hash", topicHash)
	return nil
}
