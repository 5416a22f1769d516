package syncer

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/karwei/ntfywatch/lib/api"
	"github.com/karwei/ntfywatch/lib/models"
	"github.com/karwei/ntfywatch/lib/wire"
	"golang.org/x/sync/errgroup"
)

// Poll fetches everything published since the subscription's cursor and
// commits it. Inserts are idempotent by id, so re-running after a mid-stream
// failure is safe: the cursor only advances past what was stored.
func (s *Syncer) Poll(ctx context.Context, sub *models.Subscription) (inserted int, err error) {
	cursor, err := s.store.CursorFor(ctx, sub)
	if err != nil {
		return 0, err
	}
	since := api.SinceAll
	if cursor > 0 {
		since = strconv.FormatInt(cursor, 10)
	}

	creds, err := s.store.FindUser(ctx, sub.BaseURL)
	if err != nil {
		return 0, err
	}

	err = s.api.Poll(ctx, creds, sub.BaseURL, sub.Topic, since, func(msg *wire.Message) error {
		ok, err := s.ingest(ctx, sub, msg)
		if ok {
			inserted++
		}
		return err
	})
	return inserted, err
}

// PollAll polls every subscription with bounded concurrency. A failure on one
// subscription aborts only that subscription's stream; the rest of the batch
// proceeds.
func (s *Syncer) PollAll(ctx context.Context) {
	subs, err := s.store.ListSubscriptions(ctx)
	if err != nil {
		s.log.Sugar().Errorw("Failed to list subscriptions for poll", "err", err)
		return
	}
	if len(subs) == 0 {
		return
	}

	start := time.Now().UTC()
	var total, errored atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.PollConcurrency)
	for i := range subs {
		sub := subs[i]
		g.Go(func() error {
			n, err := s.Poll(ctx, &sub)
			total.Add(int64(n))
			if err != nil {
				errored.Add(1)
				s.log.Sugar().Warnw("Poll failed", "topic", sub.TopicURL(), "err", err)
			}
			return nil
		})
	}
	g.Wait()

	elapsed := time.Now().UTC().Sub(start)
	s.log.Sugar().Infow(
		"Poll cycle completed",
		"subscriptions", len(subs),
		"inserted", total.Load(),
		"errored", errored.Load(),
		"elapsed_msecs", int(elapsed.Milliseconds()),
	)
}
