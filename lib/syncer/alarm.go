package syncer

import (
	"context"
	"time"
)

type alarmClock struct {
	cancel      func()
	wakeupTimer *time.Ticker
	C           chan time.Time
}

func NewAlarmClock(wakeupInterval time.Duration) *alarmClock {
	return &alarmClock{
		wakeupTimer: time.NewTicker(wakeupInterval),
		C:           make(chan time.Time),
	}
}

func (a *alarmClock) Start(ctx context.Context) <-chan time.Time {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	go func() {
		defer close(a.C)

		// Immediate wakeup so a restart catches up without waiting a full
		// interval.
		select {
		case a.C <- time.Now():
		case <-ctx.Done():
			return
		}

		for {
			select {
			case t := <-a.wakeupTimer.C:
				select {
				case a.C <- t:
				case <-ctx.Done():
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	return a.C
}

func (a *alarmClock) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wakeupTimer.Stop()
}
