package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"cashdesk-bot/internal/metrics"
)

// Tally counts the outcome of a broadcast per recipient.
type Tally struct {
	Sent   int
	Failed int
	Total  int
}

type Broadcaster struct {
	messenger Messenger
	delay     time.Duration
	log       *zap.Logger
}

func NewBroadcaster(messenger Messenger, delay time.Duration, log *zap.Logger) *Broadcaster {
	return &Broadcaster{messenger: messenger, delay: delay, log: log.Named("broadcast")}
}

// Broadcast sends text to every recipient one by one, pausing between
// messages to stay under the transport rate limit. Recipients not reached
// before ctx is done are counted as failed.
func (b *Broadcaster) Broadcast(ctx context.Context, recipients []int64, text string) Tally {
	tally := Tally{Total: len(recipients)}

	for i, id := range recipients {
		if i > 0 && b.delay > 0 {
			select {
			case <-ctx.Done():
				tally.Failed += len(recipients) - i
				b.log.Warn("broadcast interrupted", zap.Int("remaining", len(recipients)-i))
				return tally
			case <-time.After(b.delay):
			}
		}

		err := b.messenger.SendText(ctx, id, text, nil)
		metrics.Notifications.WithLabelValues("broadcast", metrics.Outcome(err)).Inc()
		if err != nil {
			tally.Failed++
			b.log.Debug("broadcast recipient failed", zap.Int64("chat_id", id), zap.Error(err))
			continue
		}
		tally.Sent++
	}

	b.log.Info("broadcast finished",
		zap.Int("sent", tally.Sent),
		zap.Int("failed", tally.Failed),
		zap.Int("total", tally.Total),
	)
	return tally
}
