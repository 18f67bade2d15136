package out

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	checkinout "qc/internal/modules/checkin/port/out"
)

// RedisFeed carries row events between devices over Redis pub/sub. Each
// couple and table pair gets its own channel.
type RedisFeed struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisFeed(client *redis.Client, logger *slog.Logger) *RedisFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisFeed{client: client, logger: logger}
}

func Channel(coupleID string, table checkinout.Table) string {
	return fmt.Sprintf("qc:couple:%s:%s", coupleID, table)
}

func (f *RedisFeed) Publish(ctx context.Context, event checkinout.RowEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal row event: %w", err)
	}
	if err := f.client.Publish(ctx, Channel(event.CoupleID, event.Table), payload).Err(); err != nil {
		return fmt.Errorf("publish row event: %w", err)
	}
	return nil
}

// Subscribe returns once Redis has confirmed the subscription. Handlers run
// on one goroutine per subscription in arrival order.
func (f *RedisFeed) Subscribe(ctx context.Context, table checkinout.Table, coupleID string, handlers checkinout.ChangeHandlers) (checkinout.Subscription, error) {
	channel := Channel(coupleID, table)
	runCtx, cancel := context.WithCancel(context.Background())
	pubsub := f.client.Subscribe(runCtx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	sub := &redisSubscription{
		pubsub: pubsub,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go sub.run(runCtx, handlers, f.logger.With("channel", channel))
	f.logger.Debug("change feed subscribed", "channel", channel)
	return sub, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	err    error
}

func (s *redisSubscription) run(ctx context.Context, handlers checkinout.ChangeHandlers, logger *slog.Logger) {
	defer close(s.done)
	messages := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var event checkinout.RowEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logger.Warn("dropping malformed row event", "error", err)
				continue
			}
			handlers.Dispatch(event)
		}
	}
}

func (s *redisSubscription) Unsubscribe() error {
	s.once.Do(func() {
		s.cancel()
		s.err = s.pubsub.Close()
		<-s.done
	})
	return s.err
}
