package out

import (
	"context"
	"sync"

	checkinout "qc/internal/modules/checkin/port/out"
)

// MemoryFeed delivers events synchronously inside one process. It backs
// single-device setups and tests.
type MemoryFeed struct {
	mu   sync.RWMutex
	subs map[int]memorySubscriber
	next int
}

type memorySubscriber struct {
	table    checkinout.Table
	coupleID string
	handlers checkinout.ChangeHandlers
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: map[int]memorySubscriber{}}
}

func (f *MemoryFeed) Subscribe(_ context.Context, table checkinout.Table, coupleID string, handlers checkinout.ChangeHandlers) (checkinout.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := f.next
	f.next++
	f.subs[key] = memorySubscriber{table: table, coupleID: coupleID, handlers: handlers}
	return memorySubscription{feed: f, key: key}, nil
}

func (f *MemoryFeed) Publish(_ context.Context, event checkinout.RowEvent) error {
	f.mu.RLock()
	targets := make([]checkinout.ChangeHandlers, 0, len(f.subs))
	for _, sub := range f.subs {
		if sub.table == event.Table && sub.coupleID == event.CoupleID {
			targets = append(targets, sub.handlers)
		}
	}
	f.mu.RUnlock()
	for _, handlers := range targets {
		handlers.Dispatch(event)
	}
	return nil
}

type memorySubscription struct {
	feed *MemoryFeed
	key  int
}

func (s memorySubscription) Unsubscribe() error {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	delete(s.feed.subs, s.key)
	return nil
}
