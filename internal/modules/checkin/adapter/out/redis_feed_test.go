package out_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	checkinadapter "qc/internal/modules/checkin/adapter/out"
	"qc/internal/modules/checkin/domain"
	checkinout "qc/internal/modules/checkin/port/out"
	"qc/internal/modules/checkin/service"
	"qc/internal/platform/clock"
	"qc/internal/platform/id"
	"qc/internal/platform/logging"
)

func setupRedisFeed(t *testing.T) *checkinadapter.RedisFeed {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return checkinadapter.NewRedisFeed(client, logging.Discard())
}

func TestRedisFeedDeliversToMatchingChannel(t *testing.T) {
	t.Parallel()
	feed := setupRedisFeed(t)
	ctx := context.Background()

	received := make(chan checkinout.RowEvent, 4)
	sub, err := feed.Subscribe(ctx, checkinout.TableActionItems, "couple-1", checkinout.ChangeHandlers{
		OnInsert: func(event checkinout.RowEvent) { received <- event },
		OnDelete: func(event checkinout.RowEvent) { received <- event },
	})
	require.NoError(t, err)

	item := domain.ActionItem{ID: "item-1", CoupleID: "couple-1", Title: "Walk"}
	require.NoError(t, feed.Publish(ctx, checkinout.RowEvent{
		Table:    checkinout.TableActionItems,
		Kind:     checkinout.ChangeUpdate,
		CoupleID: "couple-1",
		RowID:    item.ID,
	}))
	require.NoError(t, feed.Publish(ctx, checkinout.RowEvent{
		Table:      checkinout.TableActionItems,
		Kind:       checkinout.ChangeInsert,
		CoupleID:   "couple-2",
		RowID:      "other",
		ActionItem: &domain.ActionItem{ID: "other"},
	}))
	require.NoError(t, feed.Publish(ctx, checkinout.RowEvent{
		Table:      checkinout.TableActionItems,
		Kind:       checkinout.ChangeInsert,
		CoupleID:   "couple-1",
		RowID:      item.ID,
		ActionItem: &item,
	}))

	select {
	case event := <-received:
		require.Equal(t, checkinout.ChangeInsert, event.Kind)
		require.NotNil(t, event.ActionItem)
		require.Equal(t, "Walk", event.ActionItem.Title)
	case <-time.After(2 * time.Second):
		t.Fatalf("expected an insert event")
	}

	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, sub.Unsubscribe())
	require.Empty(t, received)
}

func TestRemoteCompletionAcrossDevices(t *testing.T) {
	t.Parallel()
	feed := setupRedisFeed(t)
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "qc.db")

	newDevice := func(userID string) *service.Engine {
		gateway, err := checkinadapter.NewSQLiteGateway(dbPath, id.UUID{}, clock.SystemClock{}, feed, logging.Discard())
		require.NoError(t, err)
		t.Cleanup(func() { _ = gateway.Close() })
		engine := service.NewEngine(
			service.Identity{CoupleID: "couple-1", UserID: userID},
			gateway,
			feed,
			service.WithLogger(logging.Discard()),
		)
		t.Cleanup(func() { _ = engine.Close() })
		require.NoError(t, engine.Open(ctx))
		return engine
	}

	alex := newDevice("alex")
	sam := newDevice("sam")

	session, ok := alex.StartCheckIn(ctx, []string{"communication"})
	require.True(t, ok)
	sam.Initialize(ctx)
	require.Equal(t, session.ID, sam.Snapshot().Session.ID)

	item, ok := alex.AddActionItem(ctx, service.ActionItemDraft{Title: "Weekly walk"})
	require.True(t, ok)
	require.Eventually(t, func() bool {
		items := sam.ActionItems()
		return len(items) == 1 && items[0].ID == item.ID
	}, 2*time.Second, 10*time.Millisecond)

	require.True(t, alex.CompleteCheckIn(ctx))
	require.Eventually(t, func() bool {
		return sam.Snapshot().Session == nil
	}, 2*time.Second, 10*time.Millisecond)
}
