package service

import (
	"slices"

	"qc/internal/modules/checkin/domain"
)

// actionItemList is the couple's action items as reported by the backend.
// It is mutated only by the initial load and by change feed events.
type actionItemList struct {
	items   []domain.ActionItem
	version uint64
	// ids changed by the feed while a load is in flight
	touched map[string]struct{}
}

func (l *actionItemList) beginLoad() {
	l.touched = map[string]struct{}{}
}

func (l *actionItemList) abortLoad() {
	l.touched = nil
}

// finishLoad adopts the fetched rows. Rows the feed upserted or deleted
// after beginLoad keep their feed state.
func (l *actionItemList) finishLoad(fetched []domain.ActionItem) {
	merged := make([]domain.ActionItem, 0, len(fetched)+len(l.touched))
	for _, item := range fetched {
		if _, ok := l.touched[item.ID]; !ok {
			merged = append(merged, item)
		}
	}
	for _, item := range l.items {
		if _, ok := l.touched[item.ID]; ok {
			merged = append(merged, item)
		}
	}
	l.items = merged
	l.touched = nil
	l.version++
}

func (l *actionItemList) touch(id string) {
	if l.touched != nil {
		l.touched[id] = struct{}{}
	}
}

// upsert replaces the item with the same id in place or appends it.
func (l *actionItemList) upsert(item domain.ActionItem) {
	l.touch(item.ID)
	if idx := l.index(item.ID); idx >= 0 {
		l.items[idx] = item
	} else {
		l.items = append(l.items, item)
	}
	l.version++
}

func (l *actionItemList) remove(id string) bool {
	l.touch(id)
	idx := l.index(id)
	if idx < 0 {
		return false
	}
	l.items = slices.Delete(l.items, idx, idx+1)
	l.version++
	return true
}

func (l *actionItemList) find(id string) (domain.ActionItem, bool) {
	idx := l.index(id)
	if idx < 0 {
		return domain.ActionItem{}, false
	}
	return l.items[idx], true
}

func (l *actionItemList) snapshot() []domain.ActionItem {
	return slices.Clone(l.items)
}

func (l *actionItemList) index(id string) int {
	for i, item := range l.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}
