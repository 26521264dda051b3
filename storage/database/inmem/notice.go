package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/masomo-notices/core"
	"github.com/trezcool/masomo-notices/core/notice"
)

type noticeRepository struct {
	db *DB
}

var _ notice.Repository = (*noticeRepository)(nil) // interface compliance check

func NewNoticeRepository(db *DB) notice.Repository {
	return &noticeRepository{db: db}
}

func (repo *noticeRepository) CreateDeliveries(_ context.Context, deliveries []notice.Delivery, _ ...core.DBExecutor) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// check the whole batch first so nothing is written on failure
	for _, d := range deliveries {
		if _, ok := repo.db.users[d.RecipientID]; !ok {
			return 0, notice.ErrUnknownRecipient
		}
	}
	for _, d := range deliveries {
		repo.db.deliveries[d.ID] = d
	}
	return len(deliveries), nil
}

func (repo *noticeRepository) GetDelivery(_ context.Context, id string, _ ...core.DBExecutor) (notice.Delivery, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if d, ok := repo.db.deliveries[id]; ok {
		return d, nil
	}
	return notice.Delivery{}, notice.ErrNotFound
}

func (repo *noticeRepository) QueryDeliveries(
	_ context.Context,
	filter notice.QueryFilter,
	ordering []core.DBOrdering,
	pg core.Pagination,
	_ ...core.DBExecutor,
) ([]notice.Delivery, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	matches := make([]notice.Delivery, 0)
	for _, d := range repo.db.deliveries {
		if filter.RecipientID != "" && d.RecipientID != filter.RecipientID {
			continue
		}
		if filter.AuthorID != "" && d.AuthorID != filter.AuthorID {
			continue
		}
		if filter.IsRead != nil && d.IsRead != *filter.IsRead {
			continue
		}
		matches = append(matches, d)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareDeliveries(matches[i], matches[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return matches[i].ID < matches[j].ID
	})

	start, end := page(len(matches), pg)
	return matches[start:end], len(matches), nil
}

// compareDeliveries sorts a nil read_at after every timestamp.
func compareDeliveries(a, b notice.Delivery, field string) int {
	switch field {
	case "created_at":
		return compareTimes(a.CreatedAt, b.CreatedAt)
	case "read_at":
		switch {
		case a.ReadAt == nil && b.ReadAt == nil:
			return 0
		case a.ReadAt == nil:
			return 1
		case b.ReadAt == nil:
			return -1
		default:
			return compareTimes(*a.ReadAt, *b.ReadAt)
		}
	case "is_read":
		switch {
		case a.IsRead == b.IsRead:
			return 0
		case a.IsRead:
			return 1
		default:
			return -1
		}
	default:
		return 0
	}
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

func (repo *noticeRepository) UpdateReadState(_ context.Context, d notice.Delivery, _ ...core.DBExecutor) (notice.Delivery, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.deliveries[d.ID]
	if !ok {
		return notice.Delivery{}, notice.ErrNotFound
	}
	orig.IsRead = d.IsRead
	orig.ReadAt = d.ReadAt
	repo.db.deliveries[d.ID] = orig
	return orig, nil
}

func (repo *noticeRepository) MarkAllRead(_ context.Context, recipientID string, readAt time.Time, _ ...core.DBExecutor) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var cnt int
	for id, d := range repo.db.deliveries {
		if d.RecipientID != recipientID || d.IsRead {
			continue
		}
		at := readAt
		d.IsRead = true
		d.ReadAt = &at
		repo.db.deliveries[id] = d
		cnt++
	}
	return cnt, nil
}

func (repo *noticeRepository) CountUnread(_ context.Context, recipientID string, _ ...core.DBExecutor) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var cnt int
	for _, d := range repo.db.deliveries {
		if d.RecipientID == recipientID && !d.IsRead {
			cnt++
		}
	}
	return cnt, nil
}

func (repo *noticeRepository) DeleteDelivery(_ context.Context, id string, _ ...core.DBExecutor) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.deliveries[id]; !ok {
		return 0, nil
	}
	delete(repo.db.deliveries, id)
	return 1, nil
}
