package sqlxrepos

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-notices/core"
	"github.com/trezcool/masomo-notices/core/notice"
)

const deliveryTable = "notice_delivery"

var (
	deliveryColumns = []string{"id", "content", "author_id", "recipient_id", "is_read", "read_at", "created_at"}

	// rows per INSERT; Postgres caps a statement at 65535 bind parameters
	deliveryBatchSize = 1000 // mockable
)

type deliveryRow struct {
	ID          string    `db:"id"`
	Content     string    `db:"content"`
	AuthorID    string    `db:"author_id"`
	RecipientID string    `db:"recipient_id"`
	IsRead      bool      `db:"is_read"`
	ReadAt      null.Time `db:"read_at"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r deliveryRow) toModel() notice.Delivery {
	d := notice.Delivery{
		ID:          r.ID,
		Content:     r.Content,
		AuthorID:    r.AuthorID,
		RecipientID: r.RecipientID,
		IsRead:      r.IsRead,
		CreatedAt:   r.CreatedAt.UTC(),
	}
	if r.ReadAt.Valid {
		at := r.ReadAt.Time.UTC()
		d.ReadAt = &at
	}
	return d
}

func readAtValue(d notice.Delivery) null.Time {
	if d.ReadAt == nil {
		return null.Time{}
	}
	return null.TimeFrom(d.ReadAt.UTC())
}

type noticeRepository struct {
	repository
}

var _ notice.Repository = (*noticeRepository)(nil) // interface compliance check

func NewNoticeRepository(exec core.DBExecutor) *noticeRepository {
	return &noticeRepository{repository{exec: exec}}
}

// CreateDeliveries writes the batch in multi-row INSERTs of deliveryBatchSize rows.
// Run it under a core.TxRunner to keep a batch spanning several statements all-or-nothing.
func (repo noticeRepository) CreateDeliveries(ctx context.Context, deliveries []notice.Delivery, exec ...core.DBExecutor) (int, error) {
	e := repo.getExec(exec)
	size := deliveryBatchSize
	if size <= 0 {
		size = len(deliveries)
	}

	total := 0
	for start := 0; start < len(deliveries); start += size {
		end := start + size
		if end > len(deliveries) {
			end = len(deliveries)
		}

		q := psql.Insert(deliveryTable).Columns(deliveryColumns...)
		for _, d := range deliveries[start:end] {
			q = q.Values(d.ID, d.Content, d.AuthorID, d.RecipientID, d.IsRead, readAtValue(d), d.CreatedAt.UTC())
		}

		n, err := repo.execAffected(ctx, e, q)
		if err != nil {
			if code := pgErrCode(err); code == codeForeignKey || code == codeInvalidText {
				err = notice.ErrUnknownRecipient
			}
			return 0, errors.Wrap(err, "unable to create notice deliveries")
		}
		total += n
	}
	return total, nil
}

func (repo noticeRepository) GetDelivery(ctx context.Context, id string, exec ...core.DBExecutor) (notice.Delivery, error) {
	var rows []deliveryRow
	q := psql.Select(deliveryColumns...).From(deliveryTable).Where(sq.Eq{"id": id})
	if err := repo.selectAll(ctx, repo.getExec(exec), q, &rows); err != nil {
		if pgErrCode(err) == codeInvalidText {
			return notice.Delivery{}, notice.ErrNotFound
		}
		return notice.Delivery{}, errors.Wrap(err, "unable to get notice delivery")
	}
	if len(rows) == 0 {
		return notice.Delivery{}, notice.ErrNotFound
	}
	return rows[0].toModel(), nil
}

func (repo noticeRepository) QueryDeliveries(
	ctx context.Context,
	filter notice.QueryFilter,
	ordering []core.DBOrdering,
	page core.Pagination,
	exec ...core.DBExecutor,
) ([]notice.Delivery, int, error) {
	wrapMsg := "unable to query notice deliveries"
	e := repo.getExec(exec)

	where := sq.And{}
	if filter.RecipientID != "" {
		where = append(where, sq.Eq{"recipient_id": filter.RecipientID})
	}
	if filter.AuthorID != "" {
		where = append(where, sq.Eq{"author_id": filter.AuthorID})
	}
	if filter.IsRead != nil {
		where = append(where, sq.Eq{"is_read": *filter.IsRead})
	}

	total, err := repo.count(ctx, e, psql.Select("count(*)").From(deliveryTable).Where(where))
	if err != nil {
		return nil, 0, errors.Wrap(err, wrapMsg)
	}

	q := psql.Select(deliveryColumns...).
		From(deliveryTable).
		Where(where).
		OrderBy(orderBy(ordering, notice.OrderingFields)...)
	if page.Limit > 0 {
		q = q.Limit(uint64(page.Limit))
	}
	if page.Offset > 0 {
		q = q.Offset(uint64(page.Offset))
	}

	var rows []deliveryRow
	if err = repo.selectAll(ctx, e, q, &rows); err != nil {
		return nil, 0, errors.Wrap(err, wrapMsg)
	}
	deliveries := make([]notice.Delivery, 0, len(rows))
	for _, r := range rows {
		deliveries = append(deliveries, r.toModel())
	}
	return deliveries, total, nil
}

func (repo noticeRepository) UpdateReadState(ctx context.Context, d notice.Delivery, exec ...core.DBExecutor) (notice.Delivery, error) {
	var rows []deliveryRow
	q := psql.Update(deliveryTable).
		Set("is_read", d.IsRead).
		Set("read_at", readAtValue(d)).
		Where(sq.Eq{"id": d.ID}).
		Suffix("RETURNING " + strings.Join(deliveryColumns, ", "))
	if err := repo.selectAll(ctx, repo.getExec(exec), q, &rows); err != nil {
		return notice.Delivery{}, errors.Wrap(err, "unable to update notice read state")
	}
	if len(rows) == 0 {
		return notice.Delivery{}, notice.ErrNotFound
	}
	return rows[0].toModel(), nil
}

func (repo noticeRepository) MarkAllRead(ctx context.Context, recipientID string, readAt time.Time, exec ...core.DBExecutor) (int, error) {
	q := psql.Update(deliveryTable).
		Set("is_read", true).
		Set("read_at", readAt.UTC()).
		Where(sq.Eq{"recipient_id": recipientID, "is_read": false})
	n, err := repo.execAffected(ctx, repo.getExec(exec), q)
	if err != nil {
		return 0, errors.Wrap(err, "unable to mark all notices as read")
	}
	return n, nil
}

func (repo noticeRepository) CountUnread(ctx context.Context, recipientID string, exec ...core.DBExecutor) (int, error) {
	q := psql.Select("count(*)").
		From(deliveryTable).
		Where(sq.Eq{"recipient_id": recipientID, "is_read": false})
	n, err := repo.count(ctx, repo.getExec(exec), q)
	if err != nil {
		return 0, errors.Wrap(err, "unable to count unread notices")
	}
	return n, nil
}

func (repo noticeRepository) DeleteDelivery(ctx context.Context, id string, exec ...core.DBExecutor) (int, error) {
	q := psql.Delete(deliveryTable).Where(sq.Eq{"id": id})
	n, err := repo.execAffected(ctx, repo.getExec(exec), q)
	if err != nil {
		if pgErrCode(err) == codeInvalidText {
			return 0, nil
		}
		return 0, errors.Wrap(err, "unable to delete notice delivery")
	}
	return n, nil
}
