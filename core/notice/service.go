package notice

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/masomo-notices/core"
	"github.com/trezcool/masomo-notices/core/group"
	"github.com/trezcool/masomo-notices/core/user"
)

var (
	// errors
	ErrNotFound          = errors.New("notice not found")
	ErrForbidden         = errors.New("you do not have permission to perform this action")
	ErrNoValidRecipients = errors.New("recipients did not resolve to any user")
	ErrUnknownRecipient  = errors.New("one or more recipients do not exist")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		// CreateDeliveries persists all deliveries as one batch.
		// Called under a TxRunner, either all of them are written or none.
		CreateDeliveries(ctx context.Context, deliveries []Delivery, exec ...core.DBExecutor) (int, error)
		GetDelivery(ctx context.Context, id string, exec ...core.DBExecutor) (Delivery, error)
		// QueryDeliveries returns the requested page of deliveries matching filter, and the total match count.
		QueryDeliveries(
			ctx context.Context,
			filter QueryFilter,
			ordering []core.DBOrdering,
			page core.Pagination,
			exec ...core.DBExecutor,
		) ([]Delivery, int, error)
		// UpdateReadState writes Delivery.IsRead and Delivery.ReadAt only.
		UpdateReadState(ctx context.Context, d Delivery, exec ...core.DBExecutor) (Delivery, error)
		// MarkAllRead marks every unread delivery of recipientID as read at readAt and returns how many changed.
		MarkAllRead(ctx context.Context, recipientID string, readAt time.Time, exec ...core.DBExecutor) (int, error)
		CountUnread(ctx context.Context, recipientID string, exec ...core.DBExecutor) (int, error)
		DeleteDelivery(ctx context.Context, id string, exec ...core.DBExecutor) (int, error)
	}

	// UnreadCache keeps unread counts per recipient.
	// Every invalidation bumps the recipient's generation; SetUnread only stores a count
	// read under the generation GetUnread returned, so a count read before a write never outlives it.
	UnreadCache interface {
		GetUnread(ctx context.Context, userID string) (count int, found bool, gen int64, err error)
		SetUnread(ctx context.Context, userID string, count int, gen int64) error
		InvalidateUnread(ctx context.Context, userIDs ...string) error
	}

	ContactDirectory interface {
		QueryContacts(ctx context.Context) ([]user.Contact, error)
	}

	GroupDirectory interface {
		MemberResolver
		QuerySummaries(ctx context.Context) ([]group.Summary, error)
	}

	Service interface {
		// Create fans a notice out to every user its recipients resolve to.
		Create(ctx context.Context, authorID string, nn NewNotice) (CreateResult, error)
		QueryInbox(ctx context.Context, recipientID string, filter InboxFilter, ordering []core.DBOrdering, page core.Pagination) (Page, error)
		QuerySent(ctx context.Context, authorID string, ordering []core.DBOrdering, page core.Pagination) (Page, error)
		CountUnread(ctx context.Context, recipientID string) (int, error)
		MarkRead(ctx context.Context, id, requesterID string) (Delivery, error)
		MarkUnread(ctx context.Context, id, requesterID string) (Delivery, error)
		MarkAllRead(ctx context.Context, recipientID string) (int, error)
		Delete(ctx context.Context, id, requesterID string, requesterRoles []string) error
		QueryCandidates(ctx context.Context) (Candidates, error)
	}

	service struct {
		txr      core.TxRunner
		repo     Repository
		groups   GroupDirectory
		contacts ContactDirectory
		cache    UnreadCache
		logger   core.Logger
	}
)

var _ Service = (*service)(nil) // interface compliance check

// NewService builds the notice service. cache may be nil.
func NewService(
	txr core.TxRunner,
	repo Repository,
	groups GroupDirectory,
	contacts ContactDirectory,
	cache UnreadCache,
	logger core.Logger,
) Service {
	return &service{
		txr:      txr,
		repo:     repo,
		groups:   groups,
		contacts: contacts,
		cache:    cache,
		logger:   logger,
	}
}

func (svc *service) Create(ctx context.Context, authorID string, nn NewNotice) (CreateResult, error) {
	recipients, err := BuildRecipients(ctx, svc.groups, nn.Content, nn.Refs())
	if err != nil {
		return CreateResult{}, err
	}

	now := NowFunc().UTC()
	content := core.CleanString(nn.Content)
	deliveries := make([]Delivery, 0, len(recipients))
	for _, rid := range recipients.Slice() {
		deliveries = append(deliveries, Delivery{
			ID:          uuid.New().String(),
			Content:     content,
			AuthorID:    authorID,
			RecipientID: rid,
			CreatedAt:   now,
		})
	}

	var cnt int
	err = svc.txr.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		cnt, err = svc.repo.CreateDeliveries(ctx, deliveries, exec)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrUnknownRecipient) {
			return CreateResult{}, core.NewValidationError(ErrUnknownRecipient, core.FieldError{
				Field: "recipients",
				Error: ErrUnknownRecipient.Error(),
			})
		}
		return CreateResult{}, err
	}

	svc.invalidateUnread(ctx, recipients.Slice()...)
	return CreateResult{Count: cnt}, nil
}

func (svc *service) QueryInbox(
	ctx context.Context,
	recipientID string,
	filter InboxFilter,
	ordering []core.DBOrdering,
	page core.Pagination,
) (Page, error) {
	return svc.query(ctx, QueryFilter{RecipientID: recipientID, IsRead: filter.IsRead}, ordering, page)
}

func (svc *service) QuerySent(ctx context.Context, authorID string, ordering []core.DBOrdering, page core.Pagination) (Page, error) {
	return svc.query(ctx, QueryFilter{AuthorID: authorID}, ordering, page)
}

func (svc *service) query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination) (Page, error) {
	page.Clean()
	if len(ordering) == 0 {
		ordering = DefaultOrdering
	}
	deliveries, total, err := svc.repo.QueryDeliveries(ctx, filter, ordering, page)
	if err != nil {
		return Page{}, err
	}
	if deliveries == nil {
		deliveries = []Delivery{}
	}
	return Page{Count: total, Results: deliveries}, nil
}

func (svc *service) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var gen int64
	cacheable := svc.cache != nil
	if cacheable {
		cnt, found, g, err := svc.cache.GetUnread(ctx, recipientID)
		switch {
		case err != nil:
			svc.logger.Warn("reading unread count from cache", err)
			cacheable = false
		case found:
			return cnt, nil
		default:
			gen = g
		}
	}

	// the generation must be read before the store
	cnt, err := svc.repo.CountUnread(ctx, recipientID)
	if err != nil {
		return 0, err
	}

	if cacheable {
		if err = svc.cache.SetUnread(ctx, recipientID, cnt, gen); err != nil {
			svc.logger.Warn("caching unread count", err)
		}
	}
	return cnt, nil
}

func (svc *service) MarkRead(ctx context.Context, id, requesterID string) (Delivery, error) {
	return svc.toggleRead(ctx, id, requesterID, true)
}

func (svc *service) MarkUnread(ctx context.Context, id, requesterID string) (Delivery, error) {
	return svc.toggleRead(ctx, id, requesterID, false)
}

// toggleRead always writes, so marking a read delivery as read again refreshes ReadAt.
func (svc *service) toggleRead(ctx context.Context, id, requesterID string, read bool) (Delivery, error) {
	d, err := svc.repo.GetDelivery(ctx, id)
	if err != nil {
		return Delivery{}, err
	}
	if err = AssertCanToggleRead(d, requesterID); err != nil {
		return Delivery{}, err
	}

	if read {
		d.markRead(NowFunc())
	} else {
		d.markUnread()
	}

	d, err = svc.repo.UpdateReadState(ctx, d)
	if err != nil {
		return Delivery{}, err
	}
	svc.invalidateUnread(ctx, d.RecipientID)
	return d, nil
}

func (svc *service) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	cnt, err := svc.repo.MarkAllRead(ctx, recipientID, NowFunc().UTC())
	if err != nil {
		return 0, err
	}
	svc.invalidateUnread(ctx, recipientID)
	return cnt, nil
}

func (svc *service) Delete(ctx context.Context, id, requesterID string, requesterRoles []string) error {
	d, err := svc.repo.GetDelivery(ctx, id)
	if err != nil {
		return err
	}
	if err = AssertCanDelete(d, requesterID, requesterRoles); err != nil {
		return err
	}

	cnt, err := svc.repo.DeleteDelivery(ctx, id)
	if err != nil {
		return err
	}
	if cnt == 0 {
		return ErrNotFound
	}
	if !d.IsRead {
		svc.invalidateUnread(ctx, d.RecipientID)
	}
	return nil
}

func (svc *service) QueryCandidates(ctx context.Context) (Candidates, error) {
	users, err := svc.contacts.QueryContacts(ctx)
	if err != nil {
		return Candidates{}, err
	}
	groups, err := svc.groups.QuerySummaries(ctx)
	if err != nil {
		return Candidates{}, err
	}
	return Candidates{Users: users, Groups: groups}, nil
}

// invalidateUnread drops cached counts after a committed write; failures only leave a count stale until its TTL.
func (svc *service) invalidateUnread(ctx context.Context, userIDs ...string) {
	if svc.cache == nil || len(userIDs) == 0 {
		return
	}
	if err := svc.cache.InvalidateUnread(ctx, userIDs...); err != nil {
		svc.logger.Warn("invalidating cached unread counts", err)
	}
}
