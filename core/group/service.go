package group

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/masomo-notices/core"
)

var (
	// errors
	ErrNotFound      = errors.New("group not found")
	ErrNameExists    = errors.New("a group with this name already exists")
	ErrUnknownMember = errors.New("one or more members do not exist")
)

type (
	Repository interface {
		CreateGroup(ctx context.Context, grp Group, exec ...core.DBExecutor) (Group, error)
		GetGroup(ctx context.Context, id string, exec ...core.DBExecutor) (Group, error)
		// QueryGroups returns all groups, with their members, by name.
		QueryGroups(ctx context.Context, exec ...core.DBExecutor) ([]Group, error)
		UpdateGroup(ctx context.Context, grp Group, exec ...core.DBExecutor) (Group, error)
		// SetGroupMembers replaces the whole membership of a group.
		SetGroupMembers(ctx context.Context, groupID string, memberIDs []string, exec ...core.DBExecutor) error
		// QueryMemberIDs returns no error for an unknown group, only no members.
		QueryMemberIDs(ctx context.Context, groupID string, exec ...core.DBExecutor) ([]string, error)
		// DeleteGroup removes a group and its membership edges.
		DeleteGroup(ctx context.Context, id string, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		Create(ctx context.Context, ng NewGroup) (Group, error)
		GetByID(ctx context.Context, id string) (Group, error)
		Query(ctx context.Context) ([]Group, error)
		QuerySummaries(ctx context.Context) ([]Summary, error)
		Update(ctx context.Context, orig Group, ug UpdateGroup) (Group, error)
		Delete(ctx context.Context, id string) error

		// ResolveMembers returns the current members of a group.
		// An unknown group resolves to an empty set.
		ResolveMembers(ctx context.Context, groupID string) (MemberSet, error)
	}

	service struct {
		txr  core.TxRunner
		repo Repository
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(txr core.TxRunner, repo Repository) Service {
	return &service{txr: txr, repo: repo}
}

// trapWriteErr maps store constraint errors to field errors.
func trapWriteErr(err error) error {
	switch {
	case errors.Is(err, ErrNameExists):
		return core.NewValidationError(ErrNameExists, core.FieldError{Field: "name", Error: ErrNameExists.Error()})
	case errors.Is(err, ErrUnknownMember):
		return core.NewValidationError(ErrUnknownMember, core.FieldError{Field: "member_ids", Error: ErrUnknownMember.Error()})
	default:
		return err
	}
}

func (svc *service) Create(ctx context.Context, ng NewGroup) (Group, error) {
	now := time.Now().UTC()
	grp := Group{
		Name:      ng.Name,
		MemberIDs: ng.MemberIDs,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := svc.txr.RunInTx(ctx, func(exec core.DBExecutor) error {
		created, err := svc.repo.CreateGroup(ctx, grp, exec)
		if err != nil {
			return err
		}
		if len(grp.MemberIDs) > 0 {
			if err = svc.repo.SetGroupMembers(ctx, created.ID, grp.MemberIDs, exec); err != nil {
				return err
			}
		}
		created.MemberIDs = NewMemberSet(grp.MemberIDs...).Slice()
		grp = created
		return nil
	})
	if err != nil {
		return Group{}, trapWriteErr(err)
	}
	return grp, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (Group, error) {
	return svc.repo.GetGroup(ctx, id)
}

func (svc *service) Query(ctx context.Context) ([]Group, error) {
	return svc.repo.QueryGroups(ctx)
}

func (svc *service) QuerySummaries(ctx context.Context) ([]Summary, error) {
	groups, err := svc.repo.QueryGroups(ctx)
	if err != nil {
		return nil, err
	}
	sums := make([]Summary, 0, len(groups))
	for _, grp := range groups {
		sums = append(sums, grp.Summary())
	}
	return sums, nil
}

func (svc *service) Update(ctx context.Context, orig Group, ug UpdateGroup) (Group, error) {
	grp := orig
	grp.Name = ug.Name
	grp.UpdatedAt = time.Now().UTC()

	err := svc.txr.RunInTx(ctx, func(exec core.DBExecutor) error {
		updated, err := svc.repo.UpdateGroup(ctx, grp, exec)
		if err != nil {
			return err
		}
		updated.MemberIDs = orig.MemberIDs
		if ug.MemberIDs != nil {
			if err = svc.repo.SetGroupMembers(ctx, grp.ID, ug.MemberIDs, exec); err != nil {
				return err
			}
			updated.MemberIDs = NewMemberSet(ug.MemberIDs...).Slice()
		}
		grp = updated
		return nil
	})
	if err != nil {
		return Group{}, trapWriteErr(err)
	}
	return grp, nil
}

func (svc *service) Delete(ctx context.Context, id string) error {
	cnt, err := svc.repo.DeleteGroup(ctx, id)
	if err != nil {
		return err
	}
	if cnt == 0 {
		return ErrNotFound
	}
	return nil
}

func (svc *service) ResolveMembers(ctx context.Context, groupID string) (MemberSet, error) {
	ids, err := svc.repo.QueryMemberIDs(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return NewMemberSet(ids...), nil
}
