package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-notices/core"
	"github.com/trezcool/masomo-notices/core/group"
)

const (
	groupTable       = `"group"`
	groupMemberTable = "group_member"
)

var groupColumns = []string{"id", "name", "created_at", "updated_at"}

type (
	groupRow struct {
		ID        string    `db:"id"`
		Name      string    `db:"name"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	memberRow struct {
		GroupID string `db:"group_id"`
		UserID  string `db:"user_id"`
	}
)

func (r groupRow) toModel(memberIDs []string) group.Group {
	if memberIDs == nil {
		memberIDs = []string{}
	}
	return group.Group{
		ID:        r.ID,
		Name:      r.Name,
		MemberIDs: memberIDs,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type groupRepository struct {
	repository
}

var _ group.Repository = (*groupRepository)(nil) // interface compliance check

func NewGroupRepository(exec core.DBExecutor) *groupRepository {
	return &groupRepository{repository{exec: exec}}
}

func (repo groupRepository) trapWriteErr(err error) error {
	switch pgErrCode(err) {
	case codeUniqueViolation:
		return group.ErrNameExists
	case codeForeignKey, codeInvalidText:
		return group.ErrUnknownMember
	default:
		return err
	}
}

func (repo groupRepository) CreateGroup(ctx context.Context, grp group.Group, exec ...core.DBExecutor) (group.Group, error) {
	if grp.ID == "" {
		grp.ID = uuid.New().String()
	}
	q := psql.Insert(groupTable).
		Columns(groupColumns...).
		Values(grp.ID, grp.Name, grp.CreatedAt.UTC(), grp.UpdatedAt.UTC())
	if _, err := repo.execAffected(ctx, repo.getExec(exec), q); err != nil {
		return group.Group{}, errors.Wrap(repo.trapWriteErr(err), "unable to create group")
	}
	grp.MemberIDs = []string{}
	return grp, nil
}

func (repo groupRepository) GetGroup(ctx context.Context, id string, exec ...core.DBExecutor) (group.Group, error) {
	wrapMsg := "unable to get group"
	e := repo.getExec(exec)

	var rows []groupRow
	q := psql.Select(groupColumns...).From(groupTable).Where(sq.Eq{"id": id})
	if err := repo.selectAll(ctx, e, q, &rows); err != nil {
		if pgErrCode(err) == codeInvalidText {
			return group.Group{}, group.ErrNotFound
		}
		return group.Group{}, errors.Wrap(err, wrapMsg)
	}
	if len(rows) == 0 {
		return group.Group{}, group.ErrNotFound
	}

	memberIDs, err := repo.QueryMemberIDs(ctx, id, e)
	if err != nil {
		return group.Group{}, errors.Wrap(err, wrapMsg)
	}
	return rows[0].toModel(memberIDs), nil
}

func (repo groupRepository) QueryGroups(ctx context.Context, exec ...core.DBExecutor) ([]group.Group, error) {
	wrapMsg := "unable to query groups"
	e := repo.getExec(exec)

	var rows []groupRow
	q := psql.Select(groupColumns...).From(groupTable).OrderBy("name ASC")
	if err := repo.selectAll(ctx, e, q, &rows); err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	var members []memberRow
	mq := psql.Select("group_id", "user_id").From(groupMemberTable).OrderBy("group_id", "user_id")
	if err := repo.selectAll(ctx, e, mq, &members); err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}
	byGroup := make(map[string][]string, len(rows))
	for _, m := range members {
		byGroup[m.GroupID] = append(byGroup[m.GroupID], m.UserID)
	}

	groups := make([]group.Group, 0, len(rows))
	for _, r := range rows {
		groups = append(groups, r.toModel(byGroup[r.ID]))
	}
	return groups, nil
}

func (repo groupRepository) UpdateGroup(ctx context.Context, grp group.Group, exec ...core.DBExecutor) (group.Group, error) {
	q := psql.Update(groupTable).
		Set("name", grp.Name).
		Set("updated_at", grp.UpdatedAt.UTC()).
		Where(sq.Eq{"id": grp.ID})
	n, err := repo.execAffected(ctx, repo.getExec(exec), q)
	if err != nil {
		if pgErrCode(err) == codeInvalidText {
			return group.Group{}, group.ErrNotFound
		}
		return group.Group{}, errors.Wrap(repo.trapWriteErr(err), "unable to update group")
	}
	if n == 0 {
		return group.Group{}, group.ErrNotFound
	}
	return grp, nil
}

// SetGroupMembers must run in a transaction: it deletes then re-inserts the membership edges.
func (repo groupRepository) SetGroupMembers(ctx context.Context, groupID string, memberIDs []string, exec ...core.DBExecutor) error {
	wrapMsg := "unable to set group members"
	e := repo.getExec(exec)

	del := psql.Delete(groupMemberTable).Where(sq.Eq{"group_id": groupID})
	if _, err := repo.execAffected(ctx, e, del); err != nil {
		return errors.Wrap(err, wrapMsg)
	}

	memberIDs = group.NewMemberSet(memberIDs...).Slice()
	if len(memberIDs) == 0 {
		return nil
	}
	ins := psql.Insert(groupMemberTable).Columns("group_id", "user_id")
	for _, uid := range memberIDs {
		ins = ins.Values(groupID, uid)
	}
	if _, err := repo.execAffected(ctx, e, ins); err != nil {
		return errors.Wrap(repo.trapWriteErr(err), wrapMsg)
	}
	return nil
}

func (repo groupRepository) QueryMemberIDs(ctx context.Context, groupID string, exec ...core.DBExecutor) ([]string, error) {
	var members []memberRow
	q := psql.Select("group_id", "user_id").
		From(groupMemberTable).
		Where(sq.Eq{"group_id": groupID}).
		OrderBy("user_id")
	if err := repo.selectAll(ctx, repo.getExec(exec), q, &members); err != nil {
		if pgErrCode(err) == codeInvalidText {
			return []string{}, nil // not a group ID, so no members
		}
		return nil, errors.Wrap(err, "unable to query group members")
	}

	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return ids, nil
}

func (repo groupRepository) DeleteGroup(ctx context.Context, id string, exec ...core.DBExecutor) (int, error) {
	// membership edges cascade
	q := psql.Delete(groupTable).Where(sq.Eq{"id": id})
	n, err := repo.execAffected(ctx, repo.getExec(exec), q)
	if err != nil {
		if pgErrCode(err) == codeInvalidText {
			return 0, nil
		}
		return 0, errors.Wrap(err, "unable to delete group")
	}
	return n, nil
}
