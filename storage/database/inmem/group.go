package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/masomo-notices/core"
	"github.com/trezcool/masomo-notices/core/group"
)

type groupRepository struct {
	db *DB
}

var _ group.Repository = (*groupRepository)(nil) // interface compliance check

func NewGroupRepository(db *DB) group.Repository {
	return &groupRepository{db: db}
}

// nameTaken must be called with the lock held.
func (repo *groupRepository) nameTaken(grp group.Group) bool {
	for _, g := range repo.db.groups {
		if g.ID != grp.ID && g.Name == grp.Name {
			return true
		}
	}
	return false
}

func (repo *groupRepository) CreateGroup(_ context.Context, grp group.Group, _ ...core.DBExecutor) (group.Group, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if grp.ID == "" {
		grp.ID = uuid.New().String()
	}
	if repo.nameTaken(grp) {
		return group.Group{}, group.ErrNameExists
	}
	grp.MemberIDs = nil
	repo.db.groups[grp.ID] = grp
	grp.MemberIDs = []string{}
	return grp, nil
}

func (repo *groupRepository) GetGroup(_ context.Context, id string, _ ...core.DBExecutor) (group.Group, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	grp, ok := repo.db.groups[id]
	if !ok {
		return group.Group{}, group.ErrNotFound
	}
	return withMembers(grp), nil
}

func (repo *groupRepository) QueryGroups(_ context.Context, _ ...core.DBExecutor) ([]group.Group, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	groups := make([]group.Group, 0, len(repo.db.groups))
	for _, grp := range repo.db.groups {
		groups = append(groups, withMembers(grp))
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups, nil
}

func (repo *groupRepository) UpdateGroup(_ context.Context, grp group.Group, _ ...core.DBExecutor) (group.Group, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.groups[grp.ID]
	if !ok {
		return group.Group{}, group.ErrNotFound
	}
	if repo.nameTaken(grp) {
		return group.Group{}, group.ErrNameExists
	}
	orig.Name = grp.Name
	orig.UpdatedAt = grp.UpdatedAt
	repo.db.groups[grp.ID] = orig
	return withMembers(orig), nil
}

func (repo *groupRepository) SetGroupMembers(_ context.Context, groupID string, memberIDs []string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	grp, ok := repo.db.groups[groupID]
	if !ok {
		return group.ErrNotFound
	}
	for _, id := range memberIDs {
		if _, ok := repo.db.users[id]; !ok {
			return group.ErrUnknownMember
		}
	}
	grp.MemberIDs = group.NewMemberSet(memberIDs...).Slice()
	repo.db.groups[groupID] = grp
	return nil
}

func (repo *groupRepository) QueryMemberIDs(_ context.Context, groupID string, _ ...core.DBExecutor) ([]string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	// unknown groups have no members
	grp := repo.db.groups[groupID]
	return append([]string{}, grp.MemberIDs...), nil
}

func (repo *groupRepository) DeleteGroup(_ context.Context, id string, _ ...core.DBExecutor) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.groups[id]; !ok {
		return 0, nil
	}
	delete(repo.db.groups, id)
	return 1, nil
}

func withMembers(grp group.Group) group.Group {
	grp.MemberIDs = append([]string{}, grp.MemberIDs...)
	return grp
}
