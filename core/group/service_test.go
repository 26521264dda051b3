package group_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-notices/core"
	"github.com/trezcool/masomo-notices/core/group"
	"github.com/trezcool/masomo-notices/core/user"
	"github.com/trezcool/masomo-notices/storage/database/inmem"
)

func setup(t *testing.T) (group.Service, []string) {
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)

	ids := make([]string, 0, 3)
	for _, name := range []string{"a", "b", "c"} {
		now := time.Now().UTC()
		usr, err := usrRepo.CreateUser(context.Background(), user.User{
			ID:        uuid.New().String(),
			Name:      name,
			Username:  name,
			Email:     name + "@test.test",
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		})
		require.NoError(t, err)
		ids = append(ids, usr.ID)
	}
	return group.NewService(db, inmemdb.NewGroupRepository(db)), ids
}

func TestNewGroup_Validate(t *testing.T) {
	validate := validator.New()
	_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return core.CleanString(fl.Field().String()) != ""
	})
	id := uuid.New().String()

	tests := []struct {
		name    string
		ng      group.NewGroup
		want    group.NewGroup
		wantErr bool
	}{
		{
			name: "cleaned",
			ng:   group.NewGroup{Name: "  Grade 1 ", MemberIDs: []string{id, id, ""}},
			want: group.NewGroup{Name: "Grade 1", MemberIDs: []string{id}},
		},
		{name: "blank name", ng: group.NewGroup{Name: "   "}, wantErr: true},
		{name: "bad member", ng: group.NewGroup{Name: "G", MemberIDs: []string{"nope"}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ng.Validate(validate)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, tt.ng)
		})
	}
}

func TestService_CreateAndResolve(t *testing.T) {
	is := assert.New(t)
	svc, ids := setup(t)
	ctx := context.Background()

	grp, err := svc.Create(ctx, group.NewGroup{Name: "G1", MemberIDs: []string{ids[1], ids[0]}})
	is.NoError(err)
	is.NotEmpty(grp.ID)
	is.ElementsMatch([]string{ids[0], ids[1]}, grp.MemberIDs)

	members, err := svc.ResolveMembers(ctx, grp.ID)
	is.NoError(err)
	is.Equal(group.NewMemberSet(ids[0], ids[1]), members)

	// unknown groups resolve to nobody
	members, err = svc.ResolveMembers(ctx, uuid.New().String())
	is.NoError(err)
	is.Empty(members)
}

func TestService_Create_Errors(t *testing.T) {
	svc, ids := setup(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, group.NewGroup{Name: "G1"})
	require.NoError(t, err)

	tests := []struct {
		name      string
		ng        group.NewGroup
		wantErr   error
		wantField string
	}{
		{name: "duplicate name", ng: group.NewGroup{Name: "G1"}, wantErr: group.ErrNameExists, wantField: "name"},
		{
			name:      "unknown member",
			ng:        group.NewGroup{Name: "G2", MemberIDs: []string{ids[0], uuid.New().String()}},
			wantErr:   group.ErrUnknownMember,
			wantField: "member_ids",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := assert.New(t)
			_, err := svc.Create(ctx, tt.ng)
			is.True(errors.Is(err, tt.wantErr))

			var vErr *core.ValidationError
			if is.True(errors.As(err, &vErr)) {
				is.Equal(tt.wantField, vErr.Fields[0].Field)
			}
		})
	}

	// the failed create left nothing behind
	groups, err := svc.Query(ctx)
	require.NoError(t, err)
	assert.Len(t, groups, 1)
}

func TestService_Update(t *testing.T) {
	is := assert.New(t)
	svc, ids := setup(t)
	ctx := context.Background()

	orig, err := svc.Create(ctx, group.NewGroup{Name: "G1", MemberIDs: []string{ids[0]}})
	require.NoError(t, err)

	// rename only
	grp, err := svc.Update(ctx, orig, group.UpdateGroup{Name: "Grade 1"})
	is.NoError(err)
	is.Equal("Grade 1", grp.Name)
	is.Equal([]string{ids[0]}, grp.MemberIDs)

	// replace membership
	grp, err = svc.Update(ctx, grp, group.UpdateGroup{Name: grp.Name, MemberIDs: []string{ids[1], ids[2]}})
	is.NoError(err)
	is.ElementsMatch([]string{ids[1], ids[2]}, grp.MemberIDs)

	// clear membership
	grp, err = svc.Update(ctx, grp, group.UpdateGroup{Name: grp.Name, MemberIDs: []string{}})
	is.NoError(err)
	is.Empty(grp.MemberIDs)

	stored, err := svc.GetByID(ctx, grp.ID)
	is.NoError(err)
	is.Equal("Grade 1", stored.Name)
	is.Empty(stored.MemberIDs)
}

func TestService_Delete(t *testing.T) {
	is := assert.New(t)
	svc, ids := setup(t)
	ctx := context.Background()

	grp, err := svc.Create(ctx, group.NewGroup{Name: "G1", MemberIDs: ids})
	require.NoError(t, err)

	is.NoError(svc.Delete(ctx, grp.ID))
	is.Equal(group.ErrNotFound, svc.Delete(ctx, grp.ID))

	_, err = svc.GetByID(ctx, grp.ID)
	is.Equal(group.ErrNotFound, err)

	members, err := svc.ResolveMembers(ctx, grp.ID)
	is.NoError(err)
	is.Empty(members)
}

func TestService_QuerySummaries(t *testing.T) {
	is := assert.New(t)
	svc, ids := setup(t)
	ctx := context.Background()

	b, err := svc.Create(ctx, group.NewGroup{Name: "B", MemberIDs: ids[:2]})
	require.NoError(t, err)
	a, err := svc.Create(ctx, group.NewGroup{Name: "A"})
	require.NoError(t, err)

	sums, err := svc.QuerySummaries(ctx)
	is.NoError(err)
	is.Equal([]group.Summary{
		{ID: a.ID, Name: "A", MemberCount: 0},
		{ID: b.ID, Name: "B", MemberCount: 2},
	}, sums)
}
