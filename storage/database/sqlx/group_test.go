package sqlxrepos

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-notices/core/group"
)

func TestGroupRepository_SetGroupMembers(t *testing.T) {
	assert := assert.New(t)

	db, mock, err := sqlmock.New()
	assert.NoError(err, "unable to open the mock database connection")
	defer db.Close()
	ctx := context.Background()
	repo := NewGroupRepository(db)

	// Set up the expectations.
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM group_member WHERE group_id = \\$1").
		WithArgs("g1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO group_member \\(group_id,user_id\\) VALUES \\(\\$1,\\$2\\),\\(\\$3,\\$4\\)").
		WithArgs("g1", "u1", "g1", "u2").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectRollback()

	// Replace the membership, duplicates included.
	tx, err := db.Begin()
	assert.NoError(err, "unable to begin a transaction")
	err = repo.SetGroupMembers(ctx, "g1", []string{"u2", "u1", "u2"}, tx)
	assert.NoError(err)
	_ = tx.Rollback()

	assert.NoError(mock.ExpectationsWereMet(), "not all mock expectations were met")
}

func TestGroupRepository_SetGroupMembers_Errors(t *testing.T) {
	assert := assert.New(t)

	db, mock, err := sqlmock.New()
	assert.NoError(err, "unable to open the mock database connection")
	defer db.Close()
	ctx := context.Background()
	repo := NewGroupRepository(db)

	mock.ExpectExec("DELETE FROM group_member").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO group_member").WillReturnError(&pq.Error{Code: "23503"})
	mock.ExpectExec("DELETE FROM group_member").WillReturnResult(sqlmock.NewResult(0, 2))

	err = repo.SetGroupMembers(ctx, "g1", []string{"nobody"})
	assert.Equal(group.ErrUnknownMember, errors.Cause(err))

	// clearing the membership inserts nothing
	err = repo.SetGroupMembers(ctx, "g1", []string{})
	assert.NoError(err)

	assert.NoError(mock.ExpectationsWereMet(), "not all mock expectations were met")
}

func TestGroupRepository_CreateGroup(t *testing.T) {
	assert := assert.New(t)

	db, mock, err := sqlmock.New()
	assert.NoError(err, "unable to open the mock database connection")
	defer db.Close()
	ctx := context.Background()
	repo := NewGroupRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec("INSERT INTO \"group\" \\(id,name,created_at,updated_at\\)").
		WithArgs(sqlmock.AnyArg(), "G1", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO \"group\"").
		WillReturnError(&pq.Error{Code: "23505"})

	grp, err := repo.CreateGroup(ctx, group.Group{Name: "G1", CreatedAt: now, UpdatedAt: now})
	assert.NoError(err)
	assert.NotEmpty(grp.ID)
	assert.Equal([]string{}, grp.MemberIDs)

	_, err = repo.CreateGroup(ctx, group.Group{Name: "G1", CreatedAt: now, UpdatedAt: now})
	assert.Equal(group.ErrNameExists, errors.Cause(err))

	assert.NoError(mock.ExpectationsWereMet(), "not all mock expectations were met")
}

func TestGroupRepository_QueryGroups(t *testing.T) {
	assert := assert.New(t)

	db, mock, err := sqlmock.New()
	assert.NoError(err, "unable to open the mock database connection")
	defer db.Close()
	ctx := context.Background()
	repo := NewGroupRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT id, name, created_at, updated_at FROM \"group\" ORDER BY name ASC").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at", "updated_at"}).
			AddRow("g1", "A", now, now).
			AddRow("g2", "B", now, now))
	mock.ExpectQuery("SELECT group_id, user_id FROM group_member ORDER BY group_id, user_id").
		WillReturnRows(sqlmock.NewRows([]string{"group_id", "user_id"}).
			AddRow("g2", "u1").
			AddRow("g2", "u2"))

	groups, err := repo.QueryGroups(ctx)
	assert.NoError(err)
	assert.Equal([]group.Group{
		{ID: "g1", Name: "A", MemberIDs: []string{}, CreatedAt: now, UpdatedAt: now},
		{ID: "g2", Name: "B", MemberIDs: []string{"u1", "u2"}, CreatedAt: now, UpdatedAt: now},
	}, groups)

	assert.NoError(mock.ExpectationsWereMet(), "not all mock expectations were met")
}

func TestGroupRepository_QueryMemberIDs(t *testing.T) {
	assert := assert.New(t)

	db, mock, err := sqlmock.New()
	assert.NoError(err, "unable to open the mock database connection")
	defer db.Close()
	ctx := context.Background()
	repo := NewGroupRepository(db)

	mock.ExpectQuery("SELECT group_id, user_id FROM group_member WHERE group_id = \\$1 ORDER BY user_id").
		WithArgs("g1").
		WillReturnRows(sqlmock.NewRows([]string{"group_id", "user_id"}).AddRow("g1", "u1"))
	mock.ExpectQuery("SELECT group_id, user_id FROM group_member WHERE group_id = \\$1").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"group_id", "user_id"}))

	ids, err := repo.QueryMemberIDs(ctx, "g1")
	assert.NoError(err)
	assert.Equal([]string{"u1"}, ids)

	// unknown groups have no members
	ids, err = repo.QueryMemberIDs(ctx, "missing")
	assert.NoError(err)
	assert.Empty(ids)

	assert.NoError(mock.ExpectationsWereMet(), "not all mock expectations were met")
}
