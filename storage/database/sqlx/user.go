package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-notices/core"
	"github.com/trezcool/masomo-notices/core/user"
)

const userTable = `"user"`

var (
	userColumns = []string{
		"id", "name", "username", "email", "is_active", "roles",
		"password_hash", "created_at", "updated_at", "last_login",
	}
	userOrderingFields = map[string]bool{"name": true, "username": true, "email": true, "created_at": true}
)

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     string         `db:"username"`
	Email        string         `db:"email"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    time.Time      `db:"last_login"`
}

func (r userRow) toModel() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username,
		Email:        r.Email,
		IsActive:     r.IsActive,
		Roles:        []string(r.Roles),
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.UTC(),
	}
}

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{repository{exec: exec}}
}

func (repo userRepository) trapWriteErr(err error) error {
	if pgErrCode(err) == codeUniqueViolation {
		return user.ErrUserExists
	}
	return err
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	wrapMsg := "unable to create user"

	if usr.ID == "" {
		usr.ID = uuid.New().String()
	}
	if usr.Roles == nil {
		usr.Roles = []string{}
	}
	q := psql.Insert(userTable).
		Columns(userColumns...).
		Values(
			usr.ID,
			usr.Name,
			usr.Username,
			usr.Email,
			usr.IsActive,
			pq.StringArray(usr.Roles),
			usr.PasswordHash,
			usr.CreatedAt.UTC(),
			usr.UpdatedAt.UTC(),
			usr.LastLogin.UTC(),
		)
	if _, err := repo.execAffected(ctx, repo.getExec(exec), q); err != nil {
		return user.User{}, errors.Wrap(repo.trapWriteErr(err), wrapMsg)
	}
	return usr, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	q := psql.Select(userColumns...).From(userTable).Limit(1)
	switch {
	case filter.ID != "":
		q = q.Where(sq.Eq{"id": filter.ID})
	case filter.Username != "":
		q = q.Where(sq.Eq{"username": filter.Username})
	case filter.Email != "":
		q = q.Where(sq.Eq{"email": filter.Email})
	case filter.UsernameOrEmail != "":
		q = q.Where(sq.Or{sq.Eq{"username": filter.UsernameOrEmail}, sq.Eq{"email": filter.UsernameOrEmail}})
	default:
		return user.User{}, user.ErrNotFound
	}

	var rows []userRow
	if err := repo.selectAll(ctx, repo.getExec(exec), q, &rows); err != nil {
		if pgErrCode(err) == codeInvalidText {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "unable to get user")
	}
	if len(rows) == 0 {
		return user.User{}, user.ErrNotFound
	}
	return rows[0].toModel(), nil
}

func (repo userRepository) QueryUsers(
	ctx context.Context,
	filter *user.QueryFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]user.User, error) {
	q := psql.Select(userColumns...).From(userTable)
	if filter != nil {
		if filter.Search != "" {
			pattern := "%" + filter.Search + "%"
			q = q.Where(sq.Or{
				sq.ILike{"name": pattern},
				sq.ILike{"username": pattern},
				sq.ILike{"email": pattern},
			})
		}
		if filter.IsActive != nil {
			q = q.Where(sq.Eq{"is_active": *filter.IsActive})
		}
	}
	q = q.OrderBy(orderBy(ordering, userOrderingFields)...)

	var rows []userRow
	if err := repo.selectAll(ctx, repo.getExec(exec), q, &rows); err != nil {
		return nil, errors.Wrap(err, "unable to query users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toModel())
	}
	return users, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	wrapMsg := "unable to update user"

	if usr.Roles == nil {
		usr.Roles = []string{}
	}
	q := psql.Update(userTable).
		Set("name", usr.Name).
		Set("username", usr.Username).
		Set("email", usr.Email).
		Set("is_active", usr.IsActive).
		Set("roles", pq.StringArray(usr.Roles)).
		Set("updated_at", usr.UpdatedAt.UTC()).
		Set("last_login", usr.LastLogin.UTC()).
		Where(sq.Eq{"id": usr.ID})
	if usr.PasswordHash != nil {
		q = q.Set("password_hash", usr.PasswordHash)
	}

	n, err := repo.execAffected(ctx, repo.getExec(exec), q)
	if err != nil {
		return user.User{}, errors.Wrap(repo.trapWriteErr(err), wrapMsg)
	}
	if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}
