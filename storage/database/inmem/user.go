package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/masomo-notices/core"
	"github.com/trezcool/masomo-notices/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

// usernameTaken must be called with the lock held.
func (repo *userRepository) usernameTaken(usr user.User) bool {
	for _, u := range repo.db.users {
		if u.ID == usr.ID {
			continue
		}
		if u.Username == usr.Username || u.Email == usr.Email {
			return true
		}
	}
	return false
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if usr.ID == "" {
		usr.ID = uuid.New().String()
	}
	if repo.usernameTaken(usr) {
		return user.User{}, user.ErrUserExists
	}
	repo.db.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.db.users[filter.ID]; ok {
			return usr, nil
		}
		return user.User{}, user.ErrNotFound
	}
	for _, usr := range repo.db.users {
		switch {
		case filter.Username != "" && usr.Username == filter.Username,
			filter.Email != "" && usr.Email == filter.Email,
			filter.UsernameOrEmail != "" && (usr.Username == filter.UsernameOrEmail || usr.Email == filter.UsernameOrEmail):
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsers(
	_ context.Context,
	filter *user.QueryFilter,
	ordering []core.DBOrdering,
	_ ...core.DBExecutor,
) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := make([]user.User, 0, len(repo.db.users))
	for _, usr := range repo.db.users {
		if filter != nil {
			if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
				continue
			}
			if s := strings.ToLower(filter.Search); s != "" &&
				!strings.Contains(strings.ToLower(usr.Name), s) &&
				!strings.Contains(usr.Username, s) &&
				!strings.Contains(usr.Email, s) {
				continue
			}
		}
		users = append(users, usr)
	}

	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range ordering {
			a, b := userField(users[i], ord.Field), userField(users[j], ord.Field)
			if a == b {
				continue
			}
			if ord.Ascending {
				return a < b
			}
			return a > b
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

func userField(usr user.User, field string) string {
	switch field {
	case "name":
		return usr.Name
	case "username":
		return usr.Username
	case "email":
		return usr.Email
	case "created_at":
		return usr.CreatedAt.Format("20060102150405.000000000")
	default:
		return usr.ID
	}
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if repo.usernameTaken(usr) {
		return user.User{}, user.ErrUserExists
	}
	if usr.PasswordHash == nil {
		usr.PasswordHash = orig.PasswordHash
	}
	usr.CreatedAt = orig.CreatedAt
	repo.db.users[usr.ID] = usr
	return usr, nil
}
