package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-notices/core"
	"github.com/trezcool/masomo-notices/core/user"
)

var roleNames = map[string]string{
	"owner":     user.RoleAdminOwner,
	"principal": user.RoleAdminPrincipal,
	"admin":     user.RoleAdmin,
	"teacher":   user.RoleTeacher,
	"student":   user.RoleStudent,
}

type newUserArgs struct {
	name, uname, email, pwd, role string
	isAdmin                       bool
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(args newUserArgs) error {
	ctx := context.Background()
	uname := core.CleanString(args.uname, true /* lower */)
	email := core.CleanString(args.email, true /* lower */)

	roles := user.AllRoles
	if !args.isAdmin {
		role, ok := roleNames[args.role]
		if !ok {
			return fmt.Errorf("unknown role %q", args.role)
		}
		roles = []string{role}
	}

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Username: uname})
	if errors.Cause(err) == user.ErrNotFound {
		usr, err = cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
	}
	exists := err == nil
	if err != nil && errors.Cause(err) != user.ErrNotFound {
		return errors.Wrap(err, "finding user")
	}

	now := time.Now().UTC()
	if !exists {
		usr = user.User{Username: uname, Email: email, CreatedAt: now}
	}
	if name := core.CleanString(args.name); name != "" {
		usr.Name = name
	}
	usr.Roles = roles
	usr.IsActive = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(args.pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}

	if exists {
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
	} else {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	}
	return errors.Wrap(err, "saving user")
}
