package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-notices/core/user"
	"github.com/trezcool/masomo-notices/storage/database/inmem"
	"github.com/trezcool/masomo-notices/tests"
)

var usrRepo user.Repository

func setup(t *testing.T) *commandLine {
	usrRepo = inmemdb.NewUserRepository(inmemdb.Open())

	// start CLI
	return &commandLine{usrRepo: usrRepo}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string
	wantErr    error
	wantErrStr string
}

func (tt cliTest) check(t *testing.T, err error) {
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	var gotCommand string
	migrateFunc = func(db *sql.DB, command string, args ...string) error {
		gotCommand = command
		switch command {
		case "up", "up-by-one", "down", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
			if len(tt.args) > 1 {
				assert.Equal(t, tt.args[1], gotCommand)
			}
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no email", args: []string{"adduser", "-username", "jdoe"}, pwd: "pwd", wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-username", "jdoe", "-email", "jdoe@test.cd"}, wantErr: errHelp},
		{
			name:       "unknown role",
			args:       []string{"adduser", "-username", "jdoe", "-email", "jdoe@test.cd", "-role", "janitor"},
			pwd:        "pwd",
			wantErrStr: `unknown role "janitor"`,
		},
		{name: "teacher", args: []string{"adduser", "-username", "JDoe", "-email", "jdoe@test.cd", "-name", "John Doe", "-role", "teacher"}, pwd: "pwd"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		mockPassword(tt.pwd)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	usr, err := usrRepo.GetUser(ctx, user.GetFilter{Username: "jdoe"})
	require.NoError(t, err)
	assert.Equal(t, "John Doe", usr.Name)
	assert.Equal(t, "jdoe@test.cd", usr.Email)
	assert.Equal(t, []string{user.RoleTeacher}, usr.Roles)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword("pwd"))

	// promoting an existing user keeps their identity
	mockPassword("new-pwd")
	require.NoError(t, cli.run([]string{"admin", "adduser", "-username", "other", "-email", "jdoe@test.cd", "-admin"}))
	promoted, err := usrRepo.GetUser(ctx, user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.Equal(t, user.AllRoles, promoted.Roles)
	assert.Equal(t, "jdoe", promoted.Username)
	assert.Equal(t, "John Doe", promoted.Name)
	assert.NoError(t, promoted.CheckPassword("new-pwd"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@test.cd", "mdr", nil, true)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, pwd: "lol", wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, pwd: "lol"},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, pwd: "lmao"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		mockPassword(tt.pwd)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			tt.check(t, err)
			if err == nil {
				refreshedUsr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
				require.NoError(t, err)
				assert.False(t, bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash), "failed to update new password")
				assert.NoError(t, refreshedUsr.CheckPassword(tt.pwd))
			}
		})
	}
}
