package logsvc

import (
	"io"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"github.com/sirupsen/logrus"

	"github.com/trezcool/masomo-notices/core"
	"github.com/trezcool/masomo-notices/core/user"
)

// RollbarLogger reports to Rollbar and writes structured entries to a logrus logger.
type RollbarLogger struct {
	std *logrus.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *logrus.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std}
}

// NewStdLogger builds the logrus logger used by the app: JSON outside of debug mode.
func NewStdLogger(out io.Writer, conf *core.Config) *logrus.Logger {
	std := logrus.New()
	std.SetOutput(out)
	if conf.Debug {
		std.SetLevel(logrus.DebugLevel)
		std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		std.SetLevel(logrus.InfoLevel)
		std.SetFormatter(&logrus.JSONFormatter{})
	}
	return std
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// expected fmt: msg | error, map[string]interface{}, user.User
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var usrSet bool
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		// set logged in User
		if usr, ok := arg.(user.User); ok {
			if !usrSet { // only set one User
				rollbar.SetPerson(usr.ID, usr.Username, usr.Email)
				usrSet = true
			}
		} else {
			newArgs = append(newArgs, arg)
		}
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	return newArgs
}

// entry turns args into logrus fields.
func (l RollbarLogger) entry(args []interface{}) *logrus.Entry {
	fields := make(logrus.Fields)
	var errs []error
	for _, arg := range args {
		switch a := arg.(type) {
		case error:
			errs = append(errs, a)
		case map[string]interface{}:
			for k, v := range a {
				fields[k] = v
			}
		case user.User:
			fields["user_id"] = a.ID
			fields["username"] = a.Username
		default:
			fields["extra"] = a
		}
	}
	e := l.std.WithFields(fields)
	switch len(errs) {
	case 0:
	case 1:
		e = e.WithError(errs[0])
	default:
		e = e.WithField(logrus.ErrorKey, errs)
	}
	return e
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.entry(args).Debug(msg)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.entry(args).Info(msg)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.entry(args).Warn(msg)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.entry(args).Error(msg)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	rollbar.Wait()
	l.entry(args).Fatal(msg)
}
