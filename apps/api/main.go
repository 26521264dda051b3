package main

import (
	"context"
	"database/sql"
	"expvar"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-notices/apps/api/echo"
	"github.com/trezcool/masomo-notices/core"
	"github.com/trezcool/masomo-notices/core/group"
	"github.com/trezcool/masomo-notices/core/notice"
	"github.com/trezcool/masomo-notices/core/user"
	"github.com/trezcool/masomo-notices/services/cache"
	"github.com/trezcool/masomo-notices/services/logger"
	"github.com/trezcool/masomo-notices/storage/database"
	"github.com/trezcool/masomo-notices/storage/database/inmem"
	"github.com/trezcool/masomo-notices/storage/database/sqlx"
)

type repos struct {
	txr     core.TxRunner
	users   user.Repository
	groups  group.Repository
	notices notice.Repository
}

func main() {
	inMemory := flag.Bool("inmem", false, "keep everything in memory (no database)")
	flag.Parse()

	// =========================================================================
	// Set up Dependencies

	conf, err := core.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	// set up loggers
	logger := logsvc.NewRollbarLogger(logsvc.NewStdLogger(os.Stdout, conf), conf)
	logger.Enable(!conf.Debug)

	// set up storage
	var rps repos
	if *inMemory {
		db := inmemdb.Open()
		rps = repos{
			txr:     db,
			users:   inmemdb.NewUserRepository(db),
			groups:  inmemdb.NewGroupRepository(db),
			notices: inmemdb.NewNoticeRepository(db),
		}
	} else {
		db, err := setUpDB(conf)
		if err != nil {
			logger.Fatal("setting up database", err)
		}
		defer func() {
			if err = db.Close(); err != nil {
				logger.Error("closing database", err)
			}
		}()
		rps = repos{
			txr:     database.NewTxRunner(db),
			users:   sqlxrepos.NewUserRepository(db),
			groups:  sqlxrepos.NewGroupRepository(db),
			notices: sqlxrepos.NewNoticeRepository(db),
		}
	}

	// set up cache
	unreadCache := cachesvc.NewUnreadCache(conf.Redis)
	if err = unreadCache.Ping(context.Background()); err != nil {
		logger.Fatal("connecting to redis", err)
	}
	defer func() {
		if err = unreadCache.Close(); err != nil {
			logger.Error("closing redis client", err)
		}
	}()

	// set up services
	usrSvc := user.NewService(rps.users)
	grpSvc := group.NewService(rps.txr, rps.groups)
	var cache notice.UnreadCache
	if unreadCache != nil {
		cache = unreadCache
	}
	noticeSvc := notice.NewService(rps.txr, rps.notices, grpSvc, usrSvc, cache, logger)

	enforcer, err := echoapi.NewEnforcer()
	if err != nil {
		logger.Fatal("setting up rbac", err)
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	notice.InitValidators(validate, translator)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(&echoapi.Deps{
		Conf:       conf,
		Logger:     logger,
		UserSvc:    usrSvc,
		GroupSvc:   grpSvc,
		NoticeSvc:  noticeSvc,
		Enforcer:   enforcer,
		Validate:   validate,
		Translator: translator,
	})

	go server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db, "up"); err != nil {
		return nil, err
	}
	return db, nil
}
