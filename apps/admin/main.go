package main

import (
	"fmt"
	"os"

	"github.com/trezcool/masomo-notices/core"
	"github.com/trezcool/masomo-notices/services/logger"
	"github.com/trezcool/masomo-notices/storage/database"
	"github.com/trezcool/masomo-notices/storage/database/sqlx"
)

func main() {
	conf, err := core.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	logger := logsvc.NewRollbarLogger(logsvc.NewStdLogger(os.Stdout, conf), conf)
	logger.Enable(false)

	// set up DB
	if err = database.CreateIfNotExist(conf); err != nil {
		logger.Fatal("creating database", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}

	// start CLI
	cli := commandLine{
		db:      db,
		usrRepo: sqlxrepos.NewUserRepository(db),
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error("running command", err)
		}
		os.Exit(1)
	}
}
