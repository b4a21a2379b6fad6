package main

import (
	"log"
	"os"

	"campuslink/internal/config"
	"campuslink/internal/db"
	"campuslink/internal/repositories"
	"campuslink/internal/services"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	cfg := config.Load()
	conn, err := db.Open(cfg.DatabaseURL)
	errAndDie(err)

	retry := repositories.RetryPolicy{Attempts: cfg.Store.RetryAttempts, Backoff: cfg.Store.RetryBackoff}
	cli := commandLine{
		migrate:    func() error { return db.Migrate(conn) },
		courses:    repositories.NewCourseRepository(conn, retry),
		reconciler: services.NewReconciler(repositories.NewVoteRepository(conn, retry), nil, 0),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
