package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"campuslink/internal/models"
)

var (
	readFileFunc = os.ReadFile // mockable

	errHelp = errors.New("help provided")
)

type courseUpserter interface {
	Upsert(ctx context.Context, courses []models.Course) error
}

type counterReconciler interface {
	ReconcileAll(ctx context.Context) (int, error)
}

type commandLine struct {
	migrate    func() error
	courses    courseUpserter
	reconciler counterReconciler
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate - create or update the database schema")
	fmt.Println("  reconcile - recount like/dislike counters of every post and comment from the vote rows")
	fmt.Println("  seed-courses -file FILE - load the course catalogue from a YAML file")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	seedCmd := flag.NewFlagSet("seed-courses", flag.ContinueOnError)
	seedFile := seedCmd.String("file", "", "YAML file with a top-level courses list.")

	ctx := context.Background()

	switch args[1] {
	case "migrate":
		if err := cli.migrate(); err != nil {
			return err
		}
		logger.Println("migration completed")
		return nil
	case "reconcile":
		drifted, err := cli.reconciler.ReconcileAll(ctx)
		if err != nil {
			return err
		}
		logger.Printf("reconciliation done, %d targets corrected", drifted)
		return nil
	case "seed-courses":
		if err := seedCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *seedFile == "" {
			seedCmd.Usage()
			return errHelp
		}
		n, err := cli.seedCourses(ctx, *seedFile)
		if err != nil {
			return err
		}
		logger.Printf("%d courses loaded", n)
		return nil
	default:
		cli.printUsage()
		return errHelp
	}
}
