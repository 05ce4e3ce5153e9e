package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/tuyishimwe/umurinzi/core/alert"
	"github.com/tuyishimwe/umurinzi/core/risk"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db       *sql.DB
	riskSvc  risk.Service
	alertSvc alert.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate [up|down|status|...] - run database migrations")
	fmt.Println("  sweep -school SCHOOL_ID [-actor ACTOR_ID] - run risk detection for a whole school")
	fmt.Println("  processpending - re-attempt delivery of retryable alert messages")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	sweepCmd := flag.NewFlagSet("sweep", flag.ExitOnError)
	sweepSchool := sweepCmd.String("school", "", "The school to sweep.")
	sweepActor := sweepCmd.String("actor", "", "The ID of the staff member triggering the sweep.")

	switch args[1] {
	case "migrate":
		return cli.migrate(args[2:])
	case "sweep":
		if err := sweepCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *sweepSchool == "" {
			sweepCmd.Usage()
			return errHelp
		}
		return cli.sweep(*sweepSchool, *sweepActor)
	case "processpending":
		return cli.processPending()
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) sweep(schoolID, actorID string) error {
	ctx := context.Background()
	run, err := cli.riskSvc.DetectForSchool(ctx, schoolID, actorID)
	if err != nil {
		return err
	}
	fmt.Printf("sweep %s started for school %s\n", run.ID, schoolID)

	// the run detaches from the caller; wait for it here or process exit
	// would discard it mid-flight
	for run.Status != risk.SweepDone {
		time.Sleep(50 * time.Millisecond)
		if run, err = cli.riskSvc.GetSweepRun(ctx, run.ID); err != nil {
			return err
		}
	}
	fmt.Printf("sweep %s done: scanned=%d detected=%d created=%d errors=%d\n",
		run.ID, run.Summary.StudentsScanned, run.Summary.RisksDetected, run.Summary.FlagsCreated, len(run.Summary.Errors))
	return nil
}

func (cli *commandLine) processPending() error {
	n, err := cli.alertSvc.ProcessPendingMessages(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("re-attempted %d messages\n", n)
	return nil
}
