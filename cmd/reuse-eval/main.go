package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"

	"github.com/ipfs-shipyard/cdc-reuse/internal/evaluator"
	"github.com/ipfs-shipyard/cdc-reuse/internal/evaluator/util"
	"github.com/ipfs-shipyard/cdc-reuse/reuse"
)

func main() {

	// Parse CLI and initialize everything
	// On error it will exit on its own
	ev := evaluator.NewFromArgv(os.Args)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var profileStop func()
	// starts profiler if available
	if util.ProfileStartStop != nil {
		profileStop = util.ProfileStartStop()
	}

	var tab *reuse.Tabulation
	var runErr error
	if before, after, isFilePair := ev.FilePair(); isFilePair {
		tab, runErr = ev.CompareFiles(ctx, before, after)
	} else {
		tab, runErr = ev.Run(ctx)
	}

	if profileStop != nil {
		profileStop()
	}
	if runErr != nil {
		logrus.Fatalf("Evaluation failed: %s", runErr)
	}

	if err := ev.OutputSummary(tab); err != nil {
		logrus.Fatalf("Unable to output summary: %s", err)
	}
}
