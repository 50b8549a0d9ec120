// Command healtharchive is the single binary for the archive pipeline:
// every operator-facing CLI verb (seed-sources, create-job,
// start-worker, the recovery tooling) lives behind one cobra root so
// the worker, the watchdog loops, and ad hoc operator commands all
// share one config file and one build.
package main

import (
	"os"

	"github.com/jonesrussell/healtharchive/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
