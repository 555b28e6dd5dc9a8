// Command nerrecon is the command line front end for post-processing and
// reconciling NER predictions.
package main

import (
	"os"

	"github.com/turtacn/NERRecon/internal/interfaces/cli"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
}

func main() {
	os.Exit(cli.Execute())
}

//Personal.AI order the ending
