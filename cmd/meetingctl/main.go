package main

import (
	"fmt"
	"os"

	"github.com/example/meeting-lifecycle/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "meetingctl:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
