package main

import (
	"context"
	"os"

	"github.com/kailas-cloud/vecdesk/internal/transport/cli"
)

func main() {
	if err := cli.NewRootCommand(cli.DefaultOpener).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
