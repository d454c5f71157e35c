package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"travelbook/internal/cli"
)

func main() {
	ctx, stop := cli.SignalContext(context.Background())
	cmd := cli.NewRootCommand(os.Stdout, cli.OpenApp)
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var withExitCode interface{ ExitCode() int }
		if errors.As(err, &withExitCode) {
			os.Exit(withExitCode.ExitCode())
		}
		os.Exit(1)
	}
}
