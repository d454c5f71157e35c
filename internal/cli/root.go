package cli

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	applog "travelbook/internal/log"
)

type globalOptions struct {
	JSON bool
}

type commandDeps struct {
	out     io.Writer
	open    AppOpener
	globals *globalOptions
}

// NewRootCommand builds the travelbook command tree. Every command runs
// against an App obtained from open.
func NewRootCommand(out io.Writer, open AppOpener) *cobra.Command {
	globals := &globalOptions{}
	deps := commandDeps{out: out, open: open, globals: globals}

	cmd := &cobra.Command{
		Use:           "travelbook",
		Short:         "Track trips and travel expenses",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageErrorf("%v", err)
	})
	cmd.PersistentFlags().BoolVar(&globals.JSON, "json", false, "Print results as JSON")

	cmd.AddCommand(
		newTripCommand(deps),
		newExpenseCommand(deps),
		newStatsCommand(deps),
		newWatchCommand(deps),
		newCategoriesCommand(deps),
	)
	return cmd
}

// withApp opens the App for one command run and closes it afterwards.
func withApp(ctx context.Context, deps commandDeps, fn func(context.Context, *App) error) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := deps.open(ctx)
	if err != nil {
		return mapCommandError(err)
	}
	defer func() {
		if cerr := app.Close(); cerr != nil && err == nil {
			err = mapCommandError(cerr)
		}
	}()
	if app.Logger != nil {
		ctx = applog.NewContext(ctx, app.Logger)
	}
	return mapCommandError(fn(ctx, app))
}

func printJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func noArgs(name string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != 0 {
			return usageErrorf("%s does not accept positional arguments", name)
		}
		return nil
	}
}

func exactArgs(n int, usage string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != n {
			return usageErrorf("usage: %s", usage)
		}
		return nil
	}
}
