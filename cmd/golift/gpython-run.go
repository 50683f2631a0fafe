package main

import (
	"fmt"
	"io"
	"time"

	"github.com/2x3systems/golift/pylift"
	"github.com/go-python/gpython/py"
	"github.com/go-python/gpython/repl"
	"github.com/go-python/gpython/repl/cli"
	"github.com/spf13/cobra"

	_ "github.com/go-python/gpython/stdlib"
)

func pyCmd() *cobra.Command {
	var startup string

	cmd := &cobra.Command{
		Use:   "py [script.py]",
		Short: "Run a gpython script with the _pylift module available, or start a REPL",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pathname := ""
			if len(args) > 0 {
				pathname = args[0]
			}
			return runGPython(cmd.OutOrStdout(), pathname, startup)
		},
	}

	cmd.Flags().StringVar(&startup, "startup", "", "script run in the REPL's module before the first prompt")
	return cmd
}

func runGPython(out io.Writer, pathname, startup string) error {
	ctx := py.NewContext(py.DefaultContextOpts())

	var (
		err error
	)
	if len(pathname) == 0 {
		replCtx := repl.New(ctx)

		if startup != "" {
			_, err = pylift.RunFile(ctx, startup, replCtx.Module)
		}
		if err == nil {
			cli.RunREPL(replCtx)
		}

	} else {
		startTime := time.Now()
		fmt.Fprintf(out, "<<<>>>   executing '%s'   <<<>>>\n", pathname)

		_, err = pylift.RunFile(ctx, pathname, nil)

		if err == nil {
			elapsed := time.Since(startTime)
			fmt.Fprintf(out, "<<<>>>   execution complete: %v   <<<>>>\n", elapsed)
		}

	}

	ctx.Close()
	<-ctx.Done()

	if err != nil {
		py.TracebackDump(err)
	}
	return err
}
