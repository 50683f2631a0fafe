// Command golift colour-passes factor graphs and hosts the _pylift gpython module.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/2x3systems/golift/config"
	"github.com/plan-systems/klog"
	"github.com/spf13/cobra"
)

const (
	Version = "1.2024.1"
	appName = "golift"
)

func main() {
	err := rootCmd().Execute()
	klog.Flush()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Colour passing over factor graphs",
		Long: `golift groups the random variables and factors of a factor graph into colour classes
whose members are indistinguishable, the first step of lifted probabilistic inference.

Factors whose potential tables match up to a reordering of their arguments (and optionally a
positive scalar) share a colour, and symmetric argument positions are detected and ignored.`,
		SilenceUsage: true,
	}

	fset := flag.NewFlagSet("", flag.ContinueOnError)
	klog.InitFlags(fset)
	fset.Set("logtostderr", "true")
	klog.SetFormatter(&klog.FmtConstWidth{
		FileNameCharWidth: 16,
		UseColor:          true,
	})
	cmd.PersistentFlags().AddGoFlagSet(fset)

	cmd.AddCommand(liftCmd())
	cmd.AddCommand(pyCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
		},
	})

	return cmd
}

// loadConfig returns the config at the given path, or the defaults if path is empty.
//
// A config's log verbosity applies unless -v was given explicitly.
func loadConfig(cmd *cobra.Command, path string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = config.LoadFromFile(path); err != nil {
			return nil, err
		}
	}

	if v := cmd.Flags().Lookup("v"); v != nil && !v.Changed && cfg.Log.Verbosity > 0 {
		v.Value.Set(strconv.Itoa(cfg.Log.Verbosity))
	}
	return cfg, nil
}
