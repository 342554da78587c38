// Command curator runs selection, usage recording and fixture imports
// against the configured store without starting the HTTP server.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool

	rootCmd = &cobra.Command{
		Use:          "curator",
		Short:        "Select and publish travel content bundles",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(
		selectCommand(),
		recordUsageCommand(),
		importCommand(),
		statsCommand(),
		tokenCommand(),
	)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
