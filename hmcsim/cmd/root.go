// Package cmd provides the command-line interface of hmcsim.
package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

var logLevel string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hmcsim",
	Short: "hmcsim is a cycle-accurate Hybrid Memory Cube simulator.",
	Long: `hmcsim simulates a Hybrid Memory Cube cycle by cycle: its ` +
		`serialized links with retry and power management, the crossbar, ` +
		`and the DRAM vaults. Workloads come from a random generator or a ` +
		`trace file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return err
		}

		logrus.SetLevel(level)

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"Log level (trace, debug, info, warn, error, fatal, panic)")
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}
}
