package main

import (
	"github.com/spf13/cobra"
)

var (
	BUILD = "development"
	// persistent flags
	debug      bool
	version    bool
	loggerMode string
)

var rootCmd = &cobra.Command{
	Use:          "convoy",
	Short:        "convoy multi-arch image build orchestrator",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error { // default to build
		return runBuild(args)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debug, "x", "x", false, "logs at debug level")
	rootCmd.PersistentFlags().BoolVar(&version, "version", false, "print build version and exit")
	rootCmd.PersistentFlags().StringVar(&loggerMode, "logger", "dev", "logger mode (dev|plain)")

	rootCmd.AddCommand(newBuildCmd())
	rootCmd.AddCommand(newSchemaCmd())
	rootCmd.AddCommand(newConfigCmd())
}
