package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var verbose bool

// rootCmd is the root command on which the subcommands are run
var rootCmd = &cobra.Command{
	Use:          "unsea",
	Short:        "Unsea unpacks Node.js single executable applications",
	Example:      "unsea extract ./app\nunsea inspect ./app",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(extractCmd, inspectCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// newLogger builds the development logger the subcommands report through.
func newLogger() (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

// Execute tries to run the input command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}
