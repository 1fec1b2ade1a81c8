package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/graphine/graphine/pkg/enginelog"
)

var (
	// Global flags
	verbose bool
	logger  enginelog.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "graphine",
	Short: "An out-of-core, partition-parallel PIE graph compute engine",
	Long: `graphine drives every fragment of a CSR-partitioned workspace through
a PIE (Parallel Evaluation / Incremental Evaluation) program to a global
fixpoint, loading and discharging fragments through a bounded buffer so
the working set never needs to fit in memory all at once.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logLevel := enginelog.LevelInfo
		if verbose {
			logLevel = enginelog.LevelDebug
		}
		logger = enginelog.NewDefaultLogger(logLevel, os.Stdout)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug-level logging")

	binName := BinName()
	rootCmd.Example = `  # Run BFS from vertex 1 over a workspace on local disk
  ` + binName + ` run -w ./workspace --root-id 1

  # Run with wider worker pools and a larger resident-fragment budget
  ` + binName + ` run -w ./workspace --root-id 1 --compute-workers 8 --buffer-size 16

  # Run against a workspace config file instead of flags
  ` + binName + ` run -c ./graphine.yaml`
}

// GetLogger returns the configured logger.
func GetLogger() enginelog.Logger {
	return logger
}

// BinName returns the base name of the current executable.
func BinName() string {
	return filepath.Base(os.Args[0])
}
