package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/skillsift/internal/logger"
	"github.com/kailas-cloud/skillsift/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "sifteval",
	Short: "Offline tooling for the skillsift recommendation pipeline",
	Long: `sifteval prepares catalog snapshots and measures recommendation quality.

The embed command precomputes document embeddings for a catalog snapshot.
The run command replays a labeled query set through the pipeline and
reports Recall@K and MAP@K.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println(version.String())
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug logging")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(embedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// cliLogger builds the console logger shared by subcommands. Default level
// keeps pipeline internals quiet so stdout stays parseable.
func cliLogger(cmd *cobra.Command) (*zap.Logger, error) {
	level := "warn"
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		level = "debug"
	}
	return logpkg.NewLogger("local", level)
}
