package commands

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rankd",
	Short: "Multi-factor stock ranking engine",
	Long: `rankd computes per-market daily stock rankings from weighted,
cross-sectionally normalized factors and serves them over HTTP.

Usage:
  go run ./cmd/rankd [command]

Examples:
  go run ./cmd/rankd api
  go run ./cmd/rankd scheduler start
  go run ./cmd/rankd recompute --market KR
  go run ./cmd/rankd seed`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}
