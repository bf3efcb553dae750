// Package cmd implements the terradash command line interface.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/terradash/terradash/internal/observability"
)

// VersionInfo carries build-time identification injected by the linker.
type VersionInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

var versionInfo = VersionInfo{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata for the version command.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "terradash",
	Short: "Infrastructure provisioning job orchestrator",
	Long: `terradash runs infrastructure provisioning jobs behind a dashboard API.

Jobs are created from a curated template catalog or an uploaded project
archive, executed asynchronously, and tracked with full logs and captured
outputs through to teardown.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return observability.Init(logLevel)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		observability.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
