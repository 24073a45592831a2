package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smarty-pants-inc/botpack/pkg/fetch"
	"github.com/smarty-pants-inc/botpack/pkg/install"
	"github.com/smarty-pants-inc/botpack/pkg/lock"
	"github.com/smarty-pants-inc/botpack/pkg/log"
	"github.com/smarty-pants-inc/botpack/pkg/manifest"
	"github.com/smarty-pants-inc/botpack/pkg/metrics"
	"github.com/smarty-pants-inc/botpack/pkg/version"
)

// Exit codes for the interactive caller.
const (
	exitOK         = 0
	exitFailure    = 1
	exitConfig     = 2 // config/validation errors, sync with conflicts
	exitNetwork    = 4 // network/offline failures
	exitPermission = 6 // trust denials
)

// errConflicts marks a sync that completed but left conflicts behind.
var errConflicts = errors.New("sync completed with conflicts")

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	var denial *install.DenialError
	if errors.As(err, &denial) {
		return exitPermission
	}
	var fetchErr *fetch.Error
	if errors.As(err, &fetchErr) {
		return exitNetwork
	}
	var parseErr *manifest.ParseError
	var validationErr *manifest.ValidationError
	var lockErr *lock.Error
	if errors.As(err, &parseErr) || errors.As(err, &validationErr) || errors.As(err, &lockErr) {
		return exitConfig
	}
	if errors.Is(err, errConflicts) {
		return exitConfig
	}
	return exitFailure
}

var rootCmd = &cobra.Command{
	Use:   "botpack",
	Short: "Botpack - dependency and materialization toolchain for agent assets",
	Long: `Botpack resolves declared agent-asset dependencies, fetches them into a
content-addressed store, records a deterministic lockfile, and projects
skills, commands, agents, and MCP servers into each front-end's expected
directory layout with drift detection and a trust gate.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Botpack version %s\nCommit: %s\n",
		version.Version, version.Commit,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(trustCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Setup(logLevel, logJSON, nil)
	if err := metrics.Register(); err != nil {
		log.Logger.Error().Err(err).Msg("registering metrics")
	}
}
