// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianShip/cmd/ship/config"
	"github.com/AleutianAI/AleutianShip/pkg/logging"
)

// cliVersion is stamped via -ldflags at release time; source builds say "dev".
var cliVersion = "dev"

// --- Global Command Variables ---
var (
	// Persistent flags
	cfgPath       string
	logLevelName  string
	logDirPath    string
	jsonLogs      bool
	statusAddr    string
	workspaceRoot string

	// run flags
	runRepoURL       string
	runBranch        string
	runSkipTests     bool
	runSkipSonarQube bool
	runBuildNumber   int

	// infra flags
	infraBuildNumber   int
	infraRecreate      bool
	infraRemoveVolumes bool
	infraJSONOutput    bool
	infraFollow        bool
	infraTail          int

	// history flags
	historyLimit      int
	historyKeep       int
	historyJSONOutput bool

	// doctor flags
	doctorJSONOutput bool

	rootCmd = &cobra.Command{
		Use:   "ship",
		Short: "CI pipeline runner for the gig-router Django application",
		Long: `Ship runs the gig-router build pipeline on any machine with docker:
checkout, ephemeral Postgres/Redis, migrations, tests, quality scans,
SonarQube analysis, packaging, image build, and registry push, with the
same stages, order, and error policy as the Jenkins job it replaces.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
			if err := loadConfig(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			// Flag wins over the config file and the built-in default.
			if workspaceRoot != "" {
				config.Global.Pipeline.WorkspaceRoot = workspaceRoot
			}
		},
	}

	// --- Pipeline ---
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the full build pipeline",
		Run:   runPipelineCommand, // Defined in cmd_run.go
	}

	// --- Infrastructure ---
	infraCmd = &cobra.Command{
		Use:   "infra",
		Short: "Manage a build's ephemeral Postgres/Redis pair",
	}
	infraUpCmd = &cobra.Command{
		Use:   "up",
		Short: "Start the ephemeral containers for a build number",
		Run:   runInfraUp, // Defined in cmd_infra.go
	}
	infraDownCmd = &cobra.Command{
		Use:   "down",
		Short: "Remove the ephemeral containers for a build number",
		Run:   runInfraDown, // Defined in cmd_infra.go
	}
	infraStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the state of a build's containers",
		Run:   runInfraStatus, // Defined in cmd_infra.go
	}
	infraLogsCmd = &cobra.Command{
		Use:   "logs [postgres|redis]",
		Short: "Stream logs from one of the ephemeral containers",
		Args:  cobra.ExactArgs(1),
		Run:   runInfraLogs, // Defined in cmd_infra.go
	}

	// --- History ---
	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded builds",
	}
	historyListCmd = &cobra.Command{
		Use:   "list",
		Short: "List recorded builds, newest first",
		Run:   runHistoryList, // Defined in cmd_history.go
	}
	historyShowCmd = &cobra.Command{
		Use:   "show [build-number]",
		Short: "Show one build's stages, reports, and artifact",
		Args:  cobra.ExactArgs(1),
		Run:   runHistoryShow, // Defined in cmd_history.go
	}
	historyPruneCmd = &cobra.Command{
		Use:   "prune",
		Short: "Delete the oldest build records",
		Run:   runHistoryPrune, // Defined in cmd_history.go
	}

	// --- Preflight ---
	doctorCmd = &cobra.Command{
		Use:   "doctor",
		Short: "Check that required tools and credentials are in place",
		Run:   runDoctor, // Defined in cmd_doctor.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the ship version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ship %s\n", cliVersion)
		},
	}
)

// init wires the command tree and registers every flag.
func init() {
	rootCmd.Version = cliVersion

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "",
		"Config file path (default ~/.aleutianship/ship.yaml, created on first run)")
	rootCmd.PersistentFlags().StringVar(&logLevelName, "log-level", "info",
		"Log level: debug, info, warn, or error")
	rootCmd.PersistentFlags().StringVar(&logDirPath, "log-dir", "",
		"Also write JSON logs to this directory")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false,
		"Write stderr logs as JSON")
	rootCmd.PersistentFlags().StringVar(&statusAddr, "status-addr", "",
		"Serve build status on this address during a run (e.g. 127.0.0.1:8484)")
	rootCmd.PersistentFlags().StringVar(&workspaceRoot, "workspace", "",
		"Workspace root for checkouts and artifacts (default ~/.aleutianship/workspace)")

	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runRepoURL, "repo", "",
		"Git repository URL (falls back to $GIT_REPO_URL, then the config)")
	runCmd.Flags().StringVar(&runBranch, "branch", "",
		"Branch to build (falls back to $GIT_BRANCH, then the config)")
	runCmd.Flags().BoolVar(&runSkipTests, "skip-tests", false,
		"Skip the Unit Tests stage (or set $SKIP_TESTS=true)")
	runCmd.Flags().BoolVar(&runSkipSonarQube, "skip-sonarqube", false,
		"Skip SonarQube Analysis and Quality Gate (or set $SKIP_SONARQUBE=true)")
	runCmd.Flags().IntVar(&runBuildNumber, "build-number", 0,
		"Build number (falls back to $BUILD_NUMBER; allocated from history when absent)")

	rootCmd.AddCommand(infraCmd)
	infraCmd.PersistentFlags().IntVar(&infraBuildNumber, "build-number", 0,
		"Build number the containers belong to (falls back to $BUILD_NUMBER)")
	infraCmd.AddCommand(infraUpCmd)
	infraUpCmd.Flags().BoolVar(&infraRecreate, "recreate", false,
		"Remove leftover same-named containers before starting")
	infraCmd.AddCommand(infraDownCmd)
	infraDownCmd.Flags().BoolVar(&infraRemoveVolumes, "volumes", false,
		"Also remove anonymous volumes")
	infraCmd.AddCommand(infraStatusCmd)
	infraStatusCmd.Flags().BoolVar(&infraJSONOutput, "json", false,
		"Output as JSON for scripting")
	infraCmd.AddCommand(infraLogsCmd)
	infraLogsCmd.Flags().BoolVarP(&infraFollow, "follow", "f", false,
		"Stream logs continuously")
	infraLogsCmd.Flags().IntVar(&infraTail, "tail", 0,
		"Show only the last N lines (0 = all)")

	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20,
		"Maximum builds to list (0 = all)")
	historyListCmd.Flags().BoolVar(&historyJSONOutput, "json", false,
		"Output as JSON for scripting")
	historyCmd.AddCommand(historyShowCmd)
	historyShowCmd.Flags().BoolVar(&historyJSONOutput, "json", false,
		"Output as JSON for scripting")
	historyCmd.AddCommand(historyPruneCmd)
	historyPruneCmd.Flags().IntVar(&historyKeep, "keep", 50,
		"Number of newest builds to keep")

	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorJSONOutput, "json", false,
		"Output as JSON for scripting")

	rootCmd.AddCommand(versionCmd)
}

// setupLogging builds the process logger from the persistent flags and
// installs it as the slog default, which every package below picks up.
func setupLogging() {
	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(logLevelName),
		LogDir:  logDirPath,
		Service: "ship",
		JSON:    jsonLogs,
	})
	slog.SetDefault(logger.Slog())
}

// loadConfig populates config.Global from --config or the default path.
func loadConfig() error {
	if cfgPath != "" {
		return config.LoadFrom(cfgPath)
	}
	return config.Load()
}
