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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianShip/cmd/ship/config"
	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/infra/docker"
	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/infra/health"
	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/infra/process"
	"github.com/AleutianAI/AleutianShip/pkg/ux"
)

// runInfraUp executes `infra up`: start the build's containers and wait
// until both answer protocol probes, exactly like the pipeline's Setup
// Test Infrastructure stage.
func runInfraUp(cmd *cobra.Command, args []string) {
	buildNumber, engine := infraPreamble()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker := health.NewDefaultChecker(health.DefaultCheckerConfig())
	targets := infraTargets(&config.Global, buildNumber)
	if err := infraUp(ctx, engine, checker, targets, infraRecreate); err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
}

// runInfraDown executes `infra down`.
func runInfraDown(cmd *cobra.Command, args []string) {
	_, engine := infraPreamble()

	if err := infraDown(context.Background(), engine, infraRemoveVolumes); err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
}

// runInfraStatus executes `infra status`.
func runInfraStatus(cmd *cobra.Command, args []string) {
	buildNumber, engine := infraPreamble()

	if err := infraStatus(context.Background(), engine, buildNumber, infraJSONOutput); err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
}

// runInfraLogs executes `infra logs <service>`.
func runInfraLogs(cmd *cobra.Command, args []string) {
	_, engine := infraPreamble()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := infraLogs(ctx, engine, args[0], infraFollow, infraTail)
	// Interrupting a followed stream is how the command ends.
	if err != nil && !errors.Is(err, context.Canceled) {
		ux.Error(err.Error())
		os.Exit(1)
	}
}

// infraPreamble resolves the build number and constructs the engine the
// infra subcommands share, exiting on either failure.
func infraPreamble() (int, docker.Engine) {
	buildNumber, err := resolveInfraBuildNumber()
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}

	engine, err := NewDefaultPipelineFactory().createDockerEngine(&config.Global, buildNumber, process.NewDefaultManager())
	if err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
	return buildNumber, engine
}

// resolveInfraBuildNumber returns the build number the infra command
// operates on.
//
// Unlike `ship run` there is no allocation here: the containers being
// managed belong to a specific build, so the number must come from the
// flag or from BUILD_NUMBER.
func resolveInfraBuildNumber() (int, error) {
	buildNumber := infraBuildNumber
	if buildNumber == 0 {
		if raw := os.Getenv(envBuildNumber); raw != "" {
			n, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				return 0, fmt.Errorf("%s must be an integer, got %q", envBuildNumber, raw)
			}
			buildNumber = n
		}
	}
	if buildNumber <= 0 {
		return 0, fmt.Errorf("a build number is required: pass --build-number or set %s", envBuildNumber)
	}
	return buildNumber, nil
}

// infraTargets builds the readiness probe set for one build's
// containers. The database identity is fixed by the test environment
// contract and matches the engine's container provisioning.
func infraTargets(cfg *config.ShipConfig, buildNumber int) []health.Target {
	pgPort := docker.HostPort(cfg.Infra.GetPostgresBasePort(), buildNumber)
	redisPort := docker.HostPort(cfg.Infra.GetRedisBasePort(), buildNumber)
	return []health.Target{
		health.PostgresTarget(pgPort, "gig_router_test", "postgres", "postgres"),
		health.RedisTarget(redisPort),
	}
}

// infraUp starts the containers and waits for readiness.
func infraUp(ctx context.Context, engine docker.Engine, checker health.Checker, targets []health.Target, recreate bool) error {
	up, err := engine.Up(ctx, docker.UpOptions{Recreate: recreate})
	if err != nil {
		return err
	}
	for _, container := range up.Started {
		ux.Info(fmt.Sprintf("%s -> localhost:%d", container.Name, container.HostPort))
	}

	wait, err := checker.WaitUntilReady(ctx, targets, health.DefaultWaitOptions())
	if err != nil {
		return err
	}
	if !wait.Success {
		return fmt.Errorf("containers started but never became ready: %s",
			strings.Join(wait.FailedCritical, ", "))
	}
	ux.Success(fmt.Sprintf("test infrastructure ready in %v", wait.Duration.Round(time.Millisecond)))
	return nil
}

// infraDown removes the containers and reports what happened to each.
func infraDown(ctx context.Context, engine docker.Engine, removeVolumes bool) error {
	down, err := engine.Down(ctx, docker.DownOptions{RemoveVolumes: removeVolumes})
	if err != nil {
		return err
	}
	for _, name := range down.Removed {
		ux.Success(fmt.Sprintf("removed %s", name))
	}
	for _, name := range down.AlreadyGone {
		ux.Muted(fmt.Sprintf("%s was already gone", name))
	}
	if down.NetworkRemoved {
		ux.Muted("build network removed")
	}
	for _, message := range down.Errors {
		ux.Warning(message)
	}
	return nil
}

// infraStatus prints the container states, as a table or as JSON.
func infraStatus(ctx context.Context, engine docker.Engine, buildNumber int, asJSON bool) error {
	status, err := engine.Status(ctx)
	if err != nil {
		return err
	}

	if asJSON {
		encoded, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(encoded))
		return nil
	}

	fmt.Print(formatInfraStatus(status, buildNumber))
	return nil
}

// formatInfraStatus renders the human-readable status table.
func formatInfraStatus(status *docker.InfraStatus, buildNumber int) string {
	if len(status.Containers) == 0 {
		return fmt.Sprintf("no containers for build #%d\n", buildNumber)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%-10s %-26s %-10s %s\n", "SERVICE", "NAME", "STATE", "IMAGE"))
	for _, container := range status.Containers {
		b.WriteString(fmt.Sprintf("%-10s %-26s %-10s %s\n",
			container.Service, container.Name, container.State, container.Image))
	}
	b.WriteString(fmt.Sprintf("\n%d running, %d stopped", status.Running, status.Stopped))
	if status.Unhealthy > 0 {
		b.WriteString(fmt.Sprintf(", %d unhealthy", status.Unhealthy))
	}
	b.WriteString("\n")
	return b.String()
}

// infraLogs streams one container's logs to stdout.
func infraLogs(ctx context.Context, engine docker.Engine, service string, follow bool, tail int) error {
	if service != docker.ServicePostgres && service != docker.ServiceRedis {
		return fmt.Errorf("unknown service %q: expected %s or %s",
			service, docker.ServicePostgres, docker.ServiceRedis)
	}
	return engine.Logs(ctx, docker.LogsOptions{
		Service: service,
		Follow:  follow,
		Tail:    tail,
	}, os.Stdout)
}
