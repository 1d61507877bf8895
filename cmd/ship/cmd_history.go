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
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianShip/cmd/ship/internal/history"
	"github.com/AleutianAI/AleutianShip/pkg/ux"
)

// timestampLayout renders record timestamps for humans. The stored
// values stay RFC 3339 in the JSON output.
const timestampLayout = "2006-01-02 15:04:05 MST"

// runHistoryList executes `history list`.
func runHistoryList(cmd *cobra.Command, args []string) {
	os.Exit(withHistoryStore(func(ctx context.Context, store history.Store) error {
		return historyList(ctx, store, historyLimit, historyJSONOutput)
	}))
}

// runHistoryShow executes `history show <build-number>`.
func runHistoryShow(cmd *cobra.Command, args []string) {
	number, err := strconv.Atoi(args[0])
	if err != nil || number <= 0 {
		ux.Error(fmt.Sprintf("build number must be a positive integer, got %q", args[0]))
		os.Exit(1)
	}

	os.Exit(withHistoryStore(func(ctx context.Context, store history.Store) error {
		return historyShow(ctx, store, number, historyJSONOutput)
	}))
}

// runHistoryPrune executes `history prune`.
func runHistoryPrune(cmd *cobra.Command, args []string) {
	os.Exit(withHistoryStore(func(ctx context.Context, store history.Store) error {
		return historyPrune(ctx, store, historyKeep)
	}))
}

// withHistoryStore opens the store, runs fn against it, closes the
// store, and maps the outcome to a process exit code. The indirection
// keeps the badger handle closed on every path.
func withHistoryStore(fn func(context.Context, history.Store) error) int {
	store, err := OpenHistoryStore()
	if err != nil {
		ux.Error(err.Error())
		return 1
	}
	defer store.Close()

	if err := fn(context.Background(), store); err != nil {
		ux.Error(err.Error())
		return 1
	}
	return 0
}

// historyList prints recorded builds newest first.
func historyList(ctx context.Context, store history.Store, limit int, asJSON bool) error {
	records, err := store.List(ctx, limit)
	if err != nil {
		return err
	}

	if asJSON {
		encoded, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(encoded))
		return nil
	}

	fmt.Print(formatHistoryTable(records))
	return nil
}

// formatHistoryTable renders the build list. The status word stays
// unstyled so the columns align; the icon carries the color.
func formatHistoryTable(records []*history.BuildRecord) string {
	if len(records) == 0 {
		return "no builds recorded\n"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%-7s   %-9s %-16s %-13s %-9s %s\n",
		"NUMBER", "STATUS", "BRANCH", "COMMIT", "DURATION", "FINISHED"))
	for _, record := range records {
		finished := "-"
		if !record.FinishedAt.IsZero() {
			finished = record.FinishedAt.Local().Format("2006-01-02 15:04")
		}
		b.WriteString(fmt.Sprintf("%-7d %s %-9s %-16s %-13s %-9v %s\n",
			record.BuildNumber,
			ux.StatusIcon(string(record.Status)),
			string(record.Status),
			orDash(record.Params.GitBranch),
			orDash(shortCommit(record.Commit)),
			record.Duration().Round(time.Second),
			finished))
	}
	return b.String()
}

// historyShow prints one build in full.
func historyShow(ctx context.Context, store history.Store, number int, asJSON bool) error {
	record, err := store.Get(ctx, number)
	if errors.Is(err, history.ErrNotFound) {
		return fmt.Errorf("build %d is not in the history", number)
	}
	if err != nil {
		return err
	}

	if asJSON {
		encoded, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(encoded))
		return nil
	}

	fmt.Print(formatBuildDetail(record))
	return nil
}

// formatBuildDetail renders the full view of one recorded build: the
// run metadata, then the same stage table and report sections the run
// summary prints.
func formatBuildDetail(record *history.BuildRecord) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Build #%d: %s\n",
		record.BuildNumber, ux.StatusLabel(string(record.Status))))
	b.WriteString(fmt.Sprintf("  started:      %s\n",
		record.StartedAt.Local().Format(timestampLayout)))
	b.WriteString(fmt.Sprintf("  finished:     %s (%v)\n",
		record.FinishedAt.Local().Format(timestampLayout),
		record.Duration().Round(time.Millisecond)))
	if record.Params.GitRepoURL != "" {
		b.WriteString(fmt.Sprintf("  repository:   %s @ %s\n",
			record.Params.GitRepoURL, orDash(record.Params.GitBranch)))
	}
	if record.Params.SkipTests {
		b.WriteString("  skipped:      unit tests (by request)\n")
	}
	if record.Params.SkipSonarQube {
		b.WriteString("  skipped:      sonarqube analysis (by request)\n")
	}
	b.WriteString("\n")
	writeRecordBody(&b, record)

	return b.String()
}

// historyPrune deletes the oldest records beyond keep.
func historyPrune(ctx context.Context, store history.Store, keep int) error {
	removed, err := store.Prune(ctx, keep)
	if err != nil {
		return err
	}
	if removed == 0 {
		ux.Muted(fmt.Sprintf("nothing to prune, %d or fewer builds recorded", keep))
		return nil
	}
	ux.Success(fmt.Sprintf("pruned %d build records, kept the newest %d", removed, keep))
	return nil
}

// orDash substitutes "-" for empty table cells.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
