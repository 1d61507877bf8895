// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package sonar submits analyses to a SonarQube server and waits for the
quality gate verdict.

sonar-scanner drops a report-task.txt properties file after uploading
an analysis; its compute-engine task id is the handle for polling the
server until the analysis is processed and the gate can be read. The
gate is advisory for this pipeline: a RED gate is reported, never
fatal.
*/
package sonar

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReportTask is the parsed content of a scanner's report-task.txt.
type ReportTask struct {
	// CeTaskID is the compute-engine task identifier.
	CeTaskID string

	// CeTaskURL is the full task endpoint the scanner printed.
	CeTaskURL string

	// ProjectKey is the analyzed project.
	ProjectKey string

	// ServerURL is the SonarQube base URL.
	ServerURL string

	// DashboardURL links to the project dashboard.
	DashboardURL string
}

// ParseReportTaskFile reads and parses a report-task.txt.
//
// # Description
//
// The file is java-properties shaped: key=value lines with blank lines
// and # comments ignored. Values split on the first "=" only, since
// URLs carry their own. Older scanners omitted ceTaskId; it is then
// recovered from ceTaskUrl's id query parameter.
func ParseReportTaskFile(path string) (*ReportTask, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report task file: %w", err)
	}
	defer f.Close()

	props := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if idx := strings.Index(line, "="); idx != -1 {
			key := strings.TrimSpace(line[:idx])
			value := strings.TrimSpace(line[idx+1:])
			props[key] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read report task file: %w", err)
	}

	task := &ReportTask{
		CeTaskID:     props["ceTaskId"],
		CeTaskURL:    props["ceTaskUrl"],
		ProjectKey:   props["projectKey"],
		ServerURL:    props["serverUrl"],
		DashboardURL: props["dashboardUrl"],
	}

	if task.CeTaskID == "" && task.CeTaskURL != "" {
		if idx := strings.LastIndex(task.CeTaskURL, "?id="); idx != -1 {
			task.CeTaskID = task.CeTaskURL[idx+4:]
		}
	}

	return task, nil
}
