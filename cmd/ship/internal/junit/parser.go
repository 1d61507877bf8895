// Package junit parses JUnit XML test reports into build totals and
// per-test failures. Pytest writes both root shapes depending on
// version: a <testsuites> wrapper or a bare <testsuite>.
package junit

import (
	"bytes"
	"crypto/sha256"
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"time"
)

// TestSuites is the <testsuites> root element.
type TestSuites struct {
	XMLName    xml.Name    `xml:"testsuites"`
	TestSuites []TestSuite `xml:"testsuite"`
}

// TestSuite is one <testsuite> element.
type TestSuite struct {
	XMLName   xml.Name   `xml:"testsuite"`
	Name      string     `xml:"name,attr"`
	Tests     int        `xml:"tests,attr"`
	Failures  int        `xml:"failures,attr"`
	Errors    int        `xml:"errors,attr"`
	Skipped   int        `xml:"skipped,attr"`
	Time      float64    `xml:"time,attr"`
	TestCases []TestCase `xml:"testcase"`
}

// TestCase is one <testcase> element.
type TestCase struct {
	Name      string   `xml:"name,attr"`
	ClassName string   `xml:"classname,attr"`
	Time      float64  `xml:"time,attr"`
	Failure   *Failure `xml:"failure"`
	Error     *Error   `xml:"error"`
	Skipped   *Skipped `xml:"skipped"`
}

// Failure is an assertion failure inside a test case.
type Failure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

// Error is an unexpected exception inside a test case.
type Error struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

// Skipped marks a skipped test case.
type Skipped struct {
	Message string `xml:"message,attr"`
}

// Report is a parsed JUnit document.
type Report struct {
	Suites []TestSuite
}

// Summary holds the totals across all suites of a report.
type Summary struct {
	Suites   int
	Tests    int
	Passed   int
	Failures int
	Errors   int
	Skipped  int
	Duration time.Duration
}

// String renders the totals the way build logs report them.
func (s Summary) String() string {
	return fmt.Sprintf("%d tests: %d passed, %d failed, %d errors, %d skipped in %.2fs",
		s.Tests, s.Passed, s.Failures, s.Errors, s.Skipped, s.Duration.Seconds())
}

// Failed reports whether the totals include failures or errors.
func (s Summary) Failed() bool {
	return s.Failures > 0 || s.Errors > 0
}

// TestFailure is one failed or errored test extracted from a report.
type TestFailure struct {
	TestName   string
	ClassName  string
	SuiteName  string
	Message    string
	Type       string // "failure" or "error"
	StackTrace string
	Duration   float64
}

// ParseFile reads and parses a JUnit XML report.
func ParseFile(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read junit report: %w", err)
	}
	return Parse(data)
}

// Parse parses JUnit XML data.
//
// # Description
//
// Accepts both a <testsuites> root and a bare <testsuite> root. An
// empty wrapper is a valid report (pytest writes one when no tests were
// collected); any other root element is an error.
func Parse(data []byte) (*Report, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty junit report")
	}

	var suites TestSuites
	if err := xml.Unmarshal(data, &suites); err == nil {
		return &Report{Suites: suites.TestSuites}, nil
	}

	var suite TestSuite
	if err := xml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("parse junit report: %w", err)
	}
	return &Report{Suites: []TestSuite{suite}}, nil
}

// Summary totals the suite attributes of the report.
func (r *Report) Summary() Summary {
	summary := Summary{Suites: len(r.Suites)}
	var seconds float64
	for _, suite := range r.Suites {
		summary.Tests += suite.Tests
		summary.Failures += suite.Failures
		summary.Errors += suite.Errors
		summary.Skipped += suite.Skipped
		seconds += suite.Time
	}
	summary.Passed = summary.Tests - summary.Failures - summary.Errors - summary.Skipped
	if summary.Passed < 0 {
		summary.Passed = 0
	}
	summary.Duration = time.Duration(seconds * float64(time.Second))
	return summary
}

// Failures extracts every failed and errored test case.
func (r *Report) Failures() []TestFailure {
	var failures []TestFailure
	for _, suite := range r.Suites {
		for _, testCase := range suite.TestCases {
			if testCase.Failure != nil {
				failures = append(failures, TestFailure{
					TestName:   testCase.Name,
					ClassName:  testCase.ClassName,
					SuiteName:  suite.Name,
					Message:    testCase.Failure.Message,
					Type:       "failure",
					StackTrace: strings.TrimSpace(testCase.Failure.Content),
					Duration:   testCase.Time,
				})
			}
			if testCase.Error != nil {
				failures = append(failures, TestFailure{
					TestName:   testCase.Name,
					ClassName:  testCase.ClassName,
					SuiteName:  suite.Name,
					Message:    testCase.Error.Message,
					Type:       "error",
					StackTrace: strings.TrimSpace(testCase.Error.Content),
					Duration:   testCase.Time,
				})
			}
		}
	}
	return failures
}

// Fingerprint returns a stable identifier for the failure. The same
// test failing with the same message hashes identically across builds,
// which is what history grouping keys on.
func (tf *TestFailure) Fingerprint() string {
	key := fmt.Sprintf("%s::%s::%s", tf.ClassName, tf.TestName, tf.Message)
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", hash[:8])
}

// DisplayMessage returns a one-line human-readable description.
func (tf *TestFailure) DisplayMessage() string {
	if tf.Message != "" {
		return fmt.Sprintf("[%s] %s.%s: %s", tf.Type, tf.ClassName, tf.TestName, tf.Message)
	}
	return fmt.Sprintf("[%s] %s.%s", tf.Type, tf.ClassName, tf.TestName)
}

// StackLines splits the stack trace into at most maxLines lines with
// surrounding blank lines trimmed.
func (tf *TestFailure) StackLines(maxLines int) []string {
	if tf.StackTrace == "" {
		return []string{}
	}

	lines := strings.Split(tf.StackTrace, "\n")

	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	end := len(lines)
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	lines = lines[start:end]

	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return lines
}
