/*
JUnit parser tests.

# Testing Strategy

Fixtures are the pytest-shaped documents the pipeline actually reads:
a <testsuites> wrapper around one pytest suite, the bare <testsuite>
older pytest versions write, and the empty wrapper produced when no
tests are collected. Totals, failure extraction, fingerprint stability,
and stack trimming are each asserted against hand-computed values.
*/
package junit

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

// ----------------------------------------------------------------------------
// Fixtures
// ----------------------------------------------------------------------------

const pytestReport = `<?xml version="1.0" encoding="utf-8"?>
<testsuites>
  <testsuite name="pytest" errors="1" failures="1" skipped="1" tests="5" time="3.214" timestamp="2025-11-03T14:02:11.120930" hostname="runner">
    <testcase classname="tests.test_views.GigViewTests" name="test_list_gigs" time="0.412"/>
    <testcase classname="tests.test_views.GigViewTests" name="test_create_gig" time="0.388"/>
    <testcase classname="tests.test_views.GigViewTests" name="test_gig_detail_missing" time="0.290">
      <failure message="assert 404 == 200">def test_gig_detail_missing(self):
&gt;       assert response.status_code == 200
E       assert 404 == 200

tests/test_views.py:48: AssertionError</failure>
    </testcase>
    <testcase classname="tests.test_models.RouteTests" name="test_route_assignment" time="0.105">
      <error message="django.db.utils.OperationalError: connection refused">Traceback (most recent call last):
  File "tests/test_models.py", line 31, in test_route_assignment
django.db.utils.OperationalError: connection refused</error>
    </testcase>
    <testcase classname="tests.test_models.RouteTests" name="test_route_pricing" time="0.001">
      <skipped message="pricing service unavailable in CI"/>
    </testcase>
  </testsuite>
</testsuites>`

const bareSuiteReport = `<?xml version="1.0" encoding="utf-8"?>
<testsuite name="pytest" errors="0" failures="0" skipped="0" tests="2" time="0.851">
  <testcase classname="tests.test_views.GigViewTests" name="test_list_gigs" time="0.412"/>
  <testcase classname="tests.test_views.GigViewTests" name="test_create_gig" time="0.439"/>
</testsuite>`

const emptyReport = `<?xml version="1.0" encoding="utf-8"?>
<testsuites>
  <testsuite name="pytest" errors="0" failures="0" skipped="0" tests="0" time="0.012"/>
</testsuites>`

// ----------------------------------------------------------------------------
// Parse tests
// ----------------------------------------------------------------------------

func TestParse_PytestWrapper(t *testing.T) {
	report, err := Parse([]byte(pytestReport))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(report.Suites) != 1 {
		t.Fatalf("suites = %d, want 1", len(report.Suites))
	}
	suite := report.Suites[0]
	if suite.Name != "pytest" {
		t.Errorf("suite name = %q, want pytest", suite.Name)
	}
	if len(suite.TestCases) != 5 {
		t.Errorf("test cases = %d, want 5", len(suite.TestCases))
	}
}

func TestParse_BareSuite(t *testing.T) {
	report, err := Parse([]byte(bareSuiteReport))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(report.Suites) != 1 {
		t.Fatalf("suites = %d, want 1", len(report.Suites))
	}
	if report.Suites[0].Tests != 2 {
		t.Errorf("tests attr = %d, want 2", report.Suites[0].Tests)
	}
}

func TestParse_NoTestsCollected(t *testing.T) {
	report, err := Parse([]byte(emptyReport))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	summary := report.Summary()
	if summary.Tests != 0 {
		t.Errorf("tests = %d, want 0", summary.Tests)
	}
	if summary.Failed() {
		t.Error("empty report must not count as failed")
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty input", ""},
		{"whitespace only", "   \n\t"},
		{"not xml", "collected 5 items"},
		{"wrong root", "<html><body>error page</body></html>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junit.xml")
	if err := os.WriteFile(path, []byte(pytestReport), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	report, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if len(report.Suites) != 1 {
		t.Errorf("suites = %d, want 1", len(report.Suites))
	}
}

func TestParseFile_Missing(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "nope.xml"))
	if err == nil || !strings.Contains(err.Error(), "read junit report") {
		t.Errorf("error = %v, want read wrap", err)
	}
}

// ----------------------------------------------------------------------------
// Summary tests
// ----------------------------------------------------------------------------

func TestReport_Summary(t *testing.T) {
	report, err := Parse([]byte(pytestReport))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	summary := report.Summary()
	if summary.Suites != 1 {
		t.Errorf("suites = %d, want 1", summary.Suites)
	}
	if summary.Tests != 5 {
		t.Errorf("tests = %d, want 5", summary.Tests)
	}
	if summary.Passed != 2 {
		t.Errorf("passed = %d, want 2", summary.Passed)
	}
	if summary.Failures != 1 {
		t.Errorf("failures = %d, want 1", summary.Failures)
	}
	if summary.Errors != 1 {
		t.Errorf("errors = %d, want 1", summary.Errors)
	}
	if summary.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", summary.Skipped)
	}
	if summary.Duration != time.Duration(3.214*float64(time.Second)) {
		t.Errorf("duration = %v, want 3.214s", summary.Duration)
	}
	if !summary.Failed() {
		t.Error("summary with failures must report Failed")
	}
}

func TestSummary_String(t *testing.T) {
	summary := Summary{Tests: 5, Passed: 2, Failures: 1, Errors: 1, Skipped: 1, Duration: 3214 * time.Millisecond}

	got := summary.String()
	want := "5 tests: 2 passed, 1 failed, 1 errors, 1 skipped in 3.21s"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestSummary_PassedNeverNegative(t *testing.T) {
	// Inconsistent attrs happen when a producer counts skips into tests
	// differently. Passed must clamp rather than go negative.
	report := &Report{Suites: []TestSuite{{Tests: 1, Failures: 1, Errors: 1}}}

	if got := report.Summary().Passed; got != 0 {
		t.Errorf("passed = %d, want 0", got)
	}
}

// ----------------------------------------------------------------------------
// Failure extraction tests
// ----------------------------------------------------------------------------

func TestReport_Failures(t *testing.T) {
	report, err := Parse([]byte(pytestReport))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	failures := report.Failures()
	if len(failures) != 2 {
		t.Fatalf("failures = %d, want 2", len(failures))
	}

	fail := failures[0]
	if fail.Type != "failure" {
		t.Errorf("type = %q, want failure", fail.Type)
	}
	if fail.TestName != "test_gig_detail_missing" {
		t.Errorf("test name = %q, want test_gig_detail_missing", fail.TestName)
	}
	if fail.ClassName != "tests.test_views.GigViewTests" {
		t.Errorf("class name = %q, want tests.test_views.GigViewTests", fail.ClassName)
	}
	if fail.SuiteName != "pytest" {
		t.Errorf("suite name = %q, want pytest", fail.SuiteName)
	}
	if fail.Message != "assert 404 == 200" {
		t.Errorf("message = %q, want assert 404 == 200", fail.Message)
	}
	if !strings.Contains(fail.StackTrace, "AssertionError") {
		t.Errorf("stack trace = %q, want AssertionError frame", fail.StackTrace)
	}
	if strings.HasPrefix(fail.StackTrace, "\n") || strings.HasSuffix(fail.StackTrace, "\n") {
		t.Error("stack trace should be trimmed")
	}

	errCase := failures[1]
	if errCase.Type != "error" {
		t.Errorf("type = %q, want error", errCase.Type)
	}
	if errCase.TestName != "test_route_assignment" {
		t.Errorf("test name = %q, want test_route_assignment", errCase.TestName)
	}
	if errCase.Duration != 0.105 {
		t.Errorf("duration = %v, want 0.105", errCase.Duration)
	}
}

func TestReport_Failures_AllPassing(t *testing.T) {
	report, err := Parse([]byte(bareSuiteReport))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if failures := report.Failures(); len(failures) != 0 {
		t.Errorf("failures = %d, want 0", len(failures))
	}
}

// ----------------------------------------------------------------------------
// TestFailure method tests
// ----------------------------------------------------------------------------

func TestTestFailure_Fingerprint(t *testing.T) {
	a := TestFailure{ClassName: "tests.test_views.GigViewTests", TestName: "test_list_gigs", Message: "assert 404 == 200"}
	b := TestFailure{ClassName: "tests.test_views.GigViewTests", TestName: "test_list_gigs", Message: "assert 404 == 200", Duration: 9.9}
	c := TestFailure{ClassName: "tests.test_views.GigViewTests", TestName: "test_list_gigs", Message: "assert 500 == 200"}

	if a.Fingerprint() != b.Fingerprint() {
		t.Error("identical failures must fingerprint identically regardless of duration")
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("different messages must fingerprint differently")
	}
	if len(a.Fingerprint()) != 16 {
		t.Errorf("fingerprint length = %d, want 16", len(a.Fingerprint()))
	}
}

func TestTestFailure_DisplayMessage(t *testing.T) {
	withMessage := TestFailure{Type: "failure", ClassName: "tests.test_views.GigViewTests", TestName: "test_list_gigs", Message: "assert 404 == 200"}
	if got := withMessage.DisplayMessage(); got != "[failure] tests.test_views.GigViewTests.test_list_gigs: assert 404 == 200" {
		t.Errorf("DisplayMessage() = %q", got)
	}

	withoutMessage := TestFailure{Type: "error", ClassName: "tests.test_models.RouteTests", TestName: "test_route_assignment"}
	if got := withoutMessage.DisplayMessage(); got != "[error] tests.test_models.RouteTests.test_route_assignment" {
		t.Errorf("DisplayMessage() = %q", got)
	}
}

func TestTestFailure_StackLines(t *testing.T) {
	failure := TestFailure{StackTrace: "line1\nline2\nline3\nline4"}

	if got := failure.StackLines(2); !reflect.DeepEqual(got, []string{"line1", "line2"}) {
		t.Errorf("StackLines(2) = %v", got)
	}
	if got := failure.StackLines(10); len(got) != 4 {
		t.Errorf("StackLines(10) length = %d, want 4", len(got))
	}

	empty := TestFailure{}
	if got := empty.StackLines(5); len(got) != 0 {
		t.Errorf("StackLines on empty trace = %v, want empty", got)
	}

	padded := TestFailure{StackTrace: "first\n\n\nlast"}
	if got := padded.StackLines(10); !reflect.DeepEqual(got, []string{"first", "", "", "last"}) {
		t.Errorf("StackLines kept interior blanks wrong: %v", got)
	}
}
