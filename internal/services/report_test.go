package services

import (
	"strings"
	"testing"
)

func TestReportExitCode(t *testing.T) {
	cases := []struct {
		name   string
		report RunReport
		want   int
	}{
		{"empty backlog", RunReport{State: StateDone, Loaded: 0}, ExitSuccess},
		{"clean run", RunReport{State: StateDone, Loaded: 5, Analyzed: 5, Persisted: 5}, ExitSuccess},
		{"partial failures", RunReport{State: StateDone, Loaded: 5, Analyzed: 4, Persisted: 4, TransientFailures: 1}, ExitPartial},
		{"stopped early", RunReport{State: StateDone, Loaded: 5, Analyzed: 2, Persisted: 2, Stopped: true}, ExitPartial},
		{"nothing persisted", RunReport{State: StateDone, Loaded: 5, QuotaFailures: 5}, ExitTotalFailure},
		{"aborted", RunReport{State: StateAborted}, ExitTotalFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.report.ExitCode(); got != tc.want {
				t.Fatalf("want %d got %d", tc.want, got)
			}
		})
	}
}

func TestReportNoDataPersisted(t *testing.T) {
	r := RunReport{Loaded: 3, Persisted: 0}
	if !r.NoDataPersisted() {
		t.Fatalf("loaded without persisting is the no-data case")
	}
	r = RunReport{Loaded: 0, Persisted: 0}
	if r.NoDataPersisted() {
		t.Fatalf("an empty backlog is not the no-data case")
	}
}

func TestReportSummaryActionHints(t *testing.T) {
	r := RunReport{
		RunID: "run-1", State: StateDone,
		Loaded: 4, Analyzed: 1, Persisted: 1,
		QuotaFailures: 3,
	}
	s := r.Summary()
	if !strings.Contains(s, "wait for quota reset") {
		t.Fatalf("quota failures should carry the rerun hint:\n%s", s)
	}

	r = RunReport{RunID: "run-2", State: StateDone, Loaded: 2, Persisted: 1, MalformedFailures: 1}
	s = r.Summary()
	if !strings.Contains(s, "investigate") {
		t.Fatalf("non-quota failures should carry the investigate hint:\n%s", s)
	}

	r = RunReport{RunID: "run-3", State: StateDone, Loaded: 2, QuotaFailures: 2}
	if !strings.Contains(r.Summary(), "NO DATA PERSISTED") {
		t.Fatalf("no-data runs must be called out")
	}
}
