package services

import (
	"fmt"
	"strings"
	"time"
)

// RunState is the orchestrator's position in the pipeline state machine.
type RunState string

const (
	StateIdle            RunState = "idle"
	StateLoading         RunState = "loading"
	StateContentAssembly RunState = "content_assembly"
	StateAnalyzing       RunState = "analyzing"
	StatePersisting      RunState = "persisting"
	StateReporting       RunState = "reporting"
	StateDone            RunState = "done"
	StateAborted         RunState = "aborted"
)

// Process exit codes. Configuration errors exit with ExitConfigError before
// a report exists.
const (
	ExitSuccess      = 0
	ExitTotalFailure = 1
	ExitPartial      = 2
	ExitConfigError  = 3
)

// RunReport is the aggregate outcome of one pipeline run. Quota failures
// are broken out from other failures because they carry a different action:
// wait for the quota window and rerun, rather than investigate.
type RunReport struct {
	RunID   string
	State   RunState
	Elapsed time.Duration

	Loaded           int
	CacheHits        int
	CacheMisses      int
	StaleCacheHits   int
	EmptyTranscripts int

	Analyzed           int
	QuotaFailures      int
	TransientFailures  int
	MalformedFailures  int
	SourceReadFailures int

	Persisted       int
	PersistFailures int

	MeanLatencyMs int64
	Stopped       bool
}

func (r *RunReport) totalFailures() int {
	return r.QuotaFailures + r.TransientFailures + r.MalformedFailures + r.SourceReadFailures + r.PersistFailures
}

// NoDataPersisted distinguishes a run that completed but durably stored
// nothing (e.g. total quota exhaustion) from a healthy empty backlog.
func (r *RunReport) NoDataPersisted() bool {
	return r.Loaded > 0 && r.Persisted == 0
}

// ExitCode maps the report onto the process exit contract: 0 success,
// 1 total failure, 2 success with partial failures.
func (r *RunReport) ExitCode() int {
	if r.State == StateAborted {
		return ExitTotalFailure
	}
	if r.Loaded == 0 {
		return ExitSuccess
	}
	if r.Persisted == 0 {
		return ExitTotalFailure
	}
	if r.totalFailures() > 0 || r.Stopped {
		return ExitPartial
	}
	return ExitSuccess
}

// Summary renders the operator-facing outcome of the run.
func (r *RunReport) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "run %s finished in %s (state=%s)\n", r.RunID, r.Elapsed.Round(time.Millisecond), r.State)
	fmt.Fprintf(&sb, "  conversations loaded:   %d\n", r.Loaded)
	fmt.Fprintf(&sb, "  cache hits / misses:    %d / %d", r.CacheHits, r.CacheMisses)
	if r.StaleCacheHits > 0 {
		fmt.Fprintf(&sb, " (%d stale, rebuilt)", r.StaleCacheHits)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "  empty transcripts:      %d\n", r.EmptyTranscripts)
	fmt.Fprintf(&sb, "  analyzed successfully:  %d (mean latency %dms)\n", r.Analyzed, r.MeanLatencyMs)
	fmt.Fprintf(&sb, "  persisted:              %d\n", r.Persisted)
	if r.QuotaFailures > 0 {
		fmt.Fprintf(&sb, "  quota failures:         %d  -> wait for quota reset and rerun\n", r.QuotaFailures)
	}
	if other := r.TransientFailures + r.MalformedFailures + r.SourceReadFailures + r.PersistFailures; other > 0 {
		fmt.Fprintf(&sb, "  other failures:         %d (transient=%d malformed=%d source=%d persist=%d) -> investigate\n",
			other, r.TransientFailures, r.MalformedFailures, r.SourceReadFailures, r.PersistFailures)
	}
	if r.Stopped {
		sb.WriteString("  run stopped early by signal; remaining work left for the next run\n")
	}
	if r.NoDataPersisted() {
		sb.WriteString("  NO DATA PERSISTED this run\n")
	}
	return sb.String()
}
