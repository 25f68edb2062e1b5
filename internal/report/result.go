package report

import (
	"time"

	"github.com/psantana5/runcosi/internal/logging"
)

// Outcome classifies how a replica attempt ended
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	// Simulator exited non-zero, could not be started, or timed out
	OutcomeSimulationFailed Outcome = "simulation_failed"
	// Simulator exited zero but its outputs could not be packaged or parsed
	OutcomePostprocessFailed Outcome = "postprocess_failed"
)

// Result is the immutable operational record of one replica attempt.
// The manifest only keeps a success flag; the reason lives here and in
// the log.
type Result struct {
	SimBlockID string
	ReplicaNum int
	Seed       int64

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	ExitCode int
	Outcome  Outcome
	Reason   string
}

// Attempt is a replica run that has drawn its seed but not yet finished
type Attempt struct {
	SimBlockID string
	ReplicaNum int
	Seed       int64
	Start      time.Time
}

// Finish freezes the attempt into a Result ending at end
func (a Attempt) Finish(end time.Time, exitCode int, outcome Outcome, reason string) *Result {
	return &Result{
		SimBlockID: a.SimBlockID,
		ReplicaNum: a.ReplicaNum,
		Seed:       a.Seed,
		StartTime:  a.Start,
		EndTime:    end,
		Duration:   end.Sub(a.Start),
		ExitCode:   exitCode,
		Outcome:    outcome,
		Reason:     reason,
	}
}

// LogSummary emits the one-line per-replica summary
func (r *Result) LogSummary(log *logging.Logger) {
	fields := map[string]interface{}{
		"sim_block_id": r.SimBlockID,
		"replica":      r.ReplicaNum,
		"seed":         r.Seed,
		"outcome":      string(r.Outcome),
		"exit":         r.ExitCode,
		"runtime_s":    r.Duration.Seconds(),
	}
	if r.Reason != "" {
		fields["reason"] = r.Reason
	}
	if r.Outcome == OutcomeSucceeded {
		log.Info("replica finished", fields)
		return
	}
	log.Warn("replica failed", fields)
}
