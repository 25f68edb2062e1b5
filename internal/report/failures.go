package report

import "sync"

// FailureSample is a failed replica kept for the end-of-block log,
// since the manifest only records a success flag.
type FailureSample struct {
	ReplicaNum int     `json:"replica"`
	Outcome    Outcome `json:"outcome"`
	Reason     string  `json:"reason"`
	Duration   float64 `json:"duration_seconds"`
	ExitCode   int     `json:"exit_code"`
}

// FailureLog is a ring buffer of the last N failed replicas
type FailureLog struct {
	samples []FailureSample
	maxSize int
	mu      sync.RWMutex
}

// NewFailureLog creates a failure log with fixed size
func NewFailureLog(maxSize int) *FailureLog {
	return &FailureLog{
		samples: make([]FailureSample, 0, maxSize),
		maxSize: maxSize,
	}
}

// Record adds r if it is a failure, dropping the oldest sample when full
func (f *FailureLog) Record(r *Result) {
	if r.Outcome == OutcomeSucceeded {
		return
	}

	sample := FailureSample{
		ReplicaNum: r.ReplicaNum,
		Outcome:    r.Outcome,
		Reason:     r.Reason,
		Duration:   r.Duration.Seconds(),
		ExitCode:   r.ExitCode,
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.samples) >= f.maxSize {
		f.samples = f.samples[1:]
	}
	f.samples = append(f.samples, sample)
}

// Recent returns up to n failures, newest first. n <= 0 returns all.
func (f *FailureLog) Recent(n int) []FailureSample {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if n <= 0 || n > len(f.samples) {
		n = len(f.samples)
	}

	out := make([]FailureSample, n)
	for i := 0; i < n; i++ {
		out[i] = f.samples[len(f.samples)-1-i]
	}
	return out
}

// Count returns the number of samples held
func (f *FailureLog) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.samples)
}
