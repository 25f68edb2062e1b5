// Package simtest provides a fake cosi2 process for tests.
package simtest

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/psantana5/runcosi/internal/simulator"
)

// Result scripts one replica of the fake simulator
type Result struct {
	ExitCode int
	Err      error

	// SweepInfo is written to COSI_SAVE_SWEEP_INFO when non-empty
	SweepInfo string
	// Pops are tped file suffixes written as <prefix>_<pop>
	Pops  []string
	Delay time.Duration
}

// Fake implements simulator.ProcessRunner. Replicas are looked up by the
// --tped prefix; unknown prefixes exit 1 without writing anything.
type Fake struct {
	Results map[string]Result

	mu    sync.Mutex
	calls []simulator.Command
}

// Calls returns every command seen so far, in invocation order
func (f *Fake) Calls() []simulator.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]simulator.Command(nil), f.calls...)
}

// Invoke mimics the simulator's file side effects
func (f *Fake) Invoke(ctx context.Context, c simulator.Command) (int, error) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()

	prefix := Arg(c, "--tped")
	res, ok := f.Results[prefix]
	if !ok {
		return 1, nil
	}

	if res.Delay > 0 {
		select {
		case <-time.After(res.Delay):
		case <-ctx.Done():
			return -1, ctx.Err()
		}
	}
	if res.Err != nil {
		return -1, res.Err
	}

	for _, pop := range res.Pops {
		if err := os.WriteFile(prefix+"_"+pop, []byte("1 rs1 0 100 A G\n"), 0644); err != nil {
			return -1, err
		}
	}
	if res.SweepInfo != "" {
		if err := os.WriteFile(Env(c, "COSI_SAVE_SWEEP_INFO"), []byte(res.SweepInfo+"\n"), 0644); err != nil {
			return -1, err
		}
	}
	if traj := Env(c, "COSI_SAVE_TRAJ"); traj != "" && res.ExitCode == 0 {
		if err := os.WriteFile(traj, []byte("0 0.33\n"), 0644); err != nil {
			return -1, err
		}
	}
	return res.ExitCode, nil
}

// Arg returns the value following flag in c.Args
func Arg(c simulator.Command, flag string) string {
	for i := 0; i+1 < len(c.Args); i++ {
		if c.Args[i] == flag {
			return c.Args[i+1]
		}
	}
	return ""
}

// Env returns the last value of key in c.Env
func Env(c simulator.Command, key string) string {
	val := ""
	for _, kv := range c.Env {
		if k, v, ok := strings.Cut(kv, "="); ok && k == key {
			val = v
		}
	}
	return val
}
