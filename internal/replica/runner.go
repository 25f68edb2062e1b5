// Package replica runs one simulator replica and turns whatever happened
// into a ReplicaInfo.
package replica

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/psantana5/runcosi/internal/logging"
	"github.com/psantana5/runcosi/internal/manifest"
	"github.com/psantana5/runcosi/internal/report"
	"github.com/psantana5/runcosi/internal/seed"
	"github.com/psantana5/runcosi/internal/simulator"
)

// Config is the block-level input shared by every replica
type Config struct {
	ModelID    string
	BlockNum   int
	SimBlockID string

	// ParamFile is the combined parameter file, read-only once replicas start
	ParamFile   string
	RecombFile  string
	MaxAttempts int

	Binary  string
	WorkDir string
}

// Runner executes replica attempts. It is safe for concurrent use as long
// as its seed source and process runner are.
type Runner struct {
	cfg     Config
	seeds   seed.Source
	proc    simulator.ProcessRunner
	log     *logging.Logger
	metrics *report.Metrics
}

// New creates a runner. log and metrics may be nil.
func New(cfg Config, seeds seed.Source, proc simulator.ProcessRunner, log *logging.Logger, metrics *report.Metrics) *Runner {
	if cfg.WorkDir == "" {
		cfg.WorkDir = "."
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Runner{cfg: cfg, seeds: seeds, proc: proc, log: log, metrics: metrics}
}

// Run attempts replica replicaNum. Simulator failures are returned as a
// ReplicaInfo with Succeeded=false, never as an error. An error means the
// runner itself could not proceed (no seed, unwritable work dir, or the
// context was cancelled) and the block should stop.
func (r *Runner) Run(ctx context.Context, replicaNum int) (manifest.ReplicaInfo, error) {
	start := time.Now()

	s, err := r.seeds.Seed()
	if err != nil {
		return manifest.ReplicaInfo{}, fmt.Errorf("replica %d: %w", replicaNum, err)
	}

	names := simulator.NamesFor(r.cfg.WorkDir, r.cfg.SimBlockID, replicaNum)
	if err := os.WriteFile(names.Placeholder, nil, 0644); err != nil {
		return manifest.ReplicaInfo{}, fmt.Errorf("replica %d: failed to create placeholder: %w", replicaNum, err)
	}

	if r.metrics != nil {
		r.metrics.IncrStarted()
	}

	inv := simulator.Invocation{
		Binary:      r.cfg.Binary,
		RecombFile:  r.cfg.RecombFile,
		ParamFile:   r.cfg.ParamFile,
		MaxAttempts: r.cfg.MaxAttempts,
		Seed:        s,
		Names:       names,
	}
	r.log.Debug("starting simulator", map[string]interface{}{
		"replica": replicaNum,
		"seed":    s,
		"tped":    names.TpedPrefix,
	})

	exitCode, invokeErr := r.proc.Invoke(ctx, inv.Command(""))
	if ctxErr := ctx.Err(); ctxErr != nil {
		return manifest.ReplicaInfo{}, fmt.Errorf("replica %d: %w", replicaNum, ctxErr)
	}

	info := r.failed(replicaNum, s, names)
	outcome := report.OutcomeSimulationFailed
	reason := ""

	switch {
	case invokeErr != nil:
		reason = invokeErr.Error()
	case exitCode != 0:
		reason = fmt.Sprintf("exit status %d", exitCode)
	default:
		ok, err := r.succeeded(replicaNum, s, names)
		if err != nil {
			outcome = report.OutcomePostprocessFailed
			reason = err.Error()
			break
		}
		info = ok
		outcome = report.OutcomeSucceeded
	}

	attempt := report.Attempt{SimBlockID: r.cfg.SimBlockID, ReplicaNum: replicaNum, Seed: s, Start: start}
	res := attempt.Finish(time.Now(), exitCode, outcome, reason)
	res.LogSummary(r.log)
	if r.metrics != nil {
		r.metrics.RecordResult(res)
	}
	return info, nil
}

func (r *Runner) succeeded(replicaNum int, s int64, names simulator.Names) (manifest.ReplicaInfo, error) {
	if err := simulator.PackTpeds(names.TpedPrefix, names.Archive); err != nil {
		return manifest.ReplicaInfo{}, err
	}
	si, err := simulator.ReadSweepInfo(names.SweepInfo)
	if err != nil {
		return manifest.ReplicaInfo{}, err
	}
	return manifest.ReplicaInfo{
		ModelID:    r.cfg.ModelID,
		BlockNum:   r.cfg.BlockNum,
		ReplicaNum: replicaNum,
		Succeeded:  true,
		RandomSeed: s,
		Tpeds:      names.Archive,
		Traj:       names.Traj,
		SelPop:     si.SelPop,
		SelGen:     si.SelGen,
		SelBegPop:  si.SelBegPop,
		SelBegGen:  si.SelBegGen,
		SelCoeff:   si.SelCoeff,
		SelFreq:    si.SelFreq,
	}, nil
}

// failed builds the record for an attempt that produced nothing usable.
// The seed is kept since it was consumed.
func (r *Runner) failed(replicaNum int, s int64, names simulator.Names) manifest.ReplicaInfo {
	return manifest.ReplicaInfo{
		ModelID:    r.cfg.ModelID,
		BlockNum:   r.cfg.BlockNum,
		ReplicaNum: replicaNum,
		Succeeded:  false,
		RandomSeed: s,
		Tpeds:      names.Placeholder,
		Traj:       names.Placeholder,
	}
}
