package block

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/psantana5/runcosi/internal/logging"
	"github.com/psantana5/runcosi/internal/manifest"
	"github.com/psantana5/runcosi/internal/paramfile"
	"github.com/psantana5/runcosi/internal/replica"
	"github.com/psantana5/runcosi/internal/report"
	"github.com/psantana5/runcosi/internal/seed"
	"github.com/psantana5/runcosi/internal/simulator"
)

// Config describes one block invocation
type Config struct {
	ParamFileCommon string
	ParamFile       string
	RecombFile      string
	ModelID         string
	SimBlockID      string
	BlockNum        int
	NumSimsInBlock  int
	MaxAttempts     int
	OutJSON         string

	CosiBinary string
	WorkDir    string
	// Workers is the replica concurrency; 1 is sequential, 0 is one per CPU
	Workers    int
	SimTimeout time.Duration
	MaxSlurpMB int
	MetricsOut string
}

// Validate checks that the required inputs are present
func (c *Config) Validate() error {
	var errs []error
	required := []struct{ name, value string }{
		{"paramFileCommon", c.ParamFileCommon},
		{"paramFile", c.ParamFile},
		{"recombFile", c.RecombFile},
		{"modelId", c.ModelID},
		{"simBlockId", c.SimBlockID},
		{"outJson", c.OutJSON},
	}
	for _, f := range required {
		if f.value == "" {
			errs = append(errs, fmt.Errorf("%s is required", f.name))
		}
	}
	if c.NumSimsInBlock < 0 {
		errs = append(errs, fmt.Errorf("numSimsInBlock must be >= 0, got %d", c.NumSimsInBlock))
	}
	if c.SimTimeout < 0 {
		errs = append(errs, fmt.Errorf("simTimeout must be >= 0, got %s", c.SimTimeout))
	}
	return errors.Join(errs...)
}

// CombinedParamFile is where the block's combined parameters are written
func (c *Config) CombinedParamFile() string {
	dir := c.WorkDir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, c.SimBlockID+".combined.par")
}

// Deps are the collaborators Execute needs. Zero values get defaults:
// crypto seeds, an os/exec runner, and a discarding logger.
type Deps struct {
	Seeds seed.Source
	Proc  simulator.ProcessRunner
	Log   *logging.Logger
}

// Execute runs the whole block: combine parameters, run every replica,
// write the manifest. Replica failures are recorded in the manifest;
// only input, parameter-file, and manifest I/O errors are returned.
func Execute(ctx context.Context, cfg Config, deps Deps) (*manifest.BlockManifest, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid block config: %w", err)
	}
	if deps.Seeds == nil {
		deps.Seeds = seed.CryptoSource{}
	}
	if deps.Proc == nil {
		deps.Proc = &simulator.ExecRunner{Timeout: cfg.SimTimeout}
	}
	if deps.Log == nil {
		deps.Log = logging.Nop()
	}
	log := deps.Log.
		WithField("run_id", uuid.NewString()).
		WithField("sim_block_id", cfg.SimBlockID).
		WithField("block_num", cfg.BlockNum)

	combined := cfg.CombinedParamFile()
	if err := paramfile.Combine(cfg.ParamFileCommon, cfg.ParamFile, combined, cfg.MaxSlurpMB); err != nil {
		return nil, err
	}

	workers := ResolveWorkers(cfg.Workers)
	log.Info("block starting", map[string]interface{}{
		"model_id":    cfg.ModelID,
		"replicas":    cfg.NumSimsInBlock,
		"workers":     workers,
		"param_file":  combined,
		"sim_timeout": cfg.SimTimeout.String(),
	})

	metrics := report.NewMetrics(cfg.ModelID, cfg.BlockNum)
	runner := replica.New(replica.Config{
		ModelID:     cfg.ModelID,
		BlockNum:    cfg.BlockNum,
		SimBlockID:  cfg.SimBlockID,
		ParamFile:   combined,
		RecombFile:  cfg.RecombFile,
		MaxAttempts: cfg.MaxAttempts,
		Binary:      cfg.CosiBinary,
		WorkDir:     cfg.WorkDir,
	}, deps.Seeds, deps.Proc, log, metrics)

	start := time.Now()
	m, err := Aggregate(ctx, runner, cfg.NumSimsInBlock, workers)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	if err := manifest.Write(cfg.OutJSON, m); err != nil {
		return nil, err
	}

	if cfg.MetricsOut != "" {
		if err := metrics.WriteTextfile(cfg.MetricsOut); err != nil {
			log.Warn("could not write metrics", map[string]interface{}{"error": err.Error()})
		}
	}

	if failed := metrics.Failures().Recent(10); len(failed) > 0 {
		log.Warn("some replicas failed", map[string]interface{}{
			"failed": len(m.ReplicaInfos) - m.Succeeded(),
			"recent": failed,
		})
	}
	log.Info("block finished", map[string]interface{}{
		"replicas":  len(m.ReplicaInfos),
		"succeeded": m.Succeeded(),
		"manifest":  cfg.OutJSON,
		"runtime_s": elapsed.Seconds(),
	})
	return m, nil
}
