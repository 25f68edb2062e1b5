package block

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psantana5/runcosi/internal/manifest"
	"github.com/psantana5/runcosi/internal/seed"
	"github.com/psantana5/runcosi/internal/simulator"
	"github.com/psantana5/runcosi/internal/simulator/simtest"
)

type stubRunner struct {
	delay   func(i int) time.Duration
	failAt  int
	active  atomic.Int32
	maxSeen atomic.Int32
}

func (s *stubRunner) Run(ctx context.Context, i int) (manifest.ReplicaInfo, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		seen := s.maxSeen.Load()
		if n <= seen || s.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	if s.delay != nil {
		time.Sleep(s.delay(i))
	}
	if s.failAt >= 0 && i == s.failAt {
		return manifest.ReplicaInfo{}, errors.New("disk full")
	}
	return manifest.ReplicaInfo{ReplicaNum: i, Succeeded: i%2 == 0}, nil
}

func TestAggregateOrdering(t *testing.T) {
	for _, workers := range []int{1, 4} {
		for _, n := range []int{0, 1, 7} {
			r := &stubRunner{failAt: -1, delay: func(i int) time.Duration {
				return time.Duration(7-i) * time.Millisecond
			}}
			m, err := Aggregate(context.Background(), r, n, workers)
			require.NoError(t, err)
			require.Len(t, m.ReplicaInfos, n)
			for i, ri := range m.ReplicaInfos {
				assert.Equal(t, i, ri.ReplicaNum, "workers=%d n=%d", workers, n)
			}
		}
	}
}

func TestAggregateSequentialByDefault(t *testing.T) {
	r := &stubRunner{failAt: -1, delay: func(int) time.Duration { return time.Millisecond }}
	_, err := Aggregate(context.Background(), r, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(1), r.maxSeen.Load())
}

func TestAggregateParallelBounded(t *testing.T) {
	r := &stubRunner{failAt: -1, delay: func(int) time.Duration { return 20 * time.Millisecond }}
	_, err := Aggregate(context.Background(), r, 8, 3)
	require.NoError(t, err)
	assert.LessOrEqual(t, r.maxSeen.Load(), int32(3))
}

func TestAggregateRunnerError(t *testing.T) {
	for _, workers := range []int{1, 3} {
		r := &stubRunner{failAt: 2}
		m, err := Aggregate(context.Background(), r, 5, workers)
		require.Error(t, err)
		assert.Nil(t, m)
	}
}

func TestAggregateNegative(t *testing.T) {
	_, err := Aggregate(context.Background(), &stubRunner{failAt: -1}, -1, 1)
	assert.Error(t, err)
}

func TestResolveWorkers(t *testing.T) {
	assert.Equal(t, 4, ResolveWorkers(4))
	assert.Equal(t, 1, ResolveWorkers(-2))
	assert.GreaterOrEqual(t, ResolveWorkers(0), 1)
}

func TestConfigValidate(t *testing.T) {
	var cfg Config
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "paramFileCommon is required")
	assert.Contains(t, err.Error(), "outJson is required")

	cfg = blockConfig(t.TempDir(), 1)
	assert.NoError(t, cfg.Validate())
	cfg.NumSimsInBlock = -1
	assert.Error(t, cfg.Validate())
}

func blockConfig(dir string, n int) Config {
	return Config{
		ParamFileCommon: filepath.Join(dir, "common.par"),
		ParamFile:       filepath.Join(dir, "block.par"),
		RecombFile:      filepath.Join(dir, "recom.map"),
		ModelID:         "default_112115_825am",
		SimBlockID:      "blk9",
		BlockNum:        9,
		NumSimsInBlock:  n,
		MaxAttempts:     10000,
		OutJSON:         filepath.Join(dir, "out.json"),
		WorkDir:         dir,
		Workers:         1,
		MaxSlurpMB:      50,
	}
}

func writeInputs(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "common.par"), []byte("length 1000000\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "block.par"), []byte("sweep 1 0.02\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "recom.map"), []byte("1 1e-8\n"), 0644))
}

func TestExecuteTwoReplicas(t *testing.T) {
	for _, workers := range []int{1, 2} {
		dir := t.TempDir()
		writeInputs(t, dir)
		cfg := blockConfig(dir, 2)
		cfg.Workers = workers
		cfg.MetricsOut = filepath.Join(dir, "runcosi.prom")

		rep0 := simulator.NamesFor(dir, cfg.SimBlockID, 0)
		rep1 := simulator.NamesFor(dir, cfg.SimBlockID, 1)
		fake := &simtest.Fake{Results: map[string]simtest.Result{
			rep0.TpedPrefix: {SweepInfo: "1 3 0.1 2 0.0 0.02 0.33", Pops: []string{"0_1.tped"}},
			rep1.TpedPrefix: {ExitCode: 1},
		}}

		m, err := Execute(context.Background(), cfg, Deps{Seeds: &seed.Fixed{Seeds: []int64{11, 22}}, Proc: fake})
		require.NoError(t, err)

		got, err := manifest.Read(cfg.OutJSON)
		require.NoError(t, err)
		assert.Equal(t, m, got)
		require.Len(t, got.ReplicaInfos, 2)

		ok := got.ReplicaInfos[0]
		assert.Equal(t, 0, ok.ReplicaNum)
		assert.True(t, ok.Succeeded)
		assert.Equal(t, 3, ok.SelPop)
		assert.Equal(t, 2, ok.SelBegPop)
		assert.Equal(t, 0.1, ok.SelGen)
		assert.Equal(t, 0.02, ok.SelCoeff)
		assert.Equal(t, 0.33, ok.SelFreq)
		assert.Equal(t, rep0.Archive, ok.Tpeds)
		for _, v := range []float64{ok.SelGen, ok.SelBegGen, ok.SelCoeff, ok.SelFreq} {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		}

		bad := got.ReplicaInfos[1]
		assert.Equal(t, 1, bad.ReplicaNum)
		assert.False(t, bad.Succeeded)
		assert.Equal(t, rep1.Placeholder, bad.Tpeds)
		assert.Equal(t, rep1.Placeholder, bad.Traj)
		assert.Zero(t, bad.SelPop)
		assert.Zero(t, bad.SelBegPop)
		assert.Zero(t, bad.SelGen)
		assert.Zero(t, bad.SelFreq)

		// both replicas read the same combined parameter file
		combined, err := os.ReadFile(cfg.CombinedParamFile())
		require.NoError(t, err)
		assert.Equal(t, "length 1000000\nsweep 1 0.02\n", string(combined))
		for _, c := range fake.Calls() {
			assert.Equal(t, cfg.CombinedParamFile(), simtest.Arg(c, "-p"))
		}

		assert.FileExists(t, cfg.MetricsOut)
	}
}

func TestExecuteZeroReplicas(t *testing.T) {
	dir := t.TempDir()
	writeInputs(t, dir)
	cfg := blockConfig(dir, 0)
	fake := &simtest.Fake{}

	m, err := Execute(context.Background(), cfg, Deps{Proc: fake})
	require.NoError(t, err)
	assert.Empty(t, m.ReplicaInfos)
	assert.Empty(t, fake.Calls())

	data, err := os.ReadFile(cfg.OutJSON)
	require.NoError(t, err)
	assert.Equal(t, "{\n    \"replicaInfos\": []\n}", string(data))
}

func TestExecuteCombinerFailureWritesNoManifest(t *testing.T) {
	dir := t.TempDir()
	cfg := blockConfig(dir, 2)
	fake := &simtest.Fake{}

	_, err := Execute(context.Background(), cfg, Deps{Proc: fake})
	require.Error(t, err)
	assert.NoFileExists(t, cfg.OutJSON)
	assert.Empty(t, fake.Calls())
}

func TestExecuteManifestWriteFailure(t *testing.T) {
	dir := t.TempDir()
	writeInputs(t, dir)
	cfg := blockConfig(dir, 1)
	cfg.OutJSON = filepath.Join(dir, "no-such-dir", "out.json")

	_, err := Execute(context.Background(), cfg, Deps{Proc: &simtest.Fake{}})
	assert.Error(t, err)
}

func TestExecuteAllReplicasFailStillSucceeds(t *testing.T) {
	dir := t.TempDir()
	writeInputs(t, dir)
	cfg := blockConfig(dir, 3)

	m, err := Execute(context.Background(), cfg, Deps{Proc: &simtest.Fake{}})
	require.NoError(t, err)
	require.Len(t, m.ReplicaInfos, 3)
	assert.Equal(t, 0, m.Succeeded())
}
