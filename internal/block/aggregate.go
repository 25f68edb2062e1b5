// Package block runs every replica of a simulation block and assembles
// the block manifest.
package block

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/psantana5/runcosi/internal/manifest"
)

// ReplicaRunner attempts a single replica
type ReplicaRunner interface {
	Run(ctx context.Context, replicaNum int) (manifest.ReplicaInfo, error)
}

// Aggregate runs replicas 0..n-1 and returns them in index order.
// workers <= 1 runs them one after another. Larger values run up to that
// many at once; a replica's simulation failure is already folded into its
// record, so only runner errors stop the block.
func Aggregate(ctx context.Context, runner ReplicaRunner, n, workers int) (*manifest.BlockManifest, error) {
	if n < 0 {
		return nil, fmt.Errorf("number of replicas must be >= 0, got %d", n)
	}
	infos := make([]manifest.ReplicaInfo, n)

	if workers <= 1 {
		for i := 0; i < n; i++ {
			ri, err := runner.Run(ctx, i)
			if err != nil {
				return nil, err
			}
			infos[i] = ri
		}
		return &manifest.BlockManifest{ReplicaInfos: infos}, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			ri, err := runner.Run(gctx, i)
			if err != nil {
				return err
			}
			infos[i] = ri
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &manifest.BlockManifest{ReplicaInfos: infos}, nil
}
