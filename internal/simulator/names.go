package simulator

import (
	"fmt"
	"path/filepath"
)

// Names holds the per-replica file names. All of them embed the replica
// index, so replicas of one block never share a file.
type Names struct {
	TpedPrefix  string
	Traj        string
	SweepInfo   string
	Archive     string
	Placeholder string
}

// NamesFor derives the file names for one replica under workDir
func NamesFor(workDir, simBlockID string, replicaNum int) Names {
	base := filepath.Join(workDir, fmt.Sprintf("%s.%d", simBlockID, replicaNum))
	return Names{
		TpedPrefix:  base,
		Traj:        base + ".traj",
		SweepInfo:   base + ".sweepinfo.tsv",
		Archive:     base + ".tpeds.tar.gz",
		Placeholder: base + ".empty",
	}
}
