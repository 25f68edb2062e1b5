package block

import (
	"github.com/shirou/gopsutil/v3/cpu"
)

// ResolveWorkers maps the configured worker count to an effective one.
// Zero means one worker per logical CPU; negative values mean sequential.
func ResolveWorkers(configured int) int {
	if configured > 0 {
		return configured
	}
	if configured < 0 {
		return 1
	}
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return 1
	}
	return n
}
