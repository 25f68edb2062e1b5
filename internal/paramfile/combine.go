package paramfile

import (
	"fmt"
	"os"
)

// Combine writes common followed by variable to dest. Both inputs go
// through Slurp, so .gz fragments are decompressed and the size ceiling
// applies to each. dest is written once; any error aborts the block.
func Combine(commonPath, variablePath, dest string, maxSizeMB int) error {
	common, err := Slurp(commonPath, maxSizeMB)
	if err != nil {
		return fmt.Errorf("common parameter file: %w", err)
	}
	variable, err := Slurp(variablePath, maxSizeMB)
	if err != nil {
		return fmt.Errorf("block parameter file: %w", err)
	}

	combined := make([]byte, 0, len(common)+len(variable))
	combined = append(combined, common...)
	combined = append(combined, variable...)

	if err := os.WriteFile(dest, combined, 0644); err != nil {
		return fmt.Errorf("failed to write combined parameter file %s: %w", dest, err)
	}
	return nil
}
