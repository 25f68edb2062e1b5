package block

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/psantana5/runcosi/internal/paramfile"
)

// Params is the per-block JSON parameters file written by the calling
// workflow. Keys that are absent stay nil.
type Params struct {
	BlockNum        *int    `json:"blockNum,omitempty"`
	MaxAttempts     *int    `json:"maxAttempts,omitempty"`
	ModelID         *string `json:"modelId,omitempty"`
	NumSimsInBlock  *int    `json:"numSimsInBlock,omitempty"`
	OutJSON         *string `json:"outJson,omitempty"`
	ParamFile       *string `json:"paramFile,omitempty"`
	ParamFileCommon *string `json:"paramFileCommon,omitempty"`
	RecombFile      *string `json:"recombFile,omitempty"`
	SimBlockID      *string `json:"simBlockId,omitempty"`
}

// LoadParams slurps and decodes a parameters file. Gzipped files and the
// size ceiling are handled as for parameter sources. Unrecognized keys
// are ignored.
func LoadParams(path string, maxSizeMB int) (*Params, error) {
	data, err := paramfile.Slurp(path, maxSizeMB)
	if err != nil {
		return nil, err
	}
	var p Params
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to parse params %s: %w", path, err)
	}
	return &p, nil
}

// Pretty renders the keys that were present, sorted, with 4-space indent
func (p *Params) Pretty() ([]byte, error) {
	data, err := json.MarshalIndent(p, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode params: %w", err)
	}
	return data, nil
}
