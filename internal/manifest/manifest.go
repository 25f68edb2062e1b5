// Package manifest defines the per-block replica manifest and its on-disk
// JSON form: 4-space indented, keys sorted, one top-level replicaInfos key.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
)

// ReplicaInfo describes one attempted replica. It is built once per
// attempt and never mutated afterwards.
//
// Fields are declared in sorted JSON-key order so the encoder emits
// sorted keys.
type ReplicaInfo struct {
	BlockNum   int     `json:"blockNum" yaml:"blockNum"`
	ModelID    string  `json:"modelId" yaml:"modelId"`
	RandomSeed int64   `json:"randomSeed" yaml:"randomSeed"`
	ReplicaNum int     `json:"replicaNum" yaml:"replicaNum"`
	SelBegGen  float64 `json:"selBegGen" yaml:"selBegGen"`
	SelBegPop  int     `json:"selBegPop" yaml:"selBegPop"`
	SelCoeff   float64 `json:"selCoeff" yaml:"selCoeff"`
	SelFreq    float64 `json:"selFreq" yaml:"selFreq"`
	SelGen     float64 `json:"selGen" yaml:"selGen"`
	SelPop     int     `json:"selPop" yaml:"selPop"`
	Succeeded  bool    `json:"succeeded" yaml:"succeeded"`
	Tpeds      string  `json:"tpeds" yaml:"tpeds"`
	Traj       string  `json:"traj" yaml:"traj"`
}

// jsonFloat is a float64 that always renders with a fraction or exponent,
// so whole values come out as 500.0 rather than 500.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("unsupported value %v", v)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if !bytes.ContainsAny(b, ".eE") {
		b = append(b, ".0"...)
	}
	return b, nil
}

// replicaInfoJSON is the wire form of ReplicaInfo, in sorted key order
type replicaInfoJSON struct {
	BlockNum   int       `json:"blockNum"`
	ModelID    string    `json:"modelId"`
	RandomSeed int64     `json:"randomSeed"`
	ReplicaNum int       `json:"replicaNum"`
	SelBegGen  jsonFloat `json:"selBegGen"`
	SelBegPop  int       `json:"selBegPop"`
	SelCoeff   jsonFloat `json:"selCoeff"`
	SelFreq    jsonFloat `json:"selFreq"`
	SelGen     jsonFloat `json:"selGen"`
	SelPop     int       `json:"selPop"`
	Succeeded  bool      `json:"succeeded"`
	Tpeds      string    `json:"tpeds"`
	Traj       string    `json:"traj"`
}

// MarshalJSON keeps the selection parameters typed as floats on the wire
func (ri ReplicaInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(replicaInfoJSON{
		BlockNum:   ri.BlockNum,
		ModelID:    ri.ModelID,
		RandomSeed: ri.RandomSeed,
		ReplicaNum: ri.ReplicaNum,
		SelBegGen:  jsonFloat(ri.SelBegGen),
		SelBegPop:  ri.SelBegPop,
		SelCoeff:   jsonFloat(ri.SelCoeff),
		SelFreq:    jsonFloat(ri.SelFreq),
		SelGen:     jsonFloat(ri.SelGen),
		SelPop:     ri.SelPop,
		Succeeded:  ri.Succeeded,
		Tpeds:      ri.Tpeds,
		Traj:       ri.Traj,
	})
}

// BlockManifest is the aggregated record of one block, ordered by
// ReplicaNum.
type BlockManifest struct {
	ReplicaInfos []ReplicaInfo `json:"replicaInfos" yaml:"replicaInfos"`
}

// Succeeded counts successful replicas
func (m *BlockManifest) Succeeded() int {
	n := 0
	for _, ri := range m.ReplicaInfos {
		if ri.Succeeded {
			n++
		}
	}
	return n
}

// Marshal renders m in the manifest JSON layout
func Marshal(m *BlockManifest) ([]byte, error) {
	if m.ReplicaInfos == nil {
		m = &BlockManifest{ReplicaInfos: []ReplicaInfo{}}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Write stores m at path. The manifest is written exactly once per block.
func Write(path string, m *BlockManifest) error {
	data, err := Marshal(m)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest %s: %w", path, err)
	}
	return nil
}

// Unmarshal parses a manifest. Unknown keys are rejected.
func Unmarshal(data []byte) (*BlockManifest, error) {
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(string(data))))
	dec.DisallowUnknownFields()
	var m BlockManifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.ReplicaInfos == nil {
		m.ReplicaInfos = []ReplicaInfo{}
	}
	return &m, nil
}

// Read loads a manifest from path
func Read(path string) (*BlockManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	return Unmarshal(data)
}
