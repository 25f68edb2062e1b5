package manifest

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *BlockManifest {
	return &BlockManifest{ReplicaInfos: []ReplicaInfo{
		{
			ModelID: "default_112115_825am", BlockNum: 3, ReplicaNum: 0,
			Succeeded: true, RandomSeed: 239,
			Tpeds: "blk3.0.tpeds.tar.gz", Traj: "blk3.0.traj",
			SelPop: 3, SelGen: 0.1, SelBegPop: 2, SelBegGen: 0, SelCoeff: 0.02, SelFreq: 0.33,
		},
		{
			ModelID: "default_112115_825am", BlockNum: 3, ReplicaNum: 1,
			RandomSeed: 1234567, Tpeds: "blk3.1.empty", Traj: "blk3.1.empty",
		},
	}}
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	m := sample()

	require.NoError(t, Write(path, m))
	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestMarshalLayout(t *testing.T) {
	data, err := Marshal(sample())
	require.NoError(t, err)
	text := string(data)

	assert.True(t, strings.HasPrefix(text, "{\n    \"replicaInfos\": ["))
	assert.Contains(t, text, "\n            \"blockNum\": 3,")

	var top map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &top))
	assert.Len(t, top, 1)

	var entries []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(top["replicaInfos"], &entries))
	require.Len(t, entries, 2)

	// keys must appear in sorted order in the raw text
	var keys []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "\"") && strings.Contains(line, "\": ") && !strings.HasPrefix(line, "\"replicaInfos\"") {
			keys = append(keys, line[1:strings.Index(line[1:], "\"")+1])
		}
		if line == "}," {
			break
		}
	}
	require.Len(t, keys, 13)
	assert.True(t, sort.StringsAreSorted(keys), "keys not sorted: %v", keys)
}

func TestMarshalWholeFloats(t *testing.T) {
	m := sample()
	m.ReplicaInfos[0].SelGen = 500
	m.ReplicaInfos[0].SelFreq = 1e-7

	data, err := Marshal(m)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, `"selGen": 500.0,`)
	assert.Contains(t, text, `"selBegGen": 0.0,`)
	assert.Contains(t, text, `"selCoeff": 0.02,`)
	assert.Contains(t, text, `"selFreq": 1e-7,`)
	assert.Contains(t, text, `"selPop": 3,`)
	assert.Contains(t, text, `"randomSeed": 239,`)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestMarshalRejectsNonFinite(t *testing.T) {
	m := sample()
	m.ReplicaInfos[0].SelCoeff = math.Inf(1)
	_, err := Marshal(m)
	assert.Error(t, err)
}

func TestMarshalEmpty(t *testing.T) {
	data, err := Marshal(&BlockManifest{})
	require.NoError(t, err)
	assert.Equal(t, "{\n    \"replicaInfos\": []\n}", string(data))

	m, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Empty(t, m.ReplicaInfos)
}

func TestUnmarshalRejectsUnknownKeys(t *testing.T) {
	_, err := Unmarshal([]byte(`{"replicaInfos": [], "extra": 1}`))
	assert.Error(t, err)
}

func TestWriteUnwritable(t *testing.T) {
	dir := t.TempDir()
	err := Write(filepath.Join(dir, "missing", "out.json"), sample())
	assert.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "missing"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestSucceededCount(t *testing.T) {
	assert.Equal(t, 1, sample().Succeeded())
}
