package simulator

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// SweepInfo is the selection summary cosi2 writes for one simulation.
type SweepInfo struct {
	SimNum    int
	SelPop    int
	SelGen    float64
	SelBegPop int
	SelBegGen float64
	SelCoeff  float64
	SelFreq   float64
}

const sweepInfoFields = 7

// simNum, selPop and selBegPop
var integerField = [sweepInfoFields]bool{0: true, 1: true, 3: true}

// ParseSweepInfo parses exactly seven whitespace-separated numbers:
// simNum selPop selGen selBegPop selBegGen selCoeff selFreq.
// Simulation and population numbers may be written as floats but must be
// whole and fit in an int32.
func ParseSweepInfo(text string) (SweepInfo, error) {
	fields := strings.Fields(text)
	if len(fields) != sweepInfoFields {
		return SweepInfo{}, fmt.Errorf("sweep info has %d fields, want %d", len(fields), sweepInfoFields)
	}

	vals := make([]float64, sweepInfoFields)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return SweepInfo{}, fmt.Errorf("sweep info field %d: %w", i, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return SweepInfo{}, fmt.Errorf("sweep info field %d is not finite: %s", i, f)
		}
		if integerField[i] && (v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32) {
			return SweepInfo{}, fmt.Errorf("sweep info field %d is not a valid integer: %s", i, f)
		}
		vals[i] = v
	}

	return SweepInfo{
		SimNum:    int(vals[0]),
		SelPop:    int(vals[1]),
		SelGen:    vals[2],
		SelBegPop: int(vals[3]),
		SelBegGen: vals[4],
		SelCoeff:  vals[5],
		SelFreq:   vals[6],
	}, nil
}

// ReadSweepInfo reads and parses a sweep info file
func ReadSweepInfo(path string) (SweepInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SweepInfo{}, fmt.Errorf("failed to read sweep info %s: %w", path, err)
	}
	si, err := ParseSweepInfo(string(data))
	if err != nil {
		return SweepInfo{}, fmt.Errorf("%s: %w", path, err)
	}
	return si, nil
}
