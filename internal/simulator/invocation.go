package simulator

import (
	"os"
	"strconv"
)

// DefaultBinary is the cosi2 executable name
const DefaultBinary = "coalescent"

// Fraction of singletons dropped from the tped output
const dropSingletons = ".25"

// Invocation is everything needed to run one replica of the simulator.
type Invocation struct {
	Binary      string
	RecombFile  string
	ParamFile   string
	MaxAttempts int
	Seed        int64
	Names       Names
}

// Command is a fully resolved external process: what to run, with which
// environment, from which directory.
type Command struct {
	Path string
	Args []string
	Env  []string
	Dir  string
}

// Env returns the COSI_* variables for this invocation
func (inv Invocation) Env() []string {
	return []string{
		"COSI_NEWSIM=1",
		"COSI_MAXATTEMPTS=" + strconv.Itoa(inv.MaxAttempts),
		"COSI_SAVE_TRAJ=" + inv.Names.Traj,
		"COSI_SAVE_SWEEP_INFO=" + inv.Names.SweepInfo,
	}
}

// Args returns the command-line flags for this invocation
func (inv Invocation) Args() []string {
	return []string{
		"-R", inv.RecombFile,
		"-p", inv.ParamFile,
		"-v",
		"-g",
		"-r", strconv.FormatInt(inv.Seed, 10),
		"--genmapRandomRegions",
		"--drop-singletons", dropSingletons,
		"--tped", inv.Names.TpedPrefix,
	}
}

// Command resolves the invocation. The COSI_* variables are appended to
// the current process environment.
func (inv Invocation) Command(dir string) Command {
	binary := inv.Binary
	if binary == "" {
		binary = DefaultBinary
	}
	env := append(os.Environ(), inv.Env()...)
	return Command{
		Path: binary,
		Args: inv.Args(),
		Env:  env,
		Dir:  dir,
	}
}
