package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/psantana5/runcosi/internal/block"
	"github.com/psantana5/runcosi/internal/logging"
	"github.com/psantana5/runcosi/internal/paramfile"
	"github.com/psantana5/runcosi/internal/simulator"
)

// blockFlags holds the per-block inputs. These come from the calling
// workflow engine on every invocation, as flags or as a params JSON file,
// never from the config file.
type blockFlags struct {
	paramsJSON string

	paramFileCommon string
	paramFile       string
	recombFile      string
	modelID         string
	simBlockID      string
	blockNum        int
	numSimsInBlock  int
	maxAttempts     int
	outJSON         string
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree with its own viper instance
func NewRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string
	var bf blockFlags

	rootCmd := &cobra.Command{
		Use:   "runcosi [params_json [out_json]]",
		Short: "Run one block of cosi2 simulations",
		Long: `runcosi runs a fixed number of independent cosi2 replicas for one block
of a simulation job and writes a JSON manifest with one record per replica.

A failed replica is recorded in the manifest and does not fail the command.

Example:
  runcosi --paramFileCommon common.par --paramFile blk3.par.gz \
    --recombFile recom.map --modelId default_112115_825am \
    --simBlockId blk3 --blockNum 3 --numSimsInBlock 10 \
    --maxAttempts 10000 --outJson blk3.replicas.json

The block inputs can also come from a JSON file with the same camelCase
keys. Flags given on the command line take precedence over its values:
  runcosi blk3.params.json blk3.replicas.json
  runcosi --paramsJson blk3.params.json --numSimsInBlock 2 --outJson out.json`,
		Args:         cobra.MaximumNArgs(2),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, cfgFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveBlockFlags(cmd, args, v.GetInt("max_slurp_mb"), &bf); err != nil {
				return err
			}
			return runBlock(cmd.Context(), v, bf)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ./runcosi.yaml or $HOME/.runcosi/config.yaml)")
	pf.String("logLevel", "info", "log level: debug, info, warn, error")
	pf.Bool("logJson", false, "emit logs as JSON lines")

	f := rootCmd.Flags()
	f.StringVar(&bf.paramsJSON, "paramsJson", "", "JSON file with the block inputs below")
	f.StringVar(&bf.paramFileCommon, "paramFileCommon", "", "the common part of all parameter files")
	f.StringVar(&bf.paramFile, "paramFile", "", "the variable part of all parameter files")
	f.StringVar(&bf.recombFile, "recombFile", "", "the recombination file")
	f.StringVar(&bf.modelID, "modelId", "", "demographic model id")
	f.StringVar(&bf.simBlockID, "simBlockId", "", "string ID of the simulation block")
	f.IntVar(&bf.blockNum, "blockNum", 0, "number of the block of simulations")
	f.IntVar(&bf.numSimsInBlock, "numSimsInBlock", 0, "number of simulations in this block")
	f.IntVar(&bf.maxAttempts, "maxAttempts", 0, "max # of times to try simulating forward frequency trajectory before giving up")
	f.StringVar(&bf.outJSON, "outJson", "", "json file describing the simulation results")

	f.String("cosiBinary", simulator.DefaultBinary, "cosi2 executable")
	f.String("workDir", ".", "directory for per-replica outputs")
	f.Int("workers", 1, "replicas to run at once (1 = sequential, 0 = one per CPU)")
	f.Duration("simTimeout", 0, "kill a replica's simulator after this long (0 = no limit)")
	f.Int("maxSlurpMb", paramfile.DefaultMaxSizeMB, "reject parameter files larger than this many MB (0 = no limit)")
	f.String("metricsOut", "", "write Prometheus textfile metrics here")

	bind := map[string]string{
		"log_level":    "logLevel",
		"log_json":     "logJson",
		"cosi_binary":  "cosiBinary",
		"work_dir":     "workDir",
		"workers":      "workers",
		"sim_timeout":  "simTimeout",
		"max_slurp_mb": "maxSlurpMb",
		"metrics_out":  "metricsOut",
	}
	for key, flag := range bind {
		fl := f.Lookup(flag)
		if fl == nil {
			fl = pf.Lookup(flag)
		}
		_ = v.BindPFlag(key, fl)
	}

	rootCmd.AddCommand(newSummaryCmd())
	return rootCmd
}

// initConfig reads the optional config file and RUNCOSI_* env variables
func initConfig(v *viper.Viper, cfgFile string) error {
	v.SetEnvPrefix("RUNCOSI")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", cfgFile, err)
		}
		return nil
	}

	v.SetConfigName("runcosi")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".runcosi"))
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

// requiredBlockFlags must each be set by a flag, a positional argument or
// the params file
var requiredBlockFlags = []string{
	"paramFileCommon", "paramFile", "recombFile", "modelId", "simBlockId",
	"blockNum", "numSimsInBlock", "maxAttempts", "outJson",
}

// resolveBlockFlags completes bf from the positional arguments and the
// params file, then checks that every block input was given. The first
// positional argument is the params file, the second the output manifest.
func resolveBlockFlags(cmd *cobra.Command, args []string, maxSlurpMB int, bf *blockFlags) error {
	fs := cmd.Flags()
	present := make(map[string]bool, len(requiredBlockFlags))
	for _, name := range requiredBlockFlags {
		present[name] = fs.Changed(name)
	}

	if len(args) > 0 {
		if fs.Changed("paramsJson") {
			return errors.New("params file given both as argument and with --paramsJson")
		}
		bf.paramsJSON = args[0]
	}
	if len(args) > 1 && !present["outJson"] {
		bf.outJSON = args[1]
		present["outJson"] = true
	}

	if bf.paramsJSON != "" {
		p, err := block.LoadParams(bf.paramsJSON, maxSlurpMB)
		if err != nil {
			return err
		}
		pretty, err := p.Pretty()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(pretty))
		applyParams(p, bf, present)
	}

	var missing []string
	for _, name := range requiredBlockFlags {
		if !present[name] {
			missing = append(missing, fmt.Sprintf("%q", name))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required flag(s) %s not set", strings.Join(missing, ", "))
	}
	return nil
}

// applyParams copies params file values into bf for inputs not already
// present
func applyParams(p *block.Params, bf *blockFlags, present map[string]bool) {
	str := func(name string, dst, val *string) {
		if val != nil && !present[name] {
			*dst = *val
			present[name] = true
		}
	}
	num := func(name string, dst, val *int) {
		if val != nil && !present[name] {
			*dst = *val
			present[name] = true
		}
	}

	str("paramFileCommon", &bf.paramFileCommon, p.ParamFileCommon)
	str("paramFile", &bf.paramFile, p.ParamFile)
	str("recombFile", &bf.recombFile, p.RecombFile)
	str("modelId", &bf.modelID, p.ModelID)
	str("simBlockId", &bf.simBlockID, p.SimBlockID)
	num("blockNum", &bf.blockNum, p.BlockNum)
	num("numSimsInBlock", &bf.numSimsInBlock, p.NumSimsInBlock)
	num("maxAttempts", &bf.maxAttempts, p.MaxAttempts)
	str("outJson", &bf.outJSON, p.OutJSON)
}

func newLogger(v *viper.Viper) *logging.Logger {
	return logging.NewLogger(logging.ParseLevel(v.GetString("log_level")), v.GetBool("log_json"))
}

func runBlock(ctx context.Context, v *viper.Viper, bf blockFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := block.Config{
		ParamFileCommon: bf.paramFileCommon,
		ParamFile:       bf.paramFile,
		RecombFile:      bf.recombFile,
		ModelID:         bf.modelID,
		SimBlockID:      bf.simBlockID,
		BlockNum:        bf.blockNum,
		NumSimsInBlock:  bf.numSimsInBlock,
		MaxAttempts:     bf.maxAttempts,
		OutJSON:         bf.outJSON,

		CosiBinary: v.GetString("cosi_binary"),
		WorkDir:    v.GetString("work_dir"),
		Workers:    v.GetInt("workers"),
		SimTimeout: v.GetDuration("sim_timeout"),
		MaxSlurpMB: v.GetInt("max_slurp_mb"),
		MetricsOut: v.GetString("metrics_out"),
	}

	log := newLogger(v)
	_, err := block.Execute(ctx, cfg, block.Deps{Log: log})
	if err != nil {
		log.Error("block failed", map[string]interface{}{"error": err.Error()})
		return err
	}
	return nil
}
