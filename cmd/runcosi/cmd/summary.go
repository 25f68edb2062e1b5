package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/psantana5/runcosi/internal/manifest"
)

func newSummaryCmd() *cobra.Command {
	var output string

	summaryCmd := &cobra.Command{
		Use:   "summary <manifest.json>",
		Short: "Show the replicas recorded in a block manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manifest.Read(args[0])
			if err != nil {
				return err
			}
			return printSummary(cmd.OutOrStdout(), m, output)
		},
	}
	summaryCmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table, json, yaml")
	return summaryCmd
}

func printSummary(w io.Writer, m *manifest.BlockManifest, format string) error {
	switch format {
	case "json":
		data, err := manifest.Marshal(m)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err

	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()

	case "table":
		if len(m.ReplicaInfos) == 0 {
			fmt.Fprintln(w, "No replicas in manifest")
			return nil
		}

		table := tablewriter.NewWriter(w)
		table.Header("Replica", "Model", "Block", "OK", "Seed", "SelPop", "SelGen", "SelCoeff", "SelFreq", "Tpeds")
		for _, ri := range m.ReplicaInfos {
			table.Append(
				strconv.Itoa(ri.ReplicaNum),
				ri.ModelID,
				strconv.Itoa(ri.BlockNum),
				boolToYesNo(ri.Succeeded),
				strconv.FormatInt(ri.RandomSeed, 10),
				strconv.Itoa(ri.SelPop),
				formatFloat(ri.SelGen),
				formatFloat(ri.SelCoeff),
				formatFloat(ri.SelFreq),
				ri.Tpeds,
			)
		}
		if err := table.Render(); err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}
		fmt.Fprintf(w, "\nSucceeded: %d/%d\n", m.Succeeded(), len(m.ReplicaInfos))
		return nil

	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func boolToYesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
