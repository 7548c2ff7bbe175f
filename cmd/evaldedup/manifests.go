package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"

	"github.com/ThakiCloud/vllm-eval/internal/manifest"
)

const defaultOutputDir = "datasets/processed"

func buildVerifyCmd(state *cli) *cobra.Command {
	var outputDir string
	cmd := &cobra.Command{
		Use:   "verify <name> <version>",
		Short: "Recompute a committed corpus checksum and compare it with its manifest",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			verified, err := manifest.NewWriter(outputDir).Verify(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(state.output, "verify passed: %s@%s %s\n", verified.Name, verified.Version, verified.Checksum)
			return nil
		},
	}
	cmd.Flags().StringVar(&outputDir, "output-dir", defaultOutputDir, "root directory for corpora and manifests")
	return cmd
}

func buildManifestsCmd(state *cli) *cobra.Command {
	var outputDir string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "manifests [name]",
		Short: "List datasets, or the committed versions of one dataset",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := manifest.OpenExistingRegistry(cmd.Context(), manifest.RegistryPath(outputDir))
			if err != nil {
				return err
			}
			defer registry.Close()

			if len(args) == 0 {
				names, err := registry.Datasets()
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(state.output, name)
				}
				return nil
			}

			manifests, err := registry.List(args[0])
			if err != nil {
				return err
			}
			if len(manifests) == 0 {
				return fmt.Errorf("no manifests for dataset %q", args[0])
			}
			if asJSON {
				for _, entry := range manifests {
					payload, err := json.Marshal(entry)
					if err != nil {
						return err
					}
					fmt.Fprintf(state.output, "%s\n", pretty.Ugly(payload))
				}
				return nil
			}
			table := tabwriter.NewWriter(state.output, 0, 4, 2, ' ', 0)
			fmt.Fprintln(table, "VERSION\tRECORDS\tREMOVED\tCHECKSUM\tCREATED")
			for _, entry := range manifests {
				fmt.Fprintf(table, "%s\t%d\t%d\t%s\t%s\n", entry.Version, entry.DeduplicatedSize,
					entry.OriginalSize-entry.DeduplicatedSize, entry.Checksum, entry.CreatedAt.Format(time.RFC3339))
			}
			return table.Flush()
		},
	}
	cmd.Flags().StringVar(&outputDir, "output-dir", defaultOutputDir, "root directory for corpora and manifests")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print one JSON manifest per line")
	return cmd
}
