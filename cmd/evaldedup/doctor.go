package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ThakiCloud/vllm-eval/internal/manifest"
	"github.com/ThakiCloud/vllm-eval/internal/runlock"
)

type doctorCheck struct {
	name    string
	ok      bool
	details string
}

func buildDoctorCmd(state *cli) *cobra.Command {
	var outputDir string
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the registry, every committed corpus and its sidecar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd.Context(), state, outputDir)
		},
	}
	cmd.Flags().StringVar(&outputDir, "output-dir", defaultOutputDir, "root directory for corpora and manifests")
	return cmd
}

func runDoctor(ctx context.Context, state *cli, outputDir string) error {
	if _, err := os.Stat(manifest.RegistryPath(outputDir)); err != nil {
		return fmt.Errorf("no manifest registry under %s: %w", outputDir, err)
	}
	registry, err := manifest.OpenExistingRegistry(ctx, manifest.RegistryPath(outputDir))
	if err != nil {
		return err
	}
	defer registry.Close()

	names, err := registry.Datasets()
	if err != nil {
		return err
	}
	checks := make([]doctorCheck, 0, len(names))
	for _, name := range names {
		checks = append(checks, checkLock(outputDir, name))
		manifests, err := registry.List(name)
		if err != nil {
			return err
		}
		for _, entry := range manifests {
			checks = append(checks, checkCorpus(entry), checkSidecar(entry))
		}
	}

	hasFailure := false
	for _, check := range checks {
		status := "PASS"
		if !check.ok {
			status = "FAIL"
			hasFailure = true
		}
		fmt.Fprintf(state.output, "[%s] %s: %s\n", status, check.name, check.details)
	}
	if hasFailure {
		fmt.Fprintln(state.errorOutput, "evaldedup doctor found corrupted or inconsistent corpora.")
		return fmt.Errorf("one or more doctor checks failed")
	}
	fmt.Fprintf(state.output, "evaldedup doctor passed: %d datasets checked.\n", len(names))
	return nil
}

func checkLock(outputDir string, name string) doctorCheck {
	lock, err := runlock.TryAcquire(outputDir, name)
	if err != nil {
		return doctorCheck{name: name + " lock", ok: false, details: err.Error()}
	}
	lock.Release()
	return doctorCheck{name: name + " lock", ok: true, details: "free"}
}

func checkCorpus(entry manifest.DatasetManifest) doctorCheck {
	label := entry.Name + "@" + entry.Version + " corpus"
	if err := manifest.VerifyCorpus(entry); err != nil {
		return doctorCheck{name: label, ok: false, details: err.Error()}
	}
	return doctorCheck{name: label, ok: true, details: entry.Checksum}
}

func checkSidecar(entry manifest.DatasetManifest) doctorCheck {
	label := entry.Name + "@" + entry.Version + " manifest.yaml"
	sidecar, err := manifest.ReadSidecar(filepath.Join(filepath.Dir(entry.OutputPath), "manifest.yaml"))
	if err != nil {
		return doctorCheck{name: label, ok: false, details: err.Error()}
	}
	if sidecar.Checksum != entry.Checksum {
		return doctorCheck{name: label, ok: false, details: fmt.Sprintf("checksum %s differs from registry %s", sidecar.Checksum, entry.Checksum)}
	}
	return doctorCheck{name: label, ok: true, details: "matches registry"}
}
