package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/ThakiCloud/vllm-eval/internal/logger"
)

type cli struct {
	output      io.Writer
	errorOutput io.Writer
	logLevel    string
	logJSON     bool
	log         logger.Logger
}

func newRootCommand(output io.Writer, errorOutput io.Writer) *cobra.Command {
	state := &cli{output: output, errorOutput: errorOutput, log: logger.Discard()}
	root := &cobra.Command{
		Use:           "evaldedup",
		Short:         "Deduplicate and version evaluation datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logger.ParseLevel(state.logLevel)
			if err != nil {
				return err
			}
			config := logger.DefaultConfig()
			config.Level = level
			config.JSON = state.logJSON
			config.Output = state.errorOutput
			state.log = logger.New(config)
			return nil
		},
	}
	root.SetOut(output)
	root.SetErr(errorOutput)
	root.PersistentFlags().StringVar(&state.logLevel, "log-level", "info", "log level (debug|info|warn|error)")
	root.PersistentFlags().BoolVar(&state.logJSON, "log-json", false, "emit logs as JSON")

	root.AddCommand(
		buildRunCmd(state),
		buildValidateCmd(state),
		buildVerifyCmd(state),
		buildManifestsCmd(state),
		buildDoctorCmd(state),
	)
	return root
}
