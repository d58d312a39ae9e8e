package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/c-daly/logos/internal/shacl"
)

var (
	validateFormat    string
	validateInference string
	validateAbort     bool
)

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate an RDF delta against the shape set, offline",
	Long: `Validate parses an RDF document (a file argument, or stdin when
omitted) and checks it against the configured shape set without touching the
backend. Exit status is non-zero when the document does not conform.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		var err error
		if len(args) == 1 {
			data, err = os.ReadFile(args[0])
		} else {
			data, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return err
		}

		format, err := shacl.ParseFormat(validateFormat)
		if err != nil {
			return err
		}
		mode := cfg.Validation.InferenceMode
		if validateInference != "" {
			mode = validateInference
		}
		inference, err := shacl.ParseInferenceMode(mode)
		if err != nil {
			return err
		}

		registry, err := shapeRegistry()
		if err != nil {
			return err
		}

		report, err := shacl.NewValidator(registry).Validate(string(data), format, inference, validateAbort)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))

		if !report.Conforms {
			return fmt.Errorf("document does not conform: %d violation(s)", len(report.Violations))
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validateFormat, "format", "f", "turtle", "RDF format: turtle, ntriples, jsonld")
	validateCmd.Flags().StringVar(&validateInference, "inference", "", "Inference mode: none, rdfs, owl, both (default from config)")
	validateCmd.Flags().BoolVar(&validateAbort, "abort-on-first", false, "Stop at the first violation")
}
