package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shaclpipe/shaclpipe/pipeline"
	"github.com/shaclpipe/shaclpipe/validate"
)

type validateConfig struct {
	Shape      string
	Input      string
	ShapesDir  string
	Mode       string
	SHACL      bool
	SampleRate float64
}

func newValidateCmd() *cobra.Command {
	cfg := &validateConfig{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate records against a shape without writing output",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd, cfg)
		},
	}

	cmd.Flags().StringVarP(&cfg.Shape, "shape", "s", "", "shape name to validate against")
	cmd.Flags().StringVarP(&cfg.Input, "input", "i", "", "input file (.csv, .ndjson, .jsonl)")
	cmd.Flags().StringVar(&cfg.ShapesDir, "shapes-dir", "", "directory holding shape folders")
	cmd.Flags().StringVar(&cfg.Mode, "mode", string(validate.ModeReport), "validation mode, one of: strict, report, sample")
	cmd.Flags().BoolVar(&cfg.SHACL, "shacl", false, "additionally run the full SHACL round-trip tier")
	cmd.Flags().Float64Var(&cfg.SampleRate, "sample-rate", 0.1, "fraction of records validated in sample mode")

	_ = cmd.MarkFlagRequired("shape")
	_ = cmd.MarkFlagRequired("input")

	_ = cmd.RegisterFlagCompletionFunc("mode",
		cobra.FixedCompletions([]string{"strict", "report", "sample"}, cobra.ShellCompDirectiveNoFileComp))

	return cmd
}

func runValidate(cmd *cobra.Command, cfg *validateConfig) error {
	def, err := newRegistry(cfg.ShapesDir).Load(cfg.Shape)
	if err != nil {
		return err
	}

	src, err := sourceFor(cfg.Input)
	if err != nil {
		return err
	}

	mode, err := validate.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}

	p, err := pipeline.New(def, src)
	if err != nil {
		return err
	}

	result, err := p.Validate(cmd.Context(), mode, cfg.SHACL, cfg.SampleRate)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	for _, issue := range result.Issues {
		fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%s\n",
			issue.Severity, issue.Kind, issue.RecordID, issue.FieldPath, issue.Message)
	}

	fmt.Fprintf(out, "conforms=%t errors=%d warnings=%d\n", result.Conforms, result.Errors, result.Warnings)

	if !result.Conforms {
		return &validate.Error{Result: result}
	}

	return nil
}
