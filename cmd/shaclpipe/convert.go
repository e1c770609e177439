package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/shaclpipe/shaclpipe/pipeline"
	"github.com/shaclpipe/shaclpipe/validate"
)

type convertConfig struct {
	Shape     string
	Input     string
	Output    string
	Format    string
	ShapesDir string
	Validate  bool
	Mode      string
	Pretty    bool
	Compact   bool
	DLQ       string
	Sheet     int
}

func newConvertCmd() *cobra.Command {
	cfg := &convertConfig{}

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert tabular records into JSON-LD documents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConvert(cmd, cfg)
		},
	}

	cmd.Flags().StringVarP(&cfg.Shape, "shape", "s", "", "shape name to convert against")
	cmd.Flags().StringVarP(&cfg.Input, "input", "i", "", "input file (.csv, .ndjson, .jsonl)")
	cmd.Flags().StringVarP(&cfg.Output, "output", "o", "-", "output file, or - for stdout")
	cmd.Flags().StringVar(&cfg.Format, "format", "ndjson", "output format, one of: json, ndjson")
	cmd.Flags().StringVar(&cfg.ShapesDir, "shapes-dir", "", "directory holding shape folders")
	cmd.Flags().BoolVar(&cfg.Validate, "validate", false, "run pre-build validation on every record")
	cmd.Flags().StringVar(&cfg.Mode, "mode", string(validate.ModeReport), "validation mode, one of: strict, report, sample")
	cmd.Flags().BoolVar(&cfg.Pretty, "pretty", false, "indent JSON output")
	cmd.Flags().BoolVar(&cfg.Compact, "compact", false, "compact JSON output (default)")
	cmd.Flags().StringVar(&cfg.DLQ, "dead-letter", "", "append rejected records to this NDJSON file")
	cmd.Flags().IntVar(&cfg.Sheet, "sheet", 0, "workbook sheet number, for spreadsheet sources")

	_ = cmd.MarkFlagRequired("shape")
	_ = cmd.MarkFlagRequired("input")

	_ = cmd.RegisterFlagCompletionFunc("format",
		cobra.FixedCompletions([]string{"json", "ndjson"}, cobra.ShellCompDirectiveNoFileComp))
	_ = cmd.RegisterFlagCompletionFunc("mode",
		cobra.FixedCompletions([]string{"strict", "report", "sample"}, cobra.ShellCompDirectiveNoFileComp))

	return cmd
}

func runConvert(cmd *cobra.Command, cfg *convertConfig) error {
	def, err := newRegistry(cfg.ShapesDir).Load(cfg.Shape)
	if err != nil {
		return err
	}

	if cfg.Sheet != 0 {
		return fmt.Errorf("--sheet applies to spreadsheet sources; %q is not a workbook", cfg.Input)
	}

	src, err := sourceFor(cfg.Input)
	if err != nil {
		return err
	}

	opts := []pipeline.Option{}

	if cfg.Validate {
		mode, err := validate.ParseMode(cfg.Mode)
		if err != nil {
			return err
		}

		opts = append(opts, pipeline.WithValidation(mode, 1.0))
	}

	if cfg.DLQ != "" {
		opts = append(opts, pipeline.WithDeadLetter(cfg.DLQ))
	}

	if term.IsTerminal(int(os.Stderr.Fd())) {
		opts = append(opts, pipeline.WithProgress(func(processed, total int64) {
			if total > 0 {
				fmt.Fprintf(os.Stderr, "\rprocessed %d/%d records", processed, total)
			} else {
				fmt.Fprintf(os.Stderr, "\rprocessed %d records", processed)
			}
		}, 0))
	}

	p, err := pipeline.New(def, src, opts...)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	var result *pipeline.Result

	pretty := cfg.Pretty && !cfg.Compact

	switch {
	case cfg.Output == "-" || cfg.Output == "":
		if cfg.Format == "json" {
			result, err = p.WriteJSON(ctx, cmd.OutOrStdout(), pretty)
		} else {
			result, err = p.WriteNDJSON(ctx, cmd.OutOrStdout())
		}
	case cfg.Format == "json":
		result, err = p.ToJSON(ctx, cfg.Output, pretty)
	default:
		result, err = p.ToNDJSON(ctx, cfg.Output)
	}

	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "\n%d in, %d out, %d failed, %d filtered (%.0f records/s)\n",
		result.RecordsIn, result.RecordsOut, result.RecordsFailed, result.RecordsFiltered,
		result.RecordsPerSecond)

	return nil
}
