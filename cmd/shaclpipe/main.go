// Package main provides the shaclpipe CLI: converting tabular education
// records into shape-conformant JSON-LD, validating them, and working with
// shape definitions.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaclpipe/shaclpipe/log"
	"github.com/shaclpipe/shaclpipe/validate"
	"github.com/shaclpipe/shaclpipe/version"
)

func main() {
	logCfg := log.NewConfig()

	rootCmd := &cobra.Command{
		Use:     "shaclpipe",
		Version: version.String(),
		Short:   "Transform tabular education records into shape-conformant JSON-LD",
		Long: `shaclpipe ingests tabular education records and emits JSON-LD documents
that conform to a SHACL shape, driven by a declarative mapping config.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			handler, err := logCfg.NewHandler(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			slog.SetDefault(slog.New(handler))

			return nil
		},
	}

	logCfg.RegisterFlags(rootCmd.PersistentFlags())

	completionErr := logCfg.RegisterCompletions(rootCmd)
	if completionErr != nil {
		fmt.Fprintf(os.Stderr, "register completions: %v\n", completionErr)
	}

	rootCmd.AddCommand(
		newConvertCmd(),
		newValidateCmd(),
		newIntrospectCmd(),
		newGenerateMappingCmd(),
		newListShapesCmd(),
		newBenchmarkCmd(),
	)

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)

		if errors.Is(err, validate.ErrValidation) {
			os.Exit(2)
		}

		os.Exit(1)
	}
}
