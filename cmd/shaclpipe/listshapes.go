package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListShapesCmd() *cobra.Command {
	var shapesDir string

	cmd := &cobra.Command{
		Use:   "list-shapes",
		Short: "List shape folders discoverable under the shapes directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := newRegistry(shapesDir).ListShapes()
			if err != nil {
				return err
			}

			if len(names) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "no shapes found")

				return nil
			}

			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&shapesDir, "shapes-dir", "", "directory holding shape folders")

	return cmd
}
