package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaclpipe/shaclpipe/shacl"
)

type introspectConfig struct {
	SHACLFile string
	JSON      bool
}

func newIntrospectCmd() *cobra.Command {
	cfg := &introspectConfig{}

	cmd := &cobra.Command{
		Use:   "introspect",
		Short: "Parse a SHACL file and print its node shape tree",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIntrospect(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.SHACLFile, "shacl", "", "SHACL Turtle file to introspect")
	cmd.Flags().BoolVar(&cfg.JSON, "json", false, "emit the shape tree as JSON")

	_ = cmd.MarkFlagRequired("shacl")

	return cmd
}

func runIntrospect(cmd *cobra.Command, cfg *introspectConfig) error {
	data, err := os.ReadFile(cfg.SHACLFile)
	if err != nil {
		return fmt.Errorf("reading %s: %w", cfg.SHACLFile, err)
	}

	graph, err := shacl.ParseTurtle(data)
	if err != nil {
		return err
	}

	tree, err := shacl.BuildTree(graph, nil)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if cfg.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")

		return enc.Encode(tree)
	}

	names := make([]string, 0, len(tree))
	for name := range tree {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		info := tree[name]

		fmt.Fprintf(out, "%s (target: %s)\n", info.Name, info.TargetClass)

		for _, prop := range info.Properties {
			var notes []string

			if prop.Required() {
				notes = append(notes, "required")
			}

			if prop.Multiple() {
				notes = append(notes, "multiple")
			}

			if prop.Datatype != "" {
				notes = append(notes, prop.Datatype)
			}

			if len(prop.AllowedValues) > 0 {
				notes = append(notes, fmt.Sprintf("%d allowed values", len(prop.AllowedValues)))
			}

			suffix := ""
			if len(notes) > 0 {
				suffix = " [" + strings.Join(notes, ", ") + "]"
			}

			fmt.Fprintf(out, "  %s%s\n", prop.LocalName, suffix)
		}
	}

	return nil
}
