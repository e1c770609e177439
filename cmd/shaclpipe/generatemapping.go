package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaclpipe/shaclpipe/ldcontext"
	"github.com/shaclpipe/shaclpipe/mapping"
	"github.com/shaclpipe/shaclpipe/shacl"
)

type generateMappingConfig struct {
	SHACLFile   string
	Output      string
	ContextURL  string
	ContextFile string
	BaseURI     string
	Shape       string
}

func newGenerateMappingCmd() *cobra.Command {
	cfg := &generateMappingConfig{}

	cmd := &cobra.Command{
		Use:   "generate-mapping",
		Short: "Generate a skeleton mapping config from a SHACL shape",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerateMapping(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.SHACLFile, "shacl", "", "SHACL Turtle file to generate from")
	cmd.Flags().StringVarP(&cfg.Output, "output", "o", "-", "output file, or - for stdout")
	cmd.Flags().StringVar(&cfg.ContextURL, "context-url", "", "context URL to embed in the mapping")
	cmd.Flags().StringVar(&cfg.ContextFile, "context-file", "", "local context file used for readable term names")
	cmd.Flags().StringVar(&cfg.BaseURI, "base-uri", "", "base URI for @id generation")
	cmd.Flags().StringVar(&cfg.Shape, "shape", "", "root shape name (defaults to the only top-level shape)")

	_ = cmd.MarkFlagRequired("shacl")

	return cmd
}

func runGenerateMapping(cmd *cobra.Command, cfg *generateMappingConfig) error {
	data, err := os.ReadFile(cfg.SHACLFile)
	if err != nil {
		return fmt.Errorf("reading %s: %w", cfg.SHACLFile, err)
	}

	graph, err := shacl.ParseTurtle(data)
	if err != nil {
		return err
	}

	var ctx *ldcontext.Context

	if cfg.ContextFile != "" {
		contextData, err := os.ReadFile(cfg.ContextFile)
		if err != nil {
			return fmt.Errorf("reading %s: %w", cfg.ContextFile, err)
		}

		ctx, err = ldcontext.Parse(contextData)
		if err != nil {
			return err
		}
	}

	tree, err := shacl.BuildTree(graph, ctx)
	if err != nil {
		return err
	}

	rootName := cfg.Shape
	if rootName == "" {
		rootName, err = soleRootShape(tree)
		if err != nil {
			return err
		}
	}

	template, err := shacl.GenerateTemplate(tree, rootName, ctx)
	if err != nil {
		return err
	}

	template.ContextURL = cfg.ContextURL
	template.ContextFile = cfg.ContextFile
	template.BaseURI = cfg.BaseURI

	out, err := mapping.Encode(template)
	if err != nil {
		return err
	}

	if cfg.Output == "" || cfg.Output == "-" {
		_, err = cmd.OutOrStdout().Write(out)

		return err
	}

	return os.WriteFile(cfg.Output, out, 0o644)
}

// soleRootShape finds the shape no other shape references as a child; the
// tree must have exactly one for the default to be unambiguous.
func soleRootShape(tree map[string]*shacl.NodeShapeInfo) (string, error) {
	referenced := map[string]bool{}

	for _, info := range tree {
		for _, child := range info.ChildShapes {
			referenced[child.Name] = true
		}
	}

	var roots []string

	for name := range tree {
		if !referenced[name] {
			roots = append(roots, name)
		}
	}

	if len(roots) != 1 {
		return "", fmt.Errorf("cannot pick a root shape automatically (candidates: %s); pass --shape",
			strings.Join(roots, ", "))
	}

	return roots[0], nil
}
