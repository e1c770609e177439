package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/shaclpipe/shaclpipe/pipeline"
	"github.com/shaclpipe/shaclpipe/shape"
)

// defaultShapesDir is where shape folders are looked up when --shapes-dir
// is not given.
const defaultShapesDir = "shapes"

// newRegistry builds a shape registry over the given (or default) shapes
// directory.
func newRegistry(shapesDir string) *shape.Registry {
	if shapesDir == "" {
		shapesDir = defaultShapesDir
	}

	return shape.New(shape.WithSearchPath(shapesDir))
}

// sourceFor picks a source adapter from the input path's extension.
func sourceFor(input string) (pipeline.Source, error) {
	switch strings.ToLower(filepath.Ext(input)) {
	case ".csv":
		return &pipeline.CSVSource{Path: input}, nil
	case ".ndjson", ".jsonl":
		return &pipeline.NDJSONSource{Path: input}, nil
	default:
		return nil, fmt.Errorf("unsupported input %q: expected a .csv, .ndjson, or .jsonl file", input)
	}
}
