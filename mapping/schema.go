package mapping

import (
	"fmt"
	"sync"

	"github.com/goccy/go-yaml"
	"github.com/google/jsonschema-go/jsonschema"
)

// falseSchema validates nothing, for rejecting additional properties.
func falseSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Not: &jsonschema.Schema{}}
}

// fieldRuleSchema and subShapePlanSchema are mutually shaped; a Field Rule
// has no further nesting so it's defined first.
func fieldRuleSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"source":            {Type: "string"},
			"target":            {Type: "string"},
			"datatype":          {Type: "string"},
			"transform":         {Types: []string{"string", "array"}},
			"optional":          {Type: "boolean"},
			"multi_value_split": {Type: "string"},
			"value":             {Types: []string{"string", "number", "boolean"}},
			"value_id":          {Type: "string"},
		},
		AdditionalProperties: falseSchema(),
	}
}

func subShapePlanSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"type":                    {Type: "string"},
			"cardinality":             {Enum: []any{"single", "multiple"}},
			"split_on":                {Type: "string"},
			"include_record_status":   {Type: "boolean"},
			"include_data_collection": {Type: "boolean"},
			"fields": {
				Type:                 "object",
				AdditionalProperties: fieldRuleSchema(),
			},
		},
		AdditionalProperties: falseSchema(),
	}
}

var configSchema = &jsonschema.Schema{
	Type:     "object",
	Required: []string{"shape"},
	Properties: map[string]*jsonschema.Schema{
		"shape":        {Type: "string", MinLength: jsonschema.Ptr(1)},
		"type":         {Type: "string"},
		"context_url":  {Type: "string"},
		"context_file": {Type: "string"},
		"base_uri":     {Type: "string"},
		"id_source":    {Type: "string"},
		"id_transform": {Type: "string"},
		"properties": {
			Type:                 "object",
			AdditionalProperties: subShapePlanSchema(),
		},
		"record_status_defaults":   subShapePlanSchema(),
		"data_collection_defaults": subShapePlanSchema(),
	},
	AdditionalProperties: falseSchema(),
}

var (
	resolvedOnce   sync.Once
	resolvedSchema *jsonschema.Resolved
	resolvedErr    error
)

func resolveConfigSchema() (*jsonschema.Resolved, error) {
	resolvedOnce.Do(func() {
		resolvedSchema, resolvedErr = configSchema.Resolve(nil)
	})

	return resolvedSchema, resolvedErr
}

// ValidateSchema checks data against the Mapping Config document's JSON
// Schema before any order-sensitive parsing happens: it catches unknown
// top-level keys, a missing "shape", and fields of the wrong JSON kind,
// independent of the [ParseConfig] order-preserving walk.
func ValidateSchema(data []byte) error {
	var instance any
	if err := yaml.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("%w: %w", ErrParse, err)
	}

	resolved, err := resolveConfigSchema()
	if err != nil {
		return fmt.Errorf("mapping: compiling config schema: %w", err)
	}

	if err := resolved.Validate(instance); err != nil {
		return fmt.Errorf("%w: %w", ErrSchema, err)
	}

	return nil
}
