package mapping

import (
	"fmt"

	"github.com/goccy/go-yaml"
)

// ParseConfig parses a Mapping Config YAML document. Key order within
// "properties" and "fields" mappings is preserved using [yaml.MapSlice], so
// the returned Config's Properties and each plan's Fields iterate in
// declaration order, matching the order sub-shapes and fields appear in the
// JSON-LD output.
func ParseConfig(data []byte) (*Config, error) {
	var top yaml.MapSlice
	if err := yaml.UnmarshalWithOptions(data, &top, yaml.UseOrderedMap()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	cfg := &Config{}

	for _, item := range top {
		key, _ := item.Key.(string)

		switch key {
		case "shape":
			cfg.Shape = asString(item.Value)
		case "type":
			cfg.Type = asString(item.Value)
		case "context_url":
			cfg.ContextURL = asString(item.Value)
		case "context_file":
			cfg.ContextFile = asString(item.Value)
		case "base_uri":
			cfg.BaseURI = asString(item.Value)
		case "id_source":
			cfg.IDSource = asString(item.Value)
		case "id_transform":
			cfg.IDTransform = asString(item.Value)
		case "properties":
			props, err := decodeProperties(item.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: properties: %w", ErrParse, err)
			}

			cfg.Properties = props
		case "record_status_defaults":
			plan, err := decodeSubShapePlan(item.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: record_status_defaults: %w", ErrParse, err)
			}

			cfg.RecordStatusDefaults = plan
		case "data_collection_defaults":
			plan, err := decodeSubShapePlan(item.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: data_collection_defaults: %w", ErrParse, err)
			}

			cfg.DataCollectionDefaults = plan
		}
	}

	if cfg.Shape == "" {
		return nil, fmt.Errorf("%w: missing required \"shape\"", ErrParse)
	}

	return cfg, nil
}

func decodeProperties(v any) ([]PropertyEntry, error) {
	ms, ok := v.(yaml.MapSlice)
	if !ok {
		return nil, fmt.Errorf("expected a mapping of slot name to plan")
	}

	out := make([]PropertyEntry, 0, len(ms))

	for _, item := range ms {
		slot, _ := item.Key.(string)

		plan, err := decodeSubShapePlan(item.Value)
		if err != nil {
			return nil, fmt.Errorf("slot %q: %w", slot, err)
		}

		out = append(out, PropertyEntry{Slot: slot, Plan: plan})
	}

	return out, nil
}

func decodeSubShapePlan(v any) (*SubShapePlan, error) {
	ms, ok := v.(yaml.MapSlice)
	if !ok {
		return nil, fmt.Errorf("expected a sub-shape plan mapping")
	}

	plan := &SubShapePlan{Cardinality: CardinalitySingle}

	for _, item := range ms {
		key, _ := item.Key.(string)

		switch key {
		case "type":
			plan.Type = asString(item.Value)
		case "cardinality":
			plan.Cardinality = Cardinality(asString(item.Value))
		case "split_on":
			plan.SplitOn = asString(item.Value)
		case "include_record_status":
			plan.IncludeRecordStatus = asBool(item.Value)
		case "include_data_collection":
			plan.IncludeDataCollection = asBool(item.Value)
		case "fields":
			fields, err := decodeFields(item.Value)
			if err != nil {
				return nil, fmt.Errorf("fields: %w", err)
			}

			plan.Fields = fields
		}
	}

	return plan, nil
}

func decodeFields(v any) ([]FieldEntry, error) {
	ms, ok := v.(yaml.MapSlice)
	if !ok {
		return nil, fmt.Errorf("expected a mapping of target term to rule")
	}

	out := make([]FieldEntry, 0, len(ms))

	for _, item := range ms {
		target, _ := item.Key.(string)

		rule, err := decodeFieldRule(target, item.Value)
		if err != nil {
			return nil, fmt.Errorf("target %q: %w", target, err)
		}

		out = append(out, FieldEntry{Target: target, Rule: rule})
	}

	return out, nil
}

func decodeFieldRule(target string, v any) (*FieldRule, error) {
	ms, ok := v.(yaml.MapSlice)
	if !ok {
		return nil, fmt.Errorf("expected a field rule mapping")
	}

	rule := &FieldRule{Target: target}

	for _, item := range ms {
		key, _ := item.Key.(string)

		switch key {
		case "source":
			rule.Source = asString(item.Value)
		case "target":
			rule.Target = asString(item.Value)
		case "datatype":
			rule.Datatype = Datatype(asString(item.Value))
		case "transform":
			rule.Transform = asStringList(item.Value)
		case "optional":
			rule.Optional = asBool(item.Value)
		case "multi_value_split":
			rule.MultiValueSplit = asString(item.Value)
		case "value":
			s := asString(item.Value)
			rule.Value = &s
		case "value_id":
			s := asString(item.Value)
			rule.ValueID = &s
		}
	}

	return rule, nil
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func asBool(v any) bool {
	b, _ := v.(bool)

	return b
}

func asStringList(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, asString(item))
		}

		return out
	default:
		return []string{asString(t)}
	}
}
