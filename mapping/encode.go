package mapping

import (
	"fmt"

	"github.com/goccy/go-yaml"
)

// Encode renders cfg back to YAML, preserving declaration order of
// properties and fields. Used by the introspector's generate-mapping verb
// to emit a starter Mapping Config from a SHACL shape tree.
func Encode(cfg *Config) ([]byte, error) {
	top := yaml.MapSlice{}

	top = appendIfSet(top, "shape", cfg.Shape)
	top = appendIfSet(top, "type", cfg.Type)
	top = appendIfSet(top, "context_url", cfg.ContextURL)
	top = appendIfSet(top, "context_file", cfg.ContextFile)
	top = appendIfSet(top, "base_uri", cfg.BaseURI)
	top = appendIfSet(top, "id_source", cfg.IDSource)
	top = appendIfSet(top, "id_transform", cfg.IDTransform)

	if len(cfg.Properties) > 0 {
		props := yaml.MapSlice{}
		for _, p := range cfg.Properties {
			props = append(props, yaml.MapItem{Key: p.Slot, Value: encodePlan(p.Plan)})
		}

		top = append(top, yaml.MapItem{Key: "properties", Value: props})
	}

	if cfg.RecordStatusDefaults != nil {
		top = append(top, yaml.MapItem{Key: "record_status_defaults", Value: encodePlan(cfg.RecordStatusDefaults)})
	}

	if cfg.DataCollectionDefaults != nil {
		top = append(top, yaml.MapItem{Key: "data_collection_defaults", Value: encodePlan(cfg.DataCollectionDefaults)})
	}

	out, err := yaml.Marshal(top)
	if err != nil {
		return nil, fmt.Errorf("mapping: encode: %w", err)
	}

	return out, nil
}

func encodePlan(plan *SubShapePlan) yaml.MapSlice {
	ms := yaml.MapSlice{}

	ms = appendIfSet(ms, "type", plan.Type)

	if plan.Cardinality != "" && plan.Cardinality != CardinalitySingle {
		ms = appendIfSet(ms, "cardinality", string(plan.Cardinality))
	}

	ms = appendIfSet(ms, "split_on", plan.SplitOn)

	if plan.IncludeRecordStatus {
		ms = append(ms, yaml.MapItem{Key: "include_record_status", Value: true})
	}

	if plan.IncludeDataCollection {
		ms = append(ms, yaml.MapItem{Key: "include_data_collection", Value: true})
	}

	if len(plan.Fields) > 0 {
		fields := yaml.MapSlice{}
		for _, f := range plan.Fields {
			fields = append(fields, yaml.MapItem{Key: f.Target, Value: encodeRule(f.Rule)})
		}

		ms = append(ms, yaml.MapItem{Key: "fields", Value: fields})
	}

	return ms
}

func encodeRule(rule *FieldRule) yaml.MapSlice {
	ms := yaml.MapSlice{}

	ms = appendIfSet(ms, "source", rule.Source)
	ms = appendIfSet(ms, "datatype", string(rule.Datatype))

	if len(rule.Transform) == 1 {
		ms = appendIfSet(ms, "transform", rule.Transform[0])
	} else if len(rule.Transform) > 1 {
		items := make([]any, 0, len(rule.Transform))
		for _, t := range rule.Transform {
			items = append(items, t)
		}

		ms = append(ms, yaml.MapItem{Key: "transform", Value: items})
	}

	if rule.Optional {
		ms = append(ms, yaml.MapItem{Key: "optional", Value: true})
	}

	ms = appendIfSet(ms, "multi_value_split", rule.MultiValueSplit)

	if rule.Value != nil {
		ms = appendIfSet(ms, "value", *rule.Value)
	}

	if rule.ValueID != nil {
		ms = appendIfSet(ms, "value_id", *rule.ValueID)
	}

	return ms
}

func appendIfSet(ms yaml.MapSlice, key, value string) yaml.MapSlice {
	if value == "" {
		return ms
	}

	return append(ms, yaml.MapItem{Key: key, Value: value})
}
