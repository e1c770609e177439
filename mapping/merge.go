package mapping

// Compose deep-merges configs left to right: each later config's set
// scalar fields, and properties/fields keyed by name, override or extend
// the accumulated result. Compose never mutates any input and always
// returns a fresh Config, so repeated calls are independent and composing in either grouping of the same sequence yields the
// same result: Compose(Compose(a,b),c) == Compose(a,Compose(b,c)).
func Compose(configs ...*Config) *Config {
	if len(configs) == 0 {
		return &Config{}
	}

	result := cloneConfig(configs[0])

	for _, c := range configs[1:] {
		result = mergeConfig(result, c)
	}

	return result
}

// WithOverrides returns a new Config equal to Compose(c, overrides).
func (c *Config) WithOverrides(overrides *Config) *Config {
	return Compose(c, overrides)
}

func mergeConfig(a, b *Config) *Config {
	out := &Config{
		Shape:       firstNonEmpty(a.Shape, b.Shape),
		Type:        firstNonEmpty(a.Type, b.Type),
		ContextURL:  firstNonEmpty(a.ContextURL, b.ContextURL),
		ContextFile: firstNonEmpty(a.ContextFile, b.ContextFile),
		BaseURI:     firstNonEmpty(a.BaseURI, b.BaseURI),
		IDSource:    firstNonEmpty(a.IDSource, b.IDSource),
		IDTransform: firstNonEmpty(a.IDTransform, b.IDTransform),
		Properties:  mergeProperties(a.Properties, b.Properties),
	}

	out.RecordStatusDefaults = mergePlanPtr(a.RecordStatusDefaults, b.RecordStatusDefaults)
	out.DataCollectionDefaults = mergePlanPtr(a.DataCollectionDefaults, b.DataCollectionDefaults)

	return out
}

func mergeProperties(a, b []PropertyEntry) []PropertyEntry {
	out := make([]PropertyEntry, len(a))
	index := make(map[string]int, len(a))

	for i, p := range a {
		out[i] = PropertyEntry{Slot: p.Slot, Plan: clonePlan(p.Plan)}
		index[p.Slot] = i
	}

	for _, p := range b {
		if i, ok := index[p.Slot]; ok {
			out[i].Plan = mergePlanPtr(out[i].Plan, p.Plan)
			continue
		}

		index[p.Slot] = len(out)
		out = append(out, PropertyEntry{Slot: p.Slot, Plan: clonePlan(p.Plan)})
	}

	return out
}

func mergePlanPtr(a, b *SubShapePlan) *SubShapePlan {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		return clonePlan(b)
	case b == nil:
		return clonePlan(a)
	}

	return &SubShapePlan{
		Type:                  firstNonEmpty(a.Type, b.Type),
		Cardinality:           Cardinality(firstNonEmpty(string(a.Cardinality), string(b.Cardinality))),
		SplitOn:               firstNonEmpty(a.SplitOn, b.SplitOn),
		IncludeRecordStatus:   a.IncludeRecordStatus || b.IncludeRecordStatus,
		IncludeDataCollection: a.IncludeDataCollection || b.IncludeDataCollection,
		Fields:                mergeFields(a.Fields, b.Fields),
	}
}

func mergeFields(a, b []FieldEntry) []FieldEntry {
	out := make([]FieldEntry, len(a))
	index := make(map[string]int, len(a))

	for i, f := range a {
		out[i] = FieldEntry{Target: f.Target, Rule: cloneRule(f.Rule)}
		index[f.Target] = i
	}

	for _, f := range b {
		if i, ok := index[f.Target]; ok {
			out[i].Rule = mergeRulePtr(out[i].Rule, f.Rule)
			continue
		}

		index[f.Target] = len(out)
		out = append(out, FieldEntry{Target: f.Target, Rule: cloneRule(f.Rule)})
	}

	return out
}

func mergeRulePtr(a, b *FieldRule) *FieldRule {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		return cloneRule(b)
	case b == nil:
		return cloneRule(a)
	}

	out := &FieldRule{
		Source:          firstNonEmpty(a.Source, b.Source),
		Target:          firstNonEmpty(a.Target, b.Target),
		Datatype:        Datatype(firstNonEmpty(string(a.Datatype), string(b.Datatype))),
		Transform:       a.Transform,
		Optional:        a.Optional || b.Optional,
		MultiValueSplit: firstNonEmpty(a.MultiValueSplit, b.MultiValueSplit),
		Value:           clonePtr(a.Value),
		ValueID:         clonePtr(a.ValueID),
	}

	if len(b.Transform) > 0 {
		out.Transform = append([]string(nil), b.Transform...)
	} else if len(a.Transform) > 0 {
		out.Transform = append([]string(nil), a.Transform...)
	}

	if b.Value != nil {
		out.Value = clonePtr(b.Value)
	}

	if b.ValueID != nil {
		out.ValueID = clonePtr(b.ValueID)
	}

	return out
}

func cloneConfig(c *Config) *Config {
	if c == nil {
		return &Config{}
	}

	out := *c
	out.Properties = make([]PropertyEntry, len(c.Properties))

	for i, p := range c.Properties {
		out.Properties[i] = PropertyEntry{Slot: p.Slot, Plan: clonePlan(p.Plan)}
	}

	out.RecordStatusDefaults = clonePlan(c.RecordStatusDefaults)
	out.DataCollectionDefaults = clonePlan(c.DataCollectionDefaults)

	return &out
}

func clonePlan(p *SubShapePlan) *SubShapePlan {
	if p == nil {
		return nil
	}

	out := *p
	out.Fields = make([]FieldEntry, len(p.Fields))

	for i, f := range p.Fields {
		out.Fields[i] = FieldEntry{Target: f.Target, Rule: cloneRule(f.Rule)}
	}

	return &out
}

func cloneRule(r *FieldRule) *FieldRule {
	if r == nil {
		return nil
	}

	out := *r
	out.Transform = append([]string(nil), r.Transform...)
	out.Value = clonePtr(r.Value)
	out.ValueID = clonePtr(r.ValueID)

	return &out
}

func clonePtr(s *string) *string {
	if s == nil {
		return nil
	}

	v := *s

	return &v
}

func firstNonEmpty(a, b string) string {
	if b != "" {
		return b
	}

	return a
}
