package mapping

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/shaclpipe/shaclpipe/transform"
)

// Mapper applies a [Config] snapshot to raw records. Create one with
// [NewMapper]; it is immutable and safe for concurrent use by multiple
// goroutines calling [Mapper.Map] against their own records.
type Mapper struct {
	cfg      *Config
	registry *transform.Registry
	log      *slog.Logger
}

// Option configures a [Mapper] at construction.
type Option func(*Mapper)

// WithLogger sets the logger used for non-fatal warnings (e.g. a dropped
// empty multi-value group). Defaults to
// [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(m *Mapper) { m.log = l }
}

// NewMapper returns a Mapper executing cfg against records, resolving
// transforms from registry. cfg is not mutated or retained by reference
// after construction completes normalization.
func NewMapper(cfg *Config, registry *transform.Registry, opts ...Option) *Mapper {
	m := &Mapper{cfg: cloneConfig(cfg), registry: registry, log: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Config returns the plan this Mapper executes.
func (m *Mapper) Config() *Config { return m.cfg }

// WithOverrides returns a new Mapper whose plan is Compose(m.Config(),
// overrides): the base plan deep-merged with overlay, overlay winning per
// leaf. m is never mutated; repeated calls on the same base
// produce independent Mappers.
func (m *Mapper) WithOverrides(overrides *Config) *Mapper {
	return &Mapper{cfg: Compose(m.cfg, overrides), registry: m.registry, log: m.log}
}

// Map applies the field-mapping algorithm to raw, producing a
// [MappedDocument]. Per-record failures are returned as a [*MappingError].
func (m *Mapper) Map(raw RawRecord) (*MappedDocument, error) {
	idValue, err := m.resolveID(raw)
	if err != nil {
		return nil, err
	}

	doc := &MappedDocument{ID: idValue, Children: map[string][]MappedRecord{}}

	for _, prop := range m.cfg.Properties {
		doc.Slots = append(doc.Slots, prop.Slot)

		plan := m.effectivePlan(prop.Plan)

		recs, err := m.mapSlot(prop.Slot, plan, raw)
		if err != nil {
			return nil, err
		}

		doc.Children[prop.Slot] = recs
	}

	return doc, nil
}

// resolveID computes the `@id` source value: id_source looked up in raw,
// then id_transform applied if set. An empty result is [KindIDEmpty].
func (m *Mapper) resolveID(raw RawRecord) (string, error) {
	if m.cfg.IDSource == "" {
		return "", &MappingError{Kind: KindIDEmpty, Field: "id_source", Message: "mapping config declares no id_source"}
	}

	val := raw[m.cfg.IDSource]

	if m.cfg.IDTransform != "" {
		out, err := m.registry.Apply(m.cfg.IDTransform, val)
		if err != nil {
			return "", &MappingError{Kind: KindInvalidScalar, Field: m.cfg.IDSource, Message: err.Error()}
		}

		val = asString(out)
	}

	if strings.Trim(val, "/") == "" {
		return "", newMappingError(KindIDEmpty, m.cfg.IDSource, "id value is empty after transform", raw)
	}

	return val, nil
}

// effectivePlan resolves record_status_defaults/data_collection_defaults
// injection: a declared plan that sets
// IncludeRecordStatus/IncludeDataCollection is merged over the
// corresponding Config-level defaults, defaults supplying the fields and
// the declared plan's own (usually empty) settings taking precedence.
func (m *Mapper) effectivePlan(plan *SubShapePlan) *SubShapePlan {
	switch {
	case plan.IncludeRecordStatus && m.cfg.RecordStatusDefaults != nil:
		return mergePlanPtr(m.cfg.RecordStatusDefaults, plan)
	case plan.IncludeDataCollection && m.cfg.DataCollectionDefaults != nil:
		return mergePlanPtr(m.cfg.DataCollectionDefaults, plan)
	default:
		return plan
	}
}

// mapSlot produces the ordered groups for one sub-shape slot, handling
// cardinality=multiple row-splitting via plan.SplitOn.
func (m *Mapper) mapSlot(slot string, plan *SubShapePlan, raw RawRecord) ([]MappedRecord, error) {
	if plan.Cardinality != CardinalityMultiple || plan.SplitOn == "" {
		rec, nonEmpty, err := m.mapOneRow(slot, plan, raw)
		if err != nil {
			return nil, err
		}

		if !nonEmpty {
			return nil, nil
		}

		return []MappedRecord{rec}, nil
	}

	groupRows, err := m.splitRows(slot, plan, raw)
	if err != nil {
		return nil, err
	}

	var out []MappedRecord

	for i, groupRaw := range groupRows {
		// A group whose contributing source columns are all empty (as in
		// "A||C") is dropped with a warning rather than failing its
		// required fields.
		if groupEmpty(plan, groupRaw) {
			m.log.Warn("dropping empty multi-value group", "slot", slot, "group_index", i)

			continue
		}

		rec, nonEmpty, err := m.mapOneRow(slot, plan, groupRaw)
		if err != nil {
			return nil, err
		}

		if !nonEmpty {
			continue
		}

		out = append(out, rec)
	}

	return out, nil
}

// splitRows splits every contributing source field's raw value on
// plan.SplitOn into equal-length groups, broadcasting non-split fields
// across all groups. A length mismatch across contributing fields is
// [KindRaggedMultiValue].
func (m *Mapper) splitRows(slot string, plan *SubShapePlan, raw RawRecord) ([]RawRecord, error) {
	sources := sourceColumns(plan)

	groupCount := 1
	split := map[string][]string{}

	for _, col := range sources {
		val, ok := raw[col]
		if !ok || !strings.Contains(val, plan.SplitOn) {
			continue
		}

		parts := strings.Split(val, plan.SplitOn)
		split[col] = parts

		switch {
		case groupCount == 1:
			groupCount = len(parts)
		case len(parts) != groupCount:
			return nil, newMappingError(KindRaggedMultiValue, slot,
				fmt.Sprintf("column %q split into %d values but slot %q expects %d", col, len(parts), slot, groupCount), raw)
		}
	}

	rows := make([]RawRecord, groupCount)
	for i := range rows {
		row := make(RawRecord, len(raw))
		for k, v := range raw {
			row[k] = v
		}

		for col, parts := range split {
			row[col] = parts[i]
		}

		rows[i] = row
	}

	return rows, nil
}

// groupEmpty reports whether every source column the plan reads is empty
// in this group's row.
func groupEmpty(plan *SubShapePlan, raw RawRecord) bool {
	for _, col := range sourceColumns(plan) {
		if raw[col] != "" {
			return false
		}
	}

	return true
}

// sourceColumns returns every Field Rule source column referenced by plan,
// deduplicated.
func sourceColumns(plan *SubShapePlan) []string {
	seen := map[string]bool{}

	var out []string

	for _, f := range plan.Fields {
		if f.Rule.Source == "" || seen[f.Rule.Source] {
			continue
		}

		seen[f.Rule.Source] = true

		out = append(out, f.Rule.Source)
	}

	return out
}

// mapOneRow resolves every Field Rule in plan against one row, returning
// the resolved [MappedRecord] and whether it carries any non-empty value.
func (m *Mapper) mapOneRow(slot string, plan *SubShapePlan, raw RawRecord) (MappedRecord, bool, error) {
	rec := MappedRecord{Slot: slot, Type: plan.Type, Values: map[string][]FieldValue{}}

	for _, entry := range plan.Fields {
		rule := entry.Rule

		values, isID, err := m.resolveField(rule, raw)
		if err != nil {
			return MappedRecord{}, false, err
		}

		if len(values) == 0 {
			if !rule.EffectiveOptional() {
				return MappedRecord{}, false, newMappingError(KindRequiredMissing, rule.Target,
					fmt.Sprintf("required field %q (source %q) resolved to an empty value", rule.Target, rule.Source), raw)
			}

			continue
		}

		fvs := make([]FieldValue, 0, len(values))

		for _, v := range values {
			coerced, err := coerce(v, rule.Datatype)
			if err != nil {
				return MappedRecord{}, false, &MappingError{Kind: KindInvalidScalar, Field: rule.Target, Message: err.Error()}
			}

			fvs = append(fvs, FieldValue{Literal: coerced, Datatype: rule.Datatype, IsID: isID})
		}

		rec.Order = append(rec.Order, rule.Target)
		rec.Values[rule.Target] = fvs
	}

	return rec, len(rec.Values) > 0, nil
}

// resolveField resolves one Field Rule's raw value(s) from source, literal
// value, or value_id, splits it on its multi_value_split (the inner,
// per-field delimiter, distinct from the sub-shape-level plan.SplitOn), then
// applies its transform chain to each segment.
func (m *Mapper) resolveField(rule *FieldRule, raw RawRecord) ([]string, bool, error) {
	var (
		origin string
		isID   bool
		has    bool
	)

	switch {
	case rule.ValueID != nil:
		origin, isID, has = *rule.ValueID, true, true
	case rule.Value != nil:
		origin, has = *rule.Value, true
	case rule.Source != "":
		origin, has = raw[rule.Source], true
	}

	if !has || origin == "" {
		return nil, isID, nil
	}

	// The inner split happens before the transform chain so each segment
	// is transformed independently ("White,Black" with a prefixing
	// transform yields two prefixed values, not one).
	parts := []string{origin}
	if rule.MultiValueSplit != "" {
		parts = strings.Split(origin, rule.MultiValueSplit)
	}

	out := make([]string, 0, len(parts))

	for _, part := range parts {
		if part == "" {
			continue
		}

		transformed, err := m.registry.ApplyChain(rule.Transform, part)
		if err != nil {
			return nil, isID, &MappingError{Kind: KindInvalidScalar, Field: rule.Target, Message: err.Error()}
		}

		s := asString(transformed)
		if s == "" {
			continue
		}

		out = append(out, s)
	}

	return out, isID, nil
}

var (
	dateRe     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	dateTimeRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`)
	integerRe  = regexp.MustCompile(`^[+-]?\d+$`)
	decimalRe  = regexp.MustCompile(`^[+-]?\d+(\.\d+)?$`)
)

// coerce validates and normalizes s against datatype: reject non-finite floats, keep integer-strings
// as strings (never routed through a float), and reject a value shape the
// declared datatype cannot hold.
func coerce(s string, datatype Datatype) (string, error) {
	switch datatype {
	case "", DatatypePlain, DatatypeString, DatatypeToken, DatatypeAnyURI:
		return s, nil
	case DatatypeDate:
		if !dateRe.MatchString(s) {
			return "", fmt.Errorf("%q is not a YYYY-MM-DD date; run it through the date_format transform first", s)
		}

		return s, nil
	case DatatypeDateTime:
		if !dateTimeRe.MatchString(s) {
			return "", fmt.Errorf("%q is not an ISO dateTime", s)
		}

		return s, nil
	case DatatypeInteger:
		if !integerRe.MatchString(s) {
			return "", fmt.Errorf("%q is not an integer literal", s)
		}

		return s, nil
	case DatatypeDecimal:
		if strings.EqualFold(s, "nan") || strings.Contains(strings.ToLower(s), "inf") {
			return "", fmt.Errorf("non-finite value %q not allowed for xsd:decimal", s)
		}

		if !decimalRe.MatchString(s) {
			return "", fmt.Errorf("%q is not a decimal literal", s)
		}

		return s, nil
	case DatatypeBoolean:
		switch strings.ToLower(s) {
		case "true", "1":
			return "true", nil
		case "false", "0":
			return "false", nil
		default:
			return "", fmt.Errorf("%q is not a boolean literal", s)
		}
	default:
		return s, nil
	}
}

func joinSorted(ss []string) string {
	sort.Strings(ss)

	return strings.Join(ss, ", ")
}
