package mapping

// Cardinality is a sub-shape plan's multiplicity.
type Cardinality string

// Cardinality values.
const (
	CardinalitySingle   Cardinality = "single"
	CardinalityMultiple Cardinality = "multiple"
)

// Datatype is the set of literal datatypes a Field Rule may declare.
type Datatype string

// Datatype values.
const (
	DatatypePlain    Datatype = "plain"
	DatatypeString   Datatype = "xsd:string"
	DatatypeDate     Datatype = "xsd:date"
	DatatypeDateTime Datatype = "xsd:dateTime"
	DatatypeInteger  Datatype = "xsd:integer"
	DatatypeToken    Datatype = "xsd:token"
	DatatypeBoolean  Datatype = "xsd:boolean"
	DatatypeDecimal  Datatype = "xsd:decimal"
	DatatypeAnyURI   Datatype = "xsd:anyURI"
)

// IsTyped reports whether d requires a typed-literal ({@value,@type})
// rendering rather than a plain JSON value.
func (d Datatype) IsTyped() bool {
	return d != "" && d != DatatypePlain
}

// IRI returns the xsd: namespace IRI for d, or "" for plain/unknown.
func (d Datatype) IRI() string {
	const xsd = "http://www.w3.org/2001/XMLSchema#"

	switch d {
	case DatatypeString, DatatypeDate, DatatypeDateTime, DatatypeInteger,
		DatatypeToken, DatatypeBoolean, DatatypeDecimal, DatatypeAnyURI:
		return xsd + string(d)[4:]
	default:
		return ""
	}
}

// Config is a parsed Mapping Config: the declarative plan tying a shape
// name, a JSON-LD context, and an ordered set of sub-shape plans together.
// Config is immutable once returned by [ParseConfig]; [Compose] and
// [Mapper.WithOverrides] always return new values.
type Config struct {
	Shape                   string
	Type                    string
	ContextURL              string
	ContextFile             string
	BaseURI                 string
	IDSource                string
	IDTransform             string
	Properties              []PropertyEntry
	RecordStatusDefaults    *SubShapePlan
	DataCollectionDefaults  *SubShapePlan
}

// PropertyEntry is one (slot name, plan) pair in [Config.Properties],
// preserving declaration order.
type PropertyEntry struct {
	Slot string
	Plan *SubShapePlan
}

// SubShapePlan is the plan for one nested sub-shape slot.
type SubShapePlan struct {
	Type                  string
	Cardinality           Cardinality
	SplitOn               string
	IncludeRecordStatus   bool
	IncludeDataCollection bool
	Fields                []FieldEntry
}

// FieldEntry is one (target term, rule) pair in [SubShapePlan.Fields],
// preserving declaration order.
type FieldEntry struct {
	Target string
	Rule   *FieldRule
}

// FieldRule describes how to produce one target term's value.
type FieldRule struct {
	Source          string
	Target          string
	Datatype        Datatype
	Transform       []string
	Optional        bool
	MultiValueSplit string
	Value           *string
	ValueID         *string
}

// EffectiveOptional reports whether this rule may be omitted when it has no
// value. A literal default (Value/ValueID) always supplies a value, so per
// so the rule is treated as non-optional in that case
// regardless of the Optional flag.
func (f FieldRule) EffectiveOptional() bool {
	if f.Value != nil || f.ValueID != nil {
		return false
	}

	return f.Optional
}

// Find returns the plan for slot, if declared.
func (c *Config) Find(slot string) (*SubShapePlan, bool) {
	for _, p := range c.Properties {
		if p.Slot == slot {
			return p.Plan, true
		}
	}

	return nil, false
}

// Find returns the rule for target, if declared.
func (s *SubShapePlan) Find(target string) (*FieldRule, bool) {
	for _, f := range s.Fields {
		if f.Target == target {
			return f.Rule, true
		}
	}

	return nil, false
}
