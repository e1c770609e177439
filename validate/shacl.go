package validate

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/shaclpipe/shaclpipe/jsonld"
	"github.com/shaclpipe/shaclpipe/shacl"
	"github.com/shaclpipe/shaclpipe/shape"
)

// SHACL runs the full validation tier: a document is serialized to JSON-LD
// text, reparsed, expanded against the context into property nodes, and
// checked against the shape graph. Orders of magnitude costlier than the
// pre-build tier, so sample mode is the default for bulk workloads.
type SHACL struct {
	def *shape.Definition
}

// NewSHACL returns a validator for def.
func NewSHACL(def *shape.Definition) *SHACL {
	return &SHACL{def: def}
}

// ValidateDocument round-trips one document and returns its findings, each
// with kind SHACLViolation and a field path rendered through the context's
// IRI-to-term reverse lookup.
func (s *SHACL) ValidateDocument(doc *jsonld.Object) ([]Issue, error) {
	data, err := jsonld.Marshal(doc)
	if err != nil {
		return nil, err
	}

	node, err := jsonld.Decode(data)
	if err != nil {
		return nil, err
	}

	root, ok := s.def.RootShape()
	if !ok {
		return nil, fmt.Errorf("%w: mapping targets shape %q but the SHACL graph does not define it",
			ErrValidation, s.def.Mapping.Shape)
	}

	recordID, _ := node["@id"].(string)

	var issues []Issue

	s.checkNode(recordID, "", node, root, &issues)

	return issues, nil
}

// Validate round-trips docs under mode. sampleRate applies in sample mode;
// strict mode stops at the first violation and returns an [*Error].
func (s *SHACL) Validate(docs []*jsonld.Object, mode Mode, sampleRate float64, seed int64) (*Result, error) {
	result := NewResult()

	rng := rand.New(rand.NewSource(seed))

	for _, doc := range docs {
		if mode == ModeSample && rng.Float64() >= sampleRate {
			continue
		}

		issues, err := s.ValidateDocument(doc)
		if err != nil {
			return result, err
		}

		for _, issue := range issues {
			result.Add(issue)

			if mode == ModeStrict && issue.Severity == SeverityError {
				return result, &Error{Result: result}
			}
		}
	}

	return result, nil
}

// checkNode validates one JSON node against one node shape: cardinality,
// datatype, sh:in membership, closedness, then recursion into child shapes.
func (s *SHACL) checkNode(recordID, path string, node map[string]any, info *shacl.NodeShapeInfo, issues *[]Issue) {
	known := map[string]bool{}

	for _, prop := range info.Properties {
		term := s.termFor(prop)
		known[term] = true

		values := valuesOf(node[term])

		if prop.MinCount != nil && len(values) < *prop.MinCount {
			s.violation(recordID, join(path, term), issues,
				"property has %d values but sh:minCount is %d", len(values), *prop.MinCount)
		}

		if prop.MaxCount != nil && len(values) > *prop.MaxCount {
			s.violation(recordID, join(path, term), issues,
				"property has %d values but sh:maxCount is %d", len(values), *prop.MaxCount)
		}

		for _, v := range values {
			s.checkValue(recordID, join(path, term), v, prop, info, issues)
		}
	}

	if info.Closed {
		ignored := map[string]bool{}
		for _, iri := range info.IgnoredProperties {
			if term, ok := s.def.Context.TermFor(iri); ok {
				ignored[term] = true
			}

			ignored[localFragment(iri)] = true
		}

		for key := range node {
			if strings.HasPrefix(key, "@") || known[key] || ignored[key] {
				continue
			}

			s.violation(recordID, join(path, key), issues,
				"shape %q is closed and does not declare this property", info.Name)
		}
	}
}

func (s *SHACL) checkValue(recordID, path string, v any, prop shacl.PropertyInfo, parent *shacl.NodeShapeInfo, issues *[]Issue) {
	child := parent.ChildShapes[prop.LocalName]

	switch val := v.(type) {
	case map[string]any:
		if lit, ok := val["@value"].(string); ok {
			s.checkLiteral(recordID, path, lit, typeOf(val), prop, issues)

			return
		}

		if ref, ok := val["@id"].(string); ok && len(val) == 1 {
			s.checkIn(recordID, path, ref, prop, issues)

			return
		}

		if child != nil {
			s.checkNode(recordID, path, val, child, issues)

			return
		}

		if prop.Datatype != "" {
			s.violation(recordID, path, issues, "expected a %s literal but found a nested object", prop.Datatype)
		}
	case string:
		s.checkLiteral(recordID, path, val, "", prop, issues)
	case []any:
		for _, item := range val {
			s.checkValue(recordID, path, item, prop, parent, issues)
		}
	case float64, bool:
		// Plain JSON scalars; SHACL datatype checks apply to typed
		// literals only in this subset.
	case nil:
	default:
		s.violation(recordID, path, issues, "unexpected value shape %T", v)
	}
}

func (s *SHACL) checkLiteral(recordID, path, value, declaredType string, prop shacl.PropertyInfo, issues *[]Issue) {
	if prop.Datatype != "" && declaredType != "" {
		expanded := s.def.Context.Expand(declaredType)
		if expanded != prop.Datatype {
			s.violation(recordID, path, issues,
				"literal datatype %s does not match sh:datatype %s", declaredType, prop.Datatype)

			return
		}
	}

	s.checkIn(recordID, path, value, prop, issues)
}

// checkIn tests a value against sh:in. Compact values ("Sex_Female") are
// compared against each member IRI's local fragment.
func (s *SHACL) checkIn(recordID, path, value string, prop shacl.PropertyInfo, issues *[]Issue) {
	if len(prop.AllowedValues) == 0 {
		return
	}

	for _, iri := range prop.AllowedValues {
		if iri == value || localFragment(iri) == value || localFragment(iri) == localFragment(value) {
			return
		}
	}

	s.violation(recordID, path, issues, "value %q is not a member of the sh:in enumeration", value)
}

func (s *SHACL) violation(recordID, path string, issues *[]Issue, format string, args ...any) {
	*issues = append(*issues, Issue{
		RecordID:  recordID,
		FieldPath: path,
		Severity:  SeverityError,
		Kind:      "SHACLViolation",
		Message:   fmt.Sprintf(format, args...),
	})
}

// termFor renders the JSON key a property appears under: the context term
// for its path IRI when defined, else its local name.
func (s *SHACL) termFor(prop shacl.PropertyInfo) string {
	if s.def.Context != nil {
		if term, ok := s.def.Context.TermFor(prop.PathIRI); ok {
			return term
		}
	}

	return prop.LocalName
}

func valuesOf(v any) []any {
	switch val := v.(type) {
	case nil:
		return nil
	case []any:
		return val
	default:
		return []any{val}
	}
}

func typeOf(val map[string]any) string {
	t, _ := val["@type"].(string)

	return t
}

func join(path, term string) string {
	if path == "" {
		return term
	}

	return path + "." + term
}
