package shacl

import (
	"errors"
	"fmt"

	"github.com/shaclpipe/shaclpipe/ldcontext"
	"github.com/shaclpipe/shaclpipe/mapping"
)

// ErrUnknownShape is returned by [GenerateTemplate] and [ValidateMapping]
// when the requested shape name is not present in the parsed tree.
var ErrUnknownShape = errors.New("shacl: unknown shape")

// GenerateTemplate walks the NodeShape tree rooted at rootShape and emits a
// skeleton [mapping.Config]: one sub-shape slot per non-structural nested
// property, one Field Rule per leaf property with an empty Source and
// cardinality derived from sh:maxCount.
// The two structural target classes (RecordStatus, DataCollection) are
// skipped; they're injected via record_status_defaults/
// data_collection_defaults instead, not walked as ordinary slots.
func GenerateTemplate(tree map[string]*NodeShapeInfo, rootShape string, ctx *ldcontext.Context) (*mapping.Config, error) {
	root, ok := tree[rootShape]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownShape, rootShape)
	}

	cfg := &mapping.Config{
		Shape: root.Name,
		Type:  localName(ctx, root.TargetClass),
	}

	for _, prop := range root.Properties {
		if prop.NodeShapeRef == "" {
			continue
		}

		child, ok := root.ChildShapes[prop.LocalName]
		if !ok || isStructural(child) {
			continue
		}

		plan := &mapping.SubShapePlan{
			Type:        localName(ctx, child.TargetClass),
			Cardinality: cardinalityOf(prop),
			Fields:      templateFields(child),
		}

		cfg.Properties = append(cfg.Properties, mapping.PropertyEntry{Slot: prop.LocalName, Plan: plan})
	}

	return cfg, nil
}

func isStructural(shape *NodeShapeInfo) bool {
	return StructuralShapeClasses[shape.Name] || StructuralShapeClasses[localFragment(shape.TargetClass)]
}

func cardinalityOf(p PropertyInfo) mapping.Cardinality {
	if p.Multiple() {
		return mapping.CardinalityMultiple
	}

	return mapping.CardinalitySingle
}

func templateFields(shape *NodeShapeInfo) []mapping.FieldEntry {
	fields := make([]mapping.FieldEntry, 0, len(shape.Properties))

	for _, p := range shape.Properties {
		if p.NodeShapeRef != "" {
			// Deeper nesting than one level is not templated automatically;
			// the generated mapping gets a plain field the author refines.
			continue
		}

		rule := &mapping.FieldRule{
			Target:   p.LocalName,
			Datatype: datatypeFromIRI(p.Datatype),
			Optional: !p.Required(),
		}

		fields = append(fields, mapping.FieldEntry{Target: p.LocalName, Rule: rule})
	}

	return fields
}

// datatypeFromIRI reverses [mapping.Datatype.IRI] for the xsd: namespace,
// defaulting to plain for anything unrecognized or unset.
func datatypeFromIRI(iri string) mapping.Datatype {
	if iri == "" {
		return mapping.DatatypePlain
	}

	for _, d := range []mapping.Datatype{
		mapping.DatatypeString, mapping.DatatypeDate, mapping.DatatypeDateTime,
		mapping.DatatypeInteger, mapping.DatatypeToken, mapping.DatatypeBoolean,
		mapping.DatatypeDecimal, mapping.DatatypeAnyURI,
	} {
		if d.IRI() == iri {
			return d
		}
	}

	return mapping.DatatypePlain
}

func localFragment(iri string) string {
	return localName(nil, iri)
}
