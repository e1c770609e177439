package shacl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shaclpipe/shaclpipe/ldcontext"
)

const shNS = "http://www.w3.org/ns/shacl#"

// SHACL predicate IRIs used by this subset of the vocabulary.
const (
	shNodeShape          = shNS + "NodeShape"
	shTargetClass        = shNS + "targetClass"
	shProperty           = shNS + "property"
	shPath               = shNS + "path"
	shDatatype           = shNS + "datatype"
	shMinCount           = shNS + "minCount"
	shMaxCount           = shNS + "maxCount"
	shIn                 = shNS + "in"
	shClosed             = shNS + "closed"
	shIgnoredProperties  = shNS + "ignoredProperties"
	shClass              = shNS + "class"
	shNode               = shNS + "node"
)

// BuildTree extracts every sh:NodeShape in g into a name-keyed forest of
// [NodeShapeInfo]. ctx, if non-nil, is used to render readable local names
// via its IRI->term reverse lookup; otherwise the last path/fragment
// segment of each IRI is used.
func BuildTree(g *Graph, ctx *ldcontext.Context) (map[string]*NodeShapeInfo, error) {
	shapeSubjects := g.SubjectsWithPredicateObject(rdfType, IRI(shNodeShape))

	shapes := make(map[string]*NodeShapeInfo, len(shapeSubjects))
	byIRI := make(map[string]*NodeShapeInfo, len(shapeSubjects))

	for _, subj := range shapeSubjects {
		info, err := buildNodeShape(g, ctx, subj)
		if err != nil {
			return nil, err
		}

		shapes[info.Name] = info
		byIRI[info.IRI] = info
	}

	for _, info := range shapes {
		for i := range info.Properties {
			ref := info.Properties[i].NodeShapeRef
			if ref == "" {
				continue
			}

			child, ok := byIRI[ref]
			if !ok {
				continue
			}

			if info.ChildShapes == nil {
				info.ChildShapes = map[string]*NodeShapeInfo{}
			}

			info.ChildShapes[info.Properties[i].LocalName] = child
		}
	}

	return shapes, nil
}

func buildNodeShape(g *Graph, ctx *ldcontext.Context, subj Term) (*NodeShapeInfo, error) {
	info := &NodeShapeInfo{IRI: subj.Value, Name: localName(ctx, subj.Value)}

	if tc, ok := g.ObjectOf(subj, shTargetClass); ok {
		info.TargetClass = tc.Value
	}

	if closed, ok := g.ObjectOf(subj, shClosed); ok {
		info.Closed = closed.Value == "true"
	}

	if list, ok := g.ObjectOf(subj, shIgnoredProperties); ok {
		for _, item := range g.List(list) {
			info.IgnoredProperties = append(info.IgnoredProperties, item.Value)
		}
	}

	for _, propNode := range g.ObjectsOf(subj, shProperty) {
		prop, err := buildPropertyShape(g, ctx, propNode)
		if err != nil {
			return nil, fmt.Errorf("shape %s: %w", info.Name, err)
		}

		info.Properties = append(info.Properties, prop)
	}

	return info, nil
}

func buildPropertyShape(g *Graph, ctx *ldcontext.Context, propNode Term) (PropertyInfo, error) {
	path, ok := g.ObjectOf(propNode, shPath)
	if !ok {
		return PropertyInfo{}, fmt.Errorf("%w: property shape missing sh:path", ErrParse)
	}

	info := PropertyInfo{PathIRI: path.Value, LocalName: localName(ctx, path.Value)}

	if dt, ok := g.ObjectOf(propNode, shDatatype); ok {
		info.Datatype = dt.Value
	}

	if mc, ok := g.ObjectOf(propNode, shMinCount); ok {
		n, err := strconv.Atoi(mc.Value)
		if err == nil {
			info.MinCount = &n
		}
	}

	if mc, ok := g.ObjectOf(propNode, shMaxCount); ok {
		n, err := strconv.Atoi(mc.Value)
		if err == nil {
			info.MaxCount = &n
		}
	}

	if in, ok := g.ObjectOf(propNode, shIn); ok {
		for _, item := range g.List(in) {
			info.AllowedValues = append(info.AllowedValues, item.Value)
		}
	}

	if cls, ok := g.ObjectOf(propNode, shClass); ok {
		info.NodeClass = cls.Value
	}

	if node, ok := g.ObjectOf(propNode, shNode); ok {
		info.NodeShapeRef = node.Value
	}

	return info, nil
}

// localName renders a readable name for iri: the context's reverse term
// lookup if available, else the fragment or final path segment.
func localName(ctx *ldcontext.Context, iri string) string {
	if ctx != nil {
		if term, ok := ctx.TermFor(iri); ok {
			return term
		}
	}

	if idx := strings.LastIndexByte(iri, '#'); idx >= 0 {
		return iri[idx+1:]
	}

	if idx := strings.LastIndexByte(iri, '/'); idx >= 0 {
		return iri[idx+1:]
	}

	return iri
}
