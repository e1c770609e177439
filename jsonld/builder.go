package jsonld

import (
	"encoding/json"
	"fmt"

	"github.com/shaclpipe/shaclpipe/mapping"
	"github.com/shaclpipe/shaclpipe/sanitize"
	"github.com/shaclpipe/shaclpipe/shape"
)

// Builder renders mapped records into JSON-LD documents by executing a
// shape definition's mapping plan. A Builder is immutable and safe for
// concurrent use; [Builder.Build] is pure with respect to the definition.
type Builder struct {
	def *shape.Definition
}

// NewBuilder returns a Builder for def. The mapping's base_uri is validated
// once here so every subsequent Build can concatenate without re-checking.
func NewBuilder(def *shape.Definition) (*Builder, error) {
	if def.Mapping.BaseURI != "" {
		if err := sanitize.ValidateBaseURI(def.Mapping.BaseURI); err != nil {
			return nil, err
		}
	}

	return &Builder{def: def}, nil
}

// Build renders md into a JSON-LD document: @context, @type, @id, then one
// key per sub-shape slot in the mapping's declaration order.
func (b *Builder) Build(md *mapping.MappedDocument) (*Object, error) {
	cfg := b.def.Mapping

	id, err := sanitize.SanitizeIRIComponent(md.ID)
	if err != nil {
		return nil, &BuildError{Kind: KindInvalidIRI, Field: cfg.IDSource,
			Message: fmt.Sprintf("identifier %q: %v", md.ID, err)}
	}

	doc := NewObject()

	switch {
	case cfg.ContextURL != "":
		// When both context_url and context_file are present the URL wins
		// for the @context key; the local file only backs validation.
		doc.Set("@context", cfg.ContextURL)
	case b.def.Context != nil && len(b.def.Context.Raw) > 0:
		doc.Set("@context", json.RawMessage(b.def.Context.Raw))
	}

	if cfg.Type != "" {
		doc.Set("@type", cfg.Type)
	}

	doc.Set("@id", cfg.BaseURI+id)

	for _, slot := range md.Slots {
		recs, ok := md.Children[slot]
		if !ok {
			continue
		}

		if _, declared := cfg.Find(slot); !declared {
			return nil, &BuildError{Kind: KindUnwrappableStructure, Field: slot,
				Message: "mapped record carries a sub-shape slot the mapping does not declare"}
		}

		rendered := make([]any, 0, len(recs))

		for _, rec := range recs {
			obj := b.renderRecord(rec)
			if obj.Len() > 0 {
				rendered = append(rendered, obj)
			}
		}

		if v, ok := b.collapse(slot, rendered); ok {
			doc.Set(slot, v)
		}
	}

	return doc, nil
}

// renderRecord renders one sub-shape payload: @type first, then one key per
// target term in declaration order.
func (b *Builder) renderRecord(rec mapping.MappedRecord) *Object {
	obj := NewObject()

	if rec.Type != "" {
		obj.Set("@type", rec.Type)
	}

	for _, target := range rec.Order {
		values := rec.Values[target]

		items := make([]any, 0, len(values))
		for _, fv := range values {
			items = append(items, renderValue(fv))
		}

		if v, ok := b.collapse(target, items); ok {
			obj.Set(target, v)
		}
	}

	// A payload that rendered nothing but its @type is empty.
	if obj.Len() == 1 {
		if _, hasType := obj.Get("@type"); hasType && len(rec.Values) == 0 {
			return NewObject()
		}
	}

	return obj
}

// collapse applies list normalization: zero elements disappear, a single
// element is unwrapped unless the context declares term as a @set or @list
// container, and longer lists stay lists.
func (b *Builder) collapse(term string, items []any) (any, bool) {
	switch {
	case len(items) == 0:
		return nil, false
	case len(items) == 1 && !b.keepsList(term):
		return items[0], true
	default:
		return items, true
	}
}

func (b *Builder) keepsList(term string) bool {
	if b.def.Context == nil {
		return false
	}

	switch b.def.Context.ContainerFor(term) {
	case "@set", "@list":
		return true
	default:
		return false
	}
}

func renderValue(fv mapping.FieldValue) any {
	switch {
	case fv.IsID:
		return Ref{ID: fv.Literal}
	case fv.Datatype.IsTyped():
		return TypedLiteral{Value: fv.Literal, Type: string(fv.Datatype)}
	default:
		return fv.Literal
	}
}
