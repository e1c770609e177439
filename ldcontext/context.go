// Package ldcontext parses and queries a JSON-LD @context document: the
// term<->IRI mapping table, @base/@vocab, and per-term container hints that
// the SHACL introspector, shape registry, and JSON-LD builder all consult.
package ldcontext

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrParse is returned for a malformed context document.
var ErrParse = errors.New("context parse error")

// TermDefinition is a single term's mapping, e.g.
// "FirstName": {"@id": "https://ceds.ed.gov/terms#FirstName"}.
type TermDefinition struct {
	ID        string // "@id" as written; may be a compact prefix:name (see Context.Expand)
	Type      string // "@type" coercion, if any
	Container string // "@container" value ("@set", "@list", ...), if any
}

// Context is an immutable, parsed JSON-LD context.
type Context struct {
	Base  string
	Vocab string
	Terms map[string]TermDefinition // term -> definition
	Raw   json.RawMessage           // the original @context value, for embedding in documents
	byIRI map[string]string         // expanded IRI -> term, for reverse lookup
}

// Parse parses a JSON-LD context document (the object with the top-level
// "@context" key, or a bare context object).
func Parse(data []byte) (*Context, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	raw, ok := doc["@context"]
	if !ok {
		raw = doc
	}

	rawMap, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: @context must be an object", ErrParse)
	}

	ctx := &Context{Terms: map[string]TermDefinition{}, byIRI: map[string]string{}}

	var rawDoc map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawDoc); err == nil {
		if rv, ok := rawDoc["@context"]; ok {
			ctx.Raw = rv
		} else {
			ctx.Raw = append(json.RawMessage(nil), data...)
		}
	}

	for key, val := range rawMap {
		switch key {
		case "@base":
			ctx.Base, _ = val.(string)
		case "@vocab":
			ctx.Vocab, _ = val.(string)
		default:
			def, err := parseTermDefinition(val)
			if err != nil {
				return nil, fmt.Errorf("%w: term %q: %w", ErrParse, key, err)
			}

			ctx.Terms[key] = def
		}
	}

	for term, def := range ctx.Terms {
		expanded := ctx.Expand(def.ID)
		if expanded != "" {
			ctx.byIRI[expanded] = term
		}
	}

	return ctx, nil
}

func parseTermDefinition(val any) (TermDefinition, error) {
	switch v := val.(type) {
	case string:
		return TermDefinition{ID: v}, nil
	case map[string]any:
		var def TermDefinition

		if id, ok := v["@id"].(string); ok {
			def.ID = id
		}

		if t, ok := v["@type"].(string); ok {
			def.Type = t
		}

		if c, ok := v["@container"].(string); ok {
			def.Container = c
		}

		return def, nil
	default:
		return TermDefinition{}, fmt.Errorf("unsupported term definition shape")
	}
}

// Expand resolves a prefixed or bare term/IRI against @vocab and any
// "prefix:" term whose own definition is a bare IRI prefix.
func (c *Context) Expand(value string) string {
	if value == "" {
		return ""
	}

	if strings.Contains(value, "://") {
		return value
	}

	if idx := strings.IndexByte(value, ':'); idx > 0 {
		prefix, rest := value[:idx], value[idx+1:]
		if def, ok := c.Terms[prefix]; ok && def.ID != "" {
			return def.ID + rest
		}
	}

	if c.Vocab != "" {
		return c.Vocab + value
	}

	return value
}

// TermFor reverse-looks-up a term name for an expanded IRI, for use when a
// human-readable key is needed (template generation, SHACL-violation field
// paths). Returns ok=false if no term maps to iri.
func (c *Context) TermFor(iri string) (string, bool) {
	term, ok := c.byIRI[iri]

	return term, ok
}

// IRIFor resolves a term to its expanded IRI, or "" if the term is unknown.
func (c *Context) IRIFor(term string) string {
	def, ok := c.Terms[term]
	if !ok {
		return ""
	}

	return c.Expand(def.ID)
}

// ContainerFor returns the @container hint for term, or "" if none.
func (c *Context) ContainerFor(term string) string {
	return c.Terms[term].Container
}
