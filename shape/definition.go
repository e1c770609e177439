package shape

import (
	"github.com/shaclpipe/shaclpipe/ldcontext"
	"github.com/shaclpipe/shaclpipe/mapping"
	"github.com/shaclpipe/shaclpipe/shacl"
)

// Definition is an immutable, loaded shape definition: a
// SHACL graph, its parsed NodeShape tree, a JSON-LD context, and a mapping
// config, tied together under a name. Never mutated after [Registry.Load]
// returns it; safe to share by reference across every pipeline consumer.
type Definition struct {
	Name    string
	Version string

	Graph   *shacl.Graph
	Shapes  map[string]*shacl.NodeShapeInfo
	Context *ldcontext.Context
	Mapping *mapping.Config
}

// RootShape returns the NodeShape this Definition's mapping targets.
func (d *Definition) RootShape() (*shacl.NodeShapeInfo, bool) {
	s, ok := d.Shapes[d.Mapping.Shape]

	return s, ok
}
