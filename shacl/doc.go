// Package shacl parses a SHACL shapes graph from Turtle syntax into a tree
// of [NodeShapeInfo]/[PropertyInfo] records, generates mapping-config
// templates from that tree, and cross-validates a mapping config against a
// shape. It also implements the minimal Turtle reader and in-memory RDF
// triple store that back the full-validation round-trip: only the subset of
// the grammar SHACL shape files actually use, not a general RDF stack.
package shacl
