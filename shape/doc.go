// Package shape implements the shape registry: it loads a
// SHACL shape, a JSON-LD context, and a mapping config from an on-disk
// search path or a remote fetch, parses and cross-validates them into an
// immutable [Definition], and caches the result for the registry's
// lifetime.
package shape
