// Package mapping implements the declarative Mapping Config data model and
// the Field Mapper that applies it: column-level source-to-target
// remapping, type coercion, transform application, and multi-value
// splitting, producing a mapped record keyed by target terms.
package mapping
