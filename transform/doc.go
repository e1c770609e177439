// Package transform holds the name-to-function table used by the field
// mapper to convert raw column values into mapped-record values.
//
// A [Registry] is populated with the built-in transforms at construction
// and may receive caller-registered transforms before any pipeline run
// begins; redefining a built-in name is a [ErrConfig] error.
package transform
