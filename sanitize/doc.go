// Package sanitize implements IRI-component safety checks, base-URI
// well-formedness validation, and PII masking for log output.
package sanitize
