// Package validate implements the two validation tiers: fast pre-build
// checks over raw records (required fields, datatype plausibility, enum
// membership, IRI safety) and the full SHACL round-trip over built
// documents (serialize, reparse, check against the shape graph).
package validate
