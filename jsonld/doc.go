// Package jsonld renders mapped records into JSON-LD documents by walking a
// shape definition's mapping plan, without constructing an intermediate RDF
// graph. It also owns document serialization: order-preserving compact or
// indented JSON encoding and the read-back decoder.
package jsonld
