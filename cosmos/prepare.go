package cosmos

import (
	"strings"

	"github.com/shaclpipe/shaclpipe/jsonld"
)

// Prepare deep-clones doc and decorates the clone for storage: an "id"
// derived from the last IRI segment of @id and a "partitionKey" holding
// partitionValue, or the document's @type when partitionValue is empty. The
// input document is never modified.
func Prepare(doc *jsonld.Object, partitionValue string) (*jsonld.Object, error) {
	out := doc.Clone()

	iri, _ := out.Get("@id")
	iriStr, _ := iri.(string)

	id := lastIRISegment(iriStr)
	if id == "" {
		return nil, &Error{Kind: KindIDEmpty, Message: "document @id has no identifier segment"}
	}

	out.Set("id", id)

	pk := partitionValue
	if pk == "" {
		if t, ok := out.Get("@type"); ok {
			pk, _ = t.(string)
		}
	}

	out.Set("partitionKey", pk)

	return out, nil
}

// lastIRISegment returns the portion of iri after the final "/" or "#".
func lastIRISegment(iri string) string {
	if idx := strings.LastIndexAny(iri, "/#"); idx >= 0 {
		return iri[idx+1:]
	}

	return iri
}
