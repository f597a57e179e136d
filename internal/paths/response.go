package paths

import (
	"github.com/nlstn/odata-openapi/internal/csdl"
	"github.com/nlstn/odata-openapi/internal/schema"
)

// countPropertyName returns the control-information name of the inline
// count, which lost its "odata." infix in OData 4.01.
func (b *Builder) countPropertyName() string {
	if b.doc.Version().After40() {
		return "@count"
	}
	return "@odata.count"
}

// collectionEnvelope wraps an entity reference in the count-bearing
// wrapper object returned by collection requests.
func (b *Builder) collectionEnvelope(qn csdl.QualifiedName) map[string]any {
	return b.collectionEnvelopeFor(b.schemas.Tracker().Reference(qn.Namespace, qn.Name, schema.SuffixRead), "Collection of "+qn.Name)
}

func (b *Builder) collectionEnvelopeFor(itemSchema map[string]any, title string) map[string]any {
	return map[string]any{
		"type":  "object",
		"title": title,
		"properties": map[string]any{
			b.countPropertyName(): b.schemas.Tracker().Reference("", "count", ""),
			"value": map[string]any{
				"type":  "array",
				"items": itemSchema,
			},
		},
	}
}

// addErrorResponse attaches the default 4XX error reference. No operation
// declares its own error codes, so the default applies unconditionally.
func (b *Builder) addErrorResponse(responses map[string]any) {
	responses["4XX"] = map[string]any{"$ref": "#/components/responses/error"}
}

// operationResponses builds the response map of an action or function:
// 204 for void actions, otherwise the return type's schema, wrapped in the
// collection envelope for collection-valued returns.
func (b *Builder) operationResponses(returnType csdl.Element) map[string]any {
	if returnType == nil {
		responses := map[string]any{
			"204": map[string]any{"description": "Success"},
		}
		b.addErrorResponse(responses)
		return responses
	}
	var body map[string]any
	if returnType.IsCollection() {
		// The element schema without collection wrapping; the envelope adds
		// the array level.
		item := csdl.Element{}
		for k, v := range returnType {
			if k != "$Collection" {
				item[k] = v
			}
		}
		body = b.collectionEnvelopeFor(b.schemas.Schema(item, schema.SuffixRead, false, false), "Result")
	} else {
		body = b.schemas.Schema(returnType, schema.SuffixRead, false, false)
	}
	responses := map[string]any{
		"200": map[string]any{
			"description": "Success",
			"content": map[string]any{
				"application/json": map[string]any{"schema": body},
			},
		},
	}
	b.addErrorResponse(responses)
	return responses
}
