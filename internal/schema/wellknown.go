package schema

// wellKnownSchema emits the shared schemas referenced by empty-namespace
// entries. These only appear in the output when something referenced them.
func (b *Builder) wellKnownSchema(name string) (map[string]any, bool) {
	switch name {
	case "count":
		return map[string]any{
			"anyOf":       []any{map[string]any{"type": "integer"}, map[string]any{"type": "string"}},
			"description": "The number of entities in the collection. Available when using the $count query option.",
		}, true
	case "error":
		return b.errorSchema(), true
	case "geoPoint":
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"type":        map[string]any{"type": "string", "enum": []any{"Point"}, "default": "Point"},
				"coordinates": b.tracker.Reference("", "geoPosition", ""),
			},
			"required": []any{"type", "coordinates"},
		}, true
	case "geoPosition":
		return map[string]any{
			"type":     "array",
			"items":    map[string]any{"type": "number"},
			"minItems": 2,
		}, true
	default:
		b.logger.Warn("Unknown well-known schema", "name", name)
		return nil, false
	}
}

// errorSchema returns the OData error response body schema. Pre-4.0
// services wrap the message in a language-tagged object, 4.0 and later use
// the flat message string with optional details.
func (b *Builder) errorSchema() map[string]any {
	if b.doc.Version().Before40() {
		return map[string]any{
			"type":     "object",
			"required": []any{"error"},
			"properties": map[string]any{
				"error": map[string]any{
					"type":     "object",
					"required": []any{"code", "message"},
					"properties": map[string]any{
						"code": map[string]any{"type": "string"},
						"message": map[string]any{
							"type":     "object",
							"required": []any{"lang", "value"},
							"properties": map[string]any{
								"lang":  map[string]any{"type": "string"},
								"value": map[string]any{"type": "string"},
							},
						},
						"innererror": map[string]any{
							"type":        "object",
							"description": "The structure of this object is service-specific",
						},
					},
				},
			},
		}
	}
	return map[string]any{
		"type":     "object",
		"required": []any{"error"},
		"properties": map[string]any{
			"error": map[string]any{
				"type":     "object",
				"required": []any{"code", "message"},
				"properties": map[string]any{
					"code":    map[string]any{"type": "string"},
					"message": map[string]any{"type": "string"},
					"target":  map[string]any{"type": "string"},
					"details": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type":     "object",
							"required": []any{"code", "message"},
							"properties": map[string]any{
								"code":    map[string]any{"type": "string"},
								"message": map[string]any{"type": "string"},
								"target":  map[string]any{"type": "string"},
							},
						},
					},
					"innererror": map[string]any{
						"type":        "object",
						"description": "The structure of this object is service-specific",
					},
				},
			},
		},
	}
}
