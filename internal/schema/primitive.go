package schema

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"

	"github.com/nlstn/odata-openapi/internal/csdl"
)

// Primitive maps a built-in Edm type to its OpenAPI schema, applying the
// numeric facets of the carrying element. Unknown primitive names degrade
// to an empty schema with a diagnostic.
func (b *Builder) Primitive(typeName string, el csdl.Element) map[string]any {
	switch typeName {
	case "Edm.AnnotationPath", "Edm.ModelElementPath", "Edm.NavigationPropertyPath", "Edm.PropertyPath":
		return map[string]any{"type": "string"}
	case "Edm.Binary":
		return map[string]any{"type": "string", "format": "base64url"}
	case "Edm.Boolean":
		return map[string]any{"type": "boolean"}
	case "Edm.Byte":
		return map[string]any{"type": "integer", "format": "uint8"}
	case "Edm.Date":
		return map[string]any{"type": "string", "format": "date", "example": "2017-04-13"}
	case "Edm.DateTime", "Edm.DateTimeOffset":
		return map[string]any{"type": "string", "format": "date-time", "example": "2017-04-13T15:51:04Z"}
	case "Edm.Decimal":
		return b.decimalSchema(el)
	case "Edm.Double":
		return map[string]any{
			"anyOf":   []any{map[string]any{"type": "number"}, map[string]any{"type": "string"}},
			"format":  "double",
			"example": 3.14,
		}
	case "Edm.Duration":
		return map[string]any{"type": "string", "format": "duration", "example": "P4DT15H51M04S"}
	case "Edm.Guid":
		return map[string]any{
			"type":    "string",
			"format":  "uuid",
			"example": "01234567-89ab-cdef-0123-456789abcdef",
		}
	case "Edm.Int16":
		return map[string]any{"type": "integer", "format": "int16"}
	case "Edm.Int32":
		return map[string]any{"type": "integer", "format": "int32"}
	case "Edm.Int64":
		// 64-bit integers may exceed the consuming ecosystem's safe integer
		// range, so the string form is part of the union and the example.
		return map[string]any{
			"anyOf":   []any{map[string]any{"type": "integer"}, map[string]any{"type": "string"}},
			"format":  "int64",
			"example": "42",
		}
	case "Edm.PrimitiveType":
		return map[string]any{}
	case "Edm.SByte":
		return map[string]any{"type": "integer", "format": "int8"}
	case "Edm.Single":
		return map[string]any{
			"anyOf":   []any{map[string]any{"type": "number"}, map[string]any{"type": "string"}},
			"format":  "float",
			"example": 3.14,
		}
	case "Edm.Stream":
		return b.streamSchema(el)
	case "Edm.String":
		return map[string]any{"type": "string"}
	case "Edm.TimeOfDay":
		return map[string]any{"type": "string", "format": "time", "example": "15:51:04"}
	case "Edm.GeographyPoint", "Edm.GeometryPoint":
		return b.tracker.Reference("", "geoPoint", "")
	default:
		b.logger.Warn("Unknown primitive type", "type", typeName)
		return map[string]any{}
	}
}

// decimalSchema builds the number-or-string union for Edm.Decimal, deriving
// multipleOf from the scale and symmetric bounds from precision and scale.
// All arithmetic runs on exact decimals so that e.g. scale 2 yields a clean
// 0.01 instead of a binary floating-point artifact.
func (b *Builder) decimalSchema(el csdl.Element) map[string]any {
	s := map[string]any{
		"anyOf":   []any{map[string]any{"type": "number"}, map[string]any{"type": "string"}},
		"format":  "decimal",
		"example": 0,
	}
	scale, fixed := el.Scale()
	if !fixed {
		return s
	}
	if _, declared := el["$Scale"]; declared {
		s["multipleOf"] = decimalFloat(decimal.New(1, int32(-scale)))
	}
	precision := el.Precision()
	if precision >= 0 && precision < 16 {
		limit := decimal.New(1, int32(precision-scale)).Sub(decimal.New(1, int32(-scale)))
		s["maximum"] = decimalFloat(limit)
		s["minimum"] = decimalFloat(limit.Neg())
	}
	return s
}

func decimalFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// streamSchema returns the schema for Edm.Stream elements. A JSON.Schema
// annotation overrides the default base64url string; its value must compile
// as a JSON Schema, otherwise it is rejected with a diagnostic.
func (b *Builder) streamSchema(el csdl.Element) map[string]any {
	fallback := map[string]any{"type": "string", "format": "base64url"}
	raw, ok := b.doc.Term(el, csdl.JSONSchema)
	if !ok {
		return fallback
	}
	text, isString := raw.(string)
	if !isString {
		encoded, err := json.Marshal(raw)
		if err != nil {
			b.logger.Warn("Unusable JSON.Schema annotation", "error", err)
			return fallback
		}
		text = string(encoded)
	}
	if _, err := jsonschema.CompileString("annotation.json", text); err != nil {
		b.logger.Warn("JSON.Schema annotation does not compile", "error", err)
		return fallback
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		b.logger.Warn("JSON.Schema annotation is not an object", "error", err)
		return fallback
	}
	return parsed
}

// literalDelimiters returns the OData URL literal delimiters for a
// primitive type, used when a schema describes a path-template segment of a
// function call. Strings are single-quoted, durations carry the duration
// prefix, everything else is written bare.
func literalDelimiters(typeName string) (prefix, suffix string) {
	switch typeName {
	case "Edm.String":
		return "'", "'"
	case "Edm.Duration":
		return "duration'", "'"
	case "Edm.Binary":
		return "binary'", "'"
	default:
		return "", ""
	}
}
