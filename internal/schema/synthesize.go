package schema

import (
	"math"
	"strings"

	"github.com/nlstn/odata-openapi/internal/csdl"
)

// Variant suffixes of structured-type schemas. The read variant has no
// suffix; base-composition schemas append "-base" to any of these.
const (
	SuffixRead   = ""
	SuffixCreate = "-create"
	SuffixUpdate = "-update"
)

// Schema synthesizes the OpenAPI schema for a model element: a property,
// a parameter or a return type. suffix selects the structured-type variant
// for referenced entity and complex types. forParameter omits the
// description, which belongs on the Parameter Object instead. forFunction
// switches examples and patterns to OData URL literal syntax for
// path-template function parameters.
//
// The steps below build on each other in order: sibling keywords may only
// be attached after a bare reference has been wrapped in allOf, and
// collection wrapping must happen after the value-level keywords so that
// they land on the items schema.
func (b *Builder) Schema(el csdl.Element, suffix string, forParameter, forFunction bool) map[string]any {
	typeName := b.doc.Normalize(el.Type())

	// Step 1: dispatch on the referenced type.
	var s map[string]any
	if strings.HasPrefix(typeName, "Edm.") {
		s = b.Primitive(typeName, el)
	} else {
		s = b.referenceSchema(typeName, suffix)
	}

	// Step 2: maxLength applies to primitive string and binary types only.
	// Base64url encoding expands three bytes into four characters.
	if n := el.MaxLength(); n > 0 {
		switch typeName {
		case "Edm.String":
			s = attach(s, "maxLength", n)
		case "Edm.Binary":
			s = attach(s, "maxLength", int(math.Ceil(float64(4*n)/3)))
		}
	}

	// Step 3: allowed-values constraint.
	if values := b.allowedValues(el); values != nil {
		s = attach(s, "enum", values)
	}

	// Step 4: nullability. References cannot carry sibling keywords, so a
	// nullable reference becomes {allOf:[{$ref}], nullable:true}.
	nullable := el.IsNullable()
	if nullable {
		s = attach(s, "nullable", true)
	}

	// Step 5: default value, example and validation constraints.
	if def := el.DefaultValue(); def != nil {
		s = attach(s, "default", def)
	}
	if example, ok := b.doc.Term(el, csdl.CoreExample+"/Value"); ok {
		s = attach(s, "example", example)
	}
	if min, ok := b.doc.Term(el, csdl.ValidationMinimum); ok {
		s = attach(s, "minimum", min)
	}
	if max, ok := b.doc.Term(el, csdl.ValidationMaximum); ok {
		s = attach(s, "maximum", max)
	}
	if pattern := b.doc.StringTerm(el, csdl.ValidationPattern); pattern != "" {
		s = attach(s, "pattern", pattern)
	}

	// Step 6: function path-literal mode.
	if forFunction {
		b.applyLiteralSyntax(s, typeName, nullable)
	}

	// Step 7: collection wrapping.
	if el.IsCollection() {
		s = map[string]any{"type": "array", "items": s}
	}

	// Step 8: description, unless the parameter object carries it.
	if !forParameter {
		if description := b.description(el); description != "" {
			s = attach(s, "description", description)
		}
	}

	// Step 9: vocabulary extension passthrough.
	s = b.Extensions(el, s)

	return s
}

// referenceSchema resolves a non-primitive type reference into a $ref,
// registering the target schema for emission. Structured types keep the
// variant suffix, enumerations and type definitions have only one schema.
// Unknown types degrade to a string schema with a diagnostic.
func (b *Builder) referenceSchema(typeName, suffix string) map[string]any {
	decl := b.doc.Lookup(typeName)
	if decl == nil {
		b.logger.Warn("Unknown type reference", "type", typeName)
		return map[string]any{"type": "string"}
	}
	qn, err := csdl.ParseQualifiedName(typeName)
	if err != nil {
		b.logger.Warn("Unknown type reference", "type", typeName)
		return map[string]any{"type": "string"}
	}
	refSuffix := ""
	switch decl.Kind() {
	case "EntityType", "ComplexType":
		refSuffix = suffix
	}
	return b.tracker.Reference(qn.Namespace, qn.Name, refSuffix)
}

// allowedValues extracts the enum list from a Validation.AllowedValues
// annotation, nil when absent.
func (b *Builder) allowedValues(el csdl.Element) []any {
	raw, ok := b.doc.Term(el, csdl.ValidationAllowedValues)
	if !ok {
		return nil
	}
	records, ok := raw.([]any)
	if !ok {
		return nil
	}
	values := make([]any, 0, len(records))
	for _, r := range records {
		if record, ok := r.(map[string]any); ok {
			values = append(values, record["Value"])
		}
	}
	if len(values) == 0 {
		return nil
	}
	return values
}

// applyLiteralSyntax rewrites example and pattern into OData URL literal
// form for path-template function parameters. String literals are enclosed
// in single quotes with embedded quotes doubled; nullable parameters accept
// a literal null alternative.
func (b *Builder) applyLiteralSyntax(s map[string]any, typeName string, nullable bool) {
	prefix, suffix := literalDelimiters(typeName)
	if example, ok := s["example"].(string); ok && prefix != "" {
		s["example"] = prefix + example + suffix
	}
	if typeName == "Edm.String" {
		pattern := "^'([^']|'')*'$"
		if nullable {
			pattern = "^('([^']|'')*'|null)$"
		}
		s["pattern"] = pattern
		return
	}
	if pattern, ok := s["pattern"].(string); ok && nullable {
		s["pattern"] = "(" + pattern + "|null)"
	}
}

// attach sets a sibling keyword on a schema, first wrapping a bare
// reference in allOf since reference objects cannot carry siblings.
func attach(s map[string]any, key string, value any) map[string]any {
	if _, isRef := s["$ref"]; isRef {
		s = map[string]any{"allOf": []any{s}}
	}
	s[key] = value
	return s
}

// extensionTerms is the closed table of vocabulary terms that pass through
// to OpenAPI extension keys.
var extensionTerms = []struct{ term, key string }{
	{"com.sap.vocabularies.ODM.v1.root", "x-sap-odm-root"},
	{"com.sap.vocabularies.ODM.v1.entityName", "x-sap-odm-entity-name"},
	{"com.sap.vocabularies.ODM.v1.oid", "x-sap-odm-oid"},
	{"com.sap.vocabularies.EntityRelationship.v1.entityType", "x-entity-relationship-entity-type"},
	{"com.sap.vocabularies.EntityRelationship.v1.entityIds", "x-entity-relationship-entity-ids"},
	{"com.sap.vocabularies.EntityRelationship.v1.propertyType", "x-entity-relationship-property-type"},
	{"com.sap.vocabularies.EntityRelationship.v1.reference", "x-entity-relationship-reference"},
	{"com.sap.vocabularies.EntityRelationship.v1.temporalIds", "x-entity-relationship-temporal-ids"},
	{"com.sap.vocabularies.EntityRelationship.v1.temporalReferences", "x-entity-relationship-temporal-references"},
	{"com.sap.vocabularies.EntityRelationship.v1.referencesWithConstantIds", "x-entity-relationship-references-with-constant-ids"},
}

// Extensions copies known annotation terms of the element verbatim onto
// the schema under their x-prefixed output keys, wrapping a bare reference
// first when necessary.
func (b *Builder) Extensions(el csdl.Element, s map[string]any) map[string]any {
	for _, ext := range extensionTerms {
		if v, ok := b.doc.Term(el, ext.term); ok {
			s = attach(s, ext.key, v)
		}
	}
	return s
}
