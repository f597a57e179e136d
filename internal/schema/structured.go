package schema

import (
	"sort"
	"strings"

	"github.com/nlstn/odata-openapi/internal/csdl"
)

// SchemaFor emits the component schema for a tracker entry. Entries with an
// empty namespace are the shared well-known schemas; everything else
// dispatches on the declaration kind. Returns ok=false when the entry
// cannot be resolved, which callers report and skip.
func (b *Builder) SchemaFor(entry Entry) (map[string]any, bool) {
	if entry.Namespace == "" {
		return b.wellKnownSchema(entry.Name)
	}
	qualified := entry.Namespace + "." + entry.Name
	decl := b.doc.Lookup(qualified)
	if decl == nil {
		b.logger.Warn("Referenced type is not declared", "type", qualified)
		return map[string]any{"type": "string"}, true
	}
	switch decl.Kind() {
	case "EntityType", "ComplexType":
		return b.StructuredSchema(entry.Namespace, entry.Name, entry.Suffix), true
	case "EnumType":
		return b.EnumSchema(entry.Name, decl), true
	case "TypeDefinition":
		return b.TypeDefinitionSchema(entry.Name, decl), true
	default:
		b.logger.Warn("Referenced declaration has no schema representation", "type", qualified, "kind", decl.Kind())
		return map[string]any{"type": "string"}, true
	}
}

// StructuredSchema emits one variant schema of an entity or complex type.
// The suffix selects the read, create or update property view; a "-base"
// suffix emits the same view without the derived-type alternatives, used
// as the composition target of subtypes.
func (b *Builder) StructuredSchema(namespace, name, suffix string) map[string]any {
	qualified := namespace + "." + name
	decl := b.doc.Lookup(qualified)
	if decl == nil {
		return map[string]any{"type": "string"}
	}

	variant := strings.TrimSuffix(suffix, "-base")
	isBase := variant != suffix
	keys := map[string]bool{}
	if decl.Kind() == "EntityType" {
		keys = b.doc.KeyProperties(qualified)
	}

	own := map[string]any{"type": "object"}
	properties := map[string]any{}
	var required []string
	for _, m := range decl.Properties() {
		include, propSchema := b.variantProperty(m, variant, keys)
		if !include {
			continue
		}
		properties[m.Name] = propSchema
		if b.isRequired(m, variant, keys) {
			required = append(required, m.Name)
		}
		if variant == SuffixRead {
			if countName, ok := b.countSibling(qualified, m.Element); ok {
				properties[m.Name+countName] = b.tracker.Reference("", "count", "")
			}
		}
	}
	if len(properties) > 0 {
		own["properties"] = properties
	}
	// Only create payloads state requiredness; reads return what exists and
	// updates are partial by definition.
	if variant == SuffixCreate && len(required) > 0 {
		own["required"] = toAnySlice(required)
	}

	s := own
	if base := decl.BaseType(); base != "" {
		normalized := b.doc.Normalize(base)
		if qn, err := csdl.ParseQualifiedName(normalized); err == nil {
			s = map[string]any{
				"allOf": []any{b.tracker.Reference(qn.Namespace, qn.Name, variant+"-base"), own},
			}
		}
	}

	if !isBase {
		if alternatives := b.derivedAlternatives(qualified, decl, variant); alternatives != nil {
			s["anyOf"] = alternatives
		}
	}

	s["title"] = variantTitle(b.typeLabel(name, decl), variant)
	if description := b.description(decl); description != "" {
		s["description"] = description
	}
	return b.Extensions(decl, s)
}

// variantProperty decides whether a flat or navigation property belongs to
// the given variant and, if so, synthesizes its schema.
func (b *Builder) variantProperty(m csdl.Member, variant string, keys map[string]bool) (bool, map[string]any) {
	el := m.Element
	isNavigation := el.Kind() == "NavigationProperty"
	contained := isNavigation && (el.ContainsTarget() || el.OnDeleteCascade())

	switch variant {
	case SuffixRead:
		return true, b.Schema(el, SuffixRead, false, false)
	case SuffixCreate:
		if b.isExcludedFromWrite(el) {
			return false, nil
		}
		if isNavigation {
			if !contained {
				return false, nil
			}
			return true, b.Schema(el, SuffixCreate, false, false)
		}
		return true, b.Schema(el, SuffixCreate, false, false)
	case SuffixUpdate:
		if b.isExcludedFromWrite(el) || keys[m.Name] {
			return false, nil
		}
		if immutable, _ := b.doc.BoolTerm(el, csdl.CoreImmutable); immutable {
			return false, nil
		}
		if isNavigation {
			if !contained {
				return false, nil
			}
			// Updating a containment sub-resource replaces it wholesale, so
			// the nested schema is the create shape.
			return true, b.Schema(el, SuffixCreate, false, false)
		}
		return true, b.Schema(el, SuffixUpdate, false, false)
	default:
		return true, b.Schema(el, SuffixRead, false, false)
	}
}

// isExcludedFromWrite reports server-owned properties that clients may
// neither create nor update.
func (b *Builder) isExcludedFromWrite(el csdl.Element) bool {
	if computed, _ := b.doc.BoolTerm(el, csdl.CoreComputed); computed {
		return true
	}
	if computed, _ := b.doc.BoolTerm(el, csdl.CoreComputedDefaultValue); computed {
		return true
	}
	permissions, _ := b.doc.Term(el, csdl.CorePermissions)
	if p, ok := permissions.(string); ok {
		if p == "Read" || strings.HasSuffix(p, "/Read") {
			return true
		}
	}
	return false
}

// isRequired reports requiredness for the create payload: key properties
// and properties under mandatory field control, unless they are excluded
// from the variant anyway.
func (b *Builder) isRequired(m csdl.Member, variant string, keys map[string]bool) bool {
	if keys[m.Name] {
		return true
	}
	control, _ := b.doc.Term(m.Element, csdl.CommonFieldControl)
	switch c := control.(type) {
	case string:
		return c == "Mandatory" || strings.HasSuffix(c, "/Mandatory")
	case float64:
		return c == 7
	}
	return false
}

// countSibling reports whether a property gets a "{name}@count" companion:
// collection-valued contained navigation without an explicit not-countable
// restriction. The control-information name depends on the OData version.
func (b *Builder) countSibling(owner string, el csdl.Element) (string, bool) {
	if el.Kind() != "NavigationProperty" || !el.IsCollection() {
		return "", false
	}
	if !el.ContainsTarget() && !el.OnDeleteCascade() {
		return "", false
	}
	if !b.countable(owner, el) {
		return "", false
	}
	if b.doc.Version().After40() {
		return "@count", true
	}
	return "@odata.count", true
}

// countable applies the not-countable capability restriction. A restriction
// declared on the container's entity set of the owning type wins over the
// navigation property's own annotation.
func (b *Builder) countable(owner string, el csdl.Element) bool {
	term := csdl.CapabilitiesCountRestrictions + "/Countable"
	if _, _, container, ok := b.doc.EntityContainer(); ok {
		for _, child := range container.Properties() {
			if !child.Element.IsCollection() || b.doc.Normalize(child.Element.Type()) != owner {
				continue
			}
			if v, present := b.doc.Term(child.Element, term); present {
				flag, isBool := v.(bool)
				return !isBool || flag
			}
		}
	}
	return b.doc.SupportedTerm(el, term)
}

// derivedAlternatives lists the anyOf alternatives of a type with
// subtypes: each derived type's matching variant, plus the empty schema
// standing for "exactly this type" unless the type is abstract.
func (b *Builder) derivedAlternatives(qualified string, decl csdl.Element, variant string) []any {
	derived := b.doc.DerivedTypes(qualified)
	if len(derived) == 0 {
		return nil
	}
	alternatives := make([]any, 0, len(derived)+1)
	for _, d := range derived {
		if qn, err := csdl.ParseQualifiedName(d); err == nil {
			alternatives = append(alternatives, b.tracker.Reference(qn.Namespace, qn.Name, variant))
		}
	}
	if !decl.IsAbstract() {
		alternatives = append(alternatives, map[string]any{})
	}
	return alternatives
}

// EnumSchema emits the string schema of an enumeration type, listing the
// member names. Member values are plain numbers in CSDL JSON, so the
// member names are the identifier keys of the declaration.
func (b *Builder) EnumSchema(name string, decl csdl.Element) map[string]any {
	var values []any
	for _, key := range sortedIdentifierKeys(decl) {
		values = append(values, key)
	}
	s := map[string]any{"type": "string", "title": b.typeLabel(name, decl)}
	if len(values) > 0 {
		s["enum"] = values
	}
	if description := b.description(decl); description != "" {
		s["description"] = description
	}
	return s
}

// TypeDefinitionSchema emits the schema of a type definition by
// synthesizing its underlying primitive type with the definition's own
// facets, then overlaying title and description.
func (b *Builder) TypeDefinitionSchema(name string, decl csdl.Element) map[string]any {
	facade := csdl.Element{"$Type": decl.UnderlyingType()}
	for k, v := range decl {
		switch k {
		case "$Kind", "$UnderlyingType":
			continue
		}
		facade[k] = v
	}
	s := b.Schema(facade, SuffixRead, false, false)
	s = attach(s, "title", b.typeLabel(name, decl))
	return s
}

// typeLabel prefers the Common.Label annotation over the declaration name.
func (b *Builder) typeLabel(name string, decl csdl.Element) string {
	if label := b.doc.StringTerm(decl, csdl.CommonLabel); label != "" {
		return label
	}
	return name
}

func variantTitle(label, variant string) string {
	switch variant {
	case SuffixCreate:
		return label + " (for create)"
	case SuffixUpdate:
		return label + " (for update)"
	default:
		return label
	}
}

func sortedIdentifierKeys(decl csdl.Element) []string {
	var keys []string
	for k := range decl {
		if csdl.IsIdentifierKey(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func toAnySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
