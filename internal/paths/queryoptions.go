package paths

import (
	"strings"

	"github.com/nlstn/odata-openapi/internal/csdl"
)

// queryOptionParameters builds the system query option parameters of a
// collection GET. Every option is gated by its capability restriction,
// defaulting to supported when the restriction is absent and suppressed
// only by an explicit false.
func (b *Builder) queryOptionParameters(typeName string, capabilities csdl.Element) []any {
	params := []any{}
	if b.doc.SupportedTerm(capabilities, csdl.CapabilitiesTopSupported) {
		params = append(params, componentParameter("top"))
	}
	if b.doc.SupportedTerm(capabilities, csdl.CapabilitiesSkipSupported) {
		params = append(params, componentParameter("skip"))
	}
	if b.doc.SupportedTerm(capabilities, csdl.CapabilitiesSearchRestrictions+"/Searchable") {
		params = append(params, componentParameter("search"))
	}
	if b.doc.SupportedTerm(capabilities, csdl.CapabilitiesFilterRestrictions+"/Filterable") {
		params = append(params, b.filterParameter(capabilities))
	}
	if b.doc.SupportedTerm(capabilities, csdl.CapabilitiesCountRestrictions+"/Countable") {
		params = append(params, componentParameter("count"))
	}
	if b.doc.SupportedTerm(capabilities, csdl.CapabilitiesSortRestrictions+"/Sortable") {
		if p := b.orderbyParameter(typeName, capabilities); p != nil {
			params = append(params, p)
		}
	}
	if p := b.selectParameter(typeName, capabilities); p != nil {
		params = append(params, p)
	}
	if p := b.expandParameter(typeName, capabilities); p != nil {
		params = append(params, p)
	}
	return params
}

func componentParameter(name string) map[string]any {
	return map[string]any{"$ref": "#/components/parameters/" + name}
}

// filterParameter builds the inline $filter parameter. Required filter
// properties cannot be expressed structurally in OpenAPI, so they are
// appended to the description as a bullet list.
func (b *Builder) filterParameter(capabilities csdl.Element) map[string]any {
	description := "Filter items by property values, see [Filtering](https://docs.oasis-open.org/odata/odata/v4.01/odata-v4.01-part1-protocol.html#sec_SystemQueryOptionfilter)"
	if required, ok := b.doc.Term(capabilities, csdl.CapabilitiesFilterRestrictions+"/RequiredProperties"); ok {
		if list, ok := required.([]any); ok && len(list) > 0 {
			var bullets []string
			for _, p := range list {
				if s, ok := p.(string); ok {
					bullets = append(bullets, "- "+s)
				}
			}
			if len(bullets) > 0 {
				description += "\n\nRequired filter properties:\n" + strings.Join(bullets, "\n")
			}
		}
	}
	return map[string]any{
		"name":        b.optionPrefix + "filter",
		"in":          "query",
		"description": description,
		"schema":      map[string]any{"type": "string"},
	}
}

// orderbyParameter builds the $orderby parameter listing every sortable
// primitive property path in ascending and descending form.
func (b *Builder) orderbyParameter(typeName string, capabilities csdl.Element) map[string]any {
	properties := b.primitivePaths(typeName)
	properties = excludePaths(properties, b.restrictedPaths(capabilities, csdl.CapabilitiesSortRestrictions+"/NonSortableProperties"))
	if len(properties) == 0 {
		return nil
	}
	values := make([]any, 0, 2*len(properties))
	for _, p := range properties {
		values = append(values, p, p+" desc")
	}
	return map[string]any{
		"name":        b.optionPrefix + "orderby",
		"in":          "query",
		"description": "Order items by property values, see [Sorting](https://docs.oasis-open.org/odata/odata/v4.01/odata-v4.01-part1-protocol.html#sec_SystemQueryOptionorderby)",
		"explode":     false,
		"schema": map[string]any{
			"type":        "array",
			"uniqueItems": true,
			"items":       map[string]any{"type": "string", "enum": values},
		},
	}
}

// selectParameter builds the $select parameter listing every primitive
// property path of the entity.
func (b *Builder) selectParameter(typeName string, capabilities csdl.Element) map[string]any {
	if !b.doc.SupportedTerm(capabilities, csdl.CapabilitiesSelectSupport+"/Supported") {
		return nil
	}
	properties := b.primitivePaths(typeName)
	if len(properties) == 0 {
		return nil
	}
	return map[string]any{
		"name":        b.optionPrefix + "select",
		"in":          "query",
		"description": "Select properties to be returned, see [Select](https://docs.oasis-open.org/odata/odata/v4.01/odata-v4.01-part1-protocol.html#sec_SystemQueryOptionselect)",
		"explode":     false,
		"schema": map[string]any{
			"type":        "array",
			"uniqueItems": true,
			"items":       map[string]any{"type": "string", "enum": toAny(properties)},
		},
	}
}

// expandParameter builds the $expand parameter listing the star expansion
// and every expandable navigation property path within MaxLevels.
func (b *Builder) expandParameter(typeName string, capabilities csdl.Element) map[string]any {
	if !b.doc.SupportedTerm(capabilities, csdl.CapabilitiesExpandRestrictions+"/Expandable") {
		return nil
	}
	navPaths := b.expandPaths(typeName, "", 0, nil)
	navPaths = excludePaths(navPaths, b.restrictedPaths(capabilities, csdl.CapabilitiesExpandRestrictions+"/NonExpandableProperties"))
	if len(navPaths) == 0 {
		return nil
	}
	values := append([]any{"*"}, toAny(navPaths)...)
	return map[string]any{
		"name":        b.optionPrefix + "expand",
		"in":          "query",
		"description": "Expand related entities, see [Expand](https://docs.oasis-open.org/odata/odata/v4.01/odata-v4.01-part1-protocol.html#sec_SystemQueryOptionexpand)",
		"explode":     false,
		"schema": map[string]any{
			"type":        "array",
			"uniqueItems": true,
			"items":       map[string]any{"type": "string", "enum": values},
		},
	}
}

// primitivePaths enumerates the primitive property paths reachable from a
// structured type, recursing into complex-typed properties but never into
// navigation properties. A complex type already on the current recursion
// chain is not re-entered, which bounds the enumeration on cyclic models.
func (b *Builder) primitivePaths(typeName string) []string {
	return b.collectPrimitivePaths(typeName, "", map[string]bool{typeName: true})
}

func (b *Builder) collectPrimitivePaths(typeName, prefix string, visiting map[string]bool) []string {
	members, err := b.doc.FlattenProperties(typeName)
	if err != nil {
		b.logger.Warn("Cannot enumerate property paths", "type", typeName, "error", err)
		return nil
	}
	var out []string
	for _, m := range members {
		el := m.Element
		if el.Kind() == "NavigationProperty" {
			continue
		}
		propType := b.doc.Normalize(el.Type())
		decl := b.doc.Lookup(propType)
		if decl != nil && (decl.Kind() == "ComplexType" || decl.Kind() == "EntityType") {
			if el.IsCollection() || visiting[propType] {
				continue
			}
			visiting[propType] = true
			out = append(out, b.collectPrimitivePaths(propType, prefix+m.Name+"/", visiting)...)
			delete(visiting, propType)
			continue
		}
		out = append(out, prefix+m.Name)
	}
	return out
}

// expandPaths enumerates navigation property paths up to MaxLevels.
func (b *Builder) expandPaths(typeName, prefix string, level int, acc []string) []string {
	if level >= b.maxLevels {
		return acc
	}
	members, err := b.doc.FlattenProperties(typeName)
	if err != nil {
		return acc
	}
	for _, m := range members {
		el := m.Element
		if el.Kind() != "NavigationProperty" {
			continue
		}
		path := prefix + m.Name
		acc = append(acc, path)
		acc = b.expandPaths(b.doc.Normalize(el.Type()), path+"/", level+1, acc)
	}
	return acc
}

// restrictedPaths reads a property-path list from a capability record.
func (b *Builder) restrictedPaths(capabilities csdl.Element, term string) map[string]bool {
	excluded := map[string]bool{}
	raw, ok := b.doc.Term(capabilities, term)
	if !ok {
		return excluded
	}
	list, ok := raw.([]any)
	if !ok {
		return excluded
	}
	for _, p := range list {
		if s, ok := p.(string); ok {
			excluded[s] = true
		}
	}
	return excluded
}

func excludePaths(paths []string, excluded map[string]bool) []string {
	if len(excluded) == 0 {
		return paths
	}
	out := paths[:0]
	for _, p := range paths {
		if !excluded[p] {
			out = append(out, p)
		}
	}
	return out
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
