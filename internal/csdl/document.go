package csdl

import (
	"fmt"
	"sort"
	"strings"
)

// maxBaseTypeDepth bounds base-type chain traversal. Base chains are acyclic
// in well-formed CSDL; the bound only guards against pathological input.
const maxBaseTypeDepth = 100

// ErrCyclicType is returned when a base-type chain exceeds the traversal
// bound, which only happens when the input contains a cycle.
var ErrCyclicType = fmt.Errorf("base type chain exceeds depth limit")

// Member is a named element of a schema or structured type, in declaration
// key order after sorting.
type Member struct {
	Name    string
	Element Element
}

// Document is a read view over a decoded CSDL JSON document.
type Document struct {
	raw map[string]any

	aliases    map[string]string
	flattened  map[string][]Member
	keyCache   map[string]map[string]bool
	namespaces []string
}

// NewDocument wraps a decoded CSDL JSON tree. The tree is not copied and
// must not be mutated while the document is in use.
func NewDocument(raw map[string]any) *Document {
	d := &Document{
		raw:       raw,
		aliases:   map[string]string{},
		flattened: map[string][]Member{},
		keyCache:  map[string]map[string]bool{},
	}
	for name, v := range raw {
		schema, ok := v.(map[string]any)
		if !ok || !IsIdentifierKey(name) {
			continue
		}
		d.namespaces = append(d.namespaces, name)
		if alias, ok := schema["$Alias"].(string); ok {
			d.aliases[alias] = name
		}
	}
	sort.Strings(d.namespaces)
	return d
}

// Version returns the $Version marker, defaulting to "4.0".
func (d *Document) Version() Version {
	if s, ok := d.raw["$Version"].(string); ok {
		return Version(s)
	}
	return Version("4.0")
}

// Namespaces returns the schema namespaces in sorted order.
func (d *Document) Namespaces() []string {
	return d.namespaces
}

// Schema returns the named schema, resolving aliases, or nil.
func (d *Document) Schema(namespace string) Element {
	if s, ok := d.raw[namespace].(map[string]any); ok {
		return Element(s)
	}
	if s, ok := d.raw[ResolveAlias(namespace, d.aliases)].(map[string]any); ok {
		return Element(s)
	}
	return nil
}

// Aliases returns the alias-to-namespace map collected from all schemas.
func (d *Document) Aliases() map[string]string {
	return d.aliases
}

// Normalize rewrites an alias-qualified name into its namespace-qualified
// form. Names that do not parse or carry no alias pass through unchanged.
func (d *Document) Normalize(qualified string) string {
	qn, err := ParseQualifiedName(qualified)
	if err != nil {
		return qualified
	}
	ns := ResolveAlias(qn.Namespace, d.aliases)
	if ns == qn.Namespace {
		return qualified
	}
	return ns + "." + qn.Name
}

// Lookup returns the type declaration for a qualified name, trying the
// literal namespace first and its alias-resolved form second. Returns nil
// for unknown names; callers degrade to a generic schema.
func (d *Document) Lookup(qualified string) Element {
	qn, err := ParseQualifiedName(qualified)
	if err != nil {
		return nil
	}
	schema := d.Schema(qn.Namespace)
	if schema == nil {
		return nil
	}
	return schema.Property(qn.Name)
}

// EntityContainer returns the namespace holding the document's entity
// container, the container's name, and the container element. A document
// without a container returns ok=false.
func (d *Document) EntityContainer() (namespace, name string, container Element, ok bool) {
	for _, ns := range d.namespaces {
		schema := d.Schema(ns)
		for _, m := range schema.Properties() {
			if m.Element.Kind() == "EntityContainer" {
				return ns, m.Name, m.Element, true
			}
		}
	}
	return "", "", nil, false
}

// FlattenProperties returns the structured type's properties with all
// inherited properties first, own declarations overriding inherited ones of
// the same name. The result is cached per qualified name for the lifetime
// of the document.
func (d *Document) FlattenProperties(qualified string) ([]Member, error) {
	if cached, ok := d.flattened[qualified]; ok {
		return cached, nil
	}
	members, err := d.flatten(qualified, 0)
	if err != nil {
		return nil, err
	}
	d.flattened[qualified] = members
	return members, nil
}

func (d *Document) flatten(qualified string, depth int) ([]Member, error) {
	if depth > maxBaseTypeDepth {
		return nil, fmt.Errorf("%w: %s", ErrCyclicType, qualified)
	}
	decl := d.Lookup(qualified)
	if decl == nil {
		return nil, nil
	}
	var members []Member
	if base := decl.BaseType(); base != "" {
		inherited, err := d.flatten(d.Normalize(base), depth+1)
		if err != nil {
			return nil, err
		}
		members = append(members, inherited...)
	}
	for _, m := range decl.Properties() {
		replaced := false
		for i := range members {
			if members[i].Name == m.Name {
				members[i] = m
				replaced = true
				break
			}
		}
		if !replaced {
			members = append(members, m)
		}
	}
	return members, nil
}

// KeyProperties returns the effective key property names of an entity type:
// the $Key list of the type or its nearest ancestor declaring one, plus any
// property individually flagged as a key via the Core.AlternateKeys-style
// "Key" annotation. Key parts declared as aliased paths contribute their
// alias name.
func (d *Document) KeyProperties(qualified string) map[string]bool {
	if cached, ok := d.keyCache[qualified]; ok {
		return cached
	}
	keys := map[string]bool{}
	name := qualified
	for depth := 0; name != "" && depth <= maxBaseTypeDepth; depth++ {
		decl := d.Lookup(name)
		if decl == nil {
			break
		}
		if list, ok := decl["$Key"].([]any); ok {
			for _, part := range list {
				switch p := part.(type) {
				case string:
					keys[p] = true
				case map[string]any:
					// {alias: path} form, the alias is the addressable name
					for alias := range p {
						keys[alias] = true
					}
				}
			}
			break
		}
		name = d.Normalize(decl.BaseType())
	}
	members, _ := d.FlattenProperties(qualified)
	for _, m := range members {
		if b, _ := m.Element.BoolAnnotation("Org.OData.Core.V1.IsKey"); b {
			keys[m.Name] = true
		}
	}
	d.keyCache[qualified] = keys
	return keys
}

// DerivedTypes returns qualified names of all types declaring the given
// type as their direct base, in sorted order.
func (d *Document) DerivedTypes(qualified string) []string {
	var derived []string
	for _, ns := range d.namespaces {
		schema := d.Schema(ns)
		for _, m := range schema.Properties() {
			if d.Normalize(m.Element.BaseType()) == qualified {
				derived = append(derived, ns+"."+m.Name)
			}
		}
	}
	sort.Strings(derived)
	return derived
}

func sortedMembers(obj map[string]any) []Member {
	names := make([]string, 0, len(obj))
	for k := range obj {
		if IsIdentifierKey(k) {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	members := make([]Member, 0, len(names))
	for _, name := range names {
		if m, ok := obj[name].(map[string]any); ok {
			members = append(members, Member{Name: name, Element: Element(m)})
		}
	}
	return members
}

// Version is a CSDL $Version marker ("2.0", "3.0", "4.0", "4.01").
type Version string

// Before40 reports a pre-OData-4.0 document.
func (v Version) Before40() bool {
	return strings.HasPrefix(string(v), "2") || strings.HasPrefix(string(v), "3")
}

// After40 reports an OData 4.01 or later document.
func (v Version) After40() bool {
	return !v.Before40() && string(v) != "4.0"
}
