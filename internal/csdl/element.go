package csdl

// Element is a single CSDL model element: a type declaration, a property,
// a navigation property, an operation overload, a parameter or a return
// type. All of these share the same structural $-keys, so one read view
// covers them.
type Element map[string]any

// Kind returns the $Kind marker ("EntityType", "ComplexType", "EnumType",
// "TypeDefinition", "EntitySet", ...). Empty when absent, which for
// properties means "structural property".
func (e Element) Kind() string {
	s, _ := e["$Kind"].(string)
	return s
}

// Type returns the element's type reference, defaulting to Edm.String as
// the CSDL JSON format prescribes for omitted $Type.
func (e Element) Type() string {
	if s, ok := e["$Type"].(string); ok {
		return s
	}
	return "Edm.String"
}

// IsCollection reports the $Collection flag.
func (e Element) IsCollection() bool {
	b, _ := e["$Collection"].(bool)
	return b
}

// IsNullable reports the $Nullable flag.
func (e Element) IsNullable() bool {
	b, _ := e["$Nullable"].(bool)
	return b
}

// IsAbstract reports the $Abstract flag on a structured type.
func (e Element) IsAbstract() bool {
	b, _ := e["$Abstract"].(bool)
	return b
}

// BaseType returns the qualified name of the base type, or "".
func (e Element) BaseType() string {
	s, _ := e["$BaseType"].(string)
	return s
}

// ContainsTarget reports containment on a navigation property.
func (e Element) ContainsTarget() bool {
	b, _ := e["$ContainsTarget"].(bool)
	return b
}

// OnDeleteCascade reports whether a navigation property cascades deletes,
// which for schema purposes is treated like containment.
func (e Element) OnDeleteCascade() bool {
	s, _ := e["$OnDelete"].(string)
	return s == "Cascade"
}

// MaxLength returns the $MaxLength facet, 0 when absent or "max".
func (e Element) MaxLength() int {
	return intFacet(e["$MaxLength"])
}

// Precision returns the $Precision facet, -1 when absent.
func (e Element) Precision() int {
	if _, ok := e["$Precision"]; !ok {
		return -1
	}
	return intFacet(e["$Precision"])
}

// Scale returns the $Scale facet and whether it is a fixed number.
// A $Scale of "variable" or "floating" reports ok=false. Absent $Scale
// defaults to 0 per CSDL.
func (e Element) Scale() (scale int, ok bool) {
	v, present := e["$Scale"]
	if !present {
		return 0, true
	}
	if _, isString := v.(string); isString {
		return 0, false
	}
	return intFacet(v), true
}

// DefaultValue returns the $DefaultValue facet, nil when absent.
func (e Element) DefaultValue() any {
	return e["$DefaultValue"]
}

// Unicode reports the $Unicode facet, defaulting to true.
func (e Element) Unicode() bool {
	if b, ok := e["$Unicode"].(bool); ok {
		return b
	}
	return true
}

// UnderlyingType returns the $UnderlyingType of a type definition or enum
// type, defaulting to Edm.Int32 for enums per CSDL.
func (e Element) UnderlyingType() string {
	if s, ok := e["$UnderlyingType"].(string); ok {
		return s
	}
	return "Edm.Int32"
}

// Annotation returns the annotation value stored under "@"+term, plus
// presence. Terms are matched literally; alias-form annotation keys must be
// normalized by the caller before lookup.
func (e Element) Annotation(term string) (any, bool) {
	v, ok := e["@"+term]
	return v, ok
}

// BoolAnnotation returns a boolean annotation value, treating a bare
// annotation key with null value as true per CSDL annotation defaulting.
func (e Element) BoolAnnotation(term string) (value, present bool) {
	v, ok := e.Annotation(term)
	if !ok {
		return false, false
	}
	if v == nil {
		return true, true
	}
	b, isBool := v.(bool)
	return b && isBool, true
}

// StringAnnotation returns a string annotation value, "" when absent or
// differently typed.
func (e Element) StringAnnotation(term string) string {
	v, _ := e.Annotation(term)
	s, _ := v.(string)
	return s
}

// Properties returns the identifier-keyed members of the element in sorted
// order. For a structured type these are its declared properties, for an
// entity container its children.
func (e Element) Properties() []Member {
	return sortedMembers(e)
}

// Property returns the named member element, nil when absent or not an
// object.
func (e Element) Property(name string) Element {
	if m, ok := e[name].(map[string]any); ok {
		return Element(m)
	}
	return nil
}

func intFacet(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
