package csdl

import "sort"

// Operation accessors. Actions and functions are declared as arrays of
// overload objects in CSDL JSON, so they need their own read path next to
// the object-valued type declarations.

// Name returns the $Name of a parameter element.
func (e Element) Name() string {
	s, _ := e["$Name"].(string)
	return s
}

// IsBound reports the $IsBound flag of an operation overload.
func (e Element) IsBound() bool {
	b, _ := e["$IsBound"].(bool)
	return b
}

// Parameters returns the overload's parameter list in declaration order.
// For bound overloads the first parameter is the binding parameter.
func (e Element) Parameters() []Element {
	list, _ := e["$Parameter"].([]any)
	params := make([]Element, 0, len(list))
	for _, p := range list {
		if m, ok := p.(map[string]any); ok {
			params = append(params, Element(m))
		}
	}
	return params
}

// ReturnType returns the overload's $ReturnType element, nil for void
// actions.
func (e Element) ReturnType() Element {
	return e.Property("$ReturnType")
}

// OperationOverload is one overload of a named action or function.
type OperationOverload struct {
	Namespace string
	Name      string
	Overload  Element
}

// QualifiedName returns the operation's namespace-qualified name.
func (o OperationOverload) QualifiedName() string {
	return o.Namespace + "." + o.Name
}

// OperationOverloads returns the overload list of a qualified action or
// function name, nil when the name does not resolve to an operation.
func (d *Document) OperationOverloads(qualified string) []Element {
	qn, err := ParseQualifiedName(d.Normalize(qualified))
	if err != nil {
		return nil
	}
	schema := d.Schema(qn.Namespace)
	if schema == nil {
		return nil
	}
	list, _ := schema[qn.Name].([]any)
	overloads := make([]Element, 0, len(list))
	for _, o := range list {
		if m, ok := o.(map[string]any); ok {
			overloads = append(overloads, Element(m))
		}
	}
	return overloads
}

// BoundOperations returns all action and function overloads whose binding
// parameter matches the given type and cardinality, in sorted name order
// per namespace.
func (d *Document) BoundOperations(kind, bindingType string, collection bool) []OperationOverload {
	var bound []OperationOverload
	for _, ns := range d.namespaces {
		schema := d.Schema(ns)
		for _, name := range sortedOperationNames(schema) {
			for _, overload := range d.OperationOverloads(ns + "." + name) {
				if overload.Kind() != kind || !overload.IsBound() {
					continue
				}
				params := overload.Parameters()
				if len(params) == 0 {
					continue
				}
				binding := params[0]
				if d.Normalize(binding.Type()) != bindingType || binding.IsCollection() != collection {
					continue
				}
				bound = append(bound, OperationOverload{Namespace: ns, Name: name, Overload: overload})
			}
		}
	}
	return bound
}

func sortedOperationNames(schema Element) []string {
	var names []string
	for k, v := range schema {
		if !IsIdentifierKey(k) {
			continue
		}
		if _, isList := v.([]any); isList {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}
