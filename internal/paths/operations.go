package paths

import (
	"strings"

	"github.com/nlstn/odata-openapi/internal/csdl"
	"github.com/nlstn/odata-openapi/internal/schema"
)

// reservedOptionNames are system query option names that a function
// parameter may not shadow; colliding parameters get an @-prefixed alias.
var reservedOptionNames = map[string]bool{
	"apply": true, "compute": true, "count": true, "deltatoken": true,
	"expand": true, "filter": true, "format": true, "id": true,
	"levels": true, "orderby": true, "search": true, "select": true,
	"skip": true, "skiptoken": true, "top": true,
}

// boundOperationPaths emits path items for every action and function bound
// to the given type with the given cardinality.
func (b *Builder) boundOperationPaths(paths map[string]any, basePath, tag, typeName string, parentParams []any, collection bool) {
	for _, op := range b.doc.BoundOperations("Action", typeName, collection) {
		item := map[string]any{
			"post": b.actionOperation(tag, op.Overload, true),
		}
		if len(parentParams) > 0 {
			item["parameters"] = parentParams
		}
		paths[basePath+"/"+op.QualifiedName()] = item
	}
	for _, op := range b.doc.BoundOperations("Function", typeName, collection) {
		suffix, operation := b.functionOperation(tag, op.Overload, true)
		item := map[string]any{"get": operation}
		if len(parentParams) > 0 {
			item["parameters"] = parentParams
		}
		paths[basePath+"/"+op.QualifiedName()+suffix] = item
	}
}

// actionImport emits the path item of an unbound action import.
func (b *Builder) actionImport(paths map[string]any, name string, child csdl.Element) {
	actionName, _ := child["$Action"].(string)
	overload := b.unboundOverload(actionName)
	if overload == nil {
		b.logger.Warn("Action import references unknown action", "import", name, "action", actionName)
		return
	}
	paths["/"+name] = map[string]any{
		"post": b.actionOperation(name, overload, false),
	}
}

// functionImport emits the path item of an unbound function import.
func (b *Builder) functionImport(paths map[string]any, name string, child csdl.Element) {
	functionName, _ := child["$Function"].(string)
	overload := b.unboundOverload(functionName)
	if overload == nil {
		b.logger.Warn("Function import references unknown function", "import", name, "function", functionName)
		return
	}
	suffix, operation := b.functionOperation(name, overload, false)
	paths["/"+name+suffix] = map[string]any{
		"get": operation,
	}
}

func (b *Builder) unboundOverload(qualified string) csdl.Element {
	for _, overload := range b.doc.OperationOverloads(qualified) {
		if !overload.IsBound() {
			return overload
		}
	}
	return nil
}

// actionOperation builds the POST operation of an action: all non-binding
// parameters wrapped into one request body object.
func (b *Builder) actionOperation(tag string, overload csdl.Element, bound bool) map[string]any {
	params := overload.Parameters()
	if bound && len(params) > 0 {
		params = params[1:]
	}

	op := map[string]any{
		"summary":   b.operationSummary("Invoke action", overload),
		"tags":      []any{tag},
		"responses": b.operationResponses(overload.ReturnType()),
	}
	if len(params) == 0 {
		return op
	}

	properties := map[string]any{}
	var required []any
	for _, p := range params {
		properties[p.Name()] = b.schemas.Schema(p, schema.SuffixRead, false, false)
		if !b.isOptionalParameter(p) {
			required = append(required, p.Name())
		}
	}
	body := map[string]any{
		"type":       "object",
		"title":      "Action parameters",
		"properties": properties,
	}
	if len(required) > 0 {
		body["required"] = required
	}
	op["requestBody"] = map[string]any{
		"required":    true,
		"description": "Action parameters",
		"content": map[string]any{
			"application/json": map[string]any{"schema": body},
		},
	}
	return op
}

// functionOperation builds the GET operation of a function plus the path
// template suffix for its parameters. Parameter placement depends on the
// protocol dialect: implicit-alias mode uses named query parameters, the
// legacy mode encodes primitive parameters as path-template segments with
// OData URL literal syntax.
func (b *Builder) functionOperation(tag string, overload csdl.Element, bound bool) (string, map[string]any) {
	params := overload.Parameters()
	if bound && len(params) > 0 {
		params = params[1:]
	}

	implicit := b.implicitAliases(params)
	var pathSegments []string
	var parameters []any
	for _, p := range params {
		name := p.Name()
		switch {
		case b.isStructuredParameter(p):
			parameters = append(parameters, map[string]any{
				"name":        "@" + name,
				"in":          "query",
				"required":    !b.isOptionalParameter(p),
				"description": "This is URL-encoded JSON, see [Complex and Collection Literals](https://docs.oasis-open.org/odata/odata/v4.01/odata-v4.01-part2-url-conventions.html#sec_ComplexandCollectionLiterals)",
				"schema":      b.schemas.Schema(p, schema.SuffixRead, true, false),
			})
		case implicit:
			parameterName := name
			if reservedOptionNames[strings.ToLower(name)] {
				parameterName = "@" + name
			}
			parameters = append(parameters, map[string]any{
				"name":     parameterName,
				"in":       "query",
				"required": !b.isOptionalParameter(p),
				"schema":   b.schemas.Schema(p, schema.SuffixRead, true, false),
			})
		default:
			pathSegments = append(pathSegments, name+"={"+name+"}")
			parameters = append(parameters, map[string]any{
				"name":     name,
				"in":       "path",
				"required": true,
				"schema":   b.schemas.Schema(p, schema.SuffixRead, true, true),
			})
		}
	}

	op := map[string]any{
		"summary":   b.operationSummary("Invoke function", overload),
		"tags":      []any{tag},
		"responses": b.operationResponses(overload.ReturnType()),
	}
	if len(parameters) > 0 {
		op["parameters"] = parameters
	}
	suffix := ""
	if len(pathSegments) > 0 {
		suffix = "(" + strings.Join(pathSegments, ",") + ")"
	}
	return suffix, op
}

// implicitAliases reports whether function parameters are passed as named
// query parameters: always past OData 4.0, and whenever any parameter is
// marked optional.
func (b *Builder) implicitAliases(params []csdl.Element) bool {
	if b.doc.Version().After40() {
		return true
	}
	for _, p := range params {
		if b.isOptionalParameter(p) {
			return true
		}
	}
	return false
}

func (b *Builder) isOptionalParameter(p csdl.Element) bool {
	_, ok := b.doc.Term(p, csdl.CoreOptionalParameter)
	return ok
}

// isStructuredParameter reports parameters that cannot be written as plain
// URL literals and are always passed as URL-encoded JSON: entity, complex,
// collection and stream values.
func (b *Builder) isStructuredParameter(p csdl.Element) bool {
	if p.IsCollection() {
		return true
	}
	typeName := b.doc.Normalize(p.Type())
	if typeName == "Edm.Stream" {
		return true
	}
	if strings.HasPrefix(typeName, "Edm.") {
		return false
	}
	decl := b.doc.Lookup(typeName)
	if decl == nil {
		return false
	}
	switch decl.Kind() {
	case "EntityType", "ComplexType":
		return true
	}
	return false
}

func (b *Builder) operationSummary(fallback string, overload csdl.Element) string {
	if description := b.doc.StringTerm(overload, csdl.CoreDescription); description != "" {
		return description
	}
	return fallback
}
