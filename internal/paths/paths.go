// Package paths synthesizes OpenAPI Path Items for the children of an
// OData entity container: entity-set and singleton CRUD operations,
// containment navigation, and bound and unbound actions and functions.
package paths

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/nlstn/odata-openapi/internal/csdl"
	"github.com/nlstn/odata-openapi/internal/schema"
)

// Builder synthesizes the paths object of one service document.
type Builder struct {
	schemas *schema.Builder
	doc     *csdl.Document
	logger  *slog.Logger

	maxLevels    int
	keyAsSegment bool
	optionPrefix string
}

// Options configure path synthesis.
type Options struct {
	// MaxLevels bounds navigation and $expand recursion depth.
	MaxLevels int
	// KeyAsSegment selects /EntitySet/{key} addressing instead of the
	// parentheses style /EntitySet({key}).
	KeyAsSegment bool
	// QueryOptionPrefix is prepended to system query option names,
	// normally "$".
	QueryOptionPrefix string
	Logger            *slog.Logger
}

// NewBuilder creates a path builder on top of a schema builder.
func NewBuilder(schemas *schema.Builder, opts Options) *Builder {
	if opts.MaxLevels <= 0 {
		opts.MaxLevels = 5
	}
	if opts.QueryOptionPrefix == "" {
		opts.QueryOptionPrefix = "$"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Builder{
		schemas:      schemas,
		doc:          schemas.Document(),
		logger:       opts.Logger,
		maxLevels:    opts.MaxLevels,
		keyAsSegment: opts.KeyAsSegment,
		optionPrefix: opts.QueryOptionPrefix,
	}
}

// Paths builds path items for every entity set, singleton, action import
// and function import of the entity container. Returns an empty map when
// the document declares no container.
func (b *Builder) Paths() map[string]any {
	paths := map[string]any{}
	_, _, container, ok := b.doc.EntityContainer()
	if !ok {
		return paths
	}
	for _, child := range container.Properties() {
		switch {
		case child.Element["$Action"] != nil:
			b.actionImport(paths, child.Name, child.Element)
		case child.Element["$Function"] != nil:
			b.functionImport(paths, child.Name, child.Element)
		case child.Element.IsCollection():
			b.entitySet(paths, child.Name, child.Element)
		default:
			b.singleton(paths, child.Name, child.Element)
		}
	}
	return paths
}

// entitySet emits the collection path, the by-key path, bound operation
// paths and containment navigation paths of one entity set.
func (b *Builder) entitySet(paths map[string]any, name string, set csdl.Element) {
	typeName := b.doc.Normalize(set.Type())
	b.collectionTarget(paths, "/"+name, name, typeName, set, nil, 0)
}

// singleton emits the read and update paths of a singleton.
func (b *Builder) singleton(paths map[string]any, name string, single csdl.Element) {
	typeName := b.doc.Normalize(single.Type())
	b.singleTarget(paths, "/"+name, name, typeName, single, nil, 0)
}

// collectionTarget emits the path pattern of a collection-valued target:
// list and create on the collection path, read/update/delete on the by-key
// path, then recurses into containment navigation. parentParams are the
// path parameters inherited from outer key segments.
func (b *Builder) collectionTarget(paths map[string]any, path, tag, typeName string, capabilities csdl.Element, parentParams []any, level int) {
	qn, err := csdl.ParseQualifiedName(typeName)
	if err != nil {
		b.logger.Warn("Entity set references unqualified type", "type", typeName)
		return
	}

	item := map[string]any{}
	readable := b.doc.SupportedTerm(capabilities, csdl.CapabilitiesReadRestrictions+"/Readable")
	if readable {
		item["get"] = b.listOperation(tag, typeName, qn, capabilities)
	}
	if b.doc.SupportedTerm(capabilities, csdl.CapabilitiesInsertRestrictions+"/Insertable") {
		item["post"] = b.createOperation(tag, qn)
	}
	if len(item) > 0 {
		if len(parentParams) > 0 {
			item["parameters"] = parentParams
		}
		paths[path] = item
	}

	b.boundOperationPaths(paths, path, tag, typeName, parentParams, true)

	if !b.doc.SupportedTerm(capabilities, csdl.CapabilitiesIndexableByKey) {
		return
	}
	keySegment, keyParams := b.keyAddressing(typeName, level)
	if keySegment == "" {
		return
	}
	byKeyPath := path + keySegment
	allParams := append(append([]any{}, parentParams...), keyParams...)

	byKey := map[string]any{}
	if readable {
		byKey["get"] = b.readOperation(tag, typeName, qn, capabilities)
	}
	if b.doc.SupportedTerm(capabilities, csdl.CapabilitiesUpdateRestrictions+"/Updatable") {
		byKey["patch"] = b.updateOperation(tag, qn)
	}
	if b.doc.SupportedTerm(capabilities, csdl.CapabilitiesDeleteRestrictions+"/Deletable") {
		byKey["delete"] = b.deleteOperation(tag)
	}
	if len(byKey) > 0 {
		byKey["parameters"] = allParams
		paths[byKeyPath] = byKey
	}

	b.boundOperationPaths(paths, byKeyPath, tag, typeName, allParams, false)
	b.navigationTargets(paths, byKeyPath, tag, typeName, allParams, level)
}

// singleTarget emits the path pattern of a single-valued target: read and
// update, then containment navigation.
func (b *Builder) singleTarget(paths map[string]any, path, tag, typeName string, capabilities csdl.Element, parentParams []any, level int) {
	qn, err := csdl.ParseQualifiedName(typeName)
	if err != nil {
		b.logger.Warn("Singleton references unqualified type", "type", typeName)
		return
	}

	item := map[string]any{}
	if b.doc.SupportedTerm(capabilities, csdl.CapabilitiesReadRestrictions+"/Readable") {
		item["get"] = b.readOperation(tag, typeName, qn, capabilities)
	}
	if b.doc.SupportedTerm(capabilities, csdl.CapabilitiesUpdateRestrictions+"/Updatable") {
		item["patch"] = b.updateOperation(tag, qn)
	}
	if len(item) > 0 {
		if len(parentParams) > 0 {
			item["parameters"] = parentParams
		}
		paths[path] = item
	}

	b.boundOperationPaths(paths, path, tag, typeName, parentParams, false)
	b.navigationTargets(paths, path, tag, typeName, parentParams, level)
}

// navigationTargets recurses into the containment navigation properties of
// a type, re-applying the collection or single path pattern one level
// deeper. Recursion is bounded strictly by MaxLevels; cyclic models
// truncate silently instead of erroring.
func (b *Builder) navigationTargets(paths map[string]any, path, tag, typeName string, parentParams []any, level int) {
	if level+1 >= b.maxLevels {
		return
	}
	members, err := b.doc.FlattenProperties(typeName)
	if err != nil {
		b.logger.Warn("Cannot flatten properties for navigation", "type", typeName, "error", err)
		return
	}
	for _, m := range members {
		el := m.Element
		if el.Kind() != "NavigationProperty" {
			continue
		}
		if !el.ContainsTarget() && !el.OnDeleteCascade() {
			continue
		}
		targetType := b.doc.Normalize(el.Type())
		navPath := path + "/" + m.Name
		if el.IsCollection() {
			b.collectionTarget(paths, navPath, tag, targetType, el, parentParams, level+1)
		} else {
			b.singleTarget(paths, navPath, tag, targetType, el, parentParams, level+1)
		}
	}
}

// keyAddressing builds the key path segment and its parameter objects for
// an entity type. Parameter names carry the navigation level as a suffix
// past the first level, so same-named keys along a containment chain stay
// distinct.
func (b *Builder) keyAddressing(typeName string, level int) (string, []any) {
	keys := b.doc.KeyProperties(typeName)
	if len(keys) == 0 {
		return "", nil
	}
	members, err := b.doc.FlattenProperties(typeName)
	if err != nil {
		return "", nil
	}

	var segments []string
	var params []any
	for _, m := range members {
		if !keys[m.Name] {
			continue
		}
		paramName := m.Name
		if level > 0 {
			paramName = fmt.Sprintf("%s-%d", m.Name, level)
		}
		placeholder := "{" + paramName + "}"
		if !b.keyAsSegment && b.doc.Normalize(m.Element.Type()) == "Edm.String" {
			// Parentheses-style string keys are quoted in the URL.
			placeholder = "'" + placeholder + "'"
		}
		if len(keys) > 1 {
			segments = append(segments, m.Name+"="+placeholder)
		} else {
			segments = append(segments, placeholder)
		}
		params = append(params, map[string]any{
			"name":        paramName,
			"in":          "path",
			"required":    true,
			"description": "key: " + m.Name,
			"schema":      b.schemas.Schema(m.Element, schema.SuffixRead, true, false),
		})
	}
	if len(segments) == 0 {
		return "", nil
	}
	if b.keyAsSegment {
		return "/" + strings.Join(segments, "/"), params
	}
	return "(" + strings.Join(segments, ",") + ")", params
}

// listOperation is the GET on a collection path.
func (b *Builder) listOperation(tag, typeName string, qn csdl.QualifiedName, capabilities csdl.Element) map[string]any {
	responses := map[string]any{
		"200": map[string]any{
			"description": "Retrieved entities",
			"content": map[string]any{
				"application/json": map[string]any{
					"schema": b.collectionEnvelope(qn),
				},
			},
		},
	}
	b.addErrorResponse(responses)
	return map[string]any{
		"summary":    "Get entities from " + tag,
		"tags":       []any{tag},
		"parameters": b.queryOptionParameters(typeName, capabilities),
		"responses":  responses,
	}
}

// createOperation is the POST on a collection path.
func (b *Builder) createOperation(tag string, qn csdl.QualifiedName) map[string]any {
	responses := map[string]any{
		"201": map[string]any{
			"description": "Created entity",
			"content": map[string]any{
				"application/json": map[string]any{
					"schema": b.schemas.Tracker().Reference(qn.Namespace, qn.Name, schema.SuffixRead),
				},
			},
		},
	}
	b.addErrorResponse(responses)
	return map[string]any{
		"summary": "Add new entity to " + tag,
		"tags":    []any{tag},
		"requestBody": map[string]any{
			"required":    true,
			"description": "New entity",
			"content": map[string]any{
				"application/json": map[string]any{
					"schema": b.schemas.Tracker().Reference(qn.Namespace, qn.Name, schema.SuffixCreate),
				},
			},
		},
		"responses": responses,
	}
}

// readOperation is the GET on a by-key or single-valued path.
func (b *Builder) readOperation(tag, typeName string, qn csdl.QualifiedName, capabilities csdl.Element) map[string]any {
	success := map[string]any{
		"description": "Retrieved entity",
		"content": map[string]any{
			"application/json": map[string]any{
				"schema": b.schemas.Tracker().Reference(qn.Namespace, qn.Name, schema.SuffixRead),
			},
		},
	}
	if b.optimisticConcurrency(typeName) {
		success["headers"] = map[string]any{
			"ETag": map[string]any{
				"description": "ETag of the retrieved entity",
				"schema":      map[string]any{"type": "string"},
			},
		}
	}
	responses := map[string]any{
		"200": success,
	}
	b.addErrorResponse(responses)
	var params []any
	if p := b.selectParameter(typeName, capabilities); p != nil {
		params = append(params, p)
	}
	if p := b.expandParameter(typeName, capabilities); p != nil {
		params = append(params, p)
	}
	op := map[string]any{
		"summary":   "Get entity from " + tag + " by key",
		"tags":      []any{tag},
		"responses": responses,
	}
	if len(params) > 0 {
		op["parameters"] = params
	}
	return op
}

// optimisticConcurrency reports whether the entity type participates in
// ETag-based concurrency control.
func (b *Builder) optimisticConcurrency(typeName string) bool {
	decl := b.doc.Lookup(typeName)
	if decl == nil {
		return false
	}
	_, ok := b.doc.Term(decl, csdl.CoreOptimisticConcurrency)
	return ok
}

// updateOperation is the PATCH on a by-key or single-valued path.
func (b *Builder) updateOperation(tag string, qn csdl.QualifiedName) map[string]any {
	responses := map[string]any{
		"204": map[string]any{"description": "Success"},
	}
	b.addErrorResponse(responses)
	return map[string]any{
		"summary": "Update entity in " + tag,
		"tags":    []any{tag},
		"requestBody": map[string]any{
			"required":    true,
			"description": "New property values",
			"content": map[string]any{
				"application/json": map[string]any{
					"schema": b.schemas.Tracker().Reference(qn.Namespace, qn.Name, schema.SuffixUpdate),
				},
			},
		},
		"responses": responses,
	}
}

// deleteOperation is the DELETE on a by-key path.
func (b *Builder) deleteOperation(tag string) map[string]any {
	responses := map[string]any{
		"204": map[string]any{"description": "Success"},
	}
	b.addErrorResponse(responses)
	return map[string]any{
		"summary":   "Delete entity from " + tag,
		"tags":      []any{tag},
		"responses": responses,
	}
}
