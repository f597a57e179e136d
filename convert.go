package openapi

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/nlstn/odata-openapi/internal/csdl"
	"github.com/nlstn/odata-openapi/internal/paths"
	"github.com/nlstn/odata-openapi/internal/schema"
)

// recognizedProtocols is the closed set of protocol annotation values the
// converter accepts. Values outside this set abort the conversion when they
// are the sole declared protocol.
var recognizedProtocols = map[string]bool{
	"odata":    true,
	"odata-v4": true,
	"rest":     true,
	"none":     true,
}

type converter struct {
	doc     *csdl.Document
	tracker *schema.Tracker
	schemas *schema.Builder
	paths   *paths.Builder
	logger  *slog.Logger
	opts    Options
}

func newConverter(raw map[string]any, opts Options) *converter {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ODataVersion != "" {
		// Leave the caller's document untouched.
		overridden := make(map[string]any, len(raw)+1)
		for k, v := range raw {
			overridden[k] = v
		}
		overridden["$Version"] = opts.ODataVersion
		raw = overridden
	}

	doc := csdl.NewDocument(raw)
	tracker := schema.NewTracker()
	schemas := schema.NewBuilder(doc, tracker, opts.Logger)

	keyAsSegment := opts.KeyAsSegment
	if _, _, container, ok := doc.EntityContainer(); ok {
		if v, present := doc.BoolTerm(container, csdl.CapabilitiesKeyAsSegmentSupported); present && v {
			keyAsSegment = true
		}
	}

	return &converter{
		doc:     doc,
		tracker: tracker,
		schemas: schemas,
		paths: paths.NewBuilder(schemas, paths.Options{
			MaxLevels:         opts.MaxLevels,
			KeyAsSegment:      keyAsSegment,
			QueryOptionPrefix: opts.QueryOptionPrefix,
			Logger:            opts.Logger,
		}),
		logger: opts.Logger,
		opts:   opts,
	}
}

func (c *converter) convert(ctx context.Context) (out map[string]any, err error) {
	_, end := c.opts.Observability.StartConversion(ctx, string(c.doc.Version()))
	schemaCount := 0
	defer func() { end(err, schemaCount) }()

	if err = c.protocolGate(); err != nil {
		return nil, err
	}

	pathItems := c.paths.Paths()
	c.addBatchPath(pathItems)

	document := map[string]any{
		"openapi": "3.0.2",
		"info":    c.info(),
		"paths":   pathItems,
	}
	if servers := c.servers(); len(servers) > 0 {
		document["servers"] = servers
	}

	components := map[string]any{}
	schemes, security := c.securitySchemes()
	if len(schemes) > 0 {
		components["securitySchemes"] = schemes
	}
	if len(security) > 0 {
		document["security"] = security
	}

	// Component parameters and the shared error response are emitted only
	// when something in the paths references them, so no orphans remain
	// when capability annotations suppress their users.
	used := map[string]bool{}
	walkRefs(pathItems, func(ref string) { used[ref] = true })
	if params := c.componentParameters(used); len(params) > 0 {
		components["parameters"] = params
	}
	if used["#/components/responses/error"] {
		components["responses"] = map[string]any{
			"error": map[string]any{
				"description": "Error",
				"content": map[string]any{
					"application/json": map[string]any{
						"schema": c.tracker.Reference("", "error", ""),
					},
				},
			},
		}
	}

	schemas := c.drainSchemas()
	schemaCount = len(schemas)
	if len(schemas) > 0 {
		components["schemas"] = schemas
	}
	if len(components) > 0 {
		document["components"] = components
	}
	return document, nil
}

// protocolGate validates the service's protocol annotation. A single
// unrecognized value is fatal; an unrecognized value inside a list is
// skipped with a diagnostic as long as a recognized one remains.
func (c *converter) protocolGate() error {
	_, name, container, ok := c.doc.EntityContainer()
	if !ok {
		return nil
	}
	switch declared := container["@protocol"].(type) {
	case string:
		if !recognizedProtocols[declared] {
			return fmt.Errorf("%w: service %s declares %q", ErrUnsupportedProtocol, name, declared)
		}
	case []any:
		recognized := false
		for _, v := range declared {
			p, _ := v.(string)
			if recognizedProtocols[p] {
				recognized = true
				continue
			}
			c.logger.Warn("Skipping unrecognized protocol", "service", name, "protocol", v)
		}
		if !recognized && len(declared) > 0 {
			return fmt.Errorf("%w: service %s declares no recognized protocol", ErrUnsupportedProtocol, name)
		}
	}
	return nil
}

// drainSchemas processes the reference work-list to a fixpoint: emitting a
// schema may discover further references, which are appended and processed
// in turn. Termination is bounded by the document's own type count.
func (c *converter) drainSchemas() map[string]any {
	schemas := map[string]any{}
	for {
		entry, ok := c.tracker.Next()
		if !ok {
			return schemas
		}
		s, ok := c.schemas.SchemaFor(entry)
		if !ok {
			c.logger.Warn("Skipping unresolvable schema reference", "schema", entry.Key())
			continue
		}
		schemas[entry.Key()] = s
	}
}

// info builds the info object from the Core description annotations of the
// entity container and its schema.
func (c *converter) info() map[string]any {
	namespace, _, container, hasContainer := c.doc.EntityContainer()
	var schemaElement csdl.Element
	if hasContainer {
		schemaElement = c.doc.Schema(namespace)
	}

	title := ""
	if hasContainer {
		title = c.doc.StringTerm(container, csdl.CoreDescription)
	}
	if title == "" && schemaElement != nil {
		title = c.doc.StringTerm(schemaElement, csdl.CoreDescription)
	}
	if title == "" {
		if namespace != "" {
			title = "OData Service for namespace " + namespace
		} else {
			title = "OData Service"
		}
	}

	description := ""
	if hasContainer {
		description = c.doc.StringTerm(container, csdl.CoreLongDescription)
	}
	if description == "" && schemaElement != nil {
		description = c.doc.StringTerm(schemaElement, csdl.CoreLongDescription)
	}
	if c.opts.Diagram {
		if diagram := c.entityDiagram(); diagram != "" {
			description += diagram
		}
	}

	version := ""
	if schemaElement != nil {
		version = c.doc.StringTerm(schemaElement, csdl.CoreSchemaVersion)
	}

	return map[string]any{
		"title":       title,
		"description": description,
		"version":     version,
	}
}

// servers builds the servers array from the explicit list, the single URL,
// or the scheme/host/basePath triple, in that order of preference.
func (c *converter) servers() []any {
	if len(c.opts.Servers) > 0 {
		servers := make([]any, 0, len(c.opts.Servers))
		for _, u := range c.opts.Servers {
			servers = append(servers, map[string]any{"url": u})
		}
		return servers
	}
	if c.opts.URL != "" {
		return []any{map[string]any{"url": c.opts.URL}}
	}
	if c.opts.Host != "" {
		scheme := c.opts.Scheme
		if scheme == "" {
			scheme = "https"
		}
		return []any{map[string]any{"url": scheme + "://" + c.opts.Host + c.opts.BasePath}}
	}
	return nil
}

// componentParameters emits the reusable system query option parameters
// that the paths actually reference.
func (c *converter) componentParameters(used map[string]bool) map[string]any {
	prefix := c.opts.QueryOptionPrefix
	if prefix == "" {
		prefix = "$"
	}
	all := map[string]map[string]any{
		"top": {
			"name":        prefix + "top",
			"in":          "query",
			"description": "Show only the first n items, see [Paging - Top](https://docs.oasis-open.org/odata/odata/v4.01/odata-v4.01-part1-protocol.html#sec_SystemQueryOptionstopandskip)",
			"schema":      map[string]any{"type": "integer", "minimum": 0},
			"example":     50,
		},
		"skip": {
			"name":        prefix + "skip",
			"in":          "query",
			"description": "Skip the first n items, see [Paging - Skip](https://docs.oasis-open.org/odata/odata/v4.01/odata-v4.01-part1-protocol.html#sec_SystemQueryOptionstopandskip)",
			"schema":      map[string]any{"type": "integer", "minimum": 0},
		},
		"count": {
			"name":        prefix + "count",
			"in":          "query",
			"description": "Include count of items, see [Count](https://docs.oasis-open.org/odata/odata/v4.01/odata-v4.01-part1-protocol.html#sec_SystemQueryOptioncount)",
			"schema":      map[string]any{"type": "boolean"},
		},
		"search": {
			"name":        prefix + "search",
			"in":          "query",
			"description": "Search items by search phrases, see [Searching](https://docs.oasis-open.org/odata/odata/v4.01/odata-v4.01-part1-protocol.html#sec_SystemQueryOptionsearch)",
			"schema":      map[string]any{"type": "string"},
		},
	}
	params := map[string]any{}
	for name, p := range all {
		if used["#/components/parameters/"+name] {
			params[name] = p
		}
	}
	return params
}

// addBatchPath emits the /$batch path item unless the container suppresses
// batch requests.
func (c *converter) addBatchPath(pathItems map[string]any) {
	_, _, container, ok := c.doc.EntityContainer()
	if !ok {
		return
	}
	if !c.doc.SupportedTerm(container, csdl.CapabilitiesBatchSupported) {
		return
	}
	firstSet := ""
	for _, child := range container.Properties() {
		if child.Element.IsCollection() && child.Element["$Action"] == nil && child.Element["$Function"] == nil {
			firstSet = child.Name
			break
		}
	}
	if firstSet == "" {
		firstSet = "Resource"
	}

	requestExample := strings.Join([]string{
		"--request-separator",
		"Content-Type: application/http",
		"Content-Transfer-Encoding: binary",
		"",
		"GET " + firstSet + " HTTP/1.1",
		"Accept: application/json",
		"",
		"",
		"--request-separator--",
	}, "\n")
	responseExample := strings.Join([]string{
		"--response-separator",
		"Content-Type: application/http",
		"",
		"HTTP/1.1 200 OK",
		"Content-Type: application/json",
		"",
		"{...}",
		"--response-separator--",
	}, "\n")

	responses := map[string]any{
		"200": map[string]any{
			"description": "Batch response",
			"content": map[string]any{
				"multipart/mixed": map[string]any{
					"schema":  map[string]any{"type": "string"},
					"example": responseExample,
				},
			},
		},
		"4XX": map[string]any{"$ref": "#/components/responses/error"},
	}
	pathItems["/$batch"] = map[string]any{
		"post": map[string]any{
			"summary":     "Send a group of requests",
			"description": "Group multiple requests into a single request payload, see [Batch Requests](https://docs.oasis-open.org/odata/odata/v4.01/odata-v4.01-part1-protocol.html#sec_BatchRequests).",
			"tags":        []any{"Batch Requests"},
			"requestBody": map[string]any{
				"required":    true,
				"description": "Batch request",
				"content": map[string]any{
					"multipart/mixed;boundary=request-separator": map[string]any{
						"schema":  map[string]any{"type": "string"},
						"example": requestExample,
					},
				},
			},
			"responses": responses,
		},
	}
}

// walkRefs visits every $ref string in a document tree.
func walkRefs(v any, visit func(string)) {
	switch node := v.(type) {
	case map[string]any:
		for k, child := range node {
			if k == "$ref" {
				if ref, ok := child.(string); ok {
					visit(ref)
				}
				continue
			}
			walkRefs(child, visit)
		}
	case []any:
		for _, child := range node {
			walkRefs(child, visit)
		}
	}
}

// entityDiagram builds a yUML class diagram link covering the structured
// types of the document: inheritance edges and navigation edges.
func (c *converter) entityDiagram() string {
	var edges []string
	seen := map[string]bool{}
	add := func(edge string) {
		if !seen[edge] {
			seen[edge] = true
			edges = append(edges, edge)
		}
	}
	for _, ns := range c.doc.Namespaces() {
		schemaElement := c.doc.Schema(ns)
		for _, member := range schemaElement.Properties() {
			kind := member.Element.Kind()
			if kind != "EntityType" && kind != "ComplexType" {
				continue
			}
			add("[" + member.Name + "]")
			if base := member.Element.BaseType(); base != "" {
				if qn, err := csdl.ParseQualifiedName(c.doc.Normalize(base)); err == nil {
					add("[" + qn.Name + "]^[" + member.Name + "]")
				}
			}
			for _, prop := range member.Element.Properties() {
				if prop.Element.Kind() != "NavigationProperty" {
					continue
				}
				target, err := csdl.ParseQualifiedName(c.doc.Normalize(prop.Element.Type()))
				if err != nil {
					continue
				}
				arrow := "->"
				if prop.Element.IsCollection() {
					arrow = "-*>"
				}
				add("[" + member.Name + "]" + arrow + "[" + target.Name + "]")
			}
		}
	}
	if len(edges) == 0 {
		return ""
	}
	sort.Strings(edges)
	url := "https://yuml.me/diagram/class/" + strings.Join(edges, ",") + ".svg"
	return "\n\n## Entity Data Model\n![ER Diagram](" + url + ")"
}
