package paths

import (
	"testing"

	"github.com/nlstn/odata-openapi/internal/csdl"
	"github.com/nlstn/odata-openapi/internal/schema"
)

func libraryRaw(version string) map[string]any {
	return map[string]any{
		"$Version":         version,
		"$EntityContainer": "ns.Service",
		"ns": map[string]any{
			"Books": map[string]any{
				"$Kind": "EntityType",
				"$Key":  []any{"ID"},
				"ID":    map[string]any{},
				"title": map[string]any{"$Nullable": true},
				"dimensions": map[string]any{
					"$Type":     "ns.Dimensions",
					"$Nullable": true,
				},
				"chapters": map[string]any{
					"$Kind":           "NavigationProperty",
					"$Type":           "ns.Chapters",
					"$Collection":     true,
					"$ContainsTarget": true,
				},
				"author": map[string]any{
					"$Kind":     "NavigationProperty",
					"$Type":     "ns.Authors",
					"$Nullable": true,
				},
			},
			"Chapters": map[string]any{
				"$Kind":   "EntityType",
				"$Key":    []any{"number"},
				"number":  map[string]any{"$Type": "Edm.Int32"},
				"heading": map[string]any{"$Nullable": true},
			},
			"Authors": map[string]any{
				"$Kind": "EntityType",
				"$Key":  []any{"ID"},
				"ID":    map[string]any{"$Type": "Edm.Int32"},
				"name":  map[string]any{"$Nullable": true},
			},
			"Dimensions": map[string]any{
				"$Kind":  "ComplexType",
				"width":  map[string]any{"$Type": "Edm.Double", "$Nullable": true},
				"height": map[string]any{"$Type": "Edm.Double", "$Nullable": true},
			},
			"discount": []any{
				map[string]any{
					"$Kind":    "Action",
					"$IsBound": true,
					"$Parameter": []any{
						map[string]any{"$Name": "in", "$Type": "ns.Books", "$Collection": true},
						map[string]any{"$Name": "percent", "$Type": "Edm.Int32"},
					},
				},
			},
			"preview": []any{
				map[string]any{
					"$Kind":    "Function",
					"$IsBound": true,
					"$Parameter": []any{
						map[string]any{"$Name": "it", "$Type": "ns.Books"},
						map[string]any{"$Name": "length", "$Type": "Edm.Int32"},
					},
					"$ReturnType": map[string]any{},
				},
			},
			"restock": []any{
				map[string]any{
					"$Kind": "Action",
					"$Parameter": []any{
						map[string]any{"$Name": "amount", "$Type": "Edm.Int32"},
					},
				},
			},
			"topBooks": []any{
				map[string]any{
					"$Kind": "Function",
					"$Parameter": []any{
						map[string]any{"$Name": "count", "$Type": "Edm.Int32"},
					},
					"$ReturnType": map[string]any{
						"$Type":       "ns.Books",
						"$Collection": true,
					},
				},
			},
			"Service": map[string]any{
				"$Kind": "EntityContainer",
				"Books": map[string]any{
					"$Collection": true,
					"$Type":       "ns.Books",
				},
				"Me": map[string]any{
					"$Type": "ns.Authors",
				},
				"Restock":  map[string]any{"$Action": "ns.restock"},
				"TopBooks": map[string]any{"$Function": "ns.topBooks"},
			},
		},
	}
}

func newTestPaths(t *testing.T, raw map[string]any, opts Options) map[string]any {
	t.Helper()
	doc := csdl.NewDocument(raw)
	schemas := schema.NewBuilder(doc, schema.NewTracker(), nil)
	return NewBuilder(schemas, opts).Paths()
}

func pathItem(t *testing.T, paths map[string]any, path string) map[string]any {
	t.Helper()
	item, ok := paths[path].(map[string]any)
	if !ok {
		t.Fatalf("missing path %q, have %v", path, keysOf(paths))
	}
	return item
}

func keysOf(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestEntitySetPaths(t *testing.T) {
	paths := newTestPaths(t, libraryRaw("4.0"), Options{})

	set := pathItem(t, paths, "/Books")
	if set["get"] == nil || set["post"] == nil {
		t.Fatalf("expected get and post on /Books, got %v", keysOf(set))
	}

	// String keys are quoted in the parentheses style.
	byKey := pathItem(t, paths, "/Books('{ID}')")
	for _, method := range []string{"get", "patch", "delete"} {
		if byKey[method] == nil {
			t.Errorf("missing %s on by-key path", method)
		}
	}
	params, ok := byKey["parameters"].([]any)
	if !ok || len(params) != 1 {
		t.Fatalf("expected one key parameter, got %v", byKey["parameters"])
	}
	p := params[0].(map[string]any)
	if p["name"] != "ID" || p["in"] != "path" || p["required"] != true {
		t.Errorf("unexpected key parameter %v", p)
	}
}

func TestReadResponseETagHeader(t *testing.T) {
	raw := libraryRaw("4.0")
	books := raw["ns"].(map[string]any)["Books"].(map[string]any)
	books["@Org.OData.Core.V1.OptimisticConcurrency"] = []any{}
	paths := newTestPaths(t, raw, Options{})

	get := pathItem(t, paths, "/Books('{ID}')")["get"].(map[string]any)
	success := get["responses"].(map[string]any)["200"].(map[string]any)
	headers, ok := success["headers"].(map[string]any)
	if !ok {
		t.Fatal("expected headers on the read response")
	}
	etag, ok := headers["ETag"].(map[string]any)
	if !ok {
		t.Fatal("expected ETag header")
	}
	if etag["schema"].(map[string]any)["type"] != "string" {
		t.Errorf("unexpected ETag header schema %v", etag["schema"])
	}

	// Singleton reads of the same type carry the header as well.
	raw["ns"].(map[string]any)["Service"].(map[string]any)["Featured"] = map[string]any{
		"$Type": "ns.Books",
	}
	paths = newTestPaths(t, raw, Options{})
	get = pathItem(t, paths, "/Featured")["get"].(map[string]any)
	if _, ok := get["responses"].(map[string]any)["200"].(map[string]any)["headers"]; !ok {
		t.Error("expected ETag header on singleton read")
	}
}

func TestReadResponseWithoutConcurrencyHasNoHeaders(t *testing.T) {
	paths := newTestPaths(t, libraryRaw("4.0"), Options{})

	get := pathItem(t, paths, "/Books('{ID}')")["get"].(map[string]any)
	success := get["responses"].(map[string]any)["200"].(map[string]any)
	if _, ok := success["headers"]; ok {
		t.Error("read response must not carry headers without optimistic concurrency")
	}
}

func TestSingletonPaths(t *testing.T) {
	paths := newTestPaths(t, libraryRaw("4.0"), Options{})

	me := pathItem(t, paths, "/Me")
	if me["get"] == nil || me["patch"] == nil {
		t.Errorf("expected get and patch on singleton, got %v", keysOf(me))
	}
	if me["delete"] != nil {
		t.Error("singleton must not be deletable")
	}
}

func TestContainmentNavigationPaths(t *testing.T) {
	paths := newTestPaths(t, libraryRaw("4.0"), Options{})

	nested := pathItem(t, paths, "/Books('{ID}')/chapters")
	if nested["get"] == nil || nested["post"] == nil {
		t.Fatalf("expected list and create on contained collection, got %v", keysOf(nested))
	}
	// Inherited key parameter from the parent segment.
	params := nested["parameters"].([]any)
	if params[0].(map[string]any)["name"] != "ID" {
		t.Errorf("expected inherited ID parameter, got %v", params[0])
	}

	// Nested key parameters carry the navigation level.
	byKey := pathItem(t, paths, "/Books('{ID}')/chapters({number-1})")
	params = byKey["parameters"].([]any)
	if len(params) != 2 {
		t.Fatalf("expected two parameters, got %d", len(params))
	}
	if params[1].(map[string]any)["name"] != "number-1" {
		t.Errorf("expected level-suffixed name, got %v", params[1])
	}

	// Non-contained navigation gets no path.
	if _, ok := paths["/Books('{ID}')/author"]; ok {
		t.Error("non-contained navigation must not produce paths")
	}
}

func TestNavigationDepthBound(t *testing.T) {
	raw := map[string]any{
		"$Version":         "4.0",
		"$EntityContainer": "ns.Service",
		"ns": map[string]any{
			"Folders": map[string]any{
				"$Kind": "EntityType",
				"$Key":  []any{"ID"},
				"ID":    map[string]any{"$Type": "Edm.Int32"},
				"children": map[string]any{
					"$Kind":           "NavigationProperty",
					"$Type":           "ns.Folders",
					"$Collection":     true,
					"$ContainsTarget": true,
				},
			},
			"Service": map[string]any{
				"$Kind":   "EntityContainer",
				"Folders": map[string]any{"$Collection": true, "$Type": "ns.Folders"},
			},
		},
	}
	paths := newTestPaths(t, raw, Options{MaxLevels: 3})

	if _, ok := paths["/Folders({ID})/children"]; !ok {
		t.Error("expected first navigation level")
	}
	if _, ok := paths["/Folders({ID})/children({ID-1})/children"]; !ok {
		t.Error("expected second navigation level")
	}
	if _, ok := paths["/Folders({ID})/children({ID-1})/children({ID-2})/children"]; ok {
		t.Error("navigation must truncate at MaxLevels")
	}
}

func TestKeyAsSegment(t *testing.T) {
	paths := newTestPaths(t, libraryRaw("4.0"), Options{KeyAsSegment: true})

	if _, ok := paths["/Books/{ID}"]; !ok {
		t.Fatalf("expected key-as-segment path, have %v", keysOf(paths))
	}
	if _, ok := paths["/Books('{ID}')"]; ok {
		t.Error("parentheses path must not appear in key-as-segment mode")
	}
}

func TestCapabilityGating(t *testing.T) {
	raw := libraryRaw("4.0")
	container := raw["ns"].(map[string]any)["Service"].(map[string]any)
	container["Books"] = map[string]any{
		"$Collection": true,
		"$Type":       "ns.Books",
		"@Org.OData.Capabilities.V1.InsertRestrictions": map[string]any{"Insertable": false},
		"@Org.OData.Capabilities.V1.DeleteRestrictions": map[string]any{"Deletable": false},
		"@Org.OData.Capabilities.V1.TopSupported":       false,
		"@Org.OData.Capabilities.V1.FilterRestrictions": map[string]any{"Filterable": false},
	}
	paths := newTestPaths(t, raw, Options{})

	set := pathItem(t, paths, "/Books")
	if set["post"] != nil {
		t.Error("Insertable false must suppress POST")
	}
	byKey := pathItem(t, paths, "/Books('{ID}')")
	if byKey["delete"] != nil {
		t.Error("Deletable false must suppress DELETE")
	}

	params := set["get"].(map[string]any)["parameters"].([]any)
	for _, p := range params {
		pm := p.(map[string]any)
		if pm["$ref"] == "#/components/parameters/top" {
			t.Error("TopSupported false must suppress $top")
		}
		if pm["name"] == "$filter" {
			t.Error("Filterable false must suppress $filter")
		}
	}
}

func TestListQueryOptions(t *testing.T) {
	paths := newTestPaths(t, libraryRaw("4.0"), Options{})

	get := pathItem(t, paths, "/Books")["get"].(map[string]any)
	params := get["parameters"].([]any)

	var names []string
	for _, p := range params {
		pm := p.(map[string]any)
		if ref, ok := pm["$ref"].(string); ok {
			names = append(names, ref)
			continue
		}
		names = append(names, pm["name"].(string))
	}
	want := []string{
		"#/components/parameters/top",
		"#/components/parameters/skip",
		"#/components/parameters/search",
		"$filter",
		"#/components/parameters/count",
		"$orderby",
		"$select",
		"$expand",
	}
	if len(names) != len(want) {
		t.Fatalf("expected %d parameters, got %v", len(want), names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("parameter %d: expected %s, got %s", i, want[i], names[i])
		}
	}
}

func TestSelectPathsRecurseIntoComplexTypes(t *testing.T) {
	paths := newTestPaths(t, libraryRaw("4.0"), Options{})

	get := pathItem(t, paths, "/Books")["get"].(map[string]any)
	var selectParam map[string]any
	for _, p := range get["parameters"].([]any) {
		pm := p.(map[string]any)
		if pm["name"] == "$select" {
			selectParam = pm
		}
	}
	if selectParam == nil {
		t.Fatal("missing $select parameter")
	}
	enum := selectParam["schema"].(map[string]any)["items"].(map[string]any)["enum"].([]any)
	got := map[any]bool{}
	for _, v := range enum {
		got[v] = true
	}
	for _, want := range []string{"ID", "title", "dimensions/width", "dimensions/height"} {
		if !got[want] {
			t.Errorf("missing select path %q in %v", want, enum)
		}
	}
	if got["chapters"] || got["author"] {
		t.Error("navigation properties must not appear in $select")
	}
}

func TestSelectPathsCycleGuard(t *testing.T) {
	raw := map[string]any{
		"$Version":         "4.0",
		"$EntityContainer": "ns.Service",
		"ns": map[string]any{
			"Things": map[string]any{
				"$Kind": "EntityType",
				"$Key":  []any{"ID"},
				"ID":    map[string]any{"$Type": "Edm.Int32"},
				"a":     map[string]any{"$Type": "ns.A", "$Nullable": true},
			},
			"A": map[string]any{
				"$Kind": "ComplexType",
				"name":  map[string]any{"$Nullable": true},
				"b":     map[string]any{"$Type": "ns.B", "$Nullable": true},
			},
			"B": map[string]any{
				"$Kind": "ComplexType",
				"size":  map[string]any{"$Type": "Edm.Int32", "$Nullable": true},
				"a":     map[string]any{"$Type": "ns.A", "$Nullable": true},
			},
			"Service": map[string]any{
				"$Kind":  "EntityContainer",
				"Things": map[string]any{"$Collection": true, "$Type": "ns.Things"},
			},
		},
	}
	doc := csdl.NewDocument(raw)
	schemas := schema.NewBuilder(doc, schema.NewTracker(), nil)
	b := NewBuilder(schemas, Options{})

	got := b.primitivePaths("ns.Things")
	want := map[string]bool{
		"ID":         true,
		"a/name":     true,
		"a/b/size":   true,
		"a/b/a/name": false, // cycle is cut, not repeated
	}
	seen := map[string]bool{}
	for _, p := range got {
		seen[p] = true
	}
	for path, expected := range want {
		if seen[path] != expected {
			t.Errorf("path %q: expected present=%v in %v", path, expected, got)
		}
	}
}

func TestOrderbyAscendingAndDescending(t *testing.T) {
	paths := newTestPaths(t, libraryRaw("4.0"), Options{})

	get := pathItem(t, paths, "/Books")["get"].(map[string]any)
	var orderby map[string]any
	for _, p := range get["parameters"].([]any) {
		pm := p.(map[string]any)
		if pm["name"] == "$orderby" {
			orderby = pm
		}
	}
	if orderby == nil {
		t.Fatal("missing $orderby parameter")
	}
	enum := orderby["schema"].(map[string]any)["items"].(map[string]any)["enum"].([]any)
	seen := map[any]bool{}
	for _, v := range enum {
		seen[v] = true
	}
	if !seen["title"] || !seen["title desc"] {
		t.Errorf("expected both sort directions, got %v", enum)
	}
}

func TestQueryOptionPrefix(t *testing.T) {
	paths := newTestPaths(t, libraryRaw("4.0"), Options{QueryOptionPrefix: ""})

	get := pathItem(t, paths, "/Books")["get"].(map[string]any)
	for _, p := range get["parameters"].([]any) {
		pm := p.(map[string]any)
		if pm["name"] == "filter" {
			return
		}
	}
	t.Error("expected unprefixed filter parameter")
}

func TestCollectionEnvelopeCountName(t *testing.T) {
	for version, want := range map[string]string{"4.0": "@odata.count", "4.01": "@count"} {
		paths := newTestPaths(t, libraryRaw(version), Options{})
		get := pathItem(t, paths, "/Books")["get"].(map[string]any)
		body := get["responses"].(map[string]any)["200"].(map[string]any)
		envelope := body["content"].(map[string]any)["application/json"].(map[string]any)["schema"].(map[string]any)
		props := envelope["properties"].(map[string]any)
		if props[want] == nil {
			t.Errorf("version %s: expected count property %q, got %v", version, want, keysOf(props))
		}
	}
}

func TestBoundOperationPaths(t *testing.T) {
	paths := newTestPaths(t, libraryRaw("4.0"), Options{})

	// Collection-bound action on the set path.
	discount := pathItem(t, paths, "/Books/ns.discount")
	post, ok := discount["post"].(map[string]any)
	if !ok {
		t.Fatal("expected POST for bound action")
	}
	body := post["requestBody"].(map[string]any)
	bodySchema := body["content"].(map[string]any)["application/json"].(map[string]any)["schema"].(map[string]any)
	props := bodySchema["properties"].(map[string]any)
	if props["percent"] == nil {
		t.Errorf("expected percent parameter in body, got %v", keysOf(props))
	}
	if props["in"] != nil {
		t.Error("binding parameter must not appear in body")
	}
	responses := post["responses"].(map[string]any)
	if responses["204"] == nil {
		t.Error("void action must respond 204")
	}
	errRef, ok := responses["4XX"].(map[string]any)
	if !ok || errRef["$ref"] != "#/components/responses/error" {
		t.Errorf("void action must carry the default error response, got %v", responses["4XX"])
	}

	// Single-bound function in legacy parameter style.
	preview := pathItem(t, paths, "/Books('{ID}')/ns.preview(length={length})")
	get := preview["get"].(map[string]any)
	params := get["parameters"].([]any)
	if len(params) != 1 {
		t.Fatalf("expected one function parameter, got %v", params)
	}
	p := params[0].(map[string]any)
	if p["name"] != "length" || p["in"] != "path" {
		t.Errorf("unexpected function parameter %v", p)
	}
	// Parent key parameters come from the path item.
	itemParams := preview["parameters"].([]any)
	if itemParams[0].(map[string]any)["name"] != "ID" {
		t.Errorf("expected inherited key parameter, got %v", itemParams[0])
	}
}

func TestUnboundImports(t *testing.T) {
	paths := newTestPaths(t, libraryRaw("4.0"), Options{})

	restock := pathItem(t, paths, "/Restock")
	if restock["post"] == nil {
		t.Error("expected POST for action import")
	}

	top := pathItem(t, paths, "/TopBooks(count={count})")
	get := top["get"].(map[string]any)
	resp := get["responses"].(map[string]any)["200"].(map[string]any)
	envelope := resp["content"].(map[string]any)["application/json"].(map[string]any)["schema"].(map[string]any)
	if envelope["properties"].(map[string]any)["value"] == nil {
		t.Error("collection-valued function must return the envelope")
	}
}

func TestImplicitAliasFunctionParameters(t *testing.T) {
	paths := newTestPaths(t, libraryRaw("4.01"), Options{})

	// Past 4.0 function parameters move into the query, and the reserved
	// name "count" gets an @-alias.
	top := pathItem(t, paths, "/TopBooks")
	get := top["get"].(map[string]any)
	params := get["parameters"].([]any)
	if len(params) != 1 {
		t.Fatalf("expected one query parameter, got %v", params)
	}
	p := params[0].(map[string]any)
	if p["name"] != "@count" || p["in"] != "query" || p["required"] != true {
		t.Errorf("unexpected parameter %v", p)
	}
}

func TestOptionalParameterForcesAliases(t *testing.T) {
	raw := libraryRaw("4.0")
	overload := raw["ns"].(map[string]any)["topBooks"].([]any)[0].(map[string]any)
	overload["$Parameter"] = []any{
		map[string]any{
			"$Name":                                "count",
			"$Type":                                "Edm.Int32",
			"@Org.OData.Core.V1.OptionalParameter": map[string]any{},
		},
	}
	paths := newTestPaths(t, raw, Options{})

	top := pathItem(t, paths, "/TopBooks")
	p := top["get"].(map[string]any)["parameters"].([]any)[0].(map[string]any)
	if p["in"] != "query" || p["required"] != false {
		t.Errorf("optional parameter must be a non-required query parameter, got %v", p)
	}
}

func TestStructuredFunctionParameter(t *testing.T) {
	raw := libraryRaw("4.0")
	raw["ns"].(map[string]any)["byDimensions"] = []any{
		map[string]any{
			"$Kind": "Function",
			"$Parameter": []any{
				map[string]any{"$Name": "dims", "$Type": "ns.Dimensions"},
			},
			"$ReturnType": map[string]any{"$Type": "ns.Books", "$Collection": true},
		},
	}
	raw["ns"].(map[string]any)["Service"].(map[string]any)["ByDimensions"] = map[string]any{
		"$Function": "ns.byDimensions",
	}
	paths := newTestPaths(t, raw, Options{})

	item := pathItem(t, paths, "/ByDimensions")
	p := item["get"].(map[string]any)["parameters"].([]any)[0].(map[string]any)
	if p["name"] != "@dims" || p["in"] != "query" {
		t.Errorf("structured parameter must be an @-aliased query parameter, got %v", p)
	}
}
