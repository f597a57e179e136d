package schema

import (
	"testing"
)

func bookshopRaw() map[string]any {
	return map[string]any{
		"$Version": "4.0",
		"ns": map[string]any{
			"Books": map[string]any{
				"$Kind": "EntityType",
				"$Key":  []any{"ID"},
				"ID":    map[string]any{"$Type": "Edm.Int32"},
				"title": map[string]any{},
				"stock": map[string]any{
					"$Type":          "Edm.Int32",
					"@Core.Computed": true,
				},
				"createdAt": map[string]any{
					"$Type":             "Edm.DateTimeOffset",
					"@Core.Permissions": "Read",
				},
				"isbn": map[string]any{
					"@Core.Immutable": true,
				},
				"chapters": map[string]any{
					"$Kind":           "NavigationProperty",
					"$Type":           "ns.Chapters",
					"$Collection":     true,
					"$ContainsTarget": true,
				},
				"author": map[string]any{
					"$Kind": "NavigationProperty",
					"$Type": "ns.Authors",
				},
			},
			"Chapters": map[string]any{
				"$Kind": "EntityType",
				"$Key":  []any{"number"},
				"number": map[string]any{
					"$Type": "Edm.Int32",
				},
			},
			"Authors": map[string]any{
				"$Kind": "EntityType",
				"$Key":  []any{"ID"},
				"ID":    map[string]any{"$Type": "Edm.Int32"},
			},
		},
	}
}

func propertyNames(s map[string]any) map[string]bool {
	names := map[string]bool{}
	props, _ := s["properties"].(map[string]any)
	for name := range props {
		names[name] = true
	}
	return names
}

func TestStructuredReadVariant(t *testing.T) {
	b := newTestBuilder(bookshopRaw())

	s := b.StructuredSchema("ns", "Books", SuffixRead)
	if _, ok := s["required"]; ok {
		t.Error("Expected no required list on the read variant")
	}

	names := propertyNames(s)
	for _, expected := range []string{"ID", "title", "stock", "createdAt", "isbn", "chapters", "author"} {
		if !names[expected] {
			t.Errorf("Expected read variant to include %q", expected)
		}
	}
	if !names["chapters@odata.count"] {
		t.Error("Expected count sibling for contained collection navigation")
	}
	if names["author@odata.count"] {
		t.Error("Expected no count sibling for non-contained navigation")
	}
}

func TestCountSiblingSetLevelRestriction(t *testing.T) {
	raw := bookshopRaw()
	raw["$EntityContainer"] = "ns.Service"
	raw["ns"].(map[string]any)["Service"] = map[string]any{
		"$Kind": "EntityContainer",
		"Books": map[string]any{
			"$Collection": true,
			"$Type":       "ns.Books",
			"@Org.OData.Capabilities.V1.CountRestrictions": map[string]any{"Countable": false},
		},
	}
	b := newTestBuilder(raw)

	s := b.StructuredSchema("ns", "Books", SuffixRead)
	properties := s["properties"].(map[string]any)
	if _, ok := properties["chapters@odata.count"]; ok {
		t.Error("set-level Countable false must suppress the count sibling")
	}
	if _, ok := properties["chapters"]; !ok {
		t.Error("the navigation property itself must stay")
	}
}

func TestCountSiblingPropertyLevelRestriction(t *testing.T) {
	raw := bookshopRaw()
	books := raw["ns"].(map[string]any)["Books"].(map[string]any)
	chapters := books["chapters"].(map[string]any)
	chapters["@Org.OData.Capabilities.V1.CountRestrictions"] = map[string]any{"Countable": false}
	b := newTestBuilder(raw)

	s := b.StructuredSchema("ns", "Books", SuffixRead)
	properties := s["properties"].(map[string]any)
	if _, ok := properties["chapters@odata.count"]; ok {
		t.Error("property-level Countable false must suppress the count sibling")
	}
}

func TestStructuredCreateVariant(t *testing.T) {
	b := newTestBuilder(bookshopRaw())

	s := b.StructuredSchema("ns", "Books", SuffixCreate)
	names := propertyNames(s)

	if names["stock"] || names["createdAt"] {
		t.Error("Expected computed and read-only properties excluded from create")
	}
	if !names["ID"] || !names["title"] || !names["isbn"] {
		t.Errorf("Expected writable properties in create variant, got %v", names)
	}
	if !names["chapters"] {
		t.Error("Expected contained navigation in create variant")
	}
	if names["author"] {
		t.Error("Expected non-contained navigation excluded from create")
	}

	required, ok := s["required"].([]any)
	if !ok || len(required) != 1 || required[0] != "ID" {
		t.Errorf("Expected required [ID], got %v", s["required"])
	}

	chapters := s["properties"].(map[string]any)["chapters"].(map[string]any)
	items := chapters["items"].(map[string]any)
	if items["$ref"] != "#/components/schemas/ns.Chapters-create" {
		t.Errorf("Expected create-shaped nested schema, got %v", items)
	}
}

func TestStructuredUpdateVariant(t *testing.T) {
	b := newTestBuilder(bookshopRaw())

	s := b.StructuredSchema("ns", "Books", SuffixUpdate)
	names := propertyNames(s)

	if names["ID"] {
		t.Error("Expected key property excluded from update")
	}
	if names["isbn"] {
		t.Error("Expected immutable property excluded from update")
	}
	if names["stock"] || names["createdAt"] {
		t.Error("Expected computed and read-only properties excluded from update")
	}
	if !names["title"] {
		t.Error("Expected writable property in update variant")
	}
	if _, ok := s["required"]; ok {
		t.Error("Expected no required list on the update variant")
	}

	// Containment updates are full create-shaped payloads.
	chapters := s["properties"].(map[string]any)["chapters"].(map[string]any)
	items := chapters["items"].(map[string]any)
	if items["$ref"] != "#/components/schemas/ns.Chapters-create" {
		t.Errorf("Expected create-shaped nested schema, got %v", items)
	}
}

func TestVariantPartition(t *testing.T) {
	b := newTestBuilder(bookshopRaw())

	read := propertyNames(b.StructuredSchema("ns", "Books", SuffixRead))
	create := propertyNames(b.StructuredSchema("ns", "Books", SuffixCreate))
	update := propertyNames(b.StructuredSchema("ns", "Books", SuffixUpdate))

	for name := range create {
		if !read[name] {
			t.Errorf("Create property %q not part of the read view", name)
		}
	}
	for name := range update {
		if !read[name] {
			t.Errorf("Update property %q not part of the read view", name)
		}
		if name == "ID" {
			t.Error("Key property leaked into the update view")
		}
	}
}

func TestStructuredInheritanceComposition(t *testing.T) {
	raw := map[string]any{
		"$Version": "4.0",
		"ns": map[string]any{
			"Named": map[string]any{
				"$Kind":     "EntityType",
				"$Abstract": true,
				"$Key":      []any{"ID"},
				"ID":        map[string]any{"$Type": "Edm.Int32"},
				"name":      map[string]any{},
			},
			"Books": map[string]any{
				"$Kind":     "EntityType",
				"$BaseType": "ns.Named",
				"title":     map[string]any{},
			},
		},
	}
	b := newTestBuilder(raw)

	s := b.StructuredSchema("ns", "Books", SuffixRead)
	allOf, ok := s["allOf"].([]any)
	if !ok || len(allOf) != 2 {
		t.Fatalf("Expected allOf composition with base, got %v", s)
	}
	base := allOf[0].(map[string]any)
	if base["$ref"] != "#/components/schemas/ns.Named-base" {
		t.Errorf("Expected base-variant reference, got %v", base)
	}
	own := allOf[1].(map[string]any)
	if _, ok := own["properties"].(map[string]any)["title"]; !ok {
		t.Errorf("Expected own properties in second allOf member, got %v", own)
	}
}

func TestStructuredDerivedTypePolymorphism(t *testing.T) {
	raw := map[string]any{
		"$Version": "4.0",
		"ns": map[string]any{
			"Named": map[string]any{
				"$Kind": "EntityType",
				"$Key":  []any{"ID"},
				"ID":    map[string]any{"$Type": "Edm.Int32"},
			},
			"Books": map[string]any{
				"$Kind":     "EntityType",
				"$BaseType": "ns.Named",
			},
			"Magazines": map[string]any{
				"$Kind":     "EntityType",
				"$BaseType": "ns.Named",
			},
		},
	}
	b := newTestBuilder(raw)

	s := b.StructuredSchema("ns", "Named", SuffixRead)
	anyOf, ok := s["anyOf"].([]any)
	if !ok || len(anyOf) != 3 {
		t.Fatalf("Expected two derived alternatives plus the empty schema, got %v", s["anyOf"])
	}
	last := anyOf[2].(map[string]any)
	if len(last) != 0 {
		t.Errorf("Expected empty-schema alternative for non-abstract type, got %v", last)
	}

	// The -base schema is the composition target and must not recurse into
	// the derived alternatives.
	s = b.StructuredSchema("ns", "Named", "-base")
	if _, ok := s["anyOf"]; ok {
		t.Error("Expected no anyOf on the -base schema")
	}
}

func TestEnumSchema(t *testing.T) {
	raw := map[string]any{
		"$Version": "4.0",
		"ns": map[string]any{
			"Color": map[string]any{
				"$Kind": "EnumType",
				"blue":  float64(2),
				"green": float64(1),
				"red":   float64(0),
			},
		},
	}
	b := newTestBuilder(raw)

	s, ok := b.SchemaFor(Entry{Namespace: "ns", Name: "Color"})
	if !ok {
		t.Fatal("Expected enum schema")
	}
	if s["type"] != "string" {
		t.Errorf("Expected string enum schema, got %v", s["type"])
	}
	values, _ := s["enum"].([]any)
	if len(values) != 3 {
		t.Fatalf("Expected 3 members, got %v", values)
	}
}

func TestTypeDefinitionSchema(t *testing.T) {
	raw := map[string]any{
		"$Version": "4.0",
		"ns": map[string]any{
			"Percentage": map[string]any{
				"$Kind":             "TypeDefinition",
				"$UnderlyingType":   "Edm.Decimal",
				"$Precision":        float64(5),
				"$Scale":            float64(2),
				"@Core.Description": "A ratio in percent",
			},
		},
	}
	b := newTestBuilder(raw)

	s, ok := b.SchemaFor(Entry{Namespace: "ns", Name: "Percentage"})
	if !ok {
		t.Fatal("Expected type definition schema")
	}
	if s["title"] != "Percentage" {
		t.Errorf("Expected title Percentage, got %v", s["title"])
	}
	if s["multipleOf"] != 0.01 {
		t.Errorf("Expected facets applied to underlying type, got %v", s)
	}
	if s["description"] != "A ratio in percent" {
		t.Errorf("Expected description overlay, got %v", s["description"])
	}
}

func TestErrorSchemaVersionShapes(t *testing.T) {
	v4 := newTestBuilder(map[string]any{"$Version": "4.0"})
	s, _ := v4.SchemaFor(Entry{Name: "error"})
	errObj := s["properties"].(map[string]any)["error"].(map[string]any)
	message := errObj["properties"].(map[string]any)["message"].(map[string]any)
	if message["type"] != "string" {
		t.Errorf("Expected flat message string for 4.0, got %v", message)
	}

	v2 := newTestBuilder(map[string]any{"$Version": "2.0"})
	s, _ = v2.SchemaFor(Entry{Name: "error"})
	errObj = s["properties"].(map[string]any)["error"].(map[string]any)
	message = errObj["properties"].(map[string]any)["message"].(map[string]any)
	if message["type"] != "object" {
		t.Errorf("Expected language-tagged message object for 2.0, got %v", message)
	}
}
