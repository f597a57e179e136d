package csdl

import "strings"

// Vocabulary term names used by the converter. The set is closed: anything
// not listed here is ignored rather than interpreted generically.
const (
	CoreComputed              = "Org.OData.Core.V1.Computed"
	CoreComputedDefaultValue  = "Org.OData.Core.V1.ComputedDefaultValue"
	CoreImmutable             = "Org.OData.Core.V1.Immutable"
	CorePermissions           = "Org.OData.Core.V1.Permissions"
	CoreDescription           = "Org.OData.Core.V1.Description"
	CoreLongDescription       = "Org.OData.Core.V1.LongDescription"
	CoreExample               = "Org.OData.Core.V1.Example"
	CoreSchemaVersion         = "Org.OData.Core.V1.SchemaVersion"
	CoreOptionalParameter     = "Org.OData.Core.V1.OptionalParameter"
	CoreOptimisticConcurrency = "Org.OData.Core.V1.OptimisticConcurrency"

	ValidationAllowedValues = "Org.OData.Validation.V1.AllowedValues"
	ValidationMinimum       = "Org.OData.Validation.V1.Minimum"
	ValidationMaximum       = "Org.OData.Validation.V1.Maximum"
	ValidationPattern       = "Org.OData.Validation.V1.Pattern"

	JSONSchema = "Org.OData.JSON.V1.Schema"

	CapabilitiesCountRestrictions      = "Org.OData.Capabilities.V1.CountRestrictions"
	CapabilitiesFilterRestrictions     = "Org.OData.Capabilities.V1.FilterRestrictions"
	CapabilitiesSortRestrictions       = "Org.OData.Capabilities.V1.SortRestrictions"
	CapabilitiesExpandRestrictions     = "Org.OData.Capabilities.V1.ExpandRestrictions"
	CapabilitiesSearchRestrictions     = "Org.OData.Capabilities.V1.SearchRestrictions"
	CapabilitiesSelectSupport          = "Org.OData.Capabilities.V1.SelectSupport"
	CapabilitiesTopSupported           = "Org.OData.Capabilities.V1.TopSupported"
	CapabilitiesSkipSupported          = "Org.OData.Capabilities.V1.SkipSupported"
	CapabilitiesInsertRestrictions     = "Org.OData.Capabilities.V1.InsertRestrictions"
	CapabilitiesUpdateRestrictions     = "Org.OData.Capabilities.V1.UpdateRestrictions"
	CapabilitiesDeleteRestrictions     = "Org.OData.Capabilities.V1.DeleteRestrictions"
	CapabilitiesReadRestrictions       = "Org.OData.Capabilities.V1.ReadRestrictions"
	CapabilitiesIndexableByKey         = "Org.OData.Capabilities.V1.IndexableByKey"
	CapabilitiesKeyAsSegmentSupported  = "Org.OData.Capabilities.V1.KeyAsSegmentSupported"
	CapabilitiesBatchSupported         = "Org.OData.Capabilities.V1.BatchSupported"
	CapabilitiesNavigationRestrictions = "Org.OData.Capabilities.V1.NavigationRestrictions"

	AuthorizationAuthorizations  = "Org.OData.Authorization.V1.Authorizations"
	AuthorizationSecuritySchemes = "Org.OData.Authorization.V1.SecuritySchemes"

	CommonFieldControl = "com.sap.vocabularies.Common.v1.FieldControl"
	CommonLabel        = "com.sap.vocabularies.Common.v1.Label"
)

// conventionalAliases are the published aliases of the vocabularies above.
// Documents usually reference terms through these aliases; Term accepts
// both forms plus any alias the document itself declares.
var conventionalAliases = map[string]string{
	"Org.OData.Core.V1":                          "Core",
	"Org.OData.Capabilities.V1":                  "Capabilities",
	"Org.OData.Validation.V1":                    "Validation",
	"Org.OData.Authorization.V1":                 "Authorization",
	"Org.OData.JSON.V1":                          "JSON",
	"Org.OData.Aggregation.V1":                   "Aggregation",
	"com.sap.vocabularies.Common.v1":             "Common",
	"com.sap.vocabularies.ODM.v1":                "ODM",
	"com.sap.vocabularies.EntityRelationship.v1": "EntityRelationship",
}

// Term looks up an annotation by its full term name, trying the document's
// declared alias form and the vocabulary's conventional alias form as well.
// An optional path suffix ("term/Member") addresses a record member.
func (d *Document) Term(e Element, term string) (any, bool) {
	term, path, _ := strings.Cut(term, "/")
	for _, key := range d.termKeys(term) {
		if v, ok := e.Annotation(key); ok {
			return recordPath(v, path)
		}
	}
	return nil, false
}

// BoolTerm reads a boolean annotation through Term, treating null as true.
func (d *Document) BoolTerm(e Element, term string) (value, present bool) {
	v, ok := d.Term(e, term)
	if !ok {
		return false, false
	}
	if v == nil {
		return true, true
	}
	b, isBool := v.(bool)
	return b && isBool, true
}

// StringTerm reads a string annotation through Term.
func (d *Document) StringTerm(e Element, term string) string {
	v, _ := d.Term(e, term)
	s, _ := v.(string)
	return s
}

// SupportedTerm implements the capability-gating default: a restriction flag
// defaults to supported when absent and is suppressed only by an explicit
// false.
func (d *Document) SupportedTerm(e Element, term string) bool {
	v, ok := d.Term(e, term)
	if !ok {
		return true
	}
	if b, isBool := v.(bool); isBool {
		return b
	}
	return true
}

func (d *Document) termKeys(term string) []string {
	keys := []string{term}
	qn, err := ParseQualifiedName(term)
	if err != nil {
		return keys
	}
	if alias, ok := conventionalAliases[qn.Namespace]; ok {
		keys = append(keys, alias+"."+qn.Name)
	}
	for alias, ns := range d.aliases {
		if ns == qn.Namespace {
			keys = append(keys, alias+"."+qn.Name)
		}
	}
	return keys
}

func recordPath(v any, path string) (any, bool) {
	if path == "" {
		return v, true
	}
	record, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	head, rest, _ := strings.Cut(path, "/")
	member, ok := record[head]
	if !ok {
		return nil, false
	}
	return recordPath(member, rest)
}
