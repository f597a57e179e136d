// Package csdl provides read views over OData CSDL JSON documents.
// A document is the decoded JSON tree as produced by encoding/json
// (map[string]any, []any, string, float64, bool); this package never
// copies or mutates it, it only interprets the structural $-keys and
// annotation keys defined by OASIS OData CSDL JSON.
package csdl

import (
	"fmt"
	"strings"
)

// ErrInvalidQualifiedName is returned when a name that must be namespace
// qualified carries no namespace separator. Well-formed CSDL never produces
// such names, so callers treat this as a hard failure.
var ErrInvalidQualifiedName = fmt.Errorf("qualified name has no namespace separator")

// QualifiedName is a namespace-qualified identifier split into its parts.
type QualifiedName struct {
	Namespace string
	Name      string
}

// String reassembles the qualified form.
func (q QualifiedName) String() string {
	return q.Namespace + "." + q.Name
}

// ParseQualifiedName splits a qualified name on its last dot, so that
// "org.example.Thing" yields namespace "org.example" and name "Thing".
func ParseQualifiedName(s string) (QualifiedName, error) {
	idx := strings.LastIndex(s, ".")
	if idx < 1 {
		return QualifiedName{}, fmt.Errorf("%w: %q", ErrInvalidQualifiedName, s)
	}
	return QualifiedName{Namespace: s[:idx], Name: s[idx+1:]}, nil
}

// IsIdentifierKey reports whether a JSON object key names a model element.
// Keys starting with "$" are structural, keys containing "@" are annotations;
// everything else is an identifier.
func IsIdentifierKey(key string) bool {
	return !strings.HasPrefix(key, "$") && !strings.Contains(key, "@")
}

// ResolveAlias substitutes a namespace alias with its target namespace.
// Unmapped values pass through unchanged.
func ResolveAlias(alias string, aliases map[string]string) string {
	if ns, ok := aliases[alias]; ok {
		return ns
	}
	return alias
}
