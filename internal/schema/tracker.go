// Package schema synthesizes OpenAPI Schema Objects from CSDL model
// elements. Schemas are plain map[string]any trees so that the converter
// can compose, wrap and extend them freely before serialization;
// encoding/json's sorted map-key output keeps serialization deterministic.
package schema

import "fmt"

// Entry identifies one component schema to be emitted: a qualified type
// name plus a variant suffix ("", "-create", "-update", and their "-base"
// forms). Entries with an empty namespace are well-known shared schemas
// (count, error, geoPoint, geoPosition).
type Entry struct {
	Namespace string
	Name      string
	Suffix    string
}

// Key returns the components.schemas key for the entry.
func (e Entry) Key() string {
	if e.Namespace == "" {
		return e.Name + e.Suffix
	}
	return e.Namespace + "." + e.Name + e.Suffix
}

// Tracker is the work-list of referenced-but-not-yet-emitted schemas.
// Every $ref handed out by Reference records its target here exactly once;
// the document assembler drains the list to a fixpoint, so each emitted
// schema may in turn discover further references.
type Tracker struct {
	seen  map[string]bool
	queue []Entry
}

// NewTracker returns an empty tracker. Each conversion pass must use its
// own instance; nothing here is safe for concurrent use.
func NewTracker() *Tracker {
	return &Tracker{seen: map[string]bool{}}
}

// Reference returns a $ref object pointing at the component schema for the
// given type and suffix, recording the target for emission if it has not
// been seen before.
func (t *Tracker) Reference(namespace, name, suffix string) map[string]any {
	entry := Entry{Namespace: namespace, Name: name, Suffix: suffix}
	key := entry.Key()
	if !t.seen[key] {
		t.seen[key] = true
		t.queue = append(t.queue, entry)
	}
	return map[string]any{"$ref": fmt.Sprintf("#/components/schemas/%s", key)}
}

// Next pops the next pending entry in discovery order.
func (t *Tracker) Next() (Entry, bool) {
	if len(t.queue) == 0 {
		return Entry{}, false
	}
	entry := t.queue[0]
	t.queue = t.queue[1:]
	return entry, true
}
