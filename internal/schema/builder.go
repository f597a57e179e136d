package schema

import (
	"log/slog"

	"github.com/nlstn/odata-openapi/internal/csdl"
)

// Builder synthesizes OpenAPI schemas for one CSDL document. It owns no
// state beyond the document, the reference tracker and a logger for
// non-fatal diagnostics.
type Builder struct {
	doc     *csdl.Document
	tracker *Tracker
	logger  *slog.Logger
}

// NewBuilder creates a schema builder for the given document and tracker.
// A nil logger falls back to slog.Default().
func NewBuilder(doc *csdl.Document, tracker *Tracker, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{doc: doc, tracker: tracker, logger: logger}
}

// Document returns the CSDL document the builder reads from.
func (b *Builder) Document() *csdl.Document {
	return b.doc
}

// Tracker returns the builder's reference tracker.
func (b *Builder) Tracker() *Tracker {
	return b.tracker
}

// description joins the Core.Description and Core.LongDescription
// annotations of an element into one text, "" when neither is present.
func (b *Builder) description(e csdl.Element) string {
	short := b.doc.StringTerm(e, csdl.CoreDescription)
	long := b.doc.StringTerm(e, csdl.CoreLongDescription)
	switch {
	case short != "" && long != "":
		return short + "  \n" + long
	case long != "":
		return long
	default:
		return short
	}
}
