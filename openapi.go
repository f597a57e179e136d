// Package openapi converts OData CSDL JSON documents into OpenAPI 3.0.2
// documents.
//
// The conversion is a pure, single-pass computation: one CSDL document in,
// one OpenAPI document out. Schemas, paths and components are built as
// plain map[string]any trees; encoding/json's sorted map-key serialization
// makes the JSON output deterministic, so converting the same document with
// the same options twice yields identical bytes.
//
// # Example
//
//	var csdl map[string]any
//	if err := json.Unmarshal(metadata, &csdl); err != nil {
//	    log.Fatal(err)
//	}
//	doc, err := openapi.Convert(context.Background(), csdl, openapi.Options{
//	    URL: "https://example.org/service",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out, _ := json.MarshalIndent(doc, "", "  ")
package openapi

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nlstn/odata-openapi/internal/observability"
)

// ErrUnsupportedProtocol is returned when the service declares a protocol
// outside the recognized set (odata, odata-v4, rest, none).
var ErrUnsupportedProtocol = errors.New("unsupported protocol")

// Options configure one conversion.
type Options struct {
	// URL is the service root used for the servers array and the info
	// description. Ignored when Servers is set.
	URL string

	// Servers lists explicit server URLs for the servers array.
	Servers []string

	// ODataVersion overrides the document's $Version. It selects the error
	// response shape and the inline-count property name.
	ODataVersion string

	// Scheme, Host and BasePath assemble a server URL when neither URL nor
	// Servers is given. Scheme defaults to "https".
	Scheme   string
	Host     string
	BasePath string

	// Diagram appends a yUML entity diagram link to the info description.
	Diagram bool

	// MaxLevels bounds containment navigation and $expand recursion depth.
	// Defaults to 5.
	MaxLevels int

	// KeyAsSegment selects /EntitySet/{key} addressing. Also enabled by the
	// KeyAsSegmentSupported capability on the entity container.
	KeyAsSegment bool

	// QueryOptionPrefix is prepended to system query option names, "$" by
	// default.
	QueryOptionPrefix string

	// Logger receives non-fatal diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// Observability instruments conversions with traces and metrics when
	// initialized. Nil disables instrumentation.
	Observability *observability.Config
}

// Convert transforms a decoded CSDL JSON document into an OpenAPI 3.0.2
// document. Diagnostics (unknown types, unrecognized authorization schemes)
// are logged and never abort the conversion; only an unsupported protocol
// declaration returns an error.
func Convert(ctx context.Context, raw map[string]any, opts Options) (map[string]any, error) {
	return newConverter(raw, opts).convert(ctx)
}
