package render

// RenderOptions describe per-request data that renderers can use to customise
// their output without mutating the derived tree.
type RenderOptions struct {
	// Values holds the current configuration. Renderers may show them next to
	// the fields they belong to.
	Values map[string]any
	// Errors surfaces validation feedback keyed by tree path, as produced by
	// MapErrorPayload or MapIssues.
	Errors map[string][]string
	// Indent controls pretty printing for structured renderers.
	Indent string
}
