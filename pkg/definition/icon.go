package definition

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	iconPolicyOnce sync.Once
	iconPolicy     *bluemonday.Policy
)

// SanitizeIcon strips everything but drawing elements from inline SVG icon
// markup. Icon references (paths or URLs) are returned trimmed.
func SanitizeIcon(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "<") {
		return trimmed
	}
	return strings.TrimSpace(iconSanitizer().Sanitize(trimmed))
}

func sanitizeIcons(defs []Definition) []Definition {
	for idx := range defs {
		defs[idx].Icon = SanitizeIcon(defs[idx].Icon)
	}
	return defs
}

func iconSanitizer() *bluemonday.Policy {
	iconPolicyOnce.Do(func() {
		policy := bluemonday.StrictPolicy()
		policy.AllowElements(
			"svg", "g", "path", "circle", "rect", "line", "polyline", "polygon",
			"ellipse", "title", "desc", "defs", "clipPath",
		)

		policy.AllowAttrs(
			"xmlns", "viewBox", "width", "height", "fill", "stroke",
			"stroke-width", "aria-hidden", "role", "focusable",
		).OnElements("svg")

		for _, el := range []string{"path", "circle", "rect", "line", "polyline", "polygon", "ellipse"} {
			policy.AllowAttrs(
				"d", "cx", "cy", "r", "x", "y", "x1", "y1", "x2", "y2",
				"points", "rx", "ry", "fill", "stroke", "stroke-width",
				"fill-rule", "clip-rule",
			).OnElements(el)
		}

		policy.AllowAttrs("id").OnElements("clipPath", "defs", "g")
		policy.AllowAttrs("clip-path", "fill").OnElements("g")

		iconPolicy = policy
	})
	return iconPolicy
}
