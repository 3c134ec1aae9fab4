package notifications

import "strings"

// RenderTemplate substitutes {{name}} placeholders with values from vars.
// Placeholders without a matching key are left intact so a missing variable
// is visible in the delivered message instead of silently vanishing.
func RenderTemplate(tmpl string, vars map[string]string) string {
	out := tmpl
	for key, value := range vars {
		out = strings.ReplaceAll(out, "{{"+key+"}}", value)
	}
	return out
}
