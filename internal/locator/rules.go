package locator

import (
	"strings"

	"github.com/findmyspot/findmyspot/internal/model"
)

// RenderRule turns a sign plate rule into a display sentence. The time window
// is included only when both ends are set; a permit of "none" is omitted.
func RenderRule(r model.SignPlateRule) string {
	var b strings.Builder
	b.WriteString("You can park here on ")
	b.WriteString(r.Days)

	if r.StartTime != "" && r.EndTime != "" {
		b.WriteString(" from ")
		b.WriteString(r.StartTime)
		b.WriteString(" to ")
		b.WriteString(r.EndTime)
	}
	if r.Duration != "" {
		b.WriteString(" for ")
		b.WriteString(strings.ToLower(r.Duration))
	}
	if permit := strings.TrimSpace(r.Permit); permit != "" && !strings.EqualFold(permit, "none") {
		b.WriteString(" with permit ")
		b.WriteString(r.Permit)
	}
	return b.String()
}

// RenderRules renders rules in order.
func RenderRules(rules []model.SignPlateRule) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = RenderRule(r)
	}
	return out
}
