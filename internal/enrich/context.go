package enrich

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/crm-enrich/internal/model"
)

// Request carries everything one enrichment pass needs: the CRM field map
// plus whatever side-texts the coordinator managed to gather. Empty side
// texts are simply omitted from the prompt.
type Request struct {
	Kind   model.RecordKind
	ID     string
	Fields map[string]any

	DocumentText string
	WebsiteText  string
	LinkedInText string
	MeetingText  string
}

// CompanyName returns the best display name in the field map, used to label
// default output when generation fails.
func (r *Request) CompanyName() string {
	rec := model.Record{Kind: r.Kind, Fields: r.Fields}
	return rec.CompanyName()
}

// Field rendering order. Known fields come first so the most useful signal
// lands at the top of the prompt; everything else follows in map order.
var leadPriorityFields = []string{
	"First_Name", "Last_Name", "Email", "Phone", "Mobile",
	"Company", "Title", "Industry", "Lead_Source", "Lead_Status",
	"Website", "LinkedIn_Profile", "Description", "Street", "City",
	"State", "Zip_Code", "Country", "Annual_Revenue", "No_of_Employees",
}

var dealPriorityFields = []string{
	"Deal_Name", "Account_Name", "Contact_Name", "Amount",
	"Stage", "Closing_Date", "Probability", "Type", "Lead_Source",
	"Industry", "Company_Website", "Website", "Description",
	"Support_Required", "Country", "Created_Time", "Modified_Time",
}

const truncatedMarker = "[... truncated ...]"

// sideText is one optional free-text prompt section.
type sideText struct {
	kind string
	text string
}

// buildContext renders the record fields as labeled lines followed by each
// non-empty side text inside explicit BEGIN/END markers. Each side text is
// capped at maxSide and the side texts together at maxCombined, so one
// oversized source cannot starve the others out of the prompt.
func buildContext(req Request, maxSide, maxCombined int) string {
	var b strings.Builder
	b.WriteString(formatFields(req.Kind, req.Fields))

	sides := []sideText{
		{"ATTACHED DOCUMENTS", req.DocumentText},
		{"SCRAPED WEBSITE CONTENT", req.WebsiteText},
		{"SCRAPED LINKEDIN PROFILE", req.LinkedInText},
		{"MEETING NOTES", req.MeetingText},
	}
	remaining := maxCombined
	for _, s := range sides {
		text := strings.TrimSpace(s.text)
		if text == "" || remaining <= 0 {
			continue
		}
		limit := maxSide
		if remaining < limit {
			limit = remaining
		}
		text = capText(text, limit)
		remaining -= len(text)

		b.WriteString("\n\n=== BEGIN " + s.kind + " ===\n")
		b.WriteString(text)
		b.WriteString("\n=== END " + s.kind + " ===")
	}
	return b.String()
}

// formatFields renders the field map as "- Label: value" lines, priority
// fields first. Internal keys ($- or _-prefixed, and the record id) are
// excluded; {id, name} lookup objects flatten to their name.
func formatFields(kind model.RecordKind, fields map[string]any) string {
	priority := leadPriorityFields
	if kind == model.KindDeal {
		priority = dealPriorityFields
	}

	var lines []string
	seen := make(map[string]bool, len(priority))
	for _, f := range priority {
		seen[f] = true
		if v := fieldValue(fields[f]); v != "" {
			lines = append(lines, fieldLine(f, v))
		}
	}
	for k, raw := range fields {
		if seen[k] || k == "id" || strings.HasPrefix(k, "$") || strings.HasPrefix(k, "_") {
			continue
		}
		if v := fieldValue(raw); v != "" {
			lines = append(lines, fieldLine(k, v))
		}
	}
	if len(lines) == 0 {
		return "No record data available"
	}
	return strings.Join(lines, "\n")
}

func fieldLine(key, value string) string {
	return "- " + strings.ReplaceAll(key, "_", " ") + ": " + value
}

func fieldValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		if name, ok := t["name"].(string); ok {
			return strings.TrimSpace(name)
		}
		return ""
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s := fieldValue(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case bool, float64, int, int64:
		return fmt.Sprintf("%v", t)
	default:
		return ""
	}
}

func capText(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit - len(truncatedMarker) - 1
	if cut < 0 {
		cut = 0
	}
	// Back off to a rune boundary so the cut never splits a multibyte
	// character.
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n" + truncatedMarker
}

// condensedSummary builds the compact digest of the main call's output that
// the scoring call consumes: selected identity fields plus the first few
// insights and recommendations, not the full object. Keeping it small keeps
// the scoring response fast and far away from the token cap.
func condensedSummary(a *model.AnalysisResult) string {
	var lines []string
	add := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			lines = append(lines, "- "+label+": "+value)
		}
	}
	add("Company", a.CompanyName)
	add("Country", a.Country)
	add("Vertical", a.Vertical)
	add("Business Model", a.BusinessModel)
	add("Motion", a.Motion)
	add("Raise Stage", a.RaiseStage)
	add("Company Size", a.CompanySize)
	add("Product", a.ProductDescription)
	add("Summary", a.Summary)
	add("ICP (Canada)", a.LikelyICP)

	for i, ins := range a.KeyInsights {
		if i == 3 {
			break
		}
		add("Insight", ins)
	}
	for i, rec := range a.SupportRecommendations {
		if i == 3 {
			break
		}
		add("Support", rec)
	}
	return strings.Join(lines, "\n")
}
