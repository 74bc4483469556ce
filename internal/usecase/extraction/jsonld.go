package extraction

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"aidjobs-crawler/internal/domain/entity"
)

// extractJSONLD runs Stage 2: scan application/ld+json scripts, flatten
// @graph and itemListElement wrappers, keep items whose @type contains
// JobPosting, and merge their mapped fields into result at the jsonld
// confidence tier.
func extractJSONLD(doc *goquery.Document, result *Result) {
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return
		}
		for _, item := range flattenJSONLD(data) {
			if !isJobPosting(item) {
				continue
			}
			for name, fr := range mapJobPosting(item) {
				result.SetField(name, fr)
			}
		}
	})
}

// flattenJSONLD unwraps the common JSON-LD container shapes into a flat
// item list.
func flattenJSONLD(data any) []map[string]any {
	var items []map[string]any
	switch v := data.(type) {
	case map[string]any:
		switch {
		case isJobPosting(v):
			items = append(items, v)
		case isList(v["@graph"]):
			for _, g := range v["@graph"].([]any) {
				if m, ok := g.(map[string]any); ok {
					items = append(items, m)
				}
			}
		case isList(v["itemListElement"]):
			for _, el := range v["itemListElement"].([]any) {
				if m, ok := el.(map[string]any); ok {
					if inner, ok := m["item"].(map[string]any); ok {
						items = append(items, inner)
					}
				}
			}
		}
	case []any:
		for _, el := range v {
			if m, ok := el.(map[string]any); ok {
				items = append(items, m)
			}
		}
	}
	return items
}

func isList(v any) bool {
	_, ok := v.([]any)
	return ok
}

func isJobPosting(item map[string]any) bool {
	switch t := item["@type"].(type) {
	case string:
		return strings.Contains(t, "JobPosting")
	case []any:
		for _, el := range t {
			if s, ok := el.(string); ok && strings.Contains(s, "JobPosting") {
				return true
			}
		}
	}
	return false
}

// mapJobPosting maps one JobPosting item's properties to pipeline fields.
func mapJobPosting(item map[string]any) map[Field]entity.FieldResult {
	fields := make(map[Field]entity.FieldResult)

	if title := asString(item["title"]); title != "" {
		fields[FieldTitle] = fieldResult(entity.FieldSourceJSONLD, title, title)
	}

	if employer := jsonldEmployer(item); employer != "" {
		fields[FieldEmployer] = fieldResult(entity.FieldSourceJSONLD, employer, employer)
	}

	if location := jsonldLocation(item); location != "" {
		fields[FieldLocation] = fieldResult(entity.FieldSourceJSONLD, location, location)
	}

	if raw := asString(item["datePosted"]); raw != "" {
		if iso := parseDate(raw); iso != "" {
			fields[FieldPostedOn] = fieldResult(entity.FieldSourceJSONLD, iso, raw)
		}
	}

	deadlineRaw := asString(item["validThrough"])
	if deadlineRaw == "" {
		deadlineRaw = asString(item["applicationDeadline"])
	}
	if deadlineRaw != "" {
		if iso := parseDate(deadlineRaw); iso != "" {
			fields[FieldDeadline] = fieldResult(entity.FieldSourceJSONLD, iso, deadlineRaw)
		}
	}

	if desc := asString(item["description"]); desc != "" {
		fields[FieldDescription] = fieldResult(entity.FieldSourceJSONLD, desc, desc)
	}

	if u := asString(item["url"]); u != "" {
		fields[FieldApplicationURL] = fieldResult(entity.FieldSourceJSONLD, u, u)
	}

	return fields
}

// jsonldEmployer resolves hiringOrganization.{name|legalName}, accepting a
// bare string or a legacy "employer" property.
func jsonldEmployer(item map[string]any) string {
	switch org := item["hiringOrganization"].(type) {
	case map[string]any:
		if name := asString(org["name"]); name != "" {
			return name
		}
		return asString(org["legalName"])
	case string:
		return org
	}
	return asString(item["employer"])
}

// jsonldLocation joins jobLocation.address.{addressLocality, addressRegion,
// addressCountry} with commas, falling back through the looser shapes seen
// in the wild.
func jsonldLocation(item map[string]any) string {
	switch loc := item["jobLocation"].(type) {
	case map[string]any:
		switch addr := loc["address"].(type) {
		case map[string]any:
			var parts []string
			for _, key := range []string{"addressLocality", "addressRegion", "addressCountry"} {
				if v := asString(addr[key]); v != "" {
					parts = append(parts, v)
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, ", ")
			}
		case string:
			return addr
		}
		return asString(loc["name"])
	case string:
		return loc
	}
	return ""
}

func asString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}
