package extraction

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"aidjobs-crawler/internal/domain/entity"
	"aidjobs-crawler/internal/infra/plugin"
	"aidjobs-crawler/internal/infra/snapshot"
)

// genericLocations trip the generic-location validation flag.
var genericLocations = map[string]bool{
	"n/a": true, "tbd": true, "to be determined": true,
	"multiple": true, "various": true,
}

// Pipeline runs the seven-stage cascade over one fetched page. Stage errors
// never abort the run: a stage that fails contributes nothing and the next
// stage runs.
type Pipeline struct {
	classifier *Classifier
	registry   *plugin.Registry
	ai         *AIExtractor
	snapshots  *snapshot.Store

	now func() time.Time
}

// NewPipeline wires the cascade. ai and snapshots may be nil: the AI stage
// and snapshotting are then skipped, everything deterministic still runs.
func NewPipeline(classifier *Classifier, registry *plugin.Registry, ai *AIExtractor, snapshots *snapshot.Store) *Pipeline {
	return &Pipeline{
		classifier: classifier,
		registry:   registry,
		ai:         ai,
		snapshots:  snapshots,
		now:        time.Now,
	}
}

// ExtractHTML runs the full cascade over an HTML body.
func (p *Pipeline) ExtractHTML(ctx context.Context, pageURL string, body []byte) (*Result, error) {
	result := newResult(pageURL)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		result.addIssue("unparseable_html")
		p.writeSnapshot(pageURL, body, result)
		return result, err
	}

	// Stage 1, classifier. Non-job pages continue through extraction for
	// reporting.
	result.IsJob, result.ClassifierScore = p.classifier.Classify(doc, pageURL)

	now := p.now()

	extractJSONLD(doc, result)          // Stage 2
	extractMeta(doc, result)            // Stage 3
	extractDOM(p.registry, doc, result) // Stage 4
	extractHeuristics(doc, result, now) // Stage 5
	extractRegex(doc, result, now)      // Stage 6

	// Stage 7, AI of last resort, only past the critical-field gate.
	if p.ai != nil && result.needsAI() {
		p.ai.Extract(ctx, doc, body, result)
	}

	p.finish(result, now)
	p.writeSnapshot(pageURL, body, result)
	return result, nil
}

// ExtractStructured seeds a Result directly from already-structured fields
// (RSS entries and API items, both entering at the api confidence tier)
// and runs classification-free finishing.
func (p *Pipeline) ExtractStructured(pageURL string, fields map[Field]string) *Result {
	result := newResult(pageURL)
	result.IsJob = true
	result.ClassifierScore = 0.9

	now := p.now()
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			continue
		}
		switch name {
		case FieldPostedOn:
			if iso := parseDate(value); iso != "" {
				result.SetField(name, fieldResult(entity.FieldSourceAPI, iso, value))
			}
		case FieldDeadline:
			if iso := parseDeadline(value, now); iso != "" {
				result.SetField(name, fieldResult(entity.FieldSourceAPI, iso, value))
			}
		default:
			result.SetField(name, fieldResult(entity.FieldSourceAPI, value, value))
		}
	}

	p.finish(result, now)
	return result
}

// finish computes the dedupe hash and applies the validation rules.
func (p *Pipeline) finish(result *Result, now time.Time) {
	result.computeDedupeHash()

	// A listing page's job-ness lives in its rows, not its own fields.
	if len(result.Jobs) > 0 {
		return
	}

	if strings.TrimSpace(result.Value(FieldTitle)) == "" {
		result.addIssue("missing_title")
	}

	deadline := result.Value(FieldDeadline)
	postedOn := result.Value(FieldPostedOn)
	if deadline != "" && postedOn != "" {
		d, errD := time.Parse(isoDate, deadline)
		o, errP := time.Parse(isoDate, postedOn)
		if errD == nil && errP == nil && d.Before(o) {
			result.addIssue("deadline_before_posted")
		}
	}

	if loc := strings.ToLower(strings.TrimSpace(result.Value(FieldLocation))); genericLocations[loc] {
		result.addIssue("generic_location")
	}
}

func (p *Pipeline) writeSnapshot(pageURL string, body []byte, result *Result) {
	if p.snapshots == nil {
		return
	}
	if err := p.snapshots.Write(pageURL, body, result); err != nil {
		slog.Warn("snapshot write failed", slog.String("url", pageURL), slog.Any("error", err))
	}
}
