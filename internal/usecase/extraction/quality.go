package extraction

import (
	"strings"
	"time"

	"aidjobs-crawler/internal/domain/entity"
)

// qualityWeights is the factor breakdown behind a job's quality score. Each
// factor contributes its weight fully, partially, or not at all; the sum of
// weights is 1.0 so the score stays in [0,1].
var qualityWeights = map[string]float64{
	"title":       0.25,
	"employer":    0.15,
	"location":    0.15,
	"deadline":    0.15,
	"description": 0.20,
	"apply_url":   0.10,
}

// ScoreQuality rates a normalized job's completeness and coherence
//. Best-effort by contract:
// it never errors, it only grades.
func ScoreQuality(job *entity.Job, now time.Time) entity.Quality {
	factors := make(map[string]float64, len(qualityWeights))
	var issues []string

	titleScore := 0.0
	switch {
	case len(job.Title) >= 10:
		titleScore = 1.0
	case len(job.Title) >= 3:
		titleScore = 0.5
		issues = append(issues, "short_title")
	default:
		issues = append(issues, "missing_title")
	}
	factors["title"] = titleScore * qualityWeights["title"]

	employerScore := 0.0
	if strings.TrimSpace(job.OrgName) != "" {
		employerScore = 1.0
	} else {
		issues = append(issues, "missing_employer")
	}
	factors["employer"] = employerScore * qualityWeights["employer"]

	locationScore := 0.0
	switch {
	case job.CountryISO2 != "" || job.Remote:
		locationScore = 1.0
	case strings.TrimSpace(job.RawLocation) != "":
		locationScore = 0.5
		issues = append(issues, "unresolved_location")
	default:
		issues = append(issues, "missing_location")
	}
	factors["location"] = locationScore * qualityWeights["location"]

	deadlineScore := 0.0
	switch {
	case job.Deadline == nil:
		issues = append(issues, "missing_deadline")
	case job.Deadline.Before(now):
		deadlineScore = 0.3
		issues = append(issues, "past_deadline")
	default:
		deadlineScore = 1.0
	}
	factors["deadline"] = deadlineScore * qualityWeights["deadline"]

	descScore := 0.0
	switch {
	case len(job.Description) >= 200:
		descScore = 1.0
	case len(job.Description) >= 50:
		descScore = 0.6
	case len(job.Description) > 0:
		descScore = 0.3
		issues = append(issues, "thin_description")
	default:
		issues = append(issues, "missing_description")
	}
	factors["description"] = descScore * qualityWeights["description"]

	urlScore := 0.0
	if job.ApplyURL != "" && !strings.HasPrefix(job.ApplyURL, "#") && !strings.HasPrefix(job.ApplyURL, "javascript:") {
		urlScore = 1.0
	} else {
		issues = append(issues, "missing_apply_url")
	}
	factors["apply_url"] = urlScore * qualityWeights["apply_url"]

	score := 0.0
	for _, v := range factors {
		score += v
	}

	return entity.Quality{
		Score:       score,
		Grade:       letterGrade(score),
		Factors:     factors,
		Issues:      issues,
		NeedsReview: score < 0.5,
	}
}

func letterGrade(score float64) string {
	switch {
	case score >= 0.9:
		return "A"
	case score >= 0.75:
		return "B"
	case score >= 0.6:
		return "C"
	case score >= 0.4:
		return "D"
	default:
		return "F"
	}
}
