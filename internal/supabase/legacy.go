package supabase

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"fieldjob-backend/internal/models"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Older clients saved the completion report inside the job notes as
// "[COMPLETION_REPORT] {json}". It is read only when no job_completions row
// exists and is never written back.

var ErrNoLegacyReport = errors.New("no legacy completion report in notes")

var legacyReportPattern = regexp.MustCompile(`\[COMPLETION_REPORT\]\s*(\{.*\})`)

var legacyReportSchema = jsonschema.MustCompileString("legacy_completion.json", `{
	"type": "object",
	"properties": {
		"rating": {"type": ["number", "null"]},
		"comment": {"type": ["string", "null"]},
		"inspector_timestamp": {"type": ["string", "null"]},
		"media": {
			"type": ["array", "null"],
			"items": {
				"type": "object",
				"required": ["url"],
				"properties": {
					"url": {"type": "string"},
					"type": {"type": ["string", "null"]},
					"note": {"type": ["string", "null"]},
					"timestamp": {"type": ["string", "null"]},
					"location": {
						"type": ["object", "null"],
						"properties": {
							"lat": {"type": "number"},
							"lng": {"type": "number"}
						}
					}
				}
			}
		}
	}
}`)

type legacyReport struct {
	Rating             float64       `json:"rating"`
	Comment            string        `json:"comment"`
	InspectorTimestamp string        `json:"inspector_timestamp"`
	Media              []legacyMedia `json:"media"`
}

type legacyMedia struct {
	URL       string           `json:"url"`
	Type      models.MediaKind `json:"type"`
	Note      string           `json:"note"`
	Timestamp string           `json:"timestamp"`
	Location  *models.GeoPoint `json:"location"`
}

// ParseLegacyCompletion extracts and validates the report embedded in notes.
func ParseLegacyCompletion(jobID, notes, signatureURL string) (*models.CompletionRecord, error) {
	m := legacyReportPattern.FindStringSubmatch(notes)
	if len(m) < 2 {
		return nil, ErrNoLegacyReport
	}
	raw := []byte(m[1])

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse legacy report: %w", err)
	}
	if err := legacyReportSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("legacy report does not match schema: %w", err)
	}

	var report legacyReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("failed to decode legacy report: %w", err)
	}

	rec := &models.CompletionRecord{
		JobID:        jobID,
		SignatureURL: signatureURL,
		Rating:       int(report.Rating),
		Comment:      report.Comment,
		Media:        make([]models.CompletionMedia, 0, len(report.Media)),
		CreatedAt:    parseLegacyTime(report.InspectorTimestamp),
	}
	if rec.Rating == 0 {
		rec.Rating = 5
	}
	for _, lm := range report.Media {
		kind := lm.Type
		if kind == "" {
			kind = models.MediaPhoto
		}
		rec.Media = append(rec.Media, models.CompletionMedia{
			URL:        lm.URL,
			Kind:       kind,
			Note:       lm.Note,
			Geo:        lm.Location,
			CapturedAt: parseLegacyTime(lm.Timestamp),
		})
	}
	return rec, nil
}

func parseLegacyTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}
