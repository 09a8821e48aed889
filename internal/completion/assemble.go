// Package completion turns a session's staged evidence, signature and rating
// into a saved completion record and a finished job.
package completion

import (
	"time"

	"fieldjob-backend/internal/models"
)

const DefaultRating = 5

// ResolveSignature picks the signature for the record: a freshly uploaded
// one, else the one already on the saved completion, else the job's legacy
// signature column.
func ResolveSignature(fresh string, existing *models.CompletionRecord, job *models.Job) string {
	if fresh != "" {
		return fresh
	}
	if existing != nil && existing.SignatureURL != "" {
		return existing.SignatureURL
	}
	if job != nil {
		return job.SignatureImage
	}
	return ""
}

// NormalizeRating maps "not given" (0) to the default and clamps to 1..5.
func NormalizeRating(r int) int {
	switch {
	case r == 0:
		return DefaultRating
	case r < 1:
		return 1
	case r > 5:
		return 5
	}
	return r
}

// Assemble builds the record that replaces any stored completion of the job.
// media must already be finalized (uploaded) and in capture order.
func Assemble(job *models.Job, signatureURL string, rating int, comment string, media []models.CompletionMedia) *models.CompletionRecord {
	if media == nil {
		media = []models.CompletionMedia{}
	}
	return &models.CompletionRecord{
		JobID:        job.ID,
		SignatureURL: signatureURL,
		Rating:       NormalizeRating(rating),
		Comment:      comment,
		Media:        media,
		CreatedAt:    time.Now().UTC(),
	}
}
