package completion_test

import (
	"testing"

	"fieldjob-backend/internal/completion"
	"fieldjob-backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestAssemble(t *testing.T) {
	job := &models.Job{ID: "job-9"}
	media := []models.CompletionMedia{{URL: "https://cdn/a.jpg", Kind: models.MediaPhoto}}

	rec := completion.Assemble(job, "https://cdn/sig.png", 0, "fine", media)
	assert.Equal(t, "job-9", rec.JobID)
	assert.Equal(t, 5, rec.Rating)
	assert.Equal(t, "fine", rec.Comment)
	assert.Equal(t, media, rec.Media)
	assert.False(t, rec.CreatedAt.IsZero())

	empty := completion.Assemble(job, "", 2, "", nil)
	assert.NotNil(t, empty.Media)
	assert.Equal(t, 2, empty.Rating)
}

func TestNormalizeRating(t *testing.T) {
	assert.Equal(t, 5, completion.NormalizeRating(0))
	assert.Equal(t, 1, completion.NormalizeRating(-3))
	assert.Equal(t, 5, completion.NormalizeRating(9))
	assert.Equal(t, 3, completion.NormalizeRating(3))
}

func TestResolveSignature(t *testing.T) {
	job := &models.Job{SignatureImage: "legacy"}
	existing := &models.CompletionRecord{SignatureURL: "stored"}

	assert.Equal(t, "fresh", completion.ResolveSignature("fresh", existing, job))
	assert.Equal(t, "stored", completion.ResolveSignature("", existing, job))
	assert.Equal(t, "legacy", completion.ResolveSignature("", &models.CompletionRecord{}, job))
	assert.Equal(t, "legacy", completion.ResolveSignature("", nil, job))
	assert.Equal(t, "", completion.ResolveSignature("", nil, nil))
}
