package supabase_test

import (
	"testing"
	"time"

	"fieldjob-backend/internal/models"
	"fieldjob-backend/internal/supabase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLegacyCompletion(t *testing.T) {
	notes := `ติดตั้งเรียบร้อย
[COMPLETION_REPORT] {"rating":4,"comment":"ok","inspector_timestamp":"2024-03-01T10:00:00Z",` +
		`"media":[{"url":"https://x/a.jpg","note":"front","location":{"lat":13.7,"lng":100.5}},` +
		`{"url":"https://x/b.mp4","type":"video","timestamp":"2024-03-01T10:05:00.5Z"}]}`

	rec, err := supabase.ParseLegacyCompletion("job-1", notes, "https://x/sig.png")
	require.NoError(t, err)

	assert.Equal(t, "job-1", rec.JobID)
	assert.Equal(t, "https://x/sig.png", rec.SignatureURL)
	assert.Equal(t, 4, rec.Rating)
	assert.Equal(t, "ok", rec.Comment)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), rec.CreatedAt)

	require.Len(t, rec.Media, 2)
	assert.Equal(t, models.MediaPhoto, rec.Media[0].Kind)
	assert.Equal(t, "front", rec.Media[0].Note)
	require.NotNil(t, rec.Media[0].Geo)
	assert.InDelta(t, 13.7, rec.Media[0].Geo.Lat, 1e-9)
	assert.Equal(t, models.MediaVideo, rec.Media[1].Kind)
	assert.Nil(t, rec.Media[1].Geo)
}

func TestParseLegacyCompletion_DefaultRating(t *testing.T) {
	rec, err := supabase.ParseLegacyCompletion("job-1", `[COMPLETION_REPORT] {"comment":"x"}`, "")
	require.NoError(t, err)
	assert.Equal(t, 5, rec.Rating)
	assert.Empty(t, rec.Media)
}

func TestParseLegacyCompletion_NoReport(t *testing.T) {
	_, err := supabase.ParseLegacyCompletion("job-1", "just a note", "")
	assert.ErrorIs(t, err, supabase.ErrNoLegacyReport)
}

func TestParseLegacyCompletion_SchemaMismatch(t *testing.T) {
	_, err := supabase.ParseLegacyCompletion("job-1", `[COMPLETION_REPORT] {"media":[{"note":"no url"}]}`, "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, supabase.ErrNoLegacyReport)
}
