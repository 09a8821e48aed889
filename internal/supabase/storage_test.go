package supabase_test

import (
	"testing"

	"fieldjob-backend/internal/models"
	"fieldjob-backend/internal/supabase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectPath(t *testing.T) {
	tests := []struct {
		name, file, contentType, want string
	}{
		{"extension from name", "IMG_0042.JPG", "image/jpeg", "job-1/1700000000000.jpg"},
		{"extension from content type", "recording", "video/mp4", "job-1/1700000000000.mp4"},
		{"png signature", "signature.png", "", "job-1/1700000000000.png"},
		{"unknown", "blob", "", "job-1/1700000000000.bin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, supabase.ObjectPath("job-1", 1700000000000, tt.file, tt.contentType))
		})
	}
}

func TestNormalizeContentType(t *testing.T) {
	assert.Equal(t, "video/mp4", supabase.NormalizeContentType(models.MediaVideo, "video/webm"))
	assert.Equal(t, "video/mp4", supabase.NormalizeContentType(models.MediaPhoto, "video/quicktime"))
	assert.Equal(t, "image/jpeg", supabase.NormalizeContentType(models.MediaPhoto, "image/jpeg"))
	assert.Equal(t, "application/octet-stream", supabase.NormalizeContentType(models.MediaPhoto, ""))
}

func TestStorageClient_GetPublicURL(t *testing.T) {
	client, err := supabase.NewStorageClient("https://abc.supabase.co/", "service-key", "job-media")
	require.NoError(t, err)

	assert.Equal(t,
		"https://abc.supabase.co/storage/v1/object/public/job-media/job-1/1.jpg",
		client.GetPublicURL("job-1/1.jpg"))
}

func TestNewStorageClient_RequiresURL(t *testing.T) {
	_, err := supabase.NewStorageClient("", "key", "job-media")
	assert.Error(t, err)
}
