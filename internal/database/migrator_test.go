package database

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_Ordered(t *testing.T) {
	names, err := Migrations()
	require.NoError(t, err)
	assert.Equal(t, []string{"001_field_jobs.sql", "002_jobs_change_feed.sql"}, names)
}

func TestMigrationNames_SkipsDirectories(t *testing.T) {
	source := fstest.MapFS{
		"migrations/010_b.sql":     {Data: []byte("SELECT 1")},
		"migrations/002_a.sql":     {Data: []byte("SELECT 1")},
		"migrations/old/001_x.sql": {Data: []byte("SELECT 1")},
	}
	names, err := migrationNames(source)
	require.NoError(t, err)
	assert.Equal(t, []string{"002_a.sql", "010_b.sql"}, names)
}

func TestFeedMigration_NotifiesJobsChannel(t *testing.T) {
	sql, err := migrationsFS.ReadFile("migrations/002_jobs_change_feed.sql")
	require.NoError(t, err)
	assert.Contains(t, string(sql), "'jobs_changes'")
}
