package supabase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeChange(t *testing.T) {
	ev, err := decodeChange("jobs", `{"table":"jobs","type":"UPDATE","id":"job-1"}`)
	assert.NoError(t, err)
	assert.Equal(t, "UPDATE", ev.Type)
	assert.Equal(t, "job-1", ev.RecordID)

	ev, err = decodeChange("jobs", "")
	assert.NoError(t, err)
	assert.Equal(t, "jobs", ev.Table)
	assert.Equal(t, "*", ev.Type)

	ev, err = decodeChange("jobs", "not json")
	assert.Error(t, err)
	assert.Equal(t, "jobs", ev.Table)
}

func TestChannelName(t *testing.T) {
	assert.Equal(t, "jobs_changes", ChannelName("jobs"))
}
