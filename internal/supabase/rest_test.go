package supabase_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"fieldjob-backend/internal/config"
	"fieldjob-backend/internal/supabase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRESTClient_ListJobsKeepsJobsWithoutStatus(t *testing.T) {
	var (
		mu    sync.Mutex
		query url.Values
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		if r.URL.Path == "/rest/v1/jobs" {
			query = r.URL.Query()
		}
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": "job-1", "status": null, "install_address": null, "order": null, "orderItem": null},
			{"id": "job-2", "status": "processing", "install_address": "99 Sukhumvit",
			 "order": {"customer": {"name": "Somchai", "phone": "0812345678"}},
			 "orderItem": {"product": {"name": "Split AC", "image_url": ""}}}
		]`))
	}))
	defer srv.Close()

	client, err := supabase.NewClient(&config.Config{SupabaseURL: srv.URL, SupabaseServiceKey: "service-key"})
	require.NoError(t, err)

	jobs, err := supabase.NewRESTClient(client).ListJobs(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, query)
	assert.Equal(t, "(status.is.null,status.neq.cancelled)", query.Get("or"))
	assert.Empty(t, query.Get("status"))

	require.Len(t, jobs, 2)
	assert.Equal(t, "job-1", jobs[0].ID)
	assert.Equal(t, "", jobs[0].Status)
	assert.Equal(t, "-", jobs[0].CustomerName)
	assert.Equal(t, "-", jobs[0].Address)
	assert.Equal(t, "Somchai", jobs[1].CustomerName)
	assert.Equal(t, "Split AC", jobs[1].ProductName)
	assert.Equal(t, "99 Sukhumvit", jobs[1].Address)
}
