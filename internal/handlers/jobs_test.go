package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"fieldjob-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobsHandler_ListAndRefresh(t *testing.T) {
	e := newEnv(t, &models.Job{ID: "job-1", Status: "pending"})

	w := e.do("GET", "/api/v1/jobs", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.JobListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Jobs)

	w = e.do("POST", "/api/v1/jobs/refresh", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, "job-1", resp.Jobs[0].ID)
	assert.Empty(t, resp.Error)
}

func TestJobsHandler_RefreshFailureKeepsJobs(t *testing.T) {
	e := newEnv(t, &models.Job{ID: "job-1"})
	require.Equal(t, http.StatusOK, e.do("POST", "/api/v1/jobs/refresh", nil, "").Code)

	e.store.mu.Lock()
	e.store.listErr = errors.New("connection reset")
	e.store.mu.Unlock()

	w := e.do("POST", "/api/v1/jobs/refresh", nil, "")
	assert.Equal(t, http.StatusBadGateway, w.Code)

	var resp models.JobListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Jobs, 1)
	assert.Contains(t, resp.Error, "connection reset")
}

func TestOrdersHandler_Status(t *testing.T) {
	e := newEnv(t)
	now := time.Now()
	e.store.items["order-1"] = []models.OrderItem{
		{ID: "a", Jobs: []models.OrderItemJob{
			{Status: "completed", CreatedAt: now.Add(-time.Hour)},
			{Status: "กำลังดำเนินการ", CreatedAt: now},
		}},
		{ID: "b", Status: "Cancelled"},
	}
	e.store.items["order-2"] = []models.OrderItem{
		{ID: "c", Status: "completed"},
		{ID: "d", Jobs: []models.OrderItemJob{{Status: "ยกเลิก", CreatedAt: now}}},
	}

	var resp models.OrderStatusResponse
	w := e.do("GET", "/api/v1/orders/order-1/status", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Processing", resp.Status)
	assert.Equal(t, 2, resp.Items)

	w = e.do("GET", "/api/v1/orders/order-2/status", nil, "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Completed", resp.Status)

	w = e.do("GET", "/api/v1/orders/empty/status", nil, "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Pending", resp.Status)
	assert.Equal(t, 0, resp.Items)
}
