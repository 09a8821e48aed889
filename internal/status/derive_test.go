package status_test

import (
	"testing"
	"time"

	"fieldjob-backend/internal/status"
	"github.com/stretchr/testify/assert"
)

func explicit(s string) status.Item { return status.Item{Status: s} }

func TestCalculateOrderStatus_Precedence(t *testing.T) {
	tests := []struct {
		name  string
		items []status.Item
		want  status.OrderStatus
	}{
		{"empty", nil, status.OrderPending},
		{"all cancelled", []status.Item{explicit("cancelled"), explicit("Cancelled")}, status.OrderCancelled},
		{"cancelled and completed", []status.Item{explicit("cancelled"), explicit("completed")}, status.OrderCompleted},
		{"completed and processing", []status.Item{explicit("completed"), explicit("processing")}, status.OrderProcessing},
		{"cancelled and processing", []status.Item{explicit("cancelled"), explicit("processing")}, status.OrderProcessing},
		{"all completed", []status.Item{explicit("COMPLETED"), explicit("completed")}, status.OrderCompleted},
		{"all pending", []status.Item{explicit("pending"), {}}, status.OrderPending},
		{"unknown explicit status", []status.Item{explicit("on hold")}, status.OrderPending},
		{"completed and pending", []status.Item{explicit("completed"), {}}, status.OrderProcessing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, status.CalculateOrderStatus(tt.items))
		})
	}
}

func TestResolveItem_NoStatusNoJobs(t *testing.T) {
	assert.Equal(t, status.ItemPending, status.ResolveItem(status.Item{}))
	assert.Equal(t, status.ItemPending, status.ResolveItem(status.Item{Jobs: []status.JobRecord{}}))
}

func TestResolveItem_PicksLatestJob(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	item := status.Item{Jobs: []status.JobRecord{
		{Status: "completed", CreatedAt: t2},
		{Status: "pending", CreatedAt: t1},
	}}
	assert.Equal(t, status.ItemCompleted, status.ResolveItem(item))

	item.Jobs[0], item.Jobs[1] = item.Jobs[1], item.Jobs[0]
	assert.Equal(t, status.ItemCompleted, status.ResolveItem(item))
}

func TestResolveItem_ThaiLabels(t *testing.T) {
	now := time.Now()
	cases := map[string]status.ItemStatus{
		"เสร็จสิ้น":      status.ItemCompleted,
		"ยกเลิก":         status.ItemCancelled,
		"กำลังดำเนินการ": status.ItemProcessing,
		"รอดำเนินการ":    status.ItemPending,
		"":               status.ItemPending,
	}
	for label, want := range cases {
		item := status.Item{Jobs: []status.JobRecord{{Status: label, CreatedAt: now}}}
		assert.Equal(t, want, status.ResolveItem(item), label)
	}
}

func TestResolveItem_ExplicitStatusWinsOverJobs(t *testing.T) {
	item := status.Item{
		Status: "Cancelled",
		Jobs:   []status.JobRecord{{Status: "completed", CreatedAt: time.Now()}},
	}
	assert.Equal(t, status.ItemCancelled, status.ResolveItem(item))
}

func TestCalculateOrderStatus_MissingTimestampsDoNotPanic(t *testing.T) {
	items := []status.Item{{Jobs: []status.JobRecord{{Status: "processing"}, {Status: "garbage"}}}}
	assert.Equal(t, status.OrderProcessing, status.CalculateOrderStatus(items))
}
