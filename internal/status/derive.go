// Package status derives an aggregate order status from its line items and
// their nested job records.
package status

import (
	"strings"
	"time"
)

// ItemStatus is the resolved status of a single order item.
type ItemStatus string

const (
	ItemPending    ItemStatus = "pending"
	ItemProcessing ItemStatus = "processing"
	ItemCompleted  ItemStatus = "completed"
	ItemCancelled  ItemStatus = "cancelled"
)

// OrderStatus is the aggregate status shown for an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "Pending"
	OrderProcessing OrderStatus = "Processing"
	OrderCompleted  OrderStatus = "Completed"
	OrderCancelled  OrderStatus = "Cancelled"
)

// jobStatusTable translates stored job statuses (Thai UI labels and their
// English equivalents) into ItemStatus. Anything missing maps to pending.
var jobStatusTable = map[string]ItemStatus{
	"เสร็จสิ้น": ItemCompleted,
	"completed": ItemCompleted,
	"ยกเลิก":    ItemCancelled,
	"cancelled": ItemCancelled,
	"กำลังดำเนินการ": ItemProcessing,
	"processing": ItemProcessing,
}

// JobRecord is a job of an order item as far as status derivation cares.
type JobRecord struct {
	Status    string
	CreatedAt time.Time
}

// Item is one order line: either an explicit status or the jobs created for it.
type Item struct {
	Status string
	Jobs   []JobRecord
}

// ParseJobStatus maps a stored job status through the translation table.
func ParseJobStatus(s string) ItemStatus {
	if st, ok := jobStatusTable[s]; ok {
		return st
	}
	return ItemPending
}

// ResolveItem returns the status of one item. An explicit status wins and is
// only lower-cased; otherwise the most recently created job decides.
func ResolveItem(item Item) ItemStatus {
	if item.Status != "" {
		return ItemStatus(strings.ToLower(item.Status))
	}
	if len(item.Jobs) == 0 {
		return ItemPending
	}

	latest := item.Jobs[0]
	for _, j := range item.Jobs[1:] {
		if j.CreatedAt.After(latest.CreatedAt) {
			latest = j
		}
	}
	return ParseJobStatus(latest.Status)
}

// CalculateOrderStatus computes the aggregate status. The rules are checked in
// a fixed order, so [cancelled, processing] is Processing and
// [cancelled, completed] is Completed.
func CalculateOrderStatus(items []Item) OrderStatus {
	if len(items) == 0 {
		return OrderPending
	}

	statuses := make([]ItemStatus, len(items))
	for i, item := range items {
		statuses[i] = ResolveItem(item)
	}

	if every(statuses, ItemCancelled) {
		return OrderCancelled
	}
	if every(statuses, ItemCompleted, ItemCancelled) {
		return OrderCompleted
	}
	if some(statuses, ItemProcessing, ItemCompleted) {
		return OrderProcessing
	}
	return OrderPending
}

func every(statuses []ItemStatus, allowed ...ItemStatus) bool {
	for _, s := range statuses {
		if !contains(allowed, s) {
			return false
		}
	}
	return true
}

func some(statuses []ItemStatus, wanted ...ItemStatus) bool {
	for _, s := range statuses {
		if contains(wanted, s) {
			return true
		}
	}
	return false
}

func contains(set []ItemStatus, s ItemStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
