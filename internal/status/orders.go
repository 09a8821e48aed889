package status

import "fieldjob-backend/internal/models"

// FromOrderItems adapts stored order items to derivation input.
func FromOrderItems(items []models.OrderItem) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		jobs := make([]JobRecord, len(it.Jobs))
		for j, job := range it.Jobs {
			jobs[j] = JobRecord{Status: job.Status, CreatedAt: job.CreatedAt}
		}
		out[i] = Item{Status: it.Status, Jobs: jobs}
	}
	return out
}
