package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fieldjob-backend/internal/models"
	"github.com/sirupsen/logrus"
	postgrest "github.com/supabase-community/postgrest-go"
)

// RESTClient reaches the same tables as DatabaseClient through PostgREST.
// It is used when no direct database connection is configured.
type RESTClient struct {
	client *Client
}

func NewRESTClient(client *Client) *RESTClient {
	return &RESTClient{client: client}
}

func (r *RESTClient) GetJob(ctx context.Context, id string) (*models.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, _, err := r.client.Supabase.From("jobs").
		Select("*", "", false).
		Eq("id", id).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	var jobs []models.Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("job %s: %w", id, models.ErrNotFound)
	}
	return &jobs[0], nil
}

func (r *RESTClient) GetCompletion(ctx context.Context, jobID string) (*models.CompletionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, _, err := r.client.Supabase.From("job_completions").
		Select("*", "", false).
		Eq("job_id", jobID).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get completion: %w", err)
	}

	var recs []models.CompletionRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("failed to decode completion: %w", err)
	}
	if len(recs) > 0 {
		rec := recs[0]
		if rec.Media == nil {
			rec.Media = []models.CompletionMedia{}
		}
		return &rec, nil
	}

	job, err := r.GetJob(ctx, jobID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec, err := ParseLegacyCompletion(job.ID, job.Notes, job.SignatureImage)
	if err != nil {
		if !errors.Is(err, ErrNoLegacyReport) {
			logrus.WithError(err).WithField("job_id", jobID).Warn("ignoring unreadable legacy completion report")
		}
		return nil, nil
	}
	return rec, nil
}

func (r *RESTClient) UpsertCompletion(ctx context.Context, rec *models.CompletionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := r.client.Supabase.From("job_completions").
		Upsert(rec, "job_id", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to upsert completion: %w", err)
	}
	return nil
}

func (r *RESTClient) UpsertJob(ctx context.Context, job *models.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	update := map[string]interface{}{
		"status":              job.Status,
		"signature_image_url": nullable(job.SignatureImage),
		"completion_date":     job.CompletionDate,
		"updated_at":          time.Now().UTC(),
	}
	_, _, err := r.client.Supabase.From("jobs").
		Update(update, "minimal", "").
		Eq("id", job.ID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}

type restJobRow struct {
	models.Job
	InstallAddress string `json:"install_address"`
	Order          *struct {
		Customer *struct {
			Name  string `json:"name"`
			Phone string `json:"phone"`
		} `json:"customer"`
	} `json:"order"`
	OrderItem *struct {
		Product *struct {
			Name     string `json:"name"`
			ImageURL string `json:"image_url"`
		} `json:"product"`
	} `json:"orderItem"`
}

func (r *RESTClient) ListJobs(ctx context.Context) ([]models.JobView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, _, err := r.client.Supabase.From("jobs").
		Select(`*,
			order:orders!order_id(id, customer:customers!customer_id(name, phone)),
			orderItem:order_items!order_item_id(id, product:products!product_id(name, image_url))`, "", false).
		Or("status.is.null,status.neq.cancelled", "").
		Order("appointment_date", &postgrest.OrderOpts{Ascending: true}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	var rows []restJobRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode jobs: %w", err)
	}

	jobs := make([]models.JobView, 0, len(rows))
	for _, row := range rows {
		v := models.JobView{
			ID:              row.ID,
			OrderID:         row.OrderID,
			CustomerName:    "-",
			CustomerPhone:   "-",
			ProductName:     "สินค้าไม่ระบุ",
			JobType:         row.JobType,
			Status:          row.Status,
			AssignedTeam:    row.AssignedTeam,
			AppointmentDate: row.AppointmentDate,
			CompletionDate:  row.CompletionDate,
			Address:         orDash(row.InstallAddress),
			Notes:           row.Notes,
		}
		if row.Order != nil && row.Order.Customer != nil {
			v.CustomerName = orDash(row.Order.Customer.Name)
			v.CustomerPhone = orDash(row.Order.Customer.Phone)
		}
		if row.OrderItem != nil && row.OrderItem.Product != nil {
			if row.OrderItem.Product.Name != "" {
				v.ProductName = row.OrderItem.Product.Name
			}
			v.ProductImage = row.OrderItem.Product.ImageURL
		}
		jobs = append(jobs, v)
	}
	return jobs, nil
}

func (r *RESTClient) ListOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, _, err := r.client.Supabase.From("order_items").
		Select("id, order_id, status, jobs(id, status, created_at)", "", false).
		Eq("order_id", orderID).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}

	var items []models.OrderItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode order items: %w", err)
	}
	if items == nil {
		items = []models.OrderItem{}
	}
	return items, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
