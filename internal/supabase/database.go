package supabase

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"fieldjob-backend/internal/models"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// DatabaseClient talks to the Supabase Postgres directly.
type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(connectionString string) (*DatabaseClient, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (d *DatabaseClient) DB() *sql.DB { return d.db }

func (d *DatabaseClient) GetJob(ctx context.Context, id string) (*models.Job, error) {
	var (
		job                                              models.Job
		orderID, itemID, jobType, signature, notes, team sql.NullString
		appointment, completed                           sql.NullTime
	)
	err := d.db.QueryRowContext(ctx, `
		SELECT id, order_id, order_item_id, job_type, COALESCE(status, ''), signature_image_url,
		       job_notes, assigned_team, appointment_date, completion_date, created_at
		FROM jobs
		WHERE id = $1
	`, id).Scan(
		&job.ID, &orderID, &itemID, &jobType, &job.Status, &signature,
		&notes, &team, &appointment, &completed, &job.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	job.OrderID = orderID.String
	job.OrderItemID = itemID.String
	job.JobType = jobType.String
	job.SignatureImage = signature.String
	job.Notes = notes.String
	job.AssignedTeam = team.String
	if appointment.Valid {
		job.AppointmentDate = &appointment.Time
	}
	if completed.Valid {
		job.CompletionDate = &completed.Time
	}
	return &job, nil
}

// GetCompletion returns the job_completions row, falling back to a report
// embedded in the job notes by older clients. nil, nil means none exists.
func (d *DatabaseClient) GetCompletion(ctx context.Context, jobID string) (*models.CompletionRecord, error) {
	var (
		rec       models.CompletionRecord
		signature sql.NullString
		comment   sql.NullString
		rating    sql.NullInt64
		mediaJSON []byte
	)
	err := d.db.QueryRowContext(ctx, `
		SELECT job_id, signature_url, rating, comment, media, created_at
		FROM job_completions
		WHERE job_id = $1
	`, jobID).Scan(&rec.JobID, &signature, &rating, &comment, &mediaJSON, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return d.legacyCompletion(ctx, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get completion: %w", err)
	}

	rec.SignatureURL = signature.String
	rec.Comment = comment.String
	rec.Rating = int(rating.Int64)
	rec.Media = []models.CompletionMedia{}
	if len(mediaJSON) > 0 {
		if err := json.Unmarshal(mediaJSON, &rec.Media); err != nil {
			return nil, fmt.Errorf("failed to decode completion media: %w", err)
		}
	}
	return &rec, nil
}

func (d *DatabaseClient) legacyCompletion(ctx context.Context, jobID string) (*models.CompletionRecord, error) {
	job, err := d.GetJob(ctx, jobID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec, err := ParseLegacyCompletion(job.ID, job.Notes, job.SignatureImage)
	if errors.Is(err, ErrNoLegacyReport) {
		return nil, nil
	}
	if err != nil {
		logrus.WithError(err).WithField("job_id", jobID).Warn("ignoring unreadable legacy completion report")
		return nil, nil
	}
	return rec, nil
}

func (d *DatabaseClient) UpsertCompletion(ctx context.Context, rec *models.CompletionRecord) error {
	mediaJSON, err := json.Marshal(rec.Media)
	if err != nil {
		return fmt.Errorf("failed to encode completion media: %w", err)
	}
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO job_completions (job_id, signature_url, rating, comment, media, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)
		ON CONFLICT (job_id) DO UPDATE SET
			signature_url = EXCLUDED.signature_url,
			rating = EXCLUDED.rating,
			comment = EXCLUDED.comment,
			media = EXCLUDED.media,
			created_at = EXCLUDED.created_at
	`, rec.JobID, rec.SignatureURL, rec.Rating, rec.Comment, mediaJSON, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert completion: %w", err)
	}
	return nil
}

func (d *DatabaseClient) UpsertJob(ctx context.Context, job *models.Job) error {
	res, err := d.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = $1, signature_image_url = NULLIF($2, ''), job_notes = NULLIF($3, ''),
		    assigned_team = NULLIF($4, ''), appointment_date = $5, completion_date = $6,
		    updated_at = NOW()
		WHERE id = $7
	`, job.Status, job.SignatureImage, job.Notes, job.AssignedTeam,
		job.AppointmentDate, job.CompletionDate, job.ID)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("job %s: %w", job.ID, models.ErrNotFound)
	}
	return nil
}

// ListJobs returns every job that is not cancelled, joined with its customer
// and product, earliest appointment first.
func (d *DatabaseClient) ListJobs(ctx context.Context) ([]models.JobView, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT j.id, COALESCE(j.order_id::text, ''),
		       COALESCE(c.name, '-'), COALESCE(c.phone, '-'),
		       COALESCE(p.name, 'สินค้าไม่ระบุ'), COALESCE(p.image_url, ''),
		       COALESCE(j.job_type, ''), COALESCE(j.status, ''), COALESCE(j.assigned_team, ''),
		       j.appointment_date, j.completion_date,
		       COALESCE(j.install_address, '-'), COALESCE(j.job_notes, '')
		FROM jobs j
		LEFT JOIN orders o ON o.id = j.order_id
		LEFT JOIN customers c ON c.id = o.customer_id
		LEFT JOIN order_items oi ON oi.id = j.order_item_id
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE j.status IS DISTINCT FROM 'cancelled'
		ORDER BY j.appointment_date ASC NULLS LAST
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []models.JobView{}
	for rows.Next() {
		var (
			v                      models.JobView
			appointment, completed sql.NullTime
		)
		if err := rows.Scan(
			&v.ID, &v.OrderID, &v.CustomerName, &v.CustomerPhone,
			&v.ProductName, &v.ProductImage, &v.JobType, &v.Status, &v.AssignedTeam,
			&appointment, &completed, &v.Address, &v.Notes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		if appointment.Valid {
			t := appointment.Time
			v.AppointmentDate = &t
		}
		if completed.Valid {
			t := completed.Time
			v.CompletionDate = &t
		}
		jobs = append(jobs, v)
	}
	return jobs, rows.Err()
}

// ListOrderItems returns the items of an order with their jobs, in item
// creation order.
func (d *DatabaseClient) ListOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT oi.id, oi.order_id, COALESCE(oi.status, ''),
		       j.id, COALESCE(j.status, ''), j.created_at
		FROM order_items oi
		LEFT JOIN jobs j ON j.order_item_id = oi.id
		WHERE oi.order_id = $1
		ORDER BY oi.created_at ASC, oi.id, j.created_at ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer rows.Close()

	items := []models.OrderItem{}
	index := map[string]int{}
	for rows.Next() {
		var (
			itemID, itemOrderID, itemStatus string
			jobID, jobStatus                sql.NullString
			jobCreated                      sql.NullTime
		)
		if err := rows.Scan(&itemID, &itemOrderID, &itemStatus, &jobID, &jobStatus, &jobCreated); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		i, ok := index[itemID]
		if !ok {
			items = append(items, models.OrderItem{ID: itemID, OrderID: itemOrderID, Status: itemStatus, Jobs: []models.OrderItemJob{}})
			i = len(items) - 1
			index[itemID] = i
		}
		if jobID.Valid {
			items[i].Jobs = append(items[i].Jobs, models.OrderItemJob{
				ID:        jobID.String,
				Status:    jobStatus.String,
				CreatedAt: jobCreated.Time,
			})
		}
	}
	return items, rows.Err()
}

func (d *DatabaseClient) Close() error {
	return d.db.Close()
}
