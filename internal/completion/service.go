package completion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fieldjob-backend/internal/media"
	"fieldjob-backend/internal/models"
	"fieldjob-backend/internal/upload"
	"github.com/sirupsen/logrus"
)

// Store is the persistence the completion flow needs.
type Store interface {
	GetJob(ctx context.Context, id string) (*models.Job, error)
	// GetCompletion returns nil, nil when the job has no completion yet.
	GetCompletion(ctx context.Context, jobID string) (*models.CompletionRecord, error)
	UpsertCompletion(ctx context.Context, rec *models.CompletionRecord) error
	UpsertJob(ctx context.Context, job *models.Job) error
}

type Request struct {
	JobID string
	List  *media.StagingList
	// Signature is a new PNG signature to upload; SignatureURL is a new
	// signature uploaded by an earlier attempt.
	Signature    []byte
	SignatureURL string
	// ExistingSignature is the signature already on the saved completion.
	ExistingSignature string
	Rating            int
	Comment           string
}

type Service struct {
	store    Store
	blobs    upload.BlobStore
	seq      *upload.Sequencer
	sessions *Registry
}

func NewService(store Store, blobs upload.BlobStore) *Service {
	return &Service{
		store:    store,
		blobs:    blobs,
		seq:      upload.NewSequencer(blobs),
		sessions: NewRegistry(),
	}
}

func (s *Service) Sessions() *Registry { return s.sessions }

// Complete uploads the staged media and signature, saves the record, then
// advances the job. The record is written before the job; a failed job
// update leaves the record in place and returns it with an error that
// matches ErrJobNotAdvanced.
func (s *Service) Complete(ctx context.Context, req Request) (*models.CompletionRecord, error) {
	job, err := s.store.GetJob(ctx, req.JobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", req.JobID, err)
	}

	if err := req.List.Lock(); err != nil {
		return nil, err
	}
	finalized := false
	defer func() {
		if !finalized {
			req.List.Unlock()
		}
	}()

	log := logrus.WithFields(logrus.Fields{"job_id": job.ID, "items": req.List.Len()})
	log.Info("completion submit started")

	mediaEntries, err := s.seq.Run(ctx, job.ID, req.List)
	if err != nil {
		return nil, &Error{Stage: StageMedia, Err: err}
	}

	sig := req.SignatureURL
	uploadedSig := ""
	if sig == "" && len(req.Signature) > 0 {
		if sig, err = s.uploadSignature(ctx, job.ID, req.Signature); err != nil {
			return nil, &Error{Stage: StageSignature, Err: err}
		}
		uploadedSig = sig
	}
	if sig == "" {
		sig = req.ExistingSignature
	}
	if sig == "" {
		sig = job.SignatureImage
	}

	rec := Assemble(job, sig, req.Rating, req.Comment, mediaEntries)
	if err := s.store.UpsertCompletion(ctx, rec); err != nil {
		log.WithError(err).Error("failed to save completion record")
		return nil, &Error{Stage: StageRecord, Err: err, SignatureURL: uploadedSig}
	}

	req.List.Finalize()
	finalized = true

	if err := s.advanceJob(ctx, job, rec.SignatureURL); err != nil {
		log.WithError(err).Error("completion saved but job not advanced")
		return rec, &Error{Stage: StageJob, Err: err}
	}

	log.WithField("media", len(rec.Media)).Info("completion submitted")
	return rec, nil
}

func (s *Service) uploadSignature(ctx context.Context, jobID string, png []byte) (string, error) {
	url, err := s.blobs.Upload(ctx, jobID, upload.File{
		Name:        "signature.png",
		ContentType: "image/png",
		Kind:        models.MediaPhoto,
		Data:        png,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload signature: %w", err)
	}
	if url == "" {
		return "", fmt.Errorf("failed to upload signature: %w", media.ErrEmptyURL)
	}
	return url, nil
}

func (s *Service) advanceJob(ctx context.Context, job *models.Job, signatureURL string) error {
	updated := *job
	updated.Status = models.JobStatusDone
	if signatureURL != "" {
		updated.SignatureImage = signatureURL
	}
	if updated.CompletionDate == nil {
		now := time.Now().UTC()
		updated.CompletionDate = &now
	}
	if err := s.store.UpsertJob(ctx, &updated); err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	*job = updated
	return nil
}

// RetryJobUpdate re-runs only the job update for an already saved completion.
func (s *Service) RetryJobUpdate(ctx context.Context, jobID string) (*models.Job, error) {
	rec, err := s.store.GetCompletion(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load completion: %w", err)
	}
	if rec == nil {
		return nil, ErrNoCompletion
	}
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	if err := s.advanceJob(ctx, job, rec.SignatureURL); err != nil {
		return nil, &Error{Stage: StageJob, Err: err}
	}
	logrus.WithField("job_id", jobID).Info("job status update retried")
	return job, nil
}

// OpenSession starts a completion form for a job, preloaded with whatever
// completion is already saved. If the job already has an unsubmitted
// session, that session is returned and resumed is true.
func (s *Service) OpenSession(ctx context.Context, jobID string) (sess *Session, resumed bool, err error) {
	if open, ok := s.sessions.ForJob(jobID); ok {
		return open, true, nil
	}

	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	existing, err := s.store.GetCompletion(ctx, jobID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load completion: %w", err)
	}

	fresh := newSession(job.ID)
	fresh.existingSignature = ResolveSignature("", existing, job)
	if existing != nil {
		fresh.rating = NormalizeRating(existing.Rating)
		fresh.comment = existing.Comment
		for _, m := range existing.Media {
			if m.URL == "" {
				continue
			}
			if err := fresh.List.Append(media.FromSaved(m)); err != nil {
				fresh.Close()
				return nil, false, err
			}
		}
	}

	sess, resumed = s.sessions.add(fresh)
	if resumed {
		fresh.Close()
		return sess, true, nil
	}
	logrus.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"job_id":     job.ID,
		"preloaded":  sess.List.Len(),
	}).Info("completion session opened")
	return sess, false, nil
}

// Submit completes the job from an open session.
func (s *Service) Submit(ctx context.Context, sessionID string, rating int, comment string) (*models.CompletionRecord, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if rating != 0 {
		sess.rating = NormalizeRating(rating)
	}
	sess.comment = comment
	req := Request{
		JobID:             sess.JobID,
		List:              sess.List,
		ExistingSignature: sess.existingSignature,
		Rating:            sess.rating,
		Comment:           sess.comment,
	}
	if sess.signature != nil {
		req.Signature = sess.signature.Data
		req.SignatureURL = sess.signature.URL
	}
	sess.mu.Unlock()

	rec, err := s.Complete(ctx, req)
	var cerr *Error
	switch {
	case rec != nil:
		sess.mu.Lock()
		sess.submitted = true
		if sess.signature != nil {
			sess.signature.URL = rec.SignatureURL
			sess.signature.Data = nil
		}
		sess.mu.Unlock()
	case errors.As(err, &cerr) && cerr.SignatureURL != "":
		sess.mu.Lock()
		if sess.signature != nil && sess.signature.URL == "" {
			sess.signature.URL = cerr.SignatureURL
		}
		sess.mu.Unlock()
	}
	if err != nil && !errors.Is(err, ErrJobNotAdvanced) {
		return nil, err
	}
	return rec, err
}
