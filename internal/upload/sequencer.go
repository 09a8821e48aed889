// Package upload drains a staging list into the blob store, one item at a time.
package upload

import (
	"context"
	"errors"
	"fmt"

	"fieldjob-backend/internal/media"
	"fieldjob-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// File is one payload handed to the blob store.
type File struct {
	Name        string
	ContentType string
	Kind        models.MediaKind
	Data        []byte
}

// BlobStore is the durable object storage media is uploaded to.
type BlobStore interface {
	// Upload stores f under the job and returns its durable public url.
	Upload(ctx context.Context, jobID string, f File) (string, error)
}

// Error reports the first item that failed. Items before it stay uploaded.
type Error struct {
	Index int
	ID    string
	Kind  models.MediaKind
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s upload failed: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Sequencer uploads a staging list strictly in order, never two at once.
type Sequencer struct {
	store BlobStore
}

func NewSequencer(store BlobStore) *Sequencer {
	return &Sequencer{store: store}
}

// Run uploads every pending item of list in insertion order and returns the
// finalized entries. Items already uploaded pass through untouched, so a
// retry after a failure only uploads what is left. The first failure stops
// the run.
func (s *Sequencer) Run(ctx context.Context, jobID string, list *media.StagingList) ([]models.CompletionMedia, error) {
	if n := list.ResetFailed(); n > 0 {
		logrus.WithFields(logrus.Fields{"job_id": jobID, "count": n}).Info("retrying failed media uploads")
	}

	items := list.Items()
	out := make([]models.CompletionMedia, 0, len(items))

	for i, d := range items {
		if d.State == media.StateSuccess && d.URL != "" {
			out = append(out, d.Finalized())
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, &Error{Index: i, ID: d.ID, Kind: d.Kind, Err: err}
		}

		url, err := s.uploadOne(ctx, jobID, list, d)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"job_id":   jobID,
				"media_id": d.ID,
				"index":    i,
				"kind":     d.Kind,
			}).WithError(err).Error("media upload failed")
			return nil, &Error{Index: i, ID: d.ID, Kind: d.Kind, Err: err}
		}

		// Notes may have been edited while earlier items uploaded.
		if cur, ok := list.Get(d.ID); ok {
			d = cur
		}
		d.URL = url
		d.State = media.StateSuccess
		out = append(out, d.Finalized())

		logrus.WithFields(logrus.Fields{
			"job_id":   jobID,
			"media_id": d.ID,
			"index":    i,
			"kind":     d.Kind,
		}).Debug("media uploaded")
	}

	return out, nil
}

func (s *Sequencer) uploadOne(ctx context.Context, jobID string, list *media.StagingList, d media.Descriptor) (string, error) {
	if err := list.MarkUploading(d.ID); err != nil {
		return "", err
	}

	src, err := list.Source(d.ID)
	if err != nil {
		return "", s.fail(list, d.ID, err)
	}
	data, err := src.ReadAll()
	if err != nil {
		return "", s.fail(list, d.ID, fmt.Errorf("failed to read staged media: %w", err))
	}

	url, err := s.store.Upload(ctx, jobID, File{
		Name:        src.Name(),
		ContentType: src.ContentType(),
		Kind:        d.Kind,
		Data:        data,
	})
	if err != nil {
		return "", s.fail(list, d.ID, err)
	}

	if err := list.MarkSuccess(d.ID, url); err != nil {
		if errors.Is(err, media.ErrEmptyURL) {
			return "", err
		}
		return "", s.fail(list, d.ID, err)
	}
	return url, nil
}

func (s *Sequencer) fail(list *media.StagingList, id string, cause error) error {
	if err := list.MarkError(id, cause); err != nil {
		logrus.WithError(err).WithField("media_id", id).Warn("failed to record upload error")
	}
	return cause
}
