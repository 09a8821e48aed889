// Package media holds staged evidence (photos and video clips) between
// capture and upload, and the ordered staging list a completion session owns.
package media

import (
	"errors"
	"os"
	"time"

	"fieldjob-backend/internal/models"
	"github.com/google/uuid"
)

type State string

const (
	StatePending   State = "pending"
	StateUploading State = "uploading"
	StateSuccess   State = "success"
	StateError     State = "error"
)

// Source is the staged payload of a descriptor. It is owned by the staging
// list until the upload succeeds.
type Source interface {
	Name() string
	ContentType() string
	Size() int64
	ReadAll() ([]byte, error)
	Release() error
}

// FileSource is a payload spooled to the staging directory.
type FileSource struct {
	Path     string
	FileName string
	MIME     string
	Bytes    int64
}

func (s *FileSource) Name() string        { return s.FileName }
func (s *FileSource) ContentType() string { return s.MIME }
func (s *FileSource) Size() int64         { return s.Bytes }

func (s *FileSource) ReadAll() ([]byte, error) {
	return os.ReadFile(s.Path)
}

func (s *FileSource) Release() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// BytesSource is an in-memory payload, e.g. a recorded clip.
type BytesSource struct {
	FileName string
	MIME     string
	Data     []byte
}

func (s *BytesSource) Name() string        { return s.FileName }
func (s *BytesSource) ContentType() string { return s.MIME }
func (s *BytesSource) Size() int64         { return int64(len(s.Data)) }

func (s *BytesSource) ReadAll() ([]byte, error) {
	if s.Data == nil {
		return nil, errors.New("source already released")
	}
	return s.Data, nil
}

func (s *BytesSource) Release() error {
	s.Data = nil
	return nil
}

// Preview is a locally displayable rendition of the staged payload.
// Owned previews are deleted on release; borrowed ones (a clip file that
// doubles as its own preview) are left for the source to clean up.
type Preview struct {
	Path        string
	ContentType string
	Owned       bool
}

func (p *Preview) Release() error {
	if p == nil || !p.Owned || p.Path == "" {
		return nil
	}
	if err := os.Remove(p.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

type Descriptor struct {
	ID         string
	Kind       models.MediaKind
	Source     Source
	Preview    *Preview
	Note       string
	Geo        *models.GeoPoint
	Resolution string
	Size       string
	CapturedAt time.Time
	State      State
	URL        string
	Err        error
}

// NewID returns a time-ordered identifier. Falls back to a random UUID if
// the v7 generator fails.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// New builds a pending descriptor over src.
func New(kind models.MediaKind, src Source, preview *Preview, geo *models.GeoPoint) *Descriptor {
	d := &Descriptor{
		ID:         NewID(),
		Kind:       kind,
		Source:     src,
		Preview:    preview,
		Geo:        geo,
		CapturedAt: time.Now().UTC(),
		State:      StatePending,
	}
	if src != nil {
		d.Size = FormatSize(src.Size())
	}
	return d
}

// FromSaved restores a previously persisted entry. It enters the list as
// already uploaded.
func FromSaved(m models.CompletionMedia) *Descriptor {
	return &Descriptor{
		ID:         NewID(),
		Kind:       m.Kind,
		Note:       m.Note,
		Geo:        m.Geo,
		Resolution: m.Resolution,
		Size:       m.Size,
		CapturedAt: m.CapturedAt,
		State:      StateSuccess,
		URL:        m.URL,
	}
}

// Finalized is the persisted form of an uploaded descriptor.
func (d Descriptor) Finalized() models.CompletionMedia {
	return models.CompletionMedia{
		URL:        d.URL,
		Kind:       d.Kind,
		Note:       d.Note,
		Geo:        d.Geo,
		CapturedAt: d.CapturedAt,
		Resolution: d.Resolution,
		Size:       d.Size,
	}
}

func (d *Descriptor) release() error {
	var errs []error
	if d.Preview != nil {
		errs = append(errs, d.Preview.Release())
		d.Preview = nil
	}
	if d.Source != nil {
		errs = append(errs, d.Source.Release())
		d.Source = nil
	}
	return errors.Join(errs...)
}

// Discard releases the local handles of a descriptor that never made it into
// a staging list.
func (d *Descriptor) Discard() error {
	return d.release()
}
