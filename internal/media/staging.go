package media

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	ErrNotFound          = errors.New("media item not found")
	ErrLocked            = errors.New("staging list is locked for submission")
	ErrFinalized         = errors.New("staging list already submitted")
	ErrDuplicate         = errors.New("media item already staged")
	ErrInvalidTransition = errors.New("invalid media state transition")
	ErrEmptyURL          = errors.New("upload returned an empty url")
)

// StagingList is the ordered set of descriptors one completion session owns.
// Items are returned as value copies; all mutation goes through the list.
type StagingList struct {
	mu        sync.Mutex
	order     []string
	items     map[string]*Descriptor
	locked    bool
	finalized bool
}

func NewStagingList() *StagingList {
	return &StagingList{items: make(map[string]*Descriptor)}
}

// Append adds d at the end of the list.
func (l *StagingList) Append(d *Descriptor) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.finalized {
		return ErrFinalized
	}
	if l.locked {
		return ErrLocked
	}
	if _, ok := l.items[d.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, d.ID)
	}
	if d.State == "" {
		d.State = StatePending
	}
	l.items[d.ID] = d
	l.order = append(l.order, d.ID)
	return nil
}

// Remove discards an item and releases its preview and source.
func (l *StagingList) Remove(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.finalized {
		return ErrFinalized
	}
	if l.locked {
		return ErrLocked
	}
	d, ok := l.items[id]
	if !ok {
		return ErrNotFound
	}
	if d.State == StateUploading {
		return fmt.Errorf("%w: item is uploading", ErrInvalidTransition)
	}

	delete(l.items, id)
	for i, oid := range l.order {
		if oid == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	if err := d.release(); err != nil {
		logrus.WithError(err).WithField("media_id", id).Warn("failed to release staged media")
	}
	return nil
}

// Annotate replaces the note of an item. While the list is locked for
// submit only items not yet uploaded accept a new note.
func (l *StagingList) Annotate(id, note string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.finalized {
		return ErrFinalized
	}
	d, ok := l.items[id]
	if !ok {
		return ErrNotFound
	}
	if d.State == StateUploading {
		return fmt.Errorf("%w: item is uploading", ErrInvalidTransition)
	}
	// During a submit an uploaded entry is already part of the record.
	if l.locked && d.State == StateSuccess {
		return fmt.Errorf("%w: item already uploaded", ErrLocked)
	}
	d.Note = note
	return nil
}

func (l *StagingList) Get(id string) (Descriptor, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, ok := l.items[id]
	if !ok {
		return Descriptor{}, false
	}
	return *d, true
}

// Items returns the descriptors in insertion order.
func (l *StagingList) Items() []Descriptor {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Descriptor, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, *l.items[id])
	}
	return out
}

func (l *StagingList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}

// Lock starts a submission. A second Lock while one is running fails.
func (l *StagingList) Lock() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.finalized {
		return ErrFinalized
	}
	if l.locked {
		return ErrLocked
	}
	l.locked = true
	return nil
}

func (l *StagingList) Unlock() {
	l.mu.Lock()
	l.locked = false
	l.mu.Unlock()
}

// Finalize marks the submission as persisted. The list is read-only afterwards.
func (l *StagingList) Finalize() {
	l.mu.Lock()
	l.locked = false
	l.finalized = true
	l.mu.Unlock()
}

func (l *StagingList) Locked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locked
}

func (l *StagingList) Finalized() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.finalized
}

// ResetFailed moves every errored item back to pending and reports how many.
func (l *StagingList) ResetFailed() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, d := range l.items {
		if d.State == StateError {
			d.State = StatePending
			d.Err = nil
			n++
		}
	}
	return n
}

func (l *StagingList) MarkUploading(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, ok := l.items[id]
	if !ok {
		return ErrNotFound
	}
	if d.State != StatePending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.State, StateUploading)
	}
	d.State = StateUploading
	d.Err = nil
	return nil
}

// MarkSuccess records the durable url and releases the local payload.
// An empty url is recorded as an error instead.
func (l *StagingList) MarkSuccess(id, url string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, ok := l.items[id]
	if !ok {
		return ErrNotFound
	}
	if d.State != StateUploading {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.State, StateSuccess)
	}
	if url == "" {
		d.State = StateError
		d.Err = ErrEmptyURL
		return ErrEmptyURL
	}
	d.State = StateSuccess
	d.URL = url
	d.Err = nil
	if err := d.release(); err != nil {
		logrus.WithError(err).WithField("media_id", id).Warn("failed to release uploaded media")
	}
	return nil
}

func (l *StagingList) MarkError(id string, cause error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, ok := l.items[id]
	if !ok {
		return ErrNotFound
	}
	if d.State != StateUploading {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.State, StateError)
	}
	d.State = StateError
	d.Err = cause
	return nil
}

// PreviewPath returns the local preview file of an item, if it still has one.
func (l *StagingList) PreviewPath(id string) (path, contentType string, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, found := l.items[id]
	if !found || d.Preview == nil || d.Preview.Path == "" {
		return "", "", false
	}
	return d.Preview.Path, d.Preview.ContentType, true
}

// Source returns the staged payload of an item for upload.
func (l *StagingList) Source(id string) (Source, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, ok := l.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	if d.Source == nil {
		return nil, fmt.Errorf("media item %s has no staged payload", id)
	}
	return d.Source, nil
}

// Close releases every local handle still held. Uploaded items keep their url.
func (l *StagingList) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, d := range l.items {
		if err := d.release(); err != nil {
			logrus.WithError(err).WithField("media_id", id).Warn("failed to release staged media")
		}
	}
}
