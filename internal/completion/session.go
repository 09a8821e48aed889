package completion

import (
	"context"
	"sync"
	"time"

	"fieldjob-backend/internal/capture"
	"fieldjob-backend/internal/media"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Signature is a drawn signature waiting for upload. URL is set once it has
// been uploaded so a retried submit does not upload it again.
type Signature struct {
	Data []byte
	URL  string
}

// Session is one technician's completion form for a job: the staged media,
// the signature, the rating and comment, and an optional video capture.
type Session struct {
	ID        string
	JobID     string
	List      *media.StagingList
	CreatedAt time.Time

	mu                sync.Mutex
	rating            int
	comment           string
	existingSignature string
	signature         *Signature
	video             *capture.Session
	submitted         bool
	lastActive        time.Time
}

func newSession(jobID string) *Session {
	return &Session{
		ID:         uuid.NewString(),
		JobID:      jobID,
		List:       media.NewStagingList(),
		CreatedAt:  time.Now().UTC(),
		rating:     DefaultRating,
		lastActive: time.Now(),
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) Rating() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rating
}

func (s *Session) Comment() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.comment
}

// SignatureURL is the signature the record would carry right now.
func (s *Session) SignatureURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.signature != nil && s.signature.URL != "" {
		return s.signature.URL
	}
	return s.existingSignature
}

func (s *Session) HasNewSignature() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signature != nil
}

func (s *Session) SetSignature(png []byte) {
	s.mu.Lock()
	s.signature = &Signature{Data: png}
	s.mu.Unlock()
}

func (s *Session) Submitted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitted
}

// Video returns the open capture session, if any.
func (s *Session) Video() *capture.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.video
}

// SetVideo attaches a capture session, closing any previous one.
func (s *Session) SetVideo(v *capture.Session) {
	s.mu.Lock()
	prev := s.video
	s.video = v
	s.mu.Unlock()
	if prev != nil && prev != v {
		_ = prev.Close()
	}
}

// Close releases the video capture and every staged local handle.
func (s *Session) Close() {
	s.SetVideo(nil)
	s.List.Close()
	logrus.WithFields(logrus.Fields{"session_id": s.ID, "job_id": s.JobID}).Debug("completion session closed")
}

// Registry holds the open sessions, at most one unsubmitted session per job.
type Registry struct {
	mu    sync.Mutex
	byID  map[string]*Session
	byJob map[string]string
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Session), byJob: make(map[string]string)}
}

// add registers s unless the job already has an unsubmitted session, in
// which case that session is returned instead. A submitted session of the
// job is replaced and closed.
func (r *Registry) add(s *Session) (*Session, bool) {
	r.mu.Lock()
	var prev *Session
	if id, ok := r.byJob[s.JobID]; ok {
		prev = r.byID[id]
		if prev != nil && !prev.Submitted() {
			r.mu.Unlock()
			prev.touch()
			return prev, true
		}
		delete(r.byID, id)
	}
	r.byID[s.ID] = s
	r.byJob[s.JobID] = s.ID
	r.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	return s, false
}

// ForJob returns the unsubmitted session of a job, if any.
func (r *Registry) ForJob(jobID string) (*Session, bool) {
	r.mu.Lock()
	s, ok := r.byID[r.byJob[jobID]]
	r.mu.Unlock()
	if !ok || s.Submitted() {
		return nil, false
	}
	s.touch()
	return s, true
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch()
	return s, nil
}

// Remove closes and forgets a session.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	s, ok := r.byID[id]
	if ok {
		delete(r.byID, id)
		if r.byJob[s.JobID] == id {
			delete(r.byJob, s.JobID)
		}
	}
	r.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	return nil
}

// Expire closes every session not used since before, releasing its staged
// files and camera grant. It returns the number of sessions closed.
func (r *Registry) Expire(before time.Time) int {
	r.mu.Lock()
	var idle []*Session
	for id, s := range r.byID {
		if !s.idleSince().Before(before) {
			continue
		}
		idle = append(idle, s)
		delete(r.byID, id)
		if r.byJob[s.JobID] == id {
			delete(r.byJob, s.JobID)
		}
	}
	r.mu.Unlock()

	for _, s := range idle {
		logrus.WithFields(logrus.Fields{"session_id": s.ID, "job_id": s.JobID}).Info("closing idle completion session")
		s.Close()
	}
	return len(idle)
}

// ExpireIdle runs Expire every interval until ctx is done.
func (r *Registry) ExpireIdle(ctx context.Context, idle, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Expire(time.Now().Add(-idle))
		}
	}
}

// CloseAll closes every session, e.g. on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.byID))
	for _, s := range r.byID {
		sessions = append(sessions, s)
	}
	r.byID = make(map[string]*Session)
	r.byJob = make(map[string]string)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
