package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type State string

const (
	StateAcquiring  State = "acquiring"
	StateLive       State = "live"
	StateRecording  State = "recording"
	StatePreviewing State = "previewing"
	StateConfirmed  State = "confirmed"
	StateClosed     State = "closed"
)

// Clip is a finished recording handed over on Confirm.
type Clip struct {
	Data        []byte
	ContentType string
}

type Option func(*Session)

// WithTick overrides the elapsed-time tick (one second by default).
func WithTick(d time.Duration) Option {
	return func(s *Session) { s.tick = d }
}

// WithPreviewDir sets where the preview file of a stopped recording is written.
func WithPreviewDir(dir string) Option {
	return func(s *Session) { s.previewDir = dir }
}

// Session is one video capture, from camera acquisition to a confirmed clip.
// Every path out of the session (confirm, close, failed re-acquire) releases
// the stream, recorder, ticker and preview file.
type Session struct {
	mu         sync.Mutex
	device     Device
	facing     Facing
	state      State
	stream     Stream
	recorder   Recorder
	chunkMu    sync.Mutex
	chunks     [][]byte
	clip       []byte
	clipType   string
	preview    string
	elapsed    int
	stopTicker chan struct{}
	tick       time.Duration
	previewDir string
}

// Open acquires the camera facing the given way. On failure nothing is held.
func Open(ctx context.Context, device Device, facing Facing, opts ...Option) (*Session, error) {
	s := &Session{
		device:     device,
		facing:     facing,
		state:      StateAcquiring,
		tick:       time.Second,
		previewDir: os.TempDir(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.acquireLocked(ctx); err != nil {
		s.state = StateClosed
		return nil, err
	}
	return s, nil
}

func (s *Session) acquireLocked(ctx context.Context) error {
	s.state = StateAcquiring
	stream, err := s.device.Acquire(ctx, DefaultConstraints(s.facing))
	if err != nil {
		logrus.WithError(err).WithField("facing", s.facing).Warn("camera acquisition failed")
		return err
	}
	s.stream = stream
	s.state = StateLive
	return nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Facing() Facing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.facing
}

// Elapsed is the number of whole seconds recorded so far.
func (s *Session) Elapsed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

// Preview returns the path of the recorded clip while previewing.
func (s *Session) Preview() (path, contentType string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePreviewing || s.preview == "" {
		return "", "", false
	}
	return s.preview, s.clipType, true
}

func (s *Session) ClipSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clip)
}

func (s *Session) StartRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateLive {
		return fmt.Errorf("%w: cannot record while %s", ErrInvalidState, s.state)
	}

	s.resetChunks()
	s.elapsed = 0
	rec, err := s.stream.StartRecorder(s.appendChunk)
	if err != nil {
		return fmt.Errorf("failed to start recorder: %w", err)
	}
	s.recorder = rec
	s.state = StateRecording
	s.startTickerLocked()
	return nil
}

func (s *Session) appendChunk(b []byte) {
	if len(b) == 0 {
		return
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	s.chunkMu.Lock()
	s.chunks = append(s.chunks, cp)
	s.chunkMu.Unlock()
}

func (s *Session) resetChunks() {
	s.chunkMu.Lock()
	s.chunks = nil
	s.chunkMu.Unlock()
}

func (s *Session) startTickerLocked() {
	stop := make(chan struct{})
	s.stopTicker = stop
	ticker := time.NewTicker(s.tick)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.mu.Lock()
				if s.state == StateRecording {
					s.elapsed++
				}
				s.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func (s *Session) stopTickerLocked() {
	if s.stopTicker != nil {
		close(s.stopTicker)
		s.stopTicker = nil
	}
}

// StopRecording finishes the clip and makes it available for preview.
func (s *Session) StopRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRecording {
		return fmt.Errorf("%w: cannot stop while %s", ErrInvalidState, s.state)
	}
	s.stopTickerLocked()
	rec := s.recorder
	s.recorder = nil
	if err := rec.Stop(); err != nil {
		logrus.WithError(err).Warn("recorder stopped with error")
	}

	s.chunkMu.Lock()
	s.clip = bytes.Join(s.chunks, nil)
	s.chunks = nil
	s.chunkMu.Unlock()

	s.clipType = rec.ContentType()
	if len(s.clip) == 0 {
		s.state = StateLive
		return errors.New("recording produced no data")
	}

	s.preview = s.writePreviewLocked()
	s.state = StatePreviewing
	return nil
}

func (s *Session) writePreviewLocked() string {
	f, err := os.CreateTemp(s.previewDir, "capture-*.mp4")
	if err != nil {
		logrus.WithError(err).Warn("failed to create capture preview")
		return ""
	}
	defer f.Close()
	if _, err := f.Write(s.clip); err != nil {
		logrus.WithError(err).Warn("failed to write capture preview")
		_ = os.Remove(f.Name())
		return ""
	}
	return f.Name()
}

func (s *Session) discardClipLocked() {
	s.clip = nil
	s.resetChunks()
	s.elapsed = 0
	if s.preview != "" {
		if err := os.Remove(s.preview); err != nil && !errors.Is(err, os.ErrNotExist) {
			logrus.WithError(err).Warn("failed to remove capture preview")
		}
		s.preview = ""
	}
}

func (s *Session) releaseStreamLocked() {
	s.stopTickerLocked()
	if s.recorder != nil {
		if err := s.recorder.Stop(); err != nil {
			logrus.WithError(err).Debug("recorder stop on release")
		}
		s.recorder = nil
	}
	if s.stream != nil {
		if err := s.stream.Release(); err != nil {
			logrus.WithError(err).Warn("failed to release capture stream")
		}
		s.stream = nil
	}
}

// Retake throws the clip away and re-acquires the camera with the same facing.
func (s *Session) Retake(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePreviewing {
		return fmt.Errorf("%w: cannot retake while %s", ErrInvalidState, s.state)
	}
	s.discardClipLocked()
	s.releaseStreamLocked()
	if err := s.acquireLocked(ctx); err != nil {
		s.state = StateClosed
		return err
	}
	return nil
}

// SwitchFacing swaps between front and back cameras.
func (s *Session) SwitchFacing(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateLive {
		return fmt.Errorf("%w: cannot switch camera while %s", ErrInvalidState, s.state)
	}
	s.releaseStreamLocked()
	s.facing = s.facing.Other()
	if err := s.acquireLocked(ctx); err != nil {
		s.state = StateClosed
		return err
	}
	return nil
}

// Confirm hands over the clip and ends the session.
func (s *Session) Confirm() (Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePreviewing {
		return Clip{}, fmt.Errorf("%w: cannot confirm while %s", ErrInvalidState, s.state)
	}
	clip := Clip{Data: s.clip, ContentType: s.clipType}
	s.clip = nil
	s.discardClipLocked()
	s.releaseStreamLocked()
	s.state = StateConfirmed
	return clip, nil
}

// Close releases everything. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return nil
	}
	s.discardClipLocked()
	s.releaseStreamLocked()
	s.state = StateClosed
	return nil
}
