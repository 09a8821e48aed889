// Package capture drives a camera+microphone through a record, preview and
// confirm cycle.
package capture

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrPermissionDenied = errors.New("camera or microphone access denied")
	ErrDeviceBusy       = errors.New("capture device already in use")
	ErrInvalidState     = errors.New("invalid capture state")
	ErrUnavailable      = errors.New("capture device unavailable")
)

type Facing string

const (
	FacingEnvironment Facing = "environment"
	FacingUser        Facing = "user"
)

// ParseFacing maps "" to the back camera.
func ParseFacing(s string) Facing {
	if Facing(s) == FacingUser {
		return FacingUser
	}
	return FacingEnvironment
}

func (f Facing) Other() Facing {
	if f == FacingUser {
		return FacingEnvironment
	}
	return FacingUser
}

type Constraints struct {
	Facing Facing
	Width  int
	Height int
	Audio  bool
}

// DefaultConstraints asks for 1280x720 video with audio.
func DefaultConstraints(f Facing) Constraints {
	return Constraints{Facing: f, Width: 1280, Height: 720, Audio: true}
}

type Device interface {
	Acquire(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is an acquired camera+microphone grant.
type Stream interface {
	// StartRecorder begins encoding; onChunk receives encoded data in order.
	StartRecorder(onChunk func([]byte)) (Recorder, error)
	Release() error
}

type Recorder interface {
	// Stop flushes pending chunks to onChunk before returning.
	Stop() error
	ContentType() string
}

type exclusiveDevice struct {
	dev  Device
	mu   sync.Mutex
	held bool
}

// Exclusive wraps dev so that only one stream can be held at a time.
// A second Acquire fails with ErrDeviceBusy until the first is released.
func Exclusive(dev Device) Device {
	return &exclusiveDevice{dev: dev}
}

func (e *exclusiveDevice) Acquire(ctx context.Context, c Constraints) (Stream, error) {
	e.mu.Lock()
	if e.held {
		e.mu.Unlock()
		return nil, ErrDeviceBusy
	}
	e.held = true
	e.mu.Unlock()

	s, err := e.dev.Acquire(ctx, c)
	if err != nil {
		e.free()
		return nil, err
	}
	return &grant{Stream: s, free: e.free}, nil
}

func (e *exclusiveDevice) free() {
	e.mu.Lock()
	e.held = false
	e.mu.Unlock()
}

type grant struct {
	Stream
	once sync.Once
	free func()
}

func (g *grant) Release() error {
	var err error
	g.once.Do(func() {
		err = g.Stream.Release()
		g.free()
	})
	return err
}
