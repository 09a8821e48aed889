// Package geo captures a best-effort location for staged evidence.
package geo

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"fieldjob-backend/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnavailable      = errors.New("location unavailable")
	ErrPermissionDenied = errors.New("location permission denied")
)

type Position struct {
	Latitude  float64
	Longitude float64
}

func (p Position) valid() bool {
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

type Provider interface {
	CurrentPosition(ctx context.Context) (Position, error)
}

type ProviderFunc func(ctx context.Context) (Position, error)

func (f ProviderFunc) CurrentPosition(ctx context.Context) (Position, error) {
	return f(ctx)
}

// Snapshot asks the provider for a position and waits at most timeout.
// Denial, failure and timeout all resolve to nil ("unknown"). The provider
// call is not cancelled by the timeout; a late result is dropped.
func Snapshot(ctx context.Context, p Provider, timeout time.Duration) *models.GeoPoint {
	if p == nil {
		return nil
	}

	result := make(chan *models.GeoPoint, 1)
	go func() {
		pos, err := p.CurrentPosition(ctx)
		if err != nil {
			logrus.WithError(err).Debug("geo snapshot unavailable")
			result <- nil
			return
		}
		if !pos.valid() {
			result <- nil
			return
		}
		result <- &models.GeoPoint{Lat: pos.Latitude, Lng: pos.Longitude}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case g := <-result:
		return g
	case <-timer.C:
		logrus.WithField("timeout", timeout.String()).Debug("geo snapshot timed out")
		return nil
	case <-ctx.Done():
		return nil
	}
}

// Fixed reports a position supplied by the client, e.g. from form fields.
func Fixed(pos Position) Provider {
	return ProviderFunc(func(context.Context) (Position, error) {
		return pos, nil
	})
}

// FromStrings parses client-reported coordinates. Missing or malformed
// values give a provider that always reports ErrUnavailable.
func FromStrings(lat, lng string) Provider {
	la, errLat := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	ln, errLng := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if errLat != nil || errLng != nil {
		return ProviderFunc(func(context.Context) (Position, error) {
			return Position{}, ErrUnavailable
		})
	}
	return Fixed(Position{Latitude: la, Longitude: ln})
}

// Chain tries each provider in order and returns the first valid position.
type Chain []Provider

func (c Chain) CurrentPosition(ctx context.Context) (Position, error) {
	for _, p := range c {
		if p == nil {
			continue
		}
		pos, err := p.CurrentPosition(ctx)
		if err == nil && pos.valid() {
			return pos, nil
		}
		if ctx.Err() != nil {
			return Position{}, ctx.Err()
		}
	}
	return Position{}, ErrUnavailable
}
