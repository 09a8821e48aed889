package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"fieldjob-backend/internal/models"
	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnsupported = errors.New("unsupported media type")
	ErrTooLarge    = errors.New("media exceeds the upload size limit")
)

const previewMaxEdge = 480

// Stager spools incoming files into a directory, probes them and builds
// pending descriptors with a local preview.
type Stager struct {
	Dir      string
	MaxBytes int64
}

func NewStager(dir string, maxBytes int64) (*Stager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging dir: %w", err)
	}
	return &Stager{Dir: dir, MaxBytes: maxBytes}, nil
}

// Stage copies r into the staging directory and describes it. batchGeo is
// the position captured once for the whole selection; when it is unknown
// the file's own embedded location is used, if any.
func (s *Stager) Stage(ctx context.Context, name string, r io.Reader, batchGeo *models.GeoPoint) (*Descriptor, error) {
	f, err := os.CreateTemp(s.Dir, "media-*"+strings.ToLower(filepath.Ext(name)))
	if err != nil {
		return nil, fmt.Errorf("failed to create staging file: %w", err)
	}
	path := f.Name()
	cleanup := func() { _ = os.Remove(path) }

	src := r
	if s.MaxBytes > 0 {
		src = io.LimitReader(r, s.MaxBytes+1)
	}
	n, err := io.Copy(f, src)
	closeErr := f.Close()
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to write staging file: %w", err)
	}
	if closeErr != nil {
		cleanup()
		return nil, fmt.Errorf("failed to write staging file: %w", closeErr)
	}
	if s.MaxBytes > 0 && n > s.MaxBytes {
		cleanup()
		return nil, ErrTooLarge
	}

	kind, contentType, ok, err := Sniff(path)
	if err != nil {
		cleanup()
		return nil, err
	}
	if !ok {
		cleanup()
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, contentType)
	}

	meta := Metadata{Kind: kind, ContentType: contentType}
	var preview *Preview
	switch kind {
	case models.MediaPhoto:
		if img := probePhoto(path, &meta); img != nil {
			preview = s.renderPreview(path, img)
		}
	case models.MediaVideo:
		probeVideo(ctx, path, &meta)
		preview = &Preview{Path: path, ContentType: contentType}
	}

	geo := batchGeo
	if geo == nil {
		geo = meta.Location
	}

	d := New(kind, &FileSource{Path: path, FileName: name, MIME: contentType, Bytes: n}, preview, geo)
	d.Resolution = meta.Resolution

	logrus.WithFields(logrus.Fields{
		"media_id":     d.ID,
		"kind":         d.Kind,
		"content_type": contentType,
		"size":         d.Size,
		"resolution":   d.Resolution,
		"has_geo":      d.Geo != nil,
	}).Debug("media staged")

	return d, nil
}

// StageClip describes a recorded clip. The clip file is kept as the preview.
func (s *Stager) StageClip(ctx context.Context, data []byte, contentType string, batchGeo *models.GeoPoint) (*Descriptor, error) {
	ext := ".mp4"
	if strings.Contains(contentType, "webm") {
		ext = ".webm"
	}
	f, err := os.CreateTemp(s.Dir, "clip-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("failed to create clip file: %w", err)
	}
	path := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to write clip file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to write clip file: %w", err)
	}

	meta := Metadata{Kind: models.MediaVideo, ContentType: contentType}
	probeVideo(ctx, path, &meta)

	src := &BytesSource{FileName: "recording" + ext, MIME: contentType, Data: data}
	d := New(models.MediaVideo, src, &Preview{Path: path, ContentType: contentType, Owned: true}, batchGeo)
	d.Resolution = meta.Resolution
	return d, nil
}

func (s *Stager) renderPreview(path string, img image.Image) *Preview {
	thumb := imaging.Fit(img, previewMaxEdge, previewMaxEdge, imaging.Lanczos)
	out := strings.TrimSuffix(path, filepath.Ext(path)) + ".preview.jpg"
	if err := imaging.Save(thumb, out, imaging.JPEGQuality(80)); err != nil {
		logrus.WithError(err).WithField("path", path).Warn("failed to render preview")
		return nil
	}
	return &Preview{Path: out, ContentType: "image/jpeg", Owned: true}
}
