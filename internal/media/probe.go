package media

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"fieldjob-backend/internal/models"
	"github.com/disintegration/imaging"
	"github.com/evanoberholster/imagemeta"
	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"
)

// Metadata is what can be learned from the staged bytes alone. Everything
// except Kind and ContentType is best effort.
type Metadata struct {
	Kind        models.MediaKind
	ContentType string
	Resolution  string
	Location    *models.GeoPoint
}

// Sniff classifies a file by content. ok is false for anything that is
// neither an image nor a video.
func Sniff(path string) (kind models.MediaKind, contentType string, ok bool, err error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", "", false, fmt.Errorf("failed to detect content type: %w", err)
	}
	contentType = strings.TrimSpace(strings.SplitN(mt.String(), ";", 2)[0])
	switch {
	case strings.HasPrefix(contentType, "video/"):
		return models.MediaVideo, contentType, true, nil
	case strings.HasPrefix(contentType, "image/"):
		return models.MediaPhoto, contentType, true, nil
	}
	return "", contentType, false, nil
}

// probePhoto decodes the image (honouring EXIF orientation) and reads the
// embedded GPS position. The decoded image is returned for preview rendering;
// it is nil when the format cannot be decoded (e.g. HEIC).
func probePhoto(path string, meta *Metadata) image.Image {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		logrus.WithError(err).WithField("path", path).Debug("photo not decodable, skipping resolution")
	} else {
		b := img.Bounds()
		meta.Resolution = fmt.Sprintf("%dx%d", b.Dx(), b.Dy())
	}

	f, err := os.Open(path)
	if err != nil {
		return img
	}
	defer f.Close()

	exifData, err := imagemeta.Decode(f)
	if err != nil {
		return img
	}
	lat, lng := exifData.GPS.Latitude(), exifData.GPS.Longitude()
	if lat != 0 || lng != 0 {
		meta.Location = &models.GeoPoint{Lat: lat, Lng: lng}
	}
	return img
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Tags map[string]string `json:"tags"`
}

type ffprobeStream struct {
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// probeVideo asks ffprobe for the first video stream's size and a
// QuickTime/MP4 location tag. Without ffprobe on PATH it does nothing.
func probeVideo(ctx context.Context, path string, meta *Metadata) {
	bin, err := exec.LookPath("ffprobe")
	if err != nil {
		logrus.Debug("ffprobe not found in PATH, skipping video metadata")
		return
	}

	out, err := exec.CommandContext(ctx, bin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	).Output()
	if err != nil {
		logrus.WithError(err).WithField("path", path).Debug("ffprobe failed")
		return
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		logrus.WithError(err).Debug("failed to parse ffprobe output")
		return
	}

	for _, s := range probe.Streams {
		if s.CodecType == "video" && s.Width > 0 && s.Height > 0 {
			meta.Resolution = fmt.Sprintf("%dx%d", s.Width, s.Height)
			break
		}
	}
	for key, value := range probe.Format.Tags {
		switch strings.ToLower(key) {
		case "location", "location-eng", "com.apple.quicktime.location.iso6709":
			if meta.Location == nil {
				meta.Location = parseISO6709(value)
			}
		}
	}
}

var iso6709 = regexp.MustCompile(`^([+-]\d+\.?\d*)([+-]\d+\.?\d*)(?:[+-]\d+\.?\d*)?$`)

// parseISO6709 reads "+13.7563+100.5018+012.000/" style locations.
func parseISO6709(value string) *models.GeoPoint {
	m := iso6709.FindStringSubmatch(strings.TrimSuffix(strings.TrimSpace(value), "/"))
	if len(m) < 3 {
		return nil
	}
	lat, errLat := strconv.ParseFloat(m[1], 64)
	lng, errLng := strconv.ParseFloat(m[2], 64)
	if errLat != nil || errLng != nil || (lat == 0 && lng == 0) {
		return nil
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil
	}
	return &models.GeoPoint{Lat: lat, Lng: lng}
}
