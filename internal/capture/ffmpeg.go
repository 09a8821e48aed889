package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	chunkSize   = 64 * 1024
	stopTimeout = 5 * time.Second
)

// FFmpegDevice records from a V4L2 camera node per facing mode and an ALSA
// microphone, encoding fragmented MP4 so the output can be streamed.
type FFmpegDevice struct {
	Binary      string
	BackDevice  string
	FrontDevice string
	AudioDevice string
}

func (d *FFmpegDevice) node(f Facing) string {
	if f == FacingUser {
		return d.FrontDevice
	}
	return d.BackDevice
}

// Acquire checks that ffmpeg and the camera node are usable. The node is
// opened exclusively by ffmpeg only while recording.
func (d *FFmpegDevice) Acquire(ctx context.Context, c Constraints) (Stream, error) {
	bin := d.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("%w: ffmpeg not found in PATH: %v", ErrUnavailable, err)
	}

	node := d.node(c.Facing)
	if node == "" {
		return nil, fmt.Errorf("%w: no camera configured for facing %q", ErrUnavailable, c.Facing)
	}
	f, err := os.OpenFile(node, os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		return nil, fmt.Errorf("%w: failed to open camera %s: %v", ErrUnavailable, node, err)
	}
	f.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &ffmpegStream{bin: path, node: node, audio: d.AudioDevice, c: c}, nil
}

type ffmpegStream struct {
	bin   string
	node  string
	audio string
	c     Constraints

	mu  sync.Mutex
	rec *ffmpegRecorder
}

func (s *ffmpegStream) args() []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-f", "v4l2"}
	if s.c.Width > 0 && s.c.Height > 0 {
		args = append(args, "-video_size", strconv.Itoa(s.c.Width)+"x"+strconv.Itoa(s.c.Height))
	}
	args = append(args, "-i", s.node)
	if s.c.Audio && s.audio != "" {
		args = append(args, "-f", "alsa", "-i", s.audio, "-c:a", "aac")
	}
	return append(args,
		"-c:v", "libx264", "-preset", "veryfast", "-pix_fmt", "yuv420p",
		"-movflags", "frag_keyframe+empty_moov+default_base_moof",
		"-f", "mp4", "pipe:1",
	)
}

func (s *ffmpegStream) StartRecorder(onChunk func([]byte)) (Recorder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec != nil {
		return nil, errors.New("recorder already running")
	}

	// Recording outlives the request that started it.
	cmd := exec.Command(s.bin, s.args()...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open ffmpeg stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	r := &ffmpegRecorder{cmd: cmd, stdin: stdin, done: make(chan struct{})}
	go r.pump(stdout, onChunk)
	s.rec = r

	logrus.WithFields(logrus.Fields{
		"camera": s.node,
		"facing": s.c.Facing,
		"pid":    cmd.Process.Pid,
	}).Info("recording started")
	return r, nil
}

func (s *ffmpegStream) Release() error {
	s.mu.Lock()
	rec := s.rec
	s.rec = nil
	s.mu.Unlock()
	if rec != nil {
		return rec.Stop()
	}
	return nil
}

type ffmpegRecorder struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	done  chan struct{}
	once  sync.Once
	err   error
}

func (r *ffmpegRecorder) pump(stdout io.Reader, onChunk func([]byte)) {
	defer close(r.done)
	buf := make([]byte, chunkSize)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			onChunk(buf[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logrus.WithError(err).Warn("ffmpeg output read failed")
			}
			return
		}
	}
}

func (r *ffmpegRecorder) ContentType() string { return "video/mp4" }

// Stop asks ffmpeg to finish ("q" on stdin), waits for the remaining output
// and kills the process if it does not exit in time.
func (r *ffmpegRecorder) Stop() error {
	r.once.Do(func() {
		_, _ = io.WriteString(r.stdin, "q")
		_ = r.stdin.Close()

		select {
		case <-r.done:
		case <-time.After(stopTimeout):
			logrus.Warn("ffmpeg did not stop in time, killing")
			_ = r.cmd.Process.Kill()
			<-r.done
		}
		if err := r.cmd.Wait(); err != nil {
			r.err = fmt.Errorf("ffmpeg exited: %w", err)
		}
	})
	return r.err
}
