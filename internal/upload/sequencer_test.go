package upload_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fieldjob-backend/internal/media"
	"fieldjob-backend/internal/models"
	"fieldjob-backend/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu       sync.Mutex
	calls    []string
	failOn   map[string]error
	emptyOn  map[string]bool
	inFlight int32
	maxSeen  int32
}

func (s *fakeStore) Upload(ctx context.Context, jobID string, f upload.File) (string, error) {
	n := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	for {
		m := atomic.LoadInt32(&s.maxSeen)
		if n <= m || atomic.CompareAndSwapInt32(&s.maxSeen, m, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, f.Name)
	if err := s.failOn[f.Name]; err != nil {
		return "", err
	}
	if s.emptyOn[f.Name] {
		return "", nil
	}
	return fmt.Sprintf("https://cdn/%s/%s", jobID, f.Name), nil
}

func (s *fakeStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func stageAll(t *testing.T, names ...string) *media.StagingList {
	t.Helper()
	l := media.NewStagingList()
	for _, name := range names {
		kind := models.MediaPhoto
		if name[0] == 'v' {
			kind = models.MediaVideo
		}
		src := &media.BytesSource{FileName: name, MIME: "application/octet-stream", Data: []byte(name)}
		require.NoError(t, l.Append(media.New(kind, src, nil, nil)))
	}
	return l
}

func TestSequencer_UploadsInOrderOneAtATime(t *testing.T) {
	store := &fakeStore{}
	l := stageAll(t, "p1.jpg", "v1.mp4", "p2.jpg")

	out, err := upload.NewSequencer(store).Run(context.Background(), "job-1", l)
	require.NoError(t, err)

	assert.Equal(t, []string{"p1.jpg", "v1.mp4", "p2.jpg"}, store.calls)
	assert.Equal(t, int32(1), store.maxSeen)
	require.Len(t, out, 3)
	assert.Equal(t, "https://cdn/job-1/v1.mp4", out[1].URL)
	assert.Equal(t, models.MediaVideo, out[1].Kind)
	for _, d := range l.Items() {
		assert.Equal(t, media.StateSuccess, d.State)
	}
}

func TestSequencer_AbortsOnFirstFailure(t *testing.T) {
	store := &fakeStore{failOn: map[string]error{"v1.mp4": errors.New("connection reset")}}
	l := stageAll(t, "p1.jpg", "v1.mp4", "p2.jpg")

	out, err := upload.NewSequencer(store).Run(context.Background(), "job-1", l)
	assert.Nil(t, out)

	var uerr *upload.Error
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, 1, uerr.Index)
	assert.Equal(t, models.MediaVideo, uerr.Kind)
	assert.Contains(t, err.Error(), "video upload failed")
	assert.Equal(t, 2, store.callCount())

	items := l.Items()
	assert.Equal(t, media.StateSuccess, items[0].State)
	assert.Equal(t, media.StateError, items[1].State)
	assert.Equal(t, media.StatePending, items[2].State)
}

func TestSequencer_EmptyURLFailsItem(t *testing.T) {
	store := &fakeStore{emptyOn: map[string]bool{"p1.jpg": true}}
	l := stageAll(t, "p1.jpg")

	_, err := upload.NewSequencer(store).Run(context.Background(), "job-1", l)
	assert.ErrorIs(t, err, media.ErrEmptyURL)
	assert.Equal(t, media.StateError, l.Items()[0].State)
	assert.Empty(t, l.Items()[0].URL)
}

func TestSequencer_RetrySkipsUploadedItems(t *testing.T) {
	store := &fakeStore{failOn: map[string]error{"p2.jpg": errors.New("timeout")}}
	l := stageAll(t, "p1.jpg", "p2.jpg")
	seq := upload.NewSequencer(store)

	_, err := seq.Run(context.Background(), "job-1", l)
	require.Error(t, err)

	store.mu.Lock()
	store.failOn = nil
	store.calls = nil
	store.mu.Unlock()

	out, err := seq.Run(context.Background(), "job-1", l)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2.jpg"}, store.calls)
	require.Len(t, out, 2)
	assert.Equal(t, "https://cdn/job-1/p1.jpg", out[0].URL)
}

func TestSequencer_SavedMediaPassThrough(t *testing.T) {
	store := &fakeStore{}
	l := media.NewStagingList()
	require.NoError(t, l.Append(media.FromSaved(models.CompletionMedia{URL: "https://cdn/old.jpg", Kind: models.MediaPhoto})))

	out, err := upload.NewSequencer(store).Run(context.Background(), "job-1", l)
	require.NoError(t, err)
	assert.Equal(t, 0, store.callCount())
	require.Len(t, out, 1)
	assert.Equal(t, "https://cdn/old.jpg", out[0].URL)
}

func TestSequencer_CancelledContextStopsBetweenItems(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &fakeStore{}
	l := stageAll(t, "p1.jpg")
	_, err := upload.NewSequencer(store).Run(ctx, "job-1", l)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, store.callCount())
	assert.Equal(t, media.StatePending, l.Items()[0].State)
}

type annotatingStore struct {
	list   *media.StagingList
	target string
}

func (s *annotatingStore) Upload(ctx context.Context, jobID string, f upload.File) (string, error) {
	if f.Name == "p1.jpg" {
		if err := s.list.Annotate(s.target, "edited during upload"); err != nil {
			return "", err
		}
	}
	return "https://cdn/" + jobID + "/" + f.Name, nil
}

func TestSequencer_NoteEditedDuringRunIsKept(t *testing.T) {
	l := stageAll(t, "p1.jpg", "p2.jpg")
	items := l.Items()
	require.NoError(t, l.Lock())

	store := &annotatingStore{list: l, target: items[1].ID}
	out, err := upload.NewSequencer(store).Run(context.Background(), "job-1", l)
	require.NoError(t, err)

	require.Len(t, out, 2)
	assert.Equal(t, "edited during upload", out[1].Note)
	got, _ := l.Get(items[1].ID)
	assert.Equal(t, got.Note, out[1].Note)
}
