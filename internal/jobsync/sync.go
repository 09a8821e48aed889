// Package jobsync keeps an in-memory job list fresh by reloading it whenever
// the backing table reports a change.
package jobsync

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"fieldjob-backend/internal/models"
	"github.com/sirupsen/logrus"
)

const jobsTable = "jobs"

type Lister interface {
	ListJobs(ctx context.Context) ([]models.JobView, error)
}

type Subscriber interface {
	// Subscribe calls fn for every change on table until the returned
	// function is called.
	Subscribe(ctx context.Context, table string, fn func(models.ChangeEvent)) (func(), error)
}

type Snapshot struct {
	Jobs    []models.JobView
	Loading bool
	Err     error
}

// JobList is the job list shown to operators. Every change notification
// triggers a full reload; when reloads overlap, the one started last wins.
type JobList struct {
	lister Lister
	sub    Subscriber

	mu      sync.RWMutex
	jobs    []models.JobView
	loading int
	err     error
	applied uint64

	seq atomic.Uint64

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
	stops    []func()
	closed   bool
}

func New(lister Lister, sub Subscriber) *JobList {
	return &JobList{lister: lister, sub: sub}
}

// Start loads the list once and subscribes to job changes. A failed
// subscription is logged and recorded; Refresh keeps working.
func (l *JobList) Start(ctx context.Context) error {
	l.ctx, l.cancel = context.WithCancel(ctx)

	if err := l.Refresh(l.ctx); err != nil {
		logrus.WithError(err).Warn("initial job list load failed")
	}

	if l.sub == nil {
		return nil
	}
	unsubscribe, err := l.sub.Subscribe(l.ctx, jobsTable, func(ev models.ChangeEvent) {
		logrus.WithFields(logrus.Fields{"table": ev.Table, "type": ev.Type, "id": ev.RecordID}).Debug("job change received")
		l.Trigger()
	})
	if err != nil {
		err = fmt.Errorf("failed to subscribe to %s changes: %w", jobsTable, err)
		logrus.WithError(err).Error("job list live updates unavailable")
		l.mu.Lock()
		l.err = err
		l.mu.Unlock()
		return err
	}
	l.addStop(unsubscribe)
	return nil
}

// Trigger starts a background refresh.
func (l *JobList) Trigger() {
	ctx := l.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	l.mu.Lock()
	if l.closed || ctx.Err() != nil {
		l.mu.Unlock()
		return
	}
	l.wg.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.wg.Done()
		if err := l.Refresh(ctx); err != nil {
			logrus.WithError(err).Warn("job list refresh failed")
		}
	}()
}

// Refresh reloads the whole list. Results of a refresh that started before
// the last applied one are dropped.
func (l *JobList) Refresh(ctx context.Context) error {
	n := l.seq.Add(1)

	l.mu.Lock()
	l.loading++
	l.mu.Unlock()

	jobs, err := l.lister.ListJobs(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.loading--

	if n < l.applied {
		logrus.WithFields(logrus.Fields{"seq": n, "applied": l.applied}).Debug("dropping stale job list")
		return nil
	}
	l.applied = n
	if err != nil {
		l.err = fmt.Errorf("failed to load jobs: %w", err)
		return l.err
	}
	if jobs == nil {
		jobs = []models.JobView{}
	}
	l.jobs = jobs
	l.err = nil
	return nil
}

func (l *JobList) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	jobs := make([]models.JobView, len(l.jobs))
	copy(jobs, l.jobs)
	return Snapshot{Jobs: jobs, Loading: l.loading > 0, Err: l.err}
}

func (l *JobList) addStop(fn func()) {
	l.mu.Lock()
	l.stops = append(l.stops, fn)
	l.mu.Unlock()
}

// Close unsubscribes, stops any signal watchers and waits for in-flight
// background refreshes.
func (l *JobList) Close() {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		stops := l.stops
		l.stops = nil
		l.mu.Unlock()
		for _, stop := range stops {
			stop()
		}
		if l.cancel != nil {
			l.cancel()
		}
		l.wg.Wait()
	})
}
