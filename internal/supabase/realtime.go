package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"fieldjob-backend/internal/models"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	postgrest "github.com/supabase-community/postgrest-go"
)

// ChangeFeed delivers row changes published by the notify triggers
// (channel "<table>_changes", JSON payload {table, type, id}).
type ChangeFeed struct {
	dsn        string
	minBackoff time.Duration
	maxBackoff time.Duration
	pingEvery  time.Duration
}

func NewChangeFeed(dsn string) *ChangeFeed {
	return &ChangeFeed{
		dsn:        dsn,
		minBackoff: 10 * time.Second,
		maxBackoff: time.Minute,
		pingEvery:  90 * time.Second,
	}
}

func ChannelName(table string) string {
	return table + "_changes"
}

// Subscribe listens for changes on table. After a dropped connection is
// re-established fn receives a synthetic "RESYNC" event, since changes may
// have been missed.
func (f *ChangeFeed) Subscribe(ctx context.Context, table string, fn func(models.ChangeEvent)) (func(), error) {
	log := logrus.WithField("table", table)
	listener := pq.NewListener(f.dsn, f.minBackoff, f.maxBackoff, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
			log.WithError(err).Warn("change feed connection lost")
		case pq.ListenerEventReconnected:
			log.Info("change feed reconnected")
		}
	})

	channel := ChannelName(table)
	if err := listener.Listen(channel); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", channel, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(f.pingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case n := <-listener.Notify:
				if n == nil {
					fn(models.ChangeEvent{Table: table, Type: "RESYNC"})
					continue
				}
				ev, err := decodeChange(table, n.Extra)
				if err != nil {
					log.WithError(err).Warn("undecodable change notification")
				}
				fn(ev)
			case <-ticker.C:
				go func() {
					if err := listener.Ping(); err != nil {
						log.WithError(err).Debug("change feed ping failed")
					}
				}()
			}
		}
	}()

	log.WithField("channel", channel).Info("subscribed to change feed")

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
			if err := listener.Close(); err != nil {
				log.WithError(err).Debug("failed to close change feed listener")
			}
		})
	}, nil
}

func decodeChange(table, payload string) (models.ChangeEvent, error) {
	ev := models.ChangeEvent{Table: table, Type: "*"}
	if payload == "" {
		return ev, nil
	}
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return models.ChangeEvent{Table: table, Type: "*"}, err
	}
	if ev.Table == "" {
		ev.Table = table
	}
	return ev, nil
}

// PollFeed approximates a change feed over PostgREST by watching the newest
// updated_at of a table. Used when no direct database connection exists.
type PollFeed struct {
	client   *Client
	interval time.Duration
}

func NewPollFeed(client *Client, interval time.Duration) *PollFeed {
	return &PollFeed{client: client, interval: interval}
}

func (p *PollFeed) latest(table string) (string, error) {
	data, _, err := p.client.Supabase.From(table).
		Select("updated_at", "", false).
		Order("updated_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(1, "").
		Execute()
	if err != nil {
		return "", err
	}
	var rows []struct {
		UpdatedAt string `json:"updated_at"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].UpdatedAt, nil
}

func (p *PollFeed) Subscribe(ctx context.Context, table string, fn func(models.ChangeEvent)) (func(), error) {
	last, err := p.latest(table)
	if err != nil {
		return nil, fmt.Errorf("failed to poll %s: %w", table, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cur, err := p.latest(table)
				if err != nil {
					logrus.WithError(err).WithField("table", table).Debug("change poll failed")
					continue
				}
				if cur != last {
					last = cur
					fn(models.ChangeEvent{Table: table, Type: "UPDATE"})
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}
