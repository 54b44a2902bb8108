package store

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Reaper periodically deletes rooms that have had nobody online for longer
// than the retention window.
type Reaper struct {
	store     *RoomStore
	interval  time.Duration
	retention time.Duration
	onReap    func(code string)
	lock      func(code string, fn func())
}

// ReaperOption configures a Reaper.
type ReaperOption func(*Reaper)

// WithRoomLock makes the reaper check and delete each room inside lock, the
// same per-room lock that serializes joins and other mutations.
func WithRoomLock(lock func(code string, fn func())) ReaperOption {
	return func(r *Reaper) { r.lock = lock }
}

// NewReaper builds a reaper. onReap, if set, is called after each deletion.
func NewReaper(s *RoomStore, interval, retention time.Duration, onReap func(code string), opts ...ReaperOption) *Reaper {
	r := &Reaper{
		store:     s,
		interval:  interval,
		retention: retention,
		onReap:    onReap,
		lock:      func(_ string, fn func()) { fn() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run sweeps every interval until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	logrus.WithFields(logrus.Fields{
		"interval":  r.interval.String(),
		"retention": r.retention.String(),
	}).Info("Room reaper started")
	for {
		select {
		case <-ctx.Done():
			logrus.Info("Room reaper stopped")
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep deletes every reapable room once and returns their codes.
func (r *Reaper) Sweep() []string {
	var reaped []string
	for _, code := range r.store.Codes() {
		room, err := r.store.Get(code)
		if err != nil {
			// deleted since the snapshot
			continue
		}
		deleted := false
		r.lock(code, func() {
			deleted = room.ShouldReap(r.retention) && r.store.Delete(code)
		})
		if !deleted {
			continue
		}
		reaped = append(reaped, code)
		logrus.WithFields(logrus.Fields{
			"room_code":     code,
			"last_activity": room.LastActivity().Format(time.RFC3339),
		}).Info("Reaped inactive room")
		if r.onReap != nil {
			r.onReap(code)
		}
	}
	if len(reaped) > 0 {
		logrus.WithField("count", len(reaped)).Info("Reaper sweep finished")
	}
	return reaped
}
