// Package presence tracks each user's online/idle/offline state. The state
// machine is driven by connection lifecycle and activity events and owns the
// per-user idle timer.
package presence

import (
	"context"
	"sync"
	"time"

	"github.com/ingafriyiestephen/ead-chat-socket/internal/models"
	"github.com/ingafriyiestephen/ead-chat-socket/internal/notifier"
	"github.com/ingafriyiestephen/ead-chat-socket/pkg/logger"
)

// Status is a user's connectivity classification.
type Status string

const (
	StatusOnline  Status = "online"
	StatusIdle    Status = "idle"
	StatusOffline Status = "offline"
)

// Broadcaster delivers a presence event to every active connection.
type Broadcaster interface {
	BroadcastAll(frame models.OutboundFrame)
}

type record struct {
	status   Status
	lastSeen time.Time
}

// Tracker is the per-user presence state machine. Records are created lazily
// on first activity and never evicted.
type Tracker struct {
	mu          sync.Mutex
	records     map[string]*record
	timers      map[string]*time.Timer
	generations map[string]uint64
	idleTimeout time.Duration
	broadcaster Broadcaster
	notifier    notifier.StatusNotifier
	clock       func() time.Time
}

func NewTracker(idleTimeout time.Duration, broadcaster Broadcaster, statusNotifier notifier.StatusNotifier) *Tracker {
	return &Tracker{
		records:     make(map[string]*record),
		timers:      make(map[string]*time.Timer),
		generations: make(map[string]uint64),
		idleTimeout: idleTimeout,
		broadcaster: broadcaster,
		notifier:    statusNotifier,
		clock:       time.Now,
	}
}

// Activity records activity for a user: the previous idle timer is cancelled,
// the user goes online, user-active is broadcast to every connection, and a
// fresh idle timer is armed. An empty userID is a valid anonymous event and
// does nothing.
func (t *Tracker) Activity(userID string) {
	if userID == "" {
		return
	}

	t.mu.Lock()
	t.record(userID).status = StatusOnline
	gen := t.armTimer(userID)
	t.mu.Unlock()

	t.notifyAsync(userID, StatusOnline)
	t.broadcaster.BroadcastAll(models.OutboundFrame{
		Type:    models.EventUserActive,
		Payload: models.UserActivityPayload{UserID: userID},
	})

	logger.Debug("User %s active (idle timer generation %d)", userID, gen)
}

// Disconnect transitions a user to offline and stamps lastSeen. Any pending
// idle timer is superseded so it cannot fire afterwards.
func (t *Tracker) Disconnect(userID string) {
	if userID == "" {
		return
	}

	now := t.clock()

	t.mu.Lock()
	t.generations[userID]++
	if timer, ok := t.timers[userID]; ok {
		timer.Stop()
		delete(t.timers, userID)
	}
	rec := t.record(userID)
	rec.status = StatusOffline
	rec.lastSeen = now
	t.mu.Unlock()

	t.notifyAsync(userID, StatusOffline)
	t.broadcaster.BroadcastAll(models.OutboundFrame{
		Type: models.EventUserOffline,
		Payload: models.UserOfflinePayload{
			UserID:   userID,
			LastSeen: now.UTC().Format(time.RFC3339),
		},
	})

	logger.Info("User %s disconnected, last seen %s", userID, now.UTC().Format(time.RFC3339))
}

// Status reports the current classification for a user. Users never seen are
// offline.
func (t *Tracker) Status(userID string) (Status, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[userID]
	if !ok {
		return StatusOffline, time.Time{}
	}
	return rec.status, rec.lastSeen
}

// Close cancels every pending idle timer. Used on shutdown.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for userID, timer := range t.timers {
		timer.Stop()
		delete(t.timers, userID)
		t.generations[userID]++
	}
}

// record returns the user's presence record, creating it lazily. Caller must
// hold the mutex.
func (t *Tracker) record(userID string) *record {
	rec, ok := t.records[userID]
	if !ok {
		rec = &record{status: StatusOffline}
		t.records[userID] = rec
	}
	return rec
}

// armTimer atomically replaces the user's idle timer. The generation counter
// resolves the race between cancellation and firing: a timer that fires after
// being superseded sees a newer generation and does nothing. Caller must hold
// the mutex.
func (t *Tracker) armTimer(userID string) uint64 {
	t.generations[userID]++
	gen := t.generations[userID]

	if timer, ok := t.timers[userID]; ok {
		timer.Stop()
	}
	t.timers[userID] = time.AfterFunc(t.idleTimeout, func() {
		t.idle(userID, gen)
	})

	return gen
}

// idle fires when a user's idle timer expires without newer activity.
func (t *Tracker) idle(userID string, gen uint64) {
	t.mu.Lock()
	if t.generations[userID] != gen {
		t.mu.Unlock()
		return
	}
	delete(t.timers, userID)
	t.record(userID).status = StatusIdle
	t.mu.Unlock()

	t.notifyAsync(userID, StatusIdle)
	t.broadcaster.BroadcastAll(models.OutboundFrame{
		Type:    models.EventUserIdle,
		Payload: models.UserActivityPayload{UserID: userID},
	})

	logger.Info("User %s is now idle", userID)
}

// notifyAsync reports the transition to the external status endpoint without
// blocking the transition itself. Failures are logged and never retried.
func (t *Tracker) notifyAsync(userID string, status Status) {
	go func() {
		if err := t.notifier.Notify(context.Background(), userID, string(status)); err != nil {
			logger.Error("Failed to update user status for %s: %v", userID, err)
		}
	}()
}
