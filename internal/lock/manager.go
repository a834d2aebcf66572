package lock

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/iliyamo/slot-booking/internal/config"
	"github.com/iliyamo/slot-booking/internal/metrics"
)

const (
	backendRedis  = "redis"
	backendMemory = "memory"

	releaseTimeout = 2 * time.Second
)

// NewRequestID returns a unique lock owner token for one booking attempt.
func NewRequestID() string { return uuid.NewString() }

// Manager hands out slot locks.  It talks to the primary (distributed)
// store and switches to the in-process fallback for as long as the primary
// returns errors.  Switching is logged once per transition.
type Manager struct {
	primary  Store
	fallback *MemoryStore
	cfg      config.LockConfig
	log      *zap.Logger
	degraded atomic.Bool
}

// NewManager builds a Manager.  primary may be nil, in which case every
// lock is served by fallback.
func NewManager(primary Store, fallback *MemoryStore, cfg config.LockConfig, log *zap.Logger) *Manager {
	if fallback == nil {
		fallback = NewMemoryStore()
	}
	return &Manager{primary: primary, fallback: fallback, cfg: cfg.Normalize(), log: log}
}

// Key returns the store key for a slot, e.g. "slot:42".
func (m *Manager) Key(slotID uint64) string {
	return m.cfg.Prefix + ":" + strconv.FormatUint(slotID, 10)
}

// TTL is the lease length applied to every acquired lock.
func (m *Manager) TTL() time.Duration { return m.cfg.TTL }

// BookingWait is how long the booking path may wait for a lock.
func (m *Manager) BookingWait() time.Duration { return m.cfg.BookingWait }

// Degraded reports whether locks are currently served in-process.
func (m *Manager) Degraded() bool { return m.degraded.Load() }

// Acquire tries once to take the slot lock for requestID.
func (m *Manager) Acquire(ctx context.Context, slotID uint64, requestID string) bool {
	key := m.Key(slotID)
	if m.primary != nil {
		ok, err := m.primary.SetIfAbsent(ctx, key, requestID, m.cfg.TTL)
		if err == nil {
			m.recovered()
			if ok && m.heldInFallback(ctx, key, requestID) {
				m.undo(ctx, key, requestID)
				ok = false
			}
			metrics.RecordLock("acquire", backendRedis, ok)
			return ok
		}
		if ctx.Err() != nil {
			// the write may have landed before the deadline fired
			m.undo(ctx, key, requestID)
			return false
		}
		m.degrade("acquire", err)
	}
	ok, _ := m.fallback.SetIfAbsent(ctx, key, requestID, m.cfg.TTL)
	metrics.LockFallbackTotal.Inc()
	metrics.RecordLock("acquire", backendMemory, ok)
	return ok
}

// Release deletes the lock if requestID still owns it.  It runs detached
// from ctx cancellation so that an aborted request still frees its slot.
// A lock taken in one backend is released there even if the primary
// recovered or failed in between.
func (m *Manager) Release(ctx context.Context, slotID uint64, requestID string) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	key := m.Key(slotID)
	if m.primary != nil {
		ok, err := m.primary.CompareAndDelete(ctx, key, requestID)
		switch {
		case err != nil:
			m.degrade("release", err)
		case ok:
			m.recovered()
			metrics.RecordLock("release", backendRedis, true)
			return true
		}
	}
	ok, _ := m.fallback.CompareAndDelete(ctx, key, requestID)
	metrics.RecordLock("release", backendMemory, ok)
	return ok
}

// heldInFallback reports whether another request still holds key in the
// in-process store, i.e. it was locked while the primary was down.
func (m *Manager) heldInFallback(ctx context.Context, key, requestID string) bool {
	owner, err := m.fallback.Get(ctx, key)
	return err == nil && owner != requestID
}

// undo removes requestID's entry from the primary.  It runs detached from
// ctx so that it still goes out after a deadline.
func (m *Manager) undo(ctx context.Context, key, requestID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if _, err := m.primary.CompareAndDelete(ctx, key, requestID); err != nil {
		m.log.Warn("could not undo slot lock write", zap.String("key", key), zap.Error(err))
	}
}

// WaitForLock polls Acquire at the configured interval until it succeeds,
// maxWait elapses or ctx is cancelled.  maxWait <= 0 uses the configured
// wait timeout.  It has no side effects when it returns false.
func (m *Manager) WaitForLock(ctx context.Context, slotID uint64, requestID string, maxWait time.Duration) bool {
	if maxWait <= 0 {
		maxWait = m.cfg.WaitTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(m.cfg.PollInterval), 1)
	limiter.Allow() // first attempt goes out immediately
	for {
		if m.Acquire(ctx, slotID, requestID) {
			return true
		}
		if err := limiter.Wait(ctx); err != nil {
			return false
		}
	}
}

// Holder returns the request currently holding the slot lock.
func (m *Manager) Holder(ctx context.Context, slotID uint64) (string, bool) {
	key := m.Key(slotID)
	if m.primary != nil && !m.degraded.Load() {
		owner, err := m.primary.Get(ctx, key)
		if err == nil {
			return owner, true
		}
		if !errors.Is(err, ErrNotHeld) {
			m.degrade("get", err)
		}
	}
	owner, err := m.fallback.Get(ctx, key)
	return owner, err == nil
}

func (m *Manager) degrade(op string, err error) {
	if m.degraded.CompareAndSwap(false, true) {
		metrics.LockDegraded.Set(1)
		m.log.Warn("lock store unreachable, using in-process locks",
			zap.String("op", op), zap.Error(err))
	}
}

func (m *Manager) recovered() {
	if m.degraded.CompareAndSwap(true, false) {
		metrics.LockDegraded.Set(0)
		m.log.Info("lock store reachable again")
	}
}
