package config

import "time"

// DefaultLockTTL is the single lease length for slot locks.  A crashed
// holder blocks its slot for at most this long.
const DefaultLockTTL = 30 * time.Second

// LockConfig configures the slot Lock Manager.
//
//	LOCK_TTL            lease length of an acquired lock
//	LOCK_POLL_INTERVAL  spacing between attempts while waiting for a lock
//	LOCK_WAIT_TIMEOUT   default bound for WaitForLock when none is given
//	LOCK_BOOKING_WAIT   how long the booking path waits; 0 means one attempt
//	LOCK_SWEEP_INTERVAL how often the in-process fallback drops expired locks
//	LOCK_PREFIX         key prefix, keys look like "<prefix>:<slotId>"
type LockConfig struct {
	TTL           time.Duration
	PollInterval  time.Duration
	WaitTimeout   time.Duration
	BookingWait   time.Duration
	SweepInterval time.Duration
	Prefix        string
}

func LoadLockConfig() LockConfig {
	return LockConfig{
		TTL:           envDur("LOCK_TTL", DefaultLockTTL),
		PollInterval:  envDur("LOCK_POLL_INTERVAL", 100*time.Millisecond),
		WaitTimeout:   envDur("LOCK_WAIT_TIMEOUT", 3*time.Second),
		BookingWait:   envDur("LOCK_BOOKING_WAIT", 0),
		SweepInterval: envDur("LOCK_SWEEP_INTERVAL", time.Second),
		Prefix:        envStr("LOCK_PREFIX", "slot"),
	}.Normalize()
}

// Normalize replaces unusable values with defaults.
func (c LockConfig) Normalize() LockConfig {
	if c.TTL <= 0 {
		c.TTL = DefaultLockTTL
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = 3 * time.Second
	}
	if c.BookingWait < 0 {
		c.BookingWait = 0
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Second
	}
	if c.Prefix == "" {
		c.Prefix = "slot"
	}
	return c
}
