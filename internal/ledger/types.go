package ledger

import (
	"time"

	"github.com/Iron-Ham/lockreg/internal/asset"
	"github.com/Iron-Ham/lockreg/internal/event"
	"github.com/Iron-Ham/lockreg/internal/logging"
	"github.com/Iron-Ham/lockreg/internal/serial"
)

// Record is the lock held on one asset.
type Record struct {
	Locker   asset.Address `json:"locker"`    // Identity that placed the lock
	Owner    asset.Address `json:"owner"`     // Owner of the asset when locked
	Expiry   time.Time     `json:"expiry"`    // First instant at which the lock is void
	LockedAt time.Time     `json:"locked_at"` // When the lock was placed
}

// ActiveAt reports whether the lock is in force at now.
func (r Record) ActiveAt(now time.Time) bool {
	return r.Expiry.After(now)
}

// Companion observes lock lifecycle transitions.
// Both methods are called with the asset's serialization key held.
type Companion interface {
	// OnLockCreated runs before the record is stored. An error rejects the
	// lock and must leave the companion unchanged. On success it also drops
	// whatever it kept for an expired lock on id; OnLockReleased is not
	// called for a record replaced by a new lock.
	OnLockCreated(id asset.ID, rec Record) error

	// OnLockReleased runs when a lock ends by unlock or by Reap.
	OnLockReleased(id asset.ID)
}

// LockState is the persisted form of one lock record.
type LockState struct {
	AssetID asset.ID `json:"asset_id"`
	Record
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithSerializer shares a per-asset serializer with the ownership registry.
func WithSerializer(keys *serial.Keyed) Option {
	return func(l *Ledger) {
		l.keys = keys
	}
}

// WithClock sets the time source used for expiry checks and event stamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// WithBus sets the event bus that receives lock events.
func WithBus(bus *event.Bus) Option {
	return func(l *Ledger) {
		l.bus = bus
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// WithCompanion sets the lifecycle companion.
func WithCompanion(c Companion) Option {
	return func(l *Ledger) {
		l.companion = c
	}
}

// WithMaxLockDuration rejects locks whose expiry is further than d from now.
// Zero disables the limit.
func WithMaxLockDuration(d time.Duration) Option {
	return func(l *Ledger) {
		l.maxDuration = d
	}
}
