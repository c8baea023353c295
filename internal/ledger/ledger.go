package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/Iron-Ham/lockreg/internal/approval"
	"github.com/Iron-Ham/lockreg/internal/asset"
	"github.com/Iron-Ham/lockreg/internal/errors"
	"github.com/Iron-Ham/lockreg/internal/event"
	"github.com/Iron-Ham/lockreg/internal/logging"
	"github.com/Iron-Ham/lockreg/internal/registry"
	"github.com/Iron-Ham/lockreg/internal/serial"
)

// Ledger holds at most one lock record per asset.
type Ledger struct {
	mu      sync.RWMutex
	records map[asset.ID]Record

	owners      registry.Owners
	approvals   *approval.Store
	companion   Companion
	keys        *serial.Keyed
	bus         *event.Bus
	now         func() time.Time
	logger      *logging.Logger
	maxDuration time.Duration
}

// New creates a Ledger reading ownership from owners and authorization
// from approvals. With nil approvals only the owner may lock and grant
// changes fail with errors.ErrUnsupported.
func New(owners registry.Owners, approvals *approval.Store, opts ...Option) *Ledger {
	l := &Ledger{
		records:   make(map[asset.ID]Record),
		owners:    owners,
		approvals: approvals,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.keys == nil {
		l.keys = serial.New()
	}
	l.logger = logging.OrNop(l.logger).WithComponent("ledger")
	return l
}

// Lock places a lock on id for caller until expiry.
//
// Preconditions are checked in order: the asset exists, its owner is not
// the null identity, expiry is strictly after now (and within the maximum
// duration, if configured), the asset is not actively locked, and caller is
// approved to lock it. On success the per-asset grant is consumed.
func (l *Ledger) Lock(caller asset.Address, id asset.ID, expiry time.Time) error {
	return l.keys.Do(string(id), func() error {
		return l.lockLocked(caller, id, expiry)
	})
}

func (l *Ledger) lockLocked(caller asset.Address, id asset.ID, expiry time.Time) error {
	fail := func(msg string, cause error) error {
		return errors.NewLockError(msg, cause).WithOp("lock").WithAsset(string(id)).WithCaller(string(caller))
	}
	log := l.logger.WithAsset(string(id)).WithCaller(string(caller))

	owner, err := l.owners.OwnerOf(id)
	if err != nil {
		return fail("asset lookup failed", err)
	}
	if owner.IsZero() {
		return fail("cannot lock an unowned asset", errors.ErrNullOwner)
	}

	now := l.now()
	if !expiry.After(now) {
		return fail("expiry "+expiry.Format(time.RFC3339)+" is not after now", errors.ErrExpiryNotFuture)
	}
	if l.maxDuration > 0 && expiry.Sub(now) > l.maxDuration {
		return fail("lock longer than "+l.maxDuration.String(), errors.ErrLockTooLong)
	}

	l.mu.RLock()
	stale, hasRecord := l.records[id]
	l.mu.RUnlock()

	if hasRecord && stale.ActiveAt(now) {
		return fail("locked by "+string(stale.Locker)+" until "+stale.Expiry.Format(time.RFC3339), errors.ErrAlreadyLocked)
	}
	if !l.approvedToLock(caller, owner, id) {
		return fail("caller is not approved to lock", errors.ErrUnauthorized)
	}

	rec := Record{Locker: caller, Owner: owner, Expiry: expiry, LockedAt: now}
	if l.companion != nil {
		if err := l.companion.OnLockCreated(id, rec); err != nil {
			log.Error("lock companion rejected lock", "error", err.Error())
			return fail("companion rejected lock", err)
		}
	}

	l.mu.Lock()
	l.records[id] = rec
	l.mu.Unlock()

	// The companion already dropped its state for the expired record.
	if hasRecord {
		l.bus.Publish(event.NewLockExpiredEvent(now, stale.Locker, stale.Owner, id, stale.Expiry))
		log.Debug("expired lock replaced", "locker", string(stale.Locker))
	}

	if l.approvals != nil {
		l.approvals.Clear(id)
	}
	l.bus.Publish(event.NewLockedEvent(now, caller, owner, id, expiry))
	log.Info("asset locked", "owner", string(owner), "expiry", expiry.Format(time.RFC3339))
	return nil
}

// Unlock releases the active lock on id. Only the locker may release it;
// the owner cannot force-unlock a lock placed by someone else.
func (l *Ledger) Unlock(caller asset.Address, id asset.ID) error {
	return l.keys.Do(string(id), func() error {
		fail := func(msg string, cause error) error {
			return errors.NewLockError(msg, cause).WithOp("unlock").WithAsset(string(id)).WithCaller(string(caller))
		}

		if !l.owners.Exists(id) {
			return fail("asset lookup failed", errors.NewNotFoundError("asset", string(id)))
		}

		now := l.now()
		l.mu.RLock()
		rec, ok := l.records[id]
		l.mu.RUnlock()

		if !ok || !rec.ActiveAt(now) {
			return fail("no active lock", errors.ErrNotLocked)
		}
		if caller != rec.Locker {
			return fail("only the locker may unlock", errors.ErrUnauthorized)
		}

		l.mu.Lock()
		delete(l.records, id)
		l.mu.Unlock()

		if l.approvals != nil {
			l.approvals.Clear(id)
		}
		if l.companion != nil {
			l.companion.OnLockReleased(id)
		}
		l.bus.Publish(event.NewUnlockedEvent(now, caller, rec.Owner, id))
		l.logger.WithAsset(string(id)).WithCaller(string(caller)).Info("asset unlocked", "owner", string(rec.Owner))
		return nil
	})
}

// approvedToLock reports whether caller may lock id. Without an approval
// store only the owner may.
func (l *Ledger) approvedToLock(caller, owner asset.Address, id asset.ID) bool {
	if l.approvals == nil {
		return caller == owner
	}
	return l.approvals.IsApprovedToLock(caller, id)
}

// purgeLocked removes an expired record. The caller holds the asset key.
func (l *Ledger) purgeLocked(id asset.ID, rec Record, now time.Time) {
	l.mu.Lock()
	delete(l.records, id)
	l.mu.Unlock()

	if l.companion != nil {
		l.companion.OnLockReleased(id)
	}
	l.bus.Publish(event.NewLockExpiredEvent(now, rec.Locker, rec.Owner, id, rec.Expiry))
	l.logger.WithAsset(string(id)).Debug("expired lock purged", "locker", string(rec.Locker))
}

// Reap purges every expired record and returns how many were removed.
// It is never needed for correctness; reads already treat expired records
// as absent.
func (l *Ledger) Reap() int {
	l.mu.RLock()
	var candidates []asset.ID
	now := l.now()
	for id, rec := range l.records {
		if !rec.ActiveAt(now) {
			candidates = append(candidates, id)
		}
	}
	l.mu.RUnlock()
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })

	reaped := 0
	for _, id := range candidates {
		_ = l.keys.Do(string(id), func() error {
			now := l.now()
			l.mu.RLock()
			rec, ok := l.records[id]
			l.mu.RUnlock()
			if ok && !rec.ActiveAt(now) {
				l.purgeLocked(id, rec, now)
				reaped++
			}
			return nil
		})
	}
	if reaped > 0 {
		l.logger.Info("expired locks reaped", "count", reaped)
	}
	return reaped
}

// IsLocked reports whether id has a lock in force. Missing assets are
// never locked.
func (l *Ledger) IsLocked(id asset.ID) bool {
	_, ok := l.RecordOf(id)
	return ok
}

// LockerOf returns the identity holding the active lock on id, or the null
// identity if there is none.
func (l *Ledger) LockerOf(id asset.ID) (asset.Address, error) {
	if !l.owners.Exists(id) {
		return asset.Zero, errors.NewNotFoundError("asset", string(id))
	}
	rec, ok := l.RecordOf(id)
	if !ok {
		return asset.Zero, nil
	}
	return rec.Locker, nil
}

// RecordOf returns the active lock record of id.
func (l *Ledger) RecordOf(id asset.ID) (Record, bool) {
	l.mu.RLock()
	rec, ok := l.records[id]
	l.mu.RUnlock()

	if !ok || !rec.ActiveAt(l.now()) {
		return Record{}, false
	}
	return rec, true
}

// Active returns every lock in force, sorted by asset id.
func (l *Ledger) Active() []LockState {
	now := l.now()
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []LockState
	for id, rec := range l.records {
		if rec.ActiveAt(now) {
			out = append(out, LockState{AssetID: id, Record: rec})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out
}

// errNoApprovals rejects grant changes on a ledger built without approvals.
func errNoApprovals(op string) error {
	return errors.NewLockError("ledger has no approval store", errors.ErrUnsupported).
		WithOp(op).WithSeverity(errors.SeverityError)
}

// Approve sets the per-asset lock grant of id. See [approval.Store.Approve].
func (l *Ledger) Approve(caller asset.Address, id asset.ID, delegate asset.Address) error {
	if l.approvals == nil {
		return errNoApprovals("approve")
	}
	return l.keys.Do(string(id), func() error {
		return l.approvals.Approve(caller, id, delegate)
	})
}

// SetBlanketApproval grants or revokes operator the right to lock every
// asset of owner. See [approval.Store.SetBlanketApproval].
func (l *Ledger) SetBlanketApproval(owner, operator asset.Address, approved bool) error {
	if l.approvals == nil {
		return errNoApprovals("approve-all")
	}
	return l.approvals.SetBlanketApproval(owner, operator, approved)
}

// GetApproved returns the per-asset lock delegate of id.
func (l *Ledger) GetApproved(id asset.ID) (asset.Address, error) {
	if l.approvals == nil {
		if !l.owners.Exists(id) {
			return asset.Zero, errors.NewNotFoundError("asset", string(id))
		}
		return asset.Zero, nil
	}
	return l.approvals.GetApproved(id)
}

// IsApprovedForAll reports whether operator holds a blanket grant from owner.
func (l *Ledger) IsApprovedForAll(owner, operator asset.Address) bool {
	return l.approvals != nil && l.approvals.IsApprovedForAll(owner, operator)
}

// Snapshot returns every stored record, expired ones included, sorted by
// asset id.
func (l *Ledger) Snapshot() []LockState {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]LockState, 0, len(l.records))
	for id, rec := range l.records {
		out = append(out, LockState{AssetID: id, Record: rec})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out
}

// Restore replaces every record with those in states. No events are
// published and the companion is not consulted.
func (l *Ledger) Restore(states []LockState) error {
	records := make(map[asset.ID]Record, len(states))
	for _, s := range states {
		if err := s.AssetID.Validate(); err != nil {
			return err
		}
		if s.Locker.IsZero() {
			return errors.NewValidationError("lock record without locker").WithField("locker").WithValue(s.AssetID)
		}
		records[s.AssetID] = s.Record
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = records
	return nil
}
