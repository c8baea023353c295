package approval

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Iron-Ham/lockreg/internal/asset"
	"github.com/Iron-Ham/lockreg/internal/errors"
	"github.com/Iron-Ham/lockreg/internal/event"
	"github.com/Iron-Ham/lockreg/internal/logging"
	"github.com/Iron-Ham/lockreg/internal/registry"
)

// grant is a per-asset delegation, bound to the owner that issued it.
type grant struct {
	owner    asset.Address
	delegate asset.Address
}

// Store holds per-asset and blanket lock grants.
type Store struct {
	mu      sync.RWMutex
	grants  map[asset.ID]grant
	blanket map[asset.Address]map[asset.Address]bool // owner -> operator set

	owners registry.Owners
	bus    *event.Bus
	now    func() time.Time
	logger *logging.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithBus sets the event bus that receives approval events.
func WithBus(bus *event.Bus) Option {
	return func(s *Store) {
		s.bus = bus
	}
}

// WithClock sets the time source used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// NewStore creates a Store that resolves owners through owners.
func NewStore(owners registry.Owners, opts ...Option) *Store {
	s := &Store{
		grants:  make(map[asset.ID]grant),
		blanket: make(map[asset.Address]map[asset.Address]bool),
		owners:  owners,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrNop(s.logger).WithComponent("approval")
	return s
}

// Approve sets the per-asset grant of id to delegate, or clears it when
// delegate is the null identity. The caller must be the current owner or
// hold a blanket grant from the owner.
func (s *Store) Approve(caller asset.Address, id asset.ID, delegate asset.Address) error {
	owner, err := s.owners.OwnerOf(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if caller != owner && !s.blanket[owner][caller] {
		s.mu.Unlock()
		return fmt.Errorf("approve %s by %s: %w", id, caller, errors.ErrUnauthorized)
	}
	previous := s.delegateLocked(id, owner)
	if delegate.IsZero() {
		delete(s.grants, id)
	} else {
		s.grants[id] = grant{owner: owner, delegate: delegate}
	}
	s.mu.Unlock()

	s.bus.Publish(event.NewLockApprovalEvent(s.now(), owner, delegate, previous, id))
	s.logger.WithAsset(string(id)).WithCaller(string(caller)).Info("lock approval set",
		"owner", string(owner), "approved", delegate.String(), "previous", previous.String())
	return nil
}

// SetBlanketApproval grants or revokes operator the right to lock every
// asset of owner. Repeating the current value is allowed and still emits
// an event.
func (s *Store) SetBlanketApproval(owner, operator asset.Address, approved bool) error {
	if owner.IsZero() || operator.IsZero() {
		return errors.NewValidationError("blanket approval needs both identities").
			WithField("operator").WithCause(errors.ErrNullIdentity)
	}
	if operator == owner {
		return fmt.Errorf("blanket approval for %s: %w", owner, errors.ErrSelfApproval)
	}

	s.mu.Lock()
	previous := s.blanket[owner][operator]
	if approved {
		set, ok := s.blanket[owner]
		if !ok {
			set = make(map[asset.Address]bool)
			s.blanket[owner] = set
		}
		set[operator] = true
	} else {
		delete(s.blanket[owner], operator)
		if len(s.blanket[owner]) == 0 {
			delete(s.blanket, owner)
		}
	}
	s.mu.Unlock()

	s.bus.Publish(event.NewLockApprovalForAllEvent(s.now(), owner, operator, approved, previous))
	s.logger.WithCaller(string(owner)).Info("blanket lock approval set",
		"operator", string(operator), "approved", approved, "previous", previous)
	return nil
}

// GetApproved returns the per-asset delegate of id, or the null identity.
func (s *Store) GetApproved(id asset.ID) (asset.Address, error) {
	owner, err := s.owners.OwnerOf(id)
	if err != nil {
		return asset.Zero, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.delegateLocked(id, owner), nil
}

// IsApprovedForAll reports whether operator holds a blanket grant from owner.
func (s *Store) IsApprovedForAll(owner, operator asset.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blanket[owner][operator]
}

// IsApprovedToLock reports whether caller is the owner of id, its per-asset
// delegate, or a blanket operator of the owner. Missing assets and the null
// identity are never approved.
func (s *Store) IsApprovedToLock(caller asset.Address, id asset.ID) bool {
	if caller.IsZero() {
		return false
	}
	owner, err := s.owners.OwnerOf(id)
	if err != nil || owner.IsZero() {
		return false
	}
	if caller == owner {
		return true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.delegateLocked(id, owner) == caller || s.blanket[owner][caller]
}

// Clear consumes the per-asset grant of id. A clearing event is published
// only if a grant existed. It reports whether a grant was removed.
func (s *Store) Clear(id asset.ID) bool {
	s.mu.Lock()
	g, ok := s.grants[id]
	if ok {
		delete(s.grants, id)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	s.bus.Publish(event.NewLockApprovalEvent(s.now(), g.owner, asset.Zero, g.delegate, id))
	s.logger.WithAsset(string(id)).Debug("lock approval consumed", "previous", string(g.delegate))
	return true
}

// delegateLocked returns the grant of id if it was issued by owner.
// A grant left behind by a previous owner is treated as absent.
func (s *Store) delegateLocked(id asset.ID, owner asset.Address) asset.Address {
	g, ok := s.grants[id]
	if !ok || g.owner != owner {
		return asset.Zero
	}
	return g.delegate
}

// Grant is the persisted form of one per-asset grant.
type Grant struct {
	AssetID  asset.ID      `json:"asset_id"`
	Owner    asset.Address `json:"owner"`
	Delegate asset.Address `json:"delegate"`
}

// BlanketGrant is the persisted form of one blanket grant.
type BlanketGrant struct {
	Owner    asset.Address `json:"owner"`
	Operator asset.Address `json:"operator"`
}

// Snapshot is the persisted form of a Store.
type Snapshot struct {
	Grants  []Grant        `json:"grants,omitempty"`
	Blanket []BlanketGrant `json:"blanket,omitempty"`
}

// Snapshot returns the grants in a deterministic order.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snap Snapshot
	for id, g := range s.grants {
		snap.Grants = append(snap.Grants, Grant{AssetID: id, Owner: g.owner, Delegate: g.delegate})
	}
	sort.Slice(snap.Grants, func(i, j int) bool { return snap.Grants[i].AssetID < snap.Grants[j].AssetID })

	for owner, set := range s.blanket {
		for op := range set {
			snap.Blanket = append(snap.Blanket, BlanketGrant{Owner: owner, Operator: op})
		}
	}
	sort.Slice(snap.Blanket, func(i, j int) bool {
		a, b := snap.Blanket[i], snap.Blanket[j]
		if a.Owner != b.Owner {
			return a.Owner < b.Owner
		}
		return a.Operator < b.Operator
	})
	return snap
}

// Restore replaces every grant with those in snap. No events are published.
func (s *Store) Restore(snap Snapshot) {
	grants := make(map[asset.ID]grant, len(snap.Grants))
	for _, g := range snap.Grants {
		if g.Delegate.IsZero() {
			continue
		}
		grants[g.AssetID] = grant{owner: g.Owner, delegate: g.Delegate}
	}
	blanket := make(map[asset.Address]map[asset.Address]bool)
	for _, b := range snap.Blanket {
		if blanket[b.Owner] == nil {
			blanket[b.Owner] = make(map[asset.Address]bool)
		}
		blanket[b.Owner][b.Operator] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants = grants
	s.blanket = blanket
}
