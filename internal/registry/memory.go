package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Iron-Ham/lockreg/internal/asset"
	"github.com/Iron-Ham/lockreg/internal/errors"
	"github.com/Iron-Ham/lockreg/internal/event"
	"github.com/Iron-Ham/lockreg/internal/logging"
	"github.com/Iron-Ham/lockreg/internal/serial"
)

// entry is the registry-side state of one asset.
type entry struct {
	owner            asset.Address
	metadata         asset.Metadata
	transferApproved asset.Address
}

// Memory is an in-process ownership registry.
type Memory struct {
	mu        sync.RWMutex
	assets    map[asset.ID]*entry
	operators map[asset.Address]map[asset.Address]bool // owner -> operator set
	hooks     []TransferHook

	keys   *serial.Keyed
	bus    *event.Bus
	now    func() time.Time
	logger *logging.Logger
}

// NewMemory creates an empty registry.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		assets:    make(map[asset.ID]*entry),
		operators: make(map[asset.Address]map[asset.Address]bool),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.keys == nil {
		m.keys = serial.New()
	}
	m.logger = logging.OrNop(m.logger).WithComponent("registry")
	return m
}

// AddHook registers a transfer hook. Hooks run in registration order.
func (m *Memory) AddHook(h TransferHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, h)
}

// Mint creates asset id owned by to. Hooks are not consulted: a new asset
// cannot carry a lock.
func (m *Memory) Mint(to asset.Address, id asset.ID, meta asset.Metadata) error {
	if err := id.Validate(); err != nil {
		return err
	}
	if to.IsZero() {
		return fmt.Errorf("mint %s: %w", id, errors.ErrNullIdentity)
	}

	err := m.keys.Do(string(id), func() error {
		m.mu.Lock()
		if _, ok := m.assets[id]; ok {
			m.mu.Unlock()
			return errors.NewValidationError("asset already exists").WithField("assetID").WithValue(id)
		}
		m.assets[id] = &entry{owner: to, metadata: meta}
		m.mu.Unlock()

		m.bus.Publish(event.NewTransferredEvent(m.now(), asset.Zero, to, id))
		return nil
	})
	if err != nil {
		return err
	}
	m.logger.WithAsset(string(id)).Info("asset minted", "owner", string(to), "class", meta.Class)
	return nil
}

// Transfer moves id from its current owner to to on behalf of caller.
// from must be the current owner. The caller must be the owner, the
// per-asset transfer approval, or a transfer operator of the owner.
// Any hook error aborts the transfer and is returned unchanged in kind.
func (m *Memory) Transfer(caller, from, to asset.Address, id asset.ID) error {
	if to.IsZero() {
		return fmt.Errorf("transfer %s: %w", id, errors.ErrNullIdentity)
	}
	return m.move(caller, from, to, id)
}

// Burn destroys id on behalf of caller. It follows the transfer path with
// a zero recipient, so hooks may veto it.
func (m *Memory) Burn(caller asset.Address, id asset.ID) error {
	owner, err := m.OwnerOf(id)
	if err != nil {
		return err
	}
	return m.move(caller, owner, asset.Zero, id)
}

func (m *Memory) move(caller, from, to asset.Address, id asset.ID) error {
	log := m.logger.WithAsset(string(id)).WithCaller(string(caller))

	return m.keys.Do(string(id), func() error {
		m.mu.RLock()
		e, ok := m.assets[id]
		if !ok {
			m.mu.RUnlock()
			return errors.NewNotFoundError("asset", string(id))
		}
		owner := e.owner
		allowed := caller == owner ||
			(!caller.IsZero() && e.transferApproved == caller) ||
			m.operators[owner][caller]
		hooks := make([]TransferHook, len(m.hooks))
		copy(hooks, m.hooks)
		m.mu.RUnlock()

		if owner != from {
			return errors.NewValidationError("from is not the current owner").WithField("from").WithValue(from)
		}
		if !allowed {
			return fmt.Errorf("transfer %s by %s: %w", id, caller, errors.ErrUnauthorized)
		}

		for _, h := range hooks {
			if err := h.BeforeTransfer(id, from, to); err != nil {
				log.Warn("transfer vetoed", "from", string(from), "to", string(to), "error", err.Error())
				return fmt.Errorf("transfer %s: %w", id, err)
			}
		}

		m.mu.Lock()
		if to.IsZero() {
			delete(m.assets, id)
		} else {
			e.owner = to
			e.transferApproved = asset.Zero
		}
		m.mu.Unlock()

		for _, h := range hooks {
			h.AfterTransfer(id, from, to)
		}

		m.bus.Publish(event.NewTransferredEvent(m.now(), from, to, id))
		if to.IsZero() {
			log.Info("asset burned", "from", string(from))
		} else {
			log.Info("asset transferred", "from", string(from), "to", string(to))
		}
		return nil
	})
}

// ApproveTransfer sets the single address allowed to transfer id on the
// owner's behalf. A zero approved clears it. Only the owner or one of its
// transfer operators may call it. Locks never block this grant.
func (m *Memory) ApproveTransfer(caller asset.Address, id asset.ID, approved asset.Address) error {
	return m.keys.Do(string(id), func() error {
		m.mu.Lock()
		defer m.mu.Unlock()

		e, ok := m.assets[id]
		if !ok {
			return errors.NewNotFoundError("asset", string(id))
		}
		if caller != e.owner && !m.operators[e.owner][caller] {
			return fmt.Errorf("approve transfer of %s by %s: %w", id, caller, errors.ErrUnauthorized)
		}
		e.transferApproved = approved
		return nil
	})
}

// SetTransferOperator grants or revokes operator the right to transfer
// every asset of owner.
func (m *Memory) SetTransferOperator(owner, operator asset.Address, approved bool) error {
	if owner.IsZero() || operator.IsZero() {
		return errors.ErrNullIdentity
	}
	if owner == operator {
		return errors.ErrSelfApproval
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !approved {
		delete(m.operators[owner], operator)
		return nil
	}
	set, ok := m.operators[owner]
	if !ok {
		set = make(map[asset.Address]bool)
		m.operators[owner] = set
	}
	set[operator] = true
	return nil
}

// TransferApprovalOf returns the per-asset transfer approval of id.
func (m *Memory) TransferApprovalOf(id asset.ID) (asset.Address, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.assets[id]
	if !ok {
		return asset.Zero, errors.NewNotFoundError("asset", string(id))
	}
	return e.transferApproved, nil
}

// IsTransferOperator reports whether operator may transfer every asset of owner.
func (m *Memory) IsTransferOperator(owner, operator asset.Address) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.operators[owner][operator]
}

// OwnerOf returns the owner of id.
func (m *Memory) OwnerOf(id asset.ID) (asset.Address, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.assets[id]
	if !ok {
		return asset.Zero, errors.NewNotFoundError("asset", string(id))
	}
	return e.owner, nil
}

// Exists reports whether id exists.
func (m *Memory) Exists(id asset.ID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.assets[id]
	return ok
}

// MetadataOf returns the metadata of id.
func (m *Memory) MetadataOf(id asset.ID) (asset.Metadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.assets[id]
	if !ok {
		return asset.Metadata{}, errors.NewNotFoundError("asset", string(id))
	}
	return e.metadata, nil
}

// Assets returns every asset id, sorted.
func (m *Memory) Assets() []asset.ID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]asset.ID, 0, len(m.assets))
	for id := range m.assets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AssetsOf returns the ids owned by owner, sorted.
func (m *Memory) AssetsOf(owner asset.Address) []asset.ID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []asset.ID
	for id, e := range m.assets {
		if e.owner == owner {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Snapshot returns the registry state in a deterministic order.
func (m *Memory) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{Assets: make([]AssetState, 0, len(m.assets))}
	for id, e := range m.assets {
		snap.Assets = append(snap.Assets, AssetState{
			ID:               id,
			Owner:            e.owner,
			Metadata:         e.metadata,
			TransferApproved: e.transferApproved,
		})
	}
	sort.Slice(snap.Assets, func(i, j int) bool { return snap.Assets[i].ID < snap.Assets[j].ID })

	for owner, set := range m.operators {
		for op, ok := range set {
			if ok {
				snap.Operators = append(snap.Operators, OperatorGrant{Owner: owner, Operator: op})
			}
		}
	}
	sort.Slice(snap.Operators, func(i, j int) bool {
		a, b := snap.Operators[i], snap.Operators[j]
		if a.Owner != b.Owner {
			return a.Owner < b.Owner
		}
		return a.Operator < b.Operator
	})
	return snap
}

// Restore replaces the registry state with snap. No events are published.
func (m *Memory) Restore(snap Snapshot) error {
	assets := make(map[asset.ID]*entry, len(snap.Assets))
	for _, a := range snap.Assets {
		if err := a.ID.Validate(); err != nil {
			return err
		}
		if a.Owner.IsZero() {
			return fmt.Errorf("restore %s: %w", a.ID, errors.ErrNullOwner)
		}
		if _, dup := assets[a.ID]; dup {
			return errors.NewValidationError("duplicate asset in snapshot").WithField("assetID").WithValue(a.ID)
		}
		assets[a.ID] = &entry{owner: a.Owner, metadata: a.Metadata, transferApproved: a.TransferApproved}
	}
	operators := make(map[asset.Address]map[asset.Address]bool)
	for _, g := range snap.Operators {
		if operators[g.Owner] == nil {
			operators[g.Owner] = make(map[asset.Address]bool)
		}
		operators[g.Owner][g.Operator] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets = assets
	m.operators = operators
	return nil
}
