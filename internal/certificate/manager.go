package certificate

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/Iron-Ham/lockreg/internal/asset"
	"github.com/Iron-Ham/lockreg/internal/errors"
	"github.com/Iron-Ham/lockreg/internal/event"
	"github.com/Iron-Ham/lockreg/internal/ledger"
	"github.com/Iron-Ham/lockreg/internal/logging"
	"github.com/Iron-Ham/lockreg/internal/registry"
)

// IDPrefix prefixes the asset id to form a certificate id.
const IDPrefix = "bound-"

// Policy selects the assets that receive a certificate when locked.
type Policy struct {
	Enabled bool     `json:"enabled"`
	Classes []string `json:"classes,omitempty"` // Empty covers every class
}

// Covers reports whether an asset of the given class gets a certificate.
func (p Policy) Covers(class string) bool {
	if !p.Enabled {
		return false
	}
	return len(p.Classes) == 0 || slices.Contains(p.Classes, class)
}

// Certificate is a non-transferable token bound to one lock.
type Certificate struct {
	ID          string        `json:"id"`
	AssetID     asset.ID      `json:"asset_id"`
	Holder      asset.Address `json:"holder"` // Owner of the locked asset
	Locker      asset.Address `json:"locker"`
	MetadataURI string        `json:"metadata_uri,omitempty"`
	MintedAt    time.Time     `json:"minted_at"`
	Expiry      time.Time     `json:"expiry"`
}

// ActiveAt reports whether the certificate's lock is still in force at now.
func (c Certificate) ActiveAt(now time.Time) bool {
	return c.Expiry.After(now)
}

// IDFor returns the certificate id bound to an asset.
func IDFor(id asset.ID) string {
	return IDPrefix + string(id)
}

// Manager mints and burns bound certificates.
type Manager struct {
	mu    sync.RWMutex
	certs map[asset.ID]Certificate

	metadata registry.MetadataSource
	policy   Policy
	bus      *event.Bus
	now      func() time.Time
	logger   *logging.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithBus sets the event bus that receives certificate events.
func WithBus(bus *event.Bus) Option {
	return func(m *Manager) {
		m.bus = bus
	}
}

// WithClock sets the time source used for expiry checks and event stamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a Manager that reads metadata from metadata.
func NewManager(metadata registry.MetadataSource, policy Policy, opts ...Option) *Manager {
	m := &Manager{
		certs:    make(map[asset.ID]Certificate),
		metadata: metadata,
		policy:   policy,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.OrNop(m.logger).WithComponent("certificate")
	return m
}

// Policy returns the manager's policy.
func (m *Manager) Policy() Policy {
	return m.policy
}

// OnLockCreated mints the certificate for a new lock when the policy covers
// the asset. A certificate left behind by an expired lock on id is burned
// first. Any error rejects the lock and leaves every certificate untouched.
func (m *Manager) OnLockCreated(id asset.ID, rec ledger.Record) error {
	certID := IDFor(id)
	covered := false
	var meta asset.Metadata
	if m.policy.Enabled {
		var err error
		meta, err = m.metadata.MetadataOf(id)
		if err != nil {
			return errors.NewCertificateError("metadata lookup failed", err).
				WithAsset(string(id)).WithCertificate(certID)
		}
		covered = m.policy.Covers(meta.Class)
	}

	now := m.now()
	m.mu.Lock()
	prior, hadPrior := m.certs[id]
	if hadPrior && prior.ActiveAt(now) {
		m.mu.Unlock()
		return errors.NewCertificateError("certificate already minted", nil).
			WithAsset(string(id)).WithCertificate(certID)
	}
	delete(m.certs, id)
	if covered {
		m.certs[id] = Certificate{
			ID:          certID,
			AssetID:     id,
			Holder:      rec.Owner,
			Locker:      rec.Locker,
			MetadataURI: meta.URI,
			MintedAt:    now,
			Expiry:      rec.Expiry,
		}
	}
	m.mu.Unlock()

	log := m.logger.WithAsset(string(id))
	if hadPrior {
		m.bus.Publish(event.NewCertificateBurnedEvent(now, prior.ID, id))
		log.Info("expired certificate burned", "certificate", prior.ID)
	}
	if covered {
		m.bus.Publish(event.NewCertificateMintedEvent(now, certID, id, rec.Owner))
		log.Info("certificate minted", "certificate", certID, "holder", string(rec.Owner))
	}
	return nil
}

// OnLockReleased burns the certificate of id. It is a no-op when none exists.
func (m *Manager) OnLockReleased(id asset.ID) {
	m.mu.Lock()
	cert, ok := m.certs[id]
	if ok {
		delete(m.certs, id)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	m.bus.Publish(event.NewCertificateBurnedEvent(m.now(), cert.ID, id))
	m.logger.WithAsset(string(id)).Info("certificate burned", "certificate", cert.ID)
}

// CertificateOf returns the certificate bound to id while its lock is in force.
func (m *Manager) CertificateOf(id asset.ID) (Certificate, bool) {
	m.mu.RLock()
	cert, ok := m.certs[id]
	m.mu.RUnlock()

	if !ok || !cert.ActiveAt(m.now()) {
		return Certificate{}, false
	}
	return cert, true
}

// Exists reports whether a live certificate is bound to id.
func (m *Manager) Exists(id asset.ID) bool {
	_, ok := m.CertificateOf(id)
	return ok
}

// Certificates returns every live certificate, sorted by asset id.
func (m *Manager) Certificates() []Certificate {
	now := m.now()
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Certificate
	for _, c := range m.certs {
		if c.ActiveAt(now) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out
}

// Transfer always fails: bound certificates never change hands.
func (m *Manager) Transfer(_ asset.Address, certID string, _ asset.Address) error {
	return errors.NewCertificateError("transfer rejected", errors.ErrCertificateNotTransferable).
		WithCertificate(certID)
}

// Snapshot returns every stored certificate, sorted by asset id.
func (m *Manager) Snapshot() []Certificate {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Certificate, 0, len(m.certs))
	for _, c := range m.certs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out
}

// Restore replaces every certificate with certs. No events are published.
func (m *Manager) Restore(certs []Certificate) {
	next := make(map[asset.ID]Certificate, len(certs))
	for _, c := range certs {
		next[c.AssetID] = c
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.certs = next
}
