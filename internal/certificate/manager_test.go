package certificate

import (
	"testing"
	"time"

	"github.com/Iron-Ham/lockreg/internal/approval"
	"github.com/Iron-Ham/lockreg/internal/asset"
	"github.com/Iron-Ham/lockreg/internal/errors"
	"github.com/Iron-Ham/lockreg/internal/event"
	"github.com/Iron-Ham/lockreg/internal/ledger"
	"github.com/Iron-Ham/lockreg/internal/registry"
	"github.com/Iron-Ham/lockreg/internal/serial"
	"github.com/Iron-Ham/lockreg/internal/testutil"
)

type fixture struct {
	manager *Manager
	ledger  *ledger.Ledger
	clock   *testutil.FakeClock
	bus     *event.Bus
}

func newFixture(t *testing.T, policy Policy) *fixture {
	t.Helper()
	clock := testutil.NewFakeClock()
	bus := event.NewBus()
	keys := serial.New()

	reg := registry.NewMemory(registry.WithSerializer(keys))
	_ = reg.Mint("alice", "art-1", asset.Metadata{URI: "ipfs://art-1", Class: "art"})
	_ = reg.Mint("alice", "land-1", asset.Metadata{URI: "ipfs://land-1", Class: "land"})

	m := NewManager(reg, policy, WithBus(bus), WithClock(clock.Now))
	approvals := approval.NewStore(reg)
	l := ledger.New(reg, approvals,
		ledger.WithSerializer(keys),
		ledger.WithClock(clock.Now),
		ledger.WithCompanion(m),
	)
	return &fixture{manager: m, ledger: l, clock: clock, bus: bus}
}

func TestPolicyCovers(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		class  string
		want   bool
	}{
		{name: "disabled", policy: Policy{}, class: "art", want: false},
		{name: "enabled all classes", policy: Policy{Enabled: true}, class: "art", want: true},
		{name: "listed class", policy: Policy{Enabled: true, Classes: []string{"art"}}, class: "art", want: true},
		{name: "unlisted class", policy: Policy{Enabled: true, Classes: []string{"art"}}, class: "land", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Covers(tt.class); got != tt.want {
				t.Errorf("Covers(%q) = %v, want %v", tt.class, got, tt.want)
			}
		})
	}
}

func TestLockMintsCertificate(t *testing.T) {
	f := newFixture(t, Policy{Enabled: true})
	expiry := f.clock.Now().Add(time.Hour)

	if err := f.ledger.Lock("alice", "art-1", expiry); err != nil {
		t.Fatal(err)
	}

	cert, ok := f.manager.CertificateOf("art-1")
	if !ok {
		t.Fatal("certificate should exist after lock")
	}
	if cert.ID != "bound-art-1" || cert.Holder != "alice" || cert.Locker != "alice" {
		t.Errorf("certificate = %+v", cert)
	}
	if cert.MetadataURI != "ipfs://art-1" {
		t.Errorf("MetadataURI = %q, want ipfs://art-1", cert.MetadataURI)
	}
	if !cert.Expiry.Equal(expiry) {
		t.Errorf("Expiry = %v, want %v", cert.Expiry, expiry)
	}
}

func TestUnlockBurnsCertificate(t *testing.T) {
	f := newFixture(t, Policy{Enabled: true})
	var types []string
	f.bus.SubscribeAll(func(e event.Event) { types = append(types, e.EventType()) })

	_ = f.ledger.Lock("alice", "art-1", f.clock.Now().Add(time.Hour))
	if err := f.ledger.Unlock("alice", "art-1"); err != nil {
		t.Fatal(err)
	}

	if f.manager.Exists("art-1") {
		t.Error("certificate should not exist after unlock")
	}
	want := []string{event.TypeCertificateMinted, event.TypeCertificateBurned}
	if len(types) != len(want) || types[0] != want[0] || types[1] != want[1] {
		t.Errorf("events = %v, want %v", types, want)
	}
}

func TestCertificateExpiresWithLock(t *testing.T) {
	f := newFixture(t, Policy{Enabled: true})
	_ = f.ledger.Lock("alice", "art-1", f.clock.Now().Add(time.Hour))

	f.clock.Advance(time.Hour)
	if f.manager.Exists("art-1") {
		t.Error("certificate should read as absent once the lock expires")
	}
	if len(f.manager.Certificates()) != 0 {
		t.Error("Certificates() should omit expired certificates")
	}

	var types []string
	f.bus.SubscribeAll(func(e event.Event) { types = append(types, e.EventType()) })

	// Relocking burns the expired certificate and mints a fresh one.
	if err := f.ledger.Lock("alice", "art-1", f.clock.Now().Add(time.Hour)); err != nil {
		t.Fatalf("relock error = %v", err)
	}
	want := []string{event.TypeCertificateBurned, event.TypeCertificateMinted}
	if len(types) != len(want) || types[0] != want[0] || types[1] != want[1] {
		t.Errorf("relock events = %v, want %v", types, want)
	}
	cert, ok := f.manager.CertificateOf("art-1")
	if !ok || !cert.MintedAt.Equal(f.clock.Now()) {
		t.Errorf("CertificateOf() = %+v, %v; want fresh certificate", cert, ok)
	}
}

func TestPolicySkipsUncoveredClass(t *testing.T) {
	f := newFixture(t, Policy{Enabled: true, Classes: []string{"art"}})

	if err := f.ledger.Lock("alice", "land-1", f.clock.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if f.manager.Exists("land-1") {
		t.Error("uncovered class should not receive a certificate")
	}
	if !f.ledger.IsLocked("land-1") {
		t.Error("lock should still succeed without a certificate")
	}
	if err := f.ledger.Unlock("alice", "land-1"); err != nil {
		t.Errorf("Unlock() without certificate error = %v", err)
	}
}

func TestDisabledPolicy(t *testing.T) {
	f := newFixture(t, Policy{})
	_ = f.ledger.Lock("alice", "art-1", f.clock.Now().Add(time.Hour))
	if f.manager.Exists("art-1") {
		t.Error("disabled policy minted a certificate")
	}
}

type failingMetadata struct{}

func (failingMetadata) MetadataOf(id asset.ID) (asset.Metadata, error) {
	return asset.Metadata{}, errors.New("metadata store offline")
}

func TestMetadataFailureAbortsLock(t *testing.T) {
	clock := testutil.NewFakeClock()
	reg := registry.NewMemory()
	_ = reg.Mint("alice", "art-1", asset.Metadata{Class: "art"})

	m := NewManager(failingMetadata{}, Policy{Enabled: true}, WithClock(clock.Now))
	l := ledger.New(reg, approval.NewStore(reg), ledger.WithClock(clock.Now), ledger.WithCompanion(m))

	err := l.Lock("alice", "art-1", clock.Now().Add(time.Hour))
	var certErr *errors.CertificateError
	if !errors.As(err, &certErr) {
		t.Fatalf("Lock() error = %v, want CertificateError", err)
	}
	if certErr.AssetID != "art-1" {
		t.Errorf("AssetID = %q, want art-1", certErr.AssetID)
	}
	if l.IsLocked("art-1") {
		t.Error("lock stored despite certificate failure")
	}
	if m.Exists("art-1") {
		t.Error("certificate stored despite failure")
	}
}

type toggledMetadata struct {
	registry.MetadataSource
	err error
}

func (m *toggledMetadata) MetadataOf(id asset.ID) (asset.Metadata, error) {
	if m.err != nil {
		return asset.Metadata{}, m.err
	}
	return m.MetadataSource.MetadataOf(id)
}

func TestFailedRelockKeepsExpiredCertificate(t *testing.T) {
	clock := testutil.NewFakeClock()
	reg := registry.NewMemory()
	_ = reg.Mint("alice", "art-1", asset.Metadata{Class: "art"})
	meta := &toggledMetadata{MetadataSource: reg}
	bus := event.NewBus()
	m := NewManager(meta, Policy{Enabled: true}, WithBus(bus), WithClock(clock.Now))
	l := ledger.New(reg, approval.NewStore(reg), ledger.WithClock(clock.Now), ledger.WithCompanion(m))

	if err := l.Lock("alice", "art-1", clock.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	clock.Advance(2 * time.Hour)
	meta.err = errors.New("metadata store offline")
	published := bus.PublishedCount()

	if err := l.Lock("alice", "art-1", clock.Now().Add(time.Hour)); err == nil {
		t.Fatal("relock succeeded despite metadata failure")
	}
	if snap := m.Snapshot(); len(snap) != 1 || snap[0].ID != "bound-art-1" {
		t.Errorf("Snapshot() = %+v, want the expired certificate kept", snap)
	}
	if bus.PublishedCount() != published {
		t.Error("failed relock published events")
	}

	meta.err = nil
	if err := l.Lock("alice", "art-1", clock.Now().Add(time.Hour)); err != nil {
		t.Fatalf("relock after recovery error = %v", err)
	}
	if cert, ok := m.CertificateOf("art-1"); !ok || !cert.MintedAt.Equal(clock.Now()) {
		t.Errorf("CertificateOf() = %+v, %v; want fresh certificate", cert, ok)
	}
}

func TestDuplicateCertificateRejected(t *testing.T) {
	clock := testutil.NewFakeClock()
	reg := registry.NewMemory()
	_ = reg.Mint("alice", "art-1", asset.Metadata{Class: "art"})
	m := NewManager(reg, Policy{Enabled: true}, WithClock(clock.Now))

	rec := ledger.Record{Locker: "alice", Owner: "alice", Expiry: clock.Now().Add(time.Hour)}
	if err := m.OnLockCreated("art-1", rec); err != nil {
		t.Fatal(err)
	}
	if err := m.OnLockCreated("art-1", rec); err == nil {
		t.Error("second OnLockCreated() should fail")
	}
}

func TestTransferUnsupported(t *testing.T) {
	f := newFixture(t, Policy{Enabled: true})
	_ = f.ledger.Lock("alice", "art-1", f.clock.Now().Add(time.Hour))

	err := f.manager.Transfer("alice", IDFor("art-1"), "bob")
	if !errors.Is(err, errors.ErrUnsupported) {
		t.Fatalf("Transfer() error = %v, want ErrUnsupported", err)
	}
	if cert, _ := f.manager.CertificateOf("art-1"); cert.Holder != "alice" {
		t.Errorf("Holder = %q after rejected transfer", cert.Holder)
	}
}

func TestOnLockReleased_NoCertificateIsNoop(t *testing.T) {
	f := newFixture(t, Policy{Enabled: true})
	published := f.bus.PublishedCount()
	f.manager.OnLockReleased("art-1")
	if f.bus.PublishedCount() != published {
		t.Error("release without certificate published an event")
	}
}

func TestSnapshotRestore(t *testing.T) {
	f := newFixture(t, Policy{Enabled: true})
	_ = f.ledger.Lock("alice", "art-1", f.clock.Now().Add(time.Hour))

	restored := NewManager(nil, Policy{Enabled: true}, WithClock(f.clock.Now))
	restored.Restore(f.manager.Snapshot())
	if !restored.Exists("art-1") {
		t.Error("certificate not restored")
	}
}
