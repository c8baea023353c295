package registry

import (
	"sync"
	"testing"

	"github.com/Iron-Ham/lockreg/internal/asset"
	"github.com/Iron-Ham/lockreg/internal/errors"
	"github.com/Iron-Ham/lockreg/internal/event"
)

type recordingHook struct {
	veto   error
	before []string
	after  []string
}

func (h *recordingHook) BeforeTransfer(id asset.ID, from, to asset.Address) error {
	h.before = append(h.before, string(id)+":"+from.String()+"->"+to.String())
	return h.veto
}

func (h *recordingHook) AfterTransfer(id asset.ID, from, to asset.Address) {
	h.after = append(h.after, string(id)+":"+from.String()+"->"+to.String())
}

func newTestMemory(t *testing.T) (*Memory, *event.Bus) {
	t.Helper()
	bus := event.NewBus()
	m := NewMemory(WithBus(bus))
	if err := m.Mint("alice", "1", asset.Metadata{URI: "ipfs://1", Class: "art"}); err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	return m, bus
}

func TestMint(t *testing.T) {
	tests := []struct {
		name    string
		to      asset.Address
		id      asset.ID
		wantErr error
	}{
		{name: "new asset", to: "bob", id: "2"},
		{name: "duplicate id", to: "bob", id: "1", wantErr: errors.ErrInvalidArgument},
		{name: "zero recipient", to: asset.Zero, id: "3", wantErr: errors.ErrInvalidArgument},
		{name: "empty id", to: "bob", id: "", wantErr: errors.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestMemory(t)
			err := m.Mint(tt.to, tt.id, asset.Metadata{})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Mint() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Mint() unexpected error: %v", err)
			}
			owner, err := m.OwnerOf(tt.id)
			if err != nil || owner != tt.to {
				t.Errorf("OwnerOf() = %q, %v; want %q", owner, err, tt.to)
			}
		})
	}
}

func TestMint_PublishesTransferFromZero(t *testing.T) {
	bus := event.NewBus()
	var got []event.TransferredEvent
	bus.Subscribe(event.TypeTransferred, func(e event.Event) {
		got = append(got, e.(event.TransferredEvent))
	})
	m := NewMemory(WithBus(bus))

	if err := m.Mint("alice", "1", asset.Metadata{}); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || !got[0].From.IsZero() || got[0].To != "alice" {
		t.Errorf("events = %+v, want one mint to alice", got)
	}
}

func TestTransfer_Authorization(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(m *Memory)
		caller  asset.Address
		from    asset.Address
		wantErr error
	}{
		{name: "owner", caller: "alice", from: "alice"},
		{
			name:   "transfer-approved",
			setup:  func(m *Memory) { _ = m.ApproveTransfer("alice", "1", "carol") },
			caller: "carol",
			from:   "alice",
		},
		{
			name:   "operator",
			setup:  func(m *Memory) { _ = m.SetTransferOperator("alice", "dave", true) },
			caller: "dave",
			from:   "alice",
		},
		{name: "stranger", caller: "mallory", from: "alice", wantErr: errors.ErrUnauthorized},
		{name: "wrong from", caller: "alice", from: "bob", wantErr: errors.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestMemory(t)
			if tt.setup != nil {
				tt.setup(m)
			}

			err := m.Transfer(tt.caller, tt.from, "bob", "1")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Transfer() error = %v, want %v", err, tt.wantErr)
				}
				if owner, _ := m.OwnerOf("1"); owner != "alice" {
					t.Errorf("owner changed to %q after failed transfer", owner)
				}
				return
			}
			if err != nil {
				t.Fatalf("Transfer() unexpected error: %v", err)
			}
			if owner, _ := m.OwnerOf("1"); owner != "bob" {
				t.Errorf("OwnerOf() = %q, want bob", owner)
			}
		})
	}
}

func TestTransfer_NotFound(t *testing.T) {
	m, _ := newTestMemory(t)
	if err := m.Transfer("alice", "alice", "bob", "missing"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Transfer() error = %v, want ErrNotFound", err)
	}
}

func TestTransfer_ClearsTransferApproval(t *testing.T) {
	m, _ := newTestMemory(t)
	if err := m.ApproveTransfer("alice", "1", "carol"); err != nil {
		t.Fatal(err)
	}
	if err := m.Transfer("alice", "alice", "bob", "1"); err != nil {
		t.Fatal(err)
	}
	approved, err := m.TransferApprovalOf("1")
	if err != nil {
		t.Fatal(err)
	}
	if !approved.IsZero() {
		t.Errorf("TransferApprovalOf() = %q after transfer, want zero", approved)
	}
}

func TestTransfer_HookVeto(t *testing.T) {
	m, bus := newTestMemory(t)
	hook := &recordingHook{veto: errors.ErrAssetLocked}
	m.AddHook(hook)

	published := bus.PublishedCount()
	err := m.Transfer("alice", "alice", "bob", "1")
	if !errors.Is(err, errors.ErrAssetLocked) {
		t.Fatalf("Transfer() error = %v, want ErrAssetLocked", err)
	}
	if owner, _ := m.OwnerOf("1"); owner != "alice" {
		t.Errorf("owner = %q after veto, want alice", owner)
	}
	if len(hook.after) != 0 {
		t.Errorf("AfterTransfer called after veto: %v", hook.after)
	}
	if bus.PublishedCount() != published {
		t.Error("vetoed transfer should not publish")
	}
}

func TestTransfer_HookOrder(t *testing.T) {
	m, _ := newTestMemory(t)
	hook := &recordingHook{}
	m.AddHook(hook)

	if err := m.Transfer("alice", "alice", "bob", "1"); err != nil {
		t.Fatal(err)
	}
	if len(hook.before) != 1 || hook.before[0] != "1:alice->bob" {
		t.Errorf("before = %v", hook.before)
	}
	if len(hook.after) != 1 || hook.after[0] != "1:alice->bob" {
		t.Errorf("after = %v", hook.after)
	}
}

func TestBurn(t *testing.T) {
	m, _ := newTestMemory(t)
	hook := &recordingHook{}
	m.AddHook(hook)

	if err := m.Burn("mallory", "1"); !errors.Is(err, errors.ErrUnauthorized) {
		t.Fatalf("Burn() by stranger error = %v, want ErrUnauthorized", err)
	}
	if err := m.Burn("alice", "1"); err != nil {
		t.Fatalf("Burn() error = %v", err)
	}
	if m.Exists("1") {
		t.Error("asset should not exist after burn")
	}
	if len(hook.before) != 2 || hook.before[1] != "1:alice->none" {
		t.Errorf("before = %v", hook.before)
	}
	if err := m.Burn("alice", "1"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second Burn() error = %v, want ErrNotFound", err)
	}
}

func TestBurn_Vetoed(t *testing.T) {
	m, _ := newTestMemory(t)
	m.AddHook(&recordingHook{veto: errors.ErrAssetLocked})

	if err := m.Burn("alice", "1"); !errors.Is(err, errors.ErrAssetLocked) {
		t.Fatalf("Burn() error = %v, want ErrAssetLocked", err)
	}
	if !m.Exists("1") {
		t.Error("vetoed burn removed the asset")
	}
}

func TestApproveTransfer_Unauthorized(t *testing.T) {
	m, _ := newTestMemory(t)
	if err := m.ApproveTransfer("bob", "1", "carol"); !errors.Is(err, errors.ErrUnauthorized) {
		t.Errorf("ApproveTransfer() error = %v, want ErrUnauthorized", err)
	}
}

func TestSetTransferOperator(t *testing.T) {
	m, _ := newTestMemory(t)

	if err := m.SetTransferOperator("alice", "alice", true); !errors.Is(err, errors.ErrInvalidArgument) {
		t.Errorf("self operator error = %v, want ErrInvalidArgument", err)
	}
	if err := m.SetTransferOperator("alice", asset.Zero, true); !errors.Is(err, errors.ErrInvalidArgument) {
		t.Errorf("zero operator error = %v, want ErrInvalidArgument", err)
	}

	if err := m.SetTransferOperator("alice", "dave", true); err != nil {
		t.Fatal(err)
	}
	if !m.IsTransferOperator("alice", "dave") {
		t.Error("dave should be an operator")
	}
	if err := m.SetTransferOperator("alice", "dave", false); err != nil {
		t.Fatal(err)
	}
	if m.IsTransferOperator("alice", "dave") {
		t.Error("dave should no longer be an operator")
	}
}

func TestAssetsOf(t *testing.T) {
	m, _ := newTestMemory(t)
	_ = m.Mint("alice", "3", asset.Metadata{})
	_ = m.Mint("bob", "2", asset.Metadata{})

	got := m.AssetsOf("alice")
	if len(got) != 2 || got[0] != "1" || got[1] != "3" {
		t.Errorf("AssetsOf(alice) = %v, want [1 3]", got)
	}
	if all := m.Assets(); len(all) != 3 {
		t.Errorf("Assets() = %v, want 3 ids", all)
	}
}

func TestSnapshotRestore(t *testing.T) {
	m, _ := newTestMemory(t)
	_ = m.ApproveTransfer("alice", "1", "carol")
	_ = m.SetTransferOperator("alice", "dave", true)

	snap := m.Snapshot()

	restored := NewMemory()
	if err := restored.Restore(snap); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if owner, _ := restored.OwnerOf("1"); owner != "alice" {
		t.Errorf("OwnerOf() = %q, want alice", owner)
	}
	meta, _ := restored.MetadataOf("1")
	if meta.URI != "ipfs://1" || meta.Class != "art" {
		t.Errorf("MetadataOf() = %+v", meta)
	}
	if approved, _ := restored.TransferApprovalOf("1"); approved != "carol" {
		t.Errorf("TransferApprovalOf() = %q, want carol", approved)
	}
	if !restored.IsTransferOperator("alice", "dave") {
		t.Error("operator grant not restored")
	}
}

func TestRestore_RejectsZeroOwner(t *testing.T) {
	m := NewMemory()
	err := m.Restore(Snapshot{Assets: []AssetState{{ID: "1"}}})
	if !errors.Is(err, errors.ErrInvalidArgument) {
		t.Errorf("Restore() error = %v, want ErrInvalidArgument", err)
	}
}

func TestTransfer_ConcurrentSingleWinner(t *testing.T) {
	m, _ := newTestMemory(t)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for _, to := range []asset.Address{"bob", "carol", "dave", "erin"} {
		wg.Go(func() {
			if err := m.Transfer("alice", "alice", to, "1"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("wins = %d, want exactly 1", wins)
	}
}
