package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Iron-Ham/lockreg/internal/approval"
	"github.com/Iron-Ham/lockreg/internal/asset"
	"github.com/Iron-Ham/lockreg/internal/certificate"
	"github.com/Iron-Ham/lockreg/internal/errors"
	"github.com/Iron-Ham/lockreg/internal/ledger"
	"github.com/Iron-Ham/lockreg/internal/registry"
)

func sampleState() *State {
	expiry := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	return &State{
		Registry: registry.Snapshot{
			Assets: []registry.AssetState{
				{ID: "1", Owner: "alice", Metadata: asset.Metadata{URI: "ipfs://1", Class: "art"}},
			},
		},
		Locks: []ledger.LockState{
			{AssetID: "1", Record: ledger.Record{Locker: "bob", Owner: "alice", Expiry: expiry}},
		},
		Approvals: approval.Snapshot{
			Blanket: []approval.BlanketGrant{{Owner: "alice", Operator: "dave"}},
		},
		Certificates: []certificate.Certificate{
			{ID: "bound-1", AssetID: "1", Holder: "alice", Locker: "bob", Expiry: expiry},
		},
	}
}

func openSession(t *testing.T, dir string) *Session {
	t.Helper()
	s, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndLoad(t *testing.T) {
	s := openSession(t, t.TempDir())
	if err := s.Save(sampleState()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Version != Version {
		t.Errorf("Version = %d, want %d", loaded.Version, Version)
	}
	if loaded.SavedAt.IsZero() {
		t.Error("SavedAt should be stamped")
	}
	if len(loaded.Registry.Assets) != 1 || loaded.Registry.Assets[0].Metadata.URI != "ipfs://1" {
		t.Errorf("Registry = %+v", loaded.Registry)
	}
	if len(loaded.Locks) != 1 || loaded.Locks[0].Locker != "bob" {
		t.Errorf("Locks = %+v", loaded.Locks)
	}
	if len(loaded.Approvals.Blanket) != 1 {
		t.Errorf("Approvals = %+v", loaded.Approvals)
	}
	if len(loaded.Certificates) != 1 || loaded.Certificates[0].ID != "bound-1" {
		t.Errorf("Certificates = %+v", loaded.Certificates)
	}
}

func TestSave_AtomicWrite(t *testing.T) {
	dir := t.TempDir()
	if err := openSession(t, dir).Save(sampleState()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(StatePath(dir) + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should be removed after atomic rename")
	}
}

func TestSave_InvalidDirectory(t *testing.T) {
	if err := writeState("/nonexistent/directory/path", sampleState()); err == nil {
		t.Error("writeState to nonexistent directory should fail")
	}
}

func TestLoad_NoState(t *testing.T) {
	_, err := openSession(t, t.TempDir()).Load()
	if !errors.Is(err, ErrNoState) {
		t.Errorf("Load() error = %v, want ErrNoState", err)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(StatePath(dir), []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := openSession(t, dir).Load(); err == nil {
		t.Error("Load() should fail on invalid JSON")
	}
}

func TestLoad_NewerVersion(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(StatePath(dir), []byte(`{"version": 99}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := openSession(t, dir).Load(); !errors.Is(err, errors.ErrInvalidArgument) {
		t.Errorf("Load() error = %v, want ErrInvalidArgument", err)
	}
}

func TestSession(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	s, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, err := s.Load(); !errors.Is(err, ErrNoState) {
		t.Errorf("Load() on fresh dir error = %v, want ErrNoState", err)
	}
	if err := s.Save(sampleState()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	held, err := NewFileLock(dir).TryLock()
	if err != nil {
		t.Fatal(err)
	}
	if held {
		t.Error("session should hold the directory lock")
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := openSession(t, dir).Load(); err != nil {
		t.Errorf("Load() after Close error = %v", err)
	}
}

func TestOpen_WaitsForHolder(t *testing.T) {
	dir := t.TempDir()
	first := openSession(t, dir)

	waiting := make(chan struct{})
	opened := make(chan *Session, 1)
	go func() {
		s, err := Open(dir, func() { close(waiting) })
		if err != nil {
			t.Errorf("Open: %v", err)
			opened <- nil
			return
		}
		opened <- s
	}()

	select {
	case <-waiting:
	case <-time.After(5 * time.Second):
		t.Fatal("second Open did not report waiting")
	}
	select {
	case <-opened:
		t.Fatal("second Open returned while the first session held the lock")
	case <-time.After(50 * time.Millisecond):
	}

	if err := first.Close(); err != nil {
		t.Fatal(err)
	}
	select {
	case s := <-opened:
		if s != nil {
			_ = s.Close()
		}
	case <-time.After(5 * time.Second):
		t.Fatal("second Open did not return after the lock was released")
	}
}

func TestOpen_FreeDirectoryDoesNotWait(t *testing.T) {
	s, err := Open(t.TempDir(), func() { t.Error("waiting called for a free directory") })
	if err != nil {
		t.Fatal(err)
	}
	_ = s.Close()
}

func TestPaths(t *testing.T) {
	if got := JournalPath("/x"); got != filepath.Join("/x", "events.jsonl") {
		t.Errorf("JournalPath() = %q", got)
	}
	if got := StatePath("/x"); got != filepath.Join("/x", "state.json") {
		t.Errorf("StatePath() = %q", got)
	}
}
