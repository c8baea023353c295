package event

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func TestJournal_RecordsInOrder(t *testing.T) {
	bus := NewBus()
	j := NewJournal()
	j.Attach(bus)

	bus.Publish(NewTransferredEvent(t0, "", "alice", "1"))
	bus.Publish(NewLockApprovalEvent(t0, "alice", "bob", "", "1"))
	bus.Publish(NewLockedEvent(t0, "bob", "alice", "1", t0.Add(time.Hour)))

	entries := j.Entries()
	if len(entries) != 3 {
		t.Fatalf("len(Entries()) = %d, want 3", len(entries))
	}

	wantTypes := []string{TypeTransferred, TypeLockApproval, TypeLocked}
	for i, e := range entries {
		if e.Seq != uint64(i+1) {
			t.Errorf("entry %d Seq = %d, want %d", i, e.Seq, i+1)
		}
		if e.Type != wantTypes[i] {
			t.Errorf("entry %d Type = %q, want %q", i, e.Type, wantTypes[i])
		}
	}

	if got := j.Since(2); len(got) != 1 || got[0].Type != TypeLocked {
		t.Errorf("Since(2) = %+v, want only the lock entry", got)
	}
}

func TestJournal_Detach(t *testing.T) {
	bus := NewBus()
	j := NewJournal()
	j.Attach(bus)
	j.Detach()

	bus.Publish(NewTransferredEvent(t0, "", "alice", "1"))

	if j.Len() != 0 {
		t.Errorf("Len() = %d after Detach, want 0", j.Len())
	}
}

func TestJournal_FileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")

	j, err := OpenJournal(path)
	if err != nil {
		t.Fatalf("OpenJournal() error: %v", err)
	}

	expiry := t0.Add(2 * time.Hour)
	if _, err := j.Record(NewLockedEvent(t0, "bob", "alice", "7", expiry)); err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if _, err := j.Record(NewLockApprovalForAllEvent(t0, "alice", "carol", true, false)); err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	entries, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}

	if entries[0].ID == "" || entries[0].ID == entries[1].ID {
		t.Errorf("entry IDs = %q, %q; want distinct non-empty", entries[0].ID, entries[1].ID)
	}
	if entries[0].ID != j.Entries()[0].ID {
		t.Errorf("ID changed across the file: %q != %q", entries[0].ID, j.Entries()[0].ID)
	}

	locked, ok := entries[0].Event.(LockedEvent)
	if !ok {
		t.Fatalf("entry 0 event = %T, want LockedEvent", entries[0].Event)
	}
	if locked.Operator != "bob" || locked.From != "alice" || locked.AssetID != "7" {
		t.Errorf("decoded LockedEvent = %+v", locked)
	}
	if !locked.Expiry.Equal(expiry) {
		t.Errorf("Expiry = %v, want %v", locked.Expiry, expiry)
	}
	if locked.EventType() != TypeLocked || !locked.Timestamp().Equal(t0) {
		t.Errorf("base event = (%q, %v)", locked.EventType(), locked.Timestamp())
	}

	all, ok := entries[1].Event.(LockApprovalForAllEvent)
	if !ok {
		t.Fatalf("entry 1 event = %T, want LockApprovalForAllEvent", entries[1].Event)
	}
	if !all.Approved || all.Previous {
		t.Errorf("decoded LockApprovalForAllEvent = %+v", all)
	}

	// Reopening continues the sequence.
	j2, err := OpenJournal(path)
	if err != nil {
		t.Fatalf("OpenJournal() reopen error: %v", err)
	}
	entry, err := j2.Record(NewUnlockedEvent(t0, "bob", "alice", "7"))
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if entry.Seq != 3 {
		t.Errorf("Seq after reopen = %d, want 3", entry.Seq)
	}
}

func TestReadFile_Missing(t *testing.T) {
	entries, err := ReadFile(filepath.Join(t.TempDir(), "nope.jsonl"))
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if entries != nil {
		t.Errorf("entries = %v, want nil", entries)
	}
}

func TestReadFile_UnknownType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	line := `{"seq":1,"type":"mystery.event","time":"2026-01-02T03:04:05Z","data":{}}` + "\n"
	if err := os.WriteFile(path, []byte(line), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadFile(path); err == nil {
		t.Error("ReadFile() should reject unknown event types")
	}
}

func TestDecode_AllTypes(t *testing.T) {
	events := []Event{
		NewLockedEvent(t0, "a", "b", "1", t0),
		NewUnlockedEvent(t0, "a", "b", "1"),
		NewLockExpiredEvent(t0, "a", "b", "1", t0),
		NewLockApprovalEvent(t0, "a", "b", "", "1"),
		NewLockApprovalForAllEvent(t0, "a", "b", true, false),
		NewTransferredEvent(t0, "a", "b", "1"),
		NewTransferBlockedEvent(t0, "a", "b", "1", "c"),
		NewCertificateMintedEvent(t0, "bound-1", "1", "a"),
		NewCertificateBurnedEvent(t0, "bound-1", "1"),
	}

	j := NewJournal()
	for _, e := range events {
		entry, err := j.Record(e)
		if err != nil {
			t.Fatalf("Record(%s) error: %v", e.EventType(), err)
		}
		got, err := Decode(entry.Type, entry.Time, entry.Data)
		if err != nil {
			t.Fatalf("Decode(%s) error: %v", entry.Type, err)
		}
		if got.EventType() != e.EventType() {
			t.Errorf("Decode(%s) type = %q", entry.Type, got.EventType())
		}
		data, err := json.Marshal(got)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != string(entry.Data) {
			t.Errorf("Decode(%s) payload = %s, want %s", entry.Type, data, entry.Data)
		}
	}
}
