// Package store persists registry state for the command-line tool.
//
// A state directory holds a JSON snapshot (state.json), the event journal
// (events.jsonl) and a lock file. A [Session] holds the directory's
// flock(2) lock from Open to Close so that a load, an operation and the
// following save happen as one step with respect to other processes.
// Snapshots are written atomically through a temporary file and rename.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/Iron-Ham/lockreg/internal/approval"
	"github.com/Iron-Ham/lockreg/internal/certificate"
	"github.com/Iron-Ham/lockreg/internal/errors"
	"github.com/Iron-Ham/lockreg/internal/ledger"
	"github.com/Iron-Ham/lockreg/internal/registry"
)

const (
	stateFileName   = "state.json"
	journalFileName = "events.jsonl"

	// Version is the snapshot format version written by Session.Save.
	Version = 1
)

// ErrNoState is returned by Session.Load when the directory has no snapshot yet.
var ErrNoState = errors.New("no saved state")

// State is everything needed to rebuild the lock registry.
type State struct {
	Version      int                       `json:"version"`
	SavedAt      time.Time                 `json:"saved_at"`
	Registry     registry.Snapshot         `json:"registry"`
	Locks        []ledger.LockState        `json:"locks,omitempty"`
	Approvals    approval.Snapshot         `json:"approvals"`
	Certificates []certificate.Certificate `json:"certificates,omitempty"`
}

// JournalPath returns the path of the event journal inside dir.
func JournalPath(dir string) string {
	return filepath.Join(dir, journalFileName)
}

// StatePath returns the path of the snapshot inside dir.
func StatePath(dir string) string {
	return filepath.Join(dir, stateFileName)
}

// Session is an exclusive hold on a state directory.
type Session struct {
	dir  string
	lock *FileLock
}

// Open creates dir if needed and locks it, blocking while another process
// holds the lock. waiting, if non-nil, is called once before blocking.
func Open(dir string, waiting func()) (*Session, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create state dir")
	}
	fl := NewFileLock(dir)
	acquired, err := fl.TryLock()
	if err != nil {
		return nil, errors.Wrap(err, "acquire lock")
	}
	if !acquired {
		if waiting != nil {
			waiting()
		}
		if err := fl.Lock(); err != nil {
			return nil, errors.Wrap(err, "acquire lock")
		}
	}
	return &Session{dir: dir, lock: fl}, nil
}

// Dir returns the state directory.
func (s *Session) Dir() string { return s.dir }

// Close releases the directory lock.
func (s *Session) Close() error {
	return s.lock.Unlock()
}

// Load reads the snapshot. It returns ErrNoState if none has been saved.
func (s *Session) Load() (*State, error) {
	return readState(s.dir)
}

// Save writes the snapshot atomically.
func (s *Session) Save(state *State) error {
	return writeState(s.dir, state)
}

func writeState(dir string, state *State) error {
	snapshot := *state
	snapshot.Version = Version
	if snapshot.SavedAt.IsZero() {
		snapshot.SavedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal state")
	}

	target := StatePath(dir)
	tmp := target + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "write temp file")
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return errors.Wrap(err, "rename temp file")
	}
	return nil
}

func readState(dir string) (*State, error) {
	data, err := os.ReadFile(StatePath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoState
		}
		return nil, errors.Wrap(err, "read state file")
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, errors.Wrap(err, "unmarshal state")
	}
	if state.Version > Version {
		return nil, errors.NewValidationError("state written by a newer lockreg").
			WithField("version").WithValue(state.Version)
	}
	return &state, nil
}
