// Package audit reconstructs lock and approval state from the event journal
// alone. It is used to check a persisted snapshot against its history.
package audit

import (
	"fmt"
	"sort"
	"time"

	"github.com/Iron-Ham/lockreg/internal/asset"
	"github.com/Iron-Ham/lockreg/internal/event"
)

// Lock is a lock as seen by the journal.
type Lock struct {
	Locker asset.Address
	Owner  asset.Address
	Expiry time.Time
}

// State is the registry state implied by a sequence of events.
type State struct {
	Owners  map[asset.ID]asset.Address
	Locks   map[asset.ID]Lock
	Grants  map[asset.ID]asset.Address
	Blanket map[asset.Address]map[asset.Address]bool
	LastSeq uint64
}

// NewState creates an empty State.
func NewState() *State {
	return &State{
		Owners:  make(map[asset.ID]asset.Address),
		Locks:   make(map[asset.ID]Lock),
		Grants:  make(map[asset.ID]asset.Address),
		Blanket: make(map[asset.Address]map[asset.Address]bool),
	}
}

// Rebuild replays entries in order. Sequence numbers must be strictly
// increasing.
func Rebuild(entries []event.Entry) (*State, error) {
	s := NewState()
	for _, e := range entries {
		if e.Seq <= s.LastSeq {
			return nil, fmt.Errorf("audit: sequence %d after %d", e.Seq, s.LastSeq)
		}
		if e.Event == nil {
			return nil, fmt.Errorf("audit: entry %d has no decoded event", e.Seq)
		}
		s.Apply(e.Event)
		s.LastSeq = e.Seq
	}
	return s, nil
}

// Apply folds one event into the state. Events that carry no lock,
// approval or ownership information are ignored.
func (s *State) Apply(e event.Event) {
	switch ev := e.(type) {
	case event.TransferredEvent:
		if ev.To.IsZero() {
			delete(s.Owners, ev.AssetID)
		} else {
			s.Owners[ev.AssetID] = ev.To
		}
	case event.LockedEvent:
		s.Locks[ev.AssetID] = Lock{Locker: ev.Operator, Owner: ev.From, Expiry: ev.Expiry}
	case event.UnlockedEvent:
		delete(s.Locks, ev.AssetID)
	case event.LockExpiredEvent:
		delete(s.Locks, ev.AssetID)
	case event.LockApprovalEvent:
		if ev.Approved.IsZero() {
			delete(s.Grants, ev.AssetID)
		} else {
			s.Grants[ev.AssetID] = ev.Approved
		}
	case event.LockApprovalForAllEvent:
		if ev.Approved {
			if s.Blanket[ev.Owner] == nil {
				s.Blanket[ev.Owner] = make(map[asset.Address]bool)
			}
			s.Blanket[ev.Owner][ev.Operator] = true
		} else {
			delete(s.Blanket[ev.Owner], ev.Operator)
		}
	}
}

// LockerAt returns the locker of id if its lock is in force at now.
func (s *State) LockerAt(id asset.ID, now time.Time) asset.Address {
	l, ok := s.Locks[id]
	if !ok || !l.Expiry.After(now) {
		return asset.Zero
	}
	return l.Locker
}

// ActiveAt returns the ids locked at now, sorted.
func (s *State) ActiveAt(now time.Time) []asset.ID {
	var ids []asset.ID
	for id, l := range s.Locks {
		if l.Expiry.After(now) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Mismatch describes one difference between replayed and live state.
type Mismatch struct {
	AssetID asset.ID
	Field   string
	Journal string
	Live    string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s %s: journal=%s live=%s", m.AssetID, m.Field, m.Journal, m.Live)
}

// Live is the read side of the running components that Compare checks.
type Live interface {
	LockerOf(id asset.ID) (asset.Address, error)
	GetApproved(id asset.ID) (asset.Address, error)
}

// Compare checks every asset known to the journal against live state at now.
func (s *State) Compare(live Live, now time.Time) []Mismatch {
	ids := make([]asset.ID, 0, len(s.Owners))
	for id := range s.Owners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []Mismatch
	for _, id := range ids {
		want := s.LockerAt(id, now)
		got, err := live.LockerOf(id)
		if err != nil {
			out = append(out, Mismatch{AssetID: id, Field: "locker", Journal: want.String(), Live: err.Error()})
			continue
		}
		if got != want {
			out = append(out, Mismatch{AssetID: id, Field: "locker", Journal: want.String(), Live: got.String()})
		}

		grant, err := live.GetApproved(id)
		if err == nil && grant != s.Grants[id] {
			out = append(out, Mismatch{AssetID: id, Field: "approved", Journal: s.Grants[id].String(), Live: grant.String()})
		}
	}
	return out
}
