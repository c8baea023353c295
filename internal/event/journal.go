package event

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one record of the journal: a sequenced, serialized event. ID is
// unique across journals, so entries copied between state directories can
// still be told apart.
type Entry struct {
	ID    string          `json:"id"`
	Seq   uint64          `json:"seq"`
	Type  string          `json:"type"`
	Time  time.Time       `json:"time"`
	Data  json.RawMessage `json:"data"`
	Event Event           `json:"-"`
}

// Journal is an append-only, ordered log of every event published on a bus.
// Sequence numbers increase by one per entry and are never reused. When a
// file path is configured each entry is also appended to it as one JSON line.
type Journal struct {
	mu      sync.Mutex
	entries []Entry
	seq     uint64
	path    string
	lastErr error

	bus   *Bus
	subID string
}

// NewJournal creates an in-memory journal.
func NewJournal() *Journal {
	return &Journal{}
}

// OpenJournal creates a journal backed by the JSONL file at path. Existing
// entries are loaded so that sequence numbers continue where they left off.
func OpenJournal(path string) (*Journal, error) {
	entries, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	j := &Journal{path: path, entries: entries}
	if n := len(entries); n > 0 {
		j.seq = entries[n-1].Seq
	}
	return j, nil
}

// Attach subscribes the journal to every event on bus.
func (j *Journal) Attach(bus *Bus) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.bus != nil {
		j.bus.Unsubscribe(j.subID)
	}
	j.bus = bus
	j.subID = bus.SubscribeAll(func(e Event) {
		_, _ = j.Record(e)
	})
}

// Detach stops recording events from the attached bus.
func (j *Journal) Detach() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.bus != nil {
		j.bus.Unsubscribe(j.subID)
		j.bus = nil
		j.subID = ""
	}
}

// Record appends e to the journal and returns the new entry. A failed file
// append is returned and remembered in Err, but the in-memory entry is kept
// so the ordering of the in-process log is never broken.
func (j *Journal) Record(e Event) (Entry, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return Entry{}, fmt.Errorf("journal: marshal %s: %w", e.EventType(), err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	j.seq++
	entry := Entry{
		ID:    uuid.NewString(),
		Seq:   j.seq,
		Type:  e.EventType(),
		Time:  e.Timestamp(),
		Data:  data,
		Event: e,
	}
	j.entries = append(j.entries, entry)

	if j.path != "" {
		if err := appendLine(j.path, entry); err != nil {
			j.lastErr = err
			return entry, err
		}
	}
	return entry, nil
}

// Entries returns a copy of every entry recorded so far, in order.
func (j *Journal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]Entry, len(j.entries))
	copy(out, j.entries)
	return out
}

// Since returns the entries with a sequence number greater than seq.
func (j *Journal) Since(seq uint64) []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()

	var out []Entry
	for _, e := range j.entries {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of recorded entries.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}

// Err returns the most recent file sink error, if any.
func (j *Journal) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastErr
}

// appendLine writes one JSONL record using O_APPEND.
func appendLine(path string, entry Entry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("journal: marshal entry: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("journal: open for append: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("journal: append: %w", err)
	}
	return f.Close()
}

// ReadFile reads and decodes every entry of a JSONL journal file.
// Returns nil (not error) if the file does not exist.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	defer func() { _ = f.Close() }()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("journal: decode line %d: %w", len(entries)+1, err)
		}
		ev, err := Decode(entry.Type, entry.Time, entry.Data)
		if err != nil {
			return nil, err
		}
		entry.Event = ev
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("journal: scan: %w", err)
	}
	return entries, nil
}

// Decode rebuilds a typed event from its serialized form.
func Decode(eventType string, at time.Time, data []byte) (Event, error) {
	base := baseEvent{eventType: eventType, timestamp: at}

	switch eventType {
	case TypeLocked:
		var e LockedEvent
		return decodeInto(data, &e, func() Event { e.baseEvent = base; return e })
	case TypeUnlocked:
		var e UnlockedEvent
		return decodeInto(data, &e, func() Event { e.baseEvent = base; return e })
	case TypeLockExpired:
		var e LockExpiredEvent
		return decodeInto(data, &e, func() Event { e.baseEvent = base; return e })
	case TypeLockApproval:
		var e LockApprovalEvent
		return decodeInto(data, &e, func() Event { e.baseEvent = base; return e })
	case TypeLockApprovalForAll:
		var e LockApprovalForAllEvent
		return decodeInto(data, &e, func() Event { e.baseEvent = base; return e })
	case TypeTransferred:
		var e TransferredEvent
		return decodeInto(data, &e, func() Event { e.baseEvent = base; return e })
	case TypeTransferBlocked:
		var e TransferBlockedEvent
		return decodeInto(data, &e, func() Event { e.baseEvent = base; return e })
	case TypeCertificateMinted:
		var e CertificateMintedEvent
		return decodeInto(data, &e, func() Event { e.baseEvent = base; return e })
	case TypeCertificateBurned:
		var e CertificateBurnedEvent
		return decodeInto(data, &e, func() Event { e.baseEvent = base; return e })
	default:
		return nil, fmt.Errorf("journal: unknown event type %q", eventType)
	}
}

func decodeInto(data []byte, target any, finish func() Event) (Event, error) {
	if err := json.Unmarshal(data, target); err != nil {
		return nil, fmt.Errorf("journal: decode payload: %w", err)
	}
	return finish(), nil
}
