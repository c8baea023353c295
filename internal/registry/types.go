package registry

import (
	"time"

	"github.com/Iron-Ham/lockreg/internal/asset"
	"github.com/Iron-Ham/lockreg/internal/event"
	"github.com/Iron-Ham/lockreg/internal/logging"
	"github.com/Iron-Ham/lockreg/internal/serial"
)

// Owners is the read side of an ownership registry.
type Owners interface {
	// OwnerOf returns the current owner of id, or an error matching
	// errors.ErrNotFound if the asset does not exist.
	OwnerOf(id asset.ID) (asset.Address, error)

	// Exists reports whether id is a live asset.
	Exists(id asset.ID) bool
}

// MetadataSource exposes the metadata pointer and class of an asset.
type MetadataSource interface {
	MetadataOf(id asset.ID) (asset.Metadata, error)
}

// TransferHook intercepts ownership changes. A burn is reported as a
// transfer to [asset.Zero].
type TransferHook interface {
	// BeforeTransfer may veto the change by returning an error.
	BeforeTransfer(id asset.ID, from, to asset.Address) error

	// AfterTransfer runs once the change is committed.
	AfterTransfer(id asset.ID, from, to asset.Address)
}

// AssetState is the persisted form of one asset.
type AssetState struct {
	ID               asset.ID       `json:"id"`
	Owner            asset.Address  `json:"owner"`
	Metadata         asset.Metadata `json:"metadata"`
	TransferApproved asset.Address  `json:"transfer_approved,omitempty"`
}

// OperatorGrant is the persisted form of one transfer operator grant.
type OperatorGrant struct {
	Owner    asset.Address `json:"owner"`
	Operator asset.Address `json:"operator"`
}

// Snapshot is the persisted form of a Memory registry.
type Snapshot struct {
	Assets    []AssetState    `json:"assets"`
	Operators []OperatorGrant `json:"operators,omitempty"`
}

// Option configures a Memory registry.
type Option func(*Memory)

// WithSerializer shares a per-asset serializer with other components.
func WithSerializer(keys *serial.Keyed) Option {
	return func(m *Memory) {
		m.keys = keys
	}
}

// WithBus sets the event bus that receives transfer events.
func WithBus(bus *event.Bus) Option {
	return func(m *Memory) {
		m.bus = bus
	}
}

// WithClock sets the time source used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) {
		m.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Memory) {
		m.logger = l
	}
}
