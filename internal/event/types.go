// Package event defines event types for decoupling lockreg components.
// These events are the audit trail of the registry: a journal of them is
// enough to reconstruct every lock and approval transition.
package event

import (
	"time"

	"github.com/Iron-Ham/lockreg/internal/asset"
)

// Event is the interface that all events must implement.
// It provides a common way to identify and timestamp events.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "lock.locked", "asset.transferred")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeLocked             = "lock.locked"
	TypeUnlocked           = "lock.unlocked"
	TypeLockExpired        = "lock.expired"
	TypeLockApproval       = "lock.approval"
	TypeLockApprovalForAll = "lock.approval_for_all"
	TypeTransferred        = "asset.transferred"
	TypeTransferBlocked    = "transfer.blocked"
	TypeCertificateMinted  = "certificate.minted"
	TypeCertificateBurned  = "certificate.burned"
)

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent stamped with at. A zero at uses the wall clock.
func newBaseEvent(eventType string, at time.Time) baseEvent {
	if at.IsZero() {
		at = time.Now()
	}
	return baseEvent{
		eventType: eventType,
		timestamp: at,
	}
}

// -----------------------------------------------------------------------------
// Lock Events
// -----------------------------------------------------------------------------

// LockedEvent is emitted when a lock is placed on an asset.
type LockedEvent struct {
	baseEvent
	Operator asset.Address `json:"operator"` // Identity that placed the lock
	From     asset.Address `json:"from"`     // Owner of the asset at lock time
	AssetID  asset.ID      `json:"asset_id"`
	Expiry   time.Time     `json:"expiry"`
}

// NewLockedEvent creates a LockedEvent.
func NewLockedEvent(at time.Time, operator, from asset.Address, id asset.ID, expiry time.Time) LockedEvent {
	return LockedEvent{
		baseEvent: newBaseEvent(TypeLocked, at),
		Operator:  operator,
		From:      from,
		AssetID:   id,
		Expiry:    expiry,
	}
}

// UnlockedEvent is emitted when the locker explicitly releases a lock.
type UnlockedEvent struct {
	baseEvent
	Operator asset.Address `json:"operator"`
	From     asset.Address `json:"from"`
	AssetID  asset.ID      `json:"asset_id"`
}

// NewUnlockedEvent creates an UnlockedEvent.
func NewUnlockedEvent(at time.Time, operator, from asset.Address, id asset.ID) UnlockedEvent {
	return UnlockedEvent{
		baseEvent: newBaseEvent(TypeUnlocked, at),
		Operator:  operator,
		From:      from,
		AssetID:   id,
	}
}

// LockExpiredEvent is emitted when an expired lock record is physically purged.
// The lock was already void at Expiry; this only records the cleanup.
type LockExpiredEvent struct {
	baseEvent
	Locker  asset.Address `json:"locker"`
	From    asset.Address `json:"from"`
	AssetID asset.ID      `json:"asset_id"`
	Expiry  time.Time     `json:"expiry"`
}

// NewLockExpiredEvent creates a LockExpiredEvent.
func NewLockExpiredEvent(at time.Time, locker, from asset.Address, id asset.ID, expiry time.Time) LockExpiredEvent {
	return LockExpiredEvent{
		baseEvent: newBaseEvent(TypeLockExpired, at),
		Locker:    locker,
		From:      from,
		AssetID:   id,
		Expiry:    expiry,
	}
}

// -----------------------------------------------------------------------------
// Approval Events
// -----------------------------------------------------------------------------

// LockApprovalEvent is emitted whenever the per-asset lock grant changes,
// including when it is consumed by a lock or cleared by a transfer.
type LockApprovalEvent struct {
	baseEvent
	Owner    asset.Address `json:"owner"`
	Approved asset.Address `json:"approved"` // Zero when the grant is cleared
	Previous asset.Address `json:"previous"`
	AssetID  asset.ID      `json:"asset_id"`
}

// NewLockApprovalEvent creates a LockApprovalEvent.
func NewLockApprovalEvent(at time.Time, owner, approved, previous asset.Address, id asset.ID) LockApprovalEvent {
	return LockApprovalEvent{
		baseEvent: newBaseEvent(TypeLockApproval, at),
		Owner:     owner,
		Approved:  approved,
		Previous:  previous,
		AssetID:   id,
	}
}

// LockApprovalForAllEvent is emitted on every blanket grant call, including
// idempotent ones.
type LockApprovalForAllEvent struct {
	baseEvent
	Owner    asset.Address `json:"owner"`
	Operator asset.Address `json:"operator"`
	Approved bool          `json:"approved"`
	Previous bool          `json:"previous"`
}

// NewLockApprovalForAllEvent creates a LockApprovalForAllEvent.
func NewLockApprovalForAllEvent(at time.Time, owner, operator asset.Address, approved, previous bool) LockApprovalForAllEvent {
	return LockApprovalForAllEvent{
		baseEvent: newBaseEvent(TypeLockApprovalForAll, at),
		Owner:     owner,
		Operator:  operator,
		Approved:  approved,
		Previous:  previous,
	}
}

// -----------------------------------------------------------------------------
// Registry Events
// -----------------------------------------------------------------------------

// TransferredEvent is emitted by the ownership registry when an asset changes
// hands. Mints have a zero From; burns have a zero To.
type TransferredEvent struct {
	baseEvent
	From    asset.Address `json:"from"`
	To      asset.Address `json:"to"`
	AssetID asset.ID      `json:"asset_id"`
}

// NewTransferredEvent creates a TransferredEvent.
func NewTransferredEvent(at time.Time, from, to asset.Address, id asset.ID) TransferredEvent {
	return TransferredEvent{
		baseEvent: newBaseEvent(TypeTransferred, at),
		From:      from,
		To:        to,
		AssetID:   id,
	}
}

// TransferBlockedEvent is emitted when the transfer guard vetoes an ownership change.
type TransferBlockedEvent struct {
	baseEvent
	From    asset.Address `json:"from"`
	To      asset.Address `json:"to"`
	AssetID asset.ID      `json:"asset_id"`
	Locker  asset.Address `json:"locker"`
}

// NewTransferBlockedEvent creates a TransferBlockedEvent.
func NewTransferBlockedEvent(at time.Time, from, to asset.Address, id asset.ID, locker asset.Address) TransferBlockedEvent {
	return TransferBlockedEvent{
		baseEvent: newBaseEvent(TypeTransferBlocked, at),
		From:      from,
		To:        to,
		AssetID:   id,
		Locker:    locker,
	}
}

// -----------------------------------------------------------------------------
// Certificate Events
// -----------------------------------------------------------------------------

// CertificateMintedEvent is emitted when a bound certificate is minted for a lock.
type CertificateMintedEvent struct {
	baseEvent
	CertificateID string        `json:"certificate_id"`
	AssetID       asset.ID      `json:"asset_id"`
	Holder        asset.Address `json:"holder"`
}

// NewCertificateMintedEvent creates a CertificateMintedEvent.
func NewCertificateMintedEvent(at time.Time, certificateID string, id asset.ID, holder asset.Address) CertificateMintedEvent {
	return CertificateMintedEvent{
		baseEvent:     newBaseEvent(TypeCertificateMinted, at),
		CertificateID: certificateID,
		AssetID:       id,
		Holder:        holder,
	}
}

// CertificateBurnedEvent is emitted when a bound certificate is destroyed.
type CertificateBurnedEvent struct {
	baseEvent
	CertificateID string   `json:"certificate_id"`
	AssetID       asset.ID `json:"asset_id"`
}

// NewCertificateBurnedEvent creates a CertificateBurnedEvent.
func NewCertificateBurnedEvent(at time.Time, certificateID string, id asset.ID) CertificateBurnedEvent {
	return CertificateBurnedEvent{
		baseEvent:     newBaseEvent(TypeCertificateBurned, at),
		CertificateID: certificateID,
		AssetID:       id,
	}
}
