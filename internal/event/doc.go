// Package event provides the pub-sub event bus and the append-only journal
// that together form the audit trail of lockreg.
//
// Every state change in the registry publishes a typed event on a [Bus].
// A [Journal] attached to the bus assigns each event a sequence number and
// optionally appends it to a JSONL file, so the full history of locks,
// approvals, transfers and certificates can be replayed from the log alone.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub dispatcher; handlers run on the publishing goroutine
//   - [Journal]: Ordered, sequenced log of published events with an optional file sink
//
// # Event Categories
//
// Lock lifecycle:
//   - [LockedEvent]: Locked(operator, from, assetId, expiry)
//   - [UnlockedEvent]: Unlocked(operator, from, assetId)
//   - [LockExpiredEvent]: an expired record was physically purged
//
// Delegation:
//   - [LockApprovalEvent]: LockApproval(owner, approved, assetId), with the previous grant
//   - [LockApprovalForAllEvent]: LockApprovalForAll(owner, operator, approved)
//
// Ownership registry:
//   - [TransferredEvent]: mint, transfer or burn of an asset
//   - [TransferBlockedEvent]: the transfer guard vetoed an ownership change
//
// Bound certificates:
//   - [CertificateMintedEvent], [CertificateBurnedEvent]
//
// # Basic Usage
//
//	bus := event.NewBus()
//	journal := event.NewJournal()
//	journal.Attach(bus)
//
//	bus.Subscribe(event.TypeLocked, func(e event.Event) {
//	    locked := e.(event.LockedEvent)
//	    log.Printf("asset %s locked by %s", locked.AssetID, locked.Operator)
//	})
//
// # Event Type Naming Convention
//
// Event types follow the pattern "category.action":
//   - lock.locked, lock.unlocked, lock.expired
//   - lock.approval, lock.approval_for_all
//   - asset.transferred, transfer.blocked
//   - certificate.minted, certificate.burned
package event
