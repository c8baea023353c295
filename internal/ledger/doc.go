// Package ledger holds the lock record of every asset and is the public
// entry point of the lock registry.
//
// A lock is placed by the owner, the owner's per-asset delegate or one of
// the owner's blanket operators, and lasts until its expiry. Expiry is lazy:
// a record whose expiry is not strictly after the current time reads as
// absent, and nothing runs in the background to remove it. [Ledger.Reap]
// purges such records physically when a caller asks for it.
//
// # Companion
//
// An optional [Companion] observes every lock created and every lock
// released. Its OnLockCreated may fail, in which case the whole lock is
// rejected and no state changes. The bound certificate manager is the
// companion used in practice.
//
// # Basic Usage
//
//	keys := serial.New()
//	reg := registry.NewMemory(registry.WithSerializer(keys))
//	approvals := approval.NewStore(reg)
//	l := ledger.New(reg, approvals, ledger.WithSerializer(keys))
//
//	err := l.Lock("0xdelegate", "42", time.Now().Add(24*time.Hour))
//	locked := l.IsLocked("42")
//	err = l.Unlock("0xdelegate", "42")
package ledger
