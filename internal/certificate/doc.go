// Package certificate mints bound certificates: non-transferable tokens
// that mirror an active lock.
//
// The [Manager] is installed as the lock ledger's companion. When a lock is
// created on an asset whose class is covered by the [Policy], it mints a
// certificate that copies the asset's metadata pointer. If minting fails
// the lock is rejected. The certificate disappears when the lock is
// released, and reads treat it as absent once the lock's expiry passes.
package certificate
