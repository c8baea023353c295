// Package registry defines the boundary between lockreg and the external
// ownership registry, and provides [Memory], an in-process reference
// registry used by tests and the CLI.
//
// # Boundary
//
// Lock components only ever read ownership through [Owners] and
// [MetadataSource]. Ownership changes are intercepted through
// [TransferHook]: every hook's BeforeTransfer runs before the change is
// committed and any error aborts the change with no state modified.
//
// # Serialization
//
// Memory runs Transfer and Burn inside the [serial.Keyed] supplied with
// [WithSerializer]. The lock ledger shares the same Keyed, so a transfer and
// a lock on one asset never interleave. Hooks are called with the asset key
// held and must not call back into any serialized operation.
//
// # Basic Usage
//
//	keys := serial.New()
//	reg := registry.NewMemory(registry.WithSerializer(keys), registry.WithBus(bus))
//	_ = reg.Mint("alice", "42", asset.Metadata{URI: "ipfs://meta/42"})
//	reg.AddHook(transferGuard)
//	err := reg.Transfer("alice", "alice", "bob", "42")
package registry
