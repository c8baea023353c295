// Package approval holds lock-delegation grants.
//
// Two kinds of grant exist. A per-asset grant names at most one delegate
// that may lock a single asset; it is single-use and is consumed whenever
// the asset's lock state or owner changes. A blanket grant lets an operator
// lock every asset of an owner and persists until the owner revokes it.
//
// Every mutation publishes an event carrying both the new and the previous
// value so the grant history can be replayed from the journal alone.
package approval
