// Package store keeps the in-memory set of harvested objects.
//
// Objects are indexed by kind and identifier. Unresolved placeholders live in
// a separate index keyed by the kind they stand in for, so adding the full
// object later evicts its placeholder, and a placeholder is never added for an
// object the store already holds. Every batch is applied under one write lock
// and reads share a read lock.
//
// The whole store can be captured as a Snapshot, exported through the codec
// engine in graph mode (shared objects are written once), and imported again
// either replacing or merging into the current contents.
package store
