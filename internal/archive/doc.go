// Package archive keeps the history of exported store snapshots in SQLite.
//
// Every mutating command loads the latest snapshot, applies its change, and
// saves a new snapshot, so the archive doubles as the durable backing of the
// otherwise in-memory object store. Snapshots are opaque payloads produced by
// store.Export along with a few counters for listing.
//
// The package also owns the on-disk conventions shared with export files:
// writers take an advisory flock and replace files atomically, and mutating
// commands serialize on a lock file next to the database.
package archive
