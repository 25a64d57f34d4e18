// Package main hosts the harvest CLI entrypoint and command graph.
//
// Every command works against the snapshot archive: it loads the newest
// snapshot into an in-memory store, applies its change (ingesting a target,
// resolving placeholders, importing an export), and archives the result as a
// new snapshot. Read-only commands (show, export, snapshots) skip the save.
//
// Keep this package lean: add behaviour to the internal packages first, then
// surface it here.
package main
