// Package session owns the connection to the upstream source.
//
// A Client pairs a fetch.Fetcher with a sealed registry: Ingest fetches a
// target and parses it into a result set, and ResolveAll turns placeholders
// into objects using the registered resolvers. Resolvers receive the Client
// back as their registry.Session, so follow-up fetches share the same
// transport and parser table.
package session
