// Package fetch wraps fetched payloads in read-only envelopes tagged with the
// logical resource they came from and the shape of the payload.
//
// The network and session layer is an external collaborator: anything that
// implements Fetcher can feed the parsers. HTTPFetcher and DirFetcher are
// thin reference implementations used by the CLI and tests.
package fetch
