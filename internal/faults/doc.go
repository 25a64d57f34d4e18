// Package faults defines the error markers shared by the harvesting core.
//
// Every failure that leaves a core package carries exactly one marker so
// callers can branch with errors.Is instead of matching strings:
//   - ErrMissingElement: an expected structural element is absent from a
//     fetched payload, which usually means the upstream format drifted.
//   - ErrUpstreamFailure: the data source reported that a referenced entity
//     is gone or unavailable.
//   - ErrNoSerializer / ErrNoDeserializer: no codec is registered for a type.
//   - ErrUnsupportedRecursion: a graph envelope encodes a reference cycle.
//   - ErrUsage: the caller asked something nonsensical.
//
// Nothing in the core retries on these errors; retry policy belongs to the
// fetch layer and presentation belongs to the CLI.
package faults
