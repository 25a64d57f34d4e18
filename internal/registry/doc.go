// Package registry maps upstream payloads to parsers and placeholder kinds to
// resolvers.
//
// A Registry is populated once during start-up by domain packages (see
// gradebook.Register), then sealed. Parse dispatches an envelope by its exact
// (resource, shape) pair and merges the output of every matching parser in
// registration order. ResolveOne and Resolve turn placeholders into full
// objects, passing a placeholder through unchanged when nothing can resolve
// it. Resolve fans out across a bounded errgroup while keeping output order
// equal to input order.
package registry
