// Package record defines the domain object contract shared by parsers,
// resolvers, the object store, and the codec.
//
// A Kind names one variant of domain object. Kinds are plain tags: the set of
// supported kinds is whatever the application registers with the parser,
// resolver, and codec registries at start-up. Placeholder stands in for an
// object whose identifier is known but whose data has not been fetched, and
// ResultSet collects the output of one parse or resolve step.
package record
