// Package gradebook adapts a school portal to harvest.
//
// The portal serves an HTML grades page, a JSON list of upcoming meetings,
// and one JSON document per meeting. Grades arrive with their course inline;
// meetings linked from the grades page arrive only as identifiers and become
// placeholders until the meeting resolver fetches meeting/<id>.
//
// Register wires the parsers, the resolver, and the codec tags into a
// registry and engine in one call during start-up.
package gradebook
