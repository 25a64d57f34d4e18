// Package codec turns domain objects into portable envelopes and back.
//
// Two tiers share one Engine:
//
//   - Flat mode (Serialize/Deserialize) wraps every registered value as
//     {"type": <tag>, "data": <payload>}, recurses through slices and
//     string-keyed maps, and escapes map keys that would collide with the
//     reserved "type" key. Types that implement Upgradeable get a chance to
//     rewrite older payloads before construction.
//
//   - Graph mode (SerializeGraph/DeserializeGraph) preserves object identity.
//     Every non-primitive value gets a slot in a flat array, repeated
//     references become {"type": "@", "data": <slot>} tokens, and slots that
//     end up referenced exactly once are inlined back into their single use
//     site. Reconstruction is an iterative fixed point over the slots; a pass
//     that makes no progress means the data encodes a cycle, which is
//     reported as faults.ErrUnsupportedRecursion.
//
// Types are registered explicitly at start-up with Register (values that carry
// their own Serialize/Deserialize methods) or RegisterCodec/RegisterFunc (types
// owned by other packages, such as time.Time).
package codec
