/*
Package capsule implements content addressing for schema-less capsule objects.

A capsule is an opaque JSON object (post, message, share, reaction, sigil)
whose identity is defined by its content, never by where it is stored. The
package provides:

  - deterministic canonical JSON serialization (sorted object keys, stable
    number handling), so logically equal capsules serialize byte-identically
  - payload references: "j:" + base64url of the canonical JSON, which decode
    back to a deep-equal capsule with no backend lookup
  - a 64-bit FNV-1a fingerprint and a sha256 Merkle root over reference lists
  - content-key derivation, a stable short identity that survives every
    transport form of the same logical capsule

Capsules are handled as map[string]any, the same generic-data approach used
for schema-less records elsewhere; typed schemas live at the wire boundary.
*/
package capsule
