/*
Package wire defines the transport forms for memory-stream URLs.

Two read-compatible forms exist. The fragment form is preferred and carries
the full witness chain:

	https://host/stream#v=1&root=<ref>&seg=<ref>&add=<ref>&add=<ref>...

with `add` entries ordered oldest to newest. The path form is a compact
secondary encoding, /<root-route>/p/<token>, where the token is base64url
canonical JSON of a small fixed schema (PathToken). Each form has a hard
length budget; an encoder that blows the path-token budget falls back to the
fragment form, and a fragment over its own cap is split into segments
upstream of this package.
*/
package wire
