/*
Package segment packs a root capsule and its witness chain into
length-bounded memory-stream URLs.

A chain that fits under the hard cap becomes a single URL. A longer chain is
split: the newest ancestors stay in the primary segment, and the dropped
prefix is recursively packed into archive segments, each rotated onto a new
root (the oldest entry the level above kept). Truncation boundaries snap down
to Fibonacci counts so repeated shares of a growing thread cut at the same
places, which keeps previously minted archive URLs valid for dedup.

Concatenating the archive chains oldest-first and then the primary's adds
reconstructs the original ancestor sequence exactly once each.
*/
package segment
