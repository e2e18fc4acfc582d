/*
Package thread reconstructs conversation threads purely from the chains
embedded in memory-stream URLs, with no backend store.

Opening a URL extracts its witness chain, resolves the thread's root capsule
(walking "previous" pointers iteratively, with cycle and step guards),
gathers candidate URLs for every capsule involved, and assembles a
deduplicated thread view: one best-scoring URL per content key. Opening also
feeds what was learned back into the chain graph and registry, so the next
open starts from a richer pool.
*/
package thread
