// Package chaingraph is the in-memory, versioned store of ancestor links.
// It reconstructs a witness chain for any visited node from "previous"
// pointers observed while decoding URLs and capsules.
package chaingraph

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxNodes bounds the graph; the least recently touched nodes are
// evicted beyond it.
const DefaultMaxNodes = 4096

// Node is one observed link in an ancestor chain. PayloadRef is the
// preferred self-contained reference; FallbackRef (usually the URL the node
// was seen at) stands in when no payload ref is known.
type Node struct {
	Key         string
	PrevKey     string
	PayloadRef  string
	FallbackRef string
	Tick        uint64
}

// sameLink reports whether two nodes carry identical link data, ignoring the
// bookkeeping tick.
func sameLink(a, b Node) bool {
	return a.PrevKey == b.PrevKey && a.PayloadRef == b.PayloadRef && a.FallbackRef == b.FallbackRef
}

// Graph is safe for concurrent use. Reads and writes are synchronous;
// subscriber notification is deferred and coalesced, so any number of
// upserts between deliveries yields exactly one callback reflecting the
// final state.
type Graph struct {
	mu      sync.Mutex
	nodes   *lru.Cache[string, Node]
	version uint64
	dirty   bool
	wake    chan struct{}
	subs    map[int]func(version uint64)
	nextSub int
}

func New(maxNodes int) (*Graph, error) {
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}
	nodes, err := lru.New[string, Node](maxNodes)
	if err != nil {
		return nil, err
	}
	return &Graph{
		nodes: nodes,
		wake:  make(chan struct{}, 1),
		subs:  make(map[int]func(uint64)),
	}, nil
}

// Upsert records a link. Identical re-observations are no-ops; a changed
// link replaces the node, refreshes its recency, and schedules one batched
// notification.
func (g *Graph) Upsert(key string, n Node) {
	n.Key = key
	g.mu.Lock()
	if prev, ok := g.nodes.Peek(key); ok && sameLink(prev, n) {
		g.mu.Unlock()
		noopUpserts.Inc()
		return
	}
	g.version++
	n.Tick = g.version
	if evicted := g.nodes.Add(key, n); evicted {
		evictions.Inc()
	}
	g.dirty = true
	g.mu.Unlock()
	upserts.Inc()

	select {
	case g.wake <- struct{}{}:
	default:
	}
}

// Get returns the node for a key without refreshing its recency.
func (g *Graph) Get(key string) (Node, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nodes.Peek(key)
}

// Len returns the current node count.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nodes.Len()
}

// Version returns the current mutation counter.
func (g *Graph) Version() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.version
}

// AncestorList follows PrevKey links from a node for up to limit hops,
// stopping at a missing node or a repeated key, and collects each ancestor's
// payload ref (falling back to its fallback ref). Returned oldest-first,
// ready to serve as a segment's add chain.
func (g *Graph) AncestorList(key string, limit int) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	start, ok := g.nodes.Peek(key)
	if !ok {
		return nil
	}
	seen := map[string]bool{key: true}
	var newestFirst []string
	cur := start.PrevKey
	for cur != "" && len(newestFirst) < limit && !seen[cur] {
		seen[cur] = true
		n, ok := g.nodes.Peek(cur)
		if !ok {
			break
		}
		ref := n.PayloadRef
		if ref == "" {
			ref = n.FallbackRef
		}
		if ref != "" {
			newestFirst = append(newestFirst, ref)
		}
		cur = n.PrevKey
	}
	for i, j := 0, len(newestFirst)-1; i < j; i, j = i+1, j-1 {
		newestFirst[i], newestFirst[j] = newestFirst[j], newestFirst[i]
	}
	return newestFirst
}

// Subscribe registers a callback for batched change notifications. The
// returned cancel func unregisters it.
func (g *Graph) Subscribe(fn func(version uint64)) func() {
	g.mu.Lock()
	id := g.nextSub
	g.nextSub++
	g.subs[id] = fn
	g.mu.Unlock()
	return func() {
		g.mu.Lock()
		delete(g.subs, id)
		g.mu.Unlock()
	}
}

// Run delivers coalesced notifications until the context is cancelled.
// Start it once, in its own goroutine, the way an event manager's run loop
// is started.
func (g *Graph) Run(ctx context.Context) {
	for {
		select {
		case <-g.wake:
			g.Flush()
		case <-ctx.Done():
			return
		}
	}
}

// Flush synchronously delivers at most one pending notification. Safe to
// call at any time; a clean graph is a no-op.
func (g *Graph) Flush() {
	g.mu.Lock()
	if !g.dirty {
		g.mu.Unlock()
		return
	}
	g.dirty = false
	v := g.version
	fns := make([]func(uint64), 0, len(g.subs))
	for _, fn := range g.subs {
		fns = append(fns, fn)
	}
	g.mu.Unlock()

	notifications.Inc()
	for _, fn := range fns {
		fn(v)
	}
}
