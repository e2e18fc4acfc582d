// Package registry maintains a persisted, monotonically-improving map from
// content key to the best-known URL for that capsule. "Best" means deepest
// witness chain, with shorter URLs winning ties; a stored URL is only ever
// replaced by a strictly better one, so the view of any capsule can improve
// but never regress.
package registry

import (
	"log/slog"
	"sync"

	"github.com/phigrid/memorystream/wire"
)

// Role names one of the two persisted stores.
type Role string

const (
	RoleContent Role = "content"
	RoleFeed    Role = "feed"
)

// Entry is one registered capsule.
type Entry struct {
	Key   string
	URL   string
	Depth int
}

// better reports whether (depth, urlLen) strictly beats the stored entry:
// witness depth first, URL length as tiebreak.
func (e *Entry) better(depth, urlLen int) bool {
	if depth != e.Depth {
		return depth > e.Depth
	}
	return urlLen < len(e.URL)
}

// Registry is safe for concurrent use. Persistence and cross-context
// signaling are optional collaborators; without them the registry is a plain
// in-memory map with the same monotonic contract.
type Registry struct {
	mu      sync.Mutex
	role    Role
	entries map[string]*Entry
	order   []string // insertion order; replacement keeps position

	store    *Store
	notifier Notifier
	log      *slog.Logger
}

func New(role Role, store *Store, notifier Notifier) *Registry {
	r := &Registry{
		role:     role,
		entries:  make(map[string]*Entry),
		store:    store,
		notifier: notifier,
		log:      slog.Default().With("role", string(role)),
	}
	r.load()
	return r
}

func (r *Registry) topic() string {
	return "registry:" + string(r.role)
}

// Upsert registers a URL under a content key. Inserts when the key is new;
// replaces the stored URL (keeping its original position) only when the new
// one scores strictly higher; otherwise a no-op. Returns whether anything
// changed. Re-registering the current best is idempotent.
func (r *Registry) Upsert(key, url string) bool {
	depth := wire.WitnessDepth(url)

	r.mu.Lock()
	e, ok := r.entries[key]
	switch {
	case !ok:
		r.entries[key] = &Entry{Key: key, URL: url, Depth: depth}
		r.order = append(r.order, key)
	case e.URL != url && e.better(depth, len(url)):
		e.URL = url
		e.Depth = depth
	default:
		r.mu.Unlock()
		return false
	}
	urls := r.snapshotURLsLocked()
	r.mu.Unlock()

	upsertsChanged.WithLabelValues(string(r.role)).Inc()
	r.persist(urls)
	if r.notifier != nil {
		r.notifier.Publish(r.topic())
	}
	return true
}

// UpsertURL derives the content key from the URL itself and registers it.
// Undecodable URLs are skipped.
func (r *Registry) UpsertURL(url string) bool {
	key, err := wire.ContentKeyForURL(url)
	if err != nil {
		return false
	}
	return r.Upsert(key, url)
}

// Get returns the best-known URL for a key.
func (r *Registry) Get(key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		return "", false
	}
	return e.URL, true
}

// Snapshot returns all entries in insertion order.
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, *r.entries[key])
	}
	return out
}

// URLs returns the best-known URLs in insertion order, the persisted form.
func (r *Registry) URLs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotURLsLocked()
}

func (r *Registry) snapshotURLsLocked() []string {
	out := make([]string, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.entries[key].URL)
	}
	return out
}

// load reads the persisted store. Each URL re-derives its own key, so legacy
// blobs whose keys were computed differently still land in the right place.
func (r *Registry) load() {
	if r.store == nil {
		return
	}
	urls, err := r.store.LoadStrings(r.role)
	if err != nil {
		r.log.Warn("registry load skipped", "err", err)
		return
	}
	for _, url := range urls {
		key, err := wire.ContentKeyForURL(url)
		if err != nil {
			continue
		}
		r.mu.Lock()
		if _, ok := r.entries[key]; !ok {
			r.entries[key] = &Entry{Key: key, URL: url, Depth: wire.WitnessDepth(url)}
			r.order = append(r.order, key)
		}
		r.mu.Unlock()
	}
}

// persist writes the current URL list. Storage failure degrades to a skipped
// update; in-memory state is already correct.
func (r *Registry) persist(urls []string) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveStrings(r.role, urls); err != nil {
		persistSkips.WithLabelValues(string(r.role)).Inc()
		r.log.Warn("registry update skipped", "err", err)
	}
}
