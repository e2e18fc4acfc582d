package registry

import "sync"

// Notifier is the cross-context propagation capability. Publish signals
// "state changed, re-read" to every subscriber of a topic; the payload
// itself always travels through the store, never the notifier. The registry
// takes the notifier by handle so the transport (in-process, OS pipe,
// whatever the host embeds it in) stays swappable.
type Notifier interface {
	Publish(topic string)
	Subscribe(topic string, fn func()) (cancel func())
}

// LocalNotifier is the in-process Notifier: subscribers in the same process
// observe changes synchronously.
type LocalNotifier struct {
	mu     sync.Mutex
	subs   map[string]map[int]func()
	nextID int
}

func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{subs: make(map[string]map[int]func())}
}

func (n *LocalNotifier) Publish(topic string) {
	n.mu.Lock()
	fns := make([]func(), 0, len(n.subs[topic]))
	for _, fn := range n.subs[topic] {
		fns = append(fns, fn)
	}
	n.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (n *LocalNotifier) Subscribe(topic string, fn func()) func() {
	n.mu.Lock()
	if n.subs[topic] == nil {
		n.subs[topic] = make(map[int]func())
	}
	id := n.nextID
	n.nextID++
	n.subs[topic][id] = fn
	n.mu.Unlock()
	return func() {
		n.mu.Lock()
		delete(n.subs[topic], id)
		n.mu.Unlock()
	}
}
