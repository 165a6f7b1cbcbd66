package transcode

import "sync"

// registry tracks output roots with an active run. Acquisition is first
// writer wins; a second upload targeting the same root is a conflict until
// the first run finishes.
type registry struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newRegistry() *registry {
	return &registry{active: make(map[string]struct{})}
}

func (r *registry) acquire(outputRoot string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.active[outputRoot]; busy {
		return false
	}
	r.active[outputRoot] = struct{}{}
	return true
}

func (r *registry) release(outputRoot string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, outputRoot)
}
