package web

import "sync"

// sessionGuard admits one mutating request per session at a time.
type sessionGuard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newSessionGuard() *sessionGuard {
	return &sessionGuard{active: make(map[string]struct{})}
}

// tryAcquire claims id. The returned release must be called exactly once.
func (g *sessionGuard) tryAcquire(id string) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[id]; busy {
		return nil, false
	}
	g.active[id] = struct{}{}
	return func() {
		g.mu.Lock()
		delete(g.active, id)
		g.mu.Unlock()
	}, true
}
