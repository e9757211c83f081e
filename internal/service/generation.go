package service

import (
	"context"
	"sync"
)

// generationRegistry tracks in-flight relay operations so that a stop request
// can cancel their upstream calls. An entry lives only for the duration of one
// relay; nothing here is persisted. More than one generation may be active for
// the same chat at a time, and stop cancels all of them.
type generationRegistry struct {
	mu     sync.Mutex
	active map[string]map[*generation]struct{}
}

type generation struct {
	cancel context.CancelFunc
}

func newGenerationRegistry() *generationRegistry {
	return &generationRegistry{active: make(map[string]map[*generation]struct{})}
}

// register derives a cancellable context for one relay operation and returns
// a release function that must be called when the relay resolves.
func (r *generationRegistry) register(ctx context.Context, chatID string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	g := &generation{cancel: cancel}

	r.mu.Lock()
	if r.active[chatID] == nil {
		r.active[chatID] = make(map[*generation]struct{})
	}
	r.active[chatID][g] = struct{}{}
	r.mu.Unlock()

	release := func() {
		r.mu.Lock()
		if set, ok := r.active[chatID]; ok {
			delete(set, g)
			if len(set) == 0 {
				delete(r.active, chatID)
			}
		}
		r.mu.Unlock()
		cancel()
	}
	return ctx, release
}

// stop cancels every in-flight generation for the chat and reports whether
// there was any.
func (r *generationRegistry) stop(chatID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.active[chatID]
	for g := range set {
		g.cancel()
	}
	return ok && len(set) > 0
}
