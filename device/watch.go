package device

import (
	"context"
	"github.com/rotblauer/triptrack/geo/sampler"
	"sync"
)

// watches tracks running watch goroutines by id.
type watches struct {
	mu      sync.Mutex
	nextID  sampler.WatchID
	cancels map[sampler.WatchID]context.CancelFunc
}

func (w *watches) add(parent context.Context) (sampler.WatchID, context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancels == nil {
		w.cancels = make(map[sampler.WatchID]context.CancelFunc)
	}
	w.nextID++
	ctx, cancel := context.WithCancel(parent)
	w.cancels[w.nextID] = cancel
	return w.nextID, ctx
}

func (w *watches) clear(id sampler.WatchID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if cancel, ok := w.cancels[id]; ok {
		cancel()
		delete(w.cancels, id)
	}
}

func (w *watches) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.cancels)
}
