package turn

import (
	"context"
	"sync"

	engerr "github.com/jwebster45206/quest-engine/pkg/errors"
)

// Guard is an in-process try-lock keyed by character ID. A second turn for a
// character that already has one in progress is refused with a busy error,
// never queued behind the first.
type Guard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewGuard() *Guard {
	return &Guard{held: make(map[string]struct{})}
}

// Acquire claims characterID. The returned release func must be called once the turn is saved.
func (g *Guard) Acquire(_ context.Context, characterID string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.held[characterID]; busy {
		return nil, engerr.Busyf("character %s already has a turn in progress", characterID)
	}
	g.held[characterID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, characterID)
			g.mu.Unlock()
		})
	}, nil
}

// Process runs req under the guard
func (g *Guard) Process(ctx context.Context, o *Orchestrator, req Request) (*Result, error) {
	if req.Character == nil {
		return o.Process(req)
	}
	release, err := g.Acquire(ctx, req.Character.ID)
	if err != nil {
		return nil, err
	}
	defer release()
	return o.Process(req)
}
