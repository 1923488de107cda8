package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/rocketscienceinc/bingo-backend/internal/apperror"
	"github.com/rocketscienceinc/bingo-backend/internal/repository"
)

var _ repository.IdentityRepository = (*Identities)(nil)

type Identities struct {
	mu      sync.RWMutex
	players map[string]string
}

func NewIdentities() *Identities {
	return &Identities{players: make(map[string]string)}
}

func (that *Identities) Remember(_ context.Context, code, playerID string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.players[code] = playerID

	return nil
}

func (that *Identities) Lookup(_ context.Context, code string) (string, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	playerID, ok := that.players[code]
	if !ok {
		return "", fmt.Errorf("%w: identity for %s", apperror.ErrNotFound, code)
	}

	return playerID, nil
}

func (that *Identities) Forget(_ context.Context, code string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.players, code)

	return nil
}
