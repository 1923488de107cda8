package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rocketscienceinc/bingo-backend/internal/apperror"
	"github.com/rocketscienceinc/bingo-backend/internal/entity"
	"github.com/rocketscienceinc/bingo-backend/internal/pkg"
	"github.com/rocketscienceinc/bingo-backend/internal/repository"
)

var _ repository.Store = (*Store)(nil)

// Store is a process-local Store. Every mutation happens under one lock and
// is fanned out to subscribers without blocking the writer.
type Store struct {
	mu sync.Mutex

	sessions map[string]*entity.Session
	codes    map[string]string
	players  map[string]*entity.Player
	members  map[string][]string

	subscribers map[string]map[*subscription]struct{}

	now func() time.Time
}

func New() *Store {
	return &Store{
		sessions:    make(map[string]*entity.Session),
		codes:       make(map[string]string),
		players:     make(map[string]*entity.Player),
		members:     make(map[string][]string),
		subscribers: make(map[string]map[*subscription]struct{}),
		now:         time.Now,
	}
}

func (that *Store) CreateSession(_ context.Context, newSession repository.NewSession) (*entity.Session, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.codes[newSession.Code]; ok {
		return nil, fmt.Errorf("%w: code %s is in use", apperror.ErrConflict, newSession.Code)
	}

	session := entity.NewSession(pkg.GenerateID(), newSession.Name, newSession.Code, newSession.Board, that.now())
	that.sessions[session.ID] = session
	that.codes[session.Code] = session.ID

	that.publish(session.ID, repository.ChangeEvent{Entity: repository.EntitySession, Kind: repository.KindInsert, Session: session.Clone()})

	return session.Clone(), nil
}

func (that *Store) CreatePlayer(_ context.Context, newPlayer repository.NewPlayer) (*entity.Player, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	session, ok := that.sessions[newPlayer.SessionID]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", apperror.ErrNotFound, newPlayer.SessionID)
	}

	player := entity.NewPlayer(pkg.GenerateID(), session.ID, newPlayer.Name, newPlayer.IsHost, session.Round, that.now())

	secret, err := pkg.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate player secret: %w", err)
	}
	player.Secret = secret

	that.players[player.ID] = player
	that.members[session.ID] = append(that.members[session.ID], player.ID)

	that.publish(session.ID, repository.ChangeEvent{Entity: repository.EntityPlayer, Kind: repository.KindInsert, Player: player.Clone()})

	return player.Clone(), nil
}

func (that *Store) GetSessionByCode(_ context.Context, code string) (*entity.Session, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	id, ok := that.codes[code]
	if !ok {
		return nil, fmt.Errorf("%w: session with code %s", apperror.ErrNotFound, code)
	}

	return that.sessions[id].Clone(), nil
}

func (that *Store) GetSessionByID(_ context.Context, id string) (*entity.Session, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	session, ok := that.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", apperror.ErrNotFound, id)
	}

	return session.Clone(), nil
}

func (that *Store) ListPlayers(_ context.Context, sessionID string) ([]*entity.Player, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	players := make([]*entity.Player, 0, len(that.members[sessionID]))
	for _, id := range that.members[sessionID] {
		players = append(players, that.players[id].Clone())
	}

	slices.SortStableFunc(players, func(a, b *entity.Player) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		default:
			return 0
		}
	})

	return players, nil
}

func (that *Store) UpdateSession(_ context.Context, id string, patch repository.SessionPatch) (*entity.Session, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	stored, ok := that.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", apperror.ErrNotFound, id)
	}

	session := stored.Clone()
	if err := patch.Apply(session); err != nil {
		return nil, fmt.Errorf("failed to update session %s: %w", id, err)
	}

	that.sessions[id] = session
	that.publish(id, repository.ChangeEvent{Entity: repository.EntitySession, Kind: repository.KindUpdate, Session: session.Clone()})

	return session.Clone(), nil
}

func (that *Store) UpdatePlayer(_ context.Context, id string, patch repository.PlayerPatch) (*entity.Player, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	stored, ok := that.players[id]
	if !ok {
		return nil, fmt.Errorf("%w: player %s", apperror.ErrNotFound, id)
	}

	session, ok := that.sessions[stored.SessionID]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", apperror.ErrNotFound, stored.SessionID)
	}

	player := stored.Clone()
	if err := patch.Apply(player, session.Round); err != nil {
		return nil, fmt.Errorf("failed to update player %s: %w", id, err)
	}

	that.players[id] = player
	that.publish(session.ID, repository.ChangeEvent{Entity: repository.EntityPlayer, Kind: repository.KindUpdate, Player: player.Clone()})

	return player.Clone(), nil
}

func (that *Store) ResetSession(_ context.Context, id string, patch repository.ResetPatch) (*entity.Session, []*entity.Player, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	stored, ok := that.sessions[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: session %s", apperror.ErrNotFound, id)
	}

	session := stored.Clone()
	players := make([]*entity.Player, 0, len(that.members[id]))
	for _, playerID := range that.members[id] {
		players = append(players, that.players[playerID].Clone())
	}

	if err := patch.Apply(session, players); err != nil {
		return nil, nil, fmt.Errorf("failed to reset session %s: %w", id, err)
	}

	that.sessions[id] = session
	that.publish(id, repository.ChangeEvent{Entity: repository.EntitySession, Kind: repository.KindUpdate, Session: session.Clone()})

	out := make([]*entity.Player, len(players))
	for i, player := range players {
		that.players[player.ID] = player
		that.publish(id, repository.ChangeEvent{Entity: repository.EntityPlayer, Kind: repository.KindUpdate, Player: player.Clone()})
		out[i] = player.Clone()
	}

	return session.Clone(), out, nil
}

func (that *Store) Subscribe(ctx context.Context, sessionID string) (repository.Subscription, error) {
	sub := newSubscription(func(sub *subscription) {
		that.mu.Lock()
		defer that.mu.Unlock()

		delete(that.subscribers[sessionID], sub)
	})

	that.mu.Lock()
	if that.subscribers[sessionID] == nil {
		that.subscribers[sessionID] = make(map[*subscription]struct{})
	}
	that.subscribers[sessionID][sub] = struct{}{}
	that.mu.Unlock()

	go sub.closeOnDone(ctx)

	return sub, nil
}

// publish must be called with the lock held.
func (that *Store) publish(sessionID string, event repository.ChangeEvent) {
	for sub := range that.subscribers[sessionID] {
		sub.push(event)
	}
}
