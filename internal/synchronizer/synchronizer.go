package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rocketscienceinc/bingo-backend/internal/apperror"
	"github.com/rocketscienceinc/bingo-backend/internal/bingo"
	"github.com/rocketscienceinc/bingo-backend/internal/entity"
	"github.com/rocketscienceinc/bingo-backend/internal/pkg"
	"github.com/rocketscienceinc/bingo-backend/internal/repository"
)

const updatesBuffer = 64

var errSubscriptionGap = errors.New("subscription reported a gap")

type sessionStore interface {
	GetSessionByCode(ctx context.Context, code string) (*entity.Session, error)
	GetSessionByID(ctx context.Context, id string) (*entity.Session, error)
	ListPlayers(ctx context.Context, sessionID string) ([]*entity.Player, error)

	CreatePlayer(ctx context.Context, player repository.NewPlayer) (*entity.Player, error)
	UpdateSession(ctx context.Context, id string, patch repository.SessionPatch) (*entity.Session, error)
	UpdatePlayer(ctx context.Context, id string, patch repository.PlayerPatch) (*entity.Player, error)
	ResetSession(ctx context.Context, id string, patch repository.ResetPatch) (*entity.Session, []*entity.Player, error)

	Subscribe(ctx context.Context, sessionID string) (repository.Subscription, error)
}

type identityStore interface {
	Remember(ctx context.Context, code, playerID string) error
	Lookup(ctx context.Context, code string) (string, error)
}

// Synchronizer owns the live state of one session for one participant. Remote
// state changes only through change events, refetches, and the records the
// store returns for this participant's own writes.
type Synchronizer struct {
	logger     *slog.Logger
	store      sessionStore
	identities identityStore
	tracer     trace.Tracer
	now        func() time.Time

	mu         sync.RWMutex
	session    *entity.Session
	players    map[string]*entity.Player
	myPlayerID string
	closed     bool

	sub    repository.Subscription
	cancel context.CancelFunc
	done   chan struct{}

	updates chan Notification
}

func New(logger *slog.Logger, store sessionStore, identities identityStore) *Synchronizer {
	return &Synchronizer{
		logger:     logger.With("component", "synchronizer"),
		store:      store,
		identities: identities,
		tracer:     otel.Tracer("github.com/rocketscienceinc/bingo-backend/internal/synchronizer"),
		now:        time.Now,
		players:    make(map[string]*entity.Player),
		updates:    make(chan Notification, updatesBuffer),
	}
}

// Load resolves the session by code, subscribes to its changes and reads the
// current state. The subscription is open before the state is read.
func (that *Synchronizer) Load(ctx context.Context, code string) (_ View, err error) {
	ctx, span := that.startSpan(ctx, "Load", attribute.String("code", code))
	defer func() { endSpan(span, err) }()

	log := that.logger.With("method", "Load")

	code = pkg.NormalizeCode(code)

	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return View{}, fmt.Errorf("%w: synchronizer is closed", apperror.ErrNotLoaded)
	}

	if that.session != nil {
		return View{}, apperror.ErrAlreadyLoaded
	}

	found, err := that.store.GetSessionByCode(ctx, code)
	if err != nil {
		return View{}, fmt.Errorf("failed to find session %s: %w", code, err)
	}

	subCtx, cancel := context.WithCancel(context.Background())

	sub, err := that.store.Subscribe(subCtx, found.ID)
	if err != nil {
		cancel()
		return View{}, fmt.Errorf("failed to subscribe: %w", err)
	}

	session, players, err := that.fetch(ctx, found.ID)
	if err != nil {
		_ = sub.Close()
		cancel()
		return View{}, err
	}

	that.session = session
	that.players = make(map[string]*entity.Player, len(players))
	for _, player := range players {
		that.players[player.ID] = player
	}

	playerID, err := that.identities.Lookup(ctx, code)
	switch {
	case err == nil:
		if _, ok := that.players[playerID]; ok {
			that.myPlayerID = playerID
		} else {
			log.Warn("remembered player is not in the session", "playerID", playerID)
		}
	case !errors.Is(err, apperror.ErrNotFound):
		log.Error("failed to look up identity", "error", err)
	}

	that.sub, that.cancel = sub, cancel
	that.done = make(chan struct{})

	go that.consume(subCtx, sub, that.done)

	log.Info("session loaded", "sessionID", session.ID, "players", len(players), "playerID", that.myPlayerID)

	return that.viewLocked(), nil
}

// Join adds the caller as a new non-host player while the session waits.
func (that *Synchronizer) Join(ctx context.Context, name string) (_ Outcome, err error) {
	ctx, span := that.startSpan(ctx, "Join")
	defer func() { endSpan(span, err) }()

	log := that.logger.With("method", "Join")

	session, _, err := that.current()
	if err != nil {
		return OutcomeFailed, err
	}

	if !session.IsWaiting() {
		log.Debug("join refused", "status", session.Status)
		return OutcomeInvalidState, nil
	}

	name = trimName(name)
	if name == "" {
		return OutcomeInvalid, nil
	}

	player, err := that.store.CreatePlayer(ctx, repository.NewPlayer{SessionID: session.ID, Name: name})
	if err != nil {
		return OutcomeFailed, apperror.WriteFailed(fmt.Errorf("failed to create player: %w", err))
	}

	if err = that.identities.Remember(ctx, session.Code, player.ID); err != nil {
		log.Error("failed to remember player", "playerID", player.ID, "error", err)
	}

	that.mu.Lock()
	that.myPlayerID = player.ID
	that.applyPlayerLocked(repository.KindInsert, player)
	that.mu.Unlock()

	log.Info("player joined", "playerID", player.ID)

	return OutcomeApplied, nil
}

// MarkCell marks one cell on the caller's card and records a win in the same write.
func (that *Synchronizer) MarkCell(ctx context.Context, cell int) (_ Outcome, err error) {
	ctx, span := that.startSpan(ctx, "MarkCell", attribute.Int("cell", cell))
	defer func() { endSpan(span, err) }()

	_, me, err := that.current()
	if err != nil {
		return OutcomeFailed, err
	}

	if cell < 0 || cell >= bingo.CellCount || cell == bingo.FreeCell {
		return OutcomeIgnored, nil
	}

	if me == nil {
		return OutcomeDenied, nil
	}

	if me.IsMarked(cell) {
		return OutcomeIgnored, nil
	}

	patch := markPatch(me, cell, that.now())

	updated, err := that.store.UpdatePlayer(ctx, me.ID, patch)
	if err != nil {
		if errors.Is(err, apperror.ErrStaleRound) || errors.Is(err, apperror.ErrConflict) {
			that.resyncAfter(ctx, err)
		}

		return OutcomeFailed, apperror.WriteFailed(fmt.Errorf("failed to mark cell %d: %w", cell, err))
	}

	that.mu.Lock()
	that.applyPlayerLocked(repository.KindUpdate, updated)
	that.mu.Unlock()

	return OutcomeApplied, nil
}

// Start moves a waiting session to playing. Host only.
func (that *Synchronizer) Start(ctx context.Context) (Outcome, error) {
	return that.transition(ctx, "Start", entity.StatusPlaying, func(*entity.Session) repository.SessionPatch {
		return repository.SessionPatch{}
	})
}

// End moves a playing session to finished, naming the earliest winner if any. Host only.
func (that *Synchronizer) End(ctx context.Context) (Outcome, error) {
	return that.transition(ctx, "End", entity.StatusFinished, func(*entity.Session) repository.SessionPatch {
		that.mu.RLock()
		defer that.mu.RUnlock()

		if winner := that.earliestWinnerLocked(); winner != nil {
			return repository.SessionPatch{WinnerID: &winner.ID}
		}

		return repository.SessionPatch{}
	})
}

// Reset clears every card and returns the session to waiting in a new round.
// Host only; allowed from finished and, as a re-clear, from waiting.
func (that *Synchronizer) Reset(ctx context.Context) (_ Outcome, err error) {
	ctx, span := that.startSpan(ctx, "Reset")
	defer func() { endSpan(span, err) }()

	log := that.logger.With("method", "Reset")

	session, me, err := that.current()
	if err != nil {
		return OutcomeFailed, err
	}

	if me == nil || !me.IsHost {
		log.Debug("reset refused, caller is not the host")
		return OutcomeDenied, nil
	}

	if !session.IsFinished() && !session.IsWaiting() {
		log.Debug("reset refused", "status", session.Status)
		return OutcomeInvalidState, nil
	}

	updated, players, err := that.store.ResetSession(ctx, session.ID, repository.ResetPatch{
		AllowedFrom: []string{entity.StatusFinished, entity.StatusWaiting},
	})
	if errors.Is(err, apperror.ErrInvalidTransition) {
		return OutcomeInvalidState, nil
	}

	if err != nil {
		return OutcomeFailed, apperror.WriteFailed(fmt.Errorf("failed to reset session: %w", err))
	}

	that.mu.Lock()
	that.applySessionLocked(repository.KindUpdate, updated)
	for _, player := range players {
		that.applyPlayerLocked(repository.KindUpdate, player)
	}
	that.mu.Unlock()

	log.Info("session reset", "round", updated.Round)

	return OutcomeApplied, nil
}

// Resync replaces local state with a fresh read of the store.
func (that *Synchronizer) Resync(ctx context.Context) (err error) {
	ctx, span := that.startSpan(ctx, "Resync")
	defer func() { endSpan(span, err) }()

	current, _, err := that.current()
	if err != nil {
		return err
	}

	session, players, err := that.fetch(ctx, current.ID)
	if err != nil {
		return err
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return nil
	}

	that.applySessionLocked(repository.KindUpdate, session)

	fresh := make(map[string]struct{}, len(players))
	for _, player := range players {
		fresh[player.ID] = struct{}{}
		that.applyPlayerLocked(repository.KindUpdate, player)
	}

	for id := range that.players {
		if _, ok := fresh[id]; !ok {
			delete(that.players, id)
		}
	}

	that.notifyLocked(Notification{Kind: NotifyChanged})

	return nil
}

// Snapshot returns a copy of the current state.
func (that *Synchronizer) Snapshot() View {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return that.viewLocked()
}

// Updates delivers a notification after every applied change. Notifications
// may be dropped when the reader falls behind; Snapshot is always current.
// The channel is closed by Close.
func (that *Synchronizer) Updates() <-chan Notification {
	return that.updates
}

// Close releases the subscription. Safe to call more than once and before Load.
func (that *Synchronizer) Close() error {
	that.mu.Lock()
	if that.closed {
		that.mu.Unlock()
		return nil
	}

	that.closed = true
	sub, cancel, done := that.sub, that.cancel, that.done
	that.mu.Unlock()

	var err error
	if sub != nil {
		err = sub.Close()
		cancel()
		<-done
	}

	that.mu.Lock()
	close(that.updates)
	that.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to close subscription: %w", err)
	}

	return nil
}

func (that *Synchronizer) transition(
	ctx context.Context, method, to string, extra func(*entity.Session) repository.SessionPatch,
) (_ Outcome, err error) {
	ctx, span := that.startSpan(ctx, method, attribute.String("status", to))
	defer func() { endSpan(span, err) }()

	log := that.logger.With("method", method)

	session, me, err := that.current()
	if err != nil {
		return OutcomeFailed, err
	}

	if me == nil || !me.IsHost {
		log.Debug("transition refused, caller is not the host")
		return OutcomeDenied, nil
	}

	if !session.CanTransition(to) {
		log.Debug("transition refused", "from", session.Status, "to", to)
		return OutcomeInvalidState, nil
	}

	patch := extra(session)
	patch.Status, patch.FromStatus = &to, &session.Status

	updated, err := that.store.UpdateSession(ctx, session.ID, patch)
	if errors.Is(err, apperror.ErrInvalidTransition) {
		that.resyncAfter(ctx, err)
		return OutcomeInvalidState, nil
	}

	if err != nil {
		return OutcomeFailed, apperror.WriteFailed(fmt.Errorf("failed to move session to %s: %w", to, err))
	}

	that.mu.Lock()
	that.applySessionLocked(repository.KindUpdate, updated)
	that.mu.Unlock()

	log.Info("session status changed", "status", to)

	return OutcomeApplied, nil
}

// current returns copies of the session and the caller's player, which is nil
// until the caller has joined.
func (that *Synchronizer) current() (*entity.Session, *entity.Player, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	if that.closed || that.session == nil {
		return nil, nil, apperror.ErrNotLoaded
	}

	return that.session.Clone(), that.players[that.myPlayerID].Clone(), nil
}

func (that *Synchronizer) fetch(ctx context.Context, sessionID string) (*entity.Session, []*entity.Player, error) {
	session, err := that.store.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read session: %w", err)
	}

	players, err := that.store.ListPlayers(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read players: %w", err)
	}

	return session, players, nil
}

func (that *Synchronizer) resyncAfter(ctx context.Context, cause error) {
	log := that.logger.With("method", "resyncAfter")

	log.Info("local state is behind the store, refetching", "cause", cause)

	if err := that.Resync(ctx); err != nil {
		log.Error("failed to resync", "error", err)
	}
}

func (that *Synchronizer) consume(ctx context.Context, sub repository.Subscription, done chan struct{}) {
	defer close(done)

	for event := range sub.Events() {
		if event.IsGap() {
			that.resyncAfter(ctx, errSubscriptionGap)
			continue
		}

		that.apply(event)
	}
}

func (that *Synchronizer) apply(event repository.ChangeEvent) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed || that.session == nil {
		return
	}

	switch event.Entity {
	case repository.EntitySession:
		that.applySessionLocked(event.Kind, event.Session)
	case repository.EntityPlayer:
		that.applyPlayerLocked(event.Kind, event.Player)
	}
}

// applySessionLocked keeps the session row if it is newer than the known one.
func (that *Synchronizer) applySessionLocked(kind string, session *entity.Session) {
	if session == nil || session.ID != that.session.ID || kind == repository.KindDelete {
		return
	}

	if session.Version <= that.session.Version {
		return
	}

	previous := that.session.Status
	that.session = session.Clone()

	if previous != session.Status {
		that.notifyLocked(Notification{Kind: NotifyStatusChanged, Status: session.Status})
		return
	}

	that.notifyLocked(Notification{Kind: NotifyChanged})
}

// applyPlayerLocked keeps the player row if it is newer than the known one.
func (that *Synchronizer) applyPlayerLocked(kind string, player *entity.Player) {
	if player == nil || player.SessionID != that.session.ID {
		return
	}

	existing, known := that.players[player.ID]

	if kind == repository.KindDelete {
		if known {
			delete(that.players, player.ID)
			that.notifyLocked(Notification{Kind: NotifyPlayerLeft, PlayerID: player.ID, PlayerName: existing.Name})
		}
		return
	}

	if known && player.Version <= existing.Version {
		return
	}

	that.players[player.ID] = player.Clone()

	switch {
	case !known:
		that.notifyLocked(Notification{Kind: NotifyPlayerJoined, PlayerID: player.ID, PlayerName: player.Name})
	case player.HasWon && !existing.HasWon:
		that.notifyLocked(Notification{Kind: NotifyBingo, PlayerID: player.ID, PlayerName: player.Name})
	default:
		that.notifyLocked(Notification{Kind: NotifyChanged, PlayerID: player.ID})
	}
}

func (that *Synchronizer) earliestWinnerLocked() *entity.Player {
	var winner *entity.Player

	for _, player := range that.players {
		if !player.HasWon || player.WonAt == nil {
			continue
		}

		if winner == nil || player.WonAt.Before(*winner.WonAt) ||
			(player.WonAt.Equal(*winner.WonAt) && player.Less(winner)) {
			winner = player
		}
	}

	return winner
}

// notifyLocked never blocks: a full buffer drops the notification.
func (that *Synchronizer) notifyLocked(notification Notification) {
	if that.closed {
		return
	}

	select {
	case that.updates <- notification:
	default:
		that.logger.Debug("updates buffer full, notification dropped", "kind", notification.Kind)
	}
}

func (that *Synchronizer) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return that.tracer.Start(ctx, "synchronizer."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}

	span.End()
}

// markPatch marks cell on top of the player's current card and, when that
// completes a line, records the win in the same write. The patch expects the
// player's own round so a reset that raced ahead is detected by the store, and
// the row version so a second connection for the same player cannot overwrite
// marks it has not seen.
func markPatch(me *entity.Player, cell int, now time.Time) repository.PlayerPatch {
	marked := me.MarkedCells
	marked[cell] = true

	patch := repository.PlayerPatch{
		MarkedCells:     &marked,
		ExpectedRound:   &me.Round,
		ExpectedVersion: &me.Version,
	}

	overlay := marked
	overlay[bingo.FreeCell] = true

	if !me.HasWon && bingo.Evaluate(overlay).Won {
		won := true
		patch.HasWon = &won
		patch.WonAt = &now
	}

	return patch
}

func trimName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}
