package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/rocketscienceinc/bingo-backend/internal/apperror"
	"github.com/rocketscienceinc/bingo-backend/internal/entity"
	"github.com/rocketscienceinc/bingo-backend/internal/pkg"
	"github.com/rocketscienceinc/bingo-backend/internal/repository"
	"github.com/rocketscienceinc/bingo-backend/internal/repository/memory"
	"github.com/rocketscienceinc/bingo-backend/internal/synchronizer"
)

const sendBuffer = 16

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

type actionHandler func(ctx context.Context, client *client, message *Message) (synchronizer.Outcome, error)

// Server bridges browsers to session synchronizers. Every connection gets its
// own Synchronizer, closed when the connection ends.
type Server struct {
	logger   *slog.Logger
	store    sessionStore
	upgrader websocket.Upgrader

	handlers map[string]actionHandler

	mu      sync.Mutex
	clients map[*client]struct{}
}

func New(logger *slog.Logger, store sessionStore) *Server {
	server := &Server{
		logger: logger.With("component", "websocket"),
		store:  store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},

		handlers: make(map[string]actionHandler),
		clients:  make(map[*client]struct{}),
	}

	server.handlers[actionJoin] = server.handleJoin
	server.handlers[actionMark] = server.handleMark
	server.handlers[actionStart] = server.handleStart
	server.handlers[actionEnd] = server.handleEnd
	server.handlers[actionReset] = server.handleReset
	server.handlers[actionResync] = server.handleResync

	return server
}

func (that *Server) Register(mux *httprouter.Router) {
	mux.GET("/ws/:code", that.ServeWS)
}

// ServeWS loads the session before upgrading so an unknown code is a plain 404.
func (that *Server) ServeWS(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	code := pkg.NormalizeCode(ps.ByName("code"))
	log := that.logger.With("method", "ServeWS", "code", code)

	if !pkg.ValidCode(code) {
		http.Error(w, "invalid game code", http.StatusBadRequest)
		return
	}

	identities := memory.NewIdentities()
	if playerID := that.resolvePlayer(r.Context(), code, requestSecret(r, code)); playerID != "" {
		_ = identities.Remember(r.Context(), code, playerID)
	}

	syncer := synchronizer.New(that.logger, that.store, identities)

	view, err := syncer.Load(r.Context(), code)
	if err != nil {
		_ = syncer.Close()

		if errors.Is(err, apperror.ErrNotFound) {
			http.Error(w, "game not found", http.StatusNotFound)
			return
		}

		log.Error("failed to load session", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		_ = syncer.Close()
		log.Error("upgrade error", "error", err)
		return
	}

	log.Info("WebSocket connection established", "sessionID", view.Session.ID)

	client := newClient(that.logger, conn, syncer)

	that.mu.Lock()
	that.clients[client] = struct{}{}
	that.mu.Unlock()

	client.serve(r.Context(), view, that.dispatch)

	that.mu.Lock()
	delete(that.clients, client)
	that.mu.Unlock()

	log.Info("WebSocket connection closed")
}

// Shutdown drops every open connection; each one then closes its synchronizer.
// http.Server.Shutdown does not touch hijacked connections, so register this
// with RegisterOnShutdown.
func (that *Server) Shutdown() {
	that.mu.Lock()
	defer that.mu.Unlock()

	for client := range that.clients {
		_ = client.conn.Close()
	}
}

func (that *Server) dispatch(ctx context.Context, client *client, message *Message) {
	log := that.logger.With("method", "dispatch", "action", message.Action)

	handler, ok := that.handlers[message.Action]
	if !ok {
		client.sendError(message.Action, "unknown action")
		return
	}

	outcome, err := handler(ctx, client, message)
	if err != nil {
		log.Error("action failed", "error", err)
		client.sendError(message.Action, userMessage(err))
		return
	}

	client.send(actionResult, ResultPayload{Action: message.Action, Outcome: outcome.String()})

	if outcome == synchronizer.OutcomeApplied {
		client.sendState()
	}
}

// requestSecret reads the browser's player secret for code from the query or its cookie.
func requestSecret(r *http.Request, code string) string {
	if secret := r.URL.Query().Get("token"); secret != "" {
		return secret
	}

	if cookie, err := r.Cookie(pkg.PlayerCookie(code)); err == nil {
		return cookie.Value
	}

	return ""
}

// resolvePlayer returns the id of the player holding secret, or "" when the
// secret matches nobody. Player ids are public; only the secret grants a seat.
func (that *Server) resolvePlayer(ctx context.Context, code, secret string) string {
	if secret == "" {
		return ""
	}

	log := that.logger.With("method", "resolvePlayer", "code", code)

	session, err := that.store.GetSessionByCode(ctx, code)
	if err != nil {
		return ""
	}

	players, err := that.store.ListPlayers(ctx, session.ID)
	if err != nil {
		log.Error("failed to list players", "error", err)
		return ""
	}

	for _, player := range players {
		if pkg.SecretMatches(player.Secret, secret) {
			return player.ID
		}
	}

	log.Warn("unknown player secret, connecting as a spectator")

	return ""
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		return "game not found"
	case errors.Is(err, apperror.ErrStaleRound):
		return "the game was reset, please try again"
	case errors.Is(err, apperror.ErrConflict):
		return "your card changed on another device, please try again"
	case errors.Is(err, apperror.ErrWriteFailed):
		return "could not save, please try again"
	case errors.Is(err, apperror.ErrNotLoaded):
		return "game is not loaded"
	default:
		return "something went wrong"
	}
}
