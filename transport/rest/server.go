package rest

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/rocketscienceinc/bingo-backend/internal/entity"
	"github.com/rocketscienceinc/bingo-backend/internal/usecase"
)

const qrSize = 320

type sessionManager interface {
	CreateSession(ctx context.Context, name string, statements []string, hostName string) (*entity.Session, *entity.Player, error)
	GetSnapshot(ctx context.Context, code string) (*usecase.Snapshot, error)
}

type Handlers struct {
	logger    *slog.Logger
	manager   sessionManager
	publicURL string
}

func NewHandlers(logger *slog.Logger, manager sessionManager, publicURL string) *Handlers {
	return &Handlers{
		logger:    logger.With("component", "rest"),
		manager:   manager,
		publicURL: publicURL,
	}
}

// Register mounts the HTTP API on mux.
func (that *Handlers) Register(mux *httprouter.Router) {
	mux.GET("/ping", that.Ping)

	mux.POST("/api/games", that.CreateGame)
	mux.GET("/api/games/:code", that.GetGame)
	mux.GET("/api/games/:code/qr", that.GameQR)
}

func (that *Handlers) Ping(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}
