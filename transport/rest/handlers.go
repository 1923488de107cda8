package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/rocketscienceinc/bingo-backend/internal/apperror"
	"github.com/rocketscienceinc/bingo-backend/internal/entity"
	"github.com/rocketscienceinc/bingo-backend/internal/pkg"
	"github.com/rocketscienceinc/bingo-backend/internal/synchronizer"
)

const maxRequestBody = 64 << 10

type createGameRequest struct {
	Name       string   `json:"name"`
	Statements []string `json:"statements"`
	HostName   string   `json:"hostName"`
}

type createGameResponse struct {
	Game   *entity.Session `json:"game"`
	Player *entity.Player  `json:"player"`
	Link   string          `json:"link"`
}

type playerSummary struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	IsHost       bool       `json:"is_host"`
	HasWon       bool       `json:"has_won"`
	WonAt        *time.Time `json:"won_at,omitempty"`
	ClosestToWin int        `json:"closest_to_win"`
}

type gameResponse struct {
	Game    *entity.Session `json:"game"`
	Players []playerSummary `json:"players"`
	Ranking []string        `json:"ranking"`
	Link    string          `json:"link"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (that *Handlers) CreateGame(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	log := that.logger.With("method", "CreateGame")

	var req createGameRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		that.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	session, host, err := that.manager.CreateSession(r.Context(), req.Name, req.Statements, req.HostName)
	if err != nil {
		log.Error("failed to create session", "error", err)
		that.writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     pkg.PlayerCookie(session.Code),
		Value:    host.Secret,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	that.writeJSON(w, http.StatusCreated, createGameResponse{
		Game:   session,
		Player: host,
		Link:   pkg.GameLink(that.publicURL, session.Code),
	})
}

func (that *Handlers) GetGame(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	snapshot, err := that.manager.GetSnapshot(r.Context(), ps.ByName("code"))
	if err != nil {
		that.writeError(w, err)
		return
	}

	resp := gameResponse{
		Game:    snapshot.Session,
		Players: make([]playerSummary, 0, len(snapshot.Players)),
		Ranking: make([]string, 0, len(snapshot.Players)),
		Link:    pkg.GameLink(that.publicURL, snapshot.Session.Code),
	}

	for _, player := range snapshot.Players {
		resp.Players = append(resp.Players, playerSummary{
			ID:           player.ID,
			Name:         player.Name,
			IsHost:       player.IsHost,
			HasWon:       player.HasWon,
			WonAt:        player.WonAt,
			ClosestToWin: player.ClosestToWin(),
		})
	}

	for _, player := range synchronizer.RankPlayers(snapshot.Players) {
		resp.Ranking = append(resp.Ranking, player.ID)
	}

	that.writeJSON(w, http.StatusOK, resp)
}

// GameQR serves a PNG QR code of the session's deep link.
func (that *Handlers) GameQR(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	snapshot, err := that.manager.GetSnapshot(r.Context(), ps.ByName("code"))
	if err != nil {
		that.writeError(w, err)
		return
	}

	png, err := qrcode.Encode(pkg.GameLink(that.publicURL, snapshot.Session.Code), qrcode.Medium, qrSize)
	if err != nil {
		that.logger.Error("qr generation failed", "error", err)
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func (that *Handlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, apperror.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperror.ErrInvalidBoard), errors.Is(err, apperror.ErrInvalidName):
		status = http.StatusBadRequest
	case errors.Is(err, apperror.ErrWriteFailed):
		status = http.StatusServiceUnavailable
	}

	message := err.Error()
	if status >= http.StatusInternalServerError {
		message = http.StatusText(status)
	}

	that.writeJSON(w, status, errorResponse{Error: message})
}

func (that *Handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		that.logger.Error("failed to write response", "error", err)
	}
}
