package websocket

import (
	"encoding/json"
	"fmt"

	"github.com/rocketscienceinc/bingo-backend/internal/synchronizer"
)

const (
	actionJoin   = "game:join"
	actionMark   = "game:mark"
	actionStart  = "game:start"
	actionEnd    = "game:end"
	actionReset  = "game:reset"
	actionResync = "game:resync"

	actionState  = "game:state"
	actionEvent  = "game:event"
	actionResult = "game:result"
	actionError  = "error"
)

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type JoinPayload struct {
	Name string `json:"name"`
}

type MarkPayload struct {
	Cell *int `json:"cell"`
}

// ResultPayload answers one intent.
type ResultPayload struct {
	Action  string `json:"action"`
	Outcome string `json:"outcome"`
}

type ErrorPayload struct {
	Action string `json:"action,omitempty"`
	Error  string `json:"error"`
}

func newMessage(action string, payload any) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal %s payload: %w", action, err)
	}

	return Message{Action: action, Payload: data}, nil
}

func stateMessage(view synchronizer.View) (Message, error) {
	return newMessage(actionState, view)
}
