package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/bingo-backend/internal/synchronizer"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

// client is one browser connection. readPump runs on the handler goroutine and
// writePump is the only writer to conn. When writePump stops it closes conn and
// writerDone, so readPump can never wait on it.
type client struct {
	logger *slog.Logger
	conn   *websocket.Conn
	syncer *synchronizer.Synchronizer

	outbox     chan Message
	quit       chan struct{}
	writerDone chan struct{}
}

func newClient(logger *slog.Logger, conn *websocket.Conn, syncer *synchronizer.Synchronizer) *client {
	return &client{
		logger: logger.With("component", "websocket-client"),
		conn:   conn,
		syncer: syncer,
		outbox:     make(chan Message, sendBuffer),
		quit:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}
}

// serve blocks until the connection ends, then tears down the synchronizer.
func (that *client) serve(ctx context.Context, view synchronizer.View, dispatch func(context.Context, *client, *Message)) {
	go that.writePump()

	if msg, err := stateMessage(view); err == nil {
		that.enqueue(msg)
	}

	that.readPump(ctx, dispatch)

	close(that.quit)

	if err := that.syncer.Close(); err != nil {
		that.logger.Error("failed to close synchronizer", "error", err)
	}

	<-that.writerDone
}

func (that *client) readPump(ctx context.Context, dispatch func(context.Context, *client, *Message)) {
	log := that.logger.With("method", "readPump")

	that.conn.SetReadLimit(maxMessageSize)

	for {
		_, data, err := that.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("connection closed unexpectedly", "error", err)
			}
			return
		}

		var message Message
		if err = json.Unmarshal(data, &message); err != nil {
			log.Debug("failed to unmarshal message", "error", err)
			that.sendError("", "invalid message")
			continue
		}

		dispatch(ctx, that, &message)
	}
}

func (that *client) writePump() {
	log := that.logger.With("method", "writePump")

	defer func() {
		_ = that.conn.Close()
		close(that.writerDone)
	}()

	updates := that.syncer.Updates()

	for {
		select {
		case msg := <-that.outbox:
			if err := that.write(msg); err != nil {
				log.Debug("write failed", "error", err)
				return
			}

		case notification, ok := <-updates:
			if !ok {
				return
			}

			event, err := newMessage(actionEvent, notification)
			if err != nil {
				log.Error("failed to encode event", "error", err)
				continue
			}

			state, err := stateMessage(that.syncer.Snapshot())
			if err != nil {
				log.Error("failed to encode state", "error", err)
				continue
			}

			if err = that.write(event); err != nil {
				log.Debug("write failed", "error", err)
				return
			}
			if err = that.write(state); err != nil {
				log.Debug("write failed", "error", err)
				return
			}

		case <-that.quit:
			_ = that.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}

func (that *client) write(msg Message) error {
	if err := that.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}

	return that.conn.WriteJSON(msg)
}

func (that *client) enqueue(msg Message) {
	select {
	case that.outbox <- msg:
	case <-that.quit:
	case <-that.writerDone:
	}
}

func (that *client) send(action string, payload any) {
	msg, err := newMessage(action, payload)
	if err != nil {
		that.logger.Error("failed to encode message", "action", action, "error", err)
		return
	}

	that.enqueue(msg)
}

func (that *client) sendState() {
	if msg, err := stateMessage(that.syncer.Snapshot()); err == nil {
		that.enqueue(msg)
	}
}

func (that *client) sendError(action, text string) {
	that.send(actionError, ErrorPayload{Action: action, Error: text})
}
