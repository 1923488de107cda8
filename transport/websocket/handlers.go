package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rocketscienceinc/bingo-backend/internal/synchronizer"
)

func (that *Server) handleJoin(ctx context.Context, client *client, message *Message) (synchronizer.Outcome, error) {
	var payload JoinPayload
	if err := json.Unmarshal(message.Payload, &payload); err != nil {
		return synchronizer.OutcomeInvalid, nil
	}

	outcome, err := client.syncer.Join(ctx, payload.Name)
	if err != nil {
		return outcome, fmt.Errorf("failed to join: %w", err)
	}

	return outcome, nil
}

func (that *Server) handleMark(ctx context.Context, client *client, message *Message) (synchronizer.Outcome, error) {
	var payload MarkPayload
	if err := json.Unmarshal(message.Payload, &payload); err != nil || payload.Cell == nil {
		return synchronizer.OutcomeInvalid, nil
	}

	outcome, err := client.syncer.MarkCell(ctx, *payload.Cell)
	if err != nil {
		return outcome, fmt.Errorf("failed to mark cell: %w", err)
	}

	return outcome, nil
}

func (that *Server) handleStart(ctx context.Context, client *client, _ *Message) (synchronizer.Outcome, error) {
	return client.syncer.Start(ctx)
}

func (that *Server) handleEnd(ctx context.Context, client *client, _ *Message) (synchronizer.Outcome, error) {
	return client.syncer.End(ctx)
}

func (that *Server) handleReset(ctx context.Context, client *client, _ *Message) (synchronizer.Outcome, error) {
	return client.syncer.Reset(ctx)
}

// handleResync answers with a fresh state whatever the outcome.
func (that *Server) handleResync(ctx context.Context, client *client, _ *Message) (synchronizer.Outcome, error) {
	if err := client.syncer.Resync(ctx); err != nil {
		return synchronizer.OutcomeFailed, fmt.Errorf("failed to resync: %w", err)
	}

	return synchronizer.OutcomeApplied, nil
}
