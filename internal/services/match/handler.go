package match

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/haldane-games/crucible/internal/engine"
	matchruntime "github.com/haldane-games/crucible/internal/match"
	apperrors "github.com/haldane-games/crucible/internal/platform/errors"
)

// socketClient is the per-connection state of one player's session.
type socketClient struct {
	service *Service
	conn    *websocket.Conn

	session  matchruntime.Session
	decode   PayloadDecoder
	playerID string
	cursor   int64
}

func (c *socketClient) serve(ctx context.Context) {
	defer c.conn.Close()
	// The request context may already be done once the socket drops; the
	// disconnect bookkeeping must still run.
	defer c.leave(context.Background())

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.sendError("", apperrors.New(apperrors.CodeUnknown, "malformed message"))
			continue
		}

		switch msg.Type {
		case MessageCreate:
			c.handleCreate(ctx, msg)
		case MessageJoin:
			c.handleJoin(ctx, msg)
		case MessageCommand:
			if msg.Command == nil {
				c.sendError(msg.MatchID, apperrors.New(apperrors.CodeMatchEmptyBatch, "command message has no command"))
				continue
			}
			c.handleBatch(ctx, []WireCommand{*msg.Command})
		case MessageBatch:
			c.handleBatch(ctx, msg.Commands)
		case MessageSync:
			c.sendEvents(ctx)
		default:
			c.sendError(msg.MatchID, apperrors.New(apperrors.CodeUnknown, "unknown message type"))
		}
	}
}

func (c *socketClient) handleCreate(ctx context.Context, msg ClientMessage) {
	session, err := c.service.manager.Create(ctx, msg.GameID, msg.Seed)
	if err != nil {
		c.sendError("", err)
		return
	}
	c.attach(ctx, session, msg.PlayerID, -1)
}

func (c *socketClient) handleJoin(ctx context.Context, msg ClientMessage) {
	session, err := c.service.manager.Get(msg.MatchID)
	if err != nil {
		c.sendError(msg.MatchID, err)
		return
	}
	cursor := msg.LastSeenID
	if cursor <= 0 {
		cursor = -1
	}
	c.attach(ctx, session, msg.PlayerID, cursor)
}

// attach binds the connection to a match and sends the joined snapshot. A
// reconnecting client keeps its cursor and receives only what it missed.
func (c *socketClient) attach(ctx context.Context, session matchruntime.Session, playerID string, cursor int64) {
	c.leave(ctx)

	c.session = session
	c.playerID = playerID
	c.cursor = cursor
	c.decode = c.service.decoders[session.GameID()]

	if playerID != "" {
		if err := session.Connect(ctx, playerID); err != nil {
			c.sendError(session.ID(), err)
			return
		}
	}

	state, err := session.StateJSON(ctx)
	if err != nil {
		c.sendError(session.ID(), err)
		return
	}
	delta, err := session.Delta(ctx, c.cursor)
	if err != nil {
		c.sendError(session.ID(), err)
		return
	}
	c.cursor = delta.NextLastSeenID

	c.send(ServerMessage{
		Type:         MessageJoined,
		MatchID:      session.ID(),
		State:        state,
		StateVersion: delta.NextLastSeenID,
		Events:       delta.NewEntries,
		Reset:        delta.ShouldReset,
	})
}

func (c *socketClient) handleBatch(ctx context.Context, wireCommands []WireCommand) {
	if c.session == nil {
		c.sendError("", apperrors.New(apperrors.CodeMatchNotFound, "join a match first"))
		return
	}

	commands := make([]engine.Command, 0, len(wireCommands))
	ids := make([]string, 0, len(wireCommands))
	for _, wire := range wireCommands {
		cmd, err := c.toCommand(wire)
		if err != nil {
			c.sendError(c.session.ID(), err)
			return
		}
		commands = append(commands, cmd)
		ids = append(ids, cmd.ClientCommandID)
	}

	outcome, err := c.session.SubmitBatch(ctx, commands)
	if err != nil {
		c.sendError(c.session.ID(), err)
		return
	}

	results := make([]CommandResult, len(outcome.Results))
	for i, result := range outcome.Results {
		results[i] = CommandResult{
			ClientCommandID: ids[i],
			Status:          string(result.Status),
			Code:            result.Code,
			Reason:          result.Reason,
		}
	}
	c.send(ServerMessage{
		Type:         MessageResults,
		MatchID:      c.session.ID(),
		Results:      results,
		StateVersion: outcome.StateVersion,
	})
	c.sendEvents(ctx)
}

// toCommand decodes one wire command. A missing client command id gets a
// generated one so results stay correlatable.
func (c *socketClient) toCommand(wire WireCommand) (engine.Command, error) {
	cmd := engine.Command{
		Type:            wire.Type,
		PlayerID:        wire.PlayerID,
		ClientCommandID: wire.ClientCommandID,
	}
	if cmd.PlayerID == "" {
		cmd.PlayerID = c.playerID
	}
	if cmd.ClientCommandID == "" {
		cmd.ClientCommandID = uuid.NewString()
	}

	switch wire.Type {
	case engine.CommandInteractionRespond:
		var resp engine.Response
		if err := json.Unmarshal(wire.Payload, &resp); err != nil {
			return engine.Command{}, apperrors.Wrap(apperrors.CodeInteractionStale, "decode response payload", err)
		}
		cmd.Payload = resp
	case engine.CommandUndo:
		// No payload.
	default:
		if c.decode != nil {
			payload, err := c.decode(wire.Type, wire.Payload)
			if err != nil {
				return engine.Command{}, err
			}
			cmd.Payload = payload
		}
	}
	return cmd, nil
}

func (c *socketClient) sendEvents(ctx context.Context) {
	if c.session == nil {
		return
	}
	delta, err := c.session.Delta(ctx, c.cursor)
	if err != nil {
		c.sendError(c.session.ID(), err)
		return
	}
	c.cursor = delta.NextLastSeenID
	if len(delta.NewEntries) == 0 && !delta.ShouldReset {
		return
	}
	c.send(ServerMessage{
		Type:         MessageEvents,
		MatchID:      c.session.ID(),
		Events:       delta.NewEntries,
		StateVersion: delta.NextLastSeenID,
		Reset:        delta.ShouldReset,
	})
}

func (c *socketClient) leave(ctx context.Context) {
	if c.session == nil || c.playerID == "" {
		return
	}
	decision, err := c.session.Disconnect(ctx, c.playerID)
	if err != nil {
		c.service.logger.Printf("disconnect %s from %s: %v", c.playerID, c.session.ID(), err)
		return
	}
	if decision.ShouldCancel {
		c.service.logger.Printf("match %s: cancelled interaction %d after %s disconnected",
			c.session.ID(), decision.InteractionID, c.playerID)
	}
}

func (c *socketClient) send(msg ServerMessage) {
	if err := c.conn.WriteJSON(msg); err != nil {
		c.service.logger.Printf("write message: %v", err)
	}
}

func (c *socketClient) sendError(matchID string, err error) {
	c.send(ServerMessage{
		Type:    MessageError,
		MatchID: matchID,
		Code:    string(apperrors.GetCode(err)),
		Message: err.Error(),
	})
}
