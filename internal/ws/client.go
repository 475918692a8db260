// Package ws – per-connection state and pumps.
//
// Each WebSocket connection gets a Client: an explicit state object holding
// the connection, its outbound queue, and a dispatch table keyed by event
// name. Teardown is explicit deregistration from the hub, not something left
// to garbage collection.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-poll-backend/internal/services"
)

const (
	// writeWait is the deadline for a single outbound write.
	writeWait = 10 * time.Second
	// pongWait is how long we tolerate silence before dropping the peer.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize caps inbound frames; poll events are tiny.
	maxMessageSize = 4 << 10
	// sendBuffer is the outbound queue depth before a client is dropped.
	sendBuffer = 32
)

// upgrader performs the HTTP→WebSocket upgrade. Cross-origin browser clients
// are expected (the poll page and the API live on different origins), so the
// origin check is delegated to the CORS posture of the surrounding router.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Client is the state of one WebSocket connection.
type Client struct {
	// ID identifies the connection in logs.
	ID string

	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	doneOnce sync.Once
	voterID  string
	handlers map[string]func(ctx context.Context, data json.RawMessage)
}

// Serve upgrades the request to a WebSocket connection and runs its pumps
// until the peer disconnects. voterID is the best-effort client network
// address used for socket-originated votes.
func Serve(hub *Hub, w http.ResponseWriter, r *http.Request, voterID string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &Client{
		ID:      uuid.NewString(),
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
		voterID: voterID,
	}
	c.handlers = map[string]func(ctx context.Context, data json.RawMessage){
		EventJoinPoll:  c.onJoin,
		EventLeavePoll: c.onLeave,
		EventVote:      c.onVote,
	}

	hub.register(c)
	wsConnections.Inc()
	log.Info().Str("connection_id", c.ID).Msg("ws connected")

	go c.writePump()
	c.readPump()
	return nil
}

// readPump reads inbound frames and dispatches them by event name. When it
// returns, the client is deregistered from the hub and the write pump is
// signalled to stop. The send channel itself is never closed, so concurrent
// broadcasts can never race a close.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.handlers = nil
		c.shutdown()
		wsConnections.Dec()
		log.Info().Str("connection_id", c.ID).Msg("ws disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("connection_id", c.ID).Msg("ws read error")
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			c.sendEvent(EventError, ErrorPayload{Message: "malformed message"})
			continue
		}
		handler, ok := c.handlers[env.Event]
		if !ok {
			c.sendEvent(EventError, ErrorPayload{Message: "unknown event: " + env.Event})
			continue
		}
		handler(context.Background(), env.Data)
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, nil)
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// onJoin handles a join_poll event.
func (c *Client) onJoin(ctx context.Context, data json.RawMessage) {
	var p JoinPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ShareableID == "" {
		c.sendEvent(EventError, ErrorPayload{Message: "shareableId is required"})
		return
	}
	c.hub.Join(ctx, c, p.ShareableID)
}

// onLeave handles a leave_poll event.
func (c *Client) onLeave(ctx context.Context, data json.RawMessage) {
	var p JoinPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ShareableID == "" {
		c.sendEvent(EventError, ErrorPayload{Message: "shareableId is required"})
		return
	}
	c.hub.Leave(c, p.ShareableID)
}

// onVote handles a vote event: same pipeline, same guard, same failure
// taxonomy as the REST endpoint, reported back as vote_success/vote_error.
func (c *Client) onVote(ctx context.Context, data json.RawMessage) {
	if c.hub.vote == nil {
		c.sendEvent(EventVoteError, ErrorPayload{Message: "voting over the socket is disabled"})
		return
	}
	var p VotePayload
	if err := json.Unmarshal(data, &p); err != nil || p.ShareableID == "" || p.OptionIndex == nil {
		c.sendEvent(EventVoteError, ErrorPayload{Message: "shareableId and optionIndex are required"})
		return
	}

	if _, err := c.hub.vote(ctx, p.ShareableID, *p.OptionIndex, c.voterID); err != nil {
		c.sendEvent(EventVoteError, ErrorPayload{Message: voteErrorMessage(err)})
		return
	}
	c.sendEvent(EventVoteSuccess, VoteSuccessPayload{Message: "Vote recorded", OptionIndex: *p.OptionIndex})
}

// voteErrorMessage maps pipeline sentinels to stable client-facing messages.
func voteErrorMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrPollNotFound):
		return "Poll not found"
	case errors.Is(err, services.ErrPollExpired),
		errors.Is(err, services.ErrPollInactive):
		return "Poll is no longer active."
	case errors.Is(err, services.ErrInvalidOption):
		return "Invalid option index."
	case errors.Is(err, services.ErrDuplicateVote):
		return "You have already voted."
	case errors.Is(err, services.ErrStoreUnavailable):
		return "Temporary store failure, please retry."
	default:
		return "Internal server error during vote."
	}
}

// sendEvent queues an event for this connection alone.
func (c *Client) sendEvent(event string, payload any) {
	c.sendRaw(marshalEvent(event, payload))
}

// sendRaw queues wire bytes, dropping the connection if its buffer is full so
// one slow reader cannot stall a broadcast. A message arriving after teardown
// is lost with the connection.
func (c *Client) sendRaw(msg []byte) {
	select {
	case <-c.done:
	case c.send <- msg:
	default:
		c.shutdown()
	}
}

// shutdown signals the write pump to stop and closes the underlying
// connection, exactly once. Safe to call from any goroutine.
func (c *Client) shutdown() {
	c.doneOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// close tears the connection down from the hub side (shutdown path). The read
// pump notices the closed connection and finishes the cleanup.
func (c *Client) close() {
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
		time.Now().Add(writeWait))
	c.shutdown()
}
