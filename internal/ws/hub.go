// Package ws – subscription hub.
//
// The Hub is the owned registry of poll-topic subscriptions. It is created on
// server start, passed by reference to whatever accepts connections, and
// drained on shutdown; there is no package-level state. The registry is
// process-local and rebuilt from scratch on restart: reconnecting clients
// rejoin their topic and immediately receive a fresh snapshot, because the
// real state lives in the poll store.
package ws

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-poll-backend/internal/domain"
)

var (
	// wsSubscribers gauges live subscriptions per poll topic.
	wsSubscribers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "poll_ws_subscribers",
			Help: "Current number of WebSocket subscribers, by poll topic.",
		},
		[]string{"shareable_id"},
	)

	// wsConnections gauges open WebSocket connections.
	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "poll_ws_connections",
			Help: "Current number of open WebSocket connections.",
		},
	)
)

func init() {
	prometheus.MustRegister(wsSubscribers, wsConnections)
}

// SnapshotFunc recomputes the current snapshot of a poll. The hub calls it on
// join and on every broadcast so subscribers always see store truth, never
// cached state.
type SnapshotFunc func(ctx context.Context, shareableID string) (*domain.Snapshot, error)

// VoteFunc runs the vote pipeline for a socket-originated vote. Same
// semantics and duplicate guard as the REST endpoint.
type VoteFunc func(ctx context.Context, shareableID string, optionIndex int, voterID string) (*domain.Snapshot, error)

// Hub maintains topic-per-poll subscriber groups and pushes recomputed
// snapshots to them. All methods are safe for concurrent use.
//
// Invariant: a connection holds at most one poll subscription at a time;
// joining a new topic leaves the previous one first.
type Hub struct {
	snapshots SnapshotFunc
	vote      VoteFunc

	mu      sync.RWMutex
	clients map[*Client]struct{}
	topics  map[string]map[*Client]struct{}
	topicOf map[*Client]string
	closed  bool
}

// NewHub constructs a Hub wired to the given snapshot and vote functions.
// vote may be nil to disable socket-originated voting.
func NewHub(snapshots SnapshotFunc, vote VoteFunc) *Hub {
	return &Hub{
		snapshots: snapshots,
		vote:      vote,
		clients:   make(map[*Client]struct{}),
		topics:    make(map[string]map[*Client]struct{}),
		topicOf:   make(map[*Client]string),
	}
}

// register tracks a freshly upgraded connection, joined to no topic yet.
func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// unregister removes c from its topic (at most one, by invariant) and from
// the connection registry. Called by the client's read pump on teardown.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if topic, ok := h.topicOf[c]; ok {
		h.removeLocked(c, topic)
	}
	delete(h.clients, c)
	h.mu.Unlock()
}

// Join subscribes c to the poll's topic, leaving any previously joined topic
// first, and sends a fresh snapshot to c alone. Unknown polls are reported to
// c as an error event.
func (h *Hub) Join(ctx context.Context, c *Client, shareableID string) {
	snap, err := h.snapshots(ctx, shareableID)
	if err != nil {
		c.sendEvent(EventError, ErrorPayload{Message: "Poll not found"})
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	if prev, ok := h.topicOf[c]; ok && prev != shareableID {
		h.removeLocked(c, prev)
	}
	set, ok := h.topics[shareableID]
	if !ok {
		set = make(map[*Client]struct{})
		h.topics[shareableID] = set
	}
	if _, already := set[c]; !already {
		set[c] = struct{}{}
		h.topicOf[c] = shareableID
		wsSubscribers.WithLabelValues(shareableID).Inc()
	}
	h.mu.Unlock()

	c.sendEvent(EventPollUpdate, snap)
	log.Debug().Str("connection_id", c.ID).Str("shareable_id", shareableID).Msg("ws join")
}

// Leave unsubscribes c from the poll's topic. Empty topics are discarded.
func (h *Hub) Leave(c *Client, shareableID string) {
	h.mu.Lock()
	h.removeLocked(c, shareableID)
	h.mu.Unlock()
	log.Debug().Str("connection_id", c.ID).Str("shareable_id", shareableID).Msg("ws leave")
}

// removeLocked drops c from topic and cleans up empty bookkeeping entries.
// Caller holds h.mu.
func (h *Hub) removeLocked(c *Client, topic string) {
	set, ok := h.topics[topic]
	if !ok {
		return
	}
	if _, in := set[c]; !in {
		return
	}
	delete(set, c)
	if h.topicOf[c] == topic {
		delete(h.topicOf, c)
	}
	wsSubscribers.WithLabelValues(topic).Dec()
	if len(set) == 0 {
		delete(h.topics, topic)
	}
}

// BroadcastSnapshot recomputes the poll's snapshot and pushes it to every
// subscriber of the topic. Implements services.Broadcaster.
func (h *Hub) BroadcastSnapshot(ctx context.Context, shareableID string) {
	snap, err := h.snapshots(ctx, shareableID)
	if err != nil {
		log.Error().Err(err).Str("shareable_id", shareableID).Msg("ws snapshot broadcast failed")
		return
	}
	h.broadcast(shareableID, marshalEvent(EventPollUpdate, snap))
}

// BroadcastExpired pushes the terminal-state event to every subscriber of the
// topic. Implements services.Broadcaster.
func (h *Hub) BroadcastExpired(ctx context.Context, shareableID string) {
	h.broadcast(shareableID, marshalEvent(EventPollExpired, ExpiredPayload{
		ShareableID: shareableID,
		Message:     "Poll has expired and is now closed",
	}))
}

// broadcast fans raw bytes out to the topic's subscribers. Clients whose send
// buffers are full are dropped rather than allowed to stall the fan-out.
func (h *Hub) broadcast(shareableID string, msg []byte) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.topics[shareableID]))
	for c := range h.topics[shareableID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.sendRaw(msg)
	}
}

// Subscribers returns the current subscriber count of a topic.
func (h *Hub) Subscribers(shareableID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[shareableID])
}

// Shutdown drains the registry: every connection is closed and no further
// joins are accepted. Live subscriptions are intentionally lost; clients
// resubscribe on reconnect.
func (h *Hub) Shutdown(ctx context.Context) {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.topics = make(map[string]map[*Client]struct{})
	h.topicOf = make(map[*Client]string)
	h.mu.Unlock()
	wsSubscribers.Reset()

	for _, c := range clients {
		c.close()
	}
	log.Info().Int("connections", len(clients)).Msg("ws hub drained")
}
