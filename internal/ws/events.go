// Package ws implements the real-time channel: a WebSocket hub with one
// topic per poll, per-connection event dispatch, and best-effort snapshot
// broadcasts.
//
// This file defines the wire protocol. Every frame in both directions is an
// Envelope: {"event": "...", "data": {...}}. Rejected actions come back as
// named error events rather than silent drops, so clients can fall back to
// polling for updates.
package ws

import "encoding/json"

// Client→server events.
const (
	// EventJoinPoll subscribes the connection to a poll topic, leaving any
	// previously joined topic first.
	EventJoinPoll = "join_poll"
	// EventLeavePoll unsubscribes the connection from a poll topic.
	EventLeavePoll = "leave_poll"
	// EventVote casts a vote over the socket. Same pipeline and duplicate
	// guard as the REST vote endpoint.
	EventVote = "vote"
)

// Server→client events, scoped to a poll topic.
const (
	// EventPollUpdate carries a fresh snapshot after a tally change.
	EventPollUpdate = "poll_update"
	// EventPollExpired signals terminal state: voting has ended.
	EventPollExpired = "poll_expired"
	// EventVoteSuccess acknowledges this connection's own vote.
	EventVoteSuccess = "vote_success"
	// EventVoteError reports a rejected vote to this connection.
	EventVoteError = "vote_error"
	// EventError reports any other rejected action to this connection.
	EventError = "error"
)

// Envelope frames every message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinPayload is the data of join_poll and leave_poll.
type JoinPayload struct {
	ShareableID string `json:"shareableId"`
}

// VotePayload is the data of a vote event.
type VotePayload struct {
	ShareableID string `json:"shareableId"`
	OptionIndex *int   `json:"optionIndex"`
}

// ErrorPayload is the data of error and vote_error events.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ExpiredPayload is the data of a poll_expired event.
type ExpiredPayload struct {
	ShareableID string `json:"shareableId"`
	Message     string `json:"message"`
}

// VoteSuccessPayload is the data of a vote_success event.
type VoteSuccessPayload struct {
	Message     string `json:"message"`
	OptionIndex int    `json:"optionIndex"`
}

// marshalEvent builds the wire bytes for an event with a JSON-marshalable
// payload. Marshaling our own payload types cannot fail in practice; errors
// degrade to an empty data field.
func marshalEvent(event string, payload any) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		data = nil
	}
	out, _ := json.Marshal(Envelope{Event: event, Data: data})
	return out
}
