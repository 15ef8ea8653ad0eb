package router

import "encoding/json"

// ClientMessage is the inbound wire envelope.
type ClientMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Inbound event names.
const (
	EventStatusSet         = "status:set"
	EventStatusAutoAway    = "status:auto-away"
	EventStatusBack        = "status:back"
	EventJoinConversation  = "join:conversation"
	EventLeaveConversation = "leave:conversation"
	EventJoinTournament    = "join:tournament"
	EventLeaveTournament   = "leave:tournament"
	EventTypingStart       = "typing:start"
	EventTypingStop        = "typing:stop"
)
