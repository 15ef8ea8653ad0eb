package relay

import (
	"encoding/json"
	"sync/atomic"
)

// Provider hands out the current Relay. It starts as a no-op and is
// swapped to the live implementation once the realtime server is wired,
// so code constructed before that point still holds a working handle.
type Provider struct {
	current atomic.Value // Relay
}

func NewProvider() *Provider {
	p := &Provider{}
	p.current.Store(Relay(Noop{}))
	return p
}

func (p *Provider) Get() Relay {
	return p.current.Load().(Relay)
}

func (p *Provider) SetLive(r Relay) {
	p.current.Store(r)
}

// Provider itself satisfies Relay, delegating to whatever is installed,
// so handlers can hold it directly without re-fetching.
var _ Relay = (*Provider)(nil)

func (p *Provider) EmitToUser(userID, event string, payload json.RawMessage) {
	p.Get().EmitToUser(userID, event, payload)
}

func (p *Provider) EmitToConversation(conversationID, event string, payload json.RawMessage) {
	p.Get().EmitToConversation(conversationID, event, payload)
}

func (p *Provider) EmitToTournament(tournamentID, event string, payload json.RawMessage) {
	p.Get().EmitToTournament(tournamentID, event, payload)
}
