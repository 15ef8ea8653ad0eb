package relay

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"
)

// Bridge subscribes to NATS relay subjects so REST handlers running in
// other processes can push events into this instance's rooms without
// linking the core. Subjects follow
//
//	realtime.<user|conversation|tournament>.<id>.<event...>
//
// where dots in the event name are restored from the remaining tokens.
// The message body is the raw JSON payload. Presence truth stays
// in-memory; the bridge only carries inbound relay traffic.
type Bridge struct {
	nc     *nats.Conn
	relay  Relay
	sub    *nats.Subscription
	logger *slog.Logger
}

const subjectPrefix = "realtime."

func NewBridge(logger *slog.Logger, url string, relay Relay) (*Bridge, error) {
	nc, err := nats.Connect(url,
		nats.Name("realtime-relay-bridge"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	b := &Bridge{
		nc:     nc,
		relay:  relay,
		logger: logger.With(slog.String("component", "relay_bridge")),
	}
	sub, err := nc.Subscribe(subjectPrefix+">", b.handle)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe to relay subjects: %w", err)
	}
	b.sub = sub
	b.logger.Info("Relay bridge subscribed", slog.String("url", url))
	return b, nil
}

func (b *Bridge) handle(msg *nats.Msg) {
	tokens := strings.SplitN(strings.TrimPrefix(msg.Subject, subjectPrefix), ".", 3)
	if len(tokens) < 3 {
		b.logger.Warn("Relay subject too short", slog.String("subject", msg.Subject))
		return
	}
	kind, id, event := tokens[0], tokens[1], tokens[2]

	switch kind {
	case "user":
		b.relay.EmitToUser(id, event, msg.Data)
	case "conversation":
		b.relay.EmitToConversation(id, event, msg.Data)
	case "tournament":
		b.relay.EmitToTournament(id, event, msg.Data)
	default:
		b.logger.Warn("Relay subject with unknown target kind",
			slog.String("subject", msg.Subject),
			slog.String("kind", kind),
		)
	}
}

func (b *Bridge) Close() {
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
	}
	b.nc.Close()
	b.logger.Info("Relay bridge closed")
}
