package presence

import (
	"log/slog"

	"github.com/samber/lo"

	"chatrelay/pkg/interfaces"
	"chatrelay/pkg/types"
)

// Broadcaster publishes the full roster to every registered connection after
// each registry mutation. The roster is recomputed from scratch on every
// publish; there is no diffing and no memory of previous publishes.
type Broadcaster struct {
	registry interfaces.Registry
	log      *slog.Logger
}

func NewBroadcaster(registry interfaces.Registry, log *slog.Logger) *Broadcaster {
	return &Broadcaster{registry: registry, log: log}
}

// Publish computes the roster and sends it to every connection in the same
// snapshot, including the one whose mutation triggered the publish. The
// snapshot is taken once, so a disconnect during the fan-out cannot mutate
// the traversal; unreachable targets are skipped without retry.
func (b *Broadcaster) Publish() {
	conns := b.registry.Snapshot()

	event := types.PresenceEvent{
		Online: lo.Map(conns, func(c interfaces.Conn, _ int) types.RosterEntry {
			return types.RosterEntry{UserID: c.UserID(), Username: c.Username()}
		}),
	}

	for _, conn := range conns {
		if err := conn.WriteJSON(event); err != nil {
			b.log.Debug("skipping unreachable connection in presence publish",
				"connection", conn.ID(), "err", err)
		}
	}
}
