// Package store is the persistence collaborator: session and role lookups for
// the handshake, and the effects mutating messages apply before broadcast.
package store

import (
	"context"
	"errors"

	"github.com/chesstour/live-backend/internal/conn"
	"github.com/chesstour/live-backend/internal/protocol"
)

var ErrEffectFailed = errors.New("store: effect failed")

// Store is everything the gateway needs from the relational layer. The
// schema behind it is not this package's concern beyond these calls.
type Store interface {
	conn.Directory

	// ApplyEffect persists the state change msg describes for tournamentID
	// and returns the message to broadcast, possibly enriched with persisted
	// state. Messages without a side effect pass through unchanged.
	ApplyEffect(ctx context.Context, tournamentID string, msg protocol.Message) (protocol.Message, error)
}
