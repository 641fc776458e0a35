// Package auth decides whether a classified connection may publish a given
// message before anything is broadcast.
package auth

import (
	"github.com/chesstour/live-backend/internal/conn"
	"github.com/chesstour/live-backend/internal/protocol"
)

// Reason a send was denied.
type Reason string

const (
	ReasonInsufficientRole Reason = "insufficient role"
	ReasonWrongScope       Reason = "message not valid on this topic"
	ReasonReceiveOnly      Reason = "global connections are receive-only"
)

// Decision is the gate's verdict. The zero value is a deny.
type Decision struct {
	Allowed bool
	Reason  Reason
}

func allow() Decision        { return Decision{Allowed: true} }
func deny(r Reason) Decision { return Decision{Reason: r} }

// Authorize gates one inbound message from one connection. Denials never
// close the socket; the router answers them with a scoped error reply.
func Authorize(c conn.Context, msg protocol.Message) Decision {
	switch c.(type) {
	case conn.Global:
		// System-originated pushes enter through the broadcast API, not the
		// socket, so nothing a global client sends is publishable.
		return deny(ReasonReceiveOnly)
	case conn.Tournament:
		return authorizeDashboard(c.Role(), msg)
	}
	return deny(ReasonWrongScope)
}

func authorizeDashboard(role conn.Role, msg protocol.Message) Decision {
	min, ok := minDashboardRole(msg)
	if !ok {
		return deny(ReasonWrongScope)
	}
	if !role.AtLeast(min) {
		return deny(ReasonInsufficientRole)
	}
	return allow()
}

// minDashboardRole returns the minimum role allowed to publish msg on a
// tournament topic, or ok=false when the variant is not client-publishable
// there at all. Every state mutation, including set-game-result, is organizer
// territory; players cannot self-report results.
func minDashboardRole(msg protocol.Message) (conn.Role, bool) {
	switch msg.(type) {
	case protocol.AddExistingPlayer,
		protocol.AddNewPlayer,
		protocol.RemovePlayer,
		protocol.SetGameResult,
		protocol.StartTournament,
		protocol.ResetTournament,
		protocol.NewRound,
		protocol.FinishTournament,
		protocol.DeleteTournament:
		return conn.RoleOrganizer, true
	}
	// error, user_notification, removed_from_club are server-originated.
	return "", false
}
