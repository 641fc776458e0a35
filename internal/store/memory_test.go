package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chesstour/live-backend/internal/conn"
	"github.com/chesstour/live-backend/internal/protocol"
)

func TestMemoryLookups(t *testing.T) {
	m := NewMemory()
	m.PutSession("s1", conn.Session{UserID: "u1", Username: "anna"})
	m.PutRole("t1", "u1", conn.RoleOrganizer)

	sess, err := m.LookupSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, conn.Session{UserID: "u1", Username: "anna"}, sess)

	_, err = m.LookupSession(context.Background(), "nope")
	assert.ErrorIs(t, err, conn.ErrSessionNotFound)

	role, err := m.LookupRole(context.Background(), "u1", "t1")
	require.NoError(t, err)
	assert.Equal(t, conn.RoleOrganizer, role)

	_, err = m.LookupRole(context.Background(), "u1", "t2")
	assert.ErrorIs(t, err, conn.ErrNotAMember)
}

func TestMemoryApplyEffect(t *testing.T) {
	m := NewMemory()

	// A result for an unknown game fails; nothing is recorded.
	_, err := m.ApplyEffect(context.Background(), "t1",
		protocol.SetGameResult{GameID: "g1", Result: protocol.ResultDraw, RoundNumber: 1})
	assert.ErrorIs(t, err, ErrEffectFailed)
	assert.Empty(t, m.Effects())

	// new-round registers its games, which then accept results.
	round := protocol.NewRound{
		RoundNumber:       1,
		NewGames:          []protocol.GameModel{{ID: "g1", WhiteID: "p1", BlackID: "p2", RoundNumber: 1}},
		IsTournamentGoing: true,
	}
	got, err := m.ApplyEffect(context.Background(), "t1", round)
	require.NoError(t, err)
	assert.Equal(t, round, got)

	result := protocol.SetGameResult{GameID: "g1", Result: protocol.ResultDraw, RoundNumber: 1}
	got, err = m.ApplyEffect(context.Background(), "t1", result)
	require.NoError(t, err)
	assert.Equal(t, result, got)

	assert.Equal(t, []protocol.Message{round, result}, m.Effects())
}
