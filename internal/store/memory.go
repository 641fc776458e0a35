package store

import (
	"context"
	"sync"

	"github.com/chesstour/live-backend/internal/conn"
	"github.com/chesstour/live-backend/internal/protocol"
)

// Memory is a map-backed Store for tests and secretless local runs. It keeps
// just enough state to honor the interface; it is not a real schema.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]conn.Session         // session id -> identity
	roles    map[string]map[string]conn.Role // tournament id -> user id -> role
	games    map[string]map[string]bool      // tournament id -> game id
	effects  []protocol.Message              // applied effects, in order
}

func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]conn.Session),
		roles:    make(map[string]map[string]conn.Role),
		games:    make(map[string]map[string]bool),
	}
}

// PutSession registers a live session.
func (m *Memory) PutSession(sessionID string, s conn.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = s
}

// PutRole registers a tournament membership.
func (m *Memory) PutRole(tournamentID, userID string, role conn.Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.roles[tournamentID] == nil {
		m.roles[tournamentID] = make(map[string]conn.Role)
	}
	m.roles[tournamentID][userID] = role
}

// PutGame registers a game so set-game-result effects can land.
func (m *Memory) PutGame(tournamentID, gameID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.games[tournamentID] == nil {
		m.games[tournamentID] = make(map[string]bool)
	}
	m.games[tournamentID][gameID] = true
}

func (m *Memory) LookupSession(_ context.Context, sessionID string) (conn.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return conn.Session{}, conn.ErrSessionNotFound
	}
	return s, nil
}

func (m *Memory) LookupRole(_ context.Context, userID, tournamentID string) (conn.Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	role, ok := m.roles[tournamentID][userID]
	if !ok {
		return "", conn.ErrNotAMember
	}
	return role, nil
}

func (m *Memory) ApplyEffect(_ context.Context, tournamentID string, msg protocol.Message) (protocol.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := msg.(protocol.SetGameResult); ok && !m.games[tournamentID][g.GameID] {
		return nil, ErrEffectFailed
	}
	if r, ok := msg.(protocol.NewRound); ok {
		for _, g := range r.NewGames {
			if m.games[tournamentID] == nil {
				m.games[tournamentID] = make(map[string]bool)
			}
			m.games[tournamentID][g.ID] = true
		}
	}
	m.effects = append(m.effects, msg)
	return msg, nil
}

// Effects returns the applied effects in application order. Test-only.
func (m *Memory) Effects() []protocol.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]protocol.Message, len(m.effects))
	copy(out, m.effects)
	return out
}
