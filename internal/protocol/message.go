// Package protocol defines the discriminated wire schema for dashboard and
// global messages and its strict JSON codec.
package protocol

import "time"

// Message is the sealed union of every wire message. The marker method keeps
// the set closed so a new variant forces the codec and the authorization gate
// to handle it.
type Message interface{ isMessage() }

// Type tags, exactly as they appear on the wire.
const (
	TypeAddExistingPlayer = "add-existing-player"
	TypeAddNewPlayer      = "add-new-player"
	TypeRemovePlayer      = "remove-player"
	TypeSetGameResult     = "set-game-result"
	TypeStartTournament   = "start-tournament"
	TypeResetTournament   = "reset-tournament"
	TypeNewRound          = "new-round"
	TypeFinishTournament  = "finish-tournament"
	TypeDeleteTournament  = "delete-tournament"
	TypeError             = "error"
	TypeUserNotification  = "user_notification"
	TypeRemovedFromClub   = "removed_from_club"
)

// Result of a finished game.
type Result string

const (
	ResultWhiteWins Result = "1-0"
	ResultBlackWins Result = "0-1"
	ResultDraw      Result = "1/2-1/2"
)

func validResult(r Result) bool {
	switch r {
	case ResultWhiteWins, ResultBlackWins, ResultDraw:
		return true
	}
	return false
}

type PlayerModel struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Rating int    `json:"rating,omitempty"`
	ClubID string `json:"clubId,omitempty"`
}

// GameModel is one pairing inside a new-round message.
type GameModel struct {
	ID          string `json:"id"`
	WhiteID     string `json:"whiteId"`
	BlackID     string `json:"blackId"`
	RoundNumber int    `json:"roundNumber"`
}

// Dashboard messages, scoped to a tournament topic.

type AddExistingPlayer struct {
	Player PlayerModel `json:"player"`
}

type AddNewPlayer struct {
	Player PlayerModel `json:"player"`
}

type RemovePlayer struct {
	PlayerID string `json:"playerId"`
}

type SetGameResult struct {
	GameID      string `json:"gameId"`
	Result      Result `json:"result"`
	RoundNumber int    `json:"roundNumber"`
}

type StartTournament struct {
	StartedAt    time.Time `json:"started_at"`
	RoundsNumber int       `json:"rounds_number"`
}

type ResetTournament struct{}

type NewRound struct {
	RoundNumber       int         `json:"roundNumber"`
	NewGames          []GameModel `json:"newGames"`
	IsTournamentGoing bool        `json:"isTournamentGoing"`
}

type FinishTournament struct {
	ClosedAt time.Time `json:"closed_at"`
}

type DeleteTournament struct{}

// Error is sent to exactly one client, never broadcast. RecipientID is set
// only on the global topic form.
type Error struct {
	RecipientID string `json:"recipientId,omitempty"`
	Message     string `json:"message"`
}

// Global messages, scoped to a user topic.

type UserNotification struct {
	RecipientID string `json:"recipientId"`
}

type RemovedFromClub struct {
	ClubID      string `json:"clubId"`
	RecipientID string `json:"recipientId"`
}

func (AddExistingPlayer) isMessage() {}
func (AddNewPlayer) isMessage()      {}
func (RemovePlayer) isMessage()      {}
func (SetGameResult) isMessage()     {}
func (StartTournament) isMessage()   {}
func (ResetTournament) isMessage()   {}
func (NewRound) isMessage()          {}
func (FinishTournament) isMessage()  {}
func (DeleteTournament) isMessage()  {}
func (Error) isMessage()             {}
func (UserNotification) isMessage()  {}
func (RemovedFromClub) isMessage()   {}

// TypeOf returns the wire tag for m.
func TypeOf(m Message) string {
	switch m.(type) {
	case AddExistingPlayer:
		return TypeAddExistingPlayer
	case AddNewPlayer:
		return TypeAddNewPlayer
	case RemovePlayer:
		return TypeRemovePlayer
	case SetGameResult:
		return TypeSetGameResult
	case StartTournament:
		return TypeStartTournament
	case ResetTournament:
		return TypeResetTournament
	case NewRound:
		return TypeNewRound
	case FinishTournament:
		return TypeFinishTournament
	case DeleteTournament:
		return TypeDeleteTournament
	case Error:
		return TypeError
	case UserNotification:
		return TypeUserNotification
	case RemovedFromClub:
		return TypeRemovedFromClub
	}
	return ""
}
