package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownType = errors.New("protocol: unknown message type")
var ErrMalformed = errors.New("protocol: malformed message")

// Encode marshals m with the type tag as the first field. It is total for any
// well-formed Message value.
func Encode(m Message) ([]byte, error) {
	tag := TypeOf(m)
	if tag == "" {
		return nil, fmt.Errorf("%w: unregistered variant %T", ErrMalformed, m)
	}
	// Embedding puts the tag first and flattens the variant's own fields.
	switch v := m.(type) {
	case AddExistingPlayer:
		return json.Marshal(struct {
			Type string `json:"type"`
			AddExistingPlayer
		}{tag, v})
	case AddNewPlayer:
		return json.Marshal(struct {
			Type string `json:"type"`
			AddNewPlayer
		}{tag, v})
	case RemovePlayer:
		return json.Marshal(struct {
			Type string `json:"type"`
			RemovePlayer
		}{tag, v})
	case SetGameResult:
		return json.Marshal(struct {
			Type string `json:"type"`
			SetGameResult
		}{tag, v})
	case StartTournament:
		return json.Marshal(struct {
			Type string `json:"type"`
			StartTournament
		}{tag, v})
	case ResetTournament:
		return json.Marshal(struct {
			Type string `json:"type"`
		}{tag})
	case NewRound:
		return json.Marshal(struct {
			Type string `json:"type"`
			NewRound
		}{tag, v})
	case FinishTournament:
		return json.Marshal(struct {
			Type string `json:"type"`
			FinishTournament
		}{tag, v})
	case DeleteTournament:
		return json.Marshal(struct {
			Type string `json:"type"`
		}{tag})
	case Error:
		return json.Marshal(struct {
			Type string `json:"type"`
			Error
		}{tag, v})
	case UserNotification:
		return json.Marshal(struct {
			Type string `json:"type"`
			UserNotification
		}{tag, v})
	case RemovedFromClub:
		return json.Marshal(struct {
			Type string `json:"type"`
			RemovedFromClub
		}{tag, v})
	}
	return nil, fmt.Errorf("%w: unregistered variant %T", ErrMalformed, m)
}

// Decode parses the tag first, then the variant's fields. Bad syntax, a
// missing tag, or missing/mistyped required fields all fail; a value is never
// returned half-populated.
func Decode(raw []byte) (Message, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type tag", ErrMalformed)
	}

	switch env.Type {
	case TypeAddExistingPlayer:
		var m AddExistingPlayer
		if err := unmarshalVariant(raw, &m); err != nil {
			return nil, err
		}
		if m.Player.ID == "" || m.Player.Name == "" {
			return nil, fmt.Errorf("%w: %s requires player id and name", ErrMalformed, env.Type)
		}
		return m, nil

	case TypeAddNewPlayer:
		var m AddNewPlayer
		if err := unmarshalVariant(raw, &m); err != nil {
			return nil, err
		}
		if m.Player.ID == "" || m.Player.Name == "" {
			return nil, fmt.Errorf("%w: %s requires player id and name", ErrMalformed, env.Type)
		}
		return m, nil

	case TypeRemovePlayer:
		var m RemovePlayer
		if err := unmarshalVariant(raw, &m); err != nil {
			return nil, err
		}
		if m.PlayerID == "" {
			return nil, fmt.Errorf("%w: %s requires playerId", ErrMalformed, env.Type)
		}
		return m, nil

	case TypeSetGameResult:
		var m SetGameResult
		if err := unmarshalVariant(raw, &m); err != nil {
			return nil, err
		}
		if m.GameID == "" || m.RoundNumber < 1 || !validResult(m.Result) {
			return nil, fmt.Errorf("%w: %s requires gameId, a valid result and roundNumber", ErrMalformed, env.Type)
		}
		return m, nil

	case TypeStartTournament:
		var m StartTournament
		if err := unmarshalVariant(raw, &m); err != nil {
			return nil, err
		}
		if m.StartedAt.IsZero() || m.RoundsNumber < 1 {
			return nil, fmt.Errorf("%w: %s requires started_at and rounds_number", ErrMalformed, env.Type)
		}
		return m, nil

	case TypeResetTournament:
		return ResetTournament{}, nil

	case TypeNewRound:
		var m NewRound
		if err := unmarshalVariant(raw, &m); err != nil {
			return nil, err
		}
		if m.RoundNumber < 1 {
			return nil, fmt.Errorf("%w: %s requires roundNumber", ErrMalformed, env.Type)
		}
		if m.NewGames == nil {
			m.NewGames = []GameModel{}
		}
		return m, nil

	case TypeFinishTournament:
		var m FinishTournament
		if err := unmarshalVariant(raw, &m); err != nil {
			return nil, err
		}
		if m.ClosedAt.IsZero() {
			return nil, fmt.Errorf("%w: %s requires closed_at", ErrMalformed, env.Type)
		}
		return m, nil

	case TypeDeleteTournament:
		return DeleteTournament{}, nil

	case TypeError:
		var m Error
		if err := unmarshalVariant(raw, &m); err != nil {
			return nil, err
		}
		if m.Message == "" {
			return nil, fmt.Errorf("%w: %s requires message", ErrMalformed, env.Type)
		}
		return m, nil

	case TypeUserNotification:
		var m UserNotification
		if err := unmarshalVariant(raw, &m); err != nil {
			return nil, err
		}
		if m.RecipientID == "" {
			return nil, fmt.Errorf("%w: %s requires recipientId", ErrMalformed, env.Type)
		}
		return m, nil

	case TypeRemovedFromClub:
		var m RemovedFromClub
		if err := unmarshalVariant(raw, &m); err != nil {
			return nil, err
		}
		if m.ClubID == "" || m.RecipientID == "" {
			return nil, fmt.Errorf("%w: %s requires clubId and recipientId", ErrMalformed, env.Type)
		}
		return m, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
}

func unmarshalVariant(raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
