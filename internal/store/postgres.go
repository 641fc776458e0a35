package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/chesstour/live-backend/internal/conn"
	"github.com/chesstour/live-backend/internal/protocol"
)

// Relational rows. Clubs own users, users play in tournaments, tournaments
// hold players and games.

type User struct {
	ID        string `gorm:"primaryKey"`
	Username  string `gorm:"uniqueIndex"`
	ClubID    string
	CreatedAt time.Time
}

type Session struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"index"`
	User      User
	ExpiresAt time.Time
	CreatedAt time.Time
}

type Club struct {
	ID   string `gorm:"primaryKey"`
	Name string
}

type Tournament struct {
	ID           string `gorm:"primaryKey"`
	ClubID       string `gorm:"index"`
	Name         string
	RoundsNumber int
	CurrentRound int
	IsGoing      bool
	StartedAt    *time.Time
	ClosedAt     *time.Time
	CreatedAt    time.Time
}

type TournamentMember struct {
	TournamentID string `gorm:"primaryKey"`
	UserID       string `gorm:"primaryKey"`
	Role         string
}

type Player struct {
	ID           string `gorm:"primaryKey"`
	TournamentID string `gorm:"index"`
	UserID       *string
	Name         string
	Rating       int
}

type Game struct {
	ID           string `gorm:"primaryKey"`
	TournamentID string `gorm:"index"`
	RoundNumber  int
	WhiteID      string
	BlackID      string
	Result       *string
}

// Postgres is the gorm-backed Store.
type Postgres struct {
	db *gorm.DB
}

func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	if err := db.AutoMigrate(&Club{}, &User{}, &Session{}, &Tournament{}, &TournamentMember{}, &Player{}, &Game{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) LookupSession(ctx context.Context, sessionID string) (conn.Session, error) {
	var row Session
	err := p.db.WithContext(ctx).Preload("User").First(&row, "id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return conn.Session{}, conn.ErrSessionNotFound
	}
	if err != nil {
		return conn.Session{}, fmt.Errorf("store: lookup session: %w", err)
	}
	if !row.ExpiresAt.IsZero() && row.ExpiresAt.Before(time.Now()) {
		return conn.Session{}, conn.ErrSessionNotFound
	}
	return conn.Session{UserID: row.UserID, Username: row.User.Username}, nil
}

func (p *Postgres) LookupRole(ctx context.Context, userID, tournamentID string) (conn.Role, error) {
	var row TournamentMember
	err := p.db.WithContext(ctx).
		First(&row, "tournament_id = ? AND user_id = ?", tournamentID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", conn.ErrNotAMember
	}
	if err != nil {
		return "", fmt.Errorf("store: lookup role: %w", err)
	}
	return conn.Role(row.Role), nil
}

func (p *Postgres) ApplyEffect(ctx context.Context, tournamentID string, msg protocol.Message) (protocol.Message, error) {
	db := p.db.WithContext(ctx)

	switch m := msg.(type) {
	case protocol.AddExistingPlayer:
		err := db.Create(&Player{
			ID:           m.Player.ID,
			TournamentID: tournamentID,
			UserID:       &m.Player.ID,
			Name:         m.Player.Name,
			Rating:       m.Player.Rating,
		}).Error
		return msg, effectErr(err)

	case protocol.AddNewPlayer:
		err := db.Create(&Player{
			ID:           m.Player.ID,
			TournamentID: tournamentID,
			Name:         m.Player.Name,
			Rating:       m.Player.Rating,
		}).Error
		return msg, effectErr(err)

	case protocol.RemovePlayer:
		err := db.Delete(&Player{}, "id = ? AND tournament_id = ?", m.PlayerID, tournamentID).Error
		return msg, effectErr(err)

	case protocol.SetGameResult:
		result := string(m.Result)
		res := db.Model(&Game{}).
			Where("id = ? AND tournament_id = ?", m.GameID, tournamentID).
			Update("result", &result)
		if res.Error != nil {
			return nil, effectErr(res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, fmt.Errorf("%w: game %s not found", ErrEffectFailed, m.GameID)
		}
		return msg, nil

	case protocol.StartTournament:
		err := db.Model(&Tournament{}).Where("id = ?", tournamentID).Updates(map[string]any{
			"started_at":    m.StartedAt,
			"rounds_number": m.RoundsNumber,
			"is_going":      true,
			"current_round": 0,
		}).Error
		return msg, effectErr(err)

	case protocol.ResetTournament:
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Delete(&Game{}, "tournament_id = ?", tournamentID).Error; err != nil {
				return err
			}
			return tx.Model(&Tournament{}).Where("id = ?", tournamentID).Updates(map[string]any{
				"started_at":    nil,
				"closed_at":     nil,
				"is_going":      false,
				"current_round": 0,
			}).Error
		})
		return msg, effectErr(err)

	case protocol.NewRound:
		err := db.Transaction(func(tx *gorm.DB) error {
			for _, g := range m.NewGames {
				row := Game{
					ID:           g.ID,
					TournamentID: tournamentID,
					RoundNumber:  m.RoundNumber,
					WhiteID:      g.WhiteID,
					BlackID:      g.BlackID,
				}
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
			}
			return tx.Model(&Tournament{}).Where("id = ?", tournamentID).Updates(map[string]any{
				"current_round": m.RoundNumber,
				"is_going":      m.IsTournamentGoing,
			}).Error
		})
		return msg, effectErr(err)

	case protocol.FinishTournament:
		err := db.Model(&Tournament{}).Where("id = ?", tournamentID).Updates(map[string]any{
			"closed_at": m.ClosedAt,
			"is_going":  false,
		}).Error
		return msg, effectErr(err)

	case protocol.DeleteTournament:
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Delete(&Game{}, "tournament_id = ?", tournamentID).Error; err != nil {
				return err
			}
			if err := tx.Delete(&Player{}, "tournament_id = ?", tournamentID).Error; err != nil {
				return err
			}
			if err := tx.Delete(&TournamentMember{}, "tournament_id = ?", tournamentID).Error; err != nil {
				return err
			}
			return tx.Delete(&Tournament{}, "id = ?", tournamentID).Error
		})
		return msg, effectErr(err)
	}

	// No persistence for this variant.
	return msg, nil
}

func effectErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrEffectFailed, err)
}
