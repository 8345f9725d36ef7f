// Package store keeps finished game transcripts in postgres.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/improv-battle/internal/game"
)

var ErrNoDSN = errors.New("database url is empty")

type Transcript struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	PlayerName   string    `gorm:"index;not null"`
	Phase        string    `gorm:"not null"`
	CurrentRound int
	MaxRounds    int
	Rounds       []TranscriptRound `gorm:"foreignKey:TranscriptID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time
}

type TranscriptRound struct {
	ID           uint      `gorm:"primaryKey"`
	TranscriptID uuid.UUID `gorm:"type:uuid;index;not null"`
	Position     int       `gorm:"not null"`
	Scenario     string
	HostReaction string
}

// FromState converts a final game state into a transcript with a fresh id.
func FromState(s game.State) Transcript {
	t := Transcript{
		ID:           uuid.New(),
		PlayerName:   s.PlayerName,
		Phase:        string(s.Phase),
		CurrentRound: s.CurrentRound,
		MaxRounds:    s.MaxRounds,
		Rounds:       make([]TranscriptRound, 0, len(s.Rounds)),
	}
	for i, r := range s.Rounds {
		t.Rounds = append(t.Rounds, TranscriptRound{
			TranscriptID: t.ID,
			Position:     i,
			Scenario:     r.Scenario,
			HostReaction: r.HostReaction,
		})
	}
	return t
}

// ToState rebuilds the game state a transcript was taken from. Rounds must
// be ordered by Position.
func (t Transcript) ToState() game.State {
	s := game.State{
		PlayerName:   t.PlayerName,
		CurrentRound: t.CurrentRound,
		MaxRounds:    t.MaxRounds,
		Phase:        game.Phase(t.Phase),
		Rounds:       make([]game.Round, 0, len(t.Rounds)),
	}
	for _, r := range t.Rounds {
		s.Rounds = append(s.Rounds, game.Round{Scenario: r.Scenario, HostReaction: r.HostReaction})
	}
	return s
}

type Store struct {
	db *gorm.DB
}

func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, ErrNoDSN
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open transcript store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&Transcript{}, &TranscriptRound{})
}

// SaveTranscript stores the final state and returns the transcript id.
func (s *Store) SaveTranscript(ctx context.Context, st game.State) (uuid.UUID, error) {
	t := FromState(st)
	if err := s.db.WithContext(ctx).Create(&t).Error; err != nil {
		return uuid.Nil, fmt.Errorf("save transcript: %w", err)
	}
	return t.ID, nil
}

// Transcripts returns every transcript for playerName, newest first.
func (s *Store) Transcripts(ctx context.Context, playerName string) ([]Transcript, error) {
	var out []Transcript
	err := s.db.WithContext(ctx).
		Preload("Rounds", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("player_name = ?", playerName).
		Order("created_at desc").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	return out, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
