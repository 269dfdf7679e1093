package bracket

import (
	"time"

	"github.com/google/uuid"
)

// Placeholder marks a participant slot that is still waiting on an upstream result.
const Placeholder = "TBD"

type BracketType string

const (
	// In round robin tournaments winners is Group A and losers is Group B.
	WinnersBracket BracketType = "winners"
	LosersBracket  BracketType = "losers"
)

func (b BracketType) Valid() bool {
	return b == WinnersBracket || b == LosersBracket
}

type MatchState string

const (
	MatchPending   MatchState = "pending"
	MatchReady     MatchState = "ready"
	MatchCompleted MatchState = "completed"
)

type Score struct {
	Participant1Score  int  `json:"participant1Score"`
	Participant2Score  int  `json:"participant2Score"`
	Participant1Points *int `json:"participant1Points,omitempty"`
	Participant2Points *int `json:"participant2Points,omitempty"`
}

type Match struct {
	ID           uuid.UUID   `json:"id"`
	TournamentID uuid.UUID   `json:"tournamentId"`
	Round        int         `json:"round"`
	BracketType  BracketType `json:"bracketType"`

	Participant1 string  `json:"participant1"`
	Participant2 string  `json:"participant2"`
	Winner       *string `json:"winner,omitempty"`
	Loser        *string `json:"loser,omitempty"`

	// Nil until a result or a live score has been recorded.
	Score     *Score `json:"score,omitempty"`
	Completed bool   `json:"completed"`

	ScheduledDate *time.Time `json:"scheduledDate,omitempty"`
	ScheduledTime *string    `json:"scheduledTime,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func NewMatch(tournamentID uuid.UUID, round int, bracketType BracketType, p1, p2 string) Match {
	return Match{
		ID:           uuid.New(),
		TournamentID: tournamentID,
		Round:        round,
		BracketType:  bracketType,
		Participant1: p1,
		Participant2: p2,
	}
}

func IsPlaceholder(participant string) bool {
	return participant == "" || participant == Placeholder
}

func (m *Match) State() MatchState {
	switch {
	case m.Completed:
		return MatchCompleted
	case IsPlaceholder(m.Participant1) || IsPlaceholder(m.Participant2):
		return MatchPending
	default:
		return MatchReady
	}
}

func (m *Match) HasParticipant(id string) bool {
	if IsPlaceholder(id) {
		return false
	}
	return m.Participant1 == id || m.Participant2 == id
}

// FillSlot puts id into the first open slot, participant1 first.
// It reports false when both slots are already taken.
func (m *Match) FillSlot(id string) bool {
	if IsPlaceholder(m.Participant1) {
		m.Participant1 = id
		return true
	}
	if IsPlaceholder(m.Participant2) {
		m.Participant2 = id
		return true
	}
	return false
}

// ClearSlot returns the slot holding id to the placeholder.
func (m *Match) ClearSlot(id string) bool {
	switch {
	case IsPlaceholder(id):
		return false
	case m.Participant1 == id:
		m.Participant1 = Placeholder
		return true
	case m.Participant2 == id:
		m.Participant2 = Placeholder
		return true
	}
	return false
}

func (m *Match) IsWinner(participant string) bool {
	return m.Completed && m.Winner != nil && *m.Winner == participant
}

// Reset drops the recorded result, returning the match to pending or ready.
func (m *Match) Reset() {
	m.Completed = false
	m.Winner = nil
	m.Loser = nil
	m.Score = nil
	m.CompletedAt = nil
}
