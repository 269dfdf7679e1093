package service

import (
	"context"
	"fmt"
	"time"

	"github.com/AdamBeresnev/club-brackets/internal/bracket"
	"github.com/AdamBeresnev/club-brackets/internal/metrics"
	"github.com/AdamBeresnev/club-brackets/internal/store"
	"github.com/AdamBeresnev/club-brackets/internal/utils"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
)

type MatchService struct {
	db           *sqlx.DB
	store        *store.TournamentStore
	advancer     *Advancer
	locks        *TournamentLocks
	metrics      metrics.Metrics
	clock        clockwork.Clock
	resetCascade bool
}

func NewMatchService(db *sqlx.DB, store *store.TournamentStore, locks *TournamentLocks, opts ...Option) *MatchService {
	o := newOptions(opts)
	return &MatchService{
		db:           db,
		store:        store,
		advancer:     NewAdvancer(store, o.metrics, o.clock),
		locks:        locks,
		metrics:      o.metrics,
		clock:        o.clock,
		resetCascade: o.resetCascade,
	}
}

type ResultInput struct {
	MatchID  uuid.UUID      `json:"matchId"`
	WinnerID string         `json:"winnerId"`
	LoserID  string         `json:"loserId"`
	Score    *bracket.Score `json:"score,omitempty"`
}

type LiveScoreInput struct {
	MatchID uuid.UUID `json:"matchId"`
	ScoreA  int       `json:"scoreA"`
	ScoreB  int       `json:"scoreB"`
	PointsA *int      `json:"pointsA,omitempty"`
	PointsB *int      `json:"pointsB,omitempty"`
}

type ScheduleInput struct {
	MatchID       uuid.UUID  `json:"matchId"`
	ScheduledDate *time.Time `json:"scheduledDate,omitempty"`
	ScheduledTime *string    `json:"scheduledTime,omitempty"`
}

type MatchData struct {
	Match            *bracket.Match `json:"match"`
	Participant1Name string         `json:"participant1Name"`
	Participant2Name string         `json:"participant2Name"`
	NextMatchID      *uuid.UUID     `json:"nextMatchId,omitempty"`
}

// lockTournamentOf takes the tournament lock of the given match.
func (s *MatchService) lockTournamentOf(ctx context.Context, matchID uuid.UUID) (func(), error) {
	match, err := s.store.GetMatch(ctx, s.db, matchID)
	if err != nil {
		return nil, notFound(err, "match")
	}
	return s.locks.Lock(match.TournamentID), nil
}

func (s *MatchService) GetMatchData(ctx context.Context, matchID uuid.UUID) (*MatchData, error) {
	match, err := s.store.GetMatch(ctx, s.db, matchID)
	if err != nil {
		return nil, notFound(err, "match")
	}

	participants, err := s.store.GetParticipants(ctx, s.db, match.TournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	names := participantNames(participants)

	matches, err := s.store.GetMatches(ctx, s.db, match.TournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get matches: %w", err)
	}

	return &MatchData{
		Match:            match,
		Participant1Name: names.of(match.Participant1),
		Participant2Name: names.of(match.Participant2),
		NextMatchID:      nextReadyMatch(matches),
	}, nil
}

// SubmitResult completes a match and runs the advancement pass in the same transaction.
func (s *MatchService) SubmitResult(ctx context.Context, input ResultInput) (*bracket.Match, error) {
	start := s.clock.Now()

	unlock, err := s.lockTournamentOf(ctx, input.MatchID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	match, err := s.store.GetMatch(ctx, tx, input.MatchID)
	if err != nil {
		return nil, notFound(err, "match")
	}

	if match.Completed {
		return nil, validationf("match is already completed")
	}
	if match.State() == bracket.MatchPending {
		return nil, validationf("match participants are not decided yet")
	}
	if input.WinnerID == input.LoserID {
		return nil, validationf("winner and loser must be different participants")
	}
	if !match.HasParticipant(input.WinnerID) || !match.HasParticipant(input.LoserID) {
		return nil, validationf("winner and loser must be the participants of this match")
	}
	if input.Score != nil {
		if err := validateScore(input.Score.Participant1Score, input.Score.Participant2Score); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now().UTC()
	match.Winner = utils.Ptr(input.WinnerID)
	match.Loser = utils.Ptr(input.LoserID)
	match.Completed = true
	match.CompletedAt = &now
	match.UpdatedAt = now
	if input.Score != nil {
		match.Score = input.Score
	}

	if err := s.store.UpdateMatch(ctx, tx, match); err != nil {
		return nil, fmt.Errorf("failed to update match: %w", err)
	}

	if err := s.advancer.Advance(ctx, tx, match); err != nil {
		return nil, fmt.Errorf("failed to advance bracket: %w", err)
	}
	s.advancer.MoveAcrossPartitions(ctx, match)

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.metrics.IncResultsSubmitted()
	s.metrics.ObserveAdvancementDuration(s.clock.Since(start).Seconds())
	log.Info("Match result submitted", "tournament", match.TournamentID, "match", match.ID,
		"round", match.Round, "bracket", match.BracketType, "winner", input.WinnerID)

	return match, nil
}

// UpdateLiveScore overwrites the running score of a match that is still being played.
func (s *MatchService) UpdateLiveScore(ctx context.Context, input LiveScoreInput) (*bracket.Match, error) {
	if err := validateScore(input.ScoreA, input.ScoreB); err != nil {
		return nil, err
	}

	unlock, err := s.lockTournamentOf(ctx, input.MatchID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	match, err := s.store.GetMatch(ctx, tx, input.MatchID)
	if err != nil {
		return nil, notFound(err, "match")
	}
	if match.Completed {
		return nil, validationf("cannot update the live score of a completed match")
	}

	match.Score = &bracket.Score{
		Participant1Score:  input.ScoreA,
		Participant2Score:  input.ScoreB,
		Participant1Points: utils.Ptr(utils.OrZero(input.PointsA)),
		Participant2Points: utils.Ptr(utils.OrZero(input.PointsB)),
	}
	match.UpdatedAt = s.clock.Now().UTC()

	if err := s.store.UpdateMatch(ctx, tx, match); err != nil {
		return nil, fmt.Errorf("failed to update match: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.metrics.IncLiveScoreUpdates()
	return match, nil
}

func (s *MatchService) DeleteMatch(ctx context.Context, matchID uuid.UUID) (bool, error) {
	unlock, err := s.lockTournamentOf(ctx, matchID)
	if err != nil {
		return false, err
	}
	defer unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	match, err := s.store.GetMatch(ctx, tx, matchID)
	if err != nil {
		return false, notFound(err, "match")
	}
	if match.Completed {
		return false, validationf("cannot delete a completed match")
	}

	if err := s.store.DeleteMatch(ctx, tx, matchID); err != nil {
		return false, fmt.Errorf("failed to delete match: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}

	log.Info("Match deleted", "tournament", match.TournamentID, "match", matchID)
	return true, nil
}

// ResetMatch drops the result of a match. Participants already advanced from it stay
// where they are unless reset cascade is enabled.
func (s *MatchService) ResetMatch(ctx context.Context, matchID uuid.UUID) (*bracket.Match, error) {
	unlock, err := s.lockTournamentOf(ctx, matchID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	match, err := s.store.GetMatch(ctx, tx, matchID)
	if err != nil {
		return nil, notFound(err, "match")
	}

	if err := s.advancer.Retract(ctx, tx, match, s.resetCascade); err != nil {
		return nil, err
	}

	match.Reset()
	match.UpdatedAt = s.clock.Now().UTC()
	if err := s.store.UpdateMatch(ctx, tx, match); err != nil {
		return nil, fmt.Errorf("failed to reset match: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.metrics.IncMatchResets()
	log.Info("Match reset", "tournament", match.TournamentID, "match", matchID, "cascade", s.resetCascade)
	return match, nil
}

func (s *MatchService) UpdateMatchSchedule(ctx context.Context, input ScheduleInput) (*bracket.Match, error) {
	if input.ScheduledTime != nil && *input.ScheduledTime != "" {
		if _, err := time.Parse("15:04", *input.ScheduledTime); err != nil {
			return nil, validationf("scheduled time must be HH:MM, got %q", *input.ScheduledTime)
		}
	}

	unlock, err := s.lockTournamentOf(ctx, input.MatchID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	match, err := s.store.GetMatch(ctx, tx, input.MatchID)
	if err != nil {
		return nil, notFound(err, "match")
	}

	match.ScheduledDate = input.ScheduledDate
	match.ScheduledTime = nil
	if input.ScheduledTime != nil && *input.ScheduledTime != "" {
		match.ScheduledTime = input.ScheduledTime
	}
	match.UpdatedAt = s.clock.Now().UTC()

	if err := s.store.UpdateMatch(ctx, tx, match); err != nil {
		return nil, fmt.Errorf("failed to update match schedule: %w", err)
	}
	return match, tx.Commit()
}

// RecalculatePlayoffMatches re-derives the Final and 3rd place match from the group
// standings. It repairs a playoff left stale by a reset or a manual edit.
func (s *MatchService) RecalculatePlayoffMatches(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error) {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	matches, err := s.advancer.RecalculatePlayoffs(ctx, tx, tournamentID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Info("Playoff matches recalculated", "tournament", tournamentID, "matches", len(matches))
	return matches, nil
}

func validateScore(a, b int) error {
	if a < 0 || b < 0 {
		return validationf("scores cannot be negative")
	}
	return nil
}

// nextReadyMatch is the first match that has both participants and no result yet.
func nextReadyMatch(matches []bracket.Match) *uuid.UUID {
	for i := range matches {
		if matches[i].State() == bracket.MatchReady {
			id := matches[i].ID
			return &id
		}
	}
	return nil
}
