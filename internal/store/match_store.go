package store

import (
	"context"
	"time"

	"github.com/AdamBeresnev/club-brackets/internal/bracket"
	"github.com/AdamBeresnev/club-brackets/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// matchRow is the flat column layout of a match; the score is split over four nullable columns.
type matchRow struct {
	ID                 uuid.UUID           `db:"id"`
	TournamentID       uuid.UUID           `db:"tournament_id"`
	Round              int                 `db:"round"`
	BracketType        bracket.BracketType `db:"bracket_type"`
	Participant1       string              `db:"participant1"`
	Participant2       string              `db:"participant2"`
	Winner             *string             `db:"winner"`
	Loser              *string             `db:"loser"`
	Participant1Score  *int                `db:"participant1_score"`
	Participant2Score  *int                `db:"participant2_score"`
	Participant1Points *int                `db:"participant1_points"`
	Participant2Points *int                `db:"participant2_points"`
	Completed          bool                `db:"completed"`
	ScheduledDate      *time.Time          `db:"scheduled_date"`
	ScheduledTime      *string             `db:"scheduled_time"`
	CreatedAt          time.Time           `db:"created_at"`
	UpdatedAt          time.Time           `db:"updated_at"`
	CompletedAt        *time.Time          `db:"completed_at"`
}

func toRow(m *bracket.Match) matchRow {
	row := matchRow{
		ID:            m.ID,
		TournamentID:  m.TournamentID,
		Round:         m.Round,
		BracketType:   m.BracketType,
		Participant1:  m.Participant1,
		Participant2:  m.Participant2,
		Winner:        m.Winner,
		Loser:         m.Loser,
		Completed:     m.Completed,
		ScheduledDate: m.ScheduledDate,
		ScheduledTime: m.ScheduledTime,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
		CompletedAt:   m.CompletedAt,
	}
	if m.Score != nil {
		row.Participant1Score = utils.Ptr(m.Score.Participant1Score)
		row.Participant2Score = utils.Ptr(m.Score.Participant2Score)
		row.Participant1Points = m.Score.Participant1Points
		row.Participant2Points = m.Score.Participant2Points
	}
	return row
}

func (r *matchRow) toMatch() bracket.Match {
	m := bracket.Match{
		ID:            r.ID,
		TournamentID:  r.TournamentID,
		Round:         r.Round,
		BracketType:   r.BracketType,
		Participant1:  r.Participant1,
		Participant2:  r.Participant2,
		Winner:        r.Winner,
		Loser:         r.Loser,
		Completed:     r.Completed,
		ScheduledDate: r.ScheduledDate,
		ScheduledTime: r.ScheduledTime,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		CompletedAt:   r.CompletedAt,
	}
	if r.Participant1Score != nil || r.Participant2Score != nil {
		m.Score = &bracket.Score{
			Participant1Score:  utils.OrZero(r.Participant1Score),
			Participant2Score:  utils.OrZero(r.Participant2Score),
			Participant1Points: r.Participant1Points,
			Participant2Points: r.Participant2Points,
		}
	}
	return m
}

func toMatches(rows []matchRow) []bracket.Match {
	matches := make([]bracket.Match, len(rows))
	for i := range rows {
		matches[i] = rows[i].toMatch()
	}
	return matches
}

const (
	matchColumns = `id, tournament_id, round, bracket_type, participant1, participant2, winner, loser,
		participant1_score, participant2_score, participant1_points, participant2_points,
		completed, scheduled_date, scheduled_time, created_at, updated_at, completed_at`

	createMatchQuery = `
		INSERT INTO matches (` + matchColumns + `)
		VALUES (:id, :tournament_id, :round, :bracket_type, :participant1, :participant2, :winner, :loser,
			:participant1_score, :participant2_score, :participant1_points, :participant2_points,
			:completed, :scheduled_date, :scheduled_time, :created_at, :updated_at, :completed_at)
	`
	updateMatchQuery = `
		UPDATE matches SET
			participant1 = :participant1,
			participant2 = :participant2,
			winner = :winner,
			loser = :loser,
			participant1_score = :participant1_score,
			participant2_score = :participant2_score,
			participant1_points = :participant1_points,
			participant2_points = :participant2_points,
			completed = :completed,
			scheduled_date = :scheduled_date,
			scheduled_time = :scheduled_time,
			updated_at = :updated_at,
			completed_at = :completed_at
		WHERE id = :id
	`
	// Winners before losers, then insertion order so "first match" is stable.
	matchOrder = " ORDER BY round ASC, bracket_type DESC, rowid ASC"
)

func (s *TournamentStore) CreateMatches(ctx context.Context, q Queryer, matches []bracket.Match) error {
	for i := range matches {
		if _, err := sqlx.NamedExecContext(ctx, q, createMatchQuery, toRow(&matches[i])); err != nil {
			return err
		}
	}
	return nil
}

func (s *TournamentStore) UpdateMatch(ctx context.Context, q Queryer, match *bracket.Match) error {
	_, err := sqlx.NamedExecContext(ctx, q, updateMatchQuery, toRow(match))
	return err
}

func (s *TournamentStore) GetMatch(ctx context.Context, q Queryer, id uuid.UUID) (*bracket.Match, error) {
	var row matchRow
	err := sqlx.GetContext(ctx, q, &row, "SELECT "+matchColumns+" FROM matches WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	m := row.toMatch()
	return &m, nil
}

func (s *TournamentStore) GetMatches(ctx context.Context, q Queryer, tournamentID uuid.UUID) ([]bracket.Match, error) {
	var rows []matchRow
	err := sqlx.SelectContext(ctx, q, &rows,
		"SELECT "+matchColumns+" FROM matches WHERE tournament_id = ?"+matchOrder, tournamentID)
	if err != nil {
		return nil, err
	}
	return toMatches(rows), nil
}

// FindMatches returns the matches at one (round, bracket type) position of a tournament.
func (s *TournamentStore) FindMatches(ctx context.Context, q Queryer, tournamentID uuid.UUID, round int, bracketType bracket.BracketType) ([]bracket.Match, error) {
	var rows []matchRow
	err := sqlx.SelectContext(ctx, q, &rows,
		"SELECT "+matchColumns+" FROM matches WHERE tournament_id = ? AND round = ? AND bracket_type = ?"+matchOrder,
		tournamentID, round, bracketType)
	if err != nil {
		return nil, err
	}
	return toMatches(rows), nil
}

func (s *TournamentStore) DeleteMatch(ctx context.Context, q Queryer, id uuid.UUID) error {
	_, err := q.ExecContext(ctx, "DELETE FROM matches WHERE id = ?", id)
	return err
}

func (s *TournamentStore) DeleteMatches(ctx context.Context, q Queryer, tournamentID uuid.UUID) error {
	_, err := q.ExecContext(ctx, "DELETE FROM matches WHERE tournament_id = ?", tournamentID)
	return err
}
