package store

import (
	"context"

	"github.com/AdamBeresnev/club-brackets/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Queryer is satisfied by both *sqlx.DB and *sqlx.Tx, so every store call can run
// inside or outside a transaction.
type Queryer = sqlx.ExtContext

type TournamentStore struct {
	db *sqlx.DB
}

func NewTournamentStore(db *sqlx.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

const (
	createTournamentQuery = `
		INSERT INTO tournaments (id, owner_id, name, mode, status, shape, bracketing_method,
			seeding_completed, current_participants, group_a, group_b, created_at)
		VALUES (:id, :owner_id, :name, :mode, :status, :shape, :bracketing_method,
			:seeding_completed, :current_participants, :group_a, :group_b, :created_at)
	`
	updateTournamentQuery = `
		UPDATE tournaments SET
			name = :name,
			status = :status,
			bracketing_method = :bracketing_method,
			seeding_completed = :seeding_completed,
			current_participants = :current_participants,
			group_a = :group_a,
			group_b = :group_b,
			winners_champion = :winners_champion,
			consolation_champion = :consolation_champion
		WHERE id = :id
	`
	createParticipantQuery = `
		INSERT INTO participants (id, tournament_id, kind, name, created_at)
		VALUES (:id, :tournament_id, :kind, :name, :created_at)
	`
	upsertAssignmentQuery = `
		INSERT INTO bracket_assignments (id, tournament_id, participant_id, bracket_type, seed, created_at)
		VALUES (:id, :tournament_id, :participant_id, :bracket_type, :seed, :created_at)
		ON CONFLICT (tournament_id, participant_id) DO UPDATE SET
			bracket_type = excluded.bracket_type,
			seed = excluded.seed
	`
)

func (s *TournamentStore) CreateTournament(ctx context.Context, q Queryer, tournament *bracket.Tournament) error {
	_, err := sqlx.NamedExecContext(ctx, q, createTournamentQuery, tournament)
	return err
}

func (s *TournamentStore) UpdateTournament(ctx context.Context, q Queryer, tournament *bracket.Tournament) error {
	_, err := sqlx.NamedExecContext(ctx, q, updateTournamentQuery, tournament)
	return err
}

func (s *TournamentStore) GetTournament(ctx context.Context, q Queryer, id uuid.UUID) (*bracket.Tournament, error) {
	var tournament bracket.Tournament
	err := sqlx.GetContext(ctx, q, &tournament, "SELECT * FROM tournaments WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	return &tournament, nil
}

func (s *TournamentStore) GetTournaments(ctx context.Context) ([]bracket.Tournament, error) {
	var tournaments []bracket.Tournament
	err := s.db.SelectContext(ctx, &tournaments, "SELECT * FROM tournaments ORDER BY created_at DESC")
	return tournaments, err
}

func (s *TournamentStore) CreateParticipant(ctx context.Context, q Queryer, participant *bracket.Participant) error {
	_, err := sqlx.NamedExecContext(ctx, q, createParticipantQuery, participant)
	return err
}

func (s *TournamentStore) GetParticipants(ctx context.Context, q Queryer, tournamentID uuid.UUID) ([]bracket.Participant, error) {
	var participants []bracket.Participant
	err := sqlx.SelectContext(ctx, q, &participants,
		"SELECT * FROM participants WHERE tournament_id = ? ORDER BY created_at ASC, rowid ASC", tournamentID)
	return participants, err
}

func (s *TournamentStore) UpsertAssignment(ctx context.Context, q Queryer, assignment *bracket.Assignment) error {
	_, err := sqlx.NamedExecContext(ctx, q, upsertAssignmentQuery, assignment)
	return err
}

func (s *TournamentStore) GetAssignment(ctx context.Context, q Queryer, tournamentID uuid.UUID, participantID string) (*bracket.Assignment, error) {
	var assignment bracket.Assignment
	err := sqlx.GetContext(ctx, q, &assignment,
		"SELECT * FROM bracket_assignments WHERE tournament_id = ? AND participant_id = ?", tournamentID, participantID)
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (s *TournamentStore) GetAssignments(ctx context.Context, q Queryer, tournamentID uuid.UUID) ([]bracket.Assignment, error) {
	var assignments []bracket.Assignment
	err := sqlx.SelectContext(ctx, q, &assignments,
		"SELECT * FROM bracket_assignments WHERE tournament_id = ? ORDER BY bracket_type ASC, seed ASC", tournamentID)
	return assignments, err
}
