package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/AdamBeresnev/club-brackets/internal/bracket"
	"github.com/AdamBeresnev/club-brackets/internal/middleware"
	"github.com/AdamBeresnev/club-brackets/internal/store"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

type TournamentService struct {
	db    *sqlx.DB
	store *store.TournamentStore
	locks *TournamentLocks
	clock clockwork.Clock
}

func NewTournamentService(db *sqlx.DB, store *store.TournamentStore, locks *TournamentLocks, opts ...Option) *TournamentService {
	o := newOptions(opts)
	return &TournamentService{db: db, store: store, locks: locks, clock: o.clock}
}

type TournamentInput struct {
	Name             string                   `json:"name"`
	Mode             bracket.TournamentMode   `json:"mode"`
	Shape            bracket.TournamentShape  `json:"shape"`
	BracketingMethod bracket.BracketingMethod `json:"bracketingMethod"`
}

type ParticipantInput struct {
	// ID is the player or team id from the club roster. A new one is issued when empty.
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type AssignmentInput struct {
	ParticipantID string              `json:"participantId"`
	BracketType   bracket.BracketType `json:"bracketType"`
	Seed          int                 `json:"seed"`
}

type TournamentData struct {
	Tournament   *bracket.Tournament   `json:"tournament"`
	Participants []bracket.Participant `json:"participants"`
	Matches      []bracket.Match       `json:"matches"`
	Assignments  []bracket.Assignment  `json:"assignments"`
	NextMatchID  *uuid.UUID            `json:"nextMatchId,omitempty"`
}

// MatchView is a match with display names resolved, "TBD" for open slots.
type MatchView struct {
	bracket.Match
	Participant1Name string             `json:"participant1Name"`
	Participant2Name string             `json:"participant2Name"`
	State            bracket.MatchState `json:"state"`
}

type BracketView struct {
	Tournament *bracket.Tournament `json:"tournament"`
	Winners    []MatchView         `json:"winners"`
	Losers     []MatchView         `json:"losers"`
}

type GroupStandings struct {
	GroupA []bracket.Standing `json:"groupA"`
	GroupB []bracket.Standing `json:"groupB"`
}

func (s *TournamentService) CreateTournament(ctx context.Context, input TournamentInput) (*bracket.Tournament, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, validationf("tournament name is required")
	}
	if input.Mode != bracket.Singles && input.Mode != bracket.Doubles {
		return nil, validationf("unknown mode %q", input.Mode)
	}
	if !input.Shape.Valid() {
		return nil, validationf("unknown tournament shape %q", input.Shape)
	}
	if input.BracketingMethod == "" {
		input.BracketingMethod = bracket.RandomBracketing
	}
	if input.BracketingMethod != bracket.RandomBracketing && input.BracketingMethod != bracket.ManualBracketing {
		return nil, validationf("unknown bracketing method %q", input.BracketingMethod)
	}

	t := &bracket.Tournament{
		ID:               uuid.New(),
		Name:             name,
		Mode:             input.Mode,
		Status:           bracket.TournamentRegistration,
		Shape:            input.Shape,
		BracketingMethod: input.BracketingMethod,
		CreatedAt:        s.clock.Now().UTC(),
	}
	if ownerID, ok := middleware.GetUserIDFromContext(ctx); ok {
		t.OwnerID = &ownerID
	}

	if err := s.store.CreateTournament(ctx, s.db, t); err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}

	log.Info("Tournament created", "tournament", t.ID, "shape", t.Shape, "mode", t.Mode)
	return t, nil
}

func (s *TournamentService) GetTournaments(ctx context.Context) ([]bracket.Tournament, error) {
	return s.store.GetTournaments(ctx)
}

func (s *TournamentService) GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	t, err := s.store.GetTournament(ctx, s.db, id)
	if err != nil {
		return nil, notFound(err, "tournament")
	}
	return t, nil
}

// RegisterParticipant adds a player (singles) or team (doubles) to the field.
func (s *TournamentService) RegisterParticipant(ctx context.Context, tournamentID uuid.UUID, input ParticipantInput) (*bracket.Participant, error) {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	t, taken, err := s.openRegistration(ctx, tx, tournamentID)
	if err != nil {
		return nil, err
	}

	p, err := s.addParticipant(ctx, tx, t, taken, input)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateTournament(ctx, tx, t); err != nil {
		return nil, fmt.Errorf("failed to update tournament: %w", err)
	}

	return p, tx.Commit()
}

// openRegistration loads a tournament that accepts participants and the ids already taken.
func (s *TournamentService) openRegistration(ctx context.Context, q store.Queryer, tournamentID uuid.UUID) (*bracket.Tournament, map[string]bool, error) {
	t, err := s.store.GetTournament(ctx, q, tournamentID)
	if err != nil {
		return nil, nil, notFound(err, "tournament")
	}
	if t.Status != bracket.TournamentRegistration {
		return nil, nil, validationf("tournament registration is not open")
	}

	existing, err := s.store.GetParticipants(ctx, q, tournamentID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get participants: %w", err)
	}
	taken := make(map[string]bool, len(existing))
	for _, e := range existing {
		taken[e.ID] = true
	}
	return t, taken, nil
}

// addParticipant inserts one participant and bumps the tournament's count in memory.
func (s *TournamentService) addParticipant(ctx context.Context, q store.Queryer, t *bracket.Tournament, taken map[string]bool, input ParticipantInput) (*bracket.Participant, error) {
	name := strings.TrimSpace(input.Name)
	id := strings.TrimSpace(input.ID)
	if name == "" {
		return nil, validationf("participant name is required")
	}
	if id == bracket.Placeholder {
		return nil, validationf("%q is not a valid participant id", id)
	}
	if t.Shape == bracket.SingleEliminationDouble && t.CurrentParticipants >= bracket.BracketParticipants {
		return nil, validationf("tournament registration is full")
	}
	if id == "" {
		id = uuid.NewString()
	}
	if taken[id] {
		return nil, validationf("participant %s is already registered", id)
	}

	kind := bracket.PlayerParticipant
	if t.Mode == bracket.Doubles {
		kind = bracket.TeamParticipant
	}
	p := &bracket.Participant{
		ID:           id,
		TournamentID: t.ID,
		Kind:         kind,
		Name:         name,
		CreatedAt:    s.clock.Now().UTC(),
	}
	if err := s.store.CreateParticipant(ctx, q, p); err != nil {
		return nil, fmt.Errorf("failed to register participant: %w", err)
	}

	taken[id] = true
	t.CurrentParticipants++
	return p, nil
}

// SetTournamentGroups stores the two group rosters of a round robin tournament.
// Groups are fixed once the group stage is generated.
func (s *TournamentService) SetTournamentGroups(ctx context.Context, tournamentID uuid.UUID, groupA, groupB []string) (*bracket.Tournament, error) {
	if err := validateGroups(groupA, groupB); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	t, err := s.store.GetTournament(ctx, tx, tournamentID)
	if err != nil {
		return nil, notFound(err, "tournament")
	}
	if t.Shape != bracket.RoundRobinToPlayoff {
		return nil, validationf("groups only apply to round robin tournaments")
	}
	if t.Status != bracket.TournamentRegistration {
		return nil, validationf("groups can only be changed during registration")
	}

	participants, err := s.store.GetParticipants(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	registered := participantNames(participants)
	for _, id := range append(append([]string{}, groupA...), groupB...) {
		if _, ok := registered[id]; !ok {
			return nil, validationf("participant %s is not registered", id)
		}
	}

	t.GroupA = bracket.Roster(groupA)
	t.GroupB = bracket.Roster(groupB)
	if err := s.store.UpdateTournament(ctx, tx, t); err != nil {
		return nil, fmt.Errorf("failed to update groups: %w", err)
	}

	return t, tx.Commit()
}

// AssignParticipantToBracket places a participant at a seed for manual bracketing.
// Assigning the same participant again moves it.
func (s *TournamentService) AssignParticipantToBracket(ctx context.Context, tournamentID uuid.UUID, input AssignmentInput) (*bracket.Assignment, error) {
	if !input.BracketType.Valid() {
		return nil, validationf("unknown bracket type %q", input.BracketType)
	}
	if input.Seed < 1 || input.Seed > bracket.PartitionSize {
		return nil, validationf("seed must be between 1 and %d", bracket.PartitionSize)
	}

	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	t, err := s.store.GetTournament(ctx, tx, tournamentID)
	if err != nil {
		return nil, notFound(err, "tournament")
	}
	if t.Status != bracket.TournamentRegistration {
		return nil, validationf("can only assign participants during registration")
	}
	if t.BracketingMethod != bracket.ManualBracketing {
		return nil, validationf("tournament uses random bracketing")
	}

	participants, err := s.store.GetParticipants(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	if _, ok := participantNames(participants)[input.ParticipantID]; !ok {
		return nil, fmt.Errorf("participant %s: %w", input.ParticipantID, ErrNotFound)
	}

	assignments, err := s.store.GetAssignments(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignments: %w", err)
	}
	for _, a := range assignments {
		if a.BracketType == input.BracketType && a.Seed == input.Seed && a.ParticipantID != input.ParticipantID {
			return nil, validationf("seed %d of the %s bracket is taken by %s", input.Seed, input.BracketType, a.ParticipantID)
		}
	}

	assignment := &bracket.Assignment{
		ID:            uuid.New(),
		TournamentID:  tournamentID,
		ParticipantID: input.ParticipantID,
		BracketType:   input.BracketType,
		Seed:          input.Seed,
		CreatedAt:     s.clock.Now().UTC(),
	}
	if err := s.store.UpsertAssignment(ctx, tx, assignment); err != nil {
		return nil, fmt.Errorf("failed to assign participant: %w", err)
	}

	saved, err := s.store.GetAssignment(ctx, tx, tournamentID, input.ParticipantID)
	if err != nil {
		return nil, fmt.Errorf("failed to read assignment: %w", err)
	}
	return saved, tx.Commit()
}

// GetTournamentData loads a tournament and everything hanging off it concurrently.
func (s *TournamentService) GetTournamentData(ctx context.Context, id uuid.UUID) (*TournamentData, error) {
	data := &TournamentData{}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.store.GetTournament(gCtx, s.db, id)
		if err != nil {
			return notFound(err, "tournament")
		}
		data.Tournament = t
		return nil
	})
	g.Go(func() error {
		participants, err := s.store.GetParticipants(gCtx, s.db, id)
		if err != nil {
			return fmt.Errorf("failed to get participants: %w", err)
		}
		data.Participants = participants
		return nil
	})
	g.Go(func() error {
		matches, err := s.store.GetMatches(gCtx, s.db, id)
		if err != nil {
			return fmt.Errorf("failed to get matches: %w", err)
		}
		data.Matches = matches
		return nil
	})
	g.Go(func() error {
		assignments, err := s.store.GetAssignments(gCtx, s.db, id)
		if err != nil {
			return fmt.Errorf("failed to get assignments: %w", err)
		}
		data.Assignments = assignments
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	data.NextMatchID = nextReadyMatch(data.Matches)
	return data, nil
}

func (s *TournamentService) GetMatches(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error) {
	if _, err := s.GetTournament(ctx, tournamentID); err != nil {
		return nil, err
	}
	return s.store.GetMatches(ctx, s.db, tournamentID)
}

// GetBracket returns both partitions ordered by round, with participant names.
func (s *TournamentService) GetBracket(ctx context.Context, tournamentID uuid.UUID) (*BracketView, error) {
	data, err := s.GetTournamentData(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	names := participantNames(data.Participants)
	view := &BracketView{Tournament: data.Tournament, Winners: []MatchView{}, Losers: []MatchView{}}
	for _, m := range data.Matches {
		mv := MatchView{
			Match:            m,
			Participant1Name: names.of(m.Participant1),
			Participant2Name: names.of(m.Participant2),
			State:            m.State(),
		}
		switch m.BracketType {
		case bracket.WinnersBracket:
			view.Winners = append(view.Winners, mv)
		case bracket.LosersBracket:
			view.Losers = append(view.Losers, mv)
		}
	}
	return view, nil
}

// GetStandings computes the live group tables of a round robin tournament.
func (s *TournamentService) GetStandings(ctx context.Context, tournamentID uuid.UUID) (*GroupStandings, error) {
	t, err := s.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if !t.HasGroups() {
		return nil, validationf("tournament %s has no groups configured", tournamentID)
	}

	groupA, err := s.store.FindMatches(ctx, s.db, tournamentID, 1, bracket.WinnersBracket)
	if err != nil {
		return nil, fmt.Errorf("failed to get group A matches: %w", err)
	}
	groupB, err := s.store.FindMatches(ctx, s.db, tournamentID, 1, bracket.LosersBracket)
	if err != nil {
		return nil, fmt.Errorf("failed to get group B matches: %w", err)
	}

	return &GroupStandings{
		GroupA: bracket.ComputeStandings(groupA, t.GroupA),
		GroupB: bracket.ComputeStandings(groupB, t.GroupB),
	}, nil
}

type nameIndex map[string]string

func participantNames(participants []bracket.Participant) nameIndex {
	names := make(nameIndex, len(participants))
	for _, p := range participants {
		names[p.ID] = p.Name
	}
	return names
}

// of resolves a participant id to its display name, "TBD" when unknown.
func (n nameIndex) of(id string) string {
	if bracket.IsPlaceholder(id) {
		return bracket.Placeholder
	}
	if name, ok := n[id]; ok && name != "" {
		return name
	}
	return bracket.Placeholder
}
