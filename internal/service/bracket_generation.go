package service

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/club-brackets/internal/bracket"
	"github.com/AdamBeresnev/club-brackets/internal/store"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
)

// BracketGeneration builds the initial match structure of a tournament.
type BracketGeneration struct {
	db      *sqlx.DB
	store   *store.TournamentStore
	locks   *TournamentLocks
	clock   clockwork.Clock
	shuffle func([]string)
}

func NewBracketService(db *sqlx.DB, store *store.TournamentStore, locks *TournamentLocks, opts ...Option) *BracketGeneration {
	o := newOptions(opts)
	return &BracketGeneration{db: db, store: store, locks: locks, clock: o.clock, shuffle: o.shuffle}
}

// seedPairs are the quarterfinal pairings by seed index: 1 v 4 and 2 v 3.
var seedPairs = [][2]int{{0, 3}, {1, 2}}

// buildDoubleBracket lays out both partitions: two quarterfinals from the seeds,
// then placeholder semifinal and final. Seeds are ordered 1..4.
func buildDoubleBracket(tournamentID uuid.UUID, winners, losers []string) []bracket.Match {
	var matches []bracket.Match
	for _, part := range []struct {
		bt    bracket.BracketType
		seeds []string
	}{
		{bracket.WinnersBracket, winners},
		{bracket.LosersBracket, losers},
	} {
		for _, pair := range seedPairs {
			matches = append(matches, bracket.NewMatch(tournamentID, 1, part.bt, part.seeds[pair[0]], part.seeds[pair[1]]))
		}
		for round := 2; round <= bracket.SingleEliminationFinalRound; round++ {
			matches = append(matches, bracket.NewMatch(tournamentID, round, part.bt, bracket.Placeholder, bracket.Placeholder))
		}
	}
	return matches
}

// roundRobinPairs returns every pairing i<j of a group in roster order.
func roundRobinPairs(roster []string) [][2]string {
	pairs := make([][2]string, 0, len(roster)*(len(roster)-1)/2)
	for i := 0; i < len(roster); i++ {
		for j := i + 1; j < len(roster); j++ {
			pairs = append(pairs, [2]string{roster[i], roster[j]})
		}
	}
	return pairs
}

func (s *BracketGeneration) stamp(matches []bracket.Match) {
	now := s.clock.Now().UTC()
	for i := range matches {
		matches[i].CreatedAt = now
		matches[i].UpdatedAt = now
	}
}

// GenerateMatches seeds a single elimination tournament at random: the first four of
// the shuffled field play the championship ladder, the rest the consolation ladder.
func (s *BracketGeneration) GenerateMatches(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error) {
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
	if err := checkEliminationReady(t); err != nil {
		return nil, err
	}
	if t.CurrentParticipants < bracket.BracketParticipants {
		return nil, validationf("need %d participants to start tournament, have %d", bracket.BracketParticipants, t.CurrentParticipants)
	}

	participants, err := s.store.GetParticipants(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	if len(participants) < bracket.BracketParticipants {
		return nil, validationf("expected %d participants but found %d", bracket.BracketParticipants, len(participants))
	}

	ids := make([]string, bracket.BracketParticipants)
	for i := range ids {
		ids[i] = participants[i].ID
	}
	s.shuffle(ids)

	matches := buildDoubleBracket(tournamentID, ids[:bracket.PartitionSize], ids[bracket.PartitionSize:])
	s.stamp(matches)
	if err := s.store.CreateMatches(ctx, tx, matches); err != nil {
		return nil, fmt.Errorf("failed to create matches: %w", err)
	}

	t.Status = bracket.TournamentInProgress
	if err := s.store.UpdateTournament(ctx, tx, t); err != nil {
		return nil, fmt.Errorf("failed to update tournament: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Info("Generated random bracket", "tournament", tournamentID, "matches", len(matches))
	return matches, nil
}

// GenerateMatchesFromManualSeeding builds the same structure from operator assignments.
func (s *BracketGeneration) GenerateMatchesFromManualSeeding(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error) {
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
	if err := checkEliminationReady(t); err != nil {
		return nil, err
	}
	if t.BracketingMethod != bracket.ManualBracketing {
		return nil, validationf("tournament uses random bracketing")
	}

	assignments, err := s.store.GetAssignments(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignments: %w", err)
	}
	if len(assignments) != bracket.BracketParticipants {
		return nil, validationf("need %d participants assigned but found %d", bracket.BracketParticipants, len(assignments))
	}

	// Assignments come back ordered by bracket type, then seed.
	seeds := map[bracket.BracketType][]string{}
	for _, a := range assignments {
		seeds[a.BracketType] = append(seeds[a.BracketType], a.ParticipantID)
	}
	for _, bt := range []bracket.BracketType{bracket.WinnersBracket, bracket.LosersBracket} {
		if len(seeds[bt]) != bracket.PartitionSize {
			return nil, validationf("need %d participants in %s bracket but found %d", bracket.PartitionSize, bt, len(seeds[bt]))
		}
	}

	matches := buildDoubleBracket(tournamentID, seeds[bracket.WinnersBracket], seeds[bracket.LosersBracket])
	s.stamp(matches)
	if err := s.store.CreateMatches(ctx, tx, matches); err != nil {
		return nil, fmt.Errorf("failed to create matches: %w", err)
	}

	t.Status = bracket.TournamentInProgress
	t.SeedingCompleted = true
	if err := s.store.UpdateTournament(ctx, tx, t); err != nil {
		return nil, fmt.Errorf("failed to update tournament: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Info("Generated seeded bracket", "tournament", tournamentID, "matches", len(matches))
	return matches, nil
}

func checkEliminationReady(t *bracket.Tournament) error {
	if t.Shape != bracket.SingleEliminationDouble {
		return validationf("tournament is not a single elimination tournament")
	}
	if t.Status != bracket.TournamentRegistration {
		return validationf("cannot generate matches for a tournament in status %s", t.Status)
	}
	return nil
}

// GenerateRoundRobinMatches replaces every match of the tournament with the group
// stage pairings and empty Final and 3rd place matches.
func (s *BracketGeneration) GenerateRoundRobinMatches(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error) {
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
	if t.Status == bracket.TournamentCompleted {
		return nil, validationf("cannot generate matches for a completed tournament")
	}
	if err := validateGroups(t.GroupA, t.GroupB); err != nil {
		return nil, err
	}

	if err := s.store.DeleteMatches(ctx, tx, tournamentID); err != nil {
		return nil, fmt.Errorf("failed to delete existing matches: %w", err)
	}

	var matches []bracket.Match
	for _, pair := range roundRobinPairs(t.GroupA) {
		matches = append(matches, bracket.NewMatch(tournamentID, 1, bracket.WinnersBracket, pair[0], pair[1]))
	}
	for _, pair := range roundRobinPairs(t.GroupB) {
		matches = append(matches, bracket.NewMatch(tournamentID, 1, bracket.LosersBracket, pair[0], pair[1]))
	}
	matches = append(matches,
		bracket.NewMatch(tournamentID, bracket.RoundRobinPlayoffRound, bracket.WinnersBracket, bracket.Placeholder, bracket.Placeholder),
		bracket.NewMatch(tournamentID, bracket.RoundRobinPlayoffRound, bracket.LosersBracket, bracket.Placeholder, bracket.Placeholder),
	)
	s.stamp(matches)

	if err := s.store.CreateMatches(ctx, tx, matches); err != nil {
		return nil, fmt.Errorf("failed to create matches: %w", err)
	}

	t.Status = bracket.TournamentInProgress
	t.SeedingCompleted = true
	t.WinnersChampion = nil
	t.ConsolationChampion = nil
	if err := s.store.UpdateTournament(ctx, tx, t); err != nil {
		return nil, fmt.Errorf("failed to update tournament: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Info("Generated round robin", "tournament", tournamentID, "group_size", len(t.GroupA), "matches", len(matches))
	return matches, nil
}

// validateGroups checks two rosters of equal size within bounds that share nobody.
func validateGroups(groupA, groupB []string) error {
	if len(groupA) == 0 || len(groupB) == 0 {
		return validationf("groups must be assigned before generating matches")
	}
	if len(groupA) != len(groupB) {
		return validationf("both groups must have the same number of teams, group A has %d and group B has %d", len(groupA), len(groupB))
	}
	if len(groupA) < bracket.MinGroupSize || len(groupA) > bracket.MaxGroupSize {
		return validationf("groups must have between %d and %d teams, got %d", bracket.MinGroupSize, bracket.MaxGroupSize, len(groupA))
	}

	seen := make(map[string]bool, len(groupA)+len(groupB))
	for _, id := range append(append([]string{}, groupA...), groupB...) {
		if bracket.IsPlaceholder(id) {
			return validationf("group members must be participants")
		}
		if seen[id] {
			return validationf("participant %s appears more than once in the groups", id)
		}
		seen[id] = true
	}
	return nil
}
