package service

import (
	"context"
	"testing"
	"time"

	"github.com/AdamBeresnev/club-brackets/internal/bracket"
	"github.com/AdamBeresnev/club-brackets/internal/middleware"
	"github.com/AdamBeresnev/club-brackets/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTournament(t *testing.T) {
	env := newTestEnv(t)
	users := NewUserService(env.db, store.NewUserStore(env.db), nil, WithClock(env.clock))
	owner, err := users.EnsureGuestUser(context.Background())
	require.NoError(t, err)
	ownerID := owner.ID
	ctx := context.WithValue(context.Background(), middleware.UserIDKey, ownerID)

	testCases := []struct {
		name    string
		input   TournamentInput
		wantErr bool
	}{
		{"valid round robin", TournamentInput{Name: "Summer League", Mode: bracket.Doubles, Shape: bracket.RoundRobinToPlayoff}, false},
		{"valid manual elimination", TournamentInput{Name: "Cup", Mode: bracket.Singles, Shape: bracket.SingleEliminationDouble, BracketingMethod: bracket.ManualBracketing}, false},
		{"blank name", TournamentInput{Name: "  ", Mode: bracket.Doubles, Shape: bracket.RoundRobinToPlayoff}, true},
		{"unknown mode", TournamentInput{Name: "Cup", Mode: "triples", Shape: bracket.RoundRobinToPlayoff}, true},
		{"unknown shape", TournamentInput{Name: "Cup", Mode: bracket.Doubles, Shape: "swiss"}, true},
		{"unknown method", TournamentInput{Name: "Cup", Mode: bracket.Doubles, Shape: bracket.SingleEliminationDouble, BracketingMethod: "snake"}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tournament, err := env.tournaments.CreateTournament(ctx, tc.input)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, bracket.TournamentRegistration, tournament.Status)
			require.NotNil(t, tournament.OwnerID)
			assert.Equal(t, ownerID, *tournament.OwnerID)
			assert.NotEmpty(t, tournament.BracketingMethod)
		})
	}

	all, err := env.tournaments.GetTournaments(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRegisterParticipant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := env.createTournament(t, bracket.SingleEliminationDouble, bracket.RandomBracketing)

	p, err := env.tournaments.RegisterParticipant(ctx, tournament.ID, ParticipantInput{Name: " Smash Bros "})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Smash Bros", p.Name)
	assert.Equal(t, bracket.TeamParticipant, p.Kind)

	_, err = env.tournaments.RegisterParticipant(ctx, tournament.ID, ParticipantInput{ID: p.ID, Name: "Again"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.tournaments.RegisterParticipant(ctx, tournament.ID, ParticipantInput{ID: bracket.Placeholder, Name: "Nobody"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.tournaments.RegisterParticipant(ctx, tournament.ID, ParticipantInput{Name: ""})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.tournaments.RegisterParticipant(ctx, uuid.New(), ParticipantInput{Name: "Lost"})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 1, env.tournament(t, tournament.ID).CurrentParticipants)
}

func TestRegisterParticipantCapsEliminationField(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := env.createTournament(t, bracket.SingleEliminationDouble, bracket.RandomBracketing)
	env.register(t, tournament.ID, eightTeams...)

	_, err := env.tournaments.RegisterParticipant(ctx, tournament.ID, ParticipantInput{ID: "I", Name: "Team I"})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, bracket.BracketParticipants, env.tournament(t, tournament.ID).CurrentParticipants)
}

func TestRegisterParticipantClosedAfterGeneration(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := eliminationBracket(t, env)

	_, err := env.tournaments.RegisterParticipant(ctx, tournament.ID, ParticipantInput{Name: "Latecomer"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestImportRoster(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := env.createTournament(t, bracket.RoundRobinToPlayoff, bracket.RandomBracketing)

	roster := "club-7; Net Ninjas\n\n  Drop Shots  \nclub-9;Smash Bros\n"
	participants, err := env.tournaments.ImportRoster(ctx, tournament.ID, roster)
	require.NoError(t, err)
	require.Len(t, participants, 3)

	assert.Equal(t, "club-7", participants[0].ID)
	assert.Equal(t, "Net Ninjas", participants[0].Name)
	assert.NotEmpty(t, participants[1].ID)
	assert.Equal(t, "Drop Shots", participants[1].Name)
	assert.Equal(t, "club-9", participants[2].ID)

	assert.Equal(t, 3, env.tournament(t, tournament.ID).CurrentParticipants)
}

func TestImportRosterIsAllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := env.createTournament(t, bracket.RoundRobinToPlayoff, bracket.RandomBracketing)

	_, err := env.tournaments.ImportRoster(ctx, tournament.ID, "a; Team A\nb; Team B\na; Team A again")
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "line 3")

	data, err := env.tournaments.GetTournamentData(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Empty(t, data.Participants)
	assert.Zero(t, data.Tournament.CurrentParticipants)

	_, err = env.tournaments.ImportRoster(ctx, tournament.ID, " \n\n")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestImportRosterReportsPhysicalLine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := env.createTournament(t, bracket.RoundRobinToPlayoff, bracket.RandomBracketing)

	_, err := env.tournaments.ImportRoster(ctx, tournament.ID, "a; A\n\n\na; again")
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "line 4:")
}

func TestSetTournamentGroups(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("round robin", func(t *testing.T) {
		tournament := env.createTournament(t, bracket.RoundRobinToPlayoff, bracket.RandomBracketing)
		env.register(t, tournament.ID, append(append([]string{}, groupOfThreeA...), groupOfThreeB...)...)

		updated, err := env.tournaments.SetTournamentGroups(ctx, tournament.ID, groupOfThreeA, groupOfThreeB)
		require.NoError(t, err)
		assert.Equal(t, bracket.Roster(groupOfThreeA), updated.GroupA)
		assert.Equal(t, 3, env.tournament(t, tournament.ID).GroupSize())
	})

	t.Run("invalid groups", func(t *testing.T) {
		tournament := env.createTournament(t, bracket.RoundRobinToPlayoff, bracket.RandomBracketing)
		_, err := env.tournaments.SetTournamentGroups(ctx, tournament.ID, []string{"A", "B"}, []string{"C"})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("unregistered member", func(t *testing.T) {
		tournament := env.createTournament(t, bracket.RoundRobinToPlayoff, bracket.RandomBracketing)
		env.register(t, tournament.ID, "A", "B", "D", "E", "F")

		_, err := env.tournaments.SetTournamentGroups(ctx, tournament.ID, groupOfThreeA, groupOfThreeB)
		require.ErrorIs(t, err, ErrValidation)
		assert.Contains(t, err.Error(), "participant C is not registered")
		assert.Empty(t, env.tournament(t, tournament.ID).GroupA)
	})

	t.Run("single elimination", func(t *testing.T) {
		tournament := env.createTournament(t, bracket.SingleEliminationDouble, bracket.RandomBracketing)
		_, err := env.tournaments.SetTournamentGroups(ctx, tournament.ID, groupOfThreeA, groupOfThreeB)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("unknown tournament", func(t *testing.T) {
		_, err := env.tournaments.SetTournamentGroups(ctx, uuid.New(), groupOfThreeA, groupOfThreeB)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSetTournamentGroupsLockedAfterGeneration(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament, matches := env.roundRobin(t, groupOfThreeA, groupOfThreeB)

	_, err := env.tournaments.SetTournamentGroups(ctx, tournament.ID, []string{"A", "B"}, []string{"D", "E"})
	require.ErrorIs(t, err, ErrValidation)

	stored := env.tournament(t, tournament.ID)
	assert.Equal(t, bracket.Roster(groupOfThreeA), stored.GroupA)
	assert.Equal(t, bracket.Roster(groupOfThreeB), stored.GroupB)

	// A single group result must not seed the playoffs.
	env.submit(t, pairing(t, matches, "A", "C"), "C", 2, 1)
	for _, bt := range []bracket.BracketType{bracket.WinnersBracket, bracket.LosersBracket} {
		playoff := env.find(t, tournament.ID, bracket.RoundRobinPlayoffRound, bt)
		require.Len(t, playoff, 1)
		assert.Equal(t, bracket.Placeholder, playoff[0].Participant1)
		assert.Equal(t, bracket.Placeholder, playoff[0].Participant2)
	}
}

func TestAssignParticipantToBracket(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := env.createTournament(t, bracket.SingleEliminationDouble, bracket.ManualBracketing)
	env.register(t, tournament.ID, "A", "B")

	assignment, err := env.tournaments.AssignParticipantToBracket(ctx, tournament.ID, AssignmentInput{ParticipantID: "A", BracketType: bracket.WinnersBracket, Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, assignment.Seed)

	testCases := []struct {
		name    string
		input   AssignmentInput
		wantErr error
	}{
		{"seed taken", AssignmentInput{ParticipantID: "B", BracketType: bracket.WinnersBracket, Seed: 1}, ErrValidation},
		{"seed out of range", AssignmentInput{ParticipantID: "B", BracketType: bracket.WinnersBracket, Seed: 5}, ErrValidation},
		{"unknown bracket", AssignmentInput{ParticipantID: "B", BracketType: "middle", Seed: 2}, ErrValidation},
		{"unknown participant", AssignmentInput{ParticipantID: "Z", BracketType: bracket.LosersBracket, Seed: 2}, ErrNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.tournaments.AssignParticipantToBracket(ctx, tournament.ID, tc.input)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	moved, err := env.tournaments.AssignParticipantToBracket(ctx, tournament.ID, AssignmentInput{ParticipantID: "A", BracketType: bracket.LosersBracket, Seed: 4})
	require.NoError(t, err)
	assert.Equal(t, assignment.ID, moved.ID)
	assert.Equal(t, bracket.LosersBracket, moved.BracketType)

	random := env.createTournament(t, bracket.SingleEliminationDouble, bracket.RandomBracketing)
	env.register(t, random.ID, "A")
	_, err = env.tournaments.AssignParticipantToBracket(ctx, random.ID, AssignmentInput{ParticipantID: "A", BracketType: bracket.WinnersBracket, Seed: 1})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGetTournamentData(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := eliminationBracket(t, env)

	data, err := env.tournaments.GetTournamentData(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, tournament.ID, data.Tournament.ID)
	assert.Len(t, data.Participants, 8)
	assert.Len(t, data.Matches, 8)
	assert.Empty(t, data.Assignments)
	require.NotNil(t, data.NextMatchID)
	assert.Equal(t, data.Matches[0].ID, *data.NextMatchID)

	_, err = env.tournaments.GetTournamentData(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetBracket(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := eliminationBracket(t, env)
	env.submit(t, env.find(t, tournament.ID, 1, bracket.WinnersBracket)[0], "A", 2, 0)

	view, err := env.tournaments.GetBracket(ctx, tournament.ID)
	require.NoError(t, err)
	require.Len(t, view.Winners, 4)
	require.Len(t, view.Losers, 4)

	assert.Equal(t, "Team A", view.Winners[0].Participant1Name)
	assert.Equal(t, bracket.MatchCompleted, view.Winners[0].State)
	assert.Equal(t, bracket.MatchReady, view.Winners[1].State)

	semi := view.Winners[2]
	assert.Equal(t, 2, semi.Round)
	assert.Equal(t, "Team A", semi.Participant1Name)
	assert.Equal(t, bracket.Placeholder, semi.Participant2Name)
	assert.Equal(t, bracket.MatchPending, semi.State)

	for _, m := range view.Losers {
		assert.Equal(t, bracket.LosersBracket, m.BracketType)
	}
}

func TestGetStandings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament, matches := env.roundRobin(t, groupOfThreeA, groupOfThreeB)

	standings, err := env.tournaments.GetStandings(ctx, tournament.ID)
	require.NoError(t, err)
	require.Len(t, standings.GroupA, 3)
	for _, s := range standings.GroupA {
		assert.Zero(t, s.MatchesPlayed)
	}

	playGroups(t, env, matches)
	standings, err = env.tournaments.GetStandings(ctx, tournament.ID)
	require.NoError(t, err)

	first := standings.GroupA[0]
	assert.Equal(t, "A", first.TeamID)
	assert.Equal(t, 1, first.Rank)
	assert.Equal(t, 2, first.Wins)
	assert.Equal(t, 4, first.GamesWon)
	assert.Equal(t, 1, first.GamesLost)
	assert.Equal(t, 4, first.Points)
	assert.Equal(t, []string{"D", "E", "F"}, []string{standings.GroupB[0].TeamID, standings.GroupB[1].TeamID, standings.GroupB[2].TeamID})

	elimination := eliminationBracket(t, env)
	_, err = env.tournaments.GetStandings(ctx, elimination.ID)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTournamentLocksSerialize(t *testing.T) {
	locks := NewTournamentLocks()
	id := uuid.New()

	unlock := locks.Lock(id)
	acquired := make(chan struct{})
	go func() {
		release := locks.Lock(id)
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while the first was held")
	default:
	}

	// Other tournaments are not blocked.
	other := locks.Lock(uuid.New())
	other()

	unlock()
	<-acquired

	assert.Eventually(t, func() bool {
		locks.mu.Lock()
		defer locks.mu.Unlock()
		return len(locks.locks) == 0
	}, time.Second, time.Millisecond, "released locks are dropped")
}
