package service

import (
	"context"
	"testing"

	"github.com/AdamBeresnev/club-brackets/internal/bracket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var (
	groupOfThreeA = []string{"A", "B", "C"}
	groupOfThreeB = []string{"D", "E", "F"}
)

// playGroups completes both groups of three so that A, B, C and D, E, F finish in order.
func playGroups(t *testing.T, env *testEnv, matches []bracket.Match) {
	t.Helper()

	env.submit(t, pairing(t, matches, "A", "B"), "A", 2, 0)
	env.submit(t, pairing(t, matches, "A", "C"), "A", 2, 1)
	env.submit(t, pairing(t, matches, "B", "C"), "B", 2, 0)
	env.submit(t, pairing(t, matches, "D", "E"), "D", 2, 1)
	env.submit(t, pairing(t, matches, "D", "F"), "D", 2, 0)
	env.submit(t, pairing(t, matches, "E", "F"), "E", 2, 1)
}

func assertPair(t *testing.T, m bracket.Match, p1, p2 string) {
	t.Helper()
	assert.Equal(t, p1, m.Participant1, "participant 1 of match %s", m.ID)
	assert.Equal(t, p2, m.Participant2, "participant 2 of match %s", m.ID)
}

func TestRoundRobinPlayoffsWaitForGroupStage(t *testing.T) {
	env := newTestEnv(t)
	tournament, matches := env.roundRobin(t, groupOfThreeA, groupOfThreeB)

	env.submit(t, pairing(t, matches, "A", "B"), "A", 2, 0)
	env.submit(t, pairing(t, matches, "A", "C"), "A", 2, 1)
	env.submit(t, pairing(t, matches, "B", "C"), "B", 2, 0)

	final := env.find(t, tournament.ID, bracket.RoundRobinPlayoffRound, bracket.WinnersBracket)
	require.Len(t, final, 1)
	assertPair(t, final[0], bracket.Placeholder, bracket.Placeholder)
	assert.Zero(t, env.metrics.Advancements(PolicyRoundRobin))
}

func TestRoundRobinPlayoffsSeededFromStandings(t *testing.T) {
	env := newTestEnv(t)
	tournament, matches := env.roundRobin(t, groupOfThreeA, groupOfThreeB)

	playGroups(t, env, matches)

	final := env.find(t, tournament.ID, bracket.RoundRobinPlayoffRound, bracket.WinnersBracket)
	require.Len(t, final, 1)
	assertPair(t, final[0], "A", "D")

	third := env.find(t, tournament.ID, bracket.RoundRobinPlayoffRound, bracket.LosersBracket)
	require.Len(t, third, 1)
	assertPair(t, third[0], "B", "E")

	assert.Equal(t, 1, env.metrics.Advancements(PolicyRoundRobin))
	assert.Equal(t, 6, env.metrics.ResultsSubmitted())
	assert.Len(t, env.metrics.Durations(), 6)
}

func TestRoundRobinPlayoffsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament, matches := env.roundRobin(t, groupOfThreeA, groupOfThreeB)
	playGroups(t, env, matches)

	before := env.find(t, tournament.ID, bracket.RoundRobinPlayoffRound, bracket.WinnersBracket)

	for i := 0; i < 3; i++ {
		playoffs, err := env.matches.RecalculatePlayoffMatches(ctx, tournament.ID)
		require.NoError(t, err)
		require.Len(t, playoffs, 2)
		assert.Equal(t, bracket.WinnersBracket, playoffs[0].BracketType)
		assertPair(t, playoffs[0], "A", "D")
		assertPair(t, playoffs[1], "B", "E")
	}

	after := env.find(t, tournament.ID, bracket.RoundRobinPlayoffRound, bracket.WinnersBracket)
	require.Len(t, after, 1)
	assert.Equal(t, before[0].ID, after[0].ID)
	assert.Equal(t, before[0].UpdatedAt, after[0].UpdatedAt)

	assert.Equal(t, 1, env.metrics.Advancements(PolicyRoundRobin))
	assert.Equal(t, 3, env.metrics.PlayoffRecalculations())
}

func TestRoundRobinPlayoffsCreatedWhenMissing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament, matches := env.roundRobin(t, groupOfThreeA, groupOfThreeB)

	for _, bt := range []bracket.BracketType{bracket.WinnersBracket, bracket.LosersBracket} {
		playoff := env.find(t, tournament.ID, bracket.RoundRobinPlayoffRound, bt)
		require.Len(t, playoff, 1)
		deleted, err := env.matches.DeleteMatch(ctx, playoff[0].ID)
		require.NoError(t, err)
		require.True(t, deleted)
	}

	playGroups(t, env, matches)

	final := env.find(t, tournament.ID, bracket.RoundRobinPlayoffRound, bracket.WinnersBracket)
	require.Len(t, final, 1)
	assertPair(t, final[0], "A", "D")
	third := env.find(t, tournament.ID, bracket.RoundRobinPlayoffRound, bracket.LosersBracket)
	require.Len(t, third, 1)
	assertPair(t, third[0], "B", "E")
}

func TestCompletedPlayoffIsNeverRewritten(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament, matches := env.roundRobin(t, groupOfThreeA, groupOfThreeB)
	playGroups(t, env, matches)

	final := env.find(t, tournament.ID, bracket.RoundRobinPlayoffRound, bracket.WinnersBracket)[0]
	env.submit(t, final, "A", 2, 1)

	// Flip A v B so that B now tops group A.
	_, err := env.matches.ResetMatch(ctx, pairing(t, matches, "A", "B").ID)
	require.NoError(t, err)
	env.submit(t, pairing(t, matches, "A", "B"), "B", 2, 0)

	stored := env.find(t, tournament.ID, bracket.RoundRobinPlayoffRound, bracket.WinnersBracket)
	require.Len(t, stored, 1)
	assertPair(t, stored[0], "A", "D")
	assert.True(t, stored[0].Completed)

	third := env.find(t, tournament.ID, bracket.RoundRobinPlayoffRound, bracket.LosersBracket)
	require.Len(t, third, 1)
	assertPair(t, third[0], "A", "E")
}

func TestGroupFinalAdvancesWinnerAndLoser(t *testing.T) {
	env := newTestEnv(t)
	tournament, matches := env.roundRobin(t, []string{"A", "B"}, []string{"C", "D"})

	env.submit(t, pairing(t, matches, "A", "B"), "A", 2, 1)

	final := env.find(t, tournament.ID, bracket.RoundRobinPlayoffRound, bracket.WinnersBracket)
	require.Len(t, final, 1)
	assertPair(t, final[0], "A", bracket.Placeholder)
	third := env.find(t, tournament.ID, bracket.RoundRobinPlayoffRound, bracket.LosersBracket)
	require.Len(t, third, 1)
	assertPair(t, third[0], "B", bracket.Placeholder)

	env.submit(t, pairing(t, matches, "C", "D"), "D", 2, 0)

	final = env.find(t, tournament.ID, bracket.RoundRobinPlayoffRound, bracket.WinnersBracket)
	assertPair(t, final[0], "A", "D")
	third = env.find(t, tournament.ID, bracket.RoundRobinPlayoffRound, bracket.LosersBracket)
	assertPair(t, third[0], "B", "C")

	assert.Equal(t, 2, env.metrics.Advancements(PolicyGroupFinal))
	assert.Zero(t, env.metrics.Advancements(PolicyRoundRobin))
}

func TestGroupFinalAdvanceIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament, matches := env.roundRobin(t, []string{"A", "B"}, []string{"C", "D"})

	completed := env.submit(t, pairing(t, matches, "A", "B"), "A", 2, 1)

	require.NoError(t, env.matches.advancer.Advance(ctx, env.db, completed))
	require.NoError(t, env.matches.advancer.Advance(ctx, env.db, completed))

	final := env.find(t, tournament.ID, bracket.RoundRobinPlayoffRound, bracket.WinnersBracket)
	assertPair(t, final[0], "A", bracket.Placeholder)
	third := env.find(t, tournament.ID, bracket.RoundRobinPlayoffRound, bracket.LosersBracket)
	assertPair(t, third[0], "B", bracket.Placeholder)
	assert.Equal(t, 1, env.metrics.Advancements(PolicyGroupFinal))
}

// eliminationBracket returns a generated single elimination tournament seeded A..H.
func eliminationBracket(t *testing.T, env *testEnv) *bracket.Tournament {
	t.Helper()

	tournament := env.createTournament(t, bracket.SingleEliminationDouble, bracket.RandomBracketing)
	env.register(t, tournament.ID, eightTeams...)
	_, err := env.brackets.GenerateMatches(context.Background(), tournament.ID)
	require.NoError(t, err)
	return tournament
}

func TestDirectAdvancementFillsSlotsInOrder(t *testing.T) {
	env := newTestEnv(t)
	tournament := eliminationBracket(t, env)

	quarters := env.find(t, tournament.ID, 1, bracket.WinnersBracket)
	require.Len(t, quarters, 2)

	// The second quarterfinal finishing first still lands in slot 1.
	env.submit(t, quarters[1], "C", 2, 1)
	semi := env.find(t, tournament.ID, 2, bracket.WinnersBracket)
	require.Len(t, semi, 1)
	assertPair(t, semi[0], "C", bracket.Placeholder)
	assert.Equal(t, bracket.MatchPending, semi[0].State())

	env.submit(t, quarters[0], "A", 2, 0)
	semi = env.find(t, tournament.ID, 2, bracket.WinnersBracket)
	assertPair(t, semi[0], "C", "A")
	assert.Equal(t, bracket.MatchReady, semi[0].State())

	losersSemi := env.find(t, tournament.ID, 2, bracket.LosersBracket)
	assertPair(t, losersSemi[0], bracket.Placeholder, bracket.Placeholder)
	assert.Equal(t, 2, env.metrics.Advancements(PolicyDirect))
}

func TestDirectAdvanceIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := eliminationBracket(t, env)

	quarters := env.find(t, tournament.ID, 1, bracket.WinnersBracket)
	completed := env.submit(t, quarters[0], "A", 2, 0)

	require.NoError(t, env.matches.advancer.Advance(ctx, env.db, completed))

	semi := env.find(t, tournament.ID, 2, bracket.WinnersBracket)
	assertPair(t, semi[0], "A", bracket.Placeholder)
	assert.Equal(t, 1, env.metrics.Advancements(PolicyDirect))
}

func TestChampionsCompleteTournament(t *testing.T) {
	env := newTestEnv(t)
	tournament := eliminationBracket(t, env)

	quarters := env.find(t, tournament.ID, 1, bracket.WinnersBracket)
	env.submit(t, quarters[0], "A", 2, 0)
	env.submit(t, quarters[1], "B", 2, 1)
	semi := env.find(t, tournament.ID, 2, bracket.WinnersBracket)[0]
	env.submit(t, semi, "B", 2, 1)

	updated := env.tournament(t, tournament.ID)
	require.NotNil(t, updated.WinnersChampion)
	assert.Equal(t, "B", *updated.WinnersChampion)
	assert.Nil(t, updated.ConsolationChampion)
	assert.Equal(t, bracket.TournamentInProgress, updated.Status)

	final := env.find(t, tournament.ID, bracket.SingleEliminationFinalRound, bracket.WinnersBracket)
	require.Len(t, final, 1)
	assertPair(t, final[0], "B", bracket.Placeholder)

	losers := env.find(t, tournament.ID, 1, bracket.LosersBracket)
	env.submit(t, losers[0], "H", 2, 1)
	env.submit(t, losers[1], "F", 2, 0)
	losersSemi := env.find(t, tournament.ID, 2, bracket.LosersBracket)[0]
	env.submit(t, losersSemi, "F", 2, 0)

	updated = env.tournament(t, tournament.ID)
	require.NotNil(t, updated.ConsolationChampion)
	assert.Equal(t, "F", *updated.ConsolationChampion)
	assert.Equal(t, bracket.TournamentCompleted, updated.Status)
}

func TestRoundRobinChampionsFromPlayoffs(t *testing.T) {
	env := newTestEnv(t)
	tournament, matches := env.roundRobin(t, groupOfThreeA, groupOfThreeB)
	playGroups(t, env, matches)

	env.submit(t, env.find(t, tournament.ID, bracket.RoundRobinPlayoffRound, bracket.WinnersBracket)[0], "D", 2, 1)
	env.submit(t, env.find(t, tournament.ID, bracket.RoundRobinPlayoffRound, bracket.LosersBracket)[0], "B", 2, 0)

	updated := env.tournament(t, tournament.ID)
	assert.Equal(t, "D", *updated.WinnersChampion)
	assert.Equal(t, "B", *updated.ConsolationChampion)
	assert.Equal(t, bracket.TournamentCompleted, updated.Status)
}

func TestConcurrentResultsAdvanceOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament, matches := env.roundRobin(t, groupOfThreeA, groupOfThreeB)

	results := []struct {
		a, b, winner string
	}{
		{"A", "B", "A"}, {"A", "C", "A"}, {"B", "C", "B"},
		{"D", "E", "D"}, {"D", "F", "D"}, {"E", "F", "E"},
	}

	g, gCtx := errgroup.WithContext(ctx)
	for _, r := range results {
		m := pairing(t, matches, r.a, r.b)
		loser := r.a
		if r.winner == r.a {
			loser = r.b
		}
		score := &bracket.Score{Participant1Score: 0, Participant2Score: 2}
		if r.winner == m.Participant1 {
			score = &bracket.Score{Participant1Score: 2, Participant2Score: 0}
		}
		g.Go(func() error {
			_, err := env.matches.SubmitResult(gCtx, ResultInput{MatchID: m.ID, WinnerID: r.winner, LoserID: loser, Score: score})
			return err
		})
	}
	require.NoError(t, g.Wait())

	final := env.find(t, tournament.ID, bracket.RoundRobinPlayoffRound, bracket.WinnersBracket)
	require.Len(t, final, 1)
	assertPair(t, final[0], "A", "D")
	third := env.find(t, tournament.ID, bracket.RoundRobinPlayoffRound, bracket.LosersBracket)
	require.Len(t, third, 1)
	assertPair(t, third[0], "B", "E")
	assert.Equal(t, 1, env.metrics.Advancements(PolicyRoundRobin))
}

func TestMoveAcrossPartitionsLeavesBracketAlone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := eliminationBracket(t, env)

	before, err := env.store.GetMatches(ctx, env.db, tournament.ID)
	require.NoError(t, err)

	env.matches.advancer.MoveAcrossPartitions(ctx, &before[0])

	after, err := env.store.GetMatches(ctx, env.db, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestGroupStageComplete(t *testing.T) {
	done := bracket.Match{Completed: true}
	open := bracket.Match{}

	assert.False(t, groupStageComplete(nil))
	assert.False(t, groupStageComplete([]bracket.Match{done, open}))
	assert.True(t, groupStageComplete([]bracket.Match{done, done}))
}
