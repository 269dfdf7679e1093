package service

import (
	"context"
	"testing"
	"time"

	"github.com/AdamBeresnev/club-brackets/internal/bracket"
	"github.com/AdamBeresnev/club-brackets/internal/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitResultValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := eliminationBracket(t, env)

	quarter := env.find(t, tournament.ID, 1, bracket.WinnersBracket)[0] // A v D
	semi := env.find(t, tournament.ID, 2, bracket.WinnersBracket)[0]

	testCases := []struct {
		name    string
		input   ResultInput
		wantErr error
	}{
		{"unknown match", ResultInput{MatchID: uuid.New(), WinnerID: "A", LoserID: "D"}, ErrNotFound},
		{"pending match", ResultInput{MatchID: semi.ID, WinnerID: "A", LoserID: "B"}, ErrValidation},
		{"winner equals loser", ResultInput{MatchID: quarter.ID, WinnerID: "A", LoserID: "A"}, ErrValidation},
		{"outsider as winner", ResultInput{MatchID: quarter.ID, WinnerID: "B", LoserID: "D"}, ErrValidation},
		{"placeholder as loser", ResultInput{MatchID: quarter.ID, WinnerID: "A", LoserID: bracket.Placeholder}, ErrValidation},
		{"negative score", ResultInput{MatchID: quarter.ID, WinnerID: "A", LoserID: "D",
			Score: &bracket.Score{Participant1Score: -1, Participant2Score: 2}}, ErrValidation},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.matches.SubmitResult(ctx, tc.input)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	stored, err := env.store.GetMatch(ctx, env.db, quarter.ID)
	require.NoError(t, err)
	assert.False(t, stored.Completed)
	assert.Zero(t, env.metrics.ResultsSubmitted())
}

func TestSubmitResultRecordsOutcome(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := eliminationBracket(t, env)
	quarter := env.find(t, tournament.ID, 1, bracket.WinnersBracket)[0]

	env.clock.Advance(time.Hour)
	result, err := env.matches.SubmitResult(ctx, ResultInput{
		MatchID:  quarter.ID,
		WinnerID: "D",
		LoserID:  "A",
		Score:    &bracket.Score{Participant1Score: 1, Participant2Score: 2},
	})
	require.NoError(t, err)
	assert.True(t, result.IsWinner("D"))

	stored, err := env.store.GetMatch(ctx, env.db, quarter.ID)
	require.NoError(t, err)
	assert.True(t, stored.Completed)
	assert.Equal(t, "D", utils.OrZero(stored.Winner))
	assert.Equal(t, "A", utils.OrZero(stored.Loser))
	require.NotNil(t, stored.Score)
	assert.Equal(t, 2, stored.Score.Participant2Score)
	require.NotNil(t, stored.CompletedAt)
	assert.True(t, stored.CompletedAt.Equal(env.clock.Now()))

	assert.Equal(t, 1, env.metrics.ResultsSubmitted())
	assert.Equal(t, []float64{0}, env.metrics.Durations())
}

func TestSubmitResultKeepsLiveScore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := eliminationBracket(t, env)
	quarter := env.find(t, tournament.ID, 1, bracket.WinnersBracket)[0]

	_, err := env.matches.UpdateLiveScore(ctx, LiveScoreInput{MatchID: quarter.ID, ScoreA: 2, ScoreB: 1})
	require.NoError(t, err)

	_, err = env.matches.SubmitResult(ctx, ResultInput{MatchID: quarter.ID, WinnerID: "A", LoserID: "D"})
	require.NoError(t, err)

	stored, err := env.store.GetMatch(ctx, env.db, quarter.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Score)
	assert.Equal(t, 2, stored.Score.Participant1Score)
	assert.Equal(t, 1, stored.Score.Participant2Score)
}

func TestCompletedMatchIsImmutable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := eliminationBracket(t, env)
	quarter := env.find(t, tournament.ID, 1, bracket.WinnersBracket)[0]
	env.submit(t, quarter, "A", 2, 0)

	_, err := env.matches.SubmitResult(ctx, ResultInput{MatchID: quarter.ID, WinnerID: "D", LoserID: "A"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.matches.UpdateLiveScore(ctx, LiveScoreInput{MatchID: quarter.ID, ScoreA: 0, ScoreB: 3})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.matches.DeleteMatch(ctx, quarter.ID)
	assert.ErrorIs(t, err, ErrValidation)

	stored, err := env.store.GetMatch(ctx, env.db, quarter.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", utils.OrZero(stored.Winner))
	assert.Equal(t, 2, stored.Score.Participant1Score)
}

func TestUpdateLiveScore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := eliminationBracket(t, env)
	quarter := env.find(t, tournament.ID, 1, bracket.WinnersBracket)[0]

	match, err := env.matches.UpdateLiveScore(ctx, LiveScoreInput{MatchID: quarter.ID, ScoreA: 1, ScoreB: 0, PointsA: utils.Ptr(11)})
	require.NoError(t, err)
	require.NotNil(t, match.Score)
	assert.Equal(t, 11, utils.OrZero(match.Score.Participant1Points))
	require.NotNil(t, match.Score.Participant2Points)
	assert.Equal(t, 0, *match.Score.Participant2Points)
	assert.False(t, match.Completed)

	match, err = env.matches.UpdateLiveScore(ctx, LiveScoreInput{MatchID: quarter.ID, ScoreA: 1, ScoreB: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, match.Score.Participant2Score)
	assert.Equal(t, 0, utils.OrZero(match.Score.Participant1Points))

	_, err = env.matches.UpdateLiveScore(ctx, LiveScoreInput{MatchID: quarter.ID, ScoreA: -1, ScoreB: 0})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.matches.UpdateLiveScore(ctx, LiveScoreInput{MatchID: uuid.New(), ScoreA: 1, ScoreB: 0})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 2, env.metrics.LiveScoreUpdates())
}

func TestDeleteMatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := eliminationBracket(t, env)
	final := env.find(t, tournament.ID, bracket.SingleEliminationFinalRound, bracket.LosersBracket)[0]

	deleted, err := env.matches.DeleteMatch(ctx, final.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = env.store.GetMatch(ctx, env.db, final.ID)
	assert.Error(t, err)

	_, err = env.matches.DeleteMatch(ctx, final.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResetMatchWithoutCascade(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := eliminationBracket(t, env)
	quarter := env.find(t, tournament.ID, 1, bracket.WinnersBracket)[0]
	env.submit(t, quarter, "A", 2, 0)

	reset, err := env.matches.ResetMatch(ctx, quarter.ID)
	require.NoError(t, err)
	assert.False(t, reset.Completed)
	assert.Nil(t, reset.Winner)
	assert.Nil(t, reset.Score)
	assert.Equal(t, bracket.MatchReady, reset.State())

	semi := env.find(t, tournament.ID, 2, bracket.WinnersBracket)[0]
	assertPair(t, semi, "A", bracket.Placeholder)
	assert.Equal(t, 1, env.metrics.MatchResets())

	// The result can be entered again and advancing the same winner is a no-op.
	env.submit(t, quarter, "A", 2, 1)
	semi = env.find(t, tournament.ID, 2, bracket.WinnersBracket)[0]
	assertPair(t, semi, "A", bracket.Placeholder)
}

func TestResetMatchWithCascade(t *testing.T) {
	env := newTestEnv(t, WithResetCascade(true))
	ctx := context.Background()
	tournament := eliminationBracket(t, env)
	quarters := env.find(t, tournament.ID, 1, bracket.WinnersBracket)
	env.submit(t, quarters[0], "A", 2, 0)
	env.submit(t, quarters[1], "B", 2, 0)

	_, err := env.matches.ResetMatch(ctx, quarters[0].ID)
	require.NoError(t, err)

	semi := env.find(t, tournament.ID, 2, bracket.WinnersBracket)[0]
	assertPair(t, semi, bracket.Placeholder, "B")

	env.submit(t, quarters[0], "D", 2, 1)
	semi = env.find(t, tournament.ID, 2, bracket.WinnersBracket)[0]
	assertPair(t, semi, "D", "B")
}

func TestResetMatchCascadeBlockedByPlayedMatch(t *testing.T) {
	env := newTestEnv(t, WithResetCascade(true))
	ctx := context.Background()
	tournament := eliminationBracket(t, env)
	quarters := env.find(t, tournament.ID, 1, bracket.WinnersBracket)
	env.submit(t, quarters[0], "A", 2, 0)
	env.submit(t, quarters[1], "B", 2, 0)
	env.submit(t, env.find(t, tournament.ID, 2, bracket.WinnersBracket)[0], "A", 2, 0)

	_, err := env.matches.ResetMatch(ctx, quarters[0].ID)
	require.ErrorIs(t, err, ErrValidation)

	stored, err := env.store.GetMatch(ctx, env.db, quarters[0].ID)
	require.NoError(t, err)
	assert.True(t, stored.Completed, "a refused reset leaves the match alone")
	assert.Zero(t, env.metrics.MatchResets())
}

func TestResetChampionMatchReopensTournament(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament, matches := env.roundRobin(t, []string{"A", "B"}, []string{"C", "D"})
	env.submit(t, pairing(t, matches, "A", "B"), "A", 2, 0)
	env.submit(t, pairing(t, matches, "C", "D"), "C", 2, 0)

	final := env.find(t, tournament.ID, bracket.RoundRobinPlayoffRound, bracket.WinnersBracket)[0]
	third := env.find(t, tournament.ID, bracket.RoundRobinPlayoffRound, bracket.LosersBracket)[0]
	env.submit(t, final, "A", 2, 1)
	env.submit(t, third, "D", 2, 1)
	require.Equal(t, bracket.TournamentCompleted, env.tournament(t, tournament.ID).Status)

	_, err := env.matches.ResetMatch(ctx, final.ID)
	require.NoError(t, err)

	updated := env.tournament(t, tournament.ID)
	assert.Nil(t, updated.WinnersChampion)
	assert.Equal(t, "D", utils.OrZero(updated.ConsolationChampion))
	assert.Equal(t, bracket.TournamentInProgress, updated.Status)
}

func TestResetGroupMatchCascadeClearsPlayoffs(t *testing.T) {
	env := newTestEnv(t, WithResetCascade(true))
	ctx := context.Background()
	tournament, matches := env.roundRobin(t, groupOfThreeA, groupOfThreeB)
	playGroups(t, env, matches)

	_, err := env.matches.ResetMatch(ctx, pairing(t, matches, "D", "E").ID)
	require.NoError(t, err)

	for _, bt := range []bracket.BracketType{bracket.WinnersBracket, bracket.LosersBracket} {
		playoff := env.find(t, tournament.ID, bracket.RoundRobinPlayoffRound, bt)
		require.Len(t, playoff, 1)
		assertPair(t, playoff[0], bracket.Placeholder, bracket.Placeholder)
	}

	env.submit(t, pairing(t, matches, "D", "E"), "E", 2, 0)
	final := env.find(t, tournament.ID, bracket.RoundRobinPlayoffRound, bracket.WinnersBracket)[0]
	assertPair(t, final, "A", "E")
}

func TestResetGroupFinalCascade(t *testing.T) {
	env := newTestEnv(t, WithResetCascade(true))
	ctx := context.Background()
	tournament, matches := env.roundRobin(t, []string{"A", "B"}, []string{"C", "D"})
	env.submit(t, pairing(t, matches, "A", "B"), "A", 2, 0)
	env.submit(t, pairing(t, matches, "C", "D"), "C", 2, 0)

	_, err := env.matches.ResetMatch(ctx, pairing(t, matches, "A", "B").ID)
	require.NoError(t, err)

	final := env.find(t, tournament.ID, bracket.RoundRobinPlayoffRound, bracket.WinnersBracket)[0]
	assertPair(t, final, bracket.Placeholder, "C")
	third := env.find(t, tournament.ID, bracket.RoundRobinPlayoffRound, bracket.LosersBracket)[0]
	assertPair(t, third, bracket.Placeholder, "D")
}

func TestResetUnplayedMatch(t *testing.T) {
	env := newTestEnv(t, WithResetCascade(true))
	ctx := context.Background()
	tournament := eliminationBracket(t, env)
	quarter := env.find(t, tournament.ID, 1, bracket.WinnersBracket)[0]

	_, err := env.matches.UpdateLiveScore(ctx, LiveScoreInput{MatchID: quarter.ID, ScoreA: 1, ScoreB: 1})
	require.NoError(t, err)

	reset, err := env.matches.ResetMatch(ctx, quarter.ID)
	require.NoError(t, err)
	assert.Nil(t, reset.Score)

	_, err = env.matches.ResetMatch(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateMatchSchedule(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := eliminationBracket(t, env)
	quarter := env.find(t, tournament.ID, 1, bracket.WinnersBracket)[0]

	date := time.Date(2025, 6, 21, 0, 0, 0, 0, time.UTC)
	match, err := env.matches.UpdateMatchSchedule(ctx, ScheduleInput{MatchID: quarter.ID, ScheduledDate: &date, ScheduledTime: utils.Ptr("18:30")})
	require.NoError(t, err)
	assert.Equal(t, "18:30", utils.OrZero(match.ScheduledTime))

	stored, err := env.store.GetMatch(ctx, env.db, quarter.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ScheduledDate)
	assert.True(t, stored.ScheduledDate.Equal(date))
	assert.Equal(t, "18:30", utils.OrZero(stored.ScheduledTime))

	_, err = env.matches.UpdateMatchSchedule(ctx, ScheduleInput{MatchID: quarter.ID, ScheduledTime: utils.Ptr("25:99")})
	assert.ErrorIs(t, err, ErrValidation)

	match, err = env.matches.UpdateMatchSchedule(ctx, ScheduleInput{MatchID: quarter.ID, ScheduledTime: utils.Ptr("")})
	require.NoError(t, err)
	assert.Nil(t, match.ScheduledTime)
	assert.Nil(t, match.ScheduledDate)
}

func TestGetMatchData(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tournament := eliminationBracket(t, env)
	quarters := env.find(t, tournament.ID, 1, bracket.WinnersBracket)
	semi := env.find(t, tournament.ID, 2, bracket.WinnersBracket)[0]

	data, err := env.matches.GetMatchData(ctx, semi.ID)
	require.NoError(t, err)
	assert.Equal(t, bracket.Placeholder, data.Participant1Name)
	assert.Equal(t, bracket.Placeholder, data.Participant2Name)

	env.submit(t, quarters[0], "A", 2, 0)
	data, err = env.matches.GetMatchData(ctx, semi.ID)
	require.NoError(t, err)
	assert.Equal(t, "Team A", data.Participant1Name)
	assert.Equal(t, bracket.Placeholder, data.Participant2Name)
	require.NotNil(t, data.NextMatchID)
	assert.Equal(t, quarters[1].ID, *data.NextMatchID)

	_, err = env.matches.GetMatchData(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecalculatePlayoffMatchesErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("no groups", func(t *testing.T) {
		tournament := env.createTournament(t, bracket.RoundRobinToPlayoff, bracket.RandomBracketing)
		_, err := env.matches.RecalculatePlayoffMatches(ctx, tournament.ID)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("single elimination", func(t *testing.T) {
		tournament := eliminationBracket(t, env)
		_, err := env.matches.RecalculatePlayoffMatches(ctx, tournament.ID)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("unknown tournament", func(t *testing.T) {
		_, err := env.matches.RecalculatePlayoffMatches(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("group stage unfinished", func(t *testing.T) {
		tournament, _ := env.roundRobin(t, groupOfThreeA, groupOfThreeB)
		playoffs, err := env.matches.RecalculatePlayoffMatches(ctx, tournament.ID)
		require.NoError(t, err)
		require.Len(t, playoffs, 2)
		assertPair(t, playoffs[0], bracket.Placeholder, bracket.Placeholder)
	})
}
