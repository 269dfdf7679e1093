package service

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/club-brackets/internal/bracket"
	"github.com/AdamBeresnev/club-brackets/internal/metrics"
	"github.com/AdamBeresnev/club-brackets/internal/store"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Advancement policies, also used as the metrics label.
const (
	PolicyRoundRobin = "round_robin"
	PolicyGroupFinal = "group_final"
	PolicyDirect     = "direct"
)

// Advancer moves participants forward after a match completes. Every method runs on
// the caller's queryer so a whole pass commits or rolls back with the result that
// triggered it.
type Advancer struct {
	store   *store.TournamentStore
	metrics metrics.Metrics
	clock   clockwork.Clock
}

func NewAdvancer(store *store.TournamentStore, m metrics.Metrics, clock clockwork.Clock) *Advancer {
	return &Advancer{store: store, metrics: m, clock: clock}
}

// Advance runs the pass for a freshly completed match. A bracket that is not ready
// to move yet is not an error.
func (a *Advancer) Advance(ctx context.Context, q store.Queryer, match *bracket.Match) error {
	t, err := a.store.GetTournament(ctx, q, match.TournamentID)
	if err != nil {
		return notFound(err, "tournament")
	}

	policy := a.policyFor(t, match)

	var changed bool
	switch policy {
	case PolicyRoundRobin:
		changed, err = a.advancePlayoffs(ctx, q, t)
	case PolicyGroupFinal:
		changed, err = a.advanceGroupFinal(ctx, q, match)
	case PolicyDirect:
		changed, err = a.advanceWinner(ctx, q, match)
	}
	if err != nil {
		return err
	}
	if changed {
		a.metrics.IncAdvancement(policy)
	}

	return a.recordChampion(ctx, q, t, match)
}

// policyFor picks how the completed match moves the bracket, or "" when it does not.
func (a *Advancer) policyFor(t *bracket.Tournament, match *bracket.Match) string {
	switch t.Shape {
	case bracket.RoundRobinToPlayoff:
		if match.Round != 1 {
			return ""
		}
		if t.GroupSize() == bracket.MinGroupSize {
			return PolicyGroupFinal
		}
		return PolicyRoundRobin
	case bracket.SingleEliminationDouble:
		if match.Round < bracket.SingleEliminationFinalRound {
			return PolicyDirect
		}
	}
	return ""
}

// advancePlayoffs seeds the Final with both group winners and the 3rd place match
// with both runners-up once every group match is done. It always re-derives from
// the current standings, so running it again changes nothing.
func (a *Advancer) advancePlayoffs(ctx context.Context, q store.Queryer, t *bracket.Tournament) (bool, error) {
	if !t.HasGroups() {
		log.Debug("Playoff advancement skipped, groups not configured", "tournament", t.ID)
		return false, nil
	}

	groupA, err := a.store.FindMatches(ctx, q, t.ID, 1, bracket.WinnersBracket)
	if err != nil {
		return false, fmt.Errorf("failed to get group A matches: %w", err)
	}
	groupB, err := a.store.FindMatches(ctx, q, t.ID, 1, bracket.LosersBracket)
	if err != nil {
		return false, fmt.Errorf("failed to get group B matches: %w", err)
	}

	if !groupStageComplete(groupA) || !groupStageComplete(groupB) {
		log.Debug("Not all group matches completed yet", "tournament", t.ID)
		return false, nil
	}

	standingsA := bracket.ComputeStandings(groupA, t.GroupA)
	standingsB := bracket.ComputeStandings(groupB, t.GroupB)

	log.Info("Advancing group stage to playoffs", "tournament", t.ID,
		"final", teamAt(standingsA, 0)+" vs "+teamAt(standingsB, 0),
		"third_place", teamAt(standingsA, 1)+" vs "+teamAt(standingsB, 1))

	changed := false
	if len(standingsA) > 0 && len(standingsB) > 0 {
		c, err := a.placePlayoff(ctx, q, t.ID, bracket.WinnersBracket, standingsA[0].TeamID, standingsB[0].TeamID)
		if err != nil {
			return false, fmt.Errorf("failed to place final: %w", err)
		}
		changed = changed || c
	}
	if len(standingsA) > 1 && len(standingsB) > 1 {
		c, err := a.placePlayoff(ctx, q, t.ID, bracket.LosersBracket, standingsA[1].TeamID, standingsB[1].TeamID)
		if err != nil {
			return false, fmt.Errorf("failed to place third place match: %w", err)
		}
		changed = changed || c
	}
	return changed, nil
}

// groupStageComplete reports whether a group has matches and all of them are done.
// A group without any matches is not complete, so playoffs are never seeded
// before the group stage has been generated.
func groupStageComplete(matches []bracket.Match) bool {
	if len(matches) == 0 {
		return false
	}
	for i := range matches {
		if !matches[i].Completed {
			return false
		}
	}
	return true
}

func teamAt(standings []bracket.Standing, i int) string {
	if i < len(standings) {
		return standings[i].TeamID
	}
	return bracket.Placeholder
}

// placePlayoff finds or creates the round 2 match of a partition and sets its pair.
func (a *Advancer) placePlayoff(ctx context.Context, q store.Queryer, tournamentID uuid.UUID, bt bracket.BracketType, p1, p2 string) (bool, error) {
	existing, err := a.store.FindMatches(ctx, q, tournamentID, bracket.RoundRobinPlayoffRound, bt)
	if err != nil {
		return false, err
	}

	now := a.clock.Now().UTC()
	if len(existing) == 0 {
		m := bracket.NewMatch(tournamentID, bracket.RoundRobinPlayoffRound, bt, p1, p2)
		m.CreatedAt, m.UpdatedAt = now, now
		if err := a.store.CreateMatches(ctx, q, []bracket.Match{m}); err != nil {
			return false, err
		}
		log.Info("Created playoff match", "tournament", tournamentID, "bracket", bt, "match", m.ID)
		return true, nil
	}

	m := existing[0]
	if m.Participant1 == p1 && m.Participant2 == p2 {
		return false, nil
	}
	if m.Completed {
		log.Warn("Playoff match already completed, standings no longer match its participants",
			"tournament", tournamentID, "match", m.ID, "bracket", bt,
			"expected", p1+" vs "+p2, "actual", m.Participant1+" vs "+m.Participant2)
		return false, nil
	}

	m.Participant1, m.Participant2 = p1, p2
	m.UpdatedAt = now
	if err := a.store.UpdateMatch(ctx, q, &m); err != nil {
		return false, err
	}
	log.Info("Updated playoff match", "tournament", tournamentID, "bracket", bt, "match", m.ID)
	return true, nil
}

// advanceGroupFinal handles groups of two: the only group match sends its winner to
// the Final and its loser to the 3rd place match.
func (a *Advancer) advanceGroupFinal(ctx context.Context, q store.Queryer, match *bracket.Match) (bool, error) {
	wonFinal, err := a.fillNext(ctx, q, match.TournamentID, bracket.RoundRobinPlayoffRound, bracket.WinnersBracket, *match.Winner)
	if err != nil {
		return false, fmt.Errorf("failed to advance winner to final: %w", err)
	}
	wonThird, err := a.fillNext(ctx, q, match.TournamentID, bracket.RoundRobinPlayoffRound, bracket.LosersBracket, *match.Loser)
	if err != nil {
		return false, fmt.Errorf("failed to advance loser to third place: %w", err)
	}
	return wonFinal || wonThird, nil
}

// advanceWinner moves the winner one round up inside its own partition.
func (a *Advancer) advanceWinner(ctx context.Context, q store.Queryer, match *bracket.Match) (bool, error) {
	changed, err := a.fillNext(ctx, q, match.TournamentID, match.Round+1, match.BracketType, *match.Winner)
	if err != nil {
		return false, fmt.Errorf("failed to advance winner: %w", err)
	}
	return changed, nil
}

// fillNext puts participant into the first open slot of the first round/partition
// match that has one. A participant already placed there is left alone.
func (a *Advancer) fillNext(ctx context.Context, q store.Queryer, tournamentID uuid.UUID, round int, bt bracket.BracketType, participant string) (bool, error) {
	if bracket.IsPlaceholder(participant) {
		return false, nil
	}

	candidates, err := a.store.FindMatches(ctx, q, tournamentID, round, bt)
	if err != nil {
		return false, err
	}

	for i := range candidates {
		if candidates[i].HasParticipant(participant) {
			log.Debug("Participant already advanced", "tournament", tournamentID, "participant", participant, "round", round, "bracket", bt)
			return false, nil
		}
	}

	for i := range candidates {
		next := &candidates[i]
		if !next.FillSlot(participant) {
			continue
		}
		next.UpdatedAt = a.clock.Now().UTC()
		if err := a.store.UpdateMatch(ctx, q, next); err != nil {
			return false, err
		}
		log.Info("Advanced participant", "tournament", tournamentID, "participant", participant, "round", round, "bracket", bt, "match", next.ID)
		return true, nil
	}

	log.Warn("No open slot to advance into", "tournament", tournamentID, "participant", participant, "round", round, "bracket", bt)
	return false, nil
}

// recordChampion stores the winner of a partition's deciding match and closes the
// tournament once both partitions have one.
func (a *Advancer) recordChampion(ctx context.Context, q store.Queryer, t *bracket.Tournament, match *bracket.Match) error {
	if match.Round != bracket.ChampionRound || match.Winner == nil {
		return nil
	}

	winner := *match.Winner
	switch match.BracketType {
	case bracket.WinnersBracket:
		t.WinnersChampion = &winner
	case bracket.LosersBracket:
		t.ConsolationChampion = &winner
	}
	if t.WinnersChampion != nil && t.ConsolationChampion != nil {
		t.Status = bracket.TournamentCompleted
	}

	if err := a.store.UpdateTournament(ctx, q, t); err != nil {
		return fmt.Errorf("failed to record champion: %w", err)
	}
	log.Info("Champion recorded", "tournament", t.ID, "bracket", match.BracketType, "champion", winner, "status", t.Status)
	return nil
}

// MoveAcrossPartitions is where participants would change partition after a result.
// The winners and losers ladders are independent, so it never moves anyone.
func (a *Advancer) MoveAcrossPartitions(_ context.Context, match *bracket.Match) {
	log.Debug("Partitions are independent, nothing to move", "match", match.ID, "bracket", match.BracketType)
}

// Retract undoes what Advance did for a completed match that is about to be reset:
// the champion it produced and, when cascade is set, the downstream slots it filled.
// A downstream match that was already played blocks the cascade.
func (a *Advancer) Retract(ctx context.Context, q store.Queryer, match *bracket.Match, cascade bool) error {
	if !match.Completed {
		return nil
	}

	t, err := a.store.GetTournament(ctx, q, match.TournamentID)
	if err != nil {
		return notFound(err, "tournament")
	}

	if match.Round == bracket.ChampionRound {
		if err := a.clearChampion(ctx, q, t, match.BracketType); err != nil {
			return err
		}
	}

	if !cascade {
		return nil
	}

	switch a.policyFor(t, match) {
	case PolicyRoundRobin:
		for _, bt := range []bracket.BracketType{bracket.WinnersBracket, bracket.LosersBracket} {
			if err := a.clearPlayoff(ctx, q, t.ID, bt); err != nil {
				return err
			}
		}
	case PolicyGroupFinal:
		if err := a.clearSlot(ctx, q, t.ID, bracket.RoundRobinPlayoffRound, bracket.WinnersBracket, *match.Winner); err != nil {
			return err
		}
		if err := a.clearSlot(ctx, q, t.ID, bracket.RoundRobinPlayoffRound, bracket.LosersBracket, *match.Loser); err != nil {
			return err
		}
	case PolicyDirect:
		if err := a.clearSlot(ctx, q, t.ID, match.Round+1, match.BracketType, *match.Winner); err != nil {
			return err
		}
	}
	return nil
}

func (a *Advancer) clearChampion(ctx context.Context, q store.Queryer, t *bracket.Tournament, bt bracket.BracketType) error {
	switch bt {
	case bracket.WinnersBracket:
		t.WinnersChampion = nil
	case bracket.LosersBracket:
		t.ConsolationChampion = nil
	}
	if t.Status == bracket.TournamentCompleted {
		t.Status = bracket.TournamentInProgress
	}
	if err := a.store.UpdateTournament(ctx, q, t); err != nil {
		return fmt.Errorf("failed to clear champion: %w", err)
	}
	return nil
}

func (a *Advancer) clearSlot(ctx context.Context, q store.Queryer, tournamentID uuid.UUID, round int, bt bracket.BracketType, participant string) error {
	candidates, err := a.store.FindMatches(ctx, q, tournamentID, round, bt)
	if err != nil {
		return err
	}
	for i := range candidates {
		next := &candidates[i]
		if !next.HasParticipant(participant) {
			continue
		}
		if next.Completed {
			return validationf("match %s in round %d already completed", next.ID, round)
		}
		next.ClearSlot(participant)
		next.UpdatedAt = a.clock.Now().UTC()
		if err := a.store.UpdateMatch(ctx, q, next); err != nil {
			return err
		}
		log.Info("Cleared advanced participant", "tournament", tournamentID, "participant", participant, "match", next.ID)
	}
	return nil
}

func (a *Advancer) clearPlayoff(ctx context.Context, q store.Queryer, tournamentID uuid.UUID, bt bracket.BracketType) error {
	playoffs, err := a.store.FindMatches(ctx, q, tournamentID, bracket.RoundRobinPlayoffRound, bt)
	if err != nil {
		return err
	}
	for i := range playoffs {
		m := &playoffs[i]
		if bracket.IsPlaceholder(m.Participant1) && bracket.IsPlaceholder(m.Participant2) {
			continue
		}
		if m.Completed {
			return validationf("playoff match %s already completed", m.ID)
		}
		m.Participant1, m.Participant2 = bracket.Placeholder, bracket.Placeholder
		m.UpdatedAt = a.clock.Now().UTC()
		if err := a.store.UpdateMatch(ctx, q, m); err != nil {
			return err
		}
	}
	return nil
}

// RecalculatePlayoffs forces the group stage to playoff derivation and returns the
// round 2 matches, Final first.
func (a *Advancer) RecalculatePlayoffs(ctx context.Context, q store.Queryer, tournamentID uuid.UUID) ([]bracket.Match, error) {
	t, err := a.store.GetTournament(ctx, q, tournamentID)
	if err != nil {
		return nil, notFound(err, "tournament")
	}
	if !t.HasGroups() {
		return nil, validationf("tournament %s has no groups configured", tournamentID)
	}

	changed, err := a.advancePlayoffs(ctx, q, t)
	if err != nil {
		return nil, err
	}
	if changed {
		a.metrics.IncAdvancement(PolicyRoundRobin)
	}
	a.metrics.IncPlayoffRecalculations()

	final, err := a.store.FindMatches(ctx, q, tournamentID, bracket.RoundRobinPlayoffRound, bracket.WinnersBracket)
	if err != nil {
		return nil, err
	}
	third, err := a.store.FindMatches(ctx, q, tournamentID, bracket.RoundRobinPlayoffRound, bracket.LosersBracket)
	if err != nil {
		return nil, err
	}
	return append(final, third...), nil
}
