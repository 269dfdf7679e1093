package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/AdamBeresnev/club-brackets/internal/bracket"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// ImportRoster registers one participant per non-empty line. A line is either a name
// or "id; name" when the player or team already has a club id.
func (s *TournamentService) ImportRoster(ctx context.Context, tournamentID uuid.UUID, roster string) ([]bracket.Participant, error) {
	lines, err := parseRoster(roster)
	if err != nil {
		return nil, err
	}

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

	var participants []bracket.Participant
	for _, l := range lines {
		p, err := s.addParticipant(ctx, tx, t, taken, l.input)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", l.number, err)
		}
		participants = append(participants, *p)
	}

	if err := s.store.UpdateTournament(ctx, tx, t); err != nil {
		return nil, fmt.Errorf("failed to update tournament: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Info("Roster imported", "tournament", tournamentID, "participants", len(participants))
	return participants, nil
}

// rosterLine is a participant with the line it was read from, counting blank lines.
type rosterLine struct {
	number int
	input  ParticipantInput
}

func parseRoster(roster string) ([]rosterLine, error) {
	var lines []rosterLine
	for i, line := range strings.Split(roster, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		input := ParticipantInput{Name: line}
		if id, name, ok := strings.Cut(line, ";"); ok {
			input = ParticipantInput{ID: strings.TrimSpace(id), Name: strings.TrimSpace(name)}
		}
		lines = append(lines, rosterLine{number: i + 1, input: input})
	}

	if len(lines) == 0 {
		return nil, validationf("roster is empty")
	}
	return lines, nil
}
