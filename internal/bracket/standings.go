package bracket

import (
	"sort"
	"strings"
)

type Standing struct {
	TeamID            string `json:"teamId"`
	Rank              int    `json:"rank"`
	MatchesPlayed     int    `json:"matchesPlayed"`
	Wins              int    `json:"wins"`
	Losses            int    `json:"losses"`
	GamesWon          int    `json:"gamesWon"`
	GamesLost         int    `json:"gamesLost"`
	GamesDifferential int    `json:"gamesDifferential"`
	Points            int    `json:"points"`
}

const (
	pointsForWin  = 2
	pointsForLoss = 1
)

// ComputeStandings ranks the roster using the completed, scored matches.
// Rows come back ordered by rank, rank 1 first.
func ComputeStandings(matches []Match, roster []string) []Standing {
	index := make(map[string]*Standing, len(roster))
	standings := make([]*Standing, 0, len(roster))
	for _, id := range roster {
		if _, dup := index[id]; dup {
			continue
		}
		s := &Standing{TeamID: id}
		index[id] = s
		standings = append(standings, s)
	}

	for i := range matches {
		m := &matches[i]
		if !m.Completed || m.Score == nil {
			continue
		}
		p1Games := m.Score.Participant1Score
		p2Games := m.Score.Participant2Score
		record(index[m.Participant1], m, p1Games, p2Games)
		record(index[m.Participant2], m, p2Games, p1Games)
	}

	for _, s := range standings {
		s.GamesDifferential = s.GamesWon - s.GamesLost
	}

	// Head-to-head only applies to a tie set of exactly two rows.
	tieSize := make(map[[2]int]int, len(standings))
	for _, s := range standings {
		tieSize[[2]int{s.GamesWon, s.Wins}]++
	}

	sort.SliceStable(standings, func(i, j int) bool {
		a, b := standings[i], standings[j]
		if a.GamesWon != b.GamesWon {
			return a.GamesWon > b.GamesWon
		}
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if tieSize[[2]int{a.GamesWon, a.Wins}] == 2 {
			switch headToHeadWinner(matches, a.TeamID, b.TeamID) {
			case a.TeamID:
				return true
			case b.TeamID:
				return false
			}
		}
		if a.GamesDifferential != b.GamesDifferential {
			return a.GamesDifferential > b.GamesDifferential
		}
		if a.MatchesPlayed != b.MatchesPlayed {
			return a.MatchesPlayed < b.MatchesPlayed
		}
		return strings.Compare(a.TeamID, b.TeamID) < 0
	})

	out := make([]Standing, len(standings))
	for i, s := range standings {
		s.Rank = i + 1
		out[i] = *s
	}
	return out
}

func record(s *Standing, m *Match, gamesFor, gamesAgainst int) {
	if s == nil {
		return
	}
	s.MatchesPlayed++
	s.GamesWon += gamesFor
	s.GamesLost += gamesAgainst
	if m.Winner != nil && *m.Winner == s.TeamID {
		s.Wins++
		s.Points += pointsForWin
	} else {
		s.Losses++
		s.Points += pointsForLoss
	}
}

// headToHeadWinner returns the winner of the first completed match between a and b,
// or "" when they have not met or the match has no winner.
func headToHeadWinner(matches []Match, a, b string) string {
	for i := range matches {
		m := &matches[i]
		if !m.Completed {
			continue
		}
		if (m.Participant1 == a && m.Participant2 == b) || (m.Participant1 == b && m.Participant2 == a) {
			if m.Winner == nil {
				return ""
			}
			return *m.Winner
		}
	}
	return ""
}
