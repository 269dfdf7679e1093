package views

import (
	"sort"
	"strconv"

	"github.com/AdamBeresnev/club-brackets/internal/bracket"
	"github.com/AdamBeresnev/club-brackets/internal/service"
	"github.com/a-h/templ"
	"github.com/google/uuid"
)

type Partition struct {
	Label     string
	Rounds    map[int][]service.MatchView
	RoundNums []int
}

type BracketData struct {
	Winners Partition
	Losers  Partition
}

func PrepareBracketData(view *service.BracketView) BracketData {
	shape := view.Tournament.Shape
	return BracketData{
		Winners: groupRounds(PartitionLabel(shape, bracket.WinnersBracket), view.Winners),
		Losers:  groupRounds(PartitionLabel(shape, bracket.LosersBracket), view.Losers),
	}
}

// groupRounds keeps the stored order of matches inside each round.
func groupRounds(label string, matches []service.MatchView) Partition {
	p := Partition{Label: label, Rounds: make(map[int][]service.MatchView)}
	for _, m := range matches {
		if _, exists := p.Rounds[m.Round]; !exists {
			p.RoundNums = append(p.RoundNums, m.Round)
		}
		p.Rounds[m.Round] = append(p.Rounds[m.Round], m)
	}
	sort.Ints(p.RoundNums)
	return p
}

func PartitionLabel(shape bracket.TournamentShape, bt bracket.BracketType) string {
	switch {
	case shape == bracket.RoundRobinToPlayoff && bt == bracket.WinnersBracket:
		return "Group A"
	case shape == bracket.RoundRobinToPlayoff:
		return "Group B"
	case bt == bracket.WinnersBracket:
		return "Championship"
	default:
		return "Consolation"
	}
}

func RoundLabel(shape bracket.TournamentShape, bt bracket.BracketType, round int) string {
	if shape == bracket.RoundRobinToPlayoff {
		switch {
		case round == 1:
			return "Group stage"
		case bt == bracket.WinnersBracket:
			return "Final"
		default:
			return "3rd place"
		}
	}
	switch round {
	case 1:
		return "Quarterfinals"
	case 2:
		return "Semifinal"
	default:
		return "Final"
	}
}

// Section is one partition of the bracket page.
type Section struct {
	BracketType bracket.BracketType
	Partition   Partition
}

func sections(view *service.BracketView) []Section {
	data := PrepareBracketData(view)
	return []Section{
		{BracketType: bracket.WinnersBracket, Partition: data.Winners},
		{BracketType: bracket.LosersBracket, Partition: data.Losers},
	}
}

func consolationLabel(shape bracket.TournamentShape) string {
	if shape == bracket.RoundRobinToPlayoff {
		return "Third place"
	}
	return "Consolation champion"
}

// nameIn finds a participant's display name among the bracket's matches.
func nameIn(view *service.BracketView, id string) string {
	for _, matches := range [][]service.MatchView{view.Winners, view.Losers} {
		for _, m := range matches {
			if m.Participant1 == id {
				return m.Participant1Name
			}
			if m.Participant2 == id {
				return m.Participant2Name
			}
		}
	}
	return id
}

// scoreOf is the games of one side, empty before any score is recorded.
func scoreOf(m service.MatchView, side int) string {
	if m.Score == nil {
		return ""
	}
	if side == 2 {
		return strconv.Itoa(m.Score.Participant2Score)
	}
	return strconv.Itoa(m.Score.Participant1Score)
}

func tournamentURL(id uuid.UUID) templ.SafeURL {
	return templ.URL("/tournaments/" + id.String())
}
