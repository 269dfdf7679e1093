package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/AdamBeresnev/club-brackets/internal/bracket"
	"github.com/AdamBeresnev/club-brackets/internal/db"
	"github.com/AdamBeresnev/club-brackets/internal/service"
	"github.com/AdamBeresnev/club-brackets/internal/utils"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(recalculateCmd)
	rootCmd.AddCommand(resetMatchCmd)
	rootCmd.AddCommand(checkMatchesCmd)
	rootCmd.AddCommand(standingsCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := db.InitDB(dbPath)
		if err != nil {
			return err
		}
		defer database.Close()
		if err := db.RunMigrations(database); err != nil {
			return err
		}
		log.Info("Migrations applied", "db", dbPath)
		return nil
	},
}

var recalculateCmd = &cobra.Command{
	Use:   "recalculate-playoffs <tournament-id>",
	Short: "Rebuild the final and third place matches from the group standings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tournamentID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid tournament id: %w", err)
		}
		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.Close()

		matches, err := svc.matches.RecalculatePlayoffMatches(cmd.Context(), tournamentID)
		if err != nil {
			return err
		}
		writeMatches(cmd.OutOrStdout(), matches)
		return nil
	},
}

var resetMatchCmd = &cobra.Command{
	Use:   "reset-match <match-id>",
	Short: "Return a match to its unplayed state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		matchID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid match id: %w", err)
		}
		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.Close()

		match, err := svc.matches.ResetMatch(cmd.Context(), matchID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Match %s reset (%s vs %s)\n", match.ID, match.Participant1, match.Participant2)
		return nil
	},
}

var checkMatchesCmd = &cobra.Command{
	Use:   "check-matches <tournament-id>",
	Short: "Print every match of a tournament by partition and round",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tournamentID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid tournament id: %w", err)
		}
		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.Close()

		view, err := svc.tournaments.GetBracket(cmd.Context(), tournamentID)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		t := view.Tournament
		fmt.Fprintf(out, "%s [%s, %s]\n", t.Name, t.Shape, t.Status)
		for _, part := range []struct {
			name    string
			matches []service.MatchView
		}{{"Winners", view.Winners}, {"Losers", view.Losers}} {
			fmt.Fprintf(out, "\n%s\n", part.name)
			writeMatchViews(out, part.matches)
		}
		return nil
	},
}

var standingsCmd = &cobra.Command{
	Use:   "standings <tournament-id>",
	Short: "Print the group standings of a round robin tournament",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tournamentID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid tournament id: %w", err)
		}
		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.Close()

		standings, err := svc.tournaments.GetStandings(cmd.Context(), tournamentID)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Group A")
		writeStandings(out, standings.GroupA)
		fmt.Fprintln(out, "\nGroup B")
		writeStandings(out, standings.GroupB)
		return nil
	},
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)
}

func writeMatches(w io.Writer, matches []bracket.Match) {
	t := newTable("Round", "Bracket", "Participant 1", "Participant 2", "State", "Winner")
	for _, m := range matches {
		t.Row(strconv.Itoa(m.Round), string(m.BracketType), m.Participant1, m.Participant2,
			string(m.State()), utils.OrZero(m.Winner))
	}
	fmt.Fprintln(w, t.String())
}

func writeMatchViews(w io.Writer, matches []service.MatchView) {
	t := newTable("Round", "Match", "Participant 1", "Participant 2", "State", "Score")
	for _, m := range matches {
		score := ""
		if m.Score != nil {
			score = fmt.Sprintf("%d-%d", m.Score.Participant1Score, m.Score.Participant2Score)
		}
		t.Row(strconv.Itoa(m.Round), m.ID.String(), m.Participant1Name, m.Participant2Name, string(m.State), score)
	}
	fmt.Fprintln(w, t.String())
}

func writeStandings(w io.Writer, rows []bracket.Standing) {
	t := newTable("#", "Team", "P", "W", "L", "GW", "GL", "+/-", "Pts")
	for _, s := range rows {
		t.Row(strconv.Itoa(s.Rank), s.TeamID, strconv.Itoa(s.MatchesPlayed), strconv.Itoa(s.Wins), strconv.Itoa(s.Losses),
			strconv.Itoa(s.GamesWon), strconv.Itoa(s.GamesLost), strconv.Itoa(s.GamesDifferential), strconv.Itoa(s.Points))
	}
	fmt.Fprintln(w, t.String())
}
