package main

import (
	"io"
	"net/http"

	"github.com/AdamBeresnev/club-brackets/internal/httputil"
	"github.com/AdamBeresnev/club-brackets/internal/middleware"
	"github.com/AdamBeresnev/club-brackets/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// maxRosterBytes bounds a plain text roster upload.
const maxRosterBytes = 64 << 10

func (app *application) apiRoutes(r chi.Router) {
	r.Get("/tournaments", func(w http.ResponseWriter, r *http.Request) {
		tournaments, err := app.tournaments.GetTournaments(r.Context())
		if err != nil {
			httputil.WriteError(w, "Failed to get tournaments", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, tournaments)
	})

	r.Route("/tournaments/{id}", func(r chi.Router) {
		r.Get("/", app.withTournament(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
			data, err := app.tournaments.GetTournamentData(r.Context(), id)
			respond(w, "Failed to get tournament", data, err)
		}))
		r.Get("/matches", app.withTournament(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
			matches, err := app.tournaments.GetMatches(r.Context(), id)
			respond(w, "Failed to get matches", matches, err)
		}))
		r.Get("/bracket", app.withTournament(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
			view, err := app.tournaments.GetBracket(r.Context(), id)
			respond(w, "Failed to get bracket", view, err)
		}))
		r.Get("/standings", app.withTournament(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
			standings, err := app.tournaments.GetStandings(r.Context(), id)
			respond(w, "Failed to get standings", standings, err)
		}))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAPIUser)

			r.Post("/participants", app.withTournament(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
				var input service.ParticipantInput
				if !decode(w, r, &input) {
					return
				}
				p, err := app.tournaments.RegisterParticipant(r.Context(), id, input)
				respondCreated(w, "Failed to register participant", p, err)
			}))
			r.Post("/roster", app.withTournament(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
				body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRosterBytes))
				if err != nil {
					httputil.BadRequest(w, "Invalid roster", err)
					return
				}
				participants, err := app.tournaments.ImportRoster(r.Context(), id, string(body))
				respondCreated(w, "Failed to import roster", participants, err)
			}))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin)

			r.Put("/groups", app.withTournament(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
				var input struct {
					GroupA []string `json:"groupA"`
					GroupB []string `json:"groupB"`
				}
				if !decode(w, r, &input) {
					return
				}
				t, err := app.tournaments.SetTournamentGroups(r.Context(), id, input.GroupA, input.GroupB)
				respond(w, "Failed to set groups", t, err)
			}))
			r.Post("/assignments", app.withTournament(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
				var input service.AssignmentInput
				if !decode(w, r, &input) {
					return
				}
				a, err := app.tournaments.AssignParticipantToBracket(r.Context(), id, input)
				respond(w, "Failed to assign participant", a, err)
			}))
			r.Post("/generate", app.withTournament(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
				matches, err := app.brackets.GenerateMatches(r.Context(), id)
				respondCreated(w, "Failed to generate matches", matches, err)
			}))
			r.Post("/generate-seeded", app.withTournament(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
				matches, err := app.brackets.GenerateMatchesFromManualSeeding(r.Context(), id)
				respondCreated(w, "Failed to generate matches from manual seeding", matches, err)
			}))
			r.Post("/generate-round-robin", app.withTournament(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
				matches, err := app.brackets.GenerateRoundRobinMatches(r.Context(), id)
				respondCreated(w, "Failed to generate round robin matches", matches, err)
			}))
			r.Post("/recalculate-playoffs", app.withTournament(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
				matches, err := app.matches.RecalculatePlayoffMatches(r.Context(), id)
				respond(w, "Failed to recalculate playoff matches", matches, err)
			}))
		})
	})

	r.With(middleware.RequireAPIUser).Post("/tournaments", func(w http.ResponseWriter, r *http.Request) {
		var input service.TournamentInput
		if !decode(w, r, &input) {
			return
		}
		t, err := app.tournaments.CreateTournament(r.Context(), input)
		respondCreated(w, "Failed to create tournament", t, err)
	})

	r.Route("/matches/{id}", func(r chi.Router) {
		r.Get("/", app.withMatch(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
			data, err := app.matches.GetMatchData(r.Context(), id)
			respond(w, "Failed to get match", data, err)
		}))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAPIUser)

			r.Post("/result", app.withMatch(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
				var input service.ResultInput
				if !decode(w, r, &input) {
					return
				}
				input.MatchID = id
				m, err := app.matches.SubmitResult(r.Context(), input)
				respond(w, "Failed to submit match result", m, err)
			}))
			r.Put("/live-score", app.withMatch(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
				var input service.LiveScoreInput
				if !decode(w, r, &input) {
					return
				}
				input.MatchID = id
				m, err := app.matches.UpdateLiveScore(r.Context(), input)
				respond(w, "Failed to update live score", m, err)
			}))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin)

			r.Put("/schedule", app.withMatch(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
				var input service.ScheduleInput
				if !decode(w, r, &input) {
					return
				}
				input.MatchID = id
				m, err := app.matches.UpdateMatchSchedule(r.Context(), input)
				respond(w, "Failed to update match schedule", m, err)
			}))
			r.Post("/reset", app.withMatch(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
				m, err := app.matches.ResetMatch(r.Context(), id)
				respond(w, "Failed to reset match", m, err)
			}))
			r.Delete("/", app.withMatch(func(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
				deleted, err := app.matches.DeleteMatch(r.Context(), id)
				respond(w, "Failed to delete match", map[string]bool{"deleted": deleted}, err)
			}))
		})
	})
}

type idHandler func(w http.ResponseWriter, r *http.Request, id uuid.UUID)

func (app *application) withTournament(h idHandler) http.HandlerFunc {
	return withID("Invalid tournament ID", h)
}

func (app *application) withMatch(h idHandler) http.HandlerFunc {
	return withID("Invalid match ID", h)
}

func withID(msg string, h idHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := httputil.UUIDParam(r, "id")
		if err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
			return
		}
		h(w, r, id)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := httputil.DecodeJSON(r, v); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return false
	}
	return true
}

func respond(w http.ResponseWriter, msg string, v any, err error) {
	if err != nil {
		httputil.WriteError(w, msg, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func respondCreated(w http.ResponseWriter, msg string, v any, err error) {
	if err != nil {
		httputil.WriteError(w, msg, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, v)
}
