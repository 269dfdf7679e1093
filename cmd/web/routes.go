package main

import (
	"context"
	"errors"
	"net/http"
	"sort"

	"github.com/AdamBeresnev/club-brackets/internal/bracket"
	"github.com/AdamBeresnev/club-brackets/internal/httputil"
	"github.com/AdamBeresnev/club-brackets/internal/middleware"
	"github.com/AdamBeresnev/club-brackets/internal/service"
	"github.com/AdamBeresnev/club-brackets/views"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
)

func newRouter(app *application) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(app.sessionManager.LoadAndSave)
	r.Use(middleware.LoadUser(app.sessionManager, app.userStore))

	// Serve static files
	fileServer := http.FileServer(http.Dir("./static"))
	r.Handle("/static/*", http.StripPrefix("/static/", fileServer))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", app.metricsHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			tournaments, err := app.tournaments.GetTournaments(r.Context())
			if err != nil {
				httputil.InternalServerError(w, "Failed to get tournaments", err)
				return
			}
			views.Render(w, r, views.Index(tournaments))
		})
	})

	r.Get("/tournaments/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := httputil.UUIDParam(r, "id")
		if err != nil {
			httputil.BadRequest(w, "Invalid tournament ID", err)
			return
		}

		view, err := app.tournaments.GetBracket(r.Context(), id)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				httputil.NotFound(w, "Tournament not found", err)
				return
			}
			httputil.InternalServerError(w, "Failed to get tournament", err)
			return
		}

		var standings *service.GroupStandings
		if view.Tournament.Shape == bracket.RoundRobinToPlayoff && view.Tournament.HasGroups() {
			standings, err = app.tournaments.GetStandings(r.Context(), id)
			if err != nil {
				httputil.InternalServerError(w, "Failed to get standings", err)
				return
			}
		}

		views.Render(w, r, views.TournamentView(view, standings))
	})

	r.Get("/login", func(w http.ResponseWriter, r *http.Request) {
		var providers []string
		for name := range goth.GetProviders() {
			providers = append(providers, name)
		}
		sort.Strings(providers)
		views.Render(w, r, views.LoginPage(providers, app.cfg.AllowGuestLogin))
	})

	r.Get("/auth/{provider}", func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		r = r.WithContext(context.WithValue(r.Context(), "provider", provider))

		gothic.BeginAuthHandler(w, r)
	})

	r.Get("/auth/{provider}/callback", func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		r = r.WithContext(context.WithValue(r.Context(), "provider", provider))

		gothUser, err := gothic.CompleteUserAuth(w, r)
		if err != nil {
			httputil.BadRequest(w, "Authentication failure", err)
			return
		}

		user, err := app.users.FindOrCreateUserByProvider(r.Context(), gothUser)
		if err != nil {
			httputil.InternalServerError(w, "Failed to find or create user", err)
			return
		}

		if err := app.sessionManager.RenewToken(r.Context()); err != nil {
			httputil.InternalServerError(w, "Failed to renew session", err)
			return
		}
		app.sessionManager.Put(r.Context(), middleware.SessionUserKey, user.ID.String())

		http.Redirect(w, r, "/", http.StatusFound)
	})

	if app.cfg.AllowGuestLogin {
		r.Post("/auth/guest", func(w http.ResponseWriter, r *http.Request) {
			user, err := app.users.EnsureGuestUser(r.Context())
			if err != nil {
				httputil.InternalServerError(w, "Failed to login as guest", err)
				return
			}

			app.sessionManager.Put(r.Context(), middleware.SessionUserKey, user.ID.String())
			http.Redirect(w, r, "/", http.StatusFound)
		})
	}

	r.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
		if err := app.sessionManager.Destroy(r.Context()); err != nil {
			httputil.InternalServerError(w, "Failed to log out", err)
			return
		}
		if r.Header.Get("HX-Request") != "" {
			w.Header().Set("HX-Redirect", "/login")
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Redirect(w, r, "/login", http.StatusFound)
	})

	r.Route("/api", app.apiRoutes)

	return r
}
