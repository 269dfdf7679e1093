package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/AdamBeresnev/club-brackets/internal/store"
	users "github.com/AdamBeresnev/club-brackets/internal/user"
	"github.com/AdamBeresnev/club-brackets/internal/utils"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/markbates/goth"
)

// GuestUserID is the fixed account used when guest login is enabled.
var GuestUserID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

type UserService struct {
	db          *sqlx.DB
	store       *store.UserStore
	clock       clockwork.Clock
	adminEmails map[string]bool
}

func NewUserService(db *sqlx.DB, store *store.UserStore, adminEmails []string, opts ...Option) *UserService {
	o := newOptions(opts)
	admins := make(map[string]bool, len(adminEmails))
	for _, email := range adminEmails {
		admins[strings.ToLower(email)] = true
	}
	return &UserService{db: db, store: store, clock: o.clock, adminEmails: admins}
}

func (s *UserService) roleFor(email string) users.Role {
	if s.adminEmails[strings.ToLower(strings.TrimSpace(email))] {
		return users.RoleAdmin
	}
	return users.RoleMember
}

// FindOrCreateUserByProvider returns the account of an OAuth login, creating it on
// first sight. The profile and the admin promotion are refreshed on every login.
func (s *UserService) FindOrCreateUserByProvider(ctx context.Context, gothUser goth.User) (*users.User, error) {
	user, err := s.store.GetUserByProvider(ctx, gothUser.Provider, gothUser.UserID)

	if err == nil {
		role := user.Role
		if s.roleFor(user.Email) == users.RoleAdmin {
			role = users.RoleAdmin
		}
		if utils.OrZero(user.AvatarURL) != gothUser.AvatarURL || user.Username != gothUser.NickName || role != user.Role {
			user.AvatarURL = utils.StringOrNil(gothUser.AvatarURL)
			if gothUser.NickName != "" {
				user.Username = gothUser.NickName
			}
			user.Role = role
			if err := s.store.UpdateUserProfile(ctx, user); err != nil {
				log.Warn("Failed to refresh user profile", "user", user.ID, "error", err)
			}
		}
		return user, nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		username := gothUser.NickName
		if username == "" {
			username = gothUser.Name
		}
		newUser := &users.User{
			ID:         uuid.New(),
			Email:      gothUser.Email,
			Username:   username,
			Provider:   &gothUser.Provider,
			ProviderID: &gothUser.UserID,
			AvatarURL:  utils.StringOrNil(gothUser.AvatarURL),
			Role:       s.roleFor(gothUser.Email),
			CreatedAt:  s.clock.Now().UTC(),
		}
		err := s.store.CreateUser(ctx, newUser)
		if err == nil {
			log.Info("User created", "user", newUser.ID, "provider", gothUser.Provider, "role", newUser.Role)
		}
		return newUser, err
	}

	return nil, err
}

// EnsureGuestUser returns the guest operator, creating it if needed. The guest is an
// admin so a local install can run a tournament without OAuth set up.
func (s *UserService) EnsureGuestUser(ctx context.Context) (*users.User, error) {
	user, err := s.store.GetUser(ctx, GuestUserID)
	if err == nil {
		return user, nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		guestUser := &users.User{
			ID:        GuestUserID,
			Email:     "guest@club-brackets.local",
			Username:  "Guest Referee",
			Role:      users.RoleAdmin,
			CreatedAt: s.clock.Now().UTC(),
		}
		err := s.store.CreateUser(ctx, guestUser)
		return guestUser, err
	}
	return nil, err
}
