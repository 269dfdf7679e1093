package views

import (
	"context"

	"github.com/AdamBeresnev/club-brackets/internal/middleware"
	users "github.com/AdamBeresnev/club-brackets/internal/user"
)

func GetUser(ctx context.Context) *users.User {
	return middleware.GetAuthenticatedUser(ctx)
}
