package seeds

import (
	"context"
	"errors"
	"log"

	"github.com/TsaH0/CircleOfInevitibility-backend/internal/services"
	apperrors "github.com/TsaH0/CircleOfInevitibility-backend/pkg/errors"
)

// DemoUsernames are the accounts created by the seeder.
var DemoUsernames = []string{"demo_alice", "demo_bob", "demo_carol"}

// SeededUser is a demo account with a fresh API token.
type SeededUser struct {
	ID       string
	Username string
	Rating   int
	Token    string
	Created  bool
}

// SeedUsers creates every username that does not exist yet and issues a
// token for each, so running the seeder twice is harmless.
func SeedUsers(ctx context.Context, users *services.UserService, usernames []string) ([]SeededUser, error) {
	out := make([]SeededUser, 0, len(usernames))
	for _, username := range usernames {
		existing, err := users.GetByUsername(ctx, username)
		switch {
		case err == nil:
			token, err := users.IssueToken(existing.ID)
			if err != nil {
				return nil, err
			}
			log.Printf("   ✅ User found: %s", username)
			out = append(out, SeededUser{ID: existing.ID, Username: username, Rating: existing.Rating, Token: token})
		case errors.Is(err, apperrors.ErrUserNotFound):
			created, err := users.Create(ctx, services.CreateUserInput{Username: username})
			if err != nil {
				return nil, err
			}
			log.Printf("   ✅ User created: %s", username)
			out = append(out, SeededUser{
				ID:       created.User.ID,
				Username: username,
				Rating:   created.User.Rating,
				Token:    created.Token,
				Created:  true,
			})
		default:
			return nil, err
		}
	}
	return out, nil
}
