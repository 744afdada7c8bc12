package auth

import (
	"context"
	"log/slog"

	"github.com/GolovachevS/pr-reviewer-rbac/internal/domain"
	"github.com/google/uuid"
)

// CredentialStore looks users up by username for login.
type CredentialStore interface {
	GetCredentials(ctx context.Context, username string) (domain.Credentials, error)
}

// UserCreator persists new users.
type UserCreator interface {
	CreateUser(ctx context.Context, user domain.NewUser) (domain.User, error)
}

// LoginResult is returned to a user after a successful login.
type LoginResult struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	UserID      string      `json:"user_id"`
	Role        domain.Role `json:"user_role"`
}

// Authenticator exchanges username and password for an access token.
type Authenticator struct {
	users  CredentialStore
	hasher BcryptHasher
	tokens *TokenManager
}

func NewAuthenticator(users CredentialStore, hasher BcryptHasher, tokens *TokenManager) *Authenticator {
	return &Authenticator{users: users, hasher: hasher, tokens: tokens}
}

var errInvalidCredentials = domain.NewUnauthorizedError("invalid credentials", nil)

// Login returns a fresh access token. Unknown users and wrong passwords
// fail with the same Unauthorized error.
func (a *Authenticator) Login(ctx context.Context, username, password string) (LoginResult, error) {
	creds, err := a.users.GetCredentials(ctx, username)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			slog.Info("login rejected: unknown user", slog.String("username", username))
			return LoginResult{}, errInvalidCredentials
		}
		return LoginResult{}, err
	}

	if !a.hasher.Verify(creds.PasswordHash, password) {
		slog.Info("login rejected: invalid password", slog.String("username", username))
		return LoginResult{}, errInvalidCredentials
	}

	token, err := a.tokens.Issue(domain.Identity{UserID: creds.User.UserID, Role: creds.User.Role})
	if err != nil {
		return LoginResult{}, err
	}

	return LoginResult{
		AccessToken: token,
		TokenType:   "bearer",
		UserID:      creds.User.UserID,
		Role:        creds.User.Role,
	}, nil
}

// EnsureAdmin creates an admin named username unless a user with that
// name already exists.
func EnsureAdmin(ctx context.Context, users interface {
	CredentialStore
	UserCreator
}, hasher BcryptHasher, username, password string) error {
	_, err := users.GetCredentials(ctx, username)
	if err == nil {
		return nil
	}
	if domain.KindOf(err) != domain.KindNotFound {
		return err
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		return err
	}

	user, err := users.CreateUser(ctx, domain.NewUser{
		UserID:       uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		IsActive:     true,
	})
	if err != nil {
		// lost a race with another instance
		if domain.KindOf(err) == domain.KindConflict {
			return nil
		}
		return err
	}

	slog.Info("admin user created", slog.String("user_id", user.UserID), slog.String("username", username))
	return nil
}
