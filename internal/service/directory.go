package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/GolovachevS/pr-reviewer-rbac/internal/domain"
	"github.com/google/uuid"
)

// Length limits follow the teams.name and users.username columns.
const (
	minTeamName = 3
	maxTeamName = 50
	maxUsername = 150
)

// PasswordHasher turns a plain password into a storable hash.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// Teams exposes team and user management behind role checks.
type Teams struct {
	dir    DirectoryAdmin
	prs    PullRequestStore
	hasher PasswordHasher
	newID  func() string
}

// NewTeams returns a configured directory service.
func NewTeams(dir DirectoryAdmin, prs PullRequestStore, hasher PasswordHasher) *Teams {
	return &Teams{dir: dir, prs: prs, hasher: hasher, newID: uuid.NewString}
}

// CreateUserInput carries payload for user creation.
type CreateUserInput struct {
	Username string
	Password string
	Role     domain.Role
	TeamID   string
}

// GetTeam returns the team with its members. An empty teamID resolves to
// the caller's own team; other teams are visible to admins only.
func (s *Teams) GetTeam(ctx context.Context, caller domain.Identity, teamID string) (domain.Team, error) {
	if err := RequireRole(caller, domain.RoleAdmin, domain.RoleUser); err != nil {
		return domain.Team{}, err
	}

	if teamID == "" {
		user, err := s.dir.GetUserByID(ctx, caller.UserID)
		if err != nil {
			return domain.Team{}, err
		}
		if user.TeamID == "" {
			return domain.Team{}, domain.NewNotFoundError("team not found", nil)
		}
		teamID = user.TeamID
	} else if err := RequireRole(caller, domain.RoleAdmin); err != nil {
		return domain.Team{}, err
	}

	return s.dir.GetTeamByID(ctx, teamID)
}

func (s *Teams) CreateTeam(ctx context.Context, caller domain.Identity, name string) (domain.Team, error) {
	if err := RequireRole(caller, domain.RoleAdmin); err != nil {
		return domain.Team{}, err
	}
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n < minTeamName || n > maxTeamName {
		return domain.Team{}, domain.NewValidationError(fmt.Sprintf("team name must be %d to %d characters", minTeamName, maxTeamName))
	}
	return s.dir.CreateTeam(ctx, s.newID(), name)
}

func (s *Teams) CreateUser(ctx context.Context, caller domain.Identity, input CreateUserInput) (domain.User, error) {
	if err := RequireRole(caller, domain.RoleAdmin); err != nil {
		return domain.User{}, err
	}
	if input.Role == "" {
		input.Role = domain.RoleUser
	}
	if !input.Role.Valid() {
		return domain.User{}, domain.NewValidationError("unknown role")
	}
	input.Username = strings.TrimSpace(input.Username)
	if input.Username == "" || input.Password == "" {
		return domain.User{}, domain.NewValidationError("username and password are required")
	}
	if utf8.RuneCountInString(input.Username) > maxUsername {
		return domain.User{}, domain.NewValidationError(fmt.Sprintf("username is longer than %d characters", maxUsername))
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return domain.User{}, err
	}

	return s.dir.CreateUser(ctx, domain.NewUser{
		UserID:       s.newID(),
		Username:     input.Username,
		PasswordHash: hash,
		Role:         input.Role,
		TeamID:       input.TeamID,
		IsActive:     true,
	})
}

func (s *Teams) SetUserActive(ctx context.Context, caller domain.Identity, userID string, isActive bool) (domain.User, error) {
	if err := RequireRole(caller, domain.RoleAdmin); err != nil {
		return domain.User{}, err
	}
	return s.dir.SetUserActive(ctx, userID, isActive)
}

// GetUserReviews lists PRs the user reviews. Users may read their own list;
// admins may read anyone's.
func (s *Teams) GetUserReviews(ctx context.Context, caller domain.Identity, userID string) (domain.UserReviews, error) {
	if userID == "" {
		userID = caller.UserID
	}
	if err := RequireSelfOrAdmin(caller, userID); err != nil {
		return domain.UserReviews{}, err
	}

	if _, err := s.dir.GetUserByID(ctx, userID); err != nil {
		return domain.UserReviews{}, err
	}

	prs, err := s.prs.ListByReviewer(ctx, userID)
	if err != nil {
		return domain.UserReviews{}, err
	}
	if prs == nil {
		prs = []domain.PullRequestShort{}
	}
	return domain.UserReviews{UserID: userID, PullRequests: prs}, nil
}
