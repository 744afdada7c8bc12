package service

import (
	"context"

	"github.com/GolovachevS/pr-reviewer-rbac/internal/domain"
)

// Directory is the read view over users and team rosters.
type Directory interface {
	GetUserByID(ctx context.Context, userID string) (domain.User, error)
	GetTeamByID(ctx context.Context, teamID string) (domain.Team, error)
	GetTeamMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error)
}

// DirectoryAdmin holds the directory mutations available to admins.
type DirectoryAdmin interface {
	Directory
	CreateTeam(ctx context.Context, teamID, name string) (domain.Team, error)
	CreateUser(ctx context.Context, user domain.NewUser) (domain.User, error)
	SetUserActive(ctx context.Context, userID string, isActive bool) (domain.User, error)
}

// PullRequestStore persists pull requests and reviewer assignments. Every
// method returns fully resolved entities.
type PullRequestStore interface {
	FindByNameAndAuthor(ctx context.Context, name, authorID string) (domain.PullRequest, bool, error)
	GetByID(ctx context.Context, prID string) (domain.PullRequest, error)
	// GetByIDForUpdate loads the PR and locks it until the surrounding
	// transaction ends.
	GetByIDForUpdate(ctx context.Context, prID string) (domain.PullRequest, error)
	Create(ctx context.Context, pr domain.NewPullRequest) (domain.PullRequest, error)
	SetStatus(ctx context.Context, prID string, status domain.PullRequestStatus) (domain.PullRequest, error)
	ReassignReviewer(ctx context.Context, prID, fromUserID, toUserID string) (domain.PullRequest, error)
	ListByReviewer(ctx context.Context, userID string) ([]domain.PullRequestShort, error)
}

// TxManager runs fn inside one store transaction. Stores called with the
// context passed to fn take part in that transaction.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReviewerSelector chooses reviewers for a pull request.
type ReviewerSelector interface {
	SelectReviewers(ctx context.Context, ownerID string, exclude []string, count int) ([]string, error)
}
