package domain

import (
	"slices"
	"time"
)

// Role is the access level of a user.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// PullRequestStatus is the lifecycle state of a pull request.
type PullRequestStatus string

const (
	StatusOpen   PullRequestStatus = "OPEN"
	StatusMerged PullRequestStatus = "MERGED"
)

// User is a single user entity. TeamID is empty when the user has no team.
type User struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	TeamID   string `json:"team_id,omitempty"`
	Role     Role   `json:"role"`
	IsActive bool   `json:"is_active"`
}

// TeamMember describes a user within a team payload.
type TeamMember struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	IsActive bool   `json:"is_active"`
}

// Team represents a team with members.
type Team struct {
	TeamID   string       `json:"team_id"`
	TeamName string       `json:"team_name"`
	Members  []TeamMember `json:"members"`
}

// UserRef is a user resolved for display inside a pull request.
type UserRef struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	IsActive bool   `json:"is_active"`
}

// PullRequest holds PR data returned to clients.
type PullRequest struct {
	PullRequestID   string            `json:"pull_request_id"`
	PullRequestName string            `json:"pull_request_name,omitempty"`
	Author          UserRef           `json:"author"`
	Status          PullRequestStatus `json:"status"`
	Reviewers       []UserRef         `json:"assigned_reviewers"`
	CreatedAt       time.Time         `json:"createdAt"`
	MergedAt        *time.Time        `json:"mergedAt"`
}

// ReviewerIDs returns the ids of assigned reviewers.
func (pr PullRequest) ReviewerIDs() []string {
	ids := make([]string, 0, len(pr.Reviewers))
	for _, r := range pr.Reviewers {
		ids = append(ids, r.UserID)
	}
	return ids
}

// HasReviewer reports whether userID is currently assigned to review the PR.
func (pr PullRequest) HasReviewer(userID string) bool {
	return slices.Contains(pr.ReviewerIDs(), userID)
}

// IsMerged reports whether the PR reached its terminal state.
func (pr PullRequest) IsMerged() bool {
	return pr.Status == StatusMerged
}

// NewPullRequest is the payload persisted when a PR is created.
type NewPullRequest struct {
	PullRequestID   string
	PullRequestName string
	AuthorID        string
	ReviewerIDs     []string
}

// PullRequestShort is used for listing assignments per reviewer.
type PullRequestShort struct {
	PullRequestID   string            `json:"pull_request_id"`
	PullRequestName string            `json:"pull_request_name,omitempty"`
	AuthorID        string            `json:"author_id"`
	Status          PullRequestStatus `json:"status"`
}

// UserReviews bundles review assignments for response payloads.
type UserReviews struct {
	UserID       string             `json:"user_id"`
	PullRequests []PullRequestShort `json:"pull_requests"`
}

// Identity is an authenticated caller. Team membership is not part of it
// since it can change while a token is valid.
type Identity struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the caller holds the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Credentials pairs a user with its stored password hash.
type Credentials struct {
	User         User
	PasswordHash string
}

// NewUser is the payload persisted when a user is created.
type NewUser struct {
	UserID       string
	Username     string
	PasswordHash string
	Role         Role
	TeamID       string
	IsActive     bool
}
