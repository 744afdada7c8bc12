package service

import (
	"slices"

	"github.com/GolovachevS/pr-reviewer-rbac/internal/domain"
)

// RequireRole allows the call only when caller holds one of roles.
func RequireRole(caller domain.Identity, roles ...domain.Role) error {
	if caller.UserID == "" {
		return domain.NewUnauthorizedError("authentication required", nil)
	}
	if !slices.Contains(roles, caller.Role) {
		return domain.NewForbiddenError("insufficient permissions")
	}
	return nil
}

// RequireSelfOrAdmin allows admins, or callers acting on their own userID.
func RequireSelfOrAdmin(caller domain.Identity, userID string) error {
	if caller.UserID == "" {
		return domain.NewUnauthorizedError("authentication required", nil)
	}
	if caller.IsAdmin() || caller.UserID == userID {
		return nil
	}
	return domain.NewForbiddenError("insufficient permissions")
}

// requireReviewer allows the call only when userID reviews pr. Authors are
// not reviewers and so cannot merge their own PRs.
func requireReviewer(pr domain.PullRequest, userID string) error {
	if !pr.HasReviewer(userID) {
		return domain.NewNotReviewerError()
	}
	return nil
}
