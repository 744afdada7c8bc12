package service

import (
	"context"
	"log/slog"

	"github.com/GolovachevS/pr-reviewer-rbac/internal/domain"
	"github.com/google/uuid"
)

// DefaultReviewersPerPR is used when no positive reviewer count is configured.
const DefaultReviewersPerPR = 2

// PullRequests drives the PR lifecycle: creation with reviewer assignment,
// merging and reviewer reassignment.
type PullRequests struct {
	store     PullRequestStore
	selector  ReviewerSelector
	tx        TxManager
	reviewers int
	newID     func() string
	logger    *slog.Logger
}

// PullRequestsConfig carries the dependencies of PullRequests.
type PullRequestsConfig struct {
	Store     PullRequestStore
	Selector  ReviewerSelector
	Tx        TxManager
	Reviewers int
	// NewID generates PR ids; uuid.NewString when nil.
	NewID  func() string
	Logger *slog.Logger
}

// NewPullRequests returns a configured lifecycle controller.
func NewPullRequests(cfg PullRequestsConfig) *PullRequests {
	if cfg.Reviewers <= 0 {
		cfg.Reviewers = DefaultReviewersPerPR
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &PullRequests{
		store:     cfg.Store,
		selector:  cfg.Selector,
		tx:        cfg.Tx,
		reviewers: cfg.Reviewers,
		newID:     cfg.NewID,
		logger:    cfg.Logger,
	}
}

// Create opens a PR authored by caller and assigns reviewers from the
// author's team. An empty name is allowed and never conflicts.
func (s *PullRequests) Create(ctx context.Context, caller domain.Identity, name string) (domain.PullRequest, error) {
	if err := RequireRole(caller, domain.RoleAdmin, domain.RoleUser); err != nil {
		return domain.PullRequest{}, err
	}
	authorID := caller.UserID

	var created domain.PullRequest
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if name != "" {
			_, found, err := s.store.FindByNameAndAuthor(ctx, name, authorID)
			if err != nil {
				return err
			}
			if found {
				return domain.NewPRExistsError(nil)
			}
		}

		reviewers, err := s.selector.SelectReviewers(ctx, authorID, nil, s.reviewers)
		if err != nil {
			return err
		}

		pr, err := s.store.Create(ctx, domain.NewPullRequest{
			PullRequestID:   s.newID(),
			PullRequestName: name,
			AuthorID:        authorID,
			ReviewerIDs:     reviewers,
		})
		if err != nil {
			return err
		}
		created = pr
		return nil
	})
	if err != nil {
		return domain.PullRequest{}, err
	}

	if len(created.Reviewers) < s.reviewers {
		s.logger.Warn("pull request created with fewer reviewers than configured",
			slog.String("pull_request_id", created.PullRequestID),
			slog.Int("assigned", len(created.Reviewers)),
			slog.Int("wanted", s.reviewers))
	}
	s.logger.Info("pull request created",
		slog.String("pull_request_id", created.PullRequestID),
		slog.String("author_id", authorID),
		slog.Any("reviewers", created.ReviewerIDs()))

	return created, nil
}

// Merge moves the PR to MERGED. Only a current reviewer may merge; merging
// an already merged PR returns it unchanged.
func (s *PullRequests) Merge(ctx context.Context, caller domain.Identity, prID string) (domain.PullRequest, error) {
	if err := RequireRole(caller, domain.RoleAdmin, domain.RoleUser); err != nil {
		return domain.PullRequest{}, err
	}

	var (
		result  domain.PullRequest
		changed bool
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		pr, err := s.store.GetByIDForUpdate(ctx, prID)
		if err != nil {
			return err
		}
		if err := requireReviewer(pr, caller.UserID); err != nil {
			return err
		}

		if pr.IsMerged() {
			result = pr
			return nil
		}

		merged, err := s.store.SetStatus(ctx, prID, domain.StatusMerged)
		if err != nil {
			return err
		}
		result = merged
		changed = true
		return nil
	})
	if err != nil {
		return domain.PullRequest{}, err
	}

	if changed {
		s.logger.Info("pull request merged",
			slog.String("pull_request_id", prID),
			slog.String("merged_by", caller.UserID))
	}
	return result, nil
}

// Reassign replaces the calling reviewer with a random active member of the
// caller's own team who is neither the author nor already reviewing. It
// returns the updated PR and the id of the new reviewer.
func (s *PullRequests) Reassign(ctx context.Context, caller domain.Identity, prID string) (domain.PullRequest, string, error) {
	if err := RequireRole(caller, domain.RoleAdmin, domain.RoleUser); err != nil {
		return domain.PullRequest{}, "", err
	}
	oldUserID := caller.UserID

	var (
		result     domain.PullRequest
		replacedBy string
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		pr, err := s.store.GetByIDForUpdate(ctx, prID)
		if err != nil {
			return err
		}
		if pr.IsMerged() {
			return domain.NewPRMergedError()
		}
		if err := requireReviewer(pr, oldUserID); err != nil {
			return err
		}

		exclude := append(pr.ReviewerIDs(), pr.Author.UserID)
		// searches the stepping-down reviewer's team, not the author's
		candidates, err := s.selector.SelectReviewers(ctx, oldUserID, exclude, 1)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			return domain.NewNoCandidateError()
		}

		updated, err := s.store.ReassignReviewer(ctx, prID, oldUserID, candidates[0])
		if err != nil {
			return err
		}
		result = updated
		replacedBy = candidates[0]
		return nil
	})
	if err != nil {
		return domain.PullRequest{}, "", err
	}

	s.logger.Info("reviewer reassigned",
		slog.String("pull_request_id", prID),
		slog.String("old_reviewer_id", oldUserID),
		slog.String("new_reviewer_id", replacedBy))

	return result, replacedBy, nil
}

// Get returns a PR by id.
func (s *PullRequests) Get(ctx context.Context, caller domain.Identity, prID string) (domain.PullRequest, error) {
	if err := RequireRole(caller, domain.RoleAdmin, domain.RoleUser); err != nil {
		return domain.PullRequest{}, err
	}
	return s.store.GetByID(ctx, prID)
}
