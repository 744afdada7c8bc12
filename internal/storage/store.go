package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/GolovachevS/pr-reviewer-rbac/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxPool interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store implements the directory, pull request and credential stores on
// PostgreSQL.
type Store struct {
	pool pgxPool
}

func New(pool pgxPool) *Store {
	return &Store{pool: pool}
}

// Users and teams

const selectUser = `SELECT id::text, username, COALESCE(team_id::text, ''), role, is_active FROM users`

func (s *Store) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	row := s.conn(ctx).QueryRow(ctx, selectUser+` WHERE id=$1`, userID)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.NewNotFoundError("user not found", err)
		}
		return domain.User{}, storageError(err)
	}
	return user, nil
}

// GetCredentials returns the user with the given username and its password hash.
func (s *Store) GetCredentials(ctx context.Context, username string) (domain.Credentials, error) {
	row := s.conn(ctx).QueryRow(ctx, `SELECT id::text, username, COALESCE(team_id::text, ''), role, is_active, hashed_password
		FROM users WHERE username=$1`, username)

	var (
		creds domain.Credentials
		role  string
	)
	err := row.Scan(&creds.User.UserID, &creds.User.Username, &creds.User.TeamID, &role, &creds.User.IsActive, &creds.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Credentials{}, domain.NewNotFoundError("user not found", err)
		}
		return domain.Credentials{}, storageError(err)
	}
	creds.User.Role = domain.Role(role)
	return creds, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.NewUser) (domain.User, error) {
	_, err := s.conn(ctx).Exec(ctx,
		`INSERT INTO users(id, username, hashed_password, role, team_id, is_active)
		 VALUES($1, $2, $3, $4, NULLIF($5, '')::uuid, $6)`,
		user.UserID, user.Username, user.PasswordHash, string(user.Role), user.TeamID, user.IsActive,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return domain.User{}, domain.NewUserExistsError(err)
		case isForeignKeyViolation(err):
			return domain.User{}, domain.NewNotFoundError("team not found", err)
		}
		return domain.User{}, storageError(err)
	}

	return domain.User{
		UserID:   user.UserID,
		Username: user.Username,
		TeamID:   user.TeamID,
		Role:     user.Role,
		IsActive: user.IsActive,
	}, nil
}

func (s *Store) SetUserActive(ctx context.Context, userID string, isActive bool) (domain.User, error) {
	row := s.conn(ctx).QueryRow(ctx, `UPDATE users SET is_active=$2, updated_at=NOW() WHERE id=$1
		RETURNING id::text, username, COALESCE(team_id::text, ''), role, is_active`, userID, isActive)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.NewNotFoundError("user not found", err)
		}
		return domain.User{}, storageError(err)
	}
	return user, nil
}

func (s *Store) CreateTeam(ctx context.Context, teamID, name string) (domain.Team, error) {
	if _, err := s.conn(ctx).Exec(ctx, `INSERT INTO teams(id, name) VALUES($1, $2)`, teamID, name); err != nil {
		if isUniqueViolation(err) {
			return domain.Team{}, domain.NewTeamExistsError(err)
		}
		return domain.Team{}, storageError(err)
	}
	return domain.Team{TeamID: teamID, TeamName: name, Members: []domain.TeamMember{}}, nil
}

func (s *Store) GetTeamByID(ctx context.Context, teamID string) (domain.Team, error) {
	name, err := s.teamName(ctx, teamID)
	if err != nil {
		return domain.Team{}, err
	}

	members, err := s.listTeamMembers(ctx, teamID)
	if err != nil {
		return domain.Team{}, err
	}

	return domain.Team{TeamID: teamID, TeamName: name, Members: members}, nil
}

// GetTeamMembers returns every member of the team with its active flag.
func (s *Store) GetTeamMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error) {
	if _, err := s.teamName(ctx, teamID); err != nil {
		return nil, err
	}
	return s.listTeamMembers(ctx, teamID)
}

// Pull requests

const selectPullRequest = `SELECT p.id::text, COALESCE(p.name, ''), p.author_id::text, a.username, a.is_active,
		p.status, p.created_at, p.merged_at
	FROM pull_requests p
	JOIN users a ON a.id = p.author_id`

func (s *Store) GetByID(ctx context.Context, prID string) (domain.PullRequest, error) {
	return s.getPullRequest(ctx, selectPullRequest+` WHERE p.id=$1`, prID)
}

func (s *Store) GetByIDForUpdate(ctx context.Context, prID string) (domain.PullRequest, error) {
	return s.getPullRequest(ctx, selectPullRequest+` WHERE p.id=$1 FOR UPDATE OF p`, prID)
}

func (s *Store) FindByNameAndAuthor(ctx context.Context, name, authorID string) (domain.PullRequest, bool, error) {
	pr, err := s.getPullRequest(ctx, selectPullRequest+` WHERE p.author_id=$1 AND p.name=$2`, authorID, name)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return domain.PullRequest{}, false, nil
		}
		return domain.PullRequest{}, false, err
	}
	return pr, true, nil
}

// Create inserts the PR and one assignment row per reviewer atomically.
func (s *Store) Create(ctx context.Context, input domain.NewPullRequest) (domain.PullRequest, error) {
	var created domain.PullRequest
	err := s.WithTx(ctx, func(ctx context.Context) error {
		q := s.conn(ctx)

		insertPR := `INSERT INTO pull_requests(id, name, author_id, status)
			VALUES($1, NULLIF($2, ''), $3, $4)`
		if _, err := q.Exec(ctx, insertPR, input.PullRequestID, input.PullRequestName, input.AuthorID, string(domain.StatusOpen)); err != nil {
			switch {
			case isUniqueViolation(err):
				return domain.NewPRExistsError(err)
			case isForeignKeyViolation(err):
				return domain.NewNotFoundError("author not found", err)
			}
			return err
		}

		for _, reviewerID := range input.ReviewerIDs {
			if _, err := q.Exec(ctx, `INSERT INTO reviewer_assignments(pull_request_id, user_id) VALUES($1, $2)`, input.PullRequestID, reviewerID); err != nil {
				return err
			}
		}

		pr, err := s.GetByID(ctx, input.PullRequestID)
		if err != nil {
			return err
		}
		created = pr
		return nil
	})
	if err != nil {
		return domain.PullRequest{}, err
	}
	return created, nil
}

func (s *Store) SetStatus(ctx context.Context, prID string, status domain.PullRequestStatus) (domain.PullRequest, error) {
	tag, err := s.conn(ctx).Exec(ctx, `UPDATE pull_requests
		SET status=$2,
		    merged_at = CASE WHEN $2 = 'MERGED' THEN COALESCE(merged_at, NOW()) ELSE merged_at END,
		    updated_at = NOW()
		WHERE id=$1`, prID, string(status))
	if err != nil {
		return domain.PullRequest{}, storageError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.PullRequest{}, domain.NewNotFoundError("pull request not found", nil)
	}
	return s.GetByID(ctx, prID)
}

// ReassignReviewer points the existing (prID, fromUserID) assignment row at
// toUserID. The row keeps its identity.
func (s *Store) ReassignReviewer(ctx context.Context, prID, fromUserID, toUserID string) (domain.PullRequest, error) {
	tag, err := s.conn(ctx).Exec(ctx, `UPDATE reviewer_assignments
		SET user_id=$3, updated_at=NOW()
		WHERE pull_request_id=$1 AND user_id=$2`, prID, fromUserID, toUserID)
	if err != nil {
		return domain.PullRequest{}, storageError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.PullRequest{}, domain.NewNotReviewerError()
	}
	return s.GetByID(ctx, prID)
}

func (s *Store) ListByReviewer(ctx context.Context, userID string) ([]domain.PullRequestShort, error) {
	rows, err := s.conn(ctx).Query(ctx, `SELECT pr.id::text, COALESCE(pr.name, ''), pr.author_id::text, pr.status
		FROM reviewer_assignments r
		JOIN pull_requests pr ON pr.id = r.pull_request_id
		WHERE r.user_id=$1
		ORDER BY pr.created_at DESC`, userID)
	if err != nil {
		return nil, storageError(err)
	}
	defer rows.Close()

	prs := []domain.PullRequestShort{}
	for rows.Next() {
		var (
			item   domain.PullRequestShort
			status string
		)
		if err := rows.Scan(&item.PullRequestID, &item.PullRequestName, &item.AuthorID, &status); err != nil {
			return nil, storageError(err)
		}
		item.Status = domain.PullRequestStatus(status)
		prs = append(prs, item)
	}

	if err := rows.Err(); err != nil {
		return nil, storageError(err)
	}

	return prs, nil
}

// Helper functions

func (s *Store) teamName(ctx context.Context, teamID string) (string, error) {
	row := s.conn(ctx).QueryRow(ctx, "SELECT name FROM teams WHERE id=$1", teamID)
	var name string
	if err := row.Scan(&name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.NewNotFoundError("team not found", err)
		}
		return "", storageError(err)
	}
	return name, nil
}

func (s *Store) listTeamMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error) {
	rows, err := s.conn(ctx).Query(ctx, `SELECT id::text, username, is_active FROM users WHERE team_id=$1 ORDER BY username`, teamID)
	if err != nil {
		return nil, storageError(err)
	}
	defer rows.Close()

	members := []domain.TeamMember{}
	for rows.Next() {
		var member domain.TeamMember
		if err := rows.Scan(&member.UserID, &member.Username, &member.IsActive); err != nil {
			return nil, storageError(err)
		}
		members = append(members, member)
	}

	if err := rows.Err(); err != nil {
		return nil, storageError(err)
	}

	return members, nil
}

func (s *Store) listReviewers(ctx context.Context, prID string) ([]domain.UserRef, error) {
	rows, err := s.conn(ctx).Query(ctx, `SELECT u.id::text, u.username, u.is_active
		FROM reviewer_assignments r
		JOIN users u ON u.id = r.user_id
		WHERE r.pull_request_id=$1
		ORDER BY r.id`, prID)
	if err != nil {
		return nil, storageError(err)
	}
	defer rows.Close()

	reviewers := []domain.UserRef{}
	for rows.Next() {
		var ref domain.UserRef
		if err := rows.Scan(&ref.UserID, &ref.Username, &ref.IsActive); err != nil {
			return nil, storageError(err)
		}
		reviewers = append(reviewers, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(err)
	}
	return reviewers, nil
}

func (s *Store) getPullRequest(ctx context.Context, query string, args ...any) (domain.PullRequest, error) {
	pr, err := scanPullRequestRow(s.conn(ctx).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PullRequest{}, domain.NewNotFoundError("pull request not found", err)
		}
		return domain.PullRequest{}, storageError(err)
	}

	reviewers, err := s.listReviewers(ctx, pr.PullRequestID)
	if err != nil {
		return domain.PullRequest{}, err
	}
	pr.Reviewers = reviewers
	return pr, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		user domain.User
		role string
	)
	if err := row.Scan(&user.UserID, &user.Username, &user.TeamID, &role, &user.IsActive); err != nil {
		return domain.User{}, err
	}
	user.Role = domain.Role(role)
	return user, nil
}

func scanPullRequestRow(row pgx.Row) (domain.PullRequest, error) {
	var (
		pr       domain.PullRequest
		status   string
		mergedAt sql.NullTime
	)
	err := row.Scan(&pr.PullRequestID, &pr.PullRequestName, &pr.Author.UserID, &pr.Author.Username, &pr.Author.IsActive,
		&status, &pr.CreatedAt, &mergedAt)
	if err != nil {
		return domain.PullRequest{}, err
	}
	pr.Status = domain.PullRequestStatus(status)
	if mergedAt.Valid {
		pr.MergedAt = &mergedAt.Time
	}
	return pr, nil
}
