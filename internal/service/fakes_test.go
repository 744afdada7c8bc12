package service

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/GolovachevS/pr-reviewer-rbac/internal/domain"
	"github.com/stretchr/testify/mock"
)

// memDirectory is an in-memory Directory/DirectoryAdmin.
type memDirectory struct {
	users map[string]domain.User
	teams map[string]domain.Team
	order []string
}

func newMemDirectory() *memDirectory {
	return &memDirectory{users: map[string]domain.User{}, teams: map[string]domain.Team{}}
}

func (d *memDirectory) addTeam(id, name string) {
	d.teams[id] = domain.Team{TeamID: id, TeamName: name}
}

func (d *memDirectory) addUser(id, teamID string, active bool) {
	d.users[id] = domain.User{UserID: id, Username: "user-" + id, TeamID: teamID, Role: domain.RoleUser, IsActive: active}
	d.order = append(d.order, id)
}

func (d *memDirectory) GetUserByID(_ context.Context, userID string) (domain.User, error) {
	u, ok := d.users[userID]
	if !ok {
		return domain.User{}, domain.NewNotFoundError("user not found", nil)
	}
	return u, nil
}

func (d *memDirectory) GetTeamByID(ctx context.Context, teamID string) (domain.Team, error) {
	t, ok := d.teams[teamID]
	if !ok {
		return domain.Team{}, domain.NewNotFoundError("team not found", nil)
	}
	members, _ := d.GetTeamMembers(ctx, teamID)
	t.Members = members
	return t, nil
}

func (d *memDirectory) GetTeamMembers(_ context.Context, teamID string) ([]domain.TeamMember, error) {
	if _, ok := d.teams[teamID]; !ok {
		return nil, domain.NewNotFoundError("team not found", nil)
	}
	var members []domain.TeamMember
	for _, id := range d.order {
		u := d.users[id]
		if u.TeamID == teamID {
			members = append(members, domain.TeamMember{UserID: u.UserID, Username: u.Username, IsActive: u.IsActive})
		}
	}
	return members, nil
}

func (d *memDirectory) CreateTeam(_ context.Context, teamID, name string) (domain.Team, error) {
	for _, t := range d.teams {
		if t.TeamName == name {
			return domain.Team{}, domain.NewTeamExistsError(nil)
		}
	}
	d.addTeam(teamID, name)
	return d.teams[teamID], nil
}

func (d *memDirectory) CreateUser(_ context.Context, user domain.NewUser) (domain.User, error) {
	for _, u := range d.users {
		if u.Username == user.Username {
			return domain.User{}, domain.NewUserExistsError(nil)
		}
	}
	if user.TeamID != "" {
		if _, ok := d.teams[user.TeamID]; !ok {
			return domain.User{}, domain.NewNotFoundError("team not found", nil)
		}
	}
	u := domain.User{UserID: user.UserID, Username: user.Username, TeamID: user.TeamID, Role: user.Role, IsActive: user.IsActive}
	d.users[u.UserID] = u
	d.order = append(d.order, u.UserID)
	return u, nil
}

func (d *memDirectory) SetUserActive(_ context.Context, userID string, isActive bool) (domain.User, error) {
	u, ok := d.users[userID]
	if !ok {
		return domain.User{}, domain.NewNotFoundError("user not found", nil)
	}
	u.IsActive = isActive
	d.users[userID] = u
	return u, nil
}

type assignment struct {
	rowID  int
	userID string
}

type memPR struct {
	id, name, authorID string
	status             domain.PullRequestStatus
	assignments        []assignment
	createdAt          time.Time
	mergedAt           *time.Time
}

// memPRStore is an in-memory PullRequestStore that records mutations.
type memPRStore struct {
	mu        sync.Mutex
	dir       *memDirectory
	prs       map[string]*memPR
	nextRow   int
	mutations int
}

func newMemPRStore(dir *memDirectory) *memPRStore {
	return &memPRStore{dir: dir, prs: map[string]*memPR{}}
}

func (s *memPRStore) view(p *memPR) domain.PullRequest {
	ref := func(id string) domain.UserRef {
		u := s.dir.users[id]
		return domain.UserRef{UserID: id, Username: u.Username, IsActive: u.IsActive}
	}
	pr := domain.PullRequest{
		PullRequestID:   p.id,
		PullRequestName: p.name,
		Author:          ref(p.authorID),
		Status:          p.status,
		Reviewers:       []domain.UserRef{},
		CreatedAt:       p.createdAt,
		MergedAt:        p.mergedAt,
	}
	for _, a := range p.assignments {
		pr.Reviewers = append(pr.Reviewers, ref(a.userID))
	}
	return pr
}

func (s *memPRStore) FindByNameAndAuthor(_ context.Context, name, authorID string) (domain.PullRequest, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.prs {
		if p.name == name && p.authorID == authorID {
			return s.view(p), true, nil
		}
	}
	return domain.PullRequest{}, false, nil
}

func (s *memPRStore) GetByID(_ context.Context, prID string) (domain.PullRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prs[prID]
	if !ok {
		return domain.PullRequest{}, domain.NewNotFoundError("pull request not found", nil)
	}
	return s.view(p), nil
}

func (s *memPRStore) GetByIDForUpdate(ctx context.Context, prID string) (domain.PullRequest, error) {
	return s.GetByID(ctx, prID)
}

func (s *memPRStore) Create(_ context.Context, in domain.NewPullRequest) (domain.PullRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutations++
	p := &memPR{id: in.PullRequestID, name: in.PullRequestName, authorID: in.AuthorID, status: domain.StatusOpen, createdAt: time.Now()}
	for _, id := range in.ReviewerIDs {
		s.nextRow++
		p.assignments = append(p.assignments, assignment{rowID: s.nextRow, userID: id})
	}
	s.prs[p.id] = p
	return s.view(p), nil
}

func (s *memPRStore) SetStatus(_ context.Context, prID string, status domain.PullRequestStatus) (domain.PullRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutations++
	p, ok := s.prs[prID]
	if !ok {
		return domain.PullRequest{}, domain.NewNotFoundError("pull request not found", nil)
	}
	p.status = status
	now := time.Now()
	p.mergedAt = &now
	return s.view(p), nil
}

func (s *memPRStore) ReassignReviewer(_ context.Context, prID, fromUserID, toUserID string) (domain.PullRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutations++
	p, ok := s.prs[prID]
	if !ok {
		return domain.PullRequest{}, domain.NewNotFoundError("pull request not found", nil)
	}
	for i := range p.assignments {
		if p.assignments[i].userID == fromUserID {
			p.assignments[i].userID = toUserID
			return s.view(p), nil
		}
	}
	return domain.PullRequest{}, domain.NewNotReviewerError()
}

func (s *memPRStore) ListByReviewer(_ context.Context, userID string) ([]domain.PullRequestShort, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PullRequestShort
	for _, p := range s.prs {
		if slices.ContainsFunc(p.assignments, func(a assignment) bool { return a.userID == userID }) {
			out = append(out, domain.PullRequestShort{PullRequestID: p.id, PullRequestName: p.name, AuthorID: p.authorID, Status: p.status})
		}
	}
	return out, nil
}

// seedPR stores an OPEN PR with the given reviewers directly.
func (s *memPRStore) seedPR(id, authorID string, reviewers ...string) {
	p := &memPR{id: id, name: id, authorID: authorID, status: domain.StatusOpen, createdAt: time.Now()}
	for _, r := range reviewers {
		s.nextRow++
		p.assignments = append(p.assignments, assignment{rowID: s.nextRow, userID: r})
	}
	s.prs[id] = p
}

type passthroughTx struct {
	calls int
}

func (f *passthroughTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

// mockPRStore is a testify mock of PullRequestStore.
type mockPRStore struct {
	mock.Mock
}

func (m *mockPRStore) FindByNameAndAuthor(ctx context.Context, name, authorID string) (domain.PullRequest, bool, error) {
	args := m.Called(ctx, name, authorID)
	return args.Get(0).(domain.PullRequest), args.Bool(1), args.Error(2)
}

func (m *mockPRStore) GetByID(ctx context.Context, prID string) (domain.PullRequest, error) {
	args := m.Called(ctx, prID)
	return args.Get(0).(domain.PullRequest), args.Error(1)
}

func (m *mockPRStore) GetByIDForUpdate(ctx context.Context, prID string) (domain.PullRequest, error) {
	args := m.Called(ctx, prID)
	return args.Get(0).(domain.PullRequest), args.Error(1)
}

func (m *mockPRStore) Create(ctx context.Context, pr domain.NewPullRequest) (domain.PullRequest, error) {
	args := m.Called(ctx, pr)
	return args.Get(0).(domain.PullRequest), args.Error(1)
}

func (m *mockPRStore) SetStatus(ctx context.Context, prID string, status domain.PullRequestStatus) (domain.PullRequest, error) {
	args := m.Called(ctx, prID, status)
	return args.Get(0).(domain.PullRequest), args.Error(1)
}

func (m *mockPRStore) ReassignReviewer(ctx context.Context, prID, fromUserID, toUserID string) (domain.PullRequest, error) {
	args := m.Called(ctx, prID, fromUserID, toUserID)
	return args.Get(0).(domain.PullRequest), args.Error(1)
}

func (m *mockPRStore) ListByReviewer(ctx context.Context, userID string) ([]domain.PullRequestShort, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.PullRequestShort), args.Error(1)
}

// stubPicker returns a fixed answer and records its input.
type stubPicker struct {
	pickReturn []string
	lastIDs    []string
	lastLimit  int
}

func (s *stubPicker) Pick(ids []string, limit int) []string {
	s.lastIDs = append([]string(nil), ids...)
	s.lastLimit = limit
	return append([]string(nil), s.pickReturn...)
}
