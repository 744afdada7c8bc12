package service

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/GolovachevS/pr-reviewer-rbac/internal/domain"
)

// ReviewerPicker draws a random subset of candidate ids.
type ReviewerPicker interface {
	Pick(ids []string, limit int) []string
}

// RandomPicker randomly shuffles candidates and picks deterministic subset.
type RandomPicker struct {
	mu   sync.Mutex
	rand *rand.Rand
}

// NewRandomPicker returns a picker seeded with current time.
func NewRandomPicker() *RandomPicker {
	return &RandomPicker{rand: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Pick returns up to "limit" unique ids randomly. The whole input is
// shuffled before slicing so no position in ids is favoured.
func (p *RandomPicker) Pick(ids []string, limit int) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if limit <= 0 || len(ids) == 0 {
		return nil
	}

	copyIDs := append([]string(nil), ids...)
	p.rand.Shuffle(len(copyIDs), func(i, j int) {
		copyIDs[i], copyIDs[j] = copyIDs[j], copyIDs[i]
	})

	if len(copyIDs) > limit {
		copyIDs = copyIDs[:limit]
	}

	return copyIDs
}

// Selector picks reviewers among the active teammates of a user.
type Selector struct {
	dir    Directory
	picker ReviewerPicker
}

// NewSelector returns a selector reading rosters from dir.
func NewSelector(dir Directory, picker ReviewerPicker) *Selector {
	if picker == nil {
		picker = NewRandomPicker()
	}
	return &Selector{dir: dir, picker: picker}
}

// SelectReviewers returns up to count distinct ids drawn from the team of
// ownerID. The owner, inactive members and ids in exclude are never returned.
// A short pool yields fewer ids than requested without error.
func (s *Selector) SelectReviewers(ctx context.Context, ownerID string, exclude []string, count int) ([]string, error) {
	owner, err := s.dir.GetUserByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if owner.TeamID == "" {
		return nil, domain.NewNotFoundError("team not found", nil)
	}

	members, err := s.dir.GetTeamMembers(ctx, owner.TeamID)
	if err != nil {
		return nil, err
	}

	skip := make(map[string]struct{}, len(exclude)+1)
	skip[owner.UserID] = struct{}{}
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	eligible := make([]string, 0, len(members))
	for _, m := range members {
		if !m.IsActive {
			continue
		}
		if _, ok := skip[m.UserID]; ok {
			continue
		}
		// rosters are sets, but guard against duplicated rows
		skip[m.UserID] = struct{}{}
		eligible = append(eligible, m.UserID)
	}

	picked := s.picker.Pick(eligible, count)
	if picked == nil {
		picked = []string{}
	}
	return picked, nil
}
