package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/GolovachevS/pr-reviewer-rbac/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type plainHasher struct{ err error }

func (h plainHasher) Hash(password string) (string, error) {
	if h.err != nil {
		return "", h.err
	}
	return "hashed:" + password, nil
}

var admin = domain.Identity{UserID: "root", Role: domain.RoleAdmin}

func newTeams(t *testing.T) (*Teams, *memDirectory, *memPRStore) {
	t.Helper()
	dir := teamFixture()
	store := newMemPRStore(dir)
	return NewTeams(dir, store, plainHasher{}), dir, store
}

func TestGetTeamOwnAndForeign(t *testing.T) {
	teams, dir, _ := newTeams(t)
	dir.addTeam("T2", "platform")

	team, err := teams.GetTeam(context.Background(), caller("B"), "")
	require.NoError(t, err)
	assert.Equal(t, "backend", team.TeamName)
	assert.Len(t, team.Members, 4)

	_, err = teams.GetTeam(context.Background(), caller("B"), "T2")
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))

	team, err = teams.GetTeam(context.Background(), admin, "T2")
	require.NoError(t, err)
	assert.Equal(t, "platform", team.TeamName)

	_, err = teams.GetTeam(context.Background(), admin, "nope")
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestGetTeamForUserWithoutTeam(t *testing.T) {
	teams, dir, _ := newTeams(t)
	dir.users["N"] = domain.User{UserID: "N", Role: domain.RoleUser}

	_, err := teams.GetTeam(context.Background(), caller("N"), "")
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestCreateTeamAdminOnly(t *testing.T) {
	teams, _, _ := newTeams(t)

	_, err := teams.CreateTeam(context.Background(), caller("B"), "ops")
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))

	team, err := teams.CreateTeam(context.Background(), admin, "  ops ")
	require.NoError(t, err)
	assert.Equal(t, "ops", team.TeamName)
	assert.NotEmpty(t, team.TeamID)

	_, err = teams.CreateTeam(context.Background(), admin, "ops")
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))

	_, err = teams.CreateTeam(context.Background(), admin, " ")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestCreateUser(t *testing.T) {
	teams, dir, _ := newTeams(t)

	user, err := teams.CreateUser(context.Background(), admin, CreateUserInput{Username: "eve", Password: "pw", TeamID: "T"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.True(t, user.IsActive)
	assert.Equal(t, "T", dir.users[user.UserID].TeamID)

	_, err = teams.CreateUser(context.Background(), admin, CreateUserInput{Username: "eve", Password: "pw"})
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))

	_, err = teams.CreateUser(context.Background(), admin, CreateUserInput{Username: "mallory", Password: "pw", TeamID: "missing"})
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

	_, err = teams.CreateUser(context.Background(), admin, CreateUserInput{Username: "x", Password: "pw", Role: "owner"})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = teams.CreateUser(context.Background(), admin, CreateUserInput{Username: "x"})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = teams.CreateUser(context.Background(), caller("B"), CreateUserInput{Username: "x", Password: "pw"})
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
}

func TestCreateTeamNameLength(t *testing.T) {
	teams, _, _ := newTeams(t)

	for _, name := range []string{"ab", strings.Repeat("x", 51), strings.Repeat("ж", 51)} {
		_, err := teams.CreateTeam(context.Background(), admin, name)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err), name)
	}

	// 50 characters, 100 bytes
	team, err := teams.CreateTeam(context.Background(), admin, strings.Repeat("ж", 50))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("ж", 50), team.TeamName)
}

func TestCreateUserUsernameLength(t *testing.T) {
	teams, dir, _ := newTeams(t)

	_, err := teams.CreateUser(context.Background(), admin, CreateUserInput{Username: strings.Repeat("u", 151), Password: "pw"})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	user, err := teams.CreateUser(context.Background(), admin, CreateUserInput{Username: "  " + strings.Repeat("ю", 150) + " ", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("ю", 150), dir.users[user.UserID].Username)
}

func TestCreateUserHashFailure(t *testing.T) {
	dir := teamFixture()
	teams := NewTeams(dir, newMemPRStore(dir), plainHasher{err: errors.New("boom")})

	_, err := teams.CreateUser(context.Background(), admin, CreateUserInput{Username: "eve", Password: "pw"})
	assert.EqualError(t, err, "boom")
}

func TestSetUserActive(t *testing.T) {
	teams, dir, _ := newTeams(t)

	user, err := teams.SetUserActive(context.Background(), admin, "D", true)
	require.NoError(t, err)
	assert.True(t, user.IsActive)
	assert.True(t, dir.users["D"].IsActive)

	_, err = teams.SetUserActive(context.Background(), caller("B"), "D", false)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))

	_, err = teams.SetUserActive(context.Background(), admin, "ghost", false)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestGetUserReviews(t *testing.T) {
	teams, _, store := newTeams(t)
	store.seedPR("pr1", "A", "B", "C")
	store.seedPR("pr2", "C", "B")

	reviews, err := teams.GetUserReviews(context.Background(), caller("B"), "")
	require.NoError(t, err)
	assert.Equal(t, "B", reviews.UserID)
	assert.Len(t, reviews.PullRequests, 2)

	_, err = teams.GetUserReviews(context.Background(), caller("B"), "C")
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))

	reviews, err = teams.GetUserReviews(context.Background(), admin, "A")
	require.NoError(t, err)
	assert.NotNil(t, reviews.PullRequests)
	assert.Empty(t, reviews.PullRequests)

	_, err = teams.GetUserReviews(context.Background(), admin, "ghost")
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestRequireRole(t *testing.T) {
	assert.NoError(t, RequireRole(admin, domain.RoleAdmin))
	assert.Equal(t, domain.KindForbidden, domain.KindOf(RequireRole(caller("B"), domain.RoleAdmin)))
	assert.Equal(t, domain.KindUnauthorized, domain.KindOf(RequireRole(domain.Identity{}, domain.RoleUser)))
	assert.Equal(t, domain.KindUnauthorized, domain.KindOf(RequireSelfOrAdmin(domain.Identity{}, "x")))
}
