package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	nethttp "net/http"
	"unicode/utf8"

	"github.com/GolovachevS/pr-reviewer-rbac/internal/auth"
	"github.com/GolovachevS/pr-reviewer-rbac/internal/domain"
	"github.com/GolovachevS/pr-reviewer-rbac/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PullRequestService is the PR lifecycle as seen by handlers.
type PullRequestService interface {
	Create(ctx context.Context, caller domain.Identity, name string) (domain.PullRequest, error)
	Get(ctx context.Context, caller domain.Identity, prID string) (domain.PullRequest, error)
	Merge(ctx context.Context, caller domain.Identity, prID string) (domain.PullRequest, error)
	Reassign(ctx context.Context, caller domain.Identity, prID string) (domain.PullRequest, string, error)
}

// TeamService is team and user management as seen by handlers.
type TeamService interface {
	GetTeam(ctx context.Context, caller domain.Identity, teamID string) (domain.Team, error)
	CreateTeam(ctx context.Context, caller domain.Identity, name string) (domain.Team, error)
	CreateUser(ctx context.Context, caller domain.Identity, input service.CreateUserInput) (domain.User, error)
	SetUserActive(ctx context.Context, caller domain.Identity, userID string, isActive bool) (domain.User, error)
	GetUserReviews(ctx context.Context, caller domain.Identity, userID string) (domain.UserReviews, error)
}

// AuthService exchanges credentials for tokens.
type AuthService interface {
	Login(ctx context.Context, username, password string) (auth.LoginResult, error)
}

// Deps bundles what the HTTP layer needs.
type Deps struct {
	PullRequests PullRequestService
	Teams        TeamService
	Auth         AuthService
	Tokens       TokenParser
}

// NewServer wires routes and returns a configured gin.Engine.
func NewServer(deps Deps) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery())

	h := handler{prs: deps.PullRequests, teams: deps.Teams, auth: deps.Auth}

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(nethttp.StatusOK, gin.H{"status": "ok"})
	})

	engine.POST("/auth/login", h.login)

	secured := engine.Group("/", authenticate(deps.Tokens))

	team := secured.Group("/team")
	{
		team.GET("/get", h.getTeam)
		team.GET("/get/:team_id", h.getTeam)
		team.POST("/add", h.createTeam)
	}

	users := secured.Group("/users")
	{
		users.POST("/add", h.createUser)
		users.POST("/setIsActive", h.setUserActive)
		users.GET("/getReview", h.getUserReviews)
		users.GET("/getReview/:user_id", h.getUserReviews)
	}

	pull := secured.Group("/pullRequest")
	{
		pull.POST("/create", h.createPullRequest)
		pull.GET("/get/:pull_request_id", h.getPullRequest)
		pull.POST("/merge", h.mergePullRequest)
		pull.POST("/reassign", h.reassignReviewer)
	}

	return engine
}

// maxPullRequestName matches pull_requests.name VARCHAR(70).
const maxPullRequestName = 70

type handler struct {
	prs   PullRequestService
	teams TeamService
	auth  AuthService
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type createTeamRequest struct {
	TeamName string `json:"team_name" binding:"required"`
}

type createUserRequest struct {
	Username string      `json:"username" binding:"required"`
	Password string      `json:"password" binding:"required"`
	Role     domain.Role `json:"role"`
	TeamID   string      `json:"team_id"`
}

type setActiveRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	IsActive *bool  `json:"is_active" binding:"required"`
}

type createPRRequest struct {
	PullRequestName string `json:"pull_request_name"`
}

type pullRequestIDRequest struct {
	PullRequestID string `json:"pull_request_id" binding:"required"`
}

func (h handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}
	res, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, res)
}

func (h handler) getTeam(c *gin.Context) {
	teamID := c.Param("team_id")
	if teamID != "" {
		if err := validateID("team_id", teamID); err != nil {
			respondError(c, err)
			return
		}
	}

	team, err := h.teams.GetTeam(c.Request.Context(), identityFrom(c), teamID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{"team": team})
}

func (h handler) createTeam(c *gin.Context) {
	var req createTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	team, err := h.teams.CreateTeam(c.Request.Context(), identityFrom(c), req.TeamName)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusCreated, gin.H{"team": team})
}

func (h handler) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}
	if req.TeamID != "" {
		if err := validateID("team_id", req.TeamID); err != nil {
			respondError(c, err)
			return
		}
	}

	user, err := h.teams.CreateUser(c.Request.Context(), identityFrom(c), service.CreateUserInput{
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
		TeamID:   req.TeamID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusCreated, gin.H{"user": user})
}

func (h handler) setUserActive(c *gin.Context) {
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}
	if req.IsActive == nil {
		respondValidationError(c, errors.New("is_active is required"))
		return
	}
	if err := validateID("user_id", req.UserID); err != nil {
		respondError(c, err)
		return
	}

	user, err := h.teams.SetUserActive(c.Request.Context(), identityFrom(c), req.UserID, *req.IsActive)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{"user": user})
}

func (h handler) getUserReviews(c *gin.Context) {
	userID := c.Param("user_id")
	if userID != "" {
		if err := validateID("user_id", userID); err != nil {
			respondError(c, err)
			return
		}
	}

	reviews, err := h.teams.GetUserReviews(c.Request.Context(), identityFrom(c), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, reviews)
}

func (h handler) createPullRequest(c *gin.Context) {
	var req createPRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}
	if utf8.RuneCountInString(req.PullRequestName) > maxPullRequestName {
		respondValidationError(c, fmt.Errorf("pull_request_name is longer than %d characters", maxPullRequestName))
		return
	}

	pr, err := h.prs.Create(c.Request.Context(), identityFrom(c), req.PullRequestName)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusCreated, gin.H{"pr": pr})
}

func (h handler) getPullRequest(c *gin.Context) {
	prID := c.Param("pull_request_id")
	if err := validateID("pull_request_id", prID); err != nil {
		respondError(c, err)
		return
	}

	pr, err := h.prs.Get(c.Request.Context(), identityFrom(c), prID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{"pr": pr})
}

func (h handler) mergePullRequest(c *gin.Context) {
	prID, ok := bindPullRequestID(c)
	if !ok {
		return
	}
	pr, err := h.prs.Merge(c.Request.Context(), identityFrom(c), prID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{"pr": pr})
}

func (h handler) reassignReviewer(c *gin.Context) {
	prID, ok := bindPullRequestID(c)
	if !ok {
		return
	}
	pr, replaced, err := h.prs.Reassign(c.Request.Context(), identityFrom(c), prID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{"pr": pr, "replaced_by": replaced})
}

func bindPullRequestID(c *gin.Context) (string, bool) {
	var req pullRequestIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return "", false
	}
	if err := validateID("pull_request_id", req.PullRequestID); err != nil {
		respondError(c, err)
		return "", false
	}
	return req.PullRequestID, true
}

func validateID(field, value string) error {
	if _, err := uuid.Parse(value); err != nil {
		return domain.NewValidationError(field + " must be a UUID")
	}
	return nil
}

func respondValidationError(c *gin.Context, err error) {
	writeError(c, nethttp.StatusBadRequest, domain.ErrCodeValidation, err.Error())
}

func respondError(c *gin.Context, err error) {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		status := statusFor(appErr)
		if status >= nethttp.StatusInternalServerError {
			slog.Error("request failed",
				slog.String("path", c.FullPath()),
				slog.Bool("retryable", appErr.Retryable),
				slog.String("error", err.Error()))
		}
		writeError(c, status, appErr.Code, appErr.Message)
		return
	}
	slog.Error("request failed", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	writeError(c, nethttp.StatusInternalServerError, domain.ErrCodeInternal, "internal error")
}

func statusFor(err *domain.AppError) int {
	switch err.Kind {
	case domain.KindNotFound:
		return nethttp.StatusNotFound
	case domain.KindConflict:
		return nethttp.StatusConflict
	case domain.KindForbidden:
		return nethttp.StatusForbidden
	case domain.KindUnauthorized:
		return nethttp.StatusUnauthorized
	case domain.KindValidation:
		return nethttp.StatusBadRequest
	case domain.KindStorage:
		if err.Retryable {
			return nethttp.StatusServiceUnavailable
		}
		return nethttp.StatusInternalServerError
	default:
		return nethttp.StatusInternalServerError
	}
}

func writeError(c *gin.Context, status int, code domain.ErrorCode, message string) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
