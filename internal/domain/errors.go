package domain

import (
	"errors"
)

// ErrorKind groups errors by how callers should react to them.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindConflict
	KindForbidden
	KindUnauthorized
	KindValidation
	KindStorage
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	case KindUnauthorized:
		return "unauthorized"
	case KindValidation:
		return "validation"
	case KindStorage:
		return "storage_failure"
	default:
		return "internal"
	}
}

type ErrorCode string

const (
	ErrCodeTeamExists   ErrorCode = "TEAM_EXISTS"
	ErrCodeUserExists   ErrorCode = "USER_EXISTS"
	ErrCodePRExists     ErrorCode = "PR_EXISTS"
	ErrCodePRMerged     ErrorCode = "PR_MERGED"
	ErrCodeNotReviewer  ErrorCode = "NOT_REVIEWER"
	ErrCodeNoCandidate  ErrorCode = "NO_CANDIDATE"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeValidation   ErrorCode = "VALIDATION"
	ErrCodeStorage      ErrorCode = "STORAGE_FAILURE"
	ErrCodeInternal     ErrorCode = "INTERNAL"
)

// AppError keeps domain level errors consistent.
type AppError struct {
	Kind      ErrorKind
	Code      ErrorCode
	Message   string
	Retryable bool
	Err       error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first AppError in err's chain.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsRetryable reports whether err is a storage failure worth retrying.
func IsRetryable(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == KindStorage && appErr.Retryable
}

func NewNotFoundError(message string, err error) *AppError {
	return &AppError{Kind: KindNotFound, Code: ErrCodeNotFound, Message: message, Err: err}
}

func NewTeamExistsError(err error) *AppError {
	return &AppError{Kind: KindConflict, Code: ErrCodeTeamExists, Message: "team already exists", Err: err}
}

func NewUserExistsError(err error) *AppError {
	return &AppError{Kind: KindConflict, Code: ErrCodeUserExists, Message: "user already exists", Err: err}
}

func NewPRExistsError(err error) *AppError {
	return &AppError{Kind: KindConflict, Code: ErrCodePRExists, Message: "pull request with the same name already exists for this author", Err: err}
}

func NewPRMergedError() *AppError {
	return &AppError{Kind: KindConflict, Code: ErrCodePRMerged, Message: "cannot reassign reviewers of a merged pull request"}
}

func NewNoCandidateError() *AppError {
	return &AppError{Kind: KindConflict, Code: ErrCodeNoCandidate, Message: "no active replacement candidate in team"}
}

func NewNotReviewerError() *AppError {
	return &AppError{Kind: KindForbidden, Code: ErrCodeNotReviewer, Message: "user is not a reviewer of this pull request"}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{Kind: KindForbidden, Code: ErrCodeForbidden, Message: message}
}

func NewUnauthorizedError(message string, err error) *AppError {
	return &AppError{Kind: KindUnauthorized, Code: ErrCodeUnauthorized, Message: message, Err: err}
}

func NewValidationError(message string) *AppError {
	return &AppError{Kind: KindValidation, Code: ErrCodeValidation, Message: message}
}

// NewStorageError marks err as a failed store round trip or commit.
func NewStorageError(err error, retryable bool) *AppError {
	return &AppError{Kind: KindStorage, Code: ErrCodeStorage, Message: "storage failure", Retryable: retryable, Err: err}
}
