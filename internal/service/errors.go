package service

import (
	"errors"

	"alcyxob/coach-sessions/internal/domain"
)

// ErrorKind is the stable category of a rejected operation.
type ErrorKind string

const (
	KindUnauthorized       ErrorKind = "UNAUTHORIZED"
	KindForbidden          ErrorKind = "FORBIDDEN"
	KindNotFound           ErrorKind = "NOT_FOUND"
	KindInvalidState       ErrorKind = "INVALID_STATE"
	KindValidationFailed   ErrorKind = "VALIDATION_FAILED"
	KindPreconditionFailed ErrorKind = "PRECONDITION_FAILED"
)

// Error is a rejected operation. Nothing was written when one is returned.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// invalidInput is a validation error that carries its own message.
func invalidInput(message string) *Error {
	return newError(KindValidationFailed, "INVALID_INPUT", message)
}

// KindOf returns the kind of err, if err is a service error.
func KindOf(err error) (ErrorKind, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return "", false
}

// --- Error Definitions ---
var (
	ErrUnauthorized         = newError(KindUnauthorized, "UNAUTHORIZED", "authentication required")
	ErrForbidden            = newError(KindForbidden, "FORBIDDEN", "you are not allowed to perform this action")
	ErrAuthenticationFailed = newError(KindUnauthorized, "AUTHENTICATION_FAILED", "invalid email or password")
	ErrAccountDisabled      = newError(KindUnauthorized, "ACCOUNT_DISABLED", "account is disabled")

	// sessions
	ErrNoTrainerAssigned     = newError(KindPreconditionFailed, "NO_TRAINER_ASSIGNED", "no trainer is assigned to you")
	ErrSessionAlreadyActive  = newError(KindPreconditionFailed, "SESSION_ALREADY_ACTIVE", "you already have an open session")
	ErrSessionNotFound       = newError(KindNotFound, "SESSION_NOT_FOUND", "session not found")
	ErrNoOpenSession         = newError(KindNotFound, "NO_OPEN_SESSION", "no open session")
	ErrNotYourAthlete        = newError(KindForbidden, "NOT_YOUR_ATHLETE", "this athlete is not assigned to you")
	ErrSessionNotJoinable    = newError(KindInvalidState, "SESSION_NOT_JOINABLE", "session is not waiting for a trainer")
	ErrSessionNotCancellable = newError(KindInvalidState, "SESSION_NOT_CANCELLABLE", "session is already finished")
	ErrSessionNotActive      = newError(KindInvalidState, "SESSION_NOT_ACTIVE", "session is not active")

	// rounds
	ErrRoundNotFound       = newError(KindNotFound, "ROUND_NOT_FOUND", "round not found")
	ErrRoundNotReleasable  = newError(KindInvalidState, "ROUND_NOT_RELEASABLE", "only draft rounds can be released")
	ErrRoundEmpty          = newError(KindValidationFailed, "ROUND_EMPTY", "round has no exercises")
	ErrRoundNotDeletable   = newError(KindInvalidState, "ROUND_NOT_DELETABLE", "only draft rounds can be deleted")
	ErrRoundNotCompletable = newError(KindInvalidState, "ROUND_NOT_COMPLETABLE", "only released rounds can be completed")
	ErrRoundNotEditable    = newError(KindInvalidState, "ROUND_NOT_EDITABLE", "completed rounds cannot be changed")
	ErrRoundBusy           = newError(KindInvalidState, "ROUND_BUSY", "round was changed concurrently, try again")

	// planned exercises
	ErrUnknownExercise        = newError(KindValidationFailed, "UNKNOWN_EXERCISE", "exercise does not exist")
	ErrPlannedFieldNotAllowed = newError(KindValidationFailed, "PLANNED_FIELD_NOT_ALLOWED", "value given for a field the exercise does not use")
	ErrInvalidPrescription    = newError(KindValidationFailed, "INVALID_PRESCRIPTION", "planned values must be non-negative and RPE between 1 and 10")

	// feedback
	ErrFeedbackCountMismatch    = newError(KindValidationFailed, "FEEDBACK_COUNT_MISMATCH", "feedback is required for every exercise of the round")
	ErrFeedbackExerciseMismatch = newError(KindValidationFailed, "FEEDBACK_EXERCISE_MISMATCH", "feedback must name each exercise of the round once")
	ErrPainRegionRequired       = newError(KindValidationFailed, "PAIN_REGION_REQUIRED", "select where it hurt")
	ErrUnexpectedPainRegions    = newError(KindValidationFailed, "UNEXPECTED_PAIN_REGIONS", "pain regions given without pain")
	ErrInvalidDifficulty        = newError(KindValidationFailed, "INVALID_DIFFICULTY", "unknown difficulty")
	ErrInvalidBodyRegion        = newError(KindValidationFailed, "INVALID_BODY_REGION", "unknown body region")

	// users
	ErrUserNotFound     = newError(KindNotFound, "USER_NOT_FOUND", "user not found")
	ErrEmailTaken       = newError(KindPreconditionFailed, "EMAIL_TAKEN", "a user with this email already exists")
	ErrPasswordTooShort = newError(KindValidationFailed, "PASSWORD_TOO_SHORT", "password must be at least 8 characters")
	ErrWrongPassword    = newError(KindValidationFailed, "WRONG_PASSWORD", "current password is incorrect")
	ErrInvalidRoles     = newError(KindValidationFailed, "INVALID_ROLES", "at least one known role is required")
	ErrNotATrainer      = newError(KindValidationFailed, "NOT_A_TRAINER", "user does not hold the trainer role")
	ErrNotAnAthlete     = newError(KindValidationFailed, "NOT_AN_ATHLETE", "user does not hold the athlete role")

	// exercise catalogue
	ErrExerciseNotFound   = newError(KindNotFound, "EXERCISE_NOT_FOUND", "exercise not found")
	ErrExerciseInUse      = newError(KindPreconditionFailed, "EXERCISE_IN_USE", "exercise is used in a session round")
	ErrInvalidVideo       = newError(KindValidationFailed, "INVALID_VIDEO", "only video files are accepted")
	ErrVideoTooLarge      = newError(KindValidationFailed, "VIDEO_TOO_LARGE", "video exceeds the maximum size")
	ErrVideoNotUploaded   = newError(KindPreconditionFailed, "VIDEO_NOT_UPLOADED", "video has not been uploaded")
	ErrExerciseHasNoVideo = newError(KindNotFound, "NO_VIDEO", "exercise has no video")

	// weight log
	ErrWeightOutOfRange    = newError(KindValidationFailed, "WEIGHT_OUT_OF_RANGE", "weight must be between 20 and 300 kg")
	ErrWeightEntryNotFound = newError(KindNotFound, "WEIGHT_ENTRY_NOT_FOUND", "weight entry not found")
)

// requireRole checks identity first, then role membership.
func requireRole(caller domain.Caller, role domain.Role) error {
	if !caller.IsAuthenticated() {
		return ErrUnauthorized
	}
	if !caller.Has(role) {
		return ErrForbidden
	}
	return nil
}
