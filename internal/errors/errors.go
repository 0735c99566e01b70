package errors

import (
	"errors"
)

// UserError represents an error with both technical and user-friendly messages
type UserError struct {
	Err       error
	UserMsg   string
	Retryable bool
}

func (e *UserError) Error() string {
	return e.Err.Error()
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// Predefined errors
var (
	ErrStorage = &UserError{
		Err:       errors.New("access store unavailable"),
		UserMsg:   "Something went wrong on our side. Please try again later.",
		Retryable: true,
	}

	ErrUnauthorized = &UserError{
		Err:       errors.New("unauthorized actor"),
		UserMsg:   "Sorry, you are not allowed to do that.",
		Retryable: false,
	}

	ErrNoSuchRequest = &UserError{
		Err:       errors.New("no pending request for actor"),
		UserMsg:   "There is no pending request for this user. It may have been handled already.",
		Retryable: false,
	}

	ErrTranslationFailed = &UserError{
		Err:       errors.New("translation provider failed"),
		UserMsg:   "The translation service is currently unavailable. Please try again later.",
		Retryable: true,
	}

	ErrTranslationInProgress = &UserError{
		Err:       errors.New("translation already in progress"),
		UserMsg:   "You already have a translation in progress. Please wait for it to complete.",
		Retryable: false,
	}

	ErrTranslatorBusy = &UserError{
		Err:       errors.New("translation capacity reached"),
		UserMsg:   "The bot is busy with other translations right now. Please try again in a moment.",
		Retryable: true,
	}

	ErrActorBanned = &UserError{
		Err:       errors.New("actor is banned"),
		UserMsg:   "This user is banned and cannot be approved.",
		Retryable: false,
	}

	ErrCannotBanAdmin = &UserError{
		Err:       errors.New("admin cannot be banned"),
		UserMsg:   "The administrator cannot be banned.",
		Retryable: false,
	}

	ErrInvalidCommand = &UserError{
		Err:       errors.New("invalid command"),
		UserMsg:   "Invalid command. Usage: /approve <user_id>, /deny <user_id>, /ban_user <user_id>, /set_data <user_id> <key> <value>, /get_data <user_id> <key>, /pending, /status [user_id]",
		Retryable: false,
	}
)

// Wrap wraps a technical error with a user message
func Wrap(err error, userMsg string, retryable bool) *UserError {
	return &UserError{
		Err:       err,
		UserMsg:   userMsg,
		Retryable: retryable,
	}
}

// GetUserMessage extracts user-friendly message from error
func GetUserMessage(err error) string {
	var userErr *UserError
	if errors.As(err, &userErr) {
		return userErr.UserMsg
	}
	// Default message for unexpected errors
	return "An unexpected error occurred. Please try again later."
}

// IsRetryable checks if an error can be retried
func IsRetryable(err error) bool {
	var userErr *UserError
	if errors.As(err, &userErr) {
		return userErr.Retryable
	}
	return false
}
