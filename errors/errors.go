package errors

import "fmt"

// Broker taxonomy. RPC callers branch on these to decide the upstream status.
var (
	ErrChannelUnavailable = fmt.Errorf("broker channel not initialized")
	ErrCallTimeout        = fmt.Errorf("rpc call timed out")
	ErrTransport          = fmt.Errorf("broker transport failure")
	ErrUnknownAction      = fmt.Errorf("unknown action")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
)

// Chat domain.
var (
	ErrNotParticipant       = fmt.Errorf("sender is not a participant of this conversation")
	ErrConversationNotFound = fmt.Errorf("conversation not found")
	ErrEmptyMessage         = fmt.Errorf("message has no content")
)

// Accounts.
var (
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrInvalidOTP         = fmt.Errorf("invalid otp")
	ErrTooManyRequests    = fmt.Errorf("too many otp requests")
	ErrAlreadyLoggedIn    = fmt.Errorf("user already logged in")
	ErrNotLoggedIn        = fmt.Errorf("user not logged in")
)
