package core

// Error codes for domain errors surfaced to connections.
const (
	ErrCodeRoomNotFound  = "room_not_found"
	ErrCodeUserNotFound  = "user_not_found"
	ErrCodeAccessDenied  = "access_denied"
	ErrCodeAlreadyJoined = "already_joined"
	ErrCodeBadRequest    = "bad_request"
	ErrCodeUploadFailed  = "upload_failed"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
