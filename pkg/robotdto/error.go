package robotdto

const (
	CodeUnrecognizedZone  = "UNRECOGNIZED_ZONE"
	CodeStorageExhausted  = "STORAGE_EXHAUSTED"
	CodeWriteFailure      = "WRITE_FAILURE"
	CodeProtocolViolation = "PROTOCOL_VIOLATION"
	CodeHandshakeTimeout  = "HANDSHAKE_TIMEOUT"
	CodeInvalidMove       = "INVALID_MOVE"
	CodeNotYourTurn       = "NOT_YOUR_TURN"
	CodeRobotBusy         = "ROBOT_BUSY"
	CodeNoSession         = "NO_SESSION"
	CodeEngine            = "ENGINE_ERROR"
	CodeInternal          = "INTERNAL"
)

type DomainError struct {
	Code      string
	Message   string
	Retryable bool
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "robot bridge error"
}
