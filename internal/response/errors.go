package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrInvalidSubject ErrCode = "INVALID_SUBJECT"
	ErrInvalidTask    ErrCode = "INVALID_TASK"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound      ErrCode = "NOT_FOUND"
	ErrConflict      ErrCode = "CONFLICT"
	ErrAlreadyBooked ErrCode = "ALREADY_BOOKED"
	ErrSlotTaken     ErrCode = "SLOT_TAKEN"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrStorageUnavailable ErrCode = "STORAGE_UNAVAILABLE"
	ErrInternal           ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrInvalidSubject:
		return "Invalid subject name or task count."
	case ErrInvalidTask:
		return "Task does not exist in this subject."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Subject not found."
	case ErrConflict:
		return "Subject already exists."
	case ErrAlreadyBooked:
		return "You already booked a task in this subject."
	case ErrSlotTaken:
		return "Task is already taken."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrStorageUnavailable:
		return "Subject storage is unavailable."
	case ErrInternal:
		return "Internal server error."
	default:
		return "Unexpected error."
	}
}
