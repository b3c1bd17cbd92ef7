package server

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument   = 1000
	ErrCodeInvalidJSON       = 1001
	ErrCodeRequestTooLarge   = 1002
	ErrCodeInvalidQuery      = 1003
	ErrCodeInvalidID         = 1004
	ErrCodeMissingRequired   = 1009
	ErrCodeInvalidTimeWindow = 1010
	ErrCodeInvalidKind       = 1011
	ErrCodeFileTooLarge      = 1101
	ErrCodeUnsupportedType   = 1102

	// Domain state (2xxx)
	ErrCodeProgramNotFound       = 2001
	ErrCodeParentNotFound        = 2002
	ErrCodeAttachmentNotFound    = 2003
	ErrCodeScheduleEventNotFound = 2004
	ErrCodeConflict              = 2102
	ErrCodeAttachmentIDExists    = 2103
	ErrCodeUploadFinalized       = 2104
	ErrCodeSizeMismatch          = 2201
	ErrCodeProgramMismatch       = 2202

	// Auth & limits (3xxx)
	ErrCodeUnauthorized      = 3001
	ErrCodeForbidden         = 3002
	ErrCodeResourceExhausted = 3003

	// Internal/system (4xxx)
	ErrCodeInternal         = 4001
	ErrCodeStoreFailure     = 4002
	ErrCodeBlobStoreFailure = 4003
	ErrCodeNotImplemented   = 4005
)

func defaultErrorCodeByStatus(status int) int {
	switch status {
	case 400:
		return ErrCodeInvalidArgument
	case 401:
		return ErrCodeUnauthorized
	case 403:
		return ErrCodeForbidden
	case 404:
		return ErrCodeAttachmentNotFound
	case 409:
		return ErrCodeConflict
	case 413:
		return ErrCodeFileTooLarge
	case 415:
		return ErrCodeUnsupportedType
	case 422:
		return ErrCodeSizeMismatch
	case 429:
		return ErrCodeResourceExhausted
	case 500:
		return ErrCodeInternal
	case 501:
		return ErrCodeNotImplemented
	default:
		return 0
	}
}
