package errs

var (
	ErrArgs             = NewCodeError(1001, "invalid request arguments")
	ErrTokenMissing     = NewCodeError(1101, "token missing")
	ErrTokenInvalid     = NewCodeError(1102, "token invalid")
	ErrTokenExpired     = NewCodeError(1103, "token expired")
	ErrTokenRevoked     = NewCodeError(1104, "token revoked")
	ErrUserExists       = NewCodeError(1201, "user with this email already exists")
	ErrLoginFailed      = NewCodeError(1202, "invalid email or password")
	ErrConversationGone = NewCodeError(1301, "conversation not found")
	ErrMessageEmpty     = NewCodeError(1302, "message text or image is required")
	ErrUploadInvalid    = NewCodeError(1401, "only image files are allowed")
	ErrUploadTooLarge   = NewCodeError(1402, "file size must be less than 5MB")
	ErrInternal         = NewCodeError(1500, "internal server error")
)
