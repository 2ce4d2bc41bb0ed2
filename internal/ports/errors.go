package ports

import "errors"

// Standard application-level errors.
// Adapters wrap underlying infrastructure errors with these standard errors.
var (
	// General errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Broker gateway errors
	ErrGatewayUnavailable   = errors.New("broker gateway is unavailable")
	ErrConnectionFailed     = errors.New("failed to connect to the broker")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("broker authentication failed (check credentials)")
	ErrInsufficientFunds    = errors.New("insufficient funds for operation")
	ErrOrderRejected        = errors.New("broker rejected the order")
	ErrOrderPlacementFailed = errors.New("failed to place order")
	ErrDuplicateSubmission  = errors.New("identical intent already submitted in this invocation")

	// Credential store errors
	ErrNoCredentials       = errors.New("no stored credentials")
	ErrCredentialDecrypt   = errors.New("failed to decrypt stored credentials")
	ErrCredentialCorrupted = errors.New("stored credentials are corrupted")

	// Database errors
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrDBConnection   = errors.New("database connection error")
	ErrQueryFailed    = errors.New("database query failed")
)
