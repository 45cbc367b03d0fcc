package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidConfiguration ErrorCode = 100
	ErrCodeInvalidSignal        ErrorCode = 101
	ErrCodeInvalidParameter     ErrorCode = 102
	ErrCodeInvalidTrigger       ErrorCode = 103

	// Policy errors (200-299)
	ErrCodePeriodMismatch ErrorCode = 200

	// Data errors (300-399)
	ErrCodeNoTimestamps       ErrorCode = 300
	ErrCodeHistoryLoadFailed  ErrorCode = 301
	ErrCodeDownloadFailed     ErrorCode = 302
	ErrCodeDataSourceNotReady ErrorCode = 303

	// Strategy errors (400-499)
	ErrCodeStrategyInit     ErrorCode = 400
	ErrCodeStrategyCallback ErrorCode = 401
	ErrCodeStrategyNotFound ErrorCode = 402

	// Ledger errors (500-599)
	ErrCodeSignalRejected   ErrorCode = 500
	ErrCodePositionNotFound ErrorCode = 501

	// Artifact errors (600-699)
	ErrCodeArtifactWrite   ErrorCode = 600
	ErrCodeArtifactMissing ErrorCode = 601
)
