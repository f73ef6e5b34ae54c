package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidPeriod        ErrorCode = 102
	ErrCodeInvalidMultiplier    ErrorCode = 103
	ErrCodeInvalidSize          ErrorCode = 104
	ErrCodeInvalidPrice         ErrorCode = 105
	ErrCodeInvalidDirection     ErrorCode = 106
	ErrCodeInvalidExitSpec      ErrorCode = 107
	ErrCodeInsufficientData     ErrorCode = 108
	ErrCodeMissingParameter     ErrorCode = 109

	// Data/Resource errors (200-299)
	ErrCodeDataNotFound          ErrorCode = 200
	ErrCodeDataSourceUnavailable ErrorCode = 201
	ErrCodeQueryFailed           ErrorCode = 202
	ErrCodeDataParseFailed       ErrorCode = 203

	// Indicator errors (300-399)
	ErrCodeIndicatorCalculation ErrorCode = 300

	// Pipeline errors (400-499)
	ErrCodePipelineNotWarmedUp ErrorCode = 400
	ErrCodeFeatureSchemaDrift  ErrorCode = 401

	// Position errors (500-599)
	ErrCodePositionNotFound      ErrorCode = 500
	ErrCodePositionAlreadyClosed ErrorCode = 501
	ErrCodeOpenPositionFailed    ErrorCode = 502

	// Ledger errors (600-699)
	ErrCodeLedgerWriteFailed ErrorCode = 600
	ErrCodeLedgerQueryFailed ErrorCode = 601

	// Backtest errors (700-799)
	ErrCodeBacktestConfigError   ErrorCode = 700
	ErrCodeBacktestNoDataPaths   ErrorCode = 701
	ErrCodeBacktestNoResultsDir  ErrorCode = 702
	ErrCodeBacktestRunFailed     ErrorCode = 703
	ErrCodeBacktestNoDatasource  ErrorCode = 704
	ErrCodeBacktestStateConflict ErrorCode = 705
)
