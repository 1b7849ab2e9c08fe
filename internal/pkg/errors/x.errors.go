package xerrors

import "errors"
import "github.com/jackc/pgx/v5/pgconn"

func ParsePGErrorCode(err error) string {
	if pgErr, ok := err.(*pgconn.PgError); ok {
		return pgErr.Code // e.g. 23505 for unique_violation
	}
	return "unknown"
}

// PGUniqueViolation is the Postgres code for unique_violation.
const PGUniqueViolation = "23505"

// Generic
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrInternalServer = errors.New("internal server error")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not found")
)

// Ledger domain outcomes. Each maps to one stable response code at the
// REST boundary; none of them is retried by the engine.
var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrDuplicateOperation   = errors.New("ledger operation already recorded")
	ErrInsufficientFunds    = errors.New("insufficient credit")
	ErrInvalidOperationKind = errors.New("unrecognized operation kind")
	ErrEmptyIdempotencyKey  = errors.New("idempotency nonce required")
	ErrEmptyAccountID       = errors.New("owner id required")
)

// ErrWriteConflict is the only retryable condition in the system: a
// concurrent writer appended to the same account between our read and our
// conditional append. The engine retries it internally a bounded number of
// times before surfacing ErrInternalServer.
var ErrWriteConflict = errors.New("ledger write conflict")
