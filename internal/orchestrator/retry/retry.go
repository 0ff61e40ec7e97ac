package retry

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Adekabang/DigitalID-sub000/internal/repository"
)

// Class separates errors the orchestrator should retry from errors that
// will reproduce the same outcome forever.
type Class string

const (
	ClassTerminal  Class = "terminal"
	ClassTransient Class = "transient"
)

// Decision is the result of classifying an error.
type Decision struct {
	Class  Class
	Reason string
}

// IsTransient reports whether a bounded retry is worthwhile.
func (d Decision) IsTransient() bool {
	return d.Class == ClassTransient
}

type classifiedError struct {
	err    error
	class  Class
	reason string
}

func (e *classifiedError) Error() string {
	return e.err.Error()
}

func (e *classifiedError) Unwrap() error {
	return e.err
}

// Transient marks an error as retryable regardless of its content.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, class: ClassTransient, reason: "explicit_transient"}
}

// Terminal marks an error as not retryable regardless of its content.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, class: ClassTerminal, reason: "explicit_terminal"}
}

// Classify decides from the error content whether a ledger or provider
// failure is worth retrying. Unknown errors default to terminal: blind
// retries on an already-resolved claim are how duplicate transitions
// happen.
func Classify(err error) Decision {
	if err == nil {
		return Decision{Class: ClassTerminal, Reason: "nil_error"}
	}

	var marked *classifiedError
	if errors.As(err, &marked) {
		return Decision{Class: marked.class, Reason: marked.reason}
	}

	if errors.Is(err, context.Canceled) {
		return Decision{Class: ClassTerminal, Reason: "context_canceled"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Decision{Class: ClassTransient, Reason: "context_deadline_exceeded"}
	}

	// A conflict means the conditional transition's precondition no longer
	// holds: some other worker already moved the row. Retrying reproduces
	// the same answer.
	if errors.Is(err, repository.ErrConflict) {
		return Decision{Class: ClassTerminal, Reason: "precondition_conflict"}
	}
	if errors.Is(err, repository.ErrNotFound) {
		return Decision{Class: ClassTerminal, Reason: "not_found"}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyPostgresCode(pgErr.Code)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Decision{Class: ClassTransient, Reason: "net_timeout"}
	}

	lower := strings.ToLower(err.Error())
	if containsAny(lower, terminalMessageTokens) {
		return Decision{Class: ClassTerminal, Reason: "message_terminal"}
	}
	if containsAny(lower, transientMessageTokens) {
		return Decision{Class: ClassTransient, Reason: "message_transient"}
	}

	return Decision{Class: ClassTerminal, Reason: "unknown_terminal_default"}
}

func classifyPostgresCode(code string) Decision {
	switch code {
	case "40001": // serialization_failure
		return Decision{Class: ClassTransient, Reason: "pg_serialization_failure"}
	case "40P01": // deadlock_detected
		return Decision{Class: ClassTransient, Reason: "pg_deadlock"}
	case "57P03": // cannot_connect_now
		return Decision{Class: ClassTransient, Reason: "pg_starting_up"}
	case "53300": // too_many_connections
		return Decision{Class: ClassTransient, Reason: "pg_too_many_connections"}
	case "23505": // unique_violation
		return Decision{Class: ClassTerminal, Reason: "pg_unique_violation"}
	default:
		if strings.HasPrefix(code, "08") { // connection exceptions
			return Decision{Class: ClassTransient, Reason: "pg_connection"}
		}
		return Decision{Class: ClassTerminal, Reason: "pg_" + code}
	}
}

// Backoff returns the exponential delay before the given attempt,
// capped at max. Attempts are numbered from 1.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

func containsAny(msg string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(msg, token) {
			return true
		}
	}
	return false
}

var transientMessageTokens = []string{
	"timeout",
	"timed out",
	"temporar",
	"unavailable",
	"connection reset",
	"connection refused",
	"broken pipe",
	"too many requests",
	"rate limit",
	"nonce",
	"sequence conflict",
	"http status 429",
	"http status 502",
	"http status 503",
	"http status 504",
}

var terminalMessageTokens = []string{
	"already resolved",
	"already finalized",
	"invalid argument",
	"validation failed",
	"malformed",
	"not found",
	"constraint violation",
}
