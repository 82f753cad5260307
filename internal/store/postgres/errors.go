package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/Tyrowin/chatrouter/internal/store"
	"github.com/lib/pq"
)

const (
	uniqueViolation     pq.ErrorCode = "23505"
	foreignKeyViolation pq.ErrorCode = "23503"
	adminShutdown       pq.ErrorCode = "57P01"
	connectionException              = "08"
)

// classify wraps err with the store sentinel it corresponds to, keeping the
// driver error in the chain.
func classify(op string, err error) error {
	var pqErr *pq.Error
	var netErr net.Error

	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, store.ErrNotFound)
	case errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Table == "private_pairs":
		return fmt.Errorf("%s: %w: %w", op, store.ErrDuplicatePrivateChat, err)
	case errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation:
		return fmt.Errorf("%s: %w: %w", op, store.ErrNotFound, err)
	case errors.As(err, &pqErr) && (pqErr.Code.Class() == connectionException || pqErr.Code == adminShutdown):
		return fmt.Errorf("%s: %w: %w", op, store.ErrStoreUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.As(err, &netErr):
		return fmt.Errorf("%s: %w: %w", op, store.ErrStoreUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
