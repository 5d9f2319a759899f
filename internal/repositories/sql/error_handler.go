package sql

import (
	"context"
	"errors"
	"fmt"

	"github.com/fsdevblog/shortlinks/internal/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolationCode = "23505"

func convertErrorType(err error) error {
	if err == nil {
		return nil
	}

	var (
		nativeErr error
		pgErr     *pgconn.PgError
	)
	switch {
	case errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode:
		nativeErr = repositories.ErrDuplicateKey
	case errors.Is(err, pgx.ErrNoRows):
		nativeErr = repositories.ErrNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		nativeErr = repositories.ErrUnknown
	}
	return fmt.Errorf("%w: %s", nativeErr, err.Error())
}
