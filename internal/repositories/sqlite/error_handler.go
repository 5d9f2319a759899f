package sqlite

import (
	"context"
	"strings"

	"github.com/fsdevblog/shortlinks/internal/repositories"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

func convertErrorType(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey),
		strings.Contains(err.Error(), "UNIQUE constraint failed"):
		return errors.Wrap(repositories.ErrDuplicateKey, err.Error())
	case errors.Is(err, gorm.ErrRecordNotFound):
		return repositories.ErrNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return errors.Wrap(repositories.ErrUnknown, err.Error())
	}
}
