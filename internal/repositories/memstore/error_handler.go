package memstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/fsdevblog/shortlinks/internal/db/memory"
	"github.com/fsdevblog/shortlinks/internal/repositories"
)

// convertErrorType конвертирует специфичные ошибки хранилища в памяти
// в общие ошибки уровня репозитория.
//
// Параметры:
//   - err: исходная ошибка
//
// Возвращает:
//   - error: преобразованная ошибка или nil, если входная ошибка nil
func convertErrorType(err error) error {
	if err == nil {
		return nil
	}

	var nativeErr error
	switch {
	case errors.Is(err, memory.ErrDuplicateKey):
		nativeErr = repositories.ErrDuplicateKey
	case errors.Is(err, memory.ErrNotFound):
		nativeErr = repositories.ErrNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		nativeErr = repositories.ErrUnknown
	}

	return fmt.Errorf("%w: %s", nativeErr, err.Error())
}
