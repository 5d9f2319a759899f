package memstore

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/fsdevblog/shortlinks/internal/db"
	"github.com/fsdevblog/shortlinks/internal/db/memory"
	"github.com/fsdevblog/shortlinks/internal/models"
)

// LinkRepo репозиторий ссылок и переходов в памяти.
type LinkRepo struct {
	s   *db.MemoryStorage
	now func() time.Time
}

// NewLinkRepo создает новый экземпляр репозитория.
//
// Параметры:
//   - store: экземпляр хранилища в памяти
//
// Возвращает:
//   - *LinkRepo: инициализированный репозиторий
func NewLinkRepo(store *db.MemoryStorage) *LinkRepo {
	return &LinkRepo{
		s:   store,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Insert сохраняет новую ссылку. Если код уже занят (в том числе удаленной записью),
// возвращает repositories.ErrDuplicateKey.
func (u *LinkRepo) Insert(ctx context.Context, link *models.Link) error {
	if err := memory.Set[models.Link](ctx, link.ShortCode, link, u.s.MStorage); err != nil {
		return fmt.Errorf("failed to insert link %s: %w", link.ShortCode, convertErrorType(err))
	}
	return nil
}

// GetByCode возвращает ссылку по короткому коду. Удаленные записи не возвращаются.
func (u *LinkRepo) GetByCode(ctx context.Context, code string) (*models.Link, error) {
	link, err := memory.Get[models.Link](ctx, code, u.s.MStorage)
	if err != nil {
		return nil, fmt.Errorf("failed to get link by code %s: %w", code, convertErrorType(err))
	}
	if link.IsDeleted() {
		return nil, fmt.Errorf("link %s is deleted: %w", code, convertErrorType(memory.ErrNotFound))
	}
	return link, nil
}

// IncrementClicks увеличивает счетчик переходов без записи в журнал.
func (u *LinkRepo) IncrementClicks(ctx context.Context, code string) (int64, error) {
	link, err := memory.Update(ctx, code, u.s.MStorage, func(l *models.Link) error {
		if !writable(l) {
			return memory.ErrNotFound
		}
		l.Clicks++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment clicks for %s: %w", code, convertErrorType(err))
	}
	return link.Clicks, nil
}

// RecordClick увеличивает счетчик и добавляет событие в журнал под одной блокировкой ключа.
//
// Возвращает:
//   - int64: значение счетчика после увеличения
//   - error: repositories.ErrNotFound, если ссылки нет
func (u *LinkRepo) RecordClick(ctx context.Context, code string, event models.ClickEvent) (int64, error) {
	event.ShortCode = code
	link, err := memory.UpdateWithLog(ctx, code, u.s.MStorage, func(l *models.Link) (*models.ClickEvent, error) {
		if !writable(l) {
			return nil, memory.ErrNotFound
		}
		l.Clicks++
		return &event, nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to record click for %s: %w", code, convertErrorType(err))
	}
	return link.Clicks, nil
}

// Append добавляет событие в журнал существующей ссылки, не трогая счетчик.
func (u *LinkRepo) Append(ctx context.Context, code string, event models.ClickEvent) error {
	event.ShortCode = code
	_, err := memory.UpdateWithLog(ctx, code, u.s.MStorage, func(l *models.Link) (*models.ClickEvent, error) {
		if !writable(l) {
			return nil, memory.ErrNotFound
		}
		return &event, nil
	})
	if err != nil {
		return fmt.Errorf("failed to append click for %s: %w", code, convertErrorType(err))
	}
	return nil
}

// ListFor возвращает события переходов по коду в порядке добавления.
// Номер события равен его позиции в журнале, начиная с 1.
func (u *LinkRepo) ListFor(ctx context.Context, code string) iter.Seq2[models.ClickEvent, error] {
	return func(yield func(models.ClickEvent, error) bool) {
		var seq int64
		for ev, err := range memory.Log[models.ClickEvent](ctx, code, u.s.MStorage) {
			if err != nil {
				yield(models.ClickEvent{}, fmt.Errorf("failed to read clicks for %s: %w", code, convertErrorType(err)))
				return
			}
			seq++
			ev.ID = seq
			if !yield(*ev, nil) {
				return
			}
		}
	}
}

// Delete помечает ссылку удаленной. Код остается занятым.
func (u *LinkRepo) Delete(ctx context.Context, code string) error {
	now := u.now()
	_, err := memory.Update(ctx, code, u.s.MStorage, func(l *models.Link) error {
		if l.IsDeleted() {
			return memory.ErrNotFound
		}
		l.DeletedAt = &now
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete link %s: %w", code, convertErrorType(err))
	}
	return nil
}

// PurgeExpired архивирует ссылки, истекшие раньше before. Архивные записи остаются
// доступны через GetByCode и ListFor. Возвращает количество архивированных записей.
func (u *LinkRepo) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	now := u.now()
	purged, err := memory.UpdateAll(ctx, u.s.MStorage, func(l *models.Link) (bool, error) {
		if !writable(l) || l.ExpiresAt == nil || !l.ExpiresAt.Before(before) {
			return false, nil
		}
		l.ArchivedAt = &now
		return true, nil
	})
	if err != nil {
		return purged, fmt.Errorf("failed to purge expired links: %w", convertErrorType(err))
	}
	return purged, nil
}

// Ping хранилище в памяти доступно всегда, пока жив процесс.
func (u *LinkRepo) Ping(ctx context.Context) error {
	return ctx.Err() //nolint:wrapcheck
}

// writable запись принимает новые переходы: не удалена и не в архиве.
func writable(l *models.Link) bool {
	return !l.IsDeleted() && !l.IsArchived()
}
