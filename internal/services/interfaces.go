package services

import (
	"context"
	"iter"
	"time"

	"github.com/fsdevblog/shortlinks/internal/models"
)

// LinkStore хранилище ссылок.
//
// Отсутствие записи сообщается ошибкой repositories.ErrNotFound, занятый код при вставке
// ошибкой repositories.ErrDuplicateKey.
type LinkStore interface {
	// Insert сохраняет новую ссылку. Из одновременных вставок одного кода успешна ровно одна.
	Insert(ctx context.Context, link *models.Link) error
	// GetByCode возвращает ссылку независимо от срока действия. Удаленные ссылки не возвращаются.
	GetByCode(ctx context.Context, code string) (*models.Link, error)
	// IncrementClicks атомарно увеличивает счетчик на 1 и возвращает новое значение.
	IncrementClicks(ctx context.Context, code string) (int64, error)
	// Delete помечает ссылку удаленной, код остается занятым.
	Delete(ctx context.Context, code string) error
	// PurgeExpired помечает удаленными ссылки, истекшие раньше before.
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// ClickLog журнал переходов по ссылкам. Записи только добавляются.
type ClickLog interface {
	Append(ctx context.Context, code string, event models.ClickEvent) error
	// ListFor возвращает конечную последовательность событий в порядке добавления.
	// Последовательность ленивая, ее можно обходить повторно.
	ListFor(ctx context.Context, code string) iter.Seq2[models.ClickEvent, error]
}

// ClickRecorder выполняет увеличение счетчика и запись в журнал как одну операцию.
type ClickRecorder interface {
	RecordClick(ctx context.Context, code string, event models.ClickEvent) (int64, error)
}

// LinkRepository полный набор операций хранилища, нужный сервису. Реализуется каждым бэкендом.
type LinkRepository interface {
	LinkStore
	ClickLog
	ClickRecorder
}

// CodeGenerator источник кандидатов в короткие коды.
type CodeGenerator interface {
	Generate() (string, error)
}

// LinkCache необязательный кэш неизменяемых полей ссылки.
type LinkCache interface {
	Get(ctx context.Context, code string) (*models.Link, error)
	Set(ctx context.Context, link *models.Link) error
	Delete(ctx context.Context, code string) error
}
