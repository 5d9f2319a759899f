package sql

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/fsdevblog/shortlinks/internal/models"
	"github.com/fsdevblog/shortlinks/internal/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	insertLinkSQL = `
INSERT INTO links (short_code, id, original_url, clicks, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	selectLinkSQL = `
SELECT short_code, id::text, original_url, clicks, created_at, expires_at, archived_at
FROM links
WHERE short_code = $1 AND deleted_at IS NULL`

	incrementClicksSQL = `
UPDATE links SET clicks = clicks + 1
WHERE short_code = $1 AND deleted_at IS NULL AND archived_at IS NULL
RETURNING clicks`

	insertEventSQL = `
INSERT INTO click_events (short_code, ts, user_agent, source)
VALUES ($1, $2, $3, $4)`

	appendEventSQL = `
INSERT INTO click_events (short_code, ts, user_agent, source)
SELECT $1, $2, $3, $4
WHERE EXISTS (
    SELECT 1 FROM links WHERE short_code = $1 AND deleted_at IS NULL AND archived_at IS NULL
)`

	selectEventsSQL = `
SELECT id, short_code, ts, user_agent, source
FROM click_events
WHERE short_code = $1
ORDER BY id`

	deleteLinkSQL = `
UPDATE links SET deleted_at = now()
WHERE short_code = $1 AND deleted_at IS NULL`

	purgeExpiredSQL = `
UPDATE links SET archived_at = now()
WHERE deleted_at IS NULL AND archived_at IS NULL AND expires_at IS NOT NULL AND expires_at < $1`
)

// LinkRepo репозиторий ссылок и переходов в PostgreSQL.
type LinkRepo struct {
	conn   *pgxpool.Pool
	logger *zap.Logger
}

// NewLinkRepo создает репозиторий поверх пула подключений.
func NewLinkRepo(conn *pgxpool.Pool, logger *zap.Logger) *LinkRepo {
	return &LinkRepo{
		conn:   conn,
		logger: logger.Named("repository/sql/link"),
	}
}

// Insert сохраняет ссылку. Занятый код дает repositories.ErrDuplicateKey.
func (l *LinkRepo) Insert(ctx context.Context, link *models.Link) error {
	_, err := l.conn.Exec(ctx, insertLinkSQL,
		link.ShortCode, link.ID, link.OriginalURL, link.Clicks, link.CreatedAt, link.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert link %s: %w", link.ShortCode, convertErrorType(err))
	}
	return nil
}

func (l *LinkRepo) GetByCode(ctx context.Context, code string) (*models.Link, error) {
	var link models.Link
	err := l.conn.QueryRow(ctx, selectLinkSQL, code).Scan(
		&link.ShortCode, &link.ID, &link.OriginalURL, &link.Clicks, &link.CreatedAt, &link.ExpiresAt, &link.ArchivedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get link by code %s: %w", code, convertErrorType(err))
	}
	link.CreatedAt = link.CreatedAt.UTC()
	link.ExpiresAt = utcPtr(link.ExpiresAt)
	link.ArchivedAt = utcPtr(link.ArchivedAt)
	return &link, nil
}

func (l *LinkRepo) IncrementClicks(ctx context.Context, code string) (int64, error) {
	var clicks int64
	if err := l.conn.QueryRow(ctx, incrementClicksSQL, code).Scan(&clicks); err != nil {
		return 0, fmt.Errorf("failed to increment clicks for %s: %w", code, convertErrorType(err))
	}
	return clicks, nil
}

// RecordClick увеличивает счетчик и пишет событие в одной транзакции.
// Блокировка строки ссылки, взятая UPDATE, сериализует параллельные переходы по одному коду.
func (l *LinkRepo) RecordClick(ctx context.Context, code string, event models.ClickEvent) (int64, error) {
	var clicks int64
	err := pgx.BeginFunc(ctx, l.conn, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, incrementClicksSQL, code).Scan(&clicks); err != nil {
			return err //nolint:wrapcheck
		}
		_, err := tx.Exec(ctx, insertEventSQL, code, event.Timestamp, event.UserAgent, event.Source)
		return err //nolint:wrapcheck
	})
	if err != nil {
		return 0, fmt.Errorf("failed to record click for %s: %w", code, convertErrorType(err))
	}
	return clicks, nil
}

func (l *LinkRepo) Append(ctx context.Context, code string, event models.ClickEvent) error {
	tag, err := l.conn.Exec(ctx, appendEventSQL, code, event.Timestamp, event.UserAgent, event.Source)
	if err != nil {
		return fmt.Errorf("failed to append click for %s: %w", code, convertErrorType(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to append click for %s: %w", code, repositories.ErrNotFound)
	}
	return nil
}

// ListFor построчно читает события перехода. Каждый обход выполняет новый запрос.
func (l *LinkRepo) ListFor(ctx context.Context, code string) iter.Seq2[models.ClickEvent, error] {
	return func(yield func(models.ClickEvent, error) bool) {
		rows, err := l.conn.Query(ctx, selectEventsSQL, code)
		if err != nil {
			yield(models.ClickEvent{}, fmt.Errorf("failed to query clicks for %s: %w", code, convertErrorType(err)))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var ev models.ClickEvent
			if scanErr := rows.Scan(&ev.ID, &ev.ShortCode, &ev.Timestamp, &ev.UserAgent, &ev.Source); scanErr != nil {
				yield(models.ClickEvent{}, fmt.Errorf("failed to scan click: %w", convertErrorType(scanErr)))
				return
			}
			ev.Timestamp = ev.Timestamp.UTC()
			if !yield(ev, nil) {
				return
			}
		}
		if rowsErr := rows.Err(); rowsErr != nil {
			yield(models.ClickEvent{}, fmt.Errorf("failed to read clicks for %s: %w", code, convertErrorType(rowsErr)))
		}
	}
}

func (l *LinkRepo) Delete(ctx context.Context, code string) error {
	tag, err := l.conn.Exec(ctx, deleteLinkSQL, code)
	if err != nil {
		return fmt.Errorf("failed to delete link %s: %w", code, convertErrorType(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to delete link %s: %w", code, repositories.ErrNotFound)
	}
	return nil
}

// PurgeExpired архивирует ссылки, истекшие раньше before. Архивные ссылки читаются,
// но новые переходы по ним не записываются.
func (l *LinkRepo) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := l.conn.Exec(ctx, purgeExpiredSQL, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired links: %w", convertErrorType(err))
	}
	if n := tag.RowsAffected(); n > 0 {
		l.logger.Debug("expired links archived", zap.Int64("count", n))
	}
	return tag.RowsAffected(), nil
}

func (l *LinkRepo) Ping(ctx context.Context) error {
	return l.conn.Ping(ctx) //nolint:wrapcheck
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
