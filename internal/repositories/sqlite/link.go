package sqlite

import (
	"context"
	"iter"
	"time"

	"github.com/fsdevblog/shortlinks/internal/models"
	"github.com/fsdevblog/shortlinks/internal/repositories"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	liveLinkCond     = "short_code = ? AND deleted_at IS NULL"
	writableLinkCond = "short_code = ? AND deleted_at IS NULL AND archived_at IS NULL"
)

// LinkRepo репозиторий ссылок и переходов в SQLite.
type LinkRepo struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

func NewLinkRepo(db *gorm.DB, logger *zap.Logger) *LinkRepo {
	return &LinkRepo{
		db:     db,
		logger: logger.Named("repository/sqlite/link"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (u *LinkRepo) Insert(ctx context.Context, link *models.Link) error {
	if err := u.db.WithContext(ctx).Create(link).Error; err != nil {
		return errors.Wrapf(convertErrorType(err), "failed to insert link %s", link.ShortCode)
	}
	return nil
}

func (u *LinkRepo) GetByCode(ctx context.Context, code string) (*models.Link, error) {
	var link models.Link
	if err := u.db.WithContext(ctx).Where(liveLinkCond, code).First(&link).Error; err != nil {
		return nil, errors.Wrapf(convertErrorType(err), "failed to get link by code %s", code)
	}
	return &link, nil
}

func (u *LinkRepo) IncrementClicks(ctx context.Context, code string) (int64, error) {
	var clicks int64
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		clicks, err = incrementClicks(tx, code)
		return err
	})
	if err != nil {
		return 0, errors.Wrapf(convertErrorType(err), "failed to increment clicks for %s", code)
	}
	return clicks, nil
}

// RecordClick увеличивает счетчик и сохраняет событие в одной транзакции.
func (u *LinkRepo) RecordClick(ctx context.Context, code string, event models.ClickEvent) (int64, error) {
	event.ID = 0
	event.ShortCode = code
	var clicks int64
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if clicks, err = incrementClicks(tx, code); err != nil {
			return err
		}
		return tx.Create(&event).Error
	})
	if err != nil {
		return 0, errors.Wrapf(convertErrorType(err), "failed to record click for %s", code)
	}
	return clicks, nil
}

func (u *LinkRepo) Append(ctx context.Context, code string, event models.ClickEvent) error {
	event.ID = 0
	event.ShortCode = code
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Link{}).Where(writableLinkCond, code).Count(&count).Error; err != nil {
			return err //nolint:wrapcheck
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Create(&event).Error
	})
	if err != nil {
		return errors.Wrapf(convertErrorType(err), "failed to append click for %s", code)
	}
	return nil
}

// ListFor читает события страницами по repositories.EventsPageSize в порядке возрастания id.
func (u *LinkRepo) ListFor(ctx context.Context, code string) iter.Seq2[models.ClickEvent, error] {
	return func(yield func(models.ClickEvent, error) bool) {
		var lastID int64
		for {
			var page []models.ClickEvent
			err := u.db.WithContext(ctx).
				Where("short_code = ? AND id > ?", code, lastID).
				Order("id").
				Limit(repositories.EventsPageSize).
				Find(&page).Error
			if err != nil {
				yield(models.ClickEvent{}, errors.Wrapf(convertErrorType(err), "failed to read clicks for %s", code))
				return
			}
			for _, ev := range page {
				ev.Timestamp = ev.Timestamp.UTC()
				if !yield(ev, nil) {
					return
				}
				lastID = ev.ID
			}
			if len(page) < repositories.EventsPageSize {
				return
			}
		}
	}
}

func (u *LinkRepo) Delete(ctx context.Context, code string) error {
	res := u.db.WithContext(ctx).
		Model(&models.Link{}).
		Where(liveLinkCond, code).
		Update("deleted_at", u.now())
	if res.Error != nil {
		return errors.Wrapf(convertErrorType(res.Error), "failed to delete link %s", code)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(repositories.ErrNotFound, "failed to delete link %s", code)
	}
	return nil
}

// PurgeExpired архивирует ссылки, истекшие раньше before.
func (u *LinkRepo) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	res := u.db.WithContext(ctx).
		Model(&models.Link{}).
		Where("deleted_at IS NULL AND archived_at IS NULL AND expires_at IS NOT NULL AND expires_at < ?", before.UTC()).
		Update("archived_at", u.now())
	if res.Error != nil {
		return 0, errors.Wrap(convertErrorType(res.Error), "failed to purge expired links")
	}
	if res.RowsAffected > 0 {
		u.logger.Debug("expired links archived", zap.Int64("count", res.RowsAffected))
	}
	return res.RowsAffected, nil
}

func (u *LinkRepo) Ping(ctx context.Context) error {
	sqlDB, err := u.db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get sql.DB")
	}
	return sqlDB.PingContext(ctx) //nolint:wrapcheck
}

func incrementClicks(tx *gorm.DB, code string) (int64, error) {
	res := tx.Model(&models.Link{}).
		Where(writableLinkCond, code).
		Update("clicks", gorm.Expr("clicks + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}

	var link models.Link
	if err := tx.Select("clicks").Where("short_code = ?", code).Take(&link).Error; err != nil {
		return 0, err //nolint:wrapcheck
	}
	return link.Clicks, nil
}
