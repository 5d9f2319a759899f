package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fsdevblog/shortlinks/internal/cache"
	"github.com/fsdevblog/shortlinks/internal/models"
	"github.com/fsdevblog/shortlinks/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultMaxAttempts количество попыток подобрать свободный код.
	DefaultMaxAttempts = 10
	// DefaultExpiredRetention сколько истекшая ссылка остается доступной для статистики.
	DefaultExpiredRetention = 30 * 24 * time.Hour
)

// ClickMeta данные о клиенте, которые передает транспорт.
type ClickMeta struct {
	UserAgent string
	Source    string // IP клиента; пустое значение записывается как models.AnonymousSource
}

type RegistryOptions struct {
	DefaultTTL       time.Duration
	MaxAttempts      int
	ExpiredRetention time.Duration
	Clock            func() time.Time
	Cache            LinkCache
	Logger           *zap.Logger
}

func WithDefaultTTL(ttl time.Duration) func(*RegistryOptions) {
	return func(o *RegistryOptions) {
		o.DefaultTTL = ttl
	}
}

func WithMaxAttempts(n int) func(*RegistryOptions) {
	return func(o *RegistryOptions) {
		o.MaxAttempts = n
	}
}

func WithExpiredRetention(d time.Duration) func(*RegistryOptions) {
	return func(o *RegistryOptions) {
		o.ExpiredRetention = d
	}
}

// WithClock подменяет источник текущего времени (для тестов).
func WithClock(clock func() time.Time) func(*RegistryOptions) {
	return func(o *RegistryOptions) {
		o.Clock = clock
	}
}

func WithCache(c LinkCache) func(*RegistryOptions) {
	return func(o *RegistryOptions) {
		o.Cache = c
	}
}

func WithLogger(logger *zap.Logger) func(*RegistryOptions) {
	return func(o *RegistryOptions) {
		o.Logger = logger
	}
}

// RegistryService реестр коротких ссылок: создание, разрешение кода в адрес перехода и статистика.
//
// Сервис ничего не отображает и не логирует исходы запросов: каждый исход возвращается
// отдельной ошибкой, а как его показать, решает вызывающий.
type RegistryService struct {
	repo   LinkRepository
	gen    CodeGenerator
	cache  LinkCache
	logger *zap.Logger
	now    func() time.Time

	defaultTTL  time.Duration
	maxAttempts int
	retention   time.Duration
}

func NewRegistryService(repo LinkRepository, gen CodeGenerator, opts ...func(*RegistryOptions)) *RegistryService {
	options := RegistryOptions{
		DefaultTTL:       DefaultTTL,
		MaxAttempts:      DefaultMaxAttempts,
		ExpiredRetention: DefaultExpiredRetention,
		Clock:            time.Now,
		Logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.MaxAttempts < 1 {
		options.MaxAttempts = 1
	}

	return &RegistryService{
		repo:        repo,
		gen:         gen,
		cache:       options.Cache,
		logger:      options.Logger.Named("services/registry"),
		now:         options.Clock,
		defaultTTL:  options.DefaultTTL,
		maxAttempts: options.MaxAttempts,
		retention:   options.ExpiredRetention,
	}
}

// Create создает короткую ссылку на rawURL.
//
// Параметры:
//   - ctx: контекст выполнения
//   - rawURL: исходная ссылка, сохраняется без изменений
//   - ttl: политика срока жизни
//
// Возвращает:
//   - *models.Link: созданная запись с нулевым счетчиком
//   - error: ErrInvalidURL, ErrInvalidTTL, ErrCodeSpaceExhausted или ErrUnavailable
func (s *RegistryService) Create(ctx context.Context, rawURL string, ttl TTLPolicy) (*models.Link, error) {
	if _, err := ValidateURL(rawURL); err != nil {
		return nil, err
	}
	lifetime, err := ttl.lifetime(s.defaultTTL)
	if err != nil {
		return nil, err
	}

	createdAt := s.now().UTC().Truncate(time.Microsecond)
	var expiresAt *time.Time
	if lifetime > 0 {
		exp := createdAt.Add(lifetime)
		expiresAt = &exp
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		code, genErr := s.gen.Generate()
		if genErr != nil {
			return nil, fmt.Errorf("%w: generate code: %w", ErrUnavailable, genErr)
		}

		link := &models.Link{
			ID:          uuid.NewString(),
			ShortCode:   code,
			OriginalURL: rawURL,
			CreatedAt:   createdAt,
			ExpiresAt:   expiresAt,
		}
		insertErr := s.repo.Insert(ctx, link)
		if insertErr == nil {
			return link, nil
		}
		if !errors.Is(insertErr, repositories.ErrDuplicateKey) {
			return nil, storageError(insertErr)
		}
		s.logger.Debug("short code collision, retrying",
			zap.String("code", code),
			zap.Int("attempt", attempt),
		)
	}
	return nil, fmt.Errorf("%w: no free code after %d attempts", ErrCodeSpaceExhausted, s.maxAttempts)
}

// Resolve разрешает короткий код в адрес перехода и засчитывает переход.
//
// Проверка срока действия выполняется до записи перехода: по истекшей ссылке
// переход не засчитывается. Ссылка действительна до момента ExpiresAt включительно.
func (s *RegistryService) Resolve(ctx context.Context, code string, meta ClickMeta) (*models.RedirectDecision, error) {
	link, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if link.IsExpired(now) {
		return nil, fmt.Errorf("%w: %s expired at %s", ErrExpired, code, link.ExpiresAt.Format(time.RFC3339))
	}

	source := meta.Source
	if source == "" {
		source = models.AnonymousSource
	}
	clicks, err := s.repo.RecordClick(ctx, code, models.ClickEvent{
		ShortCode: code,
		Timestamp: now.Truncate(time.Microsecond),
		UserAgent: meta.UserAgent,
		Source:    source,
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			// Ссылку удалили после чтения из кэша.
			s.dropCached(ctx, code)
			return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
		}
		return nil, storageError(err)
	}

	return &models.RedirectDecision{
		TargetURL: link.OriginalURL,
		Clicks:    clicks,
		CreatedAt: link.CreatedAt,
	}, nil
}

// GetStats возвращает ссылку и журнал переходов. Истекшие ссылки тоже доступны.
// Ничего не изменяет.
func (s *RegistryService) GetStats(ctx context.Context, code string) (*models.LinkStats, error) {
	link, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
		}
		return nil, storageError(err)
	}

	// Журнал читается после счетчика и может содержать более поздние переходы.
	// Берем ровно столько событий, сколько было засчитано на момент чтения ссылки.
	events := make([]models.ClickEvent, 0, link.Clicks)
	for ev, listErr := range s.repo.ListFor(ctx, code) {
		if listErr != nil {
			return nil, storageError(listErr)
		}
		if int64(len(events)) == link.Clicks {
			break
		}
		events = append(events, ev)
	}

	return &models.LinkStats{Link: *link, Events: events}, nil
}

// Delete помечает ссылку удаленной. Повторно код не выдается.
func (s *RegistryService) Delete(ctx context.Context, code string) error {
	if err := s.repo.Delete(ctx, code); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, code)
		}
		return storageError(err)
	}
	s.dropCached(ctx, code)
	return nil
}

// PurgeExpired архивирует ссылки, истекшие раньше, чем retention назад: их счетчик и журнал
// замораживаются, статистика остается доступной, переход по-прежнему дает ErrExpired.
// Возвращает количество архивированных ссылок.
func (s *RegistryService) PurgeExpired(ctx context.Context) (int64, error) {
	before := s.now().UTC().Add(-s.retention)
	purged, err := s.repo.PurgeExpired(ctx, before)
	if err != nil {
		return purged, storageError(err)
	}
	return purged, nil
}

// lookup ищет ссылку сначала в кэше, затем в хранилище. Ошибки кэша не фатальны.
func (s *RegistryService) lookup(ctx context.Context, code string) (*models.Link, error) {
	if s.cache != nil {
		link, err := s.cache.Get(ctx, code)
		if err == nil {
			return link, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("cache lookup failed", zap.String("code", code), zap.Error(err))
		}
	}

	link, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
		}
		return nil, storageError(err)
	}

	if s.cache != nil {
		if setErr := s.cache.Set(ctx, link); setErr != nil {
			s.logger.Warn("cache store failed", zap.String("code", code), zap.Error(setErr))
		}
	}
	return link, nil
}

func (s *RegistryService) dropCached(ctx context.Context, code string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, code); err != nil {
		s.logger.Warn("cache invalidation failed", zap.String("code", code), zap.Error(err))
	}
}

// storageError приводит ошибку хранилища к ErrUnavailable. Отмена и таймаут контекста
// сохраняются, чтобы вызывающий мог отличить их от сбоя хранилища.
func storageError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return fmt.Errorf("%w: %s", ErrUnavailable, err.Error())
}
