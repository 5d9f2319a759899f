package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/fsdevblog/shortlinks/internal/cache"
	"github.com/fsdevblog/shortlinks/internal/codegen"
	"github.com/fsdevblog/shortlinks/internal/db"
	"github.com/fsdevblog/shortlinks/internal/models"
	"github.com/fsdevblog/shortlinks/internal/repositories"
	"github.com/fsdevblog/shortlinks/internal/repositories/memstore"
	"github.com/stretchr/testify/suite"
)

// seqGenerator выдает коды по кругу из заданного списка.
type seqGenerator struct {
	mu    sync.Mutex
	codes []string
	calls int
}

func (g *seqGenerator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	code := g.codes[g.calls%len(g.codes)]
	g.calls++
	return code, nil
}

// testClock управляемые часы.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// countingRepo считает чтения ссылок и может подменить ошибку вставки.
type countingRepo struct {
	LinkRepository
	gets      atomic.Int64
	insertErr error
}

func (r *countingRepo) GetByCode(ctx context.Context, code string) (*models.Link, error) {
	r.gets.Add(1)
	return r.LinkRepository.GetByCode(ctx, code) //nolint:wrapcheck
}

func (r *countingRepo) Insert(ctx context.Context, link *models.Link) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	return r.LinkRepository.Insert(ctx, link) //nolint:wrapcheck
}

// mapCache кэш в памяти для проверки сценариев с кэшем.
type mapCache struct {
	mu    sync.Mutex
	links map[string]models.Link
}

func (c *mapCache) Get(_ context.Context, code string) (*models.Link, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.links[code]
	if !ok {
		return nil, cache.ErrMiss
	}
	l.Clicks = 0
	return &l, nil
}

func (c *mapCache) Set(_ context.Context, link *models.Link) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.links[link.ShortCode] = *link
	return nil
}

func (c *mapCache) Delete(_ context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.links, code)
	return nil
}

type RegistryServiceSuite struct {
	suite.Suite
	clock   *testClock
	repo    *countingRepo
	service *RegistryService
}

var baseTime = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func (s *RegistryServiceSuite) SetupTest() {
	s.clock = &testClock{now: baseTime}
	s.repo = &countingRepo{LinkRepository: memstore.NewLinkRepo(db.NewMemStorage())}
	s.service = NewRegistryService(s.repo, codegen.MustNew(), WithClock(s.clock.Now))
}

func (s *RegistryServiceSuite) newService(gen CodeGenerator, opts ...func(*RegistryOptions)) *RegistryService {
	opts = append([]func(*RegistryOptions){WithClock(s.clock.Now)}, opts...)
	return NewRegistryService(s.repo, gen, opts...)
}

func (s *RegistryServiceSuite) TestCreateAndResolve() {
	rawURL := gofakeit.URL()
	link, err := s.service.Create(s.T().Context(), rawURL, TTLPolicy{})
	s.Require().NoError(err)

	s.Len(link.ShortCode, codegen.DefaultLength)
	s.NotEmpty(link.ID)
	s.Zero(link.Clicks)
	s.Equal(baseTime, link.CreatedAt)
	s.Require().NotNil(link.ExpiresAt)
	s.Equal(baseTime.Add(DefaultTTL), *link.ExpiresAt)

	decision, err := s.service.Resolve(s.T().Context(), link.ShortCode, ClickMeta{})
	s.Require().NoError(err)
	s.Equal(rawURL, decision.TargetURL)
	s.EqualValues(1, decision.Clicks)
	s.True(link.CreatedAt.Equal(decision.CreatedAt))
}

func (s *RegistryServiceSuite) TestCreateTTLPolicies() {
	tests := []struct {
		name    string
		ttl     TTLPolicy
		want    *time.Time
		wantErr error
	}{
		{name: "never", ttl: NeverExpire()},
		{name: "one hour", ttl: ExpireAfter(time.Hour), want: ptr(baseTime.Add(time.Hour))},
		{name: "negative", ttl: ExpireAfter(-time.Minute), wantErr: ErrInvalidTTL},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			link, err := s.service.Create(s.T().Context(), "https://example.com/"+tt.name, tt.ttl)
			if tt.wantErr != nil {
				s.Require().ErrorIs(err, tt.wantErr)
				return
			}
			s.Require().NoError(err)
			s.Equal(tt.want, link.ExpiresAt)
		})
	}
}

func (s *RegistryServiceSuite) TestCreateInvalidURL() {
	gen := &seqGenerator{codes: []string{"aaaaaa"}}
	service := s.newService(gen)

	for _, raw := range []string{
		"",
		"not a url",
		"example.com/path",
		"ftp://example.com/file",
		"http://",
		"https://bad_host/",
		"https://example.com/" + string(make([]byte, MaxURLLength)),
	} {
		_, err := service.Create(s.T().Context(), raw, TTLPolicy{})
		s.Require().ErrorIs(err, ErrInvalidURL, raw)
	}
	s.Zero(gen.calls)
}

func (s *RegistryServiceSuite) TestCreateAcceptsHosts() {
	for _, raw := range []string{
		"http://localhost:8080/a",
		"http://127.0.0.1/a",
		"https://sub.example.co.uk/path?q=1#frag",
	} {
		link, err := s.service.Create(s.T().Context(), raw, TTLPolicy{})
		s.Require().NoError(err, raw)
		s.Equal(raw, link.OriginalURL)
	}
}

func (s *RegistryServiceSuite) TestCreateRetriesOnCollision() {
	gen := &seqGenerator{codes: []string{"aaaaaa", "aaaaaa", "bbbbbb"}}
	service := s.newService(gen)

	first, err := service.Create(s.T().Context(), gofakeit.URL(), TTLPolicy{})
	s.Require().NoError(err)
	s.Equal("aaaaaa", first.ShortCode)

	second, err := service.Create(s.T().Context(), gofakeit.URL(), TTLPolicy{})
	s.Require().NoError(err)
	s.Equal("bbbbbb", second.ShortCode)
	s.Equal(3, gen.calls)
}

func (s *RegistryServiceSuite) TestCreateCodeSpaceExhausted() {
	gen := &seqGenerator{codes: []string{"aaaaaa"}}
	service := s.newService(gen, WithMaxAttempts(5))

	_, err := service.Create(s.T().Context(), gofakeit.URL(), TTLPolicy{})
	s.Require().NoError(err)

	_, err = service.Create(s.T().Context(), gofakeit.URL(), TTLPolicy{})
	s.Require().ErrorIs(err, ErrCodeSpaceExhausted)
	s.Equal(1+5, gen.calls)
}

func (s *RegistryServiceSuite) TestCreateStorageFailure() {
	s.repo.insertErr = errors.New("disk is on fire")
	_, err := s.service.Create(s.T().Context(), gofakeit.URL(), TTLPolicy{})
	s.Require().ErrorIs(err, ErrUnavailable)
	s.Require().NotErrorIs(err, ErrCodeSpaceExhausted)
}

func (s *RegistryServiceSuite) TestResolveNotFound() {
	_, err := s.service.Resolve(s.T().Context(), "doesnotexist", ClickMeta{})
	s.Require().ErrorIs(err, ErrNotFound)
}

func (s *RegistryServiceSuite) TestResolveExpiryBoundary() {
	link, err := s.service.Create(s.T().Context(), gofakeit.URL(), ExpireAfter(time.Hour))
	s.Require().NoError(err)

	s.clock.Set(baseTime.Add(time.Hour))
	decision, err := s.service.Resolve(s.T().Context(), link.ShortCode, ClickMeta{})
	s.Require().NoError(err, "link is valid at the expiry instant")
	s.EqualValues(1, decision.Clicks)

	s.clock.Set(baseTime.Add(time.Hour + time.Nanosecond))
	_, err = s.service.Resolve(s.T().Context(), link.ShortCode, ClickMeta{})
	s.Require().ErrorIs(err, ErrExpired)

	stats, err := s.service.GetStats(s.T().Context(), link.ShortCode)
	s.Require().NoError(err)
	s.EqualValues(1, stats.Link.Clicks)
	s.Len(stats.Events, 1)
}

func (s *RegistryServiceSuite) TestResolveRecordsEvents() {
	link, err := s.service.Create(s.T().Context(), gofakeit.URL(), TTLPolicy{})
	s.Require().NoError(err)

	ua := gofakeit.UserAgent()
	_, err = s.service.Resolve(s.T().Context(), link.ShortCode, ClickMeta{UserAgent: ua, Source: "10.0.0.1"})
	s.Require().NoError(err)
	s.clock.Set(baseTime.Add(time.Minute))
	_, err = s.service.Resolve(s.T().Context(), link.ShortCode, ClickMeta{})
	s.Require().NoError(err)

	stats, err := s.service.GetStats(s.T().Context(), link.ShortCode)
	s.Require().NoError(err)
	s.Require().Len(stats.Events, 2)
	s.Equal(ua, stats.Events[0].UserAgent)
	s.Equal("10.0.0.1", stats.Events[0].Source)
	s.True(baseTime.Equal(stats.Events[0].Timestamp))
	s.Equal(models.AnonymousSource, stats.Events[1].Source)
	s.True(baseTime.Add(time.Minute).Equal(stats.Events[1].Timestamp))
}

func (s *RegistryServiceSuite) TestResolveConcurrent() {
	link, err := s.service.Create(s.T().Context(), gofakeit.URL(), NeverExpire())
	s.Require().NoError(err)

	const k = 100
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]struct{}, k)
	)
	wg.Add(k)
	for range k {
		go func() {
			defer wg.Done()
			decision, resolveErr := s.service.Resolve(context.Background(), link.ShortCode, ClickMeta{})
			if !s.NoError(resolveErr) {
				return
			}
			mu.Lock()
			seen[decision.Clicks] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	s.Len(seen, k, "every resolve observes a distinct count")
	stats, err := s.service.GetStats(s.T().Context(), link.ShortCode)
	s.Require().NoError(err)
	s.EqualValues(k, stats.Link.Clicks)
	s.Len(stats.Events, k)
}

func (s *RegistryServiceSuite) TestGetStatsNotFound() {
	_, err := s.service.GetStats(s.T().Context(), "nope00")
	s.Require().ErrorIs(err, ErrNotFound)
}

func (s *RegistryServiceSuite) TestDelete() {
	gen := &seqGenerator{codes: []string{"aaaaaa"}}
	service := s.newService(gen, WithMaxAttempts(3))

	link, err := service.Create(s.T().Context(), gofakeit.URL(), TTLPolicy{})
	s.Require().NoError(err)
	s.Require().NoError(service.Delete(s.T().Context(), link.ShortCode))

	_, err = service.Resolve(s.T().Context(), link.ShortCode, ClickMeta{})
	s.Require().ErrorIs(err, ErrNotFound)
	s.Require().ErrorIs(service.Delete(s.T().Context(), link.ShortCode), ErrNotFound)

	// Код удаленной ссылки не выдается повторно.
	_, err = service.Create(s.T().Context(), gofakeit.URL(), TTLPolicy{})
	s.Require().ErrorIs(err, ErrCodeSpaceExhausted)
}

func (s *RegistryServiceSuite) TestPurgeExpired() {
	service := s.newService(codegen.MustNew(), WithExpiredRetention(24*time.Hour))

	short, err := service.Create(s.T().Context(), gofakeit.URL(), ExpireAfter(time.Hour))
	s.Require().NoError(err)
	long, err := service.Create(s.T().Context(), gofakeit.URL(), ExpireAfter(72*time.Hour))
	s.Require().NoError(err)

	s.clock.Set(baseTime.Add(12 * time.Hour))
	purged, err := service.PurgeExpired(s.T().Context())
	s.Require().NoError(err)
	s.Zero(purged, "expired link stays within retention")

	_, err = service.GetStats(s.T().Context(), short.ShortCode)
	s.Require().NoError(err)

	s.clock.Set(baseTime.Add(26 * time.Hour))
	purged, err = service.PurgeExpired(s.T().Context())
	s.Require().NoError(err)
	s.EqualValues(1, purged)

	// Архивная ссылка остается доступной для статистики, но не для перехода.
	stats, err := service.GetStats(s.T().Context(), short.ShortCode)
	s.Require().NoError(err)
	s.Require().NotNil(stats.Link.ArchivedAt)
	s.Equal(short.OriginalURL, stats.Link.OriginalURL)
	_, err = service.Resolve(s.T().Context(), short.ShortCode, ClickMeta{})
	s.Require().ErrorIs(err, ErrExpired)

	_, err = service.Resolve(s.T().Context(), long.ShortCode, ClickMeta{})
	s.Require().NoError(err)

	s.Require().NoError(service.Delete(s.T().Context(), short.ShortCode))
	_, err = service.GetStats(s.T().Context(), short.ShortCode)
	s.Require().ErrorIs(err, ErrNotFound)
}

func (s *RegistryServiceSuite) TestResolveUsesCache() {
	c := &mapCache{links: make(map[string]models.Link)}
	service := s.newService(codegen.MustNew(), WithCache(c))

	link, err := service.Create(s.T().Context(), gofakeit.URL(), TTLPolicy{})
	s.Require().NoError(err)

	for i := range 3 {
		decision, resolveErr := service.Resolve(s.T().Context(), link.ShortCode, ClickMeta{})
		s.Require().NoError(resolveErr)
		s.EqualValues(i+1, decision.Clicks, "clicks always come from the store")
	}
	s.EqualValues(1, s.repo.gets.Load())

	s.Require().NoError(service.Delete(s.T().Context(), link.ShortCode))
	_, ok := c.links[link.ShortCode]
	s.False(ok)
	_, err = service.Resolve(s.T().Context(), link.ShortCode, ClickMeta{})
	s.Require().ErrorIs(err, ErrNotFound)
}

func (s *RegistryServiceSuite) TestResolveStaleCacheEntry() {
	c := &mapCache{links: make(map[string]models.Link)}
	service := s.newService(codegen.MustNew(), WithCache(c))

	link, err := service.Create(s.T().Context(), gofakeit.URL(), TTLPolicy{})
	s.Require().NoError(err)
	_, err = service.Resolve(s.T().Context(), link.ShortCode, ClickMeta{})
	s.Require().NoError(err)

	// Удаляем в обход сервиса: кэш продолжает хранить ссылку.
	s.Require().NoError(s.repo.Delete(s.T().Context(), link.ShortCode))
	_, err = service.Resolve(s.T().Context(), link.ShortCode, ClickMeta{})
	s.Require().ErrorIs(err, ErrNotFound)
	_, ok := c.links[link.ShortCode]
	s.False(ok)
}

func (s *RegistryServiceSuite) TestCanceledContext() {
	ctx, cancel := context.WithCancel(s.T().Context())
	cancel()

	_, err := s.service.Create(ctx, gofakeit.URL(), TTLPolicy{})
	s.Require().ErrorIs(err, ErrUnavailable)
	s.Require().ErrorIs(err, context.Canceled)
}

func TestRegistryService(t *testing.T) {
	suite.Run(t, new(RegistryServiceSuite))
}

func TestStorageError_HidesRepositoryErrors(t *testing.T) {
	err := storageError(repositories.ErrUnknown)
	if !errors.Is(err, ErrUnavailable) || errors.Is(err, repositories.ErrUnknown) {
		t.Fatalf("unexpected error chain: %v", err)
	}
}

func ptr[T any](v T) *T {
	return &v
}
