// Package repotest содержит общий набор тестов, который обязан проходить каждый репозиторий ссылок.
package repotest

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/fsdevblog/shortlinks/internal/models"
	"github.com/fsdevblog/shortlinks/internal/repositories"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

// Repository поведение, которое проверяет набор.
type Repository interface {
	Insert(ctx context.Context, link *models.Link) error
	GetByCode(ctx context.Context, code string) (*models.Link, error)
	IncrementClicks(ctx context.Context, code string) (int64, error)
	RecordClick(ctx context.Context, code string, event models.ClickEvent) (int64, error)
	Append(ctx context.Context, code string, event models.ClickEvent) error
	ListFor(ctx context.Context, code string) iter.Seq2[models.ClickEvent, error]
	Delete(ctx context.Context, code string) error
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
	Ping(ctx context.Context) error
}

// LinkRepoSuite набор тестов репозитория. New вызывается перед каждым тестом
// и должен возвращать пустое хранилище.
type LinkRepoSuite struct {
	suite.Suite
	New func() Repository

	// Workers число параллельных горутин в тестах конкурентности.
	Workers int

	repo Repository
}

func (s *LinkRepoSuite) SetupTest() {
	s.repo = s.New()
	if s.Workers == 0 {
		s.Workers = 50
	}
}

func (s *LinkRepoSuite) TestInsertAndGet() {
	link := NewLink("abc123", nil)
	s.Require().NoError(s.repo.Insert(s.T().Context(), link))

	got, err := s.repo.GetByCode(s.T().Context(), "abc123")
	s.Require().NoError(err)
	s.Equal(link.ID, got.ID)
	s.Equal(link.OriginalURL, got.OriginalURL)
	s.True(link.CreatedAt.Equal(got.CreatedAt))
	s.Nil(got.ExpiresAt)
	s.Zero(got.Clicks)
}

func (s *LinkRepoSuite) TestInsertDuplicate() {
	s.Require().NoError(s.repo.Insert(s.T().Context(), NewLink("dup001", nil)))
	err := s.repo.Insert(s.T().Context(), NewLink("dup001", nil))
	s.Require().ErrorIs(err, repositories.ErrDuplicateKey)
}

func (s *LinkRepoSuite) TestInsertConcurrentSameCode() {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	wg.Add(s.Workers)
	for range s.Workers {
		go func() {
			defer wg.Done()
			if err := s.repo.Insert(context.Background(), NewLink("race01", nil)); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	s.Equal(1, winners)
}

func (s *LinkRepoSuite) TestGetMissing() {
	_, err := s.repo.GetByCode(s.T().Context(), "nope00")
	s.Require().ErrorIs(err, repositories.ErrNotFound)
}

func (s *LinkRepoSuite) TestExpiresAtRoundTrip() {
	exp := time.Now().UTC().Add(time.Hour).Truncate(time.Microsecond)
	s.Require().NoError(s.repo.Insert(s.T().Context(), NewLink("exp001", &exp)))

	got, err := s.repo.GetByCode(s.T().Context(), "exp001")
	s.Require().NoError(err)
	s.Require().NotNil(got.ExpiresAt)
	s.True(exp.Equal(*got.ExpiresAt))
}

func (s *LinkRepoSuite) TestIncrementClicks() {
	s.Require().NoError(s.repo.Insert(s.T().Context(), NewLink("inc001", nil)))
	for i := range 3 {
		n, err := s.repo.IncrementClicks(s.T().Context(), "inc001")
		s.Require().NoError(err)
		s.EqualValues(i+1, n)
	}

	_, err := s.repo.IncrementClicks(s.T().Context(), "nope00")
	s.Require().ErrorIs(err, repositories.ErrNotFound)
}

func (s *LinkRepoSuite) TestRecordClickConcurrent() {
	s.Require().NoError(s.repo.Insert(s.T().Context(), NewLink("hot001", nil)))
	s.Require().NoError(s.repo.Insert(s.T().Context(), NewLink("cold01", nil)))

	var wg sync.WaitGroup
	wg.Add(s.Workers)
	for range s.Workers {
		go func() {
			defer wg.Done()
			_, err := s.repo.RecordClick(context.Background(), "hot001", NewEvent())
			s.NoError(err)
		}()
	}
	wg.Wait()

	link, err := s.repo.GetByCode(s.T().Context(), "hot001")
	s.Require().NoError(err)
	s.EqualValues(s.Workers, link.Clicks)

	events := s.collect("hot001")
	s.Len(events, s.Workers)
	for i := 1; i < len(events); i++ {
		s.Greater(events[i].ID, events[i-1].ID)
		s.Equal("hot001", events[i].ShortCode)
	}

	cold, err := s.repo.GetByCode(s.T().Context(), "cold01")
	s.Require().NoError(err)
	s.Zero(cold.Clicks)
	s.Empty(s.collect("cold01"))
}

func (s *LinkRepoSuite) TestRecordClickMissing() {
	_, err := s.repo.RecordClick(s.T().Context(), "nope00", NewEvent())
	s.Require().ErrorIs(err, repositories.ErrNotFound)
	s.Empty(s.collect("nope00"))
}

func (s *LinkRepoSuite) TestAppendAndListFor() {
	s.Require().NoError(s.repo.Insert(s.T().Context(), NewLink("log001", nil)))

	agents := []string{"first", "second", "third"}
	for _, ua := range agents {
		ev := NewEvent()
		ev.UserAgent = ua
		s.Require().NoError(s.repo.Append(s.T().Context(), "log001", ev))
	}

	seq := s.repo.ListFor(s.T().Context(), "log001")
	for range 2 {
		var got []string
		for ev, err := range seq {
			s.Require().NoError(err)
			got = append(got, ev.UserAgent)
		}
		s.Equal(agents, got)
	}

	s.Require().ErrorIs(s.repo.Append(s.T().Context(), "nope00", NewEvent()), repositories.ErrNotFound)
}

func (s *LinkRepoSuite) TestListForEarlyStop() {
	s.Require().NoError(s.repo.Insert(s.T().Context(), NewLink("stop01", nil)))
	for range 5 {
		_, err := s.repo.RecordClick(s.T().Context(), "stop01", NewEvent())
		s.Require().NoError(err)
	}

	n := 0
	for _, err := range s.repo.ListFor(s.T().Context(), "stop01") {
		s.Require().NoError(err)
		n++
		if n == 2 {
			break
		}
	}
	s.Equal(2, n)
}

func (s *LinkRepoSuite) TestDelete() {
	s.Require().NoError(s.repo.Insert(s.T().Context(), NewLink("del001", nil)))
	s.Require().NoError(s.repo.Delete(s.T().Context(), "del001"))

	_, err := s.repo.GetByCode(s.T().Context(), "del001")
	s.Require().ErrorIs(err, repositories.ErrNotFound)
	s.Require().ErrorIs(s.repo.Delete(s.T().Context(), "del001"), repositories.ErrNotFound)

	// Код удаленной ссылки остается занятым.
	s.Require().ErrorIs(s.repo.Insert(s.T().Context(), NewLink("del001", nil)), repositories.ErrDuplicateKey)
}

func (s *LinkRepoSuite) TestPurgeExpired() {
	ctx := s.T().Context()
	now := time.Now().UTC().Truncate(time.Microsecond)
	old := now.Add(-48 * time.Hour)
	recent := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	s.Require().NoError(s.repo.Insert(ctx, NewLink("old001", &old)))
	s.Require().NoError(s.repo.Insert(ctx, NewLink("rec001", &recent)))
	s.Require().NoError(s.repo.Insert(ctx, NewLink("fut001", &future)))
	s.Require().NoError(s.repo.Insert(ctx, NewLink("nev001", nil)))
	_, err := s.repo.RecordClick(ctx, "old001", NewEvent())
	s.Require().NoError(err)

	purged, err := s.repo.PurgeExpired(ctx, now.Add(-24*time.Hour))
	s.Require().NoError(err)
	s.EqualValues(1, purged)

	for _, code := range []string{"rec001", "fut001", "nev001"} {
		got, getErr := s.repo.GetByCode(ctx, code)
		s.Require().NoError(getErr, code)
		s.Nil(got.ArchivedAt, code)
	}

	purged, err = s.repo.PurgeExpired(ctx, now.Add(-24*time.Hour))
	s.Require().NoError(err)
	s.Zero(purged)
}

func (s *LinkRepoSuite) TestArchivedLinkStaysReadable() {
	ctx := s.T().Context()
	old := time.Now().UTC().Add(-48 * time.Hour).Truncate(time.Microsecond)
	s.Require().NoError(s.repo.Insert(ctx, NewLink("arc001", &old)))
	_, err := s.repo.RecordClick(ctx, "arc001", NewEvent())
	s.Require().NoError(err)

	purged, err := s.repo.PurgeExpired(ctx, time.Now().UTC())
	s.Require().NoError(err)
	s.Require().EqualValues(1, purged)

	got, err := s.repo.GetByCode(ctx, "arc001")
	s.Require().NoError(err)
	s.Require().NotNil(got.ArchivedAt)
	s.EqualValues(1, got.Clicks)

	var events int
	for _, listErr := range s.repo.ListFor(ctx, "arc001") {
		s.Require().NoError(listErr)
		events++
	}
	s.Equal(1, events)

	// Счетчик и журнал архивной ссылки заморожены.
	_, err = s.repo.RecordClick(ctx, "arc001", NewEvent())
	s.Require().ErrorIs(err, repositories.ErrNotFound)
	_, err = s.repo.IncrementClicks(ctx, "arc001")
	s.Require().ErrorIs(err, repositories.ErrNotFound)
	s.Require().ErrorIs(s.repo.Append(ctx, "arc001", NewEvent()), repositories.ErrNotFound)

	got, err = s.repo.GetByCode(ctx, "arc001")
	s.Require().NoError(err)
	s.EqualValues(1, got.Clicks)

	// Архивную ссылку можно удалить, после чего она пропадает.
	s.Require().NoError(s.repo.Delete(ctx, "arc001"))
	_, err = s.repo.GetByCode(ctx, "arc001")
	s.Require().ErrorIs(err, repositories.ErrNotFound)
	s.Require().ErrorIs(s.repo.Insert(ctx, NewLink("arc001", nil)), repositories.ErrDuplicateKey)
}

func (s *LinkRepoSuite) TestPing() {
	s.Require().NoError(s.repo.Ping(s.T().Context()))
}

func (s *LinkRepoSuite) collect(code string) []models.ClickEvent {
	var events []models.ClickEvent
	for ev, err := range s.repo.ListFor(s.T().Context(), code) {
		s.Require().NoError(err)
		events = append(events, ev)
	}
	return events
}

// NewLink возвращает ссылку со случайным URL и временем создания, округленным до микросекунд.
func NewLink(code string, expiresAt *time.Time) *models.Link {
	return &models.Link{
		ID:          uuid.NewString(),
		ShortCode:   code,
		OriginalURL: gofakeit.URL(),
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
		ExpiresAt:   expiresAt,
	}
}

// NewEvent возвращает событие перехода со случайными данными клиента.
func NewEvent() models.ClickEvent {
	return models.ClickEvent{
		Timestamp: time.Now().UTC().Truncate(time.Microsecond),
		UserAgent: gofakeit.UserAgent(),
		Source:    gofakeit.IPv4Address(),
	}
}
