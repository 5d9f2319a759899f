// Package cache кэширует неизменяемые поля ссылок в Redis.
//
// Счетчик переходов в кэш не попадает: он всегда читается из хранилища.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fsdevblog/shortlinks/internal/models"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "link:"
	DefaultTTL = 10 * time.Minute
)

// ErrMiss ссылки нет в кэше.
var ErrMiss = errors.New("[cache]: miss")

// redisClient часть клиента Redis, используемая кэшем.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type cachedLink struct {
	ID          string     `json:"id"`
	OriginalURL string     `json:"originalUrl"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// LinkCache read-through кэш ссылок поверх Redis.
type LinkCache struct {
	client redisClient
	ttl    time.Duration
	now    func() time.Time
}

type Options struct {
	TTL time.Duration
}

func WithTTL(ttl time.Duration) func(*Options) {
	return func(o *Options) {
		o.TTL = ttl
	}
}

func NewLinkCache(client redisClient, opts ...func(*Options)) *LinkCache {
	options := Options{TTL: DefaultTTL}
	for _, opt := range opts {
		opt(&options)
	}
	return &LinkCache{
		client: client,
		ttl:    options.TTL,
		now:    time.Now,
	}
}

// Get возвращает ссылку из кэша. Поле Clicks всегда нулевое.
// Если ссылки в кэше нет, возвращает ErrMiss.
func (c *LinkCache) Get(ctx context.Context, code string) (*models.Link, error) {
	raw, err := c.client.Get(ctx, keyPrefix+code).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("[cache]: get %s: %w", code, err)
	}

	var cl cachedLink
	if unmarshalErr := json.Unmarshal(raw, &cl); unmarshalErr != nil {
		return nil, fmt.Errorf("[cache]: decode %s: %w", code, unmarshalErr)
	}
	return &models.Link{
		ID:          cl.ID,
		ShortCode:   code,
		OriginalURL: cl.OriginalURL,
		CreatedAt:   cl.CreatedAt,
		ExpiresAt:   cl.ExpiresAt,
	}, nil
}

// Set кладет ссылку в кэш. Запись живет не дольше, чем сама ссылка;
// уже истекшие ссылки не кэшируются.
func (c *LinkCache) Set(ctx context.Context, link *models.Link) error {
	ttl := c.ttl
	if link.ExpiresAt != nil {
		left := link.ExpiresAt.Sub(c.now())
		if left <= 0 {
			return nil
		}
		ttl = min(ttl, left)
	}

	raw, err := json.Marshal(cachedLink{
		ID:          link.ID,
		OriginalURL: link.OriginalURL,
		CreatedAt:   link.CreatedAt,
		ExpiresAt:   link.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("[cache]: encode %s: %w", link.ShortCode, err)
	}
	if setErr := c.client.Set(ctx, keyPrefix+link.ShortCode, raw, ttl).Err(); setErr != nil {
		return fmt.Errorf("[cache]: set %s: %w", link.ShortCode, setErr)
	}
	return nil
}

func (c *LinkCache) Delete(ctx context.Context, code string) error {
	if err := c.client.Del(ctx, keyPrefix+code).Err(); err != nil {
		return fmt.Errorf("[cache]: delete %s: %w", code, err)
	}
	return nil
}
