package services

import (
	"fmt"
	"strings"
	"time"
)

// DefaultTTL срок жизни анонимной ссылки по умолчанию.
const DefaultTTL = 5 * 24 * time.Hour

// TTLPolicy политика срока жизни создаваемой ссылки.
// Нулевое значение означает срок по умолчанию для развертывания.
type TTLPolicy struct {
	Duration time.Duration
	Never    bool
}

// NeverExpire ссылка без срока действия.
func NeverExpire() TTLPolicy {
	return TTLPolicy{Never: true}
}

// ExpireAfter ссылка, действующая d с момента создания.
func ExpireAfter(d time.Duration) TTLPolicy {
	return TTLPolicy{Duration: d}
}

// ParseTTLPolicy разбирает TTL из запроса: пустая строка дает политику по умолчанию,
// "never" бессрочную ссылку, остальное читается через time.ParseDuration ("72h", "30m").
func ParseTTLPolicy(raw string) (TTLPolicy, error) {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "":
		return TTLPolicy{}, nil
	case "never":
		return NeverExpire(), nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return TTLPolicy{}, fmt.Errorf("%w: %s", ErrInvalidTTL, err.Error())
	}
	if d <= 0 {
		return TTLPolicy{}, fmt.Errorf("%w: ttl must be positive", ErrInvalidTTL)
	}
	return ExpireAfter(d), nil
}

// lifetime возвращает срок жизни ссылки; 0 означает бессрочную ссылку.
func (p TTLPolicy) lifetime(defaultTTL time.Duration) (time.Duration, error) {
	switch {
	case p.Never:
		return 0, nil
	case p.Duration == 0:
		return defaultTTL, nil
	case p.Duration < 0:
		return 0, fmt.Errorf("%w: ttl must be positive", ErrInvalidTTL)
	default:
		return p.Duration, nil
	}
}
