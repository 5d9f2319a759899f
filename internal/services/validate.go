package services

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
)

// MaxURLLength максимальная длина сокращаемой ссылки.
const MaxURLLength = 2048

// hostnameRegex в соответствии с `RFC 1123` за исключением - исключает корневые доменные имена (без зоны).
var hostnameRegex = regexp.MustCompile(`^([a-zA-Z0-9](-?[a-zA-Z0-9])*\.)+([a-zA-Z0-9](-?[a-zA-Z0-9])*)$`)

// ValidateURL проверяет, что строка является абсолютной http(s) ссылкой с корректным хостом.
// Все ошибки оборачивают ErrInvalidURL.
func ValidateURL(rawURL string) (*url.URL, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("%w: empty url", ErrInvalidURL)
	}
	if len(rawURL) > MaxURLLength {
		return nil, fmt.Errorf("%w: url is longer than %d bytes", ErrInvalidURL, MaxURLLength)
	}

	parsedURL, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid URL format", ErrInvalidURL)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("%w: URL must have http or https scheme", ErrInvalidURL)
	}
	if parsedURL.Host == "" {
		return nil, fmt.Errorf("%w: URL must have a host", ErrInvalidURL)
	}

	hostname := parsedURL.Hostname()
	if hostname != "localhost" && net.ParseIP(hostname) == nil && !hostnameRegex.MatchString(hostname) {
		return nil, fmt.Errorf("%w: invalid hostname", ErrInvalidURL)
	}
	return parsedURL, nil
}
