// Package codegen генерирует кандидатов в короткие коды ссылок.
//
// Генератор не проверяет уникальность: это инвариант всего хранилища, и проверить его
// может только само хранилище при вставке.
package codegen

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/fsdevblog/shortlinks/internal/models"
)

// Значения по умолчанию.
const (
	DefaultAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	DefaultLength   = 6
)

var (
	ErrInvalidLength   = errors.New("code length is out of range")
	ErrInvalidAlphabet = errors.New("alphabet must contain at least two distinct alphanumeric symbols")
)

// Options настройки генератора.
type Options struct {
	Alphabet string // Набор символов кода
	Length   int    // Длина кода
}

// Generator генератор случайных кодов. Общего изменяемого состояния нет,
// поэтому один экземпляр безопасно использовать из нескольких горутин.
type Generator struct {
	alphabet string
	max      *big.Int
	length   int
}

// WithAlphabet задает набор символов.
func WithAlphabet(alphabet string) func(*Options) {
	return func(o *Options) {
		o.Alphabet = alphabet
	}
}

// WithLength задает длину кода.
func WithLength(length int) func(*Options) {
	return func(o *Options) {
		o.Length = length
	}
}

// New создает генератор. Без опций генерирует коды длиной 6 из [a-z0-9].
func New(opts ...func(*Options)) (*Generator, error) {
	options := Options{
		Alphabet: DefaultAlphabet,
		Length:   DefaultLength,
	}
	for _, opt := range opts {
		opt(&options)
	}

	if options.Length < models.MinShortCodeLength || options.Length > models.MaxShortCodeLength {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, options.Length)
	}
	alphabet, err := normalizeAlphabet(options.Alphabet)
	if err != nil {
		return nil, err
	}

	return &Generator{
		alphabet: alphabet,
		max:      big.NewInt(int64(len(alphabet))),
		length:   options.Length,
	}, nil
}

// MustNew аналогичен New(), но в случае ошибки вызывает панику.
func MustNew(opts ...func(*Options)) *Generator {
	g, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return g
}

// Generate возвращает новый случайный код.
func (g *Generator) Generate() (string, error) {
	var b strings.Builder
	b.Grow(g.length)
	for range g.length {
		// rand.Int дает равномерное распределение без смещения по модулю.
		idx, err := rand.Int(rand.Reader, g.max)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		b.WriteByte(g.alphabet[idx.Int64()])
	}
	return b.String(), nil
}

// Length возвращает длину генерируемых кодов.
func (g *Generator) Length() int {
	return g.length
}

// Valid проверяет, может ли строка вообще быть коротким кодом.
// Используется для отсечения заведомо несуществующих кодов до похода в хранилище.
func Valid(code string) bool {
	if len(code) < models.MinShortCodeLength || len(code) > models.MaxShortCodeLength {
		return false
	}
	for i := range len(code) {
		if !isAlphanumeric(code[i]) {
			return false
		}
	}
	return true
}

// normalizeAlphabet убирает повторы символов и проверяет допустимость набора.
func normalizeAlphabet(alphabet string) (string, error) {
	seen := make(map[byte]struct{}, len(alphabet))
	var b strings.Builder
	for i := range len(alphabet) {
		c := alphabet[i]
		if !isAlphanumeric(c) {
			return "", fmt.Errorf("%w: symbol %q", ErrInvalidAlphabet, c)
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		b.WriteByte(c)
	}
	if b.Len() < 2 { //nolint:mnd
		return "", ErrInvalidAlphabet
	}
	return b.String(), nil
}

func isAlphanumeric(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
