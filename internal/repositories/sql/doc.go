// Package sql предоставляет реализацию хранилища ссылок и журнала переходов для PostgreSQL.
//
// Все методы репозитория преобразуют ошибки PostgreSQL в общие ошибки уровня репозитория
// с помощью convertErrorType:
//   - uniqueViolationCode (23505) -> repositories.ErrDuplicateKey
//   - pgx.ErrNoRows -> repositories.ErrNotFound
//   - другие ошибки -> repositories.ErrUnknown
package sql
