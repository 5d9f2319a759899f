// Package memstore предоставляет реализацию хранилища ссылок и журнала переходов в памяти.
//
// Все методы репозитория преобразуют внутренние ошибки хранилища в общие ошибки уровня репозитория
// с помощью convertErrorType:
//   - memory.ErrDuplicateKey -> repositories.ErrDuplicateKey
//   - memory.ErrNotFound -> repositories.ErrNotFound
//   - другие ошибки -> repositories.ErrUnknown
//
// Переходы хранятся в журнале той же записи, что и ссылка, поэтому счетчик и журнал
// изменяются под одной блокировкой ключа.
package memstore
