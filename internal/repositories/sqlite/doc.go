// Package sqlite предоставляет реализацию хранилища ссылок и журнала переходов для SQLite через gorm.
//
// Подключение открывается с TranslateError, поэтому нарушение уникальности приходит
// как gorm.ErrDuplicatedKey и превращается в repositories.ErrDuplicateKey.
package sqlite
