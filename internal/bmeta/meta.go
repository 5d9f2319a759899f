// Package bmeta данные о сборке, которые подставляются через -ldflags.
package bmeta

import "go.uber.org/zap"

const defaultBuildMeta = "N/A" // Значение по умолчанию

// Meta версия, дата и коммит сборки.
type Meta struct {
	Version string
	Date    string
	Commit  string
}

// New подставляет N/A вместо незаданных значений.
func New(version, date, commit string) Meta {
	return Meta{
		Version: orDefault(version),
		Date:    orDefault(date),
		Commit:  orDefault(commit),
	}
}

// Fields поля для записи в лог при старте.
func (m Meta) Fields() []zap.Field {
	return []zap.Field{
		zap.String("buildVersion", m.Version),
		zap.String("buildDate", m.Date),
		zap.String("buildCommit", m.Commit),
	}
}

func orDefault(v string) string {
	if v == "" {
		return defaultBuildMeta
	}
	return v
}
