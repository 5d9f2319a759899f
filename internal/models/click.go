package models

import "time"

// ClickEvent один успешный переход по короткой ссылке.
// События только добавляются и никогда не изменяются отдельно от родительской ссылки.
type ClickEvent struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"` // Порядковый номер, назначается хранилищем
	ShortCode string    `json:"shortCode" gorm:"index;size:8;not null"`
	Timestamp time.Time `json:"timestamp" gorm:"not null"`
	UserAgent string    `json:"userAgent"`
	Source    string    `json:"source" gorm:"size:64"` // IP клиента или AnonymousSource
}

// RedirectDecision результат успешного разрешения короткого кода.
type RedirectDecision struct {
	TargetURL string    `json:"originalUrl"`
	Clicks    int64     `json:"clicks"`
	CreatedAt time.Time `json:"createdAt"`
}

// LinkStats статистика по ссылке: сама запись и журнал переходов в порядке добавления.
type LinkStats struct {
	Link   Link
	Events []ClickEvent
}
