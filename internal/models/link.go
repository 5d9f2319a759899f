package models

import "time"

// Ограничения на длину короткого кода.
const (
	MinShortCodeLength = 4
	MaxShortCodeLength = 8
)

// AnonymousSource значение источника перехода, когда транспорт не передал адрес клиента.
const AnonymousSource = "anonymous"

// Link структура модели хранения короткой ссылки.
//
// Код ссылки уникален на всё время жизни хранилища: даже удаленная или истекшая запись
// продолжает занимать свой код, чтобы аналитика по нему оставалась адресуемой.
type Link struct {
	ID          string     `json:"id" gorm:"uniqueIndex;size:36;not null"`
	ShortCode   string     `json:"shortCode" gorm:"primaryKey;size:8"`
	OriginalURL string     `json:"originalUrl" gorm:"size:2048;not null"`
	Clicks      int64      `json:"clicks" gorm:"not null;default:0"`
	CreatedAt   time.Time  `json:"createdAt" gorm:"not null"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty" gorm:"index"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
	// ArchivedAt момент, когда истекшая ссылка была заморожена после срока хранения
	ArchivedAt *time.Time `json:"archivedAt,omitempty"`
}

// IsExpired сообщает, истек ли срок действия ссылки на момент now.
// Граница исключающая: в сам момент ExpiresAt ссылка еще действительна.
func (l *Link) IsExpired(now time.Time) bool {
	if l.ExpiresAt == nil {
		return false
	}
	return now.After(*l.ExpiresAt)
}

// IsDeleted сообщает, помечена ли запись как удаленная.
func (l *Link) IsDeleted() bool {
	return l.DeletedAt != nil
}

// IsArchived сообщает, заморожена ли запись. Архивная запись доступна для чтения,
// но счетчик и журнал переходов у нее больше не меняются.
func (l *Link) IsArchived() bool {
	return l.ArchivedAt != nil
}
