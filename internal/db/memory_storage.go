package db

import (
	"github.com/fsdevblog/shortlinks/internal/db/memory"
)

// MemoryStorage подключение к хранилищу в памяти. Обертка нужна, чтобы фабрика сервисов
// различала тип подключения.
type MemoryStorage struct {
	*memory.MStorage
}

func NewMemStorage() *MemoryStorage {
	return &MemoryStorage{
		MStorage: memory.NewMemStorage(),
	}
}
