package services

import (
	"errors"
	"fmt"

	"github.com/fsdevblog/shortlinks/internal/db"
	"github.com/fsdevblog/shortlinks/internal/repositories/memstore"
	"github.com/fsdevblog/shortlinks/internal/repositories/sql"
	"github.com/fsdevblog/shortlinks/internal/repositories/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Services struct {
	Registry    *RegistryService
	PingService *PingService
}

// Factory собирает сервисы поверх подключения, созданного db.NewConnectionFactory.
// Тип репозитория выбирается по типу подключения.
func Factory(
	conn any,
	gen CodeGenerator,
	logger *zap.Logger,
	opts ...func(*RegistryOptions),
) (*Services, error) {
	var repo interface {
		LinkRepository
		Pinger
	}
	switch c := conn.(type) {
	case *pgxpool.Pool:
		repo = sql.NewLinkRepo(c, logger)
	case *gorm.DB:
		repo = sqlite.NewLinkRepo(c, logger)
	case *db.MemoryStorage:
		repo = memstore.NewLinkRepo(c)
	case nil:
		return nil, errors.New("connection is nil")
	default:
		return nil, fmt.Errorf("unknown connection type %T", conn)
	}

	opts = append([]func(*RegistryOptions){WithLogger(logger)}, opts...)
	return &Services{
		Registry:    NewRegistryService(repo, gen, opts...),
		PingService: NewPingService(repo),
	}, nil
}
